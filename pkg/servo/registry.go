package servo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/smartbin/pkg/calibration"
)

// Registry owns the actuators and is the only path to the driver.
// It is not safe for concurrent use: the dispatcher loop is its single
// caller.
type Registry struct {
	driver Driver
	store  calibration.Store
	logger *slog.Logger

	actuators []*Actuator
	byID      map[string]*Actuator
	byClass   map[string]*Actuator

	dwell time.Duration
	sleep func(time.Duration)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSleep replaces time.Sleep for the dwell hold.
func WithSleep(fn func(time.Duration)) Option {
	return func(r *Registry) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// NewRegistry builds the actuators from cfg, loads their offsets from the
// store, attaches every pin and drives every actuator to its closed angle.
func NewRegistry(ctx context.Context, driver Driver, store calibration.Store, cfg Config, opts ...Option) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		driver:  driver,
		store:   store,
		logger:  slog.Default(),
		byID:    make(map[string]*Actuator, len(cfg.Actuators)),
		byClass: make(map[string]*Actuator, len(cfg.Classes)),
		dwell:   cfg.Dwell,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}

	offsets, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load calibration: %w", err)
	}

	for _, ac := range cfg.Actuators {
		offset, ok := offsets[ac.ID]
		if !ok {
			offset = ac.DefaultOffset
		}
		a := newActuator(ac, offset)

		if err := driver.Attach(a.Pin); err != nil {
			return nil, fmt.Errorf("attach actuator %s on pin %d: %w", a.ID, a.Pin, err)
		}
		r.actuators = append(r.actuators, a)
		r.byID[a.ID] = a

		r.logger.Debug("actuator ready", "id", a.ID, "pin", a.Pin, "offset", a.Offset, "calibrated", ok)
	}

	for class, id := range cfg.Classes {
		r.byClass[class] = r.byID[id]
	}

	if err := r.CloseAll(); err != nil {
		return nil, fmt.Errorf("home actuators: %w", err)
	}
	return r, nil
}

// Lookup returns the actuator bound to a class name. An unmapped class
// returns false and is not an error.
func (r *Registry) Lookup(class string) (*Actuator, bool) {
	a, ok := r.byClass[class]
	return a, ok
}

// Actuator returns the actuator with the given ID.
func (r *Registry) Actuator(id string) (*Actuator, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActuator, id)
	}
	return a, nil
}

// Actuators returns all actuators in configuration order.
func (r *Registry) Actuators() []*Actuator {
	return append([]*Actuator(nil), r.actuators...)
}

// Dwell returns the open hold duration.
func (r *Registry) Dwell() time.Duration {
	return r.dwell
}

// SetAngle clamps angle, applies the calibration offset and writes the
// result to the driver.
func (r *Registry) SetAngle(a *Actuator, angle float64) error {
	requested := a.Clamp(angle)
	cmd := a.Command(requested)

	if err := r.driver.Write(a.Pin, cmd); err != nil {
		return fmt.Errorf("actuator %s: write %.1f: %w", a.ID, cmd, err)
	}
	a.angle = requested
	a.commanded = cmd
	return nil
}

// DriveOpenClose opens the lid, holds it for the dwell duration and closes
// it again. The close is attempted even when the open failed.
func (r *Registry) DriveOpenClose(a *Actuator) error {
	openErr := r.SetAngle(a, a.Open)
	if openErr == nil {
		r.sleep(r.dwell)
	}
	closeErr := r.SetAngle(a, a.Closed)
	return errors.Join(openErr, closeErr)
}

// Calibrate persists a new offset and immediately re-applies the
// actuator's current angle with it.
func (r *Registry) Calibrate(ctx context.Context, a *Actuator, offset float64) error {
	if err := r.store.Save(ctx, a.ID, offset); err != nil {
		return fmt.Errorf("calibrate %s: %w", a.ID, err)
	}
	a.Offset = offset

	r.logger.Info("actuator calibrated", "id", a.ID, "offset", offset)
	return r.SetAngle(a, a.angle)
}

// CloseAll drives every actuator to its closed angle. Every actuator is
// attempted; errors are joined.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, a := range r.actuators {
		if err := r.SetAngle(a, a.Closed); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close drives all lids closed and releases the driver.
func (r *Registry) Close() error {
	return errors.Join(r.CloseAll(), r.driver.Close())
}
