// Package dispatch runs the capture → classify → actuate control loop.
//
// The loop is strictly sequential. Each iteration captures one frame,
// classifies it, reports the label and, when the label is bound to an
// actuator, runs one open/hold/close cycle. Cancellation is checked between
// iterations and during the idle pause, never in the middle of a dwell.
// Whatever ends the loop, every actuator is driven closed before Run
// returns.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/smartbin/pkg/camera"
	"github.com/teslashibe/smartbin/pkg/inference"
	"github.com/teslashibe/smartbin/pkg/labels"
	"github.com/teslashibe/smartbin/pkg/metrics"
	"github.com/teslashibe/smartbin/pkg/preprocess"
	"github.com/teslashibe/smartbin/pkg/servo"
)

// ErrStop may be returned by a Reporter to end the loop cleanly.
var ErrStop = errors.New("dispatch: stop requested")

// Transformer converts frames into model input.
type Transformer interface {
	Transform(f camera.Frame) (inference.Tensor, error)
}

// Resolver maps class indices to names.
type Resolver interface {
	Resolve(i int) (string, error)
}

// Actuators is the part of servo.Registry the loop drives.
type Actuators interface {
	Lookup(class string) (*servo.Actuator, bool)
	DriveOpenClose(a *servo.Actuator) error
	CloseAll() error
}

// Result is what a reporter sees for each classified frame.
type Result struct {
	Frame camera.Frame
	Index int
	Label string
}

// Reporter observes resolved labels. Reporters must not touch actuators.
type Reporter interface {
	Report(ctx context.Context, r Result) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, r Result) error

// Report implements Reporter.
func (f ReporterFunc) Report(ctx context.Context, r Result) error {
	return f(ctx, r)
}

// Outcome describes how an iteration ended.
type Outcome int

const (
	// OutcomeDropped means no frame was available; nothing was reported.
	OutcomeDropped Outcome = iota
	// OutcomeUnmapped means the label has no actuator.
	OutcomeUnmapped
	// OutcomeDispatched means an actuator ran its open/close cycle.
	OutcomeDispatched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDropped:
		return "dropped"
	case OutcomeUnmapped:
		return "unmapped"
	case OutcomeDispatched:
		return "dispatched"
	default:
		return "unknown"
	}
}

// Iteration is the result of one Step.
type Iteration struct {
	Outcome  Outcome
	Label    string
	Actuator string

	// Err is the actuator cycle error, if any. The loop continues past it.
	Err error
}

// paced reports whether the iteration already consumed time holding a lid
// open. A failed cycle may have skipped the dwell, so it is not paced.
func (it Iteration) paced() bool {
	return it.Outcome == OutcomeDispatched && it.Err == nil
}

// Config holds loop pacing.
type Config struct {
	// IdleInterval is the pause after an iteration that drove no actuator.
	IdleInterval time.Duration `yaml:"idle_interval" json:"idle_interval" mapstructure:"idle_interval"`

	// MaxConsecutiveDrops promotes a run of dropped frames to a fatal
	// source failure. Zero disables the limit.
	MaxConsecutiveDrops int `yaml:"max_consecutive_drops" json:"max_consecutive_drops" mapstructure:"max_consecutive_drops"`
}

// DefaultConfig returns the production pacing.
func DefaultConfig() Config {
	return Config{
		IdleInterval:        500 * time.Millisecond,
		MaxConsecutiveDrops: 50,
	}
}

// Dispatcher owns the loop.
type Dispatcher struct {
	cfg       Config
	source    camera.Source
	pre       Transformer
	engine    inference.Engine
	labels    Resolver
	actuators Actuators
	reporters []Reporter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	pause     func(ctx context.Context, d time.Duration) bool

	state atomic.Int32
	drops int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithReporter adds a label reporter.
func WithReporter(r Reporter) Option {
	return func(d *Dispatcher) {
		d.reporters = append(d.reporters, r)
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithPause replaces the idle pause. fn returns false when the loop should
// stop.
func WithPause(fn func(ctx context.Context, d time.Duration) bool) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.pause = fn
		}
	}
}

// New wires a dispatcher. The engine must already have passed
// inference.CheckContract against the label list.
func New(cfg Config, source camera.Source, pre Transformer, engine inference.Engine,
	resolver Resolver, actuators Actuators, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:       cfg,
		source:    source,
		pre:       pre,
		engine:    engine,
		labels:    resolver,
		actuators: actuators,
		logger:    slog.Default(),
		pause:     sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current state. Safe to call from other goroutines.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

func (d *Dispatcher) setState(s State) {
	d.state.Store(int32(s))
	d.metrics.SetState(int(s))
}

// Run opens the source and loops until ctx is cancelled, a reporter
// returns ErrStop, or a fatal error occurs. Cancellation and ErrStop return
// nil. All actuators are closed before Run returns.
func (d *Dispatcher) Run(ctx context.Context) (err error) {
	defer func() {
		d.setState(StateShutdown)
		if cerr := d.actuators.CloseAll(); cerr != nil {
			d.logger.Error("failed to close actuators", "error", cerr)
			err = errors.Join(err, cerr)
		}
	}()

	if err := d.source.Open(ctx); err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}
	defer d.source.Close()

	d.logger.Info("dispatcher started", "idle_interval", d.cfg.IdleInterval)

	for {
		if ctx.Err() != nil {
			d.logger.Info("dispatcher stopping", "reason", ctx.Err())
			return nil
		}

		it, err := d.Step(ctx)
		if errors.Is(err, ErrStop) {
			d.logger.Info("dispatcher stopping", "reason", "stop requested")
			return nil
		}
		if err != nil {
			return err
		}

		if !it.paced() {
			if !d.pause(ctx, d.cfg.IdleInterval) {
				d.logger.Info("dispatcher stopping", "reason", ctx.Err())
				return nil
			}
		}
	}
}

// Step runs one iteration. Only fatal errors and ErrStop are returned;
// dropped frames and actuator write failures are handled here. ErrStop is
// returned alongside a complete iteration.
func (d *Dispatcher) Step(ctx context.Context) (Iteration, error) {
	defer d.setState(StateIdle)

	d.setState(StateCapturing)
	frame, err := d.source.Next(ctx)
	if err != nil {
		return d.dropped(err)
	}

	d.setState(StateClassifying)
	start := time.Now()
	tensor, err := d.pre.Transform(frame)
	if errors.Is(err, preprocess.ErrEmptyFrame) {
		return d.dropped(err)
	}
	if err != nil {
		return Iteration{}, fmt.Errorf("preprocess frame %d: %w", frame.Seq, err)
	}
	d.drops = 0
	d.metrics.FrameCaptured()

	idx, err := d.engine.Classify(tensor)
	if err != nil {
		if errors.Is(err, inference.ErrContractViolation) || errors.Is(err, inference.ErrClosed) {
			return Iteration{}, fmt.Errorf("classify frame %d: %w", frame.Seq, err)
		}
		d.logger.Warn("classification failed, skipping frame", "seq", frame.Seq, "error", err)
		return Iteration{Outcome: OutcomeDropped}, nil
	}
	d.metrics.ObserveInference(time.Since(start))

	label, err := d.labels.Resolve(idx)
	if err != nil {
		return Iteration{}, fmt.Errorf("resolve class %d: %w", idx, err)
	}
	d.metrics.Classified(label)

	it := Iteration{Outcome: OutcomeUnmapped, Label: label}
	stop := d.report(ctx, Result{Frame: frame, Index: idx, Label: label})

	a, ok := d.actuators.Lookup(label)
	if !ok {
		d.logger.Debug("no actuator for class", "label", label)
		return it, stop
	}

	d.setState(StateDispatching)
	it.Outcome = OutcomeDispatched
	it.Actuator = a.ID

	err = d.actuators.DriveOpenClose(a)
	d.metrics.Actuated(a.ID, err)
	it.Err = err
	if err != nil {
		d.logger.Error("actuator cycle failed", "actuator", a.ID, "label", label, "error", err)
	} else {
		d.logger.Debug("actuator cycled", "actuator", a.ID, "label", label)
	}
	return it, stop
}

// report fans a result out to every reporter. A stop request is returned
// after all reporters have run so the current item is still dispatched.
func (d *Dispatcher) report(ctx context.Context, r Result) error {
	var stop error
	for _, rep := range d.reporters {
		err := rep.Report(ctx, r)
		switch {
		case err == nil:
		case errors.Is(err, ErrStop):
			stop = ErrStop
		default:
			d.logger.Warn("reporter failed", "label", r.Label, "error", err)
		}
	}
	return stop
}

// dropped handles a frame that could not be used. Source loss is fatal; a
// long enough run of drops is treated as source loss.
func (d *Dispatcher) dropped(err error) (Iteration, error) {
	if errors.Is(err, camera.ErrSourceUnavailable) || errors.Is(err, camera.ErrNotOpen) {
		return Iteration{}, fmt.Errorf("read frame: %w", err)
	}

	d.drops++
	d.metrics.FrameDropped()
	d.logger.Debug("frame dropped", "consecutive", d.drops, "error", err)

	if d.cfg.MaxConsecutiveDrops > 0 && d.drops > d.cfg.MaxConsecutiveDrops {
		return Iteration{}, fmt.Errorf("%w: %d consecutive dropped frames", camera.ErrSourceUnavailable, d.drops)
	}
	return Iteration{Outcome: OutcomeDropped}, nil
}

// sleepCtx pauses for dur or until ctx is done. It reports whether the
// pause completed.
func sleepCtx(ctx context.Context, dur time.Duration) bool {
	if dur <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// IsFatal reports whether err should terminate the process.
func IsFatal(err error) bool {
	return errors.Is(err, camera.ErrSourceUnavailable) ||
		errors.Is(err, inference.ErrContractViolation) ||
		errors.Is(err, labels.ErrIndexOutOfRange)
}
