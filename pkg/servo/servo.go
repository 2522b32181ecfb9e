// Package servo drives the bin lid servos.
//
// Hardware access goes through the Driver capability interface, which has
// a real implementation (Firmata over serial) and a no-op implementation
// for hosts without servo hardware. The Registry owns every Actuator, maps
// class names to actuators and applies clamping and calibration before
// anything reaches the driver.
package servo

import (
	"fmt"
	"time"
)

// Driver is the hardware capability used by the registry.
type Driver interface {
	// Attach configures pin for servo output.
	Attach(pin int) error

	// Write commands the servo on pin to angle degrees.
	Write(pin int, angle float64) error

	// Close releases the hardware.
	Close() error
}

// Backend selects a Driver implementation.
type Backend string

const (
	// BackendAuto tries Firmata and falls back to no-op.
	BackendAuto Backend = "auto"
	// BackendFirmata requires a Firmata board on Port.
	BackendFirmata Backend = "firmata"
	// BackendNoop never touches hardware.
	BackendNoop Backend = "noop"
)

// ActuatorConfig describes one lid servo.
type ActuatorConfig struct {
	ID  string `yaml:"id" json:"id" mapstructure:"id"`
	Pin int    `yaml:"pin" json:"pin" mapstructure:"pin"`

	OpenAngle   float64 `yaml:"open_angle" json:"open_angle" mapstructure:"open_angle"`
	ClosedAngle float64 `yaml:"closed_angle" json:"closed_angle" mapstructure:"closed_angle"`
	MinAngle    float64 `yaml:"min_angle" json:"min_angle" mapstructure:"min_angle"`
	MaxAngle    float64 `yaml:"max_angle" json:"max_angle" mapstructure:"max_angle"`

	// DefaultOffset applies when the calibration store has no entry.
	DefaultOffset float64 `yaml:"default_offset" json:"default_offset" mapstructure:"default_offset"`
}

// Config holds servo hardware and actuator configuration.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend" mapstructure:"backend"`

	// Port and Baud address the Firmata board.
	Port string `yaml:"port" json:"port" mapstructure:"port"`
	Baud int    `yaml:"baud" json:"baud" mapstructure:"baud"`

	// ConnectTimeout bounds the Firmata handshake. A board that does not
	// answer in time counts as unavailable.
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" mapstructure:"connect_timeout"`

	// Dwell is how long a lid is held open. Open-loop: there is no
	// position feedback.
	Dwell time.Duration `yaml:"dwell" json:"dwell" mapstructure:"dwell"`

	Actuators []ActuatorConfig `yaml:"actuators" json:"actuators" mapstructure:"actuators"`

	// Classes maps class names to actuator IDs. Classes not listed are
	// legitimately unmapped.
	Classes map[string]string `yaml:"classes" json:"classes" mapstructure:"classes"`
}

// DefaultConnectTimeout bounds the Firmata handshake when none is set.
const DefaultConnectTimeout = 5 * time.Second

// DefaultConfig returns the four-bin layout on an Arduino Uno's PWM pins.
func DefaultConfig() Config {
	actuator := func(id string, pin int, open, offset float64) ActuatorConfig {
		return ActuatorConfig{
			ID:            id,
			Pin:           pin,
			OpenAngle:     open,
			ClosedAngle:   0,
			MinAngle:      -180,
			MaxAngle:      180,
			DefaultOffset: offset,
		}
	}

	return Config{
		Backend: BackendAuto,
		Port:    "/dev/ttyACM0",
		Baud:    57600,
		Dwell:   time.Second,

		ConnectTimeout: DefaultConnectTimeout,
		Actuators: []ActuatorConfig{
			actuator("p0", 3, 55, 55),
			actuator("p1", 5, 40, 80),
			actuator("p2", 6, 45, -35),
			actuator("p3", 9, 55, 80),
		},
		Classes: map[string]string{
			"trash":       "p0",
			"recycle":     "p1",
			"compost":     "p2",
			"electronics": "p3",
		},
	}
}

// Validate checks the actuator table and class map.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendFirmata, BackendNoop:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.Dwell < 0 {
		return fmt.Errorf("%w: dwell must not be negative", ErrInvalidConfig)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("%w: connect timeout must not be negative", ErrInvalidConfig)
	}

	ids := make(map[string]bool, len(c.Actuators))
	pins := make(map[int]string, len(c.Actuators))
	for _, a := range c.Actuators {
		if a.ID == "" {
			return fmt.Errorf("%w: actuator with empty id", ErrInvalidConfig)
		}
		if ids[a.ID] {
			return fmt.Errorf("%w: duplicate actuator id %q", ErrInvalidConfig, a.ID)
		}
		if a.Pin < 0 {
			return fmt.Errorf("%w: actuator %q has negative pin %d", ErrInvalidConfig, a.ID, a.Pin)
		}
		if c.Backend == BackendFirmata {
			if err := checkPin(a.Pin); err != nil {
				return fmt.Errorf("actuator %q: %w", a.ID, err)
			}
		}
		if other, ok := pins[a.Pin]; ok {
			return fmt.Errorf("%w: actuators %q and %q share pin %d", ErrInvalidConfig, other, a.ID, a.Pin)
		}
		if a.MinAngle > a.MaxAngle {
			return fmt.Errorf("%w: actuator %q min angle %.1f above max %.1f", ErrInvalidConfig, a.ID, a.MinAngle, a.MaxAngle)
		}
		ids[a.ID] = true
		pins[a.Pin] = a.ID
	}

	for class, id := range c.Classes {
		if !ids[id] {
			return fmt.Errorf("%w: class %q mapped to unknown actuator %q", ErrInvalidConfig, class, id)
		}
	}
	return nil
}
