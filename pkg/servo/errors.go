package servo

import "errors"

var (
	// ErrHardwareUnavailable is returned when the servo board cannot be
	// reached. With the auto backend it is downgraded to an informational
	// notice and the no-op driver is used instead.
	ErrHardwareUnavailable = errors.New("servo: hardware unavailable")

	// ErrUnknownActuator is returned for an actuator ID not in the registry.
	ErrUnknownActuator = errors.New("servo: unknown actuator")

	// ErrInvalidConfig is returned when the actuator table is inconsistent.
	ErrInvalidConfig = errors.New("servo: invalid configuration")
)
