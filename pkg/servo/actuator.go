package servo

// Actuator is one lid servo. Fields other than the identity are owned by
// the Registry; callers should treat an *Actuator as a handle.
type Actuator struct {
	ID  string
	Pin int

	// Offset is the calibration correction in degrees.
	Offset float64

	Min    float64
	Max    float64
	Open   float64
	Closed float64

	angle     float64
	commanded float64
}

func newActuator(cfg ActuatorConfig, offset float64) *Actuator {
	return &Actuator{
		ID:     cfg.ID,
		Pin:    cfg.Pin,
		Offset: offset,
		Min:    cfg.MinAngle,
		Max:    cfg.MaxAngle,
		Open:   cfg.OpenAngle,
		Closed: cfg.ClosedAngle,
	}
}

// Angle returns the last requested angle after clamping.
func (a *Actuator) Angle() float64 {
	return a.angle
}

// Commanded returns the last value sent to the driver.
func (a *Actuator) Commanded() float64 {
	return a.commanded
}

// Clamp limits angle to [Min, Max].
func (a *Actuator) Clamp(angle float64) float64 {
	if angle < a.Min {
		return a.Min
	}
	if angle > a.Max {
		return a.Max
	}
	return angle
}

// Command converts a requested angle into the driver value: the request is
// clamped, corrected by the offset with the inverted mounting convention
// -(angle - offset), and clamped again so the driver never sees a value
// outside [Min, Max].
func (a *Actuator) Command(angle float64) float64 {
	return a.Clamp(-(a.Clamp(angle) - a.Offset))
}
