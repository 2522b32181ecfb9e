package camera

import "errors"

var (
	// ErrSourceUnavailable is returned when the capture device cannot be
	// opened or has gone away. It is fatal for the control loop.
	ErrSourceUnavailable = errors.New("camera: source unavailable")

	// ErrFrameDropped is returned when a single read fails on an otherwise
	// healthy device. The caller should skip the frame and try again.
	ErrFrameDropped = errors.New("camera: frame dropped")

	// ErrNotOpen is returned when Next is called before Open.
	ErrNotOpen = errors.New("camera: source not open")
)
