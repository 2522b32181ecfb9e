package inference

import "errors"

// Sentinel errors for common conditions.
var (
	// ErrContractViolation is returned when a tensor or label list does not
	// match the model's declared input/output contract. It is a
	// configuration error and should stop the process before the loop starts.
	ErrContractViolation = errors.New("inference: model contract violation")

	// ErrModelLoad is returned when the model file cannot be loaded.
	ErrModelLoad = errors.New("inference: model load failed")

	// ErrClosed is returned when classifying on a closed engine.
	ErrClosed = errors.New("inference: engine closed")
)
