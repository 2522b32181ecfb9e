// Package inference defines the classifier contract used by the bin.
//
// An Engine is loaded once at startup and then called with tensors shaped
// exactly as its Contract declares. Classification is stateless: each call
// depends only on its input tensor.
package inference

import (
	"fmt"
)

// DType is the element type of a tensor.
type DType string

const (
	// DTypeUint8 carries raw 0-255 pixel values (quantized models).
	DTypeUint8 DType = "uint8"
	// DTypeFloat32 carries normalized floating point values.
	DTypeFloat32 DType = "float32"
)

// Layout is the memory order the model expects for its input blob.
type Layout string

const (
	// LayoutNHWC is channels-last (TensorFlow / Keras exports).
	LayoutNHWC Layout = "nhwc"
	// LayoutNCHW is channels-first (PyTorch exports).
	LayoutNCHW Layout = "nchw"
)

// ChannelOrder is the colour channel order the model was trained on.
type ChannelOrder string

const (
	ChannelsRGB ChannelOrder = "rgb"
	ChannelsBGR ChannelOrder = "bgr"
)

// Contract is the engine's declared input/output contract.
type Contract struct {
	Width    int
	Height   int
	Channels int

	DType        DType
	Layout       Layout
	ChannelOrder ChannelOrder

	// Normalization applies only to the float32 domain.
	Normalization Normalization

	// NumClasses is the length of the score vector the model emits.
	NumClasses int
}

// Size returns the number of elements in one input tensor.
func (c Contract) Size() int {
	return c.Width * c.Height * c.Channels
}

// Validate checks the contract is internally consistent.
func (c Contract) Validate() error {
	if c.Width <= 0 || c.Height <= 0 || c.Channels <= 0 {
		return fmt.Errorf("%w: input shape %dx%dx%d", ErrContractViolation, c.Height, c.Width, c.Channels)
	}
	switch c.DType {
	case DTypeUint8, DTypeFloat32:
	default:
		return fmt.Errorf("%w: unsupported dtype %q", ErrContractViolation, c.DType)
	}
	switch c.Layout {
	case LayoutNHWC, LayoutNCHW:
	default:
		return fmt.Errorf("%w: unsupported layout %q", ErrContractViolation, c.Layout)
	}
	switch c.ChannelOrder {
	case ChannelsRGB, ChannelsBGR:
	default:
		return fmt.Errorf("%w: unsupported channel order %q", ErrContractViolation, c.ChannelOrder)
	}
	return nil
}

// Engine classifies tensors.
type Engine interface {
	// Contract returns the declared input/output contract.
	Contract() Contract

	// Classify returns the index of the highest scoring class.
	Classify(t Tensor) (int, error)

	// Close releases model resources.
	Close() error
}

// CheckContract verifies that an engine's output matches the label list.
// It is meant to run once at startup.
func CheckContract(e Engine, numLabels int) error {
	c := e.Contract()
	if err := c.Validate(); err != nil {
		return err
	}
	if c.NumClasses != numLabels {
		return fmt.Errorf("%w: model emits %d scores but %d labels are loaded",
			ErrContractViolation, c.NumClasses, numLabels)
	}
	return nil
}

// Argmax returns the index of the largest score, or -1 for an empty slice.
// Ties resolve to the lowest index.
func Argmax(scores []float32) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
