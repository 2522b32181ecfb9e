package inference

import "fmt"

// Tensor is one model input in HWC order. Exactly one of Uint8 or Float32
// is populated, matching DType.
type Tensor struct {
	Height   int
	Width    int
	Channels int
	DType    DType

	Uint8   []uint8
	Float32 []float32
}

// Len returns the element count implied by the shape.
func (t Tensor) Len() int {
	return t.Height * t.Width * t.Channels
}

// Validate checks shape and dtype against the contract.
func (t Tensor) Validate(c Contract) error {
	if t.Height != c.Height || t.Width != c.Width || t.Channels != c.Channels {
		return fmt.Errorf("%w: tensor shape %dx%dx%d, model wants %dx%dx%d",
			ErrContractViolation, t.Height, t.Width, t.Channels, c.Height, c.Width, c.Channels)
	}
	if t.DType != c.DType {
		return fmt.Errorf("%w: tensor dtype %s, model wants %s", ErrContractViolation, t.DType, c.DType)
	}

	n := 0
	switch t.DType {
	case DTypeUint8:
		n = len(t.Uint8)
	case DTypeFloat32:
		n = len(t.Float32)
	}
	if n != t.Len() {
		return fmt.Errorf("%w: tensor holds %d values, shape needs %d", ErrContractViolation, n, t.Len())
	}
	return nil
}

// CHW returns a copy of the tensor transposed to channels-first order.
// The shape fields keep describing the logical H, W and C.
func (t Tensor) CHW() Tensor {
	out := Tensor{Height: t.Height, Width: t.Width, Channels: t.Channels, DType: t.DType}
	plane := t.Height * t.Width

	switch t.DType {
	case DTypeUint8:
		out.Uint8 = make([]uint8, len(t.Uint8))
		for i := 0; i < plane; i++ {
			for c := 0; c < t.Channels; c++ {
				out.Uint8[c*plane+i] = t.Uint8[i*t.Channels+c]
			}
		}
	case DTypeFloat32:
		out.Float32 = make([]float32, len(t.Float32))
		for i := 0; i < plane; i++ {
			for c := 0; c < t.Channels; c++ {
				out.Float32[c*plane+i] = t.Float32[i*t.Channels+c]
			}
		}
	}
	return out
}
