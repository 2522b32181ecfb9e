package inference

import "fmt"

// Normalization maps a raw pixel value p in channel c to (p - Mean[c]) * Scale[c].
type Normalization struct {
	Mean  [3]float32
	Scale [3]float32
}

// Apply normalizes one channel value.
func (n Normalization) Apply(c int, p float32) float32 {
	return (p - n.Mean[c]) * n.Scale[c]
}

// Normalization presets by model family.
const (
	// NormMobileNetV3 is a pass-through: MobileNetV3 models include their
	// own rescaling layer and expect raw 0-255 floats.
	NormMobileNetV3 = "mobilenet_v3"
	// NormMobileNetV2 maps 0-255 to [-1, 1].
	NormMobileNetV2 = "mobilenet_v2"
	// NormUnit maps 0-255 to [0, 1].
	NormUnit = "unit"
	// NormImageNet applies the torchvision mean/std in RGB order.
	NormImageNet = "imagenet"
)

func uniform(mean, scale float32) Normalization {
	return Normalization{
		Mean:  [3]float32{mean, mean, mean},
		Scale: [3]float32{scale, scale, scale},
	}
}

// NormalizationPreset resolves a preset name.
func NormalizationPreset(name string) (Normalization, error) {
	switch name {
	case NormMobileNetV3, "":
		return uniform(0, 1), nil
	case NormMobileNetV2:
		return uniform(127.5, 1/127.5), nil
	case NormUnit:
		return uniform(0, 1.0/255), nil
	case NormImageNet:
		return Normalization{
			Mean:  [3]float32{0.485 * 255, 0.456 * 255, 0.406 * 255},
			Scale: [3]float32{1 / (0.229 * 255), 1 / (0.224 * 255), 1 / (0.225 * 255)},
		}, nil
	default:
		return Normalization{}, fmt.Errorf("%w: unknown normalization %q", ErrContractViolation, name)
	}
}
