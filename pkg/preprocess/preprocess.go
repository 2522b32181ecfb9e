// Package preprocess turns camera frames into model input tensors.
//
// The numeric domain (raw uint8 or normalized float32) is chosen once when
// the Preprocessor is built from the engine contract; Transform never
// re-decides it per frame.
package preprocess

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/teslashibe/smartbin/pkg/camera"
	"github.com/teslashibe/smartbin/pkg/inference"
)

// ErrEmptyFrame is returned for frames without pixels.
var ErrEmptyFrame = errors.New("preprocess: empty frame")

// fillFunc writes one pixel's channels into the tensor at element offset o.
type fillFunc func(t *inference.Tensor, o int, ch [3]uint8)

// Preprocessor resizes and converts frames for one engine contract.
type Preprocessor struct {
	contract inference.Contract
	filter   imaging.ResampleFilter
	fill     fillFunc
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithFilter overrides the resampling filter (default bilinear).
func WithFilter(f imaging.ResampleFilter) Option {
	return func(p *Preprocessor) {
		p.filter = f
	}
}

// New builds a preprocessor for the contract.
func New(contract inference.Contract, opts ...Option) (*Preprocessor, error) {
	if err := contract.Validate(); err != nil {
		return nil, err
	}
	if contract.Channels != 1 && contract.Channels != 3 {
		return nil, fmt.Errorf("%w: %d input channels not supported", inference.ErrContractViolation, contract.Channels)
	}

	p := &Preprocessor{
		contract: contract,
		filter:   imaging.Linear,
	}
	for _, opt := range opts {
		opt(p)
	}

	switch contract.DType {
	case inference.DTypeUint8:
		p.fill = p.fillUint8
	case inference.DTypeFloat32:
		p.fill = p.fillFloat32
	}
	return p, nil
}

// Contract returns the contract the preprocessor was built for.
func (p *Preprocessor) Contract() inference.Contract {
	return p.contract
}

// Transform resizes the frame to the model input size and converts it to
// the model's numeric domain.
func (p *Preprocessor) Transform(f camera.Frame) (inference.Tensor, error) {
	if f.Image == nil || f.Bounds().Empty() {
		return inference.Tensor{}, ErrEmptyFrame
	}

	c := p.contract
	resized := imaging.Resize(f.Image, c.Width, c.Height, p.filter)

	t := inference.Tensor{
		Height:   c.Height,
		Width:    c.Width,
		Channels: c.Channels,
		DType:    c.DType,
	}
	if c.DType == inference.DTypeUint8 {
		t.Uint8 = make([]uint8, t.Len())
	} else {
		t.Float32 = make([]float32, t.Len())
	}

	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			p.fill(&t, (y*c.Width+x)*c.Channels, p.channels(resized, x, y))
		}
	}
	return t, nil
}

// channels returns the pixel in the contract's channel order. For single
// channel models only index 0 is used and holds the luma.
func (p *Preprocessor) channels(img *image.NRGBA, x, y int) [3]uint8 {
	i := img.PixOffset(x, y)
	r, g, b := img.Pix[i], img.Pix[i+1], img.Pix[i+2]

	if p.contract.Channels == 1 {
		luma := (299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000
		return [3]uint8{uint8(luma)}
	}
	if p.contract.ChannelOrder == inference.ChannelsBGR {
		return [3]uint8{b, g, r}
	}
	return [3]uint8{r, g, b}
}

func (p *Preprocessor) fillUint8(t *inference.Tensor, o int, ch [3]uint8) {
	for c := 0; c < t.Channels; c++ {
		t.Uint8[o+c] = ch[c]
	}
}

func (p *Preprocessor) fillFloat32(t *inference.Tensor, o int, ch [3]uint8) {
	norm := p.contract.Normalization
	for c := 0; c < t.Channels; c++ {
		t.Float32[o+c] = norm.Apply(c, float32(ch[c]))
	}
}
