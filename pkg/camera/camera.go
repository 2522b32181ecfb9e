// Package camera provides the frame source feeding the classification loop.
//
// A Source is opened once and then polled for frames. Failing to open is
// reported as ErrSourceUnavailable; a failed single read on an open device
// is reported as ErrFrameDropped so the caller can skip that cycle.
package camera

import (
	"context"
	"image"
	"time"
)

// Frame is one captured image. Frames carry no identity beyond their
// sequence number and are consumed once by the preprocessor.
type Frame struct {
	Image      image.Image
	Seq        uint64
	CapturedAt time.Time
}

// Bounds returns the frame's pixel bounds, or an empty rectangle when the
// frame holds no image.
func (f Frame) Bounds() image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

// Source yields frames on demand.
type Source interface {
	// Open prepares the device. It must be called once before Next.
	Open(ctx context.Context) error

	// Next blocks until a frame is available.
	Next(ctx context.Context) (Frame, error)

	// Close releases the device.
	Close() error
}

// Config holds capture configuration.
type Config struct {
	// Device is the capture device index or path ("0", "/dev/video0").
	Device string `yaml:"device" json:"device" mapstructure:"device"`

	// Width and Height request a capture resolution. Zero leaves the
	// driver default in place.
	Width  int `yaml:"width" json:"width" mapstructure:"width"`
	Height int `yaml:"height" json:"height" mapstructure:"height"`
}

// DefaultConfig returns the configuration used on the bin: the first
// attached camera at its native resolution.
func DefaultConfig() Config {
	return Config{
		Device: "0",
		Width:  640,
		Height: 480,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() []string {
	var errs []string
	if c.Device == "" {
		errs = append(errs, "camera device must not be empty")
	}
	if c.Width < 0 || c.Height < 0 {
		errs = append(errs, "camera width and height must not be negative")
	}
	return errs
}
