// Package opencv implements camera.Source on top of an OpenCV VideoCapture.
package opencv

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/teslashibe/smartbin/pkg/camera"
	"gocv.io/x/gocv"
)

// Source captures frames from a local video device.
type Source struct {
	cfg    camera.Config
	logger *slog.Logger

	vc  *gocv.VideoCapture
	mat gocv.Mat
	seq uint64
}

// New creates an unopened capture source.
func New(cfg camera.Config, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{cfg: cfg, logger: logger}
}

// device converts a numeric device string into the index form VideoCapture
// expects; anything else is passed through as a path or pipeline.
func device(d string) interface{} {
	if id, err := strconv.Atoi(d); err == nil {
		return id
	}
	return d
}

// Open opens the device. Failure is reported as camera.ErrSourceUnavailable.
func (s *Source) Open(ctx context.Context) error {
	vc, err := gocv.OpenVideoCapture(device(s.cfg.Device))
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", camera.ErrSourceUnavailable, s.cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("%w: device %s not opened", camera.ErrSourceUnavailable, s.cfg.Device)
	}

	if s.cfg.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
	}
	if s.cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))
	}

	s.vc = vc
	s.mat = gocv.NewMat()

	s.logger.Info("camera opened",
		"device", s.cfg.Device,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
	)
	return nil
}

// Next reads one frame. A failed read on a device that is still open is a
// dropped frame; a failed read on a device that reports itself closed means
// the source is gone.
func (s *Source) Next(ctx context.Context) (camera.Frame, error) {
	if s.vc == nil {
		return camera.Frame{}, camera.ErrNotOpen
	}

	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		if !s.vc.IsOpened() {
			return camera.Frame{}, camera.ErrSourceUnavailable
		}
		return camera.Frame{}, camera.ErrFrameDropped
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return camera.Frame{}, fmt.Errorf("%w: convert: %v", camera.ErrFrameDropped, err)
	}

	s.seq++
	return camera.Frame{Image: img, Seq: s.seq, CapturedAt: time.Now()}, nil
}

// Close releases the device.
func (s *Source) Close() error {
	if s.vc == nil {
		return nil
	}
	s.mat.Close()
	err := s.vc.Close()
	s.vc = nil
	return err
}

var _ camera.Source = (*Source)(nil)
