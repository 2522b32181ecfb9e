// Package overlay shows the camera frame with the predicted label in a
// desktop window. It is a debug aid: it only reads frames and labels and
// never touches actuators.
package overlay

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"

	"github.com/teslashibe/smartbin/pkg/dispatch"
	"gocv.io/x/gocv"
)

// DefaultTitle is the window title.
const DefaultTitle = "smartbin"

var labelColour = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// Window renders results with OpenCV's highgui. Pressing q in the window
// asks the dispatcher to stop.
type Window struct {
	mu     sync.Mutex
	win    *gocv.Window
	logger *slog.Logger
}

// New opens the window.
func New(title string, logger *slog.Logger) *Window {
	if title == "" {
		title = DefaultTitle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Window{win: gocv.NewWindow(title), logger: logger}
}

// Report implements dispatch.Reporter.
func (w *Window) Report(ctx context.Context, r dispatch.Result) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if r.Frame.Image == nil {
		return nil
	}
	mat, err := gocv.ImageToMatRGB(r.Frame.Image)
	if err != nil {
		return fmt.Errorf("overlay: convert frame %d: %w", r.Frame.Seq, err)
	}
	defer mat.Close()

	if err := gocv.PutText(&mat, r.Label, image.Pt(10, 30), gocv.FontHersheySimplex, 1, labelColour, 2); err != nil {
		w.logger.Debug("overlay text failed", "error", err)
	}

	w.win.IMShow(mat)
	if key := w.win.WaitKey(1); IsQuit(key) {
		return dispatch.ErrStop
	}
	return nil
}

// Close destroys the window.
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.win.Close()
}

// IsQuit reports whether a WaitKey result is the quit key.
func IsQuit(key int) bool {
	return key&0xff == 'q' || key&0xff == 'Q'
}

var _ dispatch.Reporter = (*Window)(nil)
