// Package report prints classification results for an operator watching
// the bin.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/muesli/termenv"
	"github.com/teslashibe/smartbin/pkg/dispatch"
)

// Console writes one "Predicted: <label>" line per classified frame.
// Labels bound to an actuator are highlighted.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	profile termenv.Profile
	mapped  map[string]bool
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithProfile overrides the detected colour profile.
func WithProfile(p termenv.Profile) ConsoleOption {
	return func(c *Console) {
		c.profile = p
	}
}

// WithMapped marks which labels drive an actuator.
func WithMapped(labels ...string) ConsoleOption {
	return func(c *Console) {
		for _, l := range labels {
			c.mapped[l] = true
		}
	}
}

// NewConsole creates a console reporter writing to w, or stdout when w is
// nil.
func NewConsole(w io.Writer, opts ...ConsoleOption) *Console {
	if w == nil {
		w = os.Stdout
	}
	c := &Console{
		w:       w,
		profile: termenv.NewOutput(w).Profile,
		mapped:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report implements dispatch.Reporter.
func (c *Console) Report(ctx context.Context, r dispatch.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	label := c.profile.String(r.Label)
	if c.mapped[r.Label] {
		label = label.Foreground(c.profile.Color("#34d399")).Bold()
	} else {
		label = label.Foreground(c.profile.Color("#9ca3af"))
	}

	_, err := fmt.Fprintf(c.w, "Predicted: %s\n", label)
	return err
}

var _ dispatch.Reporter = (*Console)(nil)
