// Package labels maps classifier output indices to class names.
package labels

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrIndexOutOfRange means the model produced an index with no label.
	// It signals a model/label file mismatch and is not recoverable.
	ErrIndexOutOfRange = errors.New("labels: index out of range")

	// ErrEmpty is returned when a label list holds no names.
	ErrEmpty = errors.New("labels: empty label list")
)

// Resolver is an immutable, ordered label list.
type Resolver struct {
	names []string
}

// New builds a resolver from names. The slice is copied.
func New(names []string) (*Resolver, error) {
	if len(names) == 0 {
		return nil, ErrEmpty
	}
	return &Resolver{names: append([]string(nil), names...)}, nil
}

// Load reads a newline-delimited label file.
func Load(path string) (*Resolver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	r, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse reads one label per line. Trailing blank lines are dropped and
// CRLF endings are tolerated; blank lines in the middle are kept so line
// numbers keep matching model indices.
func Parse(r io.Reader) (*Resolver, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		names = append(names, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}

	for len(names) > 0 && names[len(names)-1] == "" {
		names = names[:len(names)-1]
	}
	return New(names)
}

// Resolve returns the name for index i.
func (r *Resolver) Resolve(i int) (string, error) {
	if i < 0 || i >= len(r.names) {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(r.names))
	}
	return r.names[i], nil
}

// Len returns the number of labels.
func (r *Resolver) Len() int {
	return len(r.names)
}

// Names returns a copy of the label list.
func (r *Resolver) Names() []string {
	return append([]string(nil), r.names...)
}
