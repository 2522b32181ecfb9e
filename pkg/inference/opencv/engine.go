// Package opencv runs the classifier through OpenCV's DNN module.
package opencv

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/teslashibe/smartbin/pkg/inference"
	"gocv.io/x/gocv"
)

// Engine is an inference.Engine backed by a gocv.Net.
type Engine struct {
	net      gocv.Net
	contract inference.Contract
	blob     gocv.Mat
	scores   []float32
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
}

// New loads the model, allocates the input blob for the declared contract
// and runs one forward pass on a zero tensor to learn the output length.
func New(cfg inference.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	contract, err := cfg.Contract()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: model file not found: %s", inference.ErrModelLoad, cfg.ModelPath)
	}

	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("%w: failed to load model from %s", inference.ErrModelLoad, cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.ParseNetBackend(cfg.Backend))
	net.SetPreferableTarget(gocv.ParseNetTarget(cfg.Target))

	e := &Engine{
		net:      net,
		contract: contract,
		blob:     gocv.NewMatWithSizes(blobShape(contract), matType(contract.DType)),
		logger:   logger,
	}

	n, err := e.warmUp()
	if err != nil {
		e.Close()
		return nil, err
	}
	e.contract.NumClasses = n
	e.scores = make([]float32, n)

	logger.Info("model loaded",
		"path", cfg.ModelPath,
		"input", fmt.Sprintf("%dx%dx%d", contract.Height, contract.Width, contract.Channels),
		"dtype", contract.DType,
		"layout", contract.Layout,
		"classes", n,
	)
	return e, nil
}

func blobShape(c inference.Contract) []int {
	if c.Layout == inference.LayoutNCHW {
		return []int{1, c.Channels, c.Height, c.Width}
	}
	return []int{1, c.Height, c.Width, c.Channels}
}

func matType(d inference.DType) gocv.MatType {
	if d == inference.DTypeUint8 {
		return gocv.MatTypeCV8U
	}
	return gocv.MatTypeCV32F
}

func (e *Engine) warmUp() (int, error) {
	zero := inference.Tensor{
		Height:   e.contract.Height,
		Width:    e.contract.Width,
		Channels: e.contract.Channels,
		DType:    e.contract.DType,
	}
	if zero.DType == inference.DTypeUint8 {
		zero.Uint8 = make([]uint8, zero.Len())
	} else {
		zero.Float32 = make([]float32, zero.Len())
	}

	if err := e.load(zero); err != nil {
		return 0, err
	}
	out := e.net.Forward("")
	defer out.Close()

	if out.Empty() || out.Total() == 0 {
		return 0, fmt.Errorf("%w: forward pass on a %dx%dx%d %s tensor produced no output",
			inference.ErrContractViolation, zero.Height, zero.Width, zero.Channels, zero.DType)
	}
	return out.Total(), nil
}

// load copies the whole tensor into the preallocated blob so nothing from
// a previous call survives.
func (e *Engine) load(t inference.Tensor) error {
	if e.contract.Layout == inference.LayoutNCHW {
		t = t.CHW()
	}

	switch t.DType {
	case inference.DTypeUint8:
		dst, err := e.blob.DataPtrUint8()
		if err != nil {
			return fmt.Errorf("blob data: %w", err)
		}
		copy(dst, t.Uint8)
	case inference.DTypeFloat32:
		dst, err := e.blob.DataPtrFloat32()
		if err != nil {
			return fmt.Errorf("blob data: %w", err)
		}
		copy(dst, t.Float32)
	}

	e.net.SetInput(e.blob, "")
	return nil
}

// Contract implements inference.Engine.
func (e *Engine) Contract() inference.Contract {
	return e.contract
}

// Classify implements inference.Engine.
func (e *Engine) Classify(t inference.Tensor) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, inference.ErrClosed
	}
	if err := t.Validate(e.contract); err != nil {
		return 0, err
	}
	if err := e.load(t); err != nil {
		return 0, err
	}

	out := e.net.Forward("")
	defer out.Close()

	if out.Total() != len(e.scores) {
		return 0, fmt.Errorf("%w: model emitted %d scores, expected %d",
			inference.ErrContractViolation, out.Total(), len(e.scores))
	}

	switch out.Type() {
	case gocv.MatTypeCV8U:
		raw, err := out.DataPtrUint8()
		if err != nil {
			return 0, fmt.Errorf("read output: %w", err)
		}
		for i, v := range raw {
			e.scores[i] = float32(v)
		}
	default:
		raw, err := out.DataPtrFloat32()
		if err != nil {
			return 0, fmt.Errorf("read output: %w", err)
		}
		copy(e.scores, raw)
	}

	return inference.Argmax(e.scores), nil
}

// Close releases the network and its buffers.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.blob.Close()
	return e.net.Close()
}

var _ inference.Engine = (*Engine)(nil)
