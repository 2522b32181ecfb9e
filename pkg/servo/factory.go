package servo

import (
	"fmt"
	"log/slog"
	"time"
)

// openFirmata is swapped in tests.
var openFirmata = func(port string, baud int, logger *slog.Logger) (Driver, error) {
	d, err := OpenFirmata(port, baud, logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// NewDriver creates the configured driver. It is called once at startup.
// With BackendAuto an unreachable board is not an error: the no-op driver
// is returned and the condition is logged at info level.
func NewDriver(cfg Config, logger *slog.Logger) (Driver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendNoop:
		logger.Info("servo driver", "backend", BackendNoop)
		return NewNoopDriver(), nil
	case BackendFirmata:
		return connectFirmata(cfg, logger)
	case BackendAuto, "":
		d, err := connectFirmata(cfg, logger)
		if err != nil {
			logger.Info("servo hardware unavailable, lid commands will be ignored",
				"port", cfg.Port,
				"error", err,
			)
			return NewNoopDriver(), nil
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

// connectFirmata bounds the board handshake by cfg.ConnectTimeout. A board
// that answers after the deadline is closed again.
func connectFirmata(cfg Config, logger *slog.Logger) (Driver, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	type result struct {
		d   Driver
		err error
	}
	done := make(chan result, 1)
	go func() {
		d, err := openFirmata(cfg.Port, cfg.Baud, logger)
		done <- result{d, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.d, r.err
	case <-timer.C:
		go func() {
			if r := <-done; r.d != nil {
				r.d.Close()
			}
		}()
		return nil, fmt.Errorf("%w: no firmata answer on %s within %s", ErrHardwareUnavailable, cfg.Port, timeout)
	}
}
