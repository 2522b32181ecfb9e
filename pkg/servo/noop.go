package servo

// NoopDriver accepts every command and does nothing. It keeps the
// registry's contract intact on hosts without servo hardware.
type NoopDriver struct{}

// NewNoopDriver returns a driver that ignores all commands.
func NewNoopDriver() *NoopDriver {
	return &NoopDriver{}
}

// Attach implements Driver.
func (NoopDriver) Attach(pin int) error { return nil }

// Write implements Driver.
func (NoopDriver) Write(pin int, angle float64) error { return nil }

// Close implements Driver.
func (NoopDriver) Close() error { return nil }

var _ Driver = (*NoopDriver)(nil)
