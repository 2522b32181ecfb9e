package servo

import (
	"fmt"
	"log"
	"log/slog"
	"math"
	"sync"

	firmata "github.com/kraman/go-firmata"
)

// MaxFirmataPin is the highest pin an analog (PWM/servo) message can
// address. The pin number shares a byte with the 0xE0 command nibble.
const MaxFirmataPin = 15

// board is the part of a Firmata client the driver uses.
type board interface {
	ServoMode(pin uint8) error
	AnalogWrite(pin uint, value byte) error
	Close()
}

// firmataBoard adapts *firmata.FirmataClient to board.
type firmataBoard struct {
	client *firmata.FirmataClient
}

func (b firmataBoard) ServoMode(pin uint8) error {
	return b.client.SetPinMode(pin, firmata.Servo)
}

func (b firmataBoard) AnalogWrite(pin uint, value byte) error {
	return b.client.AnalogWrite(pin, value)
}

func (b firmataBoard) Close() {
	b.client.Close()
}

// FirmataDriver drives hobby servos through a board running StandardFirmata.
type FirmataDriver struct {
	mu     sync.Mutex
	board  board
	logger *slog.Logger
}

// OpenFirmata connects to the board on port. The call blocks until the
// board answers; NewDriver bounds it with Config.ConnectTimeout.
func OpenFirmata(port string, baud int, logger *slog.Logger) (*FirmataDriver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := firmata.NewClient(port, baud)
	if err != nil {
		return nil, fmt.Errorf("%w: firmata on %s: %v", ErrHardwareUnavailable, port, err)
	}
	client.Log = libraryLogger(logger)

	logger.Info("servo board connected", "port", port, "baud", baud)
	return newFirmataDriver(firmataBoard{client: client}, logger), nil
}

// libraryLogger routes go-firmata's own log output into slog at debug level.
func libraryLogger(logger *slog.Logger) *log.Logger {
	return slog.NewLogLogger(logger.With("lib", "firmata").Handler(), slog.LevelDebug)
}

func newFirmataDriver(b board, logger *slog.Logger) *FirmataDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &FirmataDriver{board: b, logger: logger}
}

func checkPin(pin int) error {
	if pin < 0 || pin > MaxFirmataPin {
		return fmt.Errorf("%w: pin %d outside firmata servo range 0-%d", ErrInvalidConfig, pin, MaxFirmataPin)
	}
	return nil
}

// Attach puts pin in servo mode.
func (d *FirmataDriver) Attach(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.board.ServoMode(uint8(pin)); err != nil {
		return fmt.Errorf("servo mode on pin %d: %w", pin, err)
	}
	return nil
}

// Write sends the angle. Commands are centred on 0; Firmata servo pins take
// 0-180, so the value is shifted by 90 and clamped.
func (d *FirmataDriver) Write(pin int, angle float64) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.board.AnalogWrite(uint(pin), firmataAngle(angle)); err != nil {
		return fmt.Errorf("analog write on pin %d: %w", pin, err)
	}
	return nil
}

// Close closes the serial connection.
func (d *FirmataDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.board.Close()
	return nil
}

func firmataAngle(angle float64) byte {
	v := math.Round(angle + 90)
	if v < 0 {
		v = 0
	}
	if v > 180 {
		v = 180
	}
	return byte(v)
}

var _ Driver = (*FirmataDriver)(nil)
