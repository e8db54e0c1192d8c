//go:build !tinygo

package ra02

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	defaultSpiBusPath = "/dev/spidev0.0"
	defaultSpiClockHz = 1000000
)

// periphPin drives NRESET through a periph.io GPIO.
type periphPin struct {
	gpio.PinOut
}

func (p *periphPin) Out(l Level) error {
	level := gpio.Low
	if l == High {
		level = gpio.High
	}
	return p.PinOut.Out(level)
}

// Config holds the configuration for the Linux/periph.io driver.
type Config struct {
	RadioConfig
	// ResetPin is the GPIO number (BCM numbering) wired to NRESET.
	// Optional. Zero means the chip is not reset on init.
	ResetPin int
	// SpiBusPath is the spidev node or periph.io port name.
	// Defaults to "/dev/spidev0.0".
	SpiBusPath string
	// SpiClockHz is the SPI clock in Hz. The SX1278 accepts up to 10MHz.
	// Defaults to 1MHz.
	SpiClockHz int
}

// openPeriphPort initializes the periph.io host drivers and connects to an
// SPI port in mode 0 with 8 bit words.
func openPeriphPort(path string, clockHz int) (spi.PortCloser, spi.Conn, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph.io host init: %w", err)
	}
	if path == "" {
		path = defaultSpiBusPath
	}
	if clockHz == 0 {
		clockHz = defaultSpiClockHz
	}
	port, err := spireg.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open SPI port %s: %w", path, err)
	}
	conn, err := port.Connect(physic.Frequency(clockHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("connect SPI port %s: %w", path, err)
	}
	return port, conn, nil
}

// resetPin looks up GPIO<n> and parks it high so the chip is not held in reset.
func resetPin(n int) (Pin, error) {
	if n == 0 {
		return nil, nil
	}
	name := fmt.Sprintf("GPIO%d", n)
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("reset pin %s not found", name)
	}
	if err := pin.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("drive reset pin %s: %w", name, err)
	}
	return &periphPin{PinOut: pin}, nil
}

// New opens the SPI port with periph.io, resets and configures the radio.
// The port is released by Device.Close.
func New(c Config) (*Device, error) {
	port, conn, err := openPeriphPort(c.SpiBusPath, c.SpiClockHz)
	if err != nil {
		return nil, err
	}

	reset, err := resetPin(c.ResetPin)
	if err != nil {
		port.Close()
		return nil, err
	}

	dev, err := NewWithHardware(HardwareConfig{RadioConfig: c.RadioConfig, Reset: reset}, conn)
	if err != nil {
		port.Close()
		return nil, err
	}
	dev.port = port
	return dev, nil
}

// OpenSPI opens an SPI connection with periph.io without touching the radio.
// The returned closer releases the port. It is meant for wiring checks with ReadVersion.
func OpenSPI(path string, clockHz int) (SPI, func() error, error) {
	port, conn, err := openPeriphPort(path, clockHz)
	if err != nil {
		return nil, nil, err
	}
	return conn, port.Close, nil
}
