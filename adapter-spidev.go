//go:build linux && !tinygo

package ra02

import (
	"fmt"

	"github.com/ecc1/gpio"
	"github.com/ecc1/spi"
)

// spidevConn drives /dev/spidevX.Y directly with SPI_IOC_MESSAGE, without periph.io host drivers.
type spidevConn struct {
	device *spi.Device
}

var (
	_ SPI = (*spidevConn)(nil)
	_ Pin = (*spidevPin)(nil)
)

func (c *spidevConn) Tx(w, r []byte) error {
	// Transfer wants send and receive buffers of equal length
	return c.device.Transfer(w, r[:len(w)])
}

func (c *spidevConn) Close() error {
	return c.device.Close()
}

// spidevPin wraps an ecc1 gpio.OutputPin to satisfy the Pin interface.
type spidevPin struct {
	pin gpio.OutputPin
}

func (p *spidevPin) Out(l Level) error {
	return p.pin.Write(bool(l))
}

// SpidevConfig holds the configuration for the raw spidev driver.
type SpidevConfig struct {
	RadioConfig
	// ResetPin is the sysfs GPIO number wired to NRESET.
	// Optional. If not provided, the chip is not reset on init.
	ResetPin int
	// SpiBusPath is the path to the SPI bus (e.g., "/dev/spidev0.0").
	// Defaults to "/dev/spidev0.0" if not provided.
	SpiBusPath string
	// SpiClockHz is the SPI clock frequency in Hz.
	// Defaults to 1000000 (1MHz) if not provided.
	SpiClockHz int
}

// NewSpidev creates and initializes a new SX1278 driver on a Linux spidev node.
func NewSpidev(c SpidevConfig) (*Device, error) {
	if c.SpiBusPath == "" {
		c.SpiBusPath = defaultSpiBusPath
	}
	if c.SpiClockHz == 0 {
		c.SpiClockHz = defaultSpiClockHz
	}

	device, err := spi.Open(c.SpiBusPath, c.SpiClockHz, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", c.SpiBusPath, err)
	}
	conn := &spidevConn{device: device}

	var resetWrapper Pin
	if c.ResetPin != 0 {
		pin, err := gpio.Output(c.ResetPin, false, true)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to open reset pin %d: %w", c.ResetPin, err)
		}
		resetWrapper = &spidevPin{pin: pin}
	}

	hwConfig := HardwareConfig{
		RadioConfig: c.RadioConfig,
		Reset:       resetWrapper,
	}
	dev, err := NewWithHardware(hwConfig, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	dev.port = conn
	return dev, nil
}

// OpenSpidev opens a spidev node without touching the radio.
// The returned closer releases the node. It is meant for wiring checks with ReadVersion.
func OpenSpidev(path string, clockHz int) (SPI, func() error, error) {
	device, err := spi.Open(path, clockHz, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	conn := &spidevConn{device: device}
	return conn, conn.Close, nil
}
