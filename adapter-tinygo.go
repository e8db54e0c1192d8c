//go:build tinygo

package ra02

import (
	"machine"
)

// tinygoPin wraps a machine.Pin to satisfy the Pin interface.
type tinygoPin struct {
	pin machine.Pin
}

func (p *tinygoPin) Out(l Level) error {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.pin.Set(bool(l))
	return nil
}

// tinygoSPI wraps a machine.SPI to satisfy the SPI interface.
type tinygoSPI struct {
	spi *machine.SPI
	cs  machine.Pin
}

func (s *tinygoSPI) Tx(w, r []byte) error {
	s.cs.Low()
	err := s.spi.Tx(w, r)
	s.cs.High()
	return err
}

// Config holds the configuration for the TinyGo driver.
type Config struct {
	RadioConfig
	// SPI is the already configured SPI bus the radio is connected to.
	SPI *machine.SPI
	// CSPin is the chip select pin (NSS).
	CSPin machine.Pin
	// ResetPin is wired to NRESET. Use machine.NoPin when not connected.
	ResetPin machine.Pin
}

// New creates a new SX1278 driver for TinyGo systems.
func New(c Config) (*Device, error) {
	// Configure CS pin as output and set high (inactive)
	c.CSPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	c.CSPin.High()

	var resetWrapper Pin
	if c.ResetPin != machine.NoPin {
		resetWrapper = &tinygoPin{pin: c.ResetPin}
	}

	spiWrapper := &tinygoSPI{spi: c.SPI, cs: c.CSPin}

	return NewWithHardware(HardwareConfig{RadioConfig: c.RadioConfig, Reset: resetWrapper}, spiWrapper)
}
