package ra02

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Defaults applied by NewWithHardware to zero-valued RadioConfig fields.
const (
	DefaultFrequencyKHz    = 433000
	DefaultPowerDB         = 17
	DefaultBandwidthHz     = 125000
	DefaultSpreadingFactor = 6
	DefaultCodingRate      = CodingRate4_7
	DefaultPreambleLength  = 10
	DefaultOCPMilliAmps    = 120
	DefaultLNA             = 0x23
	DefaultRxSymbolTimeout = 0x2FF
	DefaultSendTimeout     = 500 * time.Millisecond
	DefaultPollInterval    = time.Millisecond
)

// Hardware settle times.
const (
	freqSettleDelay  = 5 * time.Millisecond
	powerSettleDelay = 10 * time.Millisecond
	syncSettleDelay  = 10 * time.Millisecond
	resetPulse       = 10 * time.Millisecond
	resetRecovery    = 5 * time.Millisecond
)

type RadioConfig struct {
	// FrequencyKHz is the carrier frequency in kHz.
	// Only whole MHz are representable, the remainder is truncated.
	// Defaults to 433000 if not provided.
	FrequencyKHz uint32
	// PowerDB is the output power in dB.
	// Range: 1 to 20.
	// Defaults to 17 if not provided.
	PowerDB uint8
	// BandwidthHz is the signal bandwidth in Hz. It is rounded down to the
	// nearest hardware bandwidth (7.8kHz to 500kHz).
	// Defaults to 125000 if not provided.
	BandwidthHz uint32
	// SpreadingFactor is clamped to 6..12.
	// Defaults to 6 if not provided.
	SpreadingFactor uint8
	// CodingRate sets the forward error correction rate.
	// Defaults to CodingRate4_7 if not provided.
	CodingRate CodingRate
	// PreambleLength is the preamble length in symbols.
	// Defaults to 10 if not provided.
	PreambleLength uint16
	// SyncWord is written when non-zero. The chip resets to 0x12.
	SyncWord byte
	// EnableCRC turns on payload CRC generation and checking.
	EnableCRC bool
	// OCPMilliAmps is the over current protection trip point, clamped to 45..240.
	// Defaults to 120 if not provided.
	OCPMilliAmps uint8
	// SendTimeout bounds how long Send waits for TX done.
	// Defaults to 500ms if not provided.
	SendTimeout time.Duration
	// PollInterval is the pause between two IRQ register polls.
	// Defaults to 1ms if not provided. A negative value disables the pause.
	PollInterval time.Duration
	// LogRegisterOps logs every register transaction at debug level.
	LogRegisterOps bool
	// Logger receives driver events. Defaults to the package logger.
	Logger Logger
}

type HardwareConfig struct {
	RadioConfig
	// Reset is the NRESET pin interface.
	// Optional. If not provided, the chip is not reset on init.
	Reset Pin
}

// Device is an SX1278 radio on an SPI bus.
//
// At most one operation runs against a Device at a time: every exported
// method holds the device lock for its whole duration, including the
// polling loops of Send and Receive.
type Device struct {
	config   HardwareConfig
	conn     SPI
	logger   Logger
	port     io.Closer
	mu       sync.Mutex
	mode     Mode
	irqFlags byte
	lastRSSI int8
	scratch  [MaxPacketSize]byte
}

func (c *RadioConfig) applyDefaults() {
	if c.FrequencyKHz == 0 {
		c.FrequencyKHz = DefaultFrequencyKHz
	}
	if c.PowerDB == 0 {
		c.PowerDB = DefaultPowerDB
	}
	if c.BandwidthHz == 0 {
		c.BandwidthHz = DefaultBandwidthHz
	}
	if c.SpreadingFactor == 0 {
		c.SpreadingFactor = DefaultSpreadingFactor
	}
	if c.CodingRate == 0 {
		c.CodingRate = DefaultCodingRate
	}
	if c.PreambleLength == 0 {
		c.PreambleLength = DefaultPreambleLength
	}
	if c.OCPMilliAmps == 0 {
		c.OCPMilliAmps = DefaultOCPMilliAmps
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Logger == nil {
		c.Logger = globalLogger
	}
}

// NewWithHardware creates and initializes a new SX1278 driver with the provided hardware interfaces.
// It resets the chip, checks its version, switches it to LoRa mode, applies the configuration
// and leaves it in Standby.
// It returns ErrNoResponse when the version register does not identify an SX1278.
func NewWithHardware(c HardwareConfig, conn SPI) (*Device, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: %w: SPI connection not configured", ErrPkg, ErrInvalidArgument)
	}
	c.applyDefaults()
	if c.PowerDB > maxPowerDB {
		return nil, fmt.Errorf("%w: %w: power %d dB, range is %d to %d", ErrPkg, ErrInvalidArgument, c.PowerDB, minPowerDB, maxPowerDB)
	}

	dev := &Device{
		config: c,
		conn:   conn,
		logger: c.Logger,
	}

	dev.logger.Info("Initializing SX1278 SPI communication...")

	if err := dev.reset(); err != nil {
		return nil, err
	}

	version, err := dev.readRegister(RegVersion)
	if err != nil {
		return nil, err
	}
	dev.logger.Debug(fmt.Sprintf("chip version 0x%02X", version))
	if version != ChipVersion {
		return nil, fmt.Errorf("%w: %w: version 0x%02X, want 0x%02X", ErrPkg, ErrNoResponse, version, ChipVersion)
	}

	if err := dev.configure(); err != nil {
		return nil, err
	}

	dev.logger.Info("SX1278 initialized. Ready to operate.")
	return dev, nil
}

// configure applies the device configuration and leaves the chip in Standby.
func (d *Device) configure() error {
	c := &d.config.RadioConfig

	// LongRangeMode can only be changed in Sleep, so drop to FSK sleep first.
	if err := d.writeRegister(RegOpMode, byte(ModeSleep)); err != nil {
		return err
	}
	steps := []func() error{
		func() error { return d.setMode(ModeSleep) },
		func() error { return d.setFrequency(c.FrequencyKHz) },
		func() error { return d.setPower(c.PowerDB) },
		func() error { return d.setOverCurrentProtection(c.OCPMilliAmps) },
		func() error { return d.writeRegister(RegLna, DefaultLNA) },
		func() error { return d.writeRegister(RegModemConfig2, 0) },
		func() error { return d.setImplicitHeaderMode(false) },
		func() error { return d.setRxSymbolTimeout(DefaultRxSymbolTimeout) },
		func() error { return d.setSpreadingFactor(c.SpreadingFactor) },
		func() error { return d.setBandwidth(c.BandwidthHz) },
		func() error { return d.setCodingRate(c.CodingRate) },
		func() error { return d.setPreambleLength(c.PreambleLength) },
		func() error { return d.setCRC(c.EnableCRC) },
	}
	if c.SyncWord != 0 {
		steps = append(steps, func() error { return d.setSyncWord(c.SyncWord) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return d.setMode(ModeStandby)
}

func (d *Device) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return fmt.Sprintf("SX1278(Frequency=%dkHz, Power=%ddB, Bandwidth=%dHz, SF=%d, CR=%s, Preamble=%d, Mode=%s)",
		d.config.FrequencyKHz,
		d.config.PowerDB,
		d.config.BandwidthHz,
		d.config.SpreadingFactor,
		d.config.CodingRate,
		d.config.PreambleLength,
		d.mode,
	)
}

// Close puts the radio to sleep and releases the SPI port, if the driver opened it.
// A failure to sleep is logged; the port is closed regardless.
// This method is concurrent safe.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.setMode(ModeSleep); err != nil {
		d.logger.Warn("Failed to put SX1278 to sleep: " + err.Error())
	} else {
		d.logger.Info("SX1278 put to sleep.")
	}

	if d.port != nil {
		if err := d.port.Close(); err != nil {
			d.logger.Warn("Failed to close SPI port")
			return err
		}
		d.port = nil
		d.logger.Info("SPI bus closed.")
	}
	return nil
}

// Reset pulses the NRESET line, if one is configured.
// The chip comes back in FSK sleep with default register values, so the
// Device must be reconfigured with a fresh NewWithHardware afterwards.
// This method is concurrent safe.
func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reset()
}

func (d *Device) reset() error {
	if d.config.Reset == nil {
		d.logger.Debug("no reset pin, skipping reset")
		return nil
	}
	d.logger.Debug("reset")
	if err := d.config.Reset.Out(Low); err != nil {
		return err
	}
	time.Sleep(resetPulse)
	if err := d.config.Reset.Out(High); err != nil {
		return err
	}
	time.Sleep(resetRecovery)
	return nil
}

// Version reads RegVersion.
// This method is concurrent safe.
func (d *Device) Version() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readRegister(RegVersion)
}

// ReadVersion reads RegVersion over a bare SPI connection, without
// initializing a Device. It is meant for wiring checks.
func ReadVersion(conn SPI) (byte, error) {
	buf := []byte{byte(RegVersion) & _ADDR_MASK, 0}
	if err := conn.Tx(buf, buf); err != nil {
		return 0, err
	}
	return buf[1], nil
}

// --- SX1278 Core Functions (SPI interaction) ---

func (d *Device) spiTransfer(n int) ([]byte, error) {
	// Perform full-duplex transaction on the scratch buffer
	// We use the same slice for read and write
	slice := d.scratch[:n]
	if err := d.conn.Tx(slice, slice); err != nil {
		d.logger.Error("SPI Transfer Error: " + err.Error())
		return nil, err
	}
	return slice, nil
}

func (d *Device) writeRegister(reg Register, val byte) error {
	d.scratch[0] = byte(reg) | _WRITE_BIT
	d.scratch[1] = val
	_, err := d.spiTransfer(2)
	if d.config.LogRegisterOps {
		d.logger.Debug(fmt.Sprintf("write reg=%02X val=%02X err=%v", byte(reg), val, err))
	}
	return err
}

func (d *Device) readRegister(reg Register) (byte, error) {
	d.scratch[0] = byte(reg) & _ADDR_MASK
	d.scratch[1] = 0
	data, err := d.spiTransfer(2)
	if d.config.LogRegisterOps {
		d.logger.Debug(fmt.Sprintf("read reg=%02X err=%v res=% X", byte(reg), err, data))
	}
	if err != nil {
		return 0, err
	}
	// data[0] is clocked out during the address phase
	return data[1], nil
}

// writeBurst uploads data in a single transaction starting at reg.
func (d *Device) writeBurst(reg Register, data []byte) error {
	if len(data) > MaxPayloadSize {
		return fmt.Errorf("%w: %w: burst of %d bytes, limit is %d", ErrPkg, ErrInvalidArgument, len(data), MaxPayloadSize)
	}
	d.scratch[0] = byte(reg) | _WRITE_BIT
	copy(d.scratch[1:], data)
	_, err := d.spiTransfer(1 + len(data))
	return err
}
