package ra02

import (
	"fmt"
	"time"
)

// CodingRate is the LoRa forward error correction rate.
type CodingRate byte

const (
	// CodingRate4_5 adds one parity bit per four data bits
	CodingRate4_5 CodingRate = iota + 1
	// CodingRate4_6 adds two parity bits per four data bits
	CodingRate4_6
	// CodingRate4_7 adds three parity bits per four data bits
	CodingRate4_7
	// CodingRate4_8 adds four parity bits per four data bits
	CodingRate4_8
)

func (c CodingRate) String() string {
	switch c {
	case CodingRate4_5:
		return "4/5"
	case CodingRate4_6:
		return "4/6"
	case CodingRate4_7:
		return "4/7"
	case CodingRate4_8:
		return "4/8"
	default:
		return "unknown"
	}
}

const (
	minPowerDB = 1
	maxPowerDB = 20

	minSpreadingFactor = 6
	maxSpreadingFactor = 12

	minOCPMilliAmps = 45
	maxOCPMilliAmps = 240
)

func clamp[T ~uint8 | ~uint32](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// frequencyRegister converts kHz into the 24 bit Frf value for a 32MHz crystal.
// Frf = F * 2^19 / Fxosc, computed on whole MHz.
func frequencyRegister(khz uint32) uint32 {
	return ((khz / 1000) << 19) >> 5
}

// ocpTrim converts an over current threshold in mA into the OcpTrim field.
// Imax = 45 + 5*OcpTrim up to 120mA, Imax = -30 + 10*OcpTrim above.
func ocpTrim(mA uint8) byte {
	current := uint32(clamp(mA, minOCPMilliAmps, maxOCPMilliAmps))
	if current <= 120 {
		return byte((current - 45) / 5)
	}
	return byte((current + 30) / 10)
}

// SetFrequency sets the carrier frequency in kHz.
// Each of the three frequency registers needs 5ms to settle, so the call blocks for 15ms.
// This method is concurrent safe.
func (d *Device) SetFrequency(khz uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setFrequency(khz)
}

func (d *Device) setFrequency(khz uint32) error {
	d.logger.Debug(fmt.Sprintf("set frequency %d kHz", khz))

	frf := frequencyRegister(khz)
	for _, w := range []struct {
		reg Register
		val byte
	}{
		{RegFrfMsb, byte(frf >> 16)},
		{RegFrfMid, byte(frf >> 8)},
		{RegFrfLsb, byte(frf)},
	} {
		if err := d.writeRegister(w.reg, w.val); err != nil {
			return err
		}
		time.Sleep(freqSettleDelay)
	}
	d.config.FrequencyKHz = khz
	return nil
}

// SetPower sets the output power in dB. Range: 1 to 20.
// The hardware only offers 11, 14, 17 and 20dB; the request is mapped
// through PowerTable.
// This method is concurrent safe.
func (d *Device) SetPower(db uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setPower(db)
}

func (d *Device) setPower(db uint8) error {
	if db < minPowerDB || db > maxPowerDB {
		return fmt.Errorf("%w: %w: power %d dB, range is %d to %d", ErrPkg, ErrInvalidArgument, db, minPowerDB, maxPowerDB)
	}
	d.logger.Debug(fmt.Sprintf("set power %d dB", db))

	code := uint32(db)
	if v, ok := PowerTable.Forward(code); ok {
		code = v
	}
	if err := d.writeRegister(RegPaConfig, byte(code)); err != nil {
		return err
	}
	time.Sleep(powerSettleDelay)
	d.config.PowerDB = db
	return nil
}

// Power reads back the output power. The result is the lowest dB value of
// the PowerTable range that produced the register value, not necessarily
// the value passed to SetPower: 0xF6 (any request of 1 to 13 dB) reads back
// as 1, not 11. A register value absent from the table is returned as is.
// This method is concurrent safe.
func (d *Device) Power() (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	code, err := d.readRegister(RegPaConfig)
	if err != nil {
		return 0, err
	}
	db := uint32(code)
	if v, ok := PowerTable.Reverse(db); ok {
		db = v
	}
	return uint8(db), nil
}

// SetBandwidth sets the signal bandwidth in Hz, rounded down to the nearest
// hardware bandwidth. Values outside 1..999999 are clamped.
// This method is concurrent safe.
func (d *Device) SetBandwidth(hz uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setBandwidth(hz)
}

func (d *Device) setBandwidth(hz uint32) error {
	d.logger.Debug(fmt.Sprintf("set bandwidth %d Hz", hz))

	code, ok := BandwidthTable.Forward(clamp(hz, minBandwidthHz, maxBandwidthHz))
	if !ok {
		return fmt.Errorf("%w: %w: bandwidth %d Hz", ErrPkg, ErrInvalidArgument, hz)
	}
	mc1, err := d.readRegister(RegModemConfig1)
	if err != nil {
		return err
	}
	if err := d.writeRegister(RegModemConfig1, (mc1&_MC1_LOW_NIBBLE)|byte(code)<<_MC1_BW_SHIFT); err != nil {
		return err
	}
	d.config.BandwidthHz = hz
	return nil
}

// SetCodingRate sets the forward error correction rate.
// This method is concurrent safe.
func (d *Device) SetCodingRate(cr CodingRate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setCodingRate(cr)
}

func (d *Device) setCodingRate(cr CodingRate) error {
	if cr < CodingRate4_5 || cr > CodingRate4_8 {
		return fmt.Errorf("%w: %w: coding rate %d", ErrPkg, ErrInvalidArgument, cr)
	}
	d.logger.Debug("set coding rate " + cr.String())

	mc1, err := d.readRegister(RegModemConfig1)
	if err != nil {
		return err
	}
	if err := d.writeRegister(RegModemConfig1, (mc1&^_MC1_CR_MASK)|byte(cr)<<_MC1_CR_SHIFT); err != nil {
		return err
	}
	d.config.CodingRate = cr
	return nil
}

// SetSpreadingFactor sets the spreading factor, clamped to 6..12.
// This method is concurrent safe.
func (d *Device) SetSpreadingFactor(sf uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setSpreadingFactor(sf)
}

func (d *Device) setSpreadingFactor(sf uint8) error {
	sf = clamp(sf, minSpreadingFactor, maxSpreadingFactor)
	d.logger.Debug(fmt.Sprintf("set spreading factor %d", sf))

	var optimize, threshold byte = _DETECT_OPTIMIZE_SF7_12, _DETECT_THRESHOLD_SF7_12
	if sf == 6 {
		optimize, threshold = _DETECT_OPTIMIZE_SF6, _DETECT_THRESHOLD_SF6
	}
	if err := d.writeRegister(RegDetectOptimize, optimize); err != nil {
		return err
	}
	if err := d.writeRegister(RegDetectionThresh, threshold); err != nil {
		return err
	}

	mc2, err := d.readRegister(RegModemConfig2)
	if err != nil {
		return err
	}
	if err := d.writeRegister(RegModemConfig2, (mc2&_MC2_LOW_NIBBLE)|sf<<_MC2_SF_SHIFT); err != nil {
		return err
	}
	d.config.SpreadingFactor = sf
	return nil
}

// SetPreambleLength sets the preamble length in symbols.
// This method is concurrent safe.
func (d *Device) SetPreambleLength(length uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setPreambleLength(length)
}

func (d *Device) setPreambleLength(length uint16) error {
	d.logger.Debug(fmt.Sprintf("set preamble %d", length))

	if err := d.writeRegister(RegPreambleMsb, byte(length>>8)); err != nil {
		return err
	}
	if err := d.writeRegister(RegPreambleLsb, byte(length)); err != nil {
		return err
	}
	d.config.PreambleLength = length
	return nil
}

// SetSyncWord sets the LoRa sync word. 0x34 is reserved for LoRaWAN networks.
// This method is concurrent safe.
func (d *Device) SetSyncWord(sw byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setSyncWord(sw)
}

func (d *Device) setSyncWord(sw byte) error {
	d.logger.Debug(fmt.Sprintf("set sync word 0x%02X", sw))

	if err := d.writeRegister(RegSyncWord, sw); err != nil {
		return err
	}
	time.Sleep(syncSettleDelay)
	d.config.SyncWord = sw
	return nil
}

// SetBaudRate is not supported by the LoRa modem; the bit rate follows from
// bandwidth, spreading factor and coding rate.
func (d *Device) SetBaudRate(baud uint32) error {
	d.logger.Debug(fmt.Sprintf("set baud rate %d", baud))
	return fmt.Errorf("%w: %w: baud rate", ErrPkg, ErrNotImplemented)
}

// SetCRC enables or disables payload CRC.
// This method is concurrent safe.
func (d *Device) SetCRC(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setCRC(on)
}

func (d *Device) setCRC(on bool) error {
	d.logger.Debug(fmt.Sprintf("set crc %v", on))

	mc2, err := d.readRegister(RegModemConfig2)
	if err != nil {
		return err
	}
	if on {
		mc2 |= _MC2_RX_CRC_ON
	} else {
		mc2 &^= _MC2_RX_CRC_ON
	}
	if err := d.writeRegister(RegModemConfig2, mc2); err != nil {
		return err
	}
	d.config.EnableCRC = on
	return nil
}

// SetImplicitHeaderMode switches between implicit (no header) and explicit header mode.
// This method is concurrent safe.
func (d *Device) SetImplicitHeaderMode(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setImplicitHeaderMode(on)
}

func (d *Device) setImplicitHeaderMode(on bool) error {
	d.logger.Debug(fmt.Sprintf("set implicit header mode %v", on))

	mc1, err := d.readRegister(RegModemConfig1)
	if err != nil {
		return err
	}
	if on {
		mc1 |= _MC1_IMPLICIT_HEADER
	} else {
		mc1 &^= _MC1_IMPLICIT_HEADER
	}
	return d.writeRegister(RegModemConfig1, mc1)
}

// SetRxSymbolTimeout sets the single receive timeout in symbols (10 bits).
// This method is concurrent safe.
func (d *Device) SetRxSymbolTimeout(symbols uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setRxSymbolTimeout(symbols)
}

func (d *Device) setRxSymbolTimeout(symbols uint16) error {
	d.logger.Debug(fmt.Sprintf("set rx symbol timeout %d", symbols))

	mc2, err := d.readRegister(RegModemConfig2)
	if err != nil {
		return err
	}
	msb := byte(symbols>>8) & _MC2_SYMB_TIMEOUT_MASK
	if err := d.writeRegister(RegModemConfig2, (mc2&^_MC2_SYMB_TIMEOUT_MASK)|msb); err != nil {
		return err
	}
	return d.writeRegister(RegSymbTimeoutLsb, byte(symbols))
}

// SetOverCurrentProtection enables over current protection at the given
// threshold in mA, clamped to 45..240.
// This method is concurrent safe.
func (d *Device) SetOverCurrentProtection(mA uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setOverCurrentProtection(mA)
}

func (d *Device) setOverCurrentProtection(mA uint8) error {
	d.logger.Debug(fmt.Sprintf("set ocp %d mA", mA))

	if err := d.writeRegister(RegOcp, _OCP_ON|(ocpTrim(mA)&_OCP_TRIM_MASK)); err != nil {
		return err
	}
	d.config.OCPMilliAmps = mA
	return nil
}

// SetLNA writes the LNA gain and boost settings.
// This method is concurrent safe.
func (d *Device) SetLNA(lna byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(RegLna, lna)
}

// LastRSSI returns the raw RSSI sampled when the last valid header was seen.
// This method is concurrent safe.
func (d *Device) LastRSSI() int8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRSSI
}

// LastRSSIdBm converts LastRSSI to dBm for the configured frequency band.
// This method is concurrent safe.
func (d *Device) LastRSSIdBm() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw := int(uint8(d.lastRSSI))
	if d.config.FrequencyKHz < rfMidBandThresholdKHz {
		return raw - rssiOffsetLF
	}
	return raw - rssiOffsetHF
}
