package ra02

// Mode is an SX1278 operating mode as written to RegOpMode.
type Mode byte

const (
	// ModeSleep is the low-power mode. FIFO is not accessible.
	ModeSleep Mode = 0x00
	// ModeStandby keeps the crystal running; FIFO and registers are accessible.
	ModeStandby Mode = 0x01
	// ModeTx transmits the FIFO content once, then falls back to Standby.
	ModeTx Mode = 0x03
	// ModeRxContinuous receives until told otherwise.
	ModeRxContinuous Mode = 0x05
	// ModeRxSingle receives one packet, then falls back to Standby.
	ModeRxSingle Mode = 0x06
)

// modeLongRange selects the LoRa modem. It is always set by setMode.
const modeLongRange = 0x80

func (m Mode) String() string {
	switch m {
	case ModeSleep:
		return "SLEEP"
	case ModeStandby:
		return "STDBY"
	case ModeTx:
		return "TX"
	case ModeRxContinuous:
		return "RX_C"
	case ModeRxSingle:
		return "RX_S"
	default:
		return "unknown"
	}
}

// setMode transitions the chip to m. The chip enforces transition legality,
// the driver only guarantees the LoRa prefix is present.
// Call with lock held.
func (d *Device) setMode(m Mode) error {
	d.logger.Debug("goto op mode " + m.String())
	if err := d.writeRegister(RegOpMode, modeLongRange|byte(m)); err != nil {
		return err
	}
	d.mode = m
	return nil
}

// Mode returns the last operating mode successfully written to the chip.
// This method is concurrent safe.
func (d *Device) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Sleep puts the radio into Sleep mode.
// This method is concurrent safe.
func (d *Device) Sleep() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setMode(ModeSleep)
}

// Standby puts the radio into Standby mode.
// This method is concurrent safe.
func (d *Device) Standby() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setMode(ModeStandby)
}
