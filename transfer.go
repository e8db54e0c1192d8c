package ra02

import (
	"fmt"
	"time"

	"github.com/michcald/ra02/timeout"
)

// PollIRQFlags reads RegIrqFlags and writes the value back to clear every
// flag that was set. The flags read are returned.
// This method is concurrent safe.
func (d *Device) PollIRQFlags() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pollIRQFlags()
}

func (d *Device) pollIRQFlags() (byte, error) {
	flags, err := d.readRegister(RegIrqFlags)
	if err != nil {
		return 0, err
	}
	d.irqFlags = flags
	if err := d.writeRegister(RegIrqFlags, flags); err != nil {
		return 0, err
	}
	return flags, nil
}

func (d *Device) pause() {
	if d.config.PollInterval > 0 {
		time.Sleep(d.config.PollInterval)
	}
}

// Send transmits a single packet and waits for the radio to report TX done.
// The payload must hold 1 to MaxPayloadSize bytes.
// Whether the packet went out or not, the radio is put to sleep afterwards.
// It returns ErrTimeout if TX done is not reported within SendTimeout.
// This method is concurrent safe.
func (d *Device) Send(payload []byte) error {
	if len(payload) == 0 || len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %w: payload of %d bytes, range is 1 to %d", ErrPkg, ErrInvalidArgument, len(payload), MaxPayloadSize)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Debug(fmt.Sprintf("send [%d]: % x", len(payload), payload))

	d.irqFlags = 0

	if err := d.setMode(ModeStandby); err != nil {
		return err
	}
	if err := d.writeRegister(RegDioMapping1, _DIO0_TX_DONE); err != nil {
		return err
	}
	base, err := d.readRegister(RegFifoTxBaseAddr)
	if err != nil {
		return err
	}
	if err := d.writeRegister(RegFifoAddrPtr, base); err != nil {
		return err
	}
	if err := d.writeRegister(RegPayloadLength, byte(len(payload))); err != nil {
		return err
	}
	if err := d.writeBurst(RegFifo, payload); err != nil {
		return err
	}
	if err := d.setMode(ModeTx); err != nil {
		return err
	}

	var result error
	t := timeout.New(d.config.SendTimeout)
	for {
		if t.IsExpired() {
			result = fmt.Errorf("%w: %w: no TX done after %v", ErrPkg, ErrTimeout, d.config.SendTimeout)
			break
		}
		flags, err := d.pollIRQFlags()
		if err != nil {
			return err
		}
		if flags&IrqTxDone != 0 {
			break
		}
		d.pause()
	}

	if err := d.setMode(ModeSleep); err != nil {
		return err
	}
	if result != nil {
		d.logger.Warn("send: " + result.Error())
	}
	return result
}

// Receive listens for a single packet until deadline expires.
// The packet is copied into buf and its length is returned. When the
// packet is longer than buf it is silently truncated to len(buf).
// On timeout buf is left untouched and ErrTimeout is returned.
// The radio is put to sleep before Receive returns, unless a bus error
// aborted the operation.
// This method is concurrent safe.
func (d *Device) Receive(buf []byte, deadline Deadline) (int, error) {
	if len(buf) == 0 {
		return 0, fmt.Errorf("%w: %w: empty receive buffer", ErrPkg, ErrInvalidArgument)
	}
	if deadline == nil {
		return 0, fmt.Errorf("%w: %w: no deadline", ErrPkg, ErrInvalidArgument)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Debug(fmt.Sprintf("recv into %d bytes", len(buf)))

	d.irqFlags = 0

	if err := d.setMode(ModeStandby); err != nil {
		return 0, err
	}
	if err := d.writeRegister(RegDioMapping1, _DIO0_RX_DONE); err != nil {
		return 0, err
	}
	if err := d.setMode(ModeRxSingle); err != nil {
		return 0, err
	}

	for {
		if deadline.IsExpired() {
			if err := d.setMode(ModeSleep); err != nil {
				return 0, err
			}
			return 0, fmt.Errorf("%w: %w: no packet received", ErrPkg, ErrTimeout)
		}

		flags, err := d.pollIRQFlags()
		if err != nil {
			return 0, err
		}

		if flags&IrqValidHeader != 0 {
			rssi, err := d.readRegister(RegRssiValue)
			if err != nil {
				return 0, err
			}
			d.lastRSSI = int8(rssi)
		}

		if flags&IrqRxDone != 0 {
			if flags&IrqPayloadCrcError != 0 {
				d.logger.Warn("recv: payload CRC error")
			}
			n, err := d.readPacket(buf)
			if err != nil {
				return 0, err
			}
			d.logger.Debug(fmt.Sprintf("recv [%d]: % x", n, buf[:n]))
			return n, nil
		}

		d.pause()
	}
}

// readPacket drains the last received packet from the FIFO into buf and
// puts the radio to sleep.
// Call with lock held.
func (d *Device) readPacket(buf []byte) (int, error) {
	if err := d.setMode(ModeStandby); err != nil {
		return 0, err
	}
	nb, err := d.readRegister(RegRxNbBytes)
	if err != nil {
		return 0, err
	}
	n := min(int(nb), len(buf))
	if n < int(nb) {
		d.logger.Warn(fmt.Sprintf("recv: packet of %d bytes truncated to %d", nb, n))
	}

	addr, err := d.readRegister(RegFifoRxCurrentAddr)
	if err != nil {
		return 0, err
	}
	if err := d.writeRegister(RegFifoAddrPtr, addr); err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		b, err := d.readRegister(RegFifo)
		if err != nil {
			return 0, err
		}
		buf[i] = b
	}

	if err := d.setMode(ModeSleep); err != nil {
		return 0, err
	}
	return n, nil
}
