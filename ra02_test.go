package ra02

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"
)

// --- Mocks ---

// fakeChip models the SX1278 register file behind an SPI bus: plain
// registers, the FIFO with its address pointer and the write-1-to-clear
// IRQ register.
type fakeChip struct {
	regs [128]byte
	fifo [256]byte

	tx   []byte   // every byte sent, in order
	txns [][]byte // every transaction

	// irqQueue is OR-ed into RegIrqFlags, one entry per read.
	irqQueue []byte
	// onMode is called after every RegOpMode write.
	onMode func(c *fakeChip, m Mode)
	// failOn makes Tx fail for matching transactions.
	failOn func(txn []byte) error
}

func newFakeChip() *fakeChip {
	c := &fakeChip{}
	c.regs[RegVersion] = ChipVersion
	return c
}

func (c *fakeChip) Tx(w, r []byte) error {
	txn := append([]byte(nil), w...)
	c.tx = append(c.tx, txn...)
	c.txns = append(c.txns, txn)
	if c.failOn != nil {
		if err := c.failOn(txn); err != nil {
			return err
		}
	}

	out := make([]byte, len(txn))
	reg := Register(txn[0] & _ADDR_MASK)
	if txn[0]&_WRITE_BIT != 0 {
		switch reg {
		case RegFifo:
			for _, b := range txn[1:] {
				c.fifo[c.regs[RegFifoAddrPtr]] = b
				c.regs[RegFifoAddrPtr]++
			}
		case RegIrqFlags:
			c.regs[RegIrqFlags] &^= txn[1]
		default:
			c.regs[reg] = txn[1]
			if reg == RegOpMode && c.onMode != nil {
				c.onMode(c, Mode(txn[1]&^modeLongRange))
			}
		}
	} else {
		switch reg {
		case RegFifo:
			out[1] = c.fifo[c.regs[RegFifoAddrPtr]]
			c.regs[RegFifoAddrPtr]++
		case RegIrqFlags:
			if len(c.irqQueue) > 0 {
				c.regs[RegIrqFlags] |= c.irqQueue[0]
				c.irqQueue = c.irqQueue[1:]
			}
			out[1] = c.regs[reg]
		default:
			out[1] = c.regs[reg]
		}
	}
	copy(r, out)
	return nil
}

// resetTrace forgets the transactions recorded so far.
func (c *fakeChip) resetTrace() {
	c.tx = nil
	c.txns = nil
}

// writes returns the values written to reg, in order.
func (c *fakeChip) writes(reg Register) []byte {
	var vals []byte
	for _, txn := range c.txns {
		if txn[0] == byte(reg)|_WRITE_BIT && len(txn) == 2 {
			vals = append(vals, txn[1])
		}
	}
	return vals
}

// modes returns the operating modes written, in order.
func (c *fakeChip) modes() []Mode {
	var modes []Mode
	for _, v := range c.writes(RegOpMode) {
		if v&modeLongRange != 0 {
			modes = append(modes, Mode(v&^modeLongRange))
		}
	}
	return modes
}

type mockPin struct {
	levels []Level
}

func (m *mockPin) Out(l Level) error {
	m.levels = append(m.levels, l)
	return nil
}

type mockCloser struct {
	closed bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return nil
}

var errBus = errors.New("spi: bus fault")

func testConfig() RadioConfig {
	return RadioConfig{
		Logger:       NopLogger(),
		SendTimeout:  30 * time.Millisecond,
		PollInterval: -1,
	}
}

func newTestDevice(t *testing.T, chip *fakeChip) *Device {
	t.Helper()
	dev, err := NewWithHardware(HardwareConfig{RadioConfig: testConfig()}, chip)
	if err != nil {
		t.Fatalf("NewWithHardware failed: %v", err)
	}
	chip.resetTrace()
	return dev
}

// --- Tests ---

func TestInitialization(t *testing.T) {
	chip := newFakeChip()
	reset := &mockPin{}

	dev, err := NewWithHardware(HardwareConfig{RadioConfig: testConfig(), Reset: reset}, chip)
	if err != nil {
		t.Fatalf("NewWithHardware failed: %v", err)
	}

	// Reset pulses low, then releases
	if len(reset.levels) != 2 || reset.levels[0] != Low || reset.levels[1] != High {
		t.Errorf("Expected reset pulse [Low High], got %v", reset.levels)
	}

	// The very first write drops to FSK sleep so LongRangeMode can be set
	if got := chip.writes(RegOpMode); len(got) == 0 || got[0] != 0x00 {
		t.Errorf("Expected first RegOpMode write 0x00, got % X", got)
	}

	expected := []struct {
		name string
		op   []byte
	}{
		{"LoRa sleep", []byte{0x81, 0x80}},
		{"FRF MSB 433MHz", []byte{0x86, 0x6C}},
		{"FRF MID 433MHz", []byte{0x87, 0x40}},
		{"FRF LSB 433MHz", []byte{0x88, 0x00}},
		{"PA config 17dB", []byte{0x89, PaConfig17dB}},
		{"OCP 120mA", []byte{0x8B, 0x2F}},
		{"LNA", []byte{0x8C, 0x23}},
		{"symbol timeout LSB", []byte{0x9F, 0xFF}},
		{"preamble MSB", []byte{0xA0, 0x00}},
		{"preamble LSB", []byte{0xA1, 10}},
		{"standby", []byte{0x81, 0x81}},
	}
	for _, e := range expected {
		if !bytes.Contains(chip.tx, e.op) {
			t.Errorf("Expected SPI write for %s (% X), not found in TX buffer", e.name, e.op)
		}
	}

	// SF6, 125kHz, CR 4/7, explicit header, symbol timeout MSB 0x2, CRC off
	if mc1 := chip.regs[RegModemConfig1]; mc1 != 0x76 {
		t.Errorf("Expected RegModemConfig1 0x76, got 0x%02X", mc1)
	}
	if mc2 := chip.regs[RegModemConfig2]; mc2 != 0x62 {
		t.Errorf("Expected RegModemConfig2 0x62, got 0x%02X", mc2)
	}

	if dev.Mode() != ModeStandby {
		t.Errorf("Expected Standby after init, got %v", dev.Mode())
	}
}

func TestInitializationWrongVersion(t *testing.T) {
	for _, version := range []byte{0x00, 0xFF, 0x22} {
		chip := newFakeChip()
		chip.regs[RegVersion] = version

		_, err := NewWithHardware(HardwareConfig{RadioConfig: testConfig()}, chip)
		if !errors.Is(err, ErrNoResponse) {
			t.Errorf("version 0x%02X: expected ErrNoResponse, got %v", version, err)
		}
		if len(chip.writes(RegOpMode)) != 0 {
			t.Errorf("version 0x%02X: expected no mode change on a foreign chip", version)
		}
	}
}

func TestInitializationTransportFailure(t *testing.T) {
	chip := newFakeChip()
	chip.failOn = func(txn []byte) error { return errBus }

	_, err := NewWithHardware(HardwareConfig{RadioConfig: testConfig()}, chip)
	if !errors.Is(err, errBus) {
		t.Fatalf("Expected transport error to propagate, got %v", err)
	}
	if len(chip.txns) != 1 {
		t.Errorf("Expected init to stop after the first failed transaction, got %d", len(chip.txns))
	}
}

func TestInitializationSyncWord(t *testing.T) {
	chip := newFakeChip()
	cfg := testConfig()
	cfg.SyncWord = 0x34
	cfg.EnableCRC = true

	if _, err := NewWithHardware(HardwareConfig{RadioConfig: cfg}, chip); err != nil {
		t.Fatalf("NewWithHardware failed: %v", err)
	}
	if chip.regs[RegSyncWord] != 0x34 {
		t.Errorf("Expected sync word 0x34, got 0x%02X", chip.regs[RegSyncWord])
	}
	if chip.regs[RegModemConfig2]&_MC2_RX_CRC_ON == 0 {
		t.Errorf("Expected CRC on, RegModemConfig2 0x%02X", chip.regs[RegModemConfig2])
	}
}

func TestRegisterFraming(t *testing.T) {
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	if err := dev.writeRegister(RegSyncWord, 0x12); err != nil {
		t.Fatalf("writeRegister failed: %v", err)
	}
	if !bytes.Equal(chip.txns[0], []byte{0xB9, 0x12}) {
		t.Errorf("Expected write transaction B9 12, got % X", chip.txns[0])
	}

	chip.regs[RegPktRssiValue] = 0x5A
	v, err := dev.readRegister(RegPktRssiValue)
	if err != nil {
		t.Fatalf("readRegister failed: %v", err)
	}
	if !bytes.Equal(chip.txns[1], []byte{0x1A, 0x00}) {
		t.Errorf("Expected read transaction 1A 00, got % X", chip.txns[1])
	}
	if v != 0x5A {
		t.Errorf("Expected 0x5A, got 0x%02X", v)
	}

	version, err := ReadVersion(chip)
	if err != nil || version != ChipVersion {
		t.Errorf("ReadVersion = 0x%02X, %v", version, err)
	}
}

func TestWriteBurstBoundary(t *testing.T) {
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	payload := bytes.Repeat([]byte{0x55}, MaxPayloadSize)
	if err := dev.writeBurst(RegFifo, payload); err != nil {
		t.Fatalf("writeBurst of %d bytes failed: %v", MaxPayloadSize, err)
	}
	txn := chip.txns[0]
	if len(txn) != MaxPacketSize || txn[0] != 0x80 || !bytes.Equal(txn[1:], payload) {
		t.Errorf("Expected single %d byte transaction 80 55..., got % X", MaxPacketSize, txn)
	}

	chip.resetTrace()
	err := dev.writeBurst(RegFifo, make([]byte, MaxPacketSize))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for %d bytes, got %v", MaxPacketSize, err)
	}
	if len(chip.txns) != 0 {
		t.Errorf("Expected no transaction for oversized burst, got %d", len(chip.txns))
	}
}

func TestSetPowerBounds(t *testing.T) {
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	for _, db := range []uint8{0, 21, 255} {
		if err := dev.SetPower(db); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SetPower(%d): expected ErrInvalidArgument, got %v", db, err)
		}
	}
	if len(chip.writes(RegPaConfig)) != 0 {
		t.Errorf("Expected no RegPaConfig write for rejected power")
	}

	floors := map[uint8]bool{1: true, 14: true, 17: true, 20: true}
	for db := uint8(1); db <= 20; db++ {
		if err := dev.SetPower(db); err != nil {
			t.Fatalf("SetPower(%d) failed: %v", db, err)
		}
		got, err := dev.Power()
		if err != nil {
			t.Fatalf("Power() failed: %v", err)
		}
		if !floors[got] {
			t.Errorf("SetPower(%d): Power() = %d, not a table floor", db, got)
		}
		want, _ := PowerTable.Forward(uint32(db))
		if uint32(chip.regs[RegPaConfig]) != want {
			t.Errorf("SetPower(%d): RegPaConfig = 0x%02X, want 0x%02X", db, chip.regs[RegPaConfig], want)
		}
	}
}

func TestPowerLowestRangeFloor(t *testing.T) {
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	for _, db := range []uint8{1, 5, 11, 13} {
		if err := dev.SetPower(db); err != nil {
			t.Fatalf("SetPower(%d) failed: %v", db, err)
		}
		if chip.regs[RegPaConfig] != PaConfig11dB {
			t.Errorf("SetPower(%d): RegPaConfig = 0x%02X, want 0x%02X", db, chip.regs[RegPaConfig], PaConfig11dB)
		}
		got, err := dev.Power()
		if err != nil {
			t.Fatalf("Power() failed: %v", err)
		}
		if got != 1 {
			t.Errorf("SetPower(%d): Power() = %d, want 1", db, got)
		}
	}
}

func TestPowerUnknownCode(t *testing.T) {
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	// Codes absent from the table are passed through
	chip.regs[RegPaConfig] = 0x4F
	got, err := dev.Power()
	if err != nil || got != 0x4F {
		t.Errorf("Power() = 0x%02X, %v, want 0x4F", got, err)
	}
}

func TestSetFrequency(t *testing.T) {
	cases := []struct {
		khz uint32
		frf []byte
	}{
		{433000, []byte{0x6C, 0x40, 0x00}},
		{433999, []byte{0x6C, 0x40, 0x00}}, // sub-MHz part is dropped
		{868000, []byte{0xD9, 0x00, 0x00}},
		{915000, []byte{0xE4, 0xC0, 0x00}},
	}
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	for _, c := range cases {
		chip.resetTrace()
		start := time.Now()
		if err := dev.SetFrequency(c.khz); err != nil {
			t.Fatalf("SetFrequency(%d) failed: %v", c.khz, err)
		}
		if elapsed := time.Since(start); elapsed < 3*freqSettleDelay {
			t.Errorf("SetFrequency(%d) returned after %v, want at least %v", c.khz, elapsed, 3*freqSettleDelay)
		}
		got := []byte{chip.regs[RegFrfMsb], chip.regs[RegFrfMid], chip.regs[RegFrfLsb]}
		if !bytes.Equal(got, c.frf) {
			t.Errorf("SetFrequency(%d): FRF = % X, want % X", c.khz, got, c.frf)
		}
		if len(chip.txns) != 3 {
			t.Errorf("SetFrequency(%d): expected 3 transactions, got %d", c.khz, len(chip.txns))
		}
	}
}

func TestSetBandwidth(t *testing.T) {
	cases := []struct {
		hz   uint32
		code byte
	}{
		{0, Bandwidth7_8kHz},
		{7800, Bandwidth7_8kHz},
		{10400, Bandwidth10_4kHz},
		{62500, Bandwidth62_5kHz},
		{124999, Bandwidth62_5kHz},
		{125000, Bandwidth125kHz},
		{249999, Bandwidth125kHz},
		{250000, Bandwidth250kHz},
		{500000, Bandwidth500kHz},
		{2000000, Bandwidth500kHz},
	}
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	for _, c := range cases {
		t.Run(fmt.Sprintf("%dHz", c.hz), func(t *testing.T) {
			// Low nibble holds coding rate and header mode and must survive
			chip.regs[RegModemConfig1] = 0xFB
			if err := dev.SetBandwidth(c.hz); err != nil {
				t.Fatalf("SetBandwidth failed: %v", err)
			}
			want := c.code<<4 | 0x0B
			if got := chip.regs[RegModemConfig1]; got != want {
				t.Errorf("RegModemConfig1 = 0x%02X, want 0x%02X", got, want)
			}
		})
	}
}

func TestSetBandwidthReadFailure(t *testing.T) {
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	chip.failOn = func(txn []byte) error {
		if txn[0] == byte(RegModemConfig1) {
			return errBus
		}
		return nil
	}
	if err := dev.SetBandwidth(125000); !errors.Is(err, errBus) {
		t.Fatalf("Expected read failure to propagate, got %v", err)
	}
	if len(chip.writes(RegModemConfig1)) != 0 {
		t.Errorf("Expected no RegModemConfig1 write after failed read")
	}
}

func TestSetSpreadingFactor(t *testing.T) {
	cases := []struct {
		sf       uint8
		want     byte
		optimize byte
	}{
		{0, 6, _DETECT_OPTIMIZE_SF6},
		{6, 6, _DETECT_OPTIMIZE_SF6},
		{7, 7, _DETECT_OPTIMIZE_SF7_12},
		{12, 12, _DETECT_OPTIMIZE_SF7_12},
		{13, 12, _DETECT_OPTIMIZE_SF7_12},
	}
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	for _, c := range cases {
		chip.regs[RegModemConfig2] = 0x97
		if err := dev.SetSpreadingFactor(c.sf); err != nil {
			t.Fatalf("SetSpreadingFactor(%d) failed: %v", c.sf, err)
		}
		if got := chip.regs[RegModemConfig2]; got != c.want<<4|0x07 {
			t.Errorf("SetSpreadingFactor(%d): RegModemConfig2 = 0x%02X, want 0x%02X", c.sf, got, c.want<<4|0x07)
		}
		if got := chip.regs[RegDetectOptimize]; got != c.optimize {
			t.Errorf("SetSpreadingFactor(%d): RegDetectOptimize = 0x%02X, want 0x%02X", c.sf, got, c.optimize)
		}
	}
}

func TestSetOverCurrentProtection(t *testing.T) {
	cases := []struct {
		mA  uint8
		reg byte
	}{
		{0, 0x20},
		{45, 0x20},
		{100, 0x2B},
		{120, 0x2F},
		{125, 0x2F},
		{130, 0x30},
		{200, 0x37},
		{240, 0x3B},
		{255, 0x3B},
	}
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	for _, c := range cases {
		t.Run(fmt.Sprintf("%dmA", c.mA), func(t *testing.T) {
			if err := dev.SetOverCurrentProtection(c.mA); err != nil {
				t.Fatalf("SetOverCurrentProtection failed: %v", err)
			}
			if got := chip.regs[RegOcp]; got != c.reg {
				t.Errorf("RegOcp = 0x%02X, want 0x%02X", got, c.reg)
			}
		})
	}
}

func TestModemBitfields(t *testing.T) {
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	chip.regs[RegModemConfig2] = 0x70
	if err := dev.SetCRC(true); err != nil {
		t.Fatal(err)
	}
	if chip.regs[RegModemConfig2] != 0x74 {
		t.Errorf("SetCRC(true): RegModemConfig2 = 0x%02X, want 0x74", chip.regs[RegModemConfig2])
	}
	if err := dev.SetCRC(false); err != nil {
		t.Fatal(err)
	}
	if chip.regs[RegModemConfig2] != 0x70 {
		t.Errorf("SetCRC(false): RegModemConfig2 = 0x%02X, want 0x70", chip.regs[RegModemConfig2])
	}

	chip.regs[RegModemConfig1] = 0x72
	if err := dev.SetImplicitHeaderMode(true); err != nil {
		t.Fatal(err)
	}
	if chip.regs[RegModemConfig1] != 0x73 {
		t.Errorf("SetImplicitHeaderMode(true): RegModemConfig1 = 0x%02X, want 0x73", chip.regs[RegModemConfig1])
	}
	if err := dev.SetImplicitHeaderMode(false); err != nil {
		t.Fatal(err)
	}
	if chip.regs[RegModemConfig1] != 0x72 {
		t.Errorf("SetImplicitHeaderMode(false): RegModemConfig1 = 0x%02X, want 0x72", chip.regs[RegModemConfig1])
	}

	if err := dev.SetCodingRate(CodingRate4_5); err != nil {
		t.Fatal(err)
	}
	if chip.regs[RegModemConfig1] != 0x72 {
		t.Errorf("SetCodingRate(4/5): RegModemConfig1 = 0x%02X, want 0x72", chip.regs[RegModemConfig1])
	}
	if err := dev.SetCodingRate(CodingRate4_8); err != nil {
		t.Fatal(err)
	}
	if chip.regs[RegModemConfig1] != 0x78 {
		t.Errorf("SetCodingRate(4/8): RegModemConfig1 = 0x%02X, want 0x78", chip.regs[RegModemConfig1])
	}
	if err := dev.SetCodingRate(0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetCodingRate(0): expected ErrInvalidArgument, got %v", err)
	}

	chip.regs[RegModemConfig2] = 0x74
	if err := dev.SetRxSymbolTimeout(0x1A5); err != nil {
		t.Fatal(err)
	}
	if chip.regs[RegModemConfig2] != 0x75 || chip.regs[RegSymbTimeoutLsb] != 0xA5 {
		t.Errorf("SetRxSymbolTimeout(0x1A5): MC2 = 0x%02X LSB = 0x%02X", chip.regs[RegModemConfig2], chip.regs[RegSymbTimeoutLsb])
	}

	if err := dev.SetPreambleLength(0x1234); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(chip.tx, []byte{0xA0, 0x12, 0xA1, 0x34}) {
		t.Errorf("SetPreambleLength didn't write MSB then LSB: % X", chip.tx)
	}

	if err := dev.SetSyncWord(0x42); err != nil {
		t.Fatal(err)
	}
	if chip.regs[RegSyncWord] != 0x42 {
		t.Errorf("SetSyncWord: RegSyncWord = 0x%02X, want 0x42", chip.regs[RegSyncWord])
	}

	if err := dev.SetLNA(0x20); err != nil {
		t.Fatal(err)
	}
	if chip.regs[RegLna] != 0x20 {
		t.Errorf("SetLNA: RegLna = 0x%02X, want 0x20", chip.regs[RegLna])
	}
}

func TestSetBaudRate(t *testing.T) {
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	if err := dev.SetBaudRate(9600); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Expected ErrNotImplemented, got %v", err)
	}
	if len(chip.txns) != 0 {
		t.Errorf("Expected no bus traffic, got % X", chip.tx)
	}
}

func TestModeTransitions(t *testing.T) {
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	if err := dev.Sleep(); err != nil {
		t.Fatal(err)
	}
	if err := dev.Standby(); err != nil {
		t.Fatal(err)
	}
	if got := chip.writes(RegOpMode); !bytes.Equal(got, []byte{0x80, 0x81}) {
		t.Errorf("Expected RegOpMode writes 80 81, got % X", got)
	}

	// A failed write leaves the recorded mode alone
	chip.failOn = func(txn []byte) error { return errBus }
	if err := dev.Sleep(); !errors.Is(err, errBus) {
		t.Fatalf("Expected errBus, got %v", err)
	}
	if dev.Mode() != ModeStandby {
		t.Errorf("Expected mode to stay Standby, got %v", dev.Mode())
	}
}

func TestClose(t *testing.T) {
	chip := newFakeChip()
	dev := newTestDevice(t, chip)
	port := &mockCloser{}
	dev.port = port

	if err := dev.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !port.closed {
		t.Error("Expected SPI port to be closed")
	}
	if dev.Mode() != ModeSleep {
		t.Errorf("Expected Sleep after Close, got %v", dev.Mode())
	}
}

func TestLastRSSIdBm(t *testing.T) {
	chip := newFakeChip()
	dev := newTestDevice(t, chip)

	dev.lastRSSI = int8(-128) // raw 0x80
	if got := dev.LastRSSIdBm(); got != 128-164 {
		t.Errorf("433MHz: LastRSSIdBm = %d, want %d", got, 128-164)
	}
	dev.config.FrequencyKHz = 868000
	if got := dev.LastRSSIdBm(); got != 128-157 {
		t.Errorf("868MHz: LastRSSIdBm = %d, want %d", got, 128-157)
	}
}
