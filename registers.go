package ra02

// Register is an SX1278 register address in LoRa mode.
type Register byte

// SX1278 Register Addresses
const (
	RegFifo              Register = 0x00
	RegOpMode            Register = 0x01
	RegFrfMsb            Register = 0x06
	RegFrfMid            Register = 0x07
	RegFrfLsb            Register = 0x08
	RegPaConfig          Register = 0x09
	RegOcp               Register = 0x0B
	RegLna               Register = 0x0C
	RegFifoAddrPtr       Register = 0x0D
	RegFifoTxBaseAddr    Register = 0x0E
	RegFifoRxBaseAddr    Register = 0x0F
	RegFifoRxCurrentAddr Register = 0x10
	RegIrqFlags          Register = 0x12
	RegRxNbBytes         Register = 0x13
	RegPktSnrValue       Register = 0x19
	RegPktRssiValue      Register = 0x1A
	RegRssiValue         Register = 0x1B
	RegModemConfig1      Register = 0x1D
	RegModemConfig2      Register = 0x1E
	RegSymbTimeoutLsb    Register = 0x1F
	RegPreambleMsb       Register = 0x20
	RegPreambleLsb       Register = 0x21
	RegPayloadLength     Register = 0x22
	RegModemConfig3      Register = 0x26
	RegDetectOptimize    Register = 0x31
	RegDetectionThresh   Register = 0x37
	RegSyncWord          Register = 0x39
	RegDioMapping1       Register = 0x40
	RegVersion           Register = 0x42
)

// Register access framing
const (
	_WRITE_BIT = 0x80
	_ADDR_MASK = 0x7F
)

// RegIrqFlags bits. Writing a 1 clears the flag.
const (
	IrqCadDetected     = 1 << 0
	IrqFhssChange      = 1 << 1
	IrqCadDone         = 1 << 2
	IrqTxDone          = 1 << 3
	IrqValidHeader     = 1 << 4
	IrqPayloadCrcError = 1 << 5
	IrqRxDone          = 1 << 6
	IrqRxTimeout       = 1 << 7
)

// RegDioMapping1 values. DIO0 occupies bits 7:6.
const (
	_DIO0_RX_DONE = 0 << 6
	_DIO0_TX_DONE = 1 << 6
)

// RegModemConfig1 fields
const (
	_MC1_BW_SHIFT        = 4
	_MC1_LOW_NIBBLE      = 0x0F
	_MC1_CR_MASK         = 0x0E
	_MC1_CR_SHIFT        = 1
	_MC1_IMPLICIT_HEADER = 1 << 0
)

// RegModemConfig2 fields
const (
	_MC2_SF_SHIFT          = 4
	_MC2_LOW_NIBBLE        = 0x0F
	_MC2_RX_CRC_ON         = 1 << 2
	_MC2_SYMB_TIMEOUT_MASK = 0x03
)

// RegOcp fields
const (
	_OCP_ON        = 1 << 5
	_OCP_TRIM_MASK = 0x1F
)

// Detection tuning for spreading factor 6 versus 7..12.
const (
	_DETECT_OPTIMIZE_SF6     = 0xC5
	_DETECT_OPTIMIZE_SF7_12  = 0xC3
	_DETECT_THRESHOLD_SF6    = 0x0C
	_DETECT_THRESHOLD_SF7_12 = 0x0A
)

// ChipVersion is the value of RegVersion on a genuine SX1276/77/78.
const ChipVersion = 0x12

// MaxPacketSize is the size of the driver's bus scratch buffer.
// One byte is taken by the address phase, so MaxPayloadSize bytes
// can be uploaded to the FIFO in a single burst.
const (
	MaxPacketSize  = 64
	MaxPayloadSize = MaxPacketSize - 1
)

// RSSI offsets for the low frequency (below 525 MHz) and high frequency ports.
const (
	rfMidBandThresholdKHz = 525000
	rssiOffsetLF          = 164
	rssiOffsetHF          = 157
)
