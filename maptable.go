package ra02

// RangeEntry maps the closed interval [From, To] onto a register Value.
type RangeEntry struct {
	From  uint32
	To    uint32
	Value uint32
}

// RangeTable is an ordered list of RangeEntry. Lookups scan it in order and
// the first matching entry wins. An all-zero entry terminates the scan.
type RangeTable []RangeEntry

func (e RangeEntry) terminator() bool {
	return e.From == 0 && e.To == 0
}

// Forward returns the Value of the first entry whose interval contains v.
// ok is false when no interval contains v, in which case the caller's
// output must be left as it was.
func (t RangeTable) Forward(v uint32) (value uint32, ok bool) {
	for _, e := range t {
		if e.terminator() {
			break
		}
		if v >= e.From && v <= e.To {
			return e.Value, true
		}
	}
	return 0, false
}

// Reverse returns the lower bound of the first entry whose Value equals
// value. The mapping is lossy: several intervals may share one value and
// only the floor of the first of them is ever returned.
func (t RangeTable) Reverse(value uint32) (from uint32, ok bool) {
	for _, e := range t {
		if e.terminator() {
			break
		}
		if e.Value == value {
			return e.From, true
		}
	}
	return 0, false
}

// RegPaConfig values: PA_BOOST output, MaxPower 7, OutputPower 6..15.
const (
	PaConfig11dB = 0xF6
	PaConfig14dB = 0xF9
	PaConfig17dB = 0xFC
	PaConfig20dB = 0xFF
)

// Bandwidth register codes (RegModemConfig1 bits 7:4).
const (
	Bandwidth7_8kHz   = 0
	Bandwidth10_4kHz  = 1
	Bandwidth15_6kHz  = 2
	Bandwidth20_8kHz  = 3
	Bandwidth31_25kHz = 4
	Bandwidth41_7kHz  = 5
	Bandwidth62_5kHz  = 6
	Bandwidth125kHz   = 7
	Bandwidth250kHz   = 8
	Bandwidth500kHz   = 9
)

// PowerTable maps output power in dB to RegPaConfig.
var PowerTable = RangeTable{
	{From: 1, To: 13, Value: PaConfig11dB},
	{From: 14, To: 16, Value: PaConfig14dB},
	{From: 17, To: 19, Value: PaConfig17dB},
	{From: 20, To: 99, Value: PaConfig20dB},
}

// BandwidthTable maps a signal bandwidth in Hz to the highest hardware
// bandwidth not above it. Anything below 10.4 kHz uses 7.8 kHz.
var BandwidthTable = RangeTable{
	{From: 1, To: 7799, Value: Bandwidth7_8kHz},
	{From: 7800, To: 10399, Value: Bandwidth7_8kHz},
	{From: 10400, To: 15599, Value: Bandwidth10_4kHz},
	{From: 15600, To: 20799, Value: Bandwidth15_6kHz},
	{From: 20800, To: 31199, Value: Bandwidth20_8kHz},
	{From: 31200, To: 41699, Value: Bandwidth31_25kHz},
	{From: 41700, To: 62499, Value: Bandwidth41_7kHz},
	{From: 62500, To: 124999, Value: Bandwidth62_5kHz},
	{From: 125000, To: 249999, Value: Bandwidth125kHz},
	{From: 250000, To: 499999, Value: Bandwidth250kHz},
	{From: 500000, To: 999999, Value: Bandwidth500kHz},
}

const (
	minBandwidthHz = 1
	maxBandwidthHz = 999999
)
