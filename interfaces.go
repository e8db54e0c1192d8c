package ra02

// Level represents the logical level of a pin (Low or High).
type Level bool

const (
	Low  Level = false
	High Level = true
)

// SPI represents a generic SPI connection.
type SPI interface {
	// Tx sends w and reads into r.
	// len(r) must be >= len(w). w and r may be the same slice.
	Tx(w, r []byte) error
}

// Pin represents a generic GPIO output pin.
// The driver only uses it to pulse the radio's NRESET line.
type Pin interface {
	// Out sets the pin as output with the given level.
	Out(l Level) error
}

// Deadline reports whether an operation has run out of time.
// *timeout.Timeout satisfies it.
type Deadline interface {
	IsExpired() bool
}
