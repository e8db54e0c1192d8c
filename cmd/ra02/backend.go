package main

import (
	"sort"

	"github.com/michcald/ra02"
)

const defaultSPIClockHz = 1000000

// backend opens the radio through one SPI implementation.
type backend struct {
	open    func(spidev string, clockHz, resetPin int, rc ra02.RadioConfig) (*ra02.Device, error)
	openRaw func(spidev string, clockHz int) (ra02.SPI, func() error, error)
}

var backends = map[string]backend{
	"periph": {
		open: func(spidev string, clockHz, resetPin int, rc ra02.RadioConfig) (*ra02.Device, error) {
			return ra02.New(ra02.Config{
				RadioConfig: rc,
				ResetPin:    resetPin,
				SpiBusPath:  spidev,
				SpiClockHz:  clockHz,
			})
		},
		openRaw: ra02.OpenSPI,
	},
}

func backendNames() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
