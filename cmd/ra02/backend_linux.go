package main

import "github.com/michcald/ra02"

func init() {
	backends["spidev"] = backend{
		open: func(spidev string, clockHz, resetPin int, rc ra02.RadioConfig) (*ra02.Device, error) {
			return ra02.NewSpidev(ra02.SpidevConfig{
				RadioConfig: rc,
				ResetPin:    resetPin,
				SpiBusPath:  spidev,
				SpiClockHz:  clockHz,
			})
		},
		openRaw: ra02.OpenSpidev,
	}
}
