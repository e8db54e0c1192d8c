package main

import (
	"fmt"
	"os"
	"time"

	"github.com/flynn/json5"

	"github.com/michcald/ra02"
)

// fileConfig is the JSON5 radio configuration file. Absent fields keep
// the driver defaults.
//
//	{
//	  // 868 MHz band
//	  frequency_khz: 868000,
//	  spreading_factor: 9,
//	  coding_rate: "4/5",
//	  crc: true,
//	}
type fileConfig struct {
	FrequencyKHz    uint32 `json:"frequency_khz"`
	PowerDB         uint8  `json:"power_db"`
	BandwidthHz     uint32 `json:"bandwidth_hz"`
	SpreadingFactor uint8  `json:"spreading_factor"`
	CodingRate      string `json:"coding_rate"`
	PreambleLength  uint16 `json:"preamble_length"`
	SyncWord        uint8  `json:"sync_word"`
	CRC             bool   `json:"crc"`
	OCPMilliAmps    uint8  `json:"ocp_ma"`
	SendTimeoutMs   int    `json:"send_timeout_ms"`
	PollIntervalMs  int    `json:"poll_interval_ms"`
	LogRegisterOps  bool   `json:"log_register_ops"`

	SPIClockHz int `json:"spi_clock_hz"`
	ResetPin   int `json:"reset_pin"`
}

var codingRates = map[string]ra02.CodingRate{
	"4/5": ra02.CodingRate4_5,
	"4/6": ra02.CodingRate4_6,
	"4/7": ra02.CodingRate4_7,
	"4/8": ra02.CodingRate4_8,
}

// loadConfig reads the file at path. An empty path yields the zero config.
func loadConfig(path string) (fileConfig, error) {
	if path == "" {
		return fileConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func parseConfig(data []byte) (fileConfig, error) {
	var cfg fileConfig
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("json5.Unmarshal: %w", err)
	}
	return cfg, nil
}

func (c fileConfig) radioConfig() (ra02.RadioConfig, error) {
	rc := ra02.RadioConfig{
		FrequencyKHz:    c.FrequencyKHz,
		PowerDB:         c.PowerDB,
		BandwidthHz:     c.BandwidthHz,
		SpreadingFactor: c.SpreadingFactor,
		PreambleLength:  c.PreambleLength,
		SyncWord:        c.SyncWord,
		EnableCRC:       c.CRC,
		OCPMilliAmps:    c.OCPMilliAmps,
		SendTimeout:     time.Duration(c.SendTimeoutMs) * time.Millisecond,
		PollInterval:    time.Duration(c.PollIntervalMs) * time.Millisecond,
		LogRegisterOps:  c.LogRegisterOps,
	}
	if c.CodingRate != "" {
		cr, ok := codingRates[c.CodingRate]
		if !ok {
			return ra02.RadioConfig{}, fmt.Errorf("coding_rate %q, want one of 4/5, 4/6, 4/7, 4/8", c.CodingRate)
		}
		rc.CodingRate = cr
	}
	return rc, nil
}
