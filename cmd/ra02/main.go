// ra02 talks to an SX1278 (RA-02) LoRa module on a Linux SPI bus.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/michcald/ra02"
	"github.com/michcald/ra02/timeout"
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] SPIDEV help|spitest|init|send|recv [TIMEOUT_MS|BYTES...]\n", os.Args[0])
	fmt.Fprintln(out, "  help    - Shows this message")
	fmt.Fprintln(out, "  spitest - Reads the version register over SPI")
	fmt.Fprintln(out, "  init    - Initializes the module")
	fmt.Fprintln(out, "  send    - Sends the given bytes as one packet")
	fmt.Fprintln(out, "  recv    - Waits TIMEOUT_MS for one packet and prints it")
	fmt.Fprintln(out, "Flags:")
	flag.PrintDefaults()
}

func mainImpl() error {
	configPath := flag.String("config", "", "JSON5 radio configuration file")
	backendName := flag.String("backend", "periph", "SPI backend: "+strings.Join(backendNames(), "|"))
	resetPin := flag.Int("reset", 0, "GPIO number wired to NRESET, 0 for none")
	clockHz := flag.Int("clock", 0, "SPI clock in Hz")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Usage = usage
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if flag.NArg() < 2 {
		usage()
		return errors.New("insufficient arguments")
	}
	spidev, command, args := flag.Arg(0), flag.Arg(1), flag.Args()[2:]

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *resetPin != 0 {
		cfg.ResetPin = *resetPin
	}
	if *clockHz != 0 {
		cfg.SPIClockHz = *clockHz
	}
	if cfg.SPIClockHz == 0 {
		cfg.SPIClockHz = defaultSPIClockHz
	}

	b, ok := backends[*backendName]
	if !ok {
		return fmt.Errorf("unknown backend %q, try -help", *backendName)
	}

	switch command {
	case "help":
		usage()
		return nil
	case "spitest":
		return spiTest(b, spidev, cfg)
	case "init":
		return withDevice(b, spidev, cfg, func(dev *ra02.Device) error {
			logrus.Infof("RA-02 initialized: %s", dev)
			return nil
		})
	case "send":
		packet, err := parseBytes(args)
		if err != nil {
			return err
		}
		return withDevice(b, spidev, cfg, func(dev *ra02.Device) error {
			if err := dev.Send(packet); err != nil {
				return fmt.Errorf("failed to send packet: %w", err)
			}
			logrus.Info("Packet sent")
			return nil
		})
	case "recv":
		if len(args) != 1 {
			usage()
			return errors.New("expected TIMEOUT_MS")
		}
		ms, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", args[0], err)
		}
		return withDevice(b, spidev, cfg, func(dev *ra02.Device) error {
			buf := make([]byte, ra02.MaxPacketSize)
			n, err := dev.Receive(buf, timeout.New(time.Duration(ms)*time.Millisecond))
			if err != nil {
				return fmt.Errorf("recv: %w", err)
			}
			fmt.Println(formatPacket(buf[:n]))
			logrus.Debugf("RSSI %d dBm", dev.LastRSSIdBm())
			return nil
		})
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func spiTest(b backend, spidev string, cfg fileConfig) error {
	conn, closeFn, err := b.openRaw(spidev, cfg.SPIClockHz)
	if err != nil {
		return err
	}
	defer closeFn()

	version, err := ra02.ReadVersion(conn)
	if err != nil {
		return err
	}
	fmt.Printf("Result: 0x%02x\n", version)
	if version != ra02.ChipVersion {
		return fmt.Errorf("unexpected version 0x%02x, want 0x%02x", version, ra02.ChipVersion)
	}
	return nil
}

// withDevice initializes the radio, runs fn and closes the radio again.
func withDevice(b backend, spidev string, cfg fileConfig, fn func(dev *ra02.Device) error) error {
	rc, err := cfg.radioConfig()
	if err != nil {
		return err
	}
	dev, err := b.open(spidev, cfg.SPIClockHz, cfg.ResetPin, rc)
	if err != nil {
		return err
	}
	defer dev.Close()
	return fn(dev)
}

// parseBytes converts command line arguments into a packet.
// Each argument is one byte in decimal, 0x hex or 0 octal notation.
func parseBytes(args []string) ([]byte, error) {
	if len(args) > ra02.MaxPayloadSize {
		return nil, fmt.Errorf("%d bytes given, at most %d fit in a packet", len(args), ra02.MaxPayloadSize)
	}
	packet := make([]byte, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %q: %w", arg, err)
		}
		packet = append(packet, byte(v))
	}
	return packet, nil
}

func formatPacket(p []byte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d]:", len(p))
	for _, b := range p {
		fmt.Fprintf(&sb, " %02x", b)
	}
	return sb.String()
}

func main() {
	if err := mainImpl(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
