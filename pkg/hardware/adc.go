package hardware

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SysfsADC reads an Industrial I/O raw channel, e.g.
// /sys/bus/iio/devices/iio:device0/in_voltage0_raw, and scales it to 8 bits.
type SysfsADC struct {
	path string
	bits int
}

// NewSysfsADC creates an ADC reader for a raw IIO value with the given resolution
func NewSysfsADC(path string, bits int) *SysfsADC {
	return &SysfsADC{path: path, bits: bits}
}

// Initialize checks that the channel is readable
func (a *SysfsADC) Initialize() error {
	if a.bits < 1 || a.bits > 24 {
		return fmt.Errorf("unsupported ADC resolution %d bits", a.bits)
	}
	if _, err := a.Read(); err != nil {
		return err
	}
	return nil
}

// Close is a no-op
func (a *SysfsADC) Close() error {
	return nil
}

// Read returns the current reading reduced to its 8 most significant bits
func (a *SysfsADC) Read() (uint8, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read ADC: %w", err)
	}

	raw, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid ADC reading %q: %w", strings.TrimSpace(string(data)), err)
	}

	max := uint64(1)<<uint(a.bits) - 1
	if raw > max {
		raw = max
	}
	if a.bits >= 8 {
		return uint8(raw >> uint(a.bits-8)), nil
	}
	return uint8(raw << uint(8-a.bits)), nil
}
