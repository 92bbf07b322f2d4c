// Package freq converts receive frequencies into DDS tuning words.
package freq

import "fmt"

// Hz is a frequency in hertz. Signed because VFO frequencies for upper
// sideband can go below zero near the bottom of the range.
type Hz int32

// Receive range and board constants
const (
	MinHz Hz = 100000
	MaxHz Hz = 20000000

	DefaultReferenceClockHz = 50000000
	DefaultIntermediateHz   = 5000000
)

// Sideband selects the mixing product the receiver uses.
type Sideband uint8

const (
	LSB Sideband = iota
	USB
)

// String returns the sideband name
func (s Sideband) String() string {
	switch s {
	case LSB:
		return "LSB"
	case USB:
		return "USB"
	default:
		return "UNKNOWN"
	}
}

// Letter returns the single-character indicator used on the display
func (s Sideband) Letter() byte {
	if s == USB {
		return 'U'
	}
	return 'L'
}

// Toggle returns the opposite sideband
func (s Sideband) Toggle() Sideband {
	if s == USB {
		return LSB
	}
	return USB
}

// ParseSideband parses "LSB"/"USB" (case-insensitive, single letters accepted)
func ParseSideband(s string) (Sideband, error) {
	switch s {
	case "LSB", "lsb", "L", "l":
		return LSB, nil
	case "USB", "usb", "U", "u":
		return USB, nil
	}
	return LSB, fmt.Errorf("invalid sideband %q", s)
}

const digits = 8

// Model holds the per-board constants and the precomputed coefficient table.
type Model struct {
	referenceHz  int64
	intermediate Hz
	minHz, maxHz Hz
	coef         [digits]uint32
}

// NewModel creates a model for the given reference clock and intermediate
// frequency, clamping receive frequencies to [MinHz, MaxHz].
func NewModel(referenceHz int64, intermediate Hz) *Model {
	return NewModelWithRange(referenceHz, intermediate, MinHz, MaxHz)
}

// NewModelWithRange is NewModel with an explicit receive range.
func NewModelWithRange(referenceHz int64, intermediate Hz, minHz, maxHz Hz) *Model {
	m := &Model{
		referenceHz:  referenceHz,
		intermediate: intermediate,
		minHz:        minHz,
		maxHz:        maxHz,
	}

	// coefficient[k] = round(2^32 * 10^k / ref), kept in integers so the
	// table is identical on every platform.
	pow := uint64(1)
	ref := uint64(referenceHz)
	for k := 0; k < digits; k++ {
		m.coef[k] = uint32(((uint64(1)<<32)*pow + ref/2) / ref)
		pow *= 10
	}

	return m
}

// ReferenceHz returns the DDS reference clock
func (m *Model) ReferenceHz() int64 {
	return m.referenceHz
}

// Intermediate returns the receiver intermediate frequency
func (m *Model) Intermediate() Hz {
	return m.intermediate
}

// Range returns the clamp limits
func (m *Model) Range() (Hz, Hz) {
	return m.minHz, m.maxHz
}

// Coefficients returns a copy of the per-digit coefficient table
func (m *Model) Coefficients() [digits]uint32 {
	return m.coef
}

// Clamp limits a receive frequency to the supported range.
func (m *Model) Clamp(f Hz) Hz {
	if f < m.minHz {
		return m.minHz
	}
	if f > m.maxHz {
		return m.maxHz
	}
	return f
}

// VFOFrequency returns the oscillator frequency needed to receive rx.
// USB needs the VFO below the IF, LSB above it.
func (m *Model) VFOFrequency(rx Hz, sb Sideband) Hz {
	if sb == USB {
		return rx - m.intermediate
	}
	return rx + m.intermediate
}

// TuningWord converts a VFO frequency to the 32-bit phase increment.
// The sum wraps like the chip's phase accumulator; negative frequencies
// produce their modular equivalent.
func (m *Model) TuningWord(vfo Hz) uint32 {
	var word uint32
	f := int32(vfo)
	for k := 0; k < digits; k++ {
		digit := f % 10
		word += uint32(digit) * m.coef[k]
		f /= 10
	}
	return word
}

// Convert clamps rx and returns the applied frequency, the VFO frequency and
// the tuning word in one call.
func (m *Model) Convert(rx Hz, sb Sideband) (applied Hz, vfo Hz, word uint32) {
	applied = m.Clamp(rx)
	vfo = m.VFOFrequency(applied, sb)
	return applied, vfo, m.TuningWord(vfo)
}
