package ui

import (
	"fmt"

	"github.com/dougsko/ddstune/pkg/freq"
	"github.com/dougsko/ddstune/pkg/settings"
)

// StepSize is one entry of the tuning step table
type StepSize struct {
	Label string
	Hz    freq.Hz
}

// Steps is the step table. A zero size toggles the sideband instead of
// tuning.
var Steps = [settings.NumSteps]StepSize{
	{"    U/L", 0},
	{"  10 Hz", 10},
	{" 100 Hz", 100},
	{"  1 kHz", 1000},
	{" 10 kHz", 10000},
	{"100 kHz", 100000},
	{"  1 MHz", 1000000},
}

// SavedMessage replaces row 2 while a long press is held
const SavedMessage = "-Settings saved-"

// MeterWidth is the number of characters of the signal meter
const MeterWidth = 8

// MeterGlyphs are the bar characters for 0-3 lit bars, uploaded to
// CGRAM slots 0-3
var MeterGlyphs = [4][8]byte{
	{21, 0, 0, 0, 0, 0, 21, 0},
	{21, 16, 16, 16, 16, 16, 21, 0},
	{21, 20, 20, 20, 20, 20, 21, 0},
	{21, 21, 21, 21, 21, 21, 21, 0},
}

// FrequencyLine renders row 1: the frequency to 10 Hz with two dots,
// the sideband letter and the VFO letter, e.g. " 3.699.00 L VFOA"
func FrequencyLine(f freq.Hz, sb freq.Sideband, vfo int) string {
	digits := fmt.Sprintf("%8d", int32(f))

	buf := make([]byte, 0, 16)
	for i := 0; i < 7; i++ {
		buf = append(buf, digits[i])
		if i == 1 || i == 4 {
			buf = append(buf, '.')
		}
	}
	buf = append(buf, ' ', sb.Letter())
	buf = append(buf, " VFO"...)
	buf = append(buf, byte('A'+vfo))
	return string(buf)
}

// MeterBars renders an 8-bit reading as 8 glyph codes of up to 3 bars each.
// At least one bar is always lit.
func MeterBars(reading uint8) [MeterWidth]byte {
	var out [MeterWidth]byte
	bars := int(reading)*24/256 + 1
	for i := range out {
		n := bars
		if n > 3 {
			n = 3
		}
		out[i] = byte(n)
		bars -= n
	}
	return out
}

// MeterLine renders row 2: the meter, a space and the step label
func MeterLine(reading uint8, step int) string {
	m := MeterBars(reading)
	return string(m[:]) + " " + Steps[step].Label
}
