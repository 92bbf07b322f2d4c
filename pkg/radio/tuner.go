// Package radio ties the frequency model, the synthesizer and the band
// relay together.
package radio

import (
	"fmt"
	"sync"

	"github.com/dougsko/ddstune/pkg/freq"
	"github.com/dougsko/ddstune/pkg/hardware"
	"github.com/dougsko/ddstune/pkg/logging"
)

// DefaultBandThreshold splits the low and high band filters
const DefaultBandThreshold freq.Hz = 10000000

// Band identifies the front-end filter in circuit
type Band int

const (
	LowBand Band = iota
	HighBand
)

// String returns string representation of the band
func (b Band) String() string {
	if b == HighBand {
		return "high"
	}
	return "low"
}

// Synthesizer is the part of the DDS driver the tuner needs
type Synthesizer interface {
	Initialize() error
	WriteTuningWord(word uint32) error
}

// Tuner applies receive frequencies to the hardware
type Tuner struct {
	model     *freq.Model
	synth     Synthesizer
	gpio      hardware.GPIOInterface
	relayPin  int
	threshold freq.Hz

	mutex sync.RWMutex
	band  Band
	word  uint32
}

// NewTuner creates a tuner. The relay selects the high band for frequencies
// strictly above threshold.
func NewTuner(model *freq.Model, synth Synthesizer, gpio hardware.GPIOInterface, relayPin int, threshold freq.Hz) *Tuner {
	if threshold == 0 {
		threshold = DefaultBandThreshold
	}
	return &Tuner{
		model:     model,
		synth:     synth,
		gpio:      gpio,
		relayPin:  relayPin,
		threshold: threshold,
	}
}

// Initialize resets the synthesizer
func (t *Tuner) Initialize() error {
	return t.synth.Initialize()
}

// SetFrequency tunes to rx on sideband sb and returns the frequency
// actually applied after clamping
func (t *Tuner) SetFrequency(rx freq.Hz, sb freq.Sideband) (freq.Hz, error) {
	applied, vfo, word := t.model.Convert(rx, sb)

	if err := t.synth.WriteTuningWord(word); err != nil {
		return applied, fmt.Errorf("failed to tune %d Hz: %w", applied, err)
	}

	band := LowBand
	if applied > t.threshold {
		band = HighBand
	}
	if err := t.gpio.SetPin(t.relayPin, band == HighBand); err != nil {
		return applied, fmt.Errorf("failed to switch band relay: %w", err)
	}

	t.mutex.Lock()
	t.band = band
	t.word = word
	t.mutex.Unlock()

	logging.Debug("radio", "Frequency applied", map[string]interface{}{
		"rx":       int32(applied),
		"vfo":      int32(vfo),
		"sideband": sb.String(),
		"word":     fmt.Sprintf("0x%08x", word),
		"band":     band.String(),
	})
	return applied, nil
}

// Band returns the band selected by the last successful SetFrequency
func (t *Tuner) Band() Band {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.band
}

// LastWord returns the last tuning word written
func (t *Tuner) LastWord() uint32 {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.word
}

// Model returns the frequency model
func (t *Tuner) Model() *freq.Model {
	return t.model
}
