package radio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/ddstune/pkg/dds"
	"github.com/dougsko/ddstune/pkg/freq"
	"github.com/dougsko/ddstune/pkg/hardware"
)

const relayPin = 4

type fakeSynth struct {
	words []uint32
	err   error
	inits int
}

func (f *fakeSynth) Initialize() error {
	f.inits++
	return f.err
}

func (f *fakeSynth) WriteTuningWord(word uint32) error {
	if f.err != nil {
		return f.err
	}
	f.words = append(f.words, word)
	return nil
}

func newTestTuner() (*Tuner, *fakeSynth, *hardware.MockGPIO) {
	synth := &fakeSynth{}
	gpio := hardware.NewMockGPIO()
	model := freq.NewModel(freq.DefaultReferenceClockHz, freq.DefaultIntermediateHz)
	return NewTuner(model, synth, gpio, relayPin, 0), synth, gpio
}

func relay(t *testing.T, gpio *hardware.MockGPIO) bool {
	t.Helper()
	v, err := gpio.GetPin(relayPin)
	require.NoError(t, err)
	return v
}

func TestTunerBandSelection(t *testing.T) {
	tuner, _, gpio := newTestTuner()

	tests := []struct {
		rx   freq.Hz
		high bool
	}{
		{10000001, true},
		{9999999, false},
		{10000000, false},
		{14267000, true},
		{3699000, false},
	}

	for _, tt := range tests {
		applied, err := tuner.SetFrequency(tt.rx, freq.USB)
		require.NoError(t, err)
		assert.Equal(t, tt.rx, applied)
		assert.Equal(t, tt.high, relay(t, gpio), "rx=%d", tt.rx)
		if tt.high {
			assert.Equal(t, HighBand, tuner.Band())
		} else {
			assert.Equal(t, LowBand, tuner.Band())
		}
	}
}

func TestTunerClamps(t *testing.T) {
	tuner, synth, gpio := newTestTuner()
	model := tuner.Model()

	applied, err := tuner.SetFrequency(25000000, freq.USB)
	require.NoError(t, err)
	assert.Equal(t, freq.MaxHz, applied)
	assert.True(t, relay(t, gpio))
	assert.Equal(t, model.TuningWord(model.VFOFrequency(freq.MaxHz, freq.USB)), synth.words[0])

	applied, err = tuner.SetFrequency(5, freq.LSB)
	require.NoError(t, err)
	assert.Equal(t, freq.MinHz, applied)
	assert.False(t, relay(t, gpio))
}

func TestTunerWritesSidebandWord(t *testing.T) {
	tuner, synth, _ := newTestTuner()

	_, err := tuner.SetFrequency(3699000, freq.LSB)
	require.NoError(t, err)
	_, err = tuner.SetFrequency(14267000, freq.USB)
	require.NoError(t, err)

	// LSB 3.699 MHz: VFO 8.699 MHz; USB 14.267 MHz: VFO 9.267 MHz
	assert.Equal(t, []uint32{747238406, 796029235}, synth.words)
	assert.Equal(t, uint32(796029235), tuner.LastWord())
}

func TestTunerErrors(t *testing.T) {
	t.Run("Synthesizer", func(t *testing.T) {
		tuner, synth, gpio := newTestTuner()
		synth.err = errors.New("bus fault")

		_, err := tuner.SetFrequency(14000000, freq.USB)
		require.Error(t, err)
		assert.False(t, relay(t, gpio), "relay untouched when the word was not written")
	})

	t.Run("Relay", func(t *testing.T) {
		tuner, _, gpio := newTestTuner()
		gpio.FailPin(relayPin, errors.New("relay driver"))

		applied, err := tuner.SetFrequency(14000000, freq.USB)
		require.Error(t, err)
		assert.Equal(t, freq.Hz(14000000), applied)
	})
}

func TestTunerOverBus(t *testing.T) {
	gpio := hardware.NewMockGPIO()
	bus := dds.NewBus(gpio, hardware.NewInterruptGate(), 11, 10, 8)
	bus.SetBitDelay(0)
	model := freq.NewModel(freq.DefaultReferenceClockHz, freq.DefaultIntermediateHz)
	tuner := NewTuner(model, dds.NewDriver(bus), gpio, relayPin, DefaultBandThreshold)

	require.NoError(t, tuner.Initialize())
	gpio.ResetHistory()

	_, err := tuner.SetFrequency(14267000, freq.USB)
	require.NoError(t, err)

	history := gpio.History()
	// four 16-bit frames then the relay write
	require.Len(t, history, 4*50+1)
	assert.Equal(t, hardware.PinEvent{Pin: relayPin, Value: true}, history[len(history)-1])
}
