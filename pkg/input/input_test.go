package input

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/ddstune/pkg/hardware"
)

const (
	testPrimary   = 17
	testSecondary = 27
	testButton    = 22
)

func newTestEncoder(t *testing.T) (*Encoder, *hardware.MockGPIO) {
	gpio := hardware.NewMockGPIO()
	gpio.SetInput(testPrimary, true)
	gpio.SetInput(testSecondary, true)
	enc := NewEncoder(gpio, hardware.NewInterruptGate(), testPrimary, testSecondary)
	require.NoError(t, enc.Attach())
	return enc, gpio
}

func pulse(gpio *hardware.MockGPIO, secondaryHigh bool, n int) {
	gpio.SetInput(testSecondary, secondaryHigh)
	for i := 0; i < n; i++ {
		gpio.SetInput(testPrimary, false)
		gpio.SetInput(testPrimary, true)
	}
}

func TestEncoderOnEdge(t *testing.T) {
	enc := NewEncoder(hardware.NewMockGPIO(), hardware.NewInterruptGate(), testPrimary, testSecondary)

	for i := 0; i < 7; i++ {
		enc.OnEdge(false)
	}
	assert.True(t, enc.Pending())
	assert.Equal(t, 7, enc.Poll())
	assert.Equal(t, 0, enc.Poll())
	assert.False(t, enc.Pending())

	enc.OnEdge(true)
	enc.OnEdge(true)
	enc.OnEdge(false)
	assert.Equal(t, -1, enc.Poll())
}

func TestEncoderEdges(t *testing.T) {
	enc, gpio := newTestEncoder(t)

	pulse(gpio, false, 4)
	assert.Equal(t, 4, enc.Poll())

	pulse(gpio, true, 3)
	assert.Equal(t, -3, enc.Poll())
	assert.Equal(t, 0, enc.Poll())
}

func TestEncoderReadError(t *testing.T) {
	enc, gpio := newTestEncoder(t)
	gpio.FailPin(testSecondary, errors.New("line busy"))

	gpio.SetInput(testPrimary, false)
	gpio.SetInput(testPrimary, true)
	assert.Equal(t, 0, enc.Poll())
}

func TestEncoderEdgesBlockedByGate(t *testing.T) {
	gpio := hardware.NewMockGPIO()
	gate := hardware.NewInterruptGate()
	gpio.SetInput(testPrimary, true)
	enc := NewEncoder(gpio, gate, testPrimary, testSecondary)
	require.NoError(t, enc.Attach())

	restore := gate.Disable()
	done := make(chan struct{})
	go func() {
		pulse(gpio, false, 1)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, enc.Poll(), "edge handled while gate closed")

	restore()
	<-done
	assert.Equal(t, 1, enc.Poll())
}

func TestEncoderConcurrentPoll(t *testing.T) {
	enc := NewEncoder(hardware.NewMockGPIO(), hardware.NewInterruptGate(), testPrimary, testSecondary)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				enc.OnEdge(false)
			}
		}()
	}

	total := 0
	stop := make(chan struct{})
	go func() {
		wg.Wait()
		close(stop)
	}()
	for {
		select {
		case <-stop:
			total += enc.Poll()
			assert.Equal(t, 1000, total, "no detent lost or double counted")
			return
		default:
			total += enc.Poll()
		}
	}
}

type buttonHarness struct {
	gpio   *hardware.MockGPIO
	enc    *Encoder
	button *Button
	ticks  int
	sleeps []time.Duration
	onTick func(tick int)
}

func newButtonHarness() *buttonHarness {
	h := &buttonHarness{gpio: hardware.NewMockGPIO()}
	h.gpio.SetInput(testButton, true)
	h.enc = NewEncoder(h.gpio, hardware.NewInterruptGate(), testPrimary, testSecondary)
	h.button = NewButton(h.gpio, testButton, h.enc)
	h.button.SetSleep(func(d time.Duration) {
		h.sleeps = append(h.sleeps, d)
		if d == ButtonTick {
			h.ticks++
			if h.onTick != nil {
				h.onTick(h.ticks)
			}
		}
	})
	return h
}

func (h *buttonHarness) press() {
	h.gpio.SetInput(testButton, false)
}

func (h *buttonHarness) release() {
	h.gpio.SetInput(testButton, true)
}

func TestButtonClassify(t *testing.T) {
	t.Run("Not Pressed", func(t *testing.T) {
		h := newButtonHarness()
		assert.Equal(t, NotPressed, h.button.Classify(50))
		assert.Empty(t, h.sleeps)
	})

	t.Run("Short Press", func(t *testing.T) {
		h := newButtonHarness()
		h.press()
		h.onTick = func(tick int) {
			if tick == 6 {
				h.release()
			}
		}
		assert.Equal(t, ShortPress, h.button.Classify(50))
		assert.Equal(t, 6, h.ticks)
		assert.Equal(t, ButtonReleaseSettle, h.sleeps[len(h.sleeps)-1])
	})

	t.Run("Long Press", func(t *testing.T) {
		h := newButtonHarness()
		h.press()
		assert.Equal(t, LongPress, h.button.Classify(50))
		assert.Equal(t, 50, h.ticks)
	})

	t.Run("Interrupted By Encoder", func(t *testing.T) {
		h := newButtonHarness()
		h.press()
		h.onTick = func(tick int) {
			if tick == 3 {
				h.enc.OnEdge(false)
			}
		}
		assert.Equal(t, InterruptedByEncoder, h.button.Classify(50))
		assert.Equal(t, 3, h.ticks)
		assert.True(t, h.enc.Pending(), "classification must not consume rotation")
	})

	t.Run("Release Wins Over Rotation", func(t *testing.T) {
		h := newButtonHarness()
		h.press()
		h.onTick = func(tick int) {
			if tick == 2 {
				h.enc.OnEdge(true)
				h.release()
			}
		}
		assert.Equal(t, ShortPress, h.button.Classify(50))
	})

	t.Run("Read Error Counts As Released", func(t *testing.T) {
		h := newButtonHarness()
		h.press()
		h.gpio.FailPin(testButton, errors.New("bus"))
		assert.False(t, h.button.Down())
		assert.Equal(t, NotPressed, h.button.Classify(50))
	})
}

func TestButtonWaitRelease(t *testing.T) {
	h := newButtonHarness()
	h.press()

	polls := 0
	h.button.SetSleep(func(d time.Duration) {
		h.sleeps = append(h.sleeps, d)
		if d == ButtonWaitPoll {
			polls++
			if polls == 4 {
				h.release()
			}
		}
	})

	h.button.WaitRelease()
	assert.Equal(t, 4, polls)
	assert.Equal(t, ButtonWaitSettle, h.sleeps[len(h.sleeps)-1])
}

func TestButtonResultString(t *testing.T) {
	assert.Equal(t, "short", ShortPress.String())
	assert.Equal(t, "interrupted", InterruptedByEncoder.String())
}
