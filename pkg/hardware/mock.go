package hardware

import (
	"errors"
	"sync"

	"github.com/dougsko/ddstune/pkg/logging"
)

// PinEvent is one recorded output write
type PinEvent struct {
	Pin   int
	Value bool
}

// MockGPIO implements GPIOInterface for testing. Output writes are recorded
// in order so bus protocols can be decoded after the fact; inputs are driven
// with SetInput, which fires rising-edge watchers synchronously.
type MockGPIO struct {
	pins     map[int]bool
	history  []PinEvent
	watchers map[int][]func()
	failPin  int
	failErr  error
	closed   bool
	mu       sync.RWMutex
}

// ErrMockClosed is returned by a closed MockGPIO
var ErrMockClosed = errors.New("mock GPIO closed")

// NewMockGPIO creates a new mock GPIO interface
func NewMockGPIO() *MockGPIO {
	return &MockGPIO{
		pins:     make(map[int]bool),
		watchers: make(map[int][]func()),
		failPin:  -1,
	}
}

// Initialize initializes the mock GPIO
func (g *MockGPIO) Initialize() error {
	logging.Debug("gpio", "Mock GPIO initialized")
	return nil
}

// Close closes the mock GPIO and drops all watchers
func (g *MockGPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true
	g.watchers = make(map[int][]func())
	logging.Debug("gpio", "Mock GPIO closed")
	return nil
}

// SetPin sets a GPIO pin value
func (g *MockGPIO) SetPin(pin int, value bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrMockClosed
	}
	if pin == g.failPin {
		return g.failErr
	}

	g.pins[pin] = value
	g.history = append(g.history, PinEvent{Pin: pin, Value: value})
	return nil
}

// GetPin gets a GPIO pin value
func (g *MockGPIO) GetPin(pin int) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return false, ErrMockClosed
	}
	if pin == g.failPin {
		return false, g.failErr
	}
	return g.pins[pin], nil
}

// WatchRising registers handler for rising edges produced by SetInput
func (g *MockGPIO) WatchRising(pin int, handler func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrMockClosed
	}
	g.watchers[pin] = append(g.watchers[pin], handler)
	return nil
}

// SetInput drives an input line as the outside world would. A low-to-high
// transition runs the pin's watchers on the caller's goroutine.
func (g *MockGPIO) SetInput(pin int, value bool) {
	g.mu.Lock()
	prev := g.pins[pin]
	g.pins[pin] = value
	var handlers []func()
	if !prev && value {
		handlers = append(handlers, g.watchers[pin]...)
	}
	g.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

// FailPin makes every access to pin return err. Pass a negative pin to clear.
func (g *MockGPIO) FailPin(pin int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failPin = pin
	g.failErr = err
}

// History returns a copy of the recorded output writes
func (g *MockGPIO) History() []PinEvent {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]PinEvent, len(g.history))
	copy(out, g.history)
	return out
}

// ResetHistory clears the recorded output writes
func (g *MockGPIO) ResetHistory() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = nil
}

// MockADC implements ADCInterface for testing
type MockADC struct {
	value uint8
	err   error
	mu    sync.RWMutex
}

// NewMockADC creates a new mock ADC reading zero
func NewMockADC() *MockADC {
	return &MockADC{}
}

// Initialize initializes the mock ADC
func (a *MockADC) Initialize() error {
	return nil
}

// Close closes the mock ADC
func (a *MockADC) Close() error {
	return nil
}

// Read returns the last value passed to Set
func (a *MockADC) Read() (uint8, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value, a.err
}

// Set changes the value returned by Read
func (a *MockADC) Set(value uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.value = value
}

// SetError makes Read fail with err (nil clears)
func (a *MockADC) SetError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}
