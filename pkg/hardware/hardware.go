package hardware

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dougsko/ddstune/pkg/logging"
)

// GPIO backends
const (
	BackendMock   = "mock"
	BackendSysfs  = "sysfs"
	BackendPeriph = "periph"
)

var (
	ErrNotInitialized = errors.New("hardware not initialized")
	ErrUnknownBackend = errors.New("unknown GPIO backend")
)

// HardwareConfig represents hardware configuration
type HardwareConfig struct {
	Backend string
	Pins    PinMap

	// ADCPath is an IIO raw value file for the signal meter. Empty selects
	// the mock ADC.
	ADCPath string
	ADCBits int
}

// GPIOInterface defines GPIO operations
type GPIOInterface interface {
	Initialize() error
	Close() error
	SetPin(pin int, value bool) error
	GetPin(pin int) (bool, error)
	// WatchRising calls handler on every rising edge of pin until Close.
	WatchRising(pin int, handler func()) error
}

// ADCInterface reads the signal-strength voltage as an 8-bit value,
// 0x00 = ground, 0xFF = reference.
type ADCInterface interface {
	Initialize() error
	Close() error
	Read() (uint8, error)
}

// HardwareManager manages all hardware interfaces
type HardwareManager struct {
	config HardwareConfig
	mutex  sync.RWMutex

	gpio GPIOInterface
	adc  ADCInterface
	gate *InterruptGate

	initialized bool
}

// NewHardwareManager creates a new hardware manager
func NewHardwareManager(config HardwareConfig) *HardwareManager {
	if config.Backend == "" {
		config.Backend = BackendMock
	}
	if config.ADCBits == 0 {
		config.ADCBits = 8
	}
	return &HardwareManager{
		config: config,
		gate:   NewInterruptGate(),
	}
}

// newGPIO builds the backend named in the config
func (h *HardwareManager) newGPIO() (GPIOInterface, error) {
	switch h.config.Backend {
	case BackendMock:
		return NewMockGPIO(), nil
	case BackendSysfs:
		return NewLinuxGPIO(), nil
	case BackendPeriph:
		return NewPeriphGPIO(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, h.config.Backend)
	}
}

// Initialize initializes all hardware interfaces
func (h *HardwareManager) Initialize() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.initialized {
		return nil
	}

	if err := h.config.Pins.Validate(); err != nil {
		return fmt.Errorf("invalid pin map: %w", err)
	}

	logging.Infof("hardware", "Initializing %s GPIO backend", h.config.Backend)

	gpio, err := h.newGPIO()
	if err != nil {
		return err
	}
	if err := gpio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize GPIO: %w", err)
	}
	h.gpio = gpio

	if h.config.ADCPath != "" {
		h.adc = NewSysfsADC(h.config.ADCPath, h.config.ADCBits)
	} else {
		h.adc = NewMockADC()
	}
	if err := h.adc.Initialize(); err != nil {
		h.gpio.Close()
		return fmt.Errorf("failed to initialize ADC: %w", err)
	}

	// Idle levels: DDS clock and frame sync high, relay on the low band.
	pins := h.config.Pins
	for _, out := range []struct {
		pin   int
		level bool
	}{
		{pins.DDSClock, true},
		{pins.DDSFsync, true},
		{pins.DDSData, false},
		{pins.BandRelay, false},
	} {
		if err := h.gpio.SetPin(out.pin, out.level); err != nil {
			h.adc.Close()
			h.gpio.Close()
			return fmt.Errorf("failed to set idle level on pin %d: %w", out.pin, err)
		}
	}

	// Button and encoder lines idle high through their pull-ups.
	if mock, ok := h.gpio.(*MockGPIO); ok {
		mock.SetInput(pins.Button, true)
		mock.SetInput(pins.EncoderPrimary, true)
		mock.SetInput(pins.EncoderSecondary, true)
	}

	h.initialized = true
	logging.Info("hardware", "Hardware manager initialized", map[string]interface{}{
		"backend": h.config.Backend,
		"adc":     h.config.ADCPath,
	})
	return nil
}

// Close shuts down all hardware interfaces
func (h *HardwareManager) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.initialized {
		return nil
	}

	if h.adc != nil {
		if err := h.adc.Close(); err != nil {
			logging.Warnf("hardware", "Error closing ADC: %v", err)
		}
	}

	if h.gpio != nil {
		// Leave the relay released.
		h.gpio.SetPin(h.config.Pins.BandRelay, false)
		if err := h.gpio.Close(); err != nil {
			logging.Warnf("hardware", "Error closing GPIO: %v", err)
		}
	}

	h.initialized = false
	logging.Info("hardware", "Hardware manager shut down")
	return nil
}

// IsInitialized reports whether Initialize succeeded
func (h *HardwareManager) IsInitialized() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.initialized
}

// GetConfig returns the hardware configuration
func (h *HardwareManager) GetConfig() HardwareConfig {
	return h.config
}

// GPIO returns the active GPIO backend
func (h *HardwareManager) GPIO() GPIOInterface {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.gpio
}

// ADC returns the signal meter ADC
func (h *HardwareManager) ADC() ADCInterface {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.adc
}

// Gate returns the interrupt gate shared by edge handlers and bus transfers
func (h *HardwareManager) Gate() *InterruptGate {
	return h.gate
}

// Mock returns the mock GPIO backend, or nil for real hardware
func (h *HardwareManager) Mock() *MockGPIO {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	mock, _ := h.gpio.(*MockGPIO)
	return mock
}

// SimulateTurn drives the mock encoder lines through steps detents.
// Positive steps turn clockwise (secondary low on the rising edge).
func (h *HardwareManager) SimulateTurn(steps int) error {
	mock := h.Mock()
	if mock == nil {
		return fmt.Errorf("encoder simulation needs the %s backend", BackendMock)
	}

	pins := h.config.Pins
	secondary := steps < 0
	if steps < 0 {
		steps = -steps
	}

	mock.SetInput(pins.EncoderSecondary, secondary)
	for i := 0; i < steps; i++ {
		mock.SetInput(pins.EncoderPrimary, false)
		mock.SetInput(pins.EncoderPrimary, true)
	}
	mock.SetInput(pins.EncoderSecondary, true)
	return nil
}
