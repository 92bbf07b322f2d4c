package hardware

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/dougsko/ddstune/pkg/logging"
)

// periphEdgeTimeout lets edge watchers notice Close without a pending edge
const periphEdgeTimeout = 100 * time.Millisecond

// PeriphGPIO implements GPIOInterface on top of periph.io. Edge watching uses
// the kernel's edge detection through WaitForEdge, so handlers run close to
// the interrupt rather than on a polling tick.
type PeriphGPIO struct {
	pins   map[int]gpio.PinIO
	inputs map[int]bool
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	mutex  sync.Mutex
}

// NewPeriphGPIO creates a periph.io GPIO backend
func NewPeriphGPIO() *PeriphGPIO {
	return &PeriphGPIO{
		pins:   make(map[int]gpio.PinIO),
		inputs: make(map[int]bool),
		stop:   make(chan struct{}),
	}
}

// Initialize loads the periph host drivers
func (p *PeriphGPIO) Initialize() error {
	state, err := host.Init()
	if err != nil {
		return fmt.Errorf("failed to initialize periph host: %w", err)
	}
	logging.Info("gpio", "periph.io host initialized", map[string]interface{}{
		"drivers": len(state.Loaded),
	})
	return nil
}

// Close stops edge watchers and releases pins
func (p *PeriphGPIO) Close() error {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()

	p.mutex.Lock()
	defer p.mutex.Unlock()

	for n, pin := range p.pins {
		if err := pin.Halt(); err != nil {
			logging.Warnf("gpio", "Failed to halt GPIO%d: %v", n, err)
		}
	}
	p.pins = make(map[int]gpio.PinIO)
	return nil
}

// lookup resolves a line number (must be called with lock held)
func (p *PeriphGPIO) lookup(n int) (gpio.PinIO, error) {
	if pin, ok := p.pins[n]; ok {
		return pin, nil
	}
	name := fmt.Sprintf("GPIO%d", n)
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no such pin %s", name)
	}
	p.pins[n] = pin
	return pin, nil
}

// SetPin drives an output line
func (p *PeriphGPIO) SetPin(n int, value bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pin, err := p.lookup(n)
	if err != nil {
		return err
	}
	delete(p.inputs, n)
	if err := pin.Out(gpio.Level(value)); err != nil {
		return fmt.Errorf("failed to set GPIO%d: %w", n, err)
	}
	return nil
}

// GetPin reads an input line, enabling the pull-up on first use
func (p *PeriphGPIO) GetPin(n int) (bool, error) {
	p.mutex.Lock()
	pin, err := p.lookup(n)
	if err == nil && !p.inputs[n] {
		if err = pin.In(gpio.PullUp, gpio.NoEdge); err == nil {
			p.inputs[n] = true
		}
	}
	p.mutex.Unlock()

	if err != nil {
		return false, fmt.Errorf("failed to configure GPIO%d as input: %w", n, err)
	}
	return pin.Read() == gpio.High, nil
}

// WatchRising configures n for rising-edge detection and runs handler on a
// dedicated goroutine for each edge.
func (p *PeriphGPIO) WatchRising(n int, handler func()) error {
	p.mutex.Lock()
	pin, err := p.lookup(n)
	if err == nil {
		err = pin.In(gpio.PullUp, gpio.RisingEdge)
	}
	if err == nil {
		p.inputs[n] = true
	}
	p.mutex.Unlock()

	if err != nil {
		return fmt.Errorf("failed to watch GPIO%d: %w", n, err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.stop:
				return
			default:
			}
			if pin.WaitForEdge(periphEdgeTimeout) {
				handler()
			}
		}
	}()

	return nil
}
