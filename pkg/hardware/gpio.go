package hardware

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/ddstune/pkg/logging"
)

const (
	sysfsRoot = "/sys/class/gpio"

	// sysfsPollInterval bounds edge latency on the sysfs backend
	sysfsPollInterval = time.Millisecond
)

// LinuxGPIO implements GPIOInterface using Linux sysfs GPIO.
// Pins are exported on first use; the direction follows the first access.
type LinuxGPIO struct {
	root         string
	exportedPins map[int]string
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	mutex        sync.Mutex
}

// NewLinuxGPIO creates a new Linux GPIO interface
func NewLinuxGPIO() *LinuxGPIO {
	return newLinuxGPIOAt(sysfsRoot)
}

func newLinuxGPIOAt(root string) *LinuxGPIO {
	return &LinuxGPIO{
		root:         root,
		exportedPins: make(map[int]string),
		stop:         make(chan struct{}),
	}
}

// Initialize initializes the Linux GPIO system
func (g *LinuxGPIO) Initialize() error {
	if _, err := os.Stat(g.root); os.IsNotExist(err) {
		return fmt.Errorf("GPIO not available on this system")
	}

	logging.Info("gpio", "sysfs GPIO initialized")
	return nil
}

// Close stops edge watchers and unexports all pins
func (g *LinuxGPIO) Close() error {
	g.stopOnce.Do(func() { close(g.stop) })
	g.wg.Wait()

	g.mutex.Lock()
	defer g.mutex.Unlock()

	for pin := range g.exportedPins {
		if err := g.unexportPin(pin); err != nil {
			logging.Warnf("gpio", "%v", err)
		}
	}
	g.exportedPins = make(map[int]string)

	logging.Info("gpio", "sysfs GPIO closed")
	return nil
}

// SetPin sets a GPIO pin value
func (g *LinuxGPIO) SetPin(pin int, value bool) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if err := g.ensureExported(pin, "out"); err != nil {
		return err
	}

	valueStr := "0"
	if value {
		valueStr = "1"
	}

	if err := os.WriteFile(g.pinPath(pin, "value"), []byte(valueStr), 0644); err != nil {
		return fmt.Errorf("failed to set pin %d value: %w", pin, err)
	}

	return nil
}

// GetPin gets a GPIO pin value
func (g *LinuxGPIO) GetPin(pin int) (bool, error) {
	g.mutex.Lock()
	if err := g.ensureExported(pin, "in"); err != nil {
		g.mutex.Unlock()
		return false, err
	}
	g.mutex.Unlock()

	return g.readValue(pin)
}

// WatchRising polls pin and calls handler on each low-to-high transition.
// sysfs has no portable blocking edge wait, so this samples at 1 kHz.
func (g *LinuxGPIO) WatchRising(pin int, handler func()) error {
	g.mutex.Lock()
	if err := g.ensureExported(pin, "in"); err != nil {
		g.mutex.Unlock()
		return err
	}
	g.mutex.Unlock()

	last, err := g.readValue(pin)
	if err != nil {
		return err
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ticker := time.NewTicker(sysfsPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-g.stop:
				return
			case <-ticker.C:
				level, err := g.readValue(pin)
				if err != nil {
					continue
				}
				if level && !last {
					handler()
				}
				last = level
			}
		}
	}()

	return nil
}

func (g *LinuxGPIO) pinPath(pin int, file string) string {
	return fmt.Sprintf("%s/gpio%d/%s", g.root, pin, file)
}

func (g *LinuxGPIO) readValue(pin int) (bool, error) {
	data, err := os.ReadFile(g.pinPath(pin, "value"))
	if err != nil {
		return false, fmt.Errorf("failed to read pin %d value: %w", pin, err)
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

// ensureExported exports pin and sets its direction (must be called with lock held)
func (g *LinuxGPIO) ensureExported(pin int, direction string) error {
	if _, ok := g.exportedPins[pin]; ok {
		return nil
	}

	if err := g.exportPin(pin); err != nil {
		return fmt.Errorf("failed to export pin %d: %w", pin, err)
	}
	if err := g.setPinDirection(pin, direction); err != nil {
		return fmt.Errorf("failed to set pin %d direction: %w", pin, err)
	}

	g.exportedPins[pin] = direction
	return nil
}

// exportPin exports a GPIO pin to userspace
func (g *LinuxGPIO) exportPin(pin int) error {
	pinDir := fmt.Sprintf("%s/gpio%d", g.root, pin)
	if _, err := os.Stat(pinDir); err == nil {
		return nil
	}

	if err := os.WriteFile(g.root+"/export", []byte(strconv.Itoa(pin)), 0644); err != nil {
		return fmt.Errorf("failed to export GPIO pin %d: %w", pin, err)
	}

	// udev needs a moment to create the pin directory
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(pinDir); err == nil {
			logging.Debugf("gpio", "Exported pin %d", pin)
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}

	return fmt.Errorf("pin %d directory did not appear after export", pin)
}

// unexportPin unexports a GPIO pin from userspace
func (g *LinuxGPIO) unexportPin(pin int) error {
	if err := os.WriteFile(g.root+"/unexport", []byte(strconv.Itoa(pin)), 0644); err != nil {
		return fmt.Errorf("failed to unexport GPIO pin %d: %w", pin, err)
	}
	return nil
}

// setPinDirection sets the direction of a GPIO pin
func (g *LinuxGPIO) setPinDirection(pin int, direction string) error {
	if err := os.WriteFile(g.pinPath(pin, "direction"), []byte(direction), 0644); err != nil {
		return fmt.Errorf("failed to set pin %d direction to %s: %w", pin, direction, err)
	}
	return nil
}
