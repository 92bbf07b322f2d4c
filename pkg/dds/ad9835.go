// Package dds drives an AD9835 direct digital synthesizer over a bit-banged
// three-wire serial bus (SCLK, SDATA, FSYNC).
package dds

import (
	"fmt"
	"time"

	"github.com/dougsko/ddstune/pkg/hardware"
	"github.com/dougsko/ddstune/pkg/logging"
)

// Command bits, upper nibble of the 16-bit word
const (
	CmdPhase16Bit uint16 = 0x0000
	CmdPhase8Bit  uint16 = 0x1000
	CmdFreq16Bit  uint16 = 0x2000
	CmdFreq8Bit   uint16 = 0x3000
	CmdControl    uint16 = 0xC000
)

// Control register bits, used with CmdControl
const (
	CtrlSleep uint16 = 0x2000
	CtrlReset uint16 = 0x1000
	CtrlClear uint16 = 0x0800
)

// FREQ0 register byte addresses
const (
	Freq0LLSB uint16 = 0x0000
	Freq0HLSB uint16 = 0x0100
	Freq0LMSB uint16 = 0x0200
	Freq0HMSB uint16 = 0x0300
)

// DefaultBitDelay is the SCLK low time per bit
const DefaultBitDelay = 15 * time.Microsecond

// CommandWriter sends 16-bit words to the synthesizer
type CommandWriter interface {
	WriteCommand(word uint16) error
}

// Bus is a bit-banged serial link to the AD9835. Every frame is sent with
// the interrupt gate closed.
type Bus struct {
	gpio  hardware.GPIOInterface
	gate  *hardware.InterruptGate
	clock int
	data  int
	fsync int
	delay func()
}

// NewBus creates a serial bus on the given clock, data and frame-sync lines
func NewBus(gpio hardware.GPIOInterface, gate *hardware.InterruptGate, clock, data, fsync int) *Bus {
	b := &Bus{
		gpio:  gpio,
		gate:  gate,
		clock: clock,
		data:  data,
		fsync: fsync,
	}
	b.SetBitDelay(DefaultBitDelay)
	return b
}

// SetBitDelay changes the per-bit clock low time. Zero disables the delay.
func (b *Bus) SetBitDelay(d time.Duration) {
	if d <= 0 {
		b.delay = func() {}
		return
	}
	b.delay = func() { time.Sleep(d) }
}

// WriteCommand clocks one 16-bit word out MSB first. Data changes while
// SCLK is high and is latched on the falling edge.
func (b *Bus) WriteCommand(word uint16) error {
	restore := b.gate.Disable()
	defer restore()

	if err := b.gpio.SetPin(b.fsync, false); err != nil {
		return fmt.Errorf("failed to assert FSYNC: %w", err)
	}

	for i := 15; i >= 0; i-- {
		bit := word&(1<<uint(i)) != 0
		if err := b.gpio.SetPin(b.data, bit); err != nil {
			return fmt.Errorf("failed to set SDATA: %w", err)
		}
		if err := b.gpio.SetPin(b.clock, false); err != nil {
			return fmt.Errorf("failed to lower SCLK: %w", err)
		}
		b.delay()
		if err := b.gpio.SetPin(b.clock, true); err != nil {
			return fmt.Errorf("failed to raise SCLK: %w", err)
		}
	}

	if err := b.gpio.SetPin(b.fsync, true); err != nil {
		return fmt.Errorf("failed to release FSYNC: %w", err)
	}
	return nil
}

// Driver programs FREQ0 of an AD9835
type Driver struct {
	writer CommandWriter
}

// NewDriver creates a driver writing through w
func NewDriver(w CommandWriter) *Driver {
	return &Driver{writer: w}
}

// TuningWordCommands returns the four writes that load word into FREQ0.
// The device latches the 32-bit register on the final high-MSB write.
func TuningWordCommands(word uint32) [4]uint16 {
	b0 := uint16(word & 0xFF)
	b1 := uint16(word >> 8 & 0xFF)
	b2 := uint16(word >> 16 & 0xFF)
	b3 := uint16(word >> 24 & 0xFF)
	return [4]uint16{
		CmdFreq8Bit | Freq0LLSB | b0,
		CmdFreq16Bit | Freq0HLSB | b1,
		CmdFreq8Bit | Freq0LMSB | b2,
		CmdFreq16Bit | Freq0HMSB | b3,
	}
}

// WriteTuningWord loads word into FREQ0
func (d *Driver) WriteTuningWord(word uint32) error {
	for _, cmd := range TuningWordCommands(word) {
		if err := d.writer.WriteCommand(cmd); err != nil {
			return fmt.Errorf("failed to write tuning word 0x%08x: %w", word, err)
		}
	}
	logging.Debugf("dds", "Tuning word 0x%08x loaded", word)
	return nil
}

// Initialize resets the device, loads a near-DC word and starts output
func (d *Driver) Initialize() error {
	if err := d.writer.WriteCommand(CmdControl | CtrlSleep | CtrlReset | CtrlClear); err != nil {
		return fmt.Errorf("failed to reset synthesizer: %w", err)
	}
	if err := d.WriteTuningWord(1); err != nil {
		return err
	}
	if err := d.writer.WriteCommand(CmdControl); err != nil {
		return fmt.Errorf("failed to start synthesizer: %w", err)
	}
	logging.Info("dds", "Synthesizer initialized")
	return nil
}
