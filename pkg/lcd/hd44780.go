package lcd

import (
	"fmt"
	"time"

	"github.com/dougsko/ddstune/pkg/hardware"
	"github.com/dougsko/ddstune/pkg/logging"
)

// EnablePulse is how long EN is held high per nibble
const EnablePulse = 500 * time.Microsecond

// HD44780 drives the controller in 4-bit mode. Data lines are given in
// D4..D7 order, so boards with unusual wiring only change the pin map.
type HD44780 struct {
	gpio   hardware.GPIOInterface
	rs     int
	enable int
	data   [4]int
	sleep  func(time.Duration)
}

// NewHD44780 creates a driver on the given register-select, enable and data lines
func NewHD44780(gpio hardware.GPIOInterface, rs, enable int, data [4]int) *HD44780 {
	return &HD44780{
		gpio:   gpio,
		rs:     rs,
		enable: enable,
		data:   data,
		sleep:  time.Sleep,
	}
}

// SetSleep replaces the delay function, for tests
func (d *HD44780) SetSleep(sleep func(time.Duration)) {
	d.sleep = sleep
}

// Initialize runs the power-on sequence that forces 4-bit mode regardless
// of the controller's previous state, then enables two-line mode with the
// display on and the cursor hidden.
func (d *HD44780) Initialize() error {
	d.sleep(15 * time.Millisecond)

	steps := []struct {
		nibble byte
		wait   time.Duration
	}{
		{0x30, 5 * time.Millisecond},
		{0x30, 5 * time.Millisecond},
		{0x30, 0},
		{0x20, 0},
	}
	for _, s := range steps {
		if err := d.putNibble(s.nibble); err != nil {
			return fmt.Errorf("failed to initialize display: %w", err)
		}
		if s.wait > 0 {
			d.sleep(s.wait)
		}
	}

	if err := d.command(0x28); err != nil {
		return err
	}
	if err := d.command(0x0C); err != nil {
		return err
	}
	logging.Info("lcd", "HD44780 initialized")
	return nil
}

// putNibble latches the upper four bits of b
func (d *HD44780) putNibble(b byte) error {
	for i, pin := range d.data {
		if err := d.gpio.SetPin(pin, b&(0x10<<uint(i)) != 0); err != nil {
			return fmt.Errorf("failed to set D%d: %w", i+4, err)
		}
	}
	if err := d.gpio.SetPin(d.enable, true); err != nil {
		return fmt.Errorf("failed to raise EN: %w", err)
	}
	d.sleep(EnablePulse)
	if err := d.gpio.SetPin(d.enable, false); err != nil {
		return fmt.Errorf("failed to lower EN: %w", err)
	}
	return nil
}

func (d *HD44780) write(b byte, data bool) error {
	if err := d.gpio.SetPin(d.rs, data); err != nil {
		return fmt.Errorf("failed to set RS: %w", err)
	}
	if err := d.putNibble(b); err != nil {
		return err
	}
	return d.putNibble(b << 4)
}

func (d *HD44780) command(b byte) error {
	return d.write(b, false)
}

// Clear blanks the display and homes the cursor
func (d *HD44780) Clear() error {
	return d.command(CmdClear)
}

// Home moves the cursor to the start of row 1
func (d *HD44780) Home() error {
	return d.command(CmdHome)
}

// Row2 moves the cursor to the start of row 2
func (d *HD44780) Row2() error {
	return d.command(CmdDDRAM | Row2Address)
}

// PutChar writes one character at the cursor
func (d *HD44780) PutChar(c byte) error {
	return d.write(c, true)
}

// PutString writes s at the cursor
func (d *HD44780) PutString(s string) error {
	for i := 0; i < len(s); i++ {
		if err := d.PutChar(s[i]); err != nil {
			return err
		}
	}
	return nil
}

// UploadGlyph stores a 5x8 character in CGRAM slot 0-7. Only the five
// low bits of each row are used.
func (d *HD44780) UploadGlyph(pixels [8]byte, slot int) error {
	if slot < 0 || slot > 7 {
		return fmt.Errorf("glyph slot %d out of range", slot)
	}
	if err := d.command(CmdCGRAM | byte(slot)<<3); err != nil {
		return err
	}
	for _, row := range pixels {
		if err := d.PutChar(row); err != nil {
			return err
		}
	}
	return nil
}

// DataMode returns to DDRAM addressing at the home position
func (d *HD44780) DataMode() error {
	return d.command(CmdDDRAM)
}
