// Package lcd drives a 16x2 character display.
package lcd

// Display geometry
const (
	Columns = 16
	Rows    = 2
)

// HD44780 instruction bytes
const (
	CmdClear    byte = 0x01
	CmdHome     byte = 0x02
	CmdDDRAM    byte = 0x80
	CmdCGRAM    byte = 0x40
	Row2Address byte = 0x40
)

// Display is a two-line character display with a writable character
// generator. After UploadGlyph the display is in CGRAM mode until
// DataMode is called.
type Display interface {
	Clear() error
	Home() error
	Row2() error
	PutChar(c byte) error
	PutString(s string) error
	UploadGlyph(pixels [8]byte, slot int) error
	DataMode() error
}

// tee writes to several displays in order
type tee []Display

// Tee returns a Display that mirrors every call to each of displays. The
// first error stops the call.
func Tee(displays ...Display) Display {
	return tee(displays)
}

func (t tee) each(fn func(Display) error) error {
	for _, d := range t {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Clear() error    { return t.each(Display.Clear) }
func (t tee) Home() error     { return t.each(Display.Home) }
func (t tee) Row2() error     { return t.each(Display.Row2) }
func (t tee) DataMode() error { return t.each(Display.DataMode) }

func (t tee) PutChar(c byte) error {
	return t.each(func(d Display) error { return d.PutChar(c) })
}

func (t tee) PutString(s string) error {
	return t.each(func(d Display) error { return d.PutString(s) })
}

func (t tee) UploadGlyph(pixels [8]byte, slot int) error {
	return t.each(func(d Display) error { return d.UploadGlyph(pixels, slot) })
}
