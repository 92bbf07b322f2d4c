package lcd

import (
	"fmt"
	"strings"
	"sync"
)

// lineLength is the DDRAM width of one row
const lineLength = 40

// Buffer is an in-memory display. It keeps the controller's address
// counter semantics closely enough that anything drawn on it looks the same
// on the real panel.
type Buffer struct {
	mutex  sync.RWMutex
	ddram  [Rows][lineLength]byte
	cgram  [8][8]byte
	row    int
	col    int
	cgAddr int
	cgMode bool
}

// NewBuffer creates a blank buffer
func NewBuffer() *Buffer {
	b := &Buffer{}
	b.blank()
	return b
}

func (b *Buffer) blank() {
	for r := range b.ddram {
		for c := range b.ddram[r] {
			b.ddram[r][c] = ' '
		}
	}
	b.row, b.col = 0, 0
	b.cgMode = false
}

// Clear blanks the display and homes the cursor
func (b *Buffer) Clear() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.blank()
	return nil
}

// Home moves the cursor to the start of row 1
func (b *Buffer) Home() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.row, b.col, b.cgMode = 0, 0, false
	return nil
}

// Row2 moves the cursor to the start of row 2
func (b *Buffer) Row2() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.row, b.col, b.cgMode = 1, 0, false
	return nil
}

// PutChar writes c at the cursor and advances it
func (b *Buffer) PutChar(c byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.put(c)
	return nil
}

func (b *Buffer) put(c byte) {
	if b.cgMode {
		b.cgram[b.cgAddr/8%8][b.cgAddr%8] = c & 0x1F
		b.cgAddr = (b.cgAddr + 1) % 64
		return
	}
	b.ddram[b.row][b.col] = c
	b.col++
	if b.col == lineLength {
		b.col = 0
		b.row = (b.row + 1) % Rows
	}
}

// PutString writes s at the cursor
func (b *Buffer) PutString(s string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for i := 0; i < len(s); i++ {
		b.put(s[i])
	}
	return nil
}

// UploadGlyph stores a character in CGRAM slot 0-7 and leaves the buffer
// in CGRAM mode
func (b *Buffer) UploadGlyph(pixels [8]byte, slot int) error {
	if slot < 0 || slot > 7 {
		return fmt.Errorf("glyph slot %d out of range", slot)
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.cgMode = true
	b.cgAddr = slot * 8
	for _, row := range pixels {
		b.put(row)
	}
	return nil
}

// DataMode returns to DDRAM addressing at the home position
func (b *Buffer) DataMode() error {
	return b.Home()
}

// Lines returns the visible 16 columns of each row, raw character codes
// included
func (b *Buffer) Lines() [Rows]string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	var out [Rows]string
	for r := range b.ddram {
		out[r] = string(b.ddram[r][:Columns])
	}
	return out
}

// Glyph returns the pixels stored in CGRAM slot
func (b *Buffer) Glyph(slot int) [8]byte {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.cgram[slot%8]
}

// glyphText renders CGRAM slots as printable characters
var glyphText = []rune{' ', '.', ':', '|', '4', '5', '6', '7'}

// Text returns Lines with custom glyphs replaced by printable characters
func (b *Buffer) Text() [Rows]string {
	lines := b.Lines()
	for r, line := range lines {
		var sb strings.Builder
		for i := 0; i < len(line); i++ {
			c := line[i]
			if c < 8 {
				sb.WriteRune(glyphText[c])
			} else {
				sb.WriteByte(c)
			}
		}
		lines[r] = sb.String()
	}
	return lines
}
