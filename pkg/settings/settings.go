// Package settings persists the tuning state (VFO frequencies, sidebands
// and steps) in a small non-volatile block.
package settings

import (
	"encoding/binary"
	"errors"

	"github.com/dougsko/ddstune/pkg/freq"
)

// Limits of the tuning state
const (
	NumVFOs  = 2
	NumSteps = 7
)

// Magic marks a block written by this firmware layout
const Magic = 124

// BlockSize is the encoded size of Settings
const BlockSize = 4 + NumVFOs*vfoSize

const vfoSize = 6

var (
	ErrInvalidSize = errors.New("invalid settings block size")
	ErrBadMagic    = errors.New("settings block has wrong magic number")
)

// VFO is the state of one oscillator
type VFO struct {
	Frequency freq.Hz
	Sideband  freq.Sideband
	Step      int
}

// Settings is the persisted tuning state
type Settings struct {
	ActiveVFO int
	// GlobalStep replaces a per-VFO step that is out of range
	GlobalStep int
	VFOs       [NumVFOs]VFO
}

// Defaults returns the factory settings
func Defaults() Settings {
	return Settings{
		ActiveVFO:  0,
		GlobalStep: 2,
		VFOs: [NumVFOs]VFO{
			{Frequency: 3699000, Sideband: freq.LSB, Step: 2},
			{Frequency: 14267000, Sideband: freq.USB, Step: 2},
		},
	}
}

// Active returns the selected VFO
func (s *Settings) Active() *VFO {
	return &s.VFOs[s.ActiveVFO]
}

// Sanitize brings every field into range: frequencies are clamped to
// [minHz, maxHz], bad steps fall back to the global step and a bad VFO
// index selects VFO A.
func (s *Settings) Sanitize(minHz, maxHz freq.Hz) {
	if s.ActiveVFO < 0 || s.ActiveVFO >= NumVFOs {
		s.ActiveVFO = 0
	}
	if s.GlobalStep < 0 || s.GlobalStep >= NumSteps {
		s.GlobalStep = Defaults().GlobalStep
	}
	for i := range s.VFOs {
		v := &s.VFOs[i]
		if v.Frequency < minHz {
			v.Frequency = minHz
		}
		if v.Frequency > maxHz {
			v.Frequency = maxHz
		}
		if v.Sideband != freq.LSB && v.Sideband != freq.USB {
			v.Sideband = freq.LSB
		}
		if v.Step < 0 || v.Step >= NumSteps {
			v.Step = s.GlobalStep
		}
	}
}

// MarshalBinary encodes the settings as a BlockSize byte block
func (s *Settings) MarshalBinary() ([]byte, error) {
	buf := make([]byte, BlockSize)
	buf[0] = Magic
	buf[1] = byte(s.ActiveVFO)
	buf[2] = byte(s.GlobalStep)
	for i, v := range s.VFOs {
		off := 4 + i*vfoSize
		buf[off] = byte(v.Sideband)
		buf[off+1] = byte(v.Step)
		binary.LittleEndian.PutUint32(buf[off+2:], uint32(int32(v.Frequency)))
	}
	return buf, nil
}

// UnmarshalBinary decodes a block. Values are taken as stored; call
// Sanitize before use.
func (s *Settings) UnmarshalBinary(data []byte) error {
	if len(data) < BlockSize {
		return ErrInvalidSize
	}
	if data[0] != Magic {
		return ErrBadMagic
	}
	s.ActiveVFO = int(int8(data[1]))
	s.GlobalStep = int(int8(data[2]))
	for i := range s.VFOs {
		off := 4 + i*vfoSize
		s.VFOs[i] = VFO{
			Sideband:  freq.Sideband(data[off]),
			Step:      int(int8(data[off+1])),
			Frequency: freq.Hz(int32(binary.LittleEndian.Uint32(data[off+2:]))),
		}
	}
	return nil
}
