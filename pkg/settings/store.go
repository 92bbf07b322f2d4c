package settings

import (
	"errors"
	"fmt"
	"sync"

	"tinygo.org/x/tinyfs"

	"github.com/dougsko/ddstune/pkg/freq"
	"github.com/dougsko/ddstune/pkg/logging"
)

// Store keeps Settings in the first erase block of a block device
type Store struct {
	dev   tinyfs.BlockDevice
	minHz freq.Hz
	maxHz freq.Hz
	mutex sync.Mutex
}

// NewStore creates a store on dev. Loaded frequencies are clamped to
// [minHz, maxHz].
func NewStore(dev tinyfs.BlockDevice, minHz, maxHz freq.Hz) *Store {
	return &Store{dev: dev, minHz: minHz, maxHz: maxHz}
}

// Load reads the saved settings. A block with the wrong magic number is
// replaced with the defaults immediately. On a read error the defaults are
// returned together with the error.
func (s *Store) Load() (Settings, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	buf := make([]byte, BlockSize)
	if _, err := s.dev.ReadAt(buf, 0); err != nil {
		d := Defaults()
		d.Sanitize(s.minHz, s.maxHz)
		return d, fmt.Errorf("failed to read settings: %w", err)
	}

	var loaded Settings
	if err := loaded.UnmarshalBinary(buf); err != nil {
		if !errors.Is(err, ErrBadMagic) {
			return Defaults(), err
		}
		logging.Warn("settings", "No valid settings found, writing defaults", map[string]interface{}{
			"magic": buf[0],
		})
		d := Defaults()
		d.Sanitize(s.minHz, s.maxHz)
		if err := s.save(d); err != nil {
			return d, err
		}
		return d, nil
	}

	loaded.Sanitize(s.minHz, s.maxHz)
	logging.Debug("settings", "Settings loaded", map[string]interface{}{
		"vfo":    loaded.ActiveVFO,
		"freq_a": int32(loaded.VFOs[0].Frequency),
		"freq_b": int32(loaded.VFOs[1].Frequency),
	})
	return loaded, nil
}

// Save writes the whole block
func (s *Store) Save(settings Settings) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.save(settings)
}

func (s *Store) save(settings Settings) error {
	data, err := settings.MarshalBinary()
	if err != nil {
		return err
	}

	// Pad to the device's write granularity with the erased value
	if wbs := int(s.dev.WriteBlockSize()); wbs > 0 && len(data)%wbs != 0 {
		padded := make([]byte, (len(data)/wbs+1)*wbs)
		for i := range padded {
			padded[i] = 0xFF
		}
		copy(padded, data)
		data = padded
	}

	if err := s.dev.EraseBlocks(0, 1); err != nil {
		return fmt.Errorf("failed to erase settings block: %w", err)
	}
	if _, err := s.dev.WriteAt(data, 0); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	logging.Info("settings", "Settings saved")
	return nil
}
