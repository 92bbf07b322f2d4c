package hardware

import "fmt"

// PinMap assigns board signals to GPIO line numbers.
type PinMap struct {
	// DDS 3-wire bus
	DDSClock int
	DDSData  int
	DDSFsync int

	// HD44780 in 4-bit mode. LCDData[0] carries D4, LCDData[3] carries D7.
	LCDRegisterSelect int
	LCDEnable         int
	LCDData           [4]int

	// Inputs
	EncoderPrimary   int
	EncoderSecondary int
	Button           int

	// Outputs
	BandRelay int
}

// DefaultPinMap is the wiring used on the Raspberry Pi carrier board.
func DefaultPinMap() PinMap {
	return PinMap{
		DDSClock:          11,
		DDSData:           10,
		DDSFsync:          8,
		LCDRegisterSelect: 25,
		LCDEnable:         24,
		LCDData:           [4]int{23, 18, 15, 14},
		EncoderPrimary:    17,
		EncoderSecondary:  27,
		Button:            22,
		BandRelay:         4,
	}
}

// named returns every assignment with a label, for validation and logging
func (p PinMap) named() []struct {
	name string
	pin  int
} {
	return []struct {
		name string
		pin  int
	}{
		{"dds_clock", p.DDSClock},
		{"dds_data", p.DDSData},
		{"dds_fsync", p.DDSFsync},
		{"lcd_rs", p.LCDRegisterSelect},
		{"lcd_enable", p.LCDEnable},
		{"lcd_d4", p.LCDData[0]},
		{"lcd_d5", p.LCDData[1]},
		{"lcd_d6", p.LCDData[2]},
		{"lcd_d7", p.LCDData[3]},
		{"encoder_primary", p.EncoderPrimary},
		{"encoder_secondary", p.EncoderSecondary},
		{"button", p.Button},
		{"band_relay", p.BandRelay},
	}
}

// Validate checks that no line is negative or assigned twice
func (p PinMap) Validate() error {
	seen := make(map[int]string)
	for _, n := range p.named() {
		if n.pin < 0 {
			return fmt.Errorf("pin %s: negative line number %d", n.name, n.pin)
		}
		if other, ok := seen[n.pin]; ok {
			return fmt.Errorf("pin %d assigned to both %s and %s", n.pin, other, n.name)
		}
		seen[n.pin] = n.name
	}
	return nil
}
