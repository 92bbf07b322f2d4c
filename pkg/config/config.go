package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config represents the ddstuned configuration
type Config struct {
	Tuner struct {
		ReferenceClockHz int64 `yaml:"reference_clock_hz"`
		IntermediateHz   int32 `yaml:"intermediate_hz"`
		MinHz            int32 `yaml:"min_hz"`
		MaxHz            int32 `yaml:"max_hz"`
		BandThresholdHz  int32 `yaml:"band_threshold_hz"`

		// Front panel behaviour
		StepThreshold  int `yaml:"step_threshold"`
		LongPressTicks int `yaml:"long_press_ticks"`
		PollInterval   int `yaml:"poll_interval_ms"`
	} `yaml:"tuner"`

	Hardware struct {
		Backend string `yaml:"backend"` // mock, sysfs, periph

		// BCM line numbers
		Pins struct {
			DDSClock          int    `yaml:"dds_clock"`
			DDSData           int    `yaml:"dds_data"`
			DDSFsync          int    `yaml:"dds_fsync"`
			LCDRegisterSelect int    `yaml:"lcd_rs"`
			LCDEnable         int    `yaml:"lcd_enable"`
			LCDData           [4]int `yaml:"lcd_data"`
			EncoderPrimary    int    `yaml:"encoder_primary"`
			EncoderSecondary  int    `yaml:"encoder_secondary"`
			Button            int    `yaml:"button"`
			BandRelay         int    `yaml:"band_relay"`
		} `yaml:"pins"`

		ADCPath       string `yaml:"adc_path"`
		ADCBits       int    `yaml:"adc_bits"`
		EEPROMPath    string `yaml:"eeprom_path"`
		DDSBitDelayUs int    `yaml:"dds_bit_delay_us"`
		Display       string `yaml:"display"` // hd44780, buffer
	} `yaml:"hardware"`

	Web struct {
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	API struct {
		UnixSocket string `yaml:"unix_socket"`
	} `yaml:"api"`

	Storage struct {
		DatabasePath string `yaml:"database_path"`
		MaxEvents    int    `yaml:"max_events"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// Known hardware backends
var knownBackends = map[string]bool{
	"mock":   true,
	"sysfs":  true,
	"periph": true,
}

// Known display drivers
var knownDisplays = map[string]bool{
	"hd44780": true,
	"buffer":  true,
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.SetDefaults()
	return &config, nil
}

// Default returns a configuration with every default filled in
func Default() *Config {
	var config Config
	config.SetDefaults()
	return &config
}

// SetDefaults fills in zero-valued fields
func (c *Config) SetDefaults() {
	if c.Tuner.ReferenceClockHz == 0 {
		c.Tuner.ReferenceClockHz = 50000000
	}
	if c.Tuner.IntermediateHz == 0 {
		c.Tuner.IntermediateHz = 5000000
	}
	if c.Tuner.MinHz == 0 {
		c.Tuner.MinHz = 100000
	}
	if c.Tuner.MaxHz == 0 {
		c.Tuner.MaxHz = 20000000
	}
	if c.Tuner.BandThresholdHz == 0 {
		c.Tuner.BandThresholdHz = 10000000
	}
	if c.Tuner.StepThreshold == 0 {
		c.Tuner.StepThreshold = 5
	}
	if c.Tuner.LongPressTicks == 0 {
		c.Tuner.LongPressTicks = 50
	}
	if c.Tuner.PollInterval == 0 {
		c.Tuner.PollInterval = 10
	}

	if c.Hardware.Backend == "" {
		c.Hardware.Backend = "mock"
	}
	if c.Hardware.Display == "" {
		if c.Hardware.Backend == "mock" {
			c.Hardware.Display = "buffer"
		} else {
			c.Hardware.Display = "hd44780"
		}
	}
	pins := &c.Hardware.Pins
	if pins.DDSClock == 0 && pins.DDSData == 0 && pins.DDSFsync == 0 {
		pins.DDSClock, pins.DDSData, pins.DDSFsync = 11, 10, 8
	}
	if pins.LCDRegisterSelect == 0 && pins.LCDEnable == 0 {
		pins.LCDRegisterSelect, pins.LCDEnable = 25, 24
	}
	if pins.LCDData == [4]int{} {
		pins.LCDData = [4]int{23, 18, 15, 14}
	}
	if pins.EncoderPrimary == 0 && pins.EncoderSecondary == 0 {
		pins.EncoderPrimary, pins.EncoderSecondary = 17, 27
	}
	if pins.Button == 0 {
		pins.Button = 22
	}
	if pins.BandRelay == 0 {
		pins.BandRelay = 4
	}
	if c.Hardware.ADCBits == 0 {
		c.Hardware.ADCBits = 8
	}
	if c.Hardware.DDSBitDelayUs == 0 {
		c.Hardware.DDSBitDelayUs = 15
	}
	if c.Hardware.EEPROMPath == "" {
		c.Hardware.EEPROMPath = "/var/lib/ddstune/settings.eeprom"
	}

	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "0.0.0.0"
	}
	if c.API.UnixSocket == "" {
		c.API.UnixSocket = "/tmp/ddstune.sock"
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "/var/lib/ddstune/journal.db"
	}
	if c.Storage.MaxEvents == 0 {
		c.Storage.MaxEvents = 10000
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 28
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Tuner.ReferenceClockHz <= 0 {
		return fmt.Errorf("tuner reference clock must be positive, got %d", c.Tuner.ReferenceClockHz)
	}
	if c.Tuner.MinHz >= c.Tuner.MaxHz {
		return fmt.Errorf("tuner min_hz (%d) must be below max_hz (%d)", c.Tuner.MinHz, c.Tuner.MaxHz)
	}
	if c.Tuner.StepThreshold < 1 {
		return fmt.Errorf("tuner step_threshold must be at least 1")
	}
	if c.Tuner.LongPressTicks < 1 {
		return fmt.Errorf("tuner long_press_ticks must be at least 1")
	}
	if !knownBackends[c.Hardware.Backend] {
		return fmt.Errorf("unknown hardware backend %q", c.Hardware.Backend)
	}
	if !knownDisplays[c.Hardware.Display] {
		return fmt.Errorf("unknown display %q", c.Hardware.Display)
	}
	if c.Storage.MaxEvents < 0 {
		return fmt.Errorf("storage max_events must not be negative")
	}

	p := c.Hardware.Pins
	seen := make(map[int]string)
	named := []struct {
		name string
		pin  int
	}{
		{"dds_clock", p.DDSClock},
		{"dds_data", p.DDSData},
		{"dds_fsync", p.DDSFsync},
		{"lcd_rs", p.LCDRegisterSelect},
		{"lcd_enable", p.LCDEnable},
		{"lcd_data[0]", p.LCDData[0]},
		{"lcd_data[1]", p.LCDData[1]},
		{"lcd_data[2]", p.LCDData[2]},
		{"lcd_data[3]", p.LCDData[3]},
		{"encoder_primary", p.EncoderPrimary},
		{"encoder_secondary", p.EncoderSecondary},
		{"button", p.Button},
		{"band_relay", p.BandRelay},
	}
	for _, n := range named {
		if other, ok := seen[n.pin]; ok {
			return fmt.Errorf("pin %d assigned to both %s and %s", n.pin, other, n.name)
		}
		seen[n.pin] = n.name
	}
	return nil
}
