package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/p1_mini/pkg/obis"
	"github.com/NotCoffee418/p1_mini/pkg/pathing"
)

var (
	ActiveReaderConfig  *ReaderConfig
	ActiveMonitorConfig *MonitorConfig
)

var ErrInvalidConfig = errors.New("invalid config")

func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		SerialDevice:    "/dev/ttyUSB0",
		Baudrate:        115200,
		BufferSize:      2048,
		MinimumPeriodMs: 0,
		SecondaryP1:     false,
		LoopIntervalMs:  10,
		ListenAddress:   "0.0.0.0",
		ListenPort:      9039,
		LogLevel:        "info",
		LogFormat:       "text",
		Sensors: []SensorConfig{
			{Name: "consumption_kw", ObisCode: "1.7.0"},
			{Name: "production_kw", ObisCode: "2.7.0"},
			{Name: "total_consumption_kwh", ObisCode: "1.8.0"},
			{Name: "total_production_kwh", ObisCode: "2.8.0"},
			{Name: "total_consumption_day_kwh", ObisCode: "1.8.1"},
			{Name: "total_consumption_night_kwh", ObisCode: "1.8.2"},
			{Name: "total_production_day_kwh", ObisCode: "2.8.1"},
			{Name: "total_production_night_kwh", ObisCode: "2.8.2"},
			{Name: "l1_voltage_v", ObisCode: "32.7.0"},
			{Name: "l2_voltage_v", ObisCode: "52.7.0"},
			{Name: "l3_voltage_v", ObisCode: "72.7.0"},
			{Name: "l1_current_a", ObisCode: "31.7.0"},
			{Name: "l2_current_a", ObisCode: "51.7.0"},
			{Name: "l3_current_a", ObisCode: "71.7.0"},
		},
		ModbusRelay: ModbusRelayConfig{
			Enabled:   false,
			Endpoint:  "192.168.200.1:502",
			UnitId:    1,
			TimeoutMs: 2000,
			PingCheck: true,
		},
	}
}

func LoadReaderConfig() error {
	cfg := DefaultReaderConfig()
	if err := loadOrCreate(pathing.GetReaderConfigPath(), cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ActiveReaderConfig = cfg
	return nil
}

func LoadMonitorConfig() error {
	cfg := &MonitorConfig{
		ReaderHost: "localhost:9039",
		LogLevel:   "info",
	}
	if err := loadOrCreate(pathing.GetMonitorConfigPath(), cfg); err != nil {
		return err
	}
	ActiveMonitorConfig = cfg
	return nil
}

// loadOrCreate decodes path into cfg. When the file does not exist yet it is
// created from the defaults already in cfg.
func loadOrCreate(path string, cfg any) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		cfgFile, err := os.Create(path)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		return toml.NewEncoder(cfgFile).Encode(cfg)
	}

	_, err := toml.DecodeFile(path, cfg)
	return err
}

// Validate checks everything the reader would otherwise trip over at runtime.
func (c *ReaderConfig) Validate() error {
	if c.BufferSize <= 0 {
		return fmt.Errorf("%w: buffer_size must be positive, got %d", ErrInvalidConfig, c.BufferSize)
	}

	names := make(map[string]bool)
	codes := make(map[obis.Code]string)
	for _, s := range c.Sensors {
		if s.Name == "" {
			return fmt.Errorf("%w: sensor with obis code %q has no name", ErrInvalidConfig, s.ObisCode)
		}
		if names[s.Name] {
			return fmt.Errorf("%w: duplicate sensor name %q", ErrInvalidConfig, s.Name)
		}
		names[s.Name] = true

		code := obis.Parse(s.ObisCode)
		if !code.Valid() {
			return fmt.Errorf("%w: not a valid OBIS code: '%s'", ErrInvalidConfig, s.ObisCode)
		}
		if other, exists := codes[code]; exists {
			return fmt.Errorf("%w: sensors %q and %q share obis code %s", ErrInvalidConfig, other, s.Name, code)
		}
		codes[code] = s.Name
	}

	if c.ModbusRelay.Enabled {
		if c.ModbusRelay.Endpoint == "" {
			return fmt.Errorf("%w: modbus_relay.endpoint required", ErrInvalidConfig)
		}
		for _, r := range c.ModbusRelay.Registers {
			if !names[r.Sensor] {
				return fmt.Errorf("%w: modbus_relay register %d refers to unknown sensor %q", ErrInvalidConfig, r.Address, r.Sensor)
			}
		}
	}
	return nil
}
