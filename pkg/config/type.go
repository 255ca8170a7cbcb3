package config

type MonitorConfig struct {
	ReaderHost string `toml:"reader_host"`
	LogLevel   string `toml:"log_level"`
}

type ReaderConfig struct {
	SerialDevice string `toml:"serial_device"`
	Baudrate     uint   `toml:"baudrate"`
	// Telegram buffer in bytes, must hold a complete telegram.
	BufferSize      int    `toml:"buffer_size"`
	MinimumPeriodMs uint32 `toml:"minimum_period_ms"`
	// Echo received bytes back out for a second P1 device.
	SecondaryP1    bool   `toml:"secondary_p1"`
	LoopIntervalMs int    `toml:"loop_interval_ms"`
	ListenAddress  string `toml:"listen_address"`
	ListenPort     int    `toml:"listen_port"`
	LogLevel       string `toml:"log_level"`
	LogFormat      string `toml:"log_format"`

	Sensors     []SensorConfig    `toml:"sensors"`
	ModbusRelay ModbusRelayConfig `toml:"modbus_relay"`
}

type SensorConfig struct {
	Name string `toml:"name"`
	// "major.minor.micro", e.g. "1.7.0"
	ObisCode string `toml:"obis_code"`
}

// Optional. Forwards selected sensors to holding registers of a Modbus TCP device.
type ModbusRelayConfig struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	UnitId    uint8  `toml:"unit_id"`
	TimeoutMs int    `toml:"timeout_ms"`
	// Ping the device before connecting, skipping writes while it is unreachable.
	PingCheck bool                  `toml:"ping_check"`
	Registers []RelayRegisterConfig `toml:"registers"`
}

type RelayRegisterConfig struct {
	Sensor  string `toml:"sensor"`
	Address uint16 `toml:"address"`
	// Value is multiplied by scale and written as a signed 32 bit integer.
	Scale float64 `toml:"scale"`
}
