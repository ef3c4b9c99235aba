package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/outlandnish/FlowMeter/pkg/flowmeter"
)

// Config represents the host application configuration shared by the
// monitor GUI and the meterd daemon.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Mock        MockConfig        `yaml:"mock"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Influx      InfluxConfig      `yaml:"influx"`
	API         APIConfig         `yaml:"api"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// SensorConfig contains the flow sensor calibration.
type SensorConfig struct {
	Pin      string    `yaml:"pin"`
	Capacity float64   `yaml:"capacity"` // l/min
	KFactor  float64   `yaml:"k_factor"` // (pulses/s)/(l/min)
	MFactor  []float64 `yaml:"m_factor"` // ten per-decile corrections
}

// Properties converts the sensor section into meter properties.
// ensureDefaults guarantees MFactor holds exactly ten entries.
func (s SensorConfig) Properties() flowmeter.FlowSensorProperties {
	props := flowmeter.FlowSensorProperties{
		Capacity: s.Capacity,
		KFactor:  s.KFactor,
	}
	for i := range props.MFactor {
		if i < len(s.MFactor) {
			props.MFactor[i] = s.MFactor[i]
		} else {
			props.MFactor[i] = 1.0
		}
	}
	return props
}

// MeasurementConfig contains measurement parameters.
type MeasurementConfig struct {
	Window     time.Duration `yaml:"window"`      // measurement window cadence
	BufferSize int           `yaml:"buffer_size"` // frame channel buffer
}

// MockConfig contains the simulated sensor's flow profile.
type MockConfig struct {
	BaseFlow   float64       `yaml:"base_flow"`   // mean flow (l/min)
	Swing      float64       `yaml:"swing"`       // sinusoidal amplitude (l/min)
	NoiseLevel float64       `yaml:"noise_level"` // additive noise (l/min)
	Period     time.Duration `yaml:"period"`      // sinusoid period
}

// MQTTConfig contains telemetry publishing configuration.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// InfluxConfig contains measurement recording configuration.
type InfluxConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// APIConfig contains the daemon HTTP API configuration.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 115200,
		},
		Sensor: SensorConfig{
			Pin:      "D2",
			Capacity: 60,
			KFactor:  4.8,
			MFactor:  []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		},
		Measurement: MeasurementConfig{
			Window:     time.Second,
			BufferSize: 100,
		},
		Mock: MockConfig{
			BaseFlow:   12.0,
			Swing:      8.0,
			NoiseLevel: 0.5,
			Period:     30 * time.Second,
		},
		MQTT: MQTTConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     1883,
			ClientID: "flowmeter",
			Topic:    "flowmeter/measurements",
		},
		Influx: InfluxConfig{
			Enabled:       false,
			URL:           "http://localhost:8086",
			Org:           "home",
			Bucket:        "flow",
			BatchSize:     10,
			FlushInterval: 200 * time.Millisecond,
		},
		API: APIConfig{
			Listen: ":9090",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if
// missing, and normalizes the correction table to exactly ten entries.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Sensor.Pin == "" {
		c.Sensor.Pin = def.Sensor.Pin
	}
	if c.Sensor.Capacity == 0 {
		c.Sensor.Capacity = def.Sensor.Capacity
	}
	if c.Sensor.KFactor == 0 {
		c.Sensor.KFactor = def.Sensor.KFactor
	}
	c.Sensor.MFactor = normalizeMFactor(c.Sensor.MFactor)

	if c.Measurement.Window == 0 {
		c.Measurement.Window = def.Measurement.Window
	}
	if c.Measurement.BufferSize == 0 {
		c.Measurement.BufferSize = def.Measurement.BufferSize
	}

	if c.Mock.BaseFlow == 0 {
		c.Mock.BaseFlow = def.Mock.BaseFlow
	}
	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}

	if c.MQTT.Host == "" {
		c.MQTT.Host = def.MQTT.Host
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = def.MQTT.Port
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}

	if c.Influx.URL == "" {
		c.Influx.URL = def.Influx.URL
	}
	if c.Influx.Org == "" {
		c.Influx.Org = def.Influx.Org
	}
	if c.Influx.Bucket == "" {
		c.Influx.Bucket = def.Influx.Bucket
	}
	if c.Influx.BatchSize == 0 {
		c.Influx.BatchSize = def.Influx.BatchSize
	}
	if c.Influx.FlushInterval == 0 {
		c.Influx.FlushInterval = def.Influx.FlushInterval
	}

	if c.API.Listen == "" {
		c.API.Listen = def.API.Listen
	}
}

// normalizeMFactor pads or trims the correction table to ten entries and
// replaces non-positive factors with 1.0.
func normalizeMFactor(m []float64) []float64 {
	out := make([]float64, 10)
	for i := range out {
		if i < len(m) && m[i] > 0 {
			out[i] = m[i]
		} else {
			out[i] = 1.0
		}
	}
	return out
}
