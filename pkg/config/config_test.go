package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "COM3", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, "D2", cfg.Sensor.Pin)
	assert.Equal(t, float64(60), cfg.Sensor.Capacity)
	assert.Equal(t, 4.8, cfg.Sensor.KFactor)
	assert.Len(t, cfg.Sensor.MFactor, 10)
	assert.Equal(t, time.Second, cfg.Measurement.Window)
	assert.Equal(t, 100, cfg.Measurement.BufferSize)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.False(t, cfg.Influx.Enabled)
	assert.Equal(t, "http://localhost:8086", cfg.Influx.URL)
	assert.Equal(t, ":9090", cfg.API.Listen)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "COM3", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyACM0"
  baud_rate: 57600

sensor:
  pin: "GPIO17"
  capacity: 30
  k_factor: 5.5
  m_factor: [1.0, 1.02, 1.05, 1.0, 1.0, 1.1, 1.0, 1.0, 0.98, 1.0]

measurement:
  window: 2s
  buffer_size: 50

mqtt:
  enabled: true
  host: broker.local
  topic: flow/kitchen
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.BaudRate)
	assert.Equal(t, "GPIO17", cfg.Sensor.Pin)
	assert.Equal(t, float64(30), cfg.Sensor.Capacity)
	assert.Equal(t, 5.5, cfg.Sensor.KFactor)
	assert.Equal(t, 1.05, cfg.Sensor.MFactor[2])
	assert.Equal(t, 2*time.Second, cfg.Measurement.Window)
	assert.Equal(t, 50, cfg.Measurement.BufferSize)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "broker.local", cfg.MQTT.Host)
	assert.Equal(t, "flow/kitchen", cfg.MQTT.Topic)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyACM0"
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate) // default
	assert.Equal(t, 4.8, cfg.Sensor.KFactor)     // default
	assert.Equal(t, time.Second, cfg.Measurement.Window)
}

func TestLoad_ShortMFactorIsPadded(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
sensor:
  m_factor: [1.1, 0, -2]
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)

	require.Len(t, cfg.Sensor.MFactor, 10)
	assert.Equal(t, 1.1, cfg.Sensor.MFactor[0])
	// Zero, negative, and missing entries all become 1.0.
	for _, f := range cfg.Sensor.MFactor[1:] {
		assert.Equal(t, 1.0, f)
	}
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Sensor.KFactor = 5.5

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, 5.5, loaded.Sensor.KFactor)
}

func TestSensorConfig_Properties(t *testing.T) {
	cfg := Default()
	cfg.Sensor.MFactor[5] = 1.10

	props := cfg.Sensor.Properties()
	assert.Equal(t, float64(60), props.Capacity)
	assert.Equal(t, 4.8, props.KFactor)
	assert.Equal(t, 1.10, props.MFactor[5])
	assert.Equal(t, 1.0, props.MFactor[0])
}
