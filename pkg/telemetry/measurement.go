package telemetry

import (
	"time"

	"github.com/outlandnish/FlowMeter/pkg/flowmeter"
)

// Measurement is one closed window snapshot, published to the broker and
// recorded to storage.
type Measurement struct {
	Device        string    `json:"device"`
	Pin           string    `json:"pin"`
	Timestamp     time.Time `json:"timestamp"`
	WindowMillis  int64     `json:"window_ms"`
	Pulses        uint32    `json:"pulses"`
	Flowrate      float64   `json:"flowrate"`
	Volume        float64   `json:"volume"`
	Error         float64   `json:"error"`
	Band          int       `json:"band"`
	TotalDuration float64   `json:"total_duration_s"`
	TotalFlowrate float64   `json:"total_flowrate"`
	TotalVolume   float64   `json:"total_volume"`
	TotalError    float64   `json:"total_error"`
}

// Snapshot captures the meter state right after a window close. The pulse
// count comes from the frame because Tick consumes the counter.
func Snapshot(m *flowmeter.Meter, device string, pulses uint32) Measurement {
	return Measurement{
		Device:        device,
		Pin:           m.Pin(),
		Timestamp:     time.Now(),
		WindowMillis:  m.CurrentDuration().Milliseconds(),
		Pulses:        pulses,
		Flowrate:      m.CurrentFlowrate(),
		Volume:        m.CurrentVolume(),
		Error:         m.CurrentError(),
		Band:          band(m.CurrentFlowrate(), m.Properties().Capacity),
		TotalDuration: m.TotalDuration().Seconds(),
		TotalFlowrate: m.TotalFlowrate(),
		TotalVolume:   m.TotalVolume(),
		TotalError:    m.TotalError(),
	}
}

// band maps a flowrate onto the calibration decile it falls into.
func band(flow, capacity float64) int {
	if capacity <= 0 {
		return 0
	}
	b := int(flow / capacity * 10)
	if b > 9 {
		b = 9
	}
	if b < 0 {
		b = 0
	}
	return b
}
