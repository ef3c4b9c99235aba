package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/outlandnish/FlowMeter/pkg/flowmeter"
	"github.com/outlandnish/FlowMeter/pkg/recorder"
	"github.com/outlandnish/FlowMeter/pkg/sensor"
)

var (
	flowrateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowmeter_flowrate_lpm",
		Help: "Corrected flowrate of the latest window in liters per minute.",
	})
	totalVolumeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowmeter_total_volume_liters",
		Help: "Accumulated corrected volume in liters.",
	})
	totalDurationGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowmeter_total_duration_seconds",
		Help: "Accumulated measurement time in seconds.",
	})
	errorGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowmeter_correction_error",
		Help: "Relative correction applied to the latest window (0 means none).",
	})

	windowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowmeter_windows_total",
		Help: "Number of measurement windows processed.",
	})
	pulsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowmeter_pulses_total",
		Help: "Number of sensor pulses counted.",
	})
	publishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowmeter_publish_errors_total",
		Help: "Number of failed MQTT publishes.",
	})
)

// observeWindow updates the gauges and counters after one window.
func observeWindow(m *flowmeter.Meter, frame sensor.Frame) {
	flowrateGauge.Set(m.CurrentFlowrate())
	totalVolumeGauge.Set(m.TotalVolume())
	totalDurationGauge.Set(m.TotalDuration().Seconds())
	errorGauge.Set(m.CurrentError())
	windowsTotal.Inc()
	pulsesTotal.Add(float64(frame.Pulses))
}

// registerRecorderMetrics exposes the recorder's async write-error count.
// Called once, only when the recorder is enabled.
func registerRecorderMetrics(rec *recorder.Recorder) {
	promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "flowmeter_record_errors_total",
		Help: "Number of asynchronous InfluxDB write errors.",
	}, func() float64 {
		return float64(rec.ErrorCount())
	})
}
