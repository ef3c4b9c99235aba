package recorder

import (
	"log"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"

	"github.com/outlandnish/FlowMeter/pkg/config"
	"github.com/outlandnish/FlowMeter/pkg/telemetry"
)

// Recorder batches measurements into InfluxDB and tracks the age of the
// last write error for health reporting.
type Recorder struct {
	client   influxdb2.Client
	api      api.WriteAPI
	mu       sync.RWMutex
	lastErr  time.Time
	errCount int64
}

// New creates a recorder with batched, asynchronous writes.
func New(cfg *config.InfluxConfig) (*Recorder, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx config incomplete")
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	r := &Recorder{
		client:  client,
		api:     writeAPI,
		lastErr: time.Now().Add(-24 * time.Hour), // "no recent error" at start
	}

	// Drain the async error channel so writes never block.
	go func() {
		for err := range writeAPI.Errors() {
			if err != nil {
				r.mu.Lock()
				r.lastErr = time.Now()
				r.errCount++
				r.mu.Unlock()
				log.Printf("influx write error: %v", err)
			}
		}
	}()

	return r, nil
}

// Record queues one measurement for the next batch write.
func (r *Recorder) Record(m telemetry.Measurement) {
	r.api.WritePoint(toPoint(m))
}

// toPoint normalizes a measurement into an InfluxDB point.
func toPoint(m telemetry.Measurement) *write.Point {
	tags := map[string]string{
		"device": m.Device,
		"pin":    m.Pin,
	}

	fields := map[string]interface{}{
		"flowrate":         m.Flowrate,
		"volume":           m.Volume,
		"error":            m.Error,
		"total_flowrate":   m.TotalFlowrate,
		"total_volume":     m.TotalVolume,
		"total_error":      m.TotalError,
		"total_duration_s": m.TotalDuration,
		"pulses":           int64(m.Pulses),
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return influxdb2.NewPoint("flow", tags, fields, ts)
}

// LastErrorAge returns how long ago the last write error happened.
func (r *Recorder) LastErrorAge() time.Duration {
	if r == nil {
		return 99999 * time.Hour
	}
	r.mu.RLock()
	t := r.lastErr
	r.mu.RUnlock()
	return time.Since(t)
}

// ErrorCount returns the number of write errors seen since startup.
func (r *Recorder) ErrorCount() int64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	n := r.errCount
	r.mu.RUnlock()
	return n
}

// Flush forces the pending batch out ahead of the flush interval.
func (r *Recorder) Flush() {
	r.api.Flush()
}

// Close flushes pending points and shuts the client down.
func (r *Recorder) Close() {
	r.api.Flush()
	r.client.Close()
}
