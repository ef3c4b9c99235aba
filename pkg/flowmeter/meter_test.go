package flowmeter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	m := New("D2", FlowSensorProperties{})

	assert.NotNil(t, m)
	assert.Equal(t, "D2", m.Pin())
	assert.Equal(t, FS400A, m.Properties())
	assert.Equal(t, time.Duration(0), m.CurrentDuration())
	assert.Equal(t, 0.0, m.CurrentFlowrate())
	assert.Equal(t, 0.0, m.CurrentVolume())
	assert.Equal(t, 0.0, m.CurrentError())
	assert.Equal(t, time.Duration(0), m.TotalDuration())
	assert.Equal(t, 0.0, m.TotalFlowrate())
	assert.Equal(t, 0.0, m.TotalVolume())
	assert.Equal(t, 0.0, m.TotalError())
	assert.Equal(t, uint32(0), m.Pending())
}

func TestNew_CustomProperties(t *testing.T) {
	m := New("GPIO17", FS300A)
	assert.Equal(t, FS300A, m.Properties())
	assert.Equal(t, "GPIO17", m.Pin())
}

func TestTick_LowFlowWindow(t *testing.T) {
	// 24 pulses over one second: 24/4.8 = 5.0 l/min in the bottom decile.
	m := New("D2", FS400A)
	m.AddPulses(24)
	m.Tick(DefaultWindow)

	assert.Equal(t, DefaultWindow, m.CurrentDuration())
	assert.InDelta(t, 5.0, m.CurrentFlowrate(), 1e-9)
	assert.InDelta(t, 5.0/60, m.CurrentVolume(), 1e-9)
	assert.Equal(t, 0.0, m.CurrentError())
	assert.Equal(t, uint32(0), m.Pending())
}

func TestTick_FlowAboveCapacityClampsTopDecile(t *testing.T) {
	// 485 pulses over one second: 485/4.8 ≈ 101.04 l/min, well above the
	// 60 l/min capacity. The correction comes from the top band.
	m := New("D2", FS400A)
	m.AddPulses(485)
	m.Tick(DefaultWindow)

	assert.InDelta(t, 101.0417, m.CurrentFlowrate(), 1e-4)
	assert.InDelta(t, 1.6840, m.CurrentVolume(), 1e-4)
	assert.Equal(t, 0.0, m.CurrentError())
}

func TestTick_AccumulatesTotals(t *testing.T) {
	m := New("D2", FS400A)

	m.AddPulses(24)
	m.Tick(DefaultWindow)
	m.AddPulses(48)
	m.Tick(DefaultWindow)

	assert.Equal(t, 2*time.Second, m.TotalDuration())
	assert.InDelta(t, 0.25, m.TotalVolume(), 1e-9)
	assert.InDelta(t, 7.5, m.TotalFlowrate(), 1e-9)
	assert.Equal(t, 0.0, m.TotalError())
}

func TestTick_DegenerateWindow(t *testing.T) {
	m := New("D2", FS400A)

	m.AddPulses(24)
	m.Tick(DefaultWindow)
	totalBefore := m.TotalVolume()

	// A zero-length window zeroes the current values, leaves the totals
	// alone and keeps pending pulses for the next window.
	m.AddPulses(48)
	m.Tick(0)

	assert.Equal(t, time.Duration(0), m.CurrentDuration())
	assert.Equal(t, 0.0, m.CurrentFlowrate())
	assert.Equal(t, 0.0, m.CurrentVolume())
	assert.Equal(t, time.Second, m.TotalDuration())
	assert.Equal(t, totalBefore, m.TotalVolume())
	assert.Equal(t, uint32(48), m.Pending())

	// The retained pulses flow into the next normal window.
	m.Tick(DefaultWindow)
	assert.InDelta(t, 10.0, m.CurrentFlowrate(), 1e-9)
	assert.Equal(t, 2*time.Second, m.TotalDuration())
}

func TestTick_NegativeDurationIsDegenerate(t *testing.T) {
	m := New("D2", FS400A)
	m.AddPulses(24)
	m.Tick(-time.Second)

	assert.Equal(t, 0.0, m.CurrentFlowrate())
	assert.Equal(t, time.Duration(0), m.TotalDuration())
	assert.Equal(t, uint32(24), m.Pending())
}

func TestTick_MeterFactorCorrection(t *testing.T) {
	// 144 pulses over one second: raw 30 l/min, decile 5. With a 10%
	// correction in that band the reported flow is 33 l/min.
	props := FS400A
	props.MFactor[5] = 1.10

	m := New("D2", props)
	m.AddPulses(144)
	m.Tick(DefaultWindow)

	assert.InDelta(t, 33.0, m.CurrentFlowrate(), 1e-9)
	assert.InDelta(t, 0.10, m.CurrentError(), 1e-9)
	assert.InDelta(t, 0.10, m.TotalError(), 1e-9)
}

func TestTick_UncorrectedFlowFormula(t *testing.T) {
	tests := []struct {
		name    string
		pulses  uint32
		elapsed time.Duration
	}{
		{"one second", 48, time.Second},
		{"half second", 12, 500 * time.Millisecond},
		{"two seconds", 96, 2 * time.Second},
		{"no pulses", 0, time.Second},
		{"odd duration", 77, 1300 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New("D2", FS400A)
			m.AddPulses(tt.pulses)
			m.Tick(tt.elapsed)

			seconds := tt.elapsed.Seconds()
			wantFlow := float64(tt.pulses) / seconds / FS400A.KFactor
			assert.InDelta(t, wantFlow, m.CurrentFlowrate(), 1e-9)
			assert.InDelta(t, wantFlow*seconds/60, m.CurrentVolume(), 1e-9)
		})
	}
}

func TestTick_VariedWindowsMatchSums(t *testing.T) {
	windows := []struct {
		pulses  uint32
		elapsed time.Duration
	}{
		{24, time.Second},
		{0, 250 * time.Millisecond},
		{144, 1500 * time.Millisecond},
		{485, time.Second},
		{7, 100 * time.Millisecond},
	}

	m := New("D2", FS400A)
	var wantDuration time.Duration
	var wantVolume float64
	for _, w := range windows {
		m.AddPulses(w.pulses)
		m.Tick(w.elapsed)
		wantDuration += w.elapsed
		wantVolume += m.CurrentVolume()
	}

	assert.Equal(t, wantDuration, m.TotalDuration())
	assert.InDelta(t, wantVolume, m.TotalVolume(), 1e-9)
}

func TestReset(t *testing.T) {
	m := New("D2", FS400A)
	m.AddPulses(24)
	m.Tick(DefaultWindow)
	m.AddPulses(48)
	m.Tick(DefaultWindow)
	m.AddPulses(3)

	m.Reset()

	assert.Equal(t, time.Duration(0), m.CurrentDuration())
	assert.Equal(t, 0.0, m.CurrentFlowrate())
	assert.Equal(t, 0.0, m.CurrentVolume())
	assert.Equal(t, 0.0, m.CurrentError())
	assert.Equal(t, time.Duration(0), m.TotalDuration())
	assert.Equal(t, 0.0, m.TotalFlowrate())
	assert.Equal(t, 0.0, m.TotalVolume())
	assert.Equal(t, 0.0, m.TotalError())
	assert.Equal(t, uint32(0), m.Pending())
	assert.Equal(t, FS400A, m.Properties())

	// The meter behaves like a fresh instance afterwards.
	m.AddPulses(24)
	m.Tick(DefaultWindow)
	assert.InDelta(t, 5.0, m.CurrentFlowrate(), 1e-9)
	assert.InDelta(t, 5.0/60, m.CurrentVolume(), 1e-9)
}

func TestQueries_Idempotent(t *testing.T) {
	m := New("D2", FS400A)
	m.AddPulses(144)
	m.Tick(DefaultWindow)

	assert.Equal(t, m.CurrentFlowrate(), m.CurrentFlowrate())
	assert.Equal(t, m.CurrentVolume(), m.CurrentVolume())
	assert.Equal(t, m.CurrentError(), m.CurrentError())
	assert.Equal(t, m.TotalFlowrate(), m.TotalFlowrate())
	assert.Equal(t, m.TotalVolume(), m.TotalVolume())
	assert.Equal(t, m.TotalError(), m.TotalError())
}

func TestSetProperties_AppliesFromNextWindow(t *testing.T) {
	m := New("D2", FS400A)
	m.AddPulses(24)
	m.Tick(DefaultWindow)
	assert.InDelta(t, 5.0, m.CurrentFlowrate(), 1e-9)

	cal := NewCalibration(m.Properties())
	cal.SetKFactor(2.4)
	m.SetProperties(cal.Properties())

	m.AddPulses(24)
	m.Tick(DefaultWindow)
	assert.InDelta(t, 10.0, m.CurrentFlowrate(), 1e-9)
}

func TestCount_ConcurrentWithTicks(t *testing.T) {
	const (
		goroutines = 4
		perG       = 1000
	)

	m := New("D2", FS400A)

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perG {
				m.Count()
			}
		}()
	}

	// Close windows while pulses arrive; every pulse must land in
	// exactly one window.
	for range 10 {
		m.Tick(DefaultWindow)
	}
	wg.Wait()
	m.Tick(DefaultWindow)

	// All windows were one second with unity correction, so the total
	// pulse count reconstructs exactly from the accumulated volume.
	attributed := m.TotalVolume() * FS400A.KFactor * 60
	assert.InDelta(t, float64(goroutines*perG), attributed, 1e-6)
	assert.Equal(t, uint32(0), m.Pending())
}
