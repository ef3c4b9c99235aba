package flowmeter

import (
	"sync"
	"time"
)

// DefaultWindow is the conventional measurement window length. Hosts
// that close windows on a fixed cadence pass it to Tick.
const DefaultWindow = time.Second

// Meter turns a stream of sensor pulses into calibrated flow-rate and
// volume measurements. Pulses arrive asynchronously through Count or
// AddPulses; the host closes measurement windows with Tick and reads the
// results through the query methods.
//
// The pulse counter is the only state shared with the interrupt context
// and is maintained with atomics. Everything else is guarded by a
// read-write mutex so host goroutines (UI, HTTP handlers) can query
// while the window loop runs.
type Meter struct {
	pin     string
	counter Counter

	mu    sync.RWMutex
	props FlowSensorProperties

	// Most recently closed window.
	currentDuration   time.Duration
	currentFlowrate   float64 // l/min
	currentVolume     float64 // l
	currentCorrection float64

	// Lifetime accumulators since construction or Reset.
	totalDuration   time.Duration
	totalVolume     float64 // l
	totalCorrection float64 // correction weighted by window seconds
}

// New creates a meter for the sensor wired to the given pin. The pin
// identifier is opaque to the meter; it is echoed back by Pin so hosts
// can label measurements. A zero-value props selects FS400A.
func New(pin string, props FlowSensorProperties) *Meter {
	if props == (FlowSensorProperties{}) {
		props = FS400A
	}
	return &Meter{
		pin:   pin,
		props: props,
	}
}

// Pin returns the pin identifier the meter was constructed with.
func (m *Meter) Pin() string {
	return m.pin
}

// Count records one pulse. It is the interrupt entry point: a single
// atomic increment, safe to call from an interrupt service routine or
// any goroutine while the meter is in use.
func (m *Meter) Count() {
	m.counter.Increment()
}

// AddPulses records n pulses at once, for hosts that receive per-window
// pulse counts over a transport instead of individual edges.
func (m *Meter) AddPulses(n uint32) {
	m.counter.Add(n)
}

// Pending returns the pulses counted since the last window close.
func (m *Meter) Pending() uint32 {
	return m.counter.Pending()
}

// Tick closes a measurement window of the given elapsed duration and
// updates all current values and lifetime accumulators.
//
// Let K be the k-factor in (pulses/s)/(l/min), p the pulses drained from
// the counter and t the elapsed seconds. Then the pulse frequency is
// f = p/t and the uncorrected flow rate Q = f/K in l/min. The decile of
// Q within [0, capacity] selects the correction factor; the corrected
// flow rate and the window volume follow from it.
//
// A window with elapsed <= 0 is degenerate: current values are zeroed,
// the correction reports 1.0 and the lifetime accumulators do not
// advance. The counter is left untouched so pulses that arrived during
// the degenerate window count towards the next one.
func (m *Meter) Tick(elapsed time.Duration) {
	if elapsed <= 0 {
		m.mu.Lock()
		m.currentDuration = 0
		m.currentFlowrate = 0
		m.currentVolume = 0
		m.currentCorrection = 1.0
		m.mu.Unlock()
		return
	}

	// Pulses arriving after this point belong to the next window.
	pulses := m.counter.Take()
	seconds := elapsed.Seconds()
	frequency := float64(pulses) / seconds

	m.mu.Lock()
	defer m.mu.Unlock()

	raw := frequency / m.props.KFactor

	// Flow above capacity clamps into the top band.
	decile := 9
	if band := raw / m.props.Capacity * 10; band < 9 {
		decile = clampDecile(int(band))
	}
	correction := m.props.MFactor[decile]

	m.currentCorrection = correction
	m.currentFlowrate = raw * correction
	m.currentVolume = m.currentFlowrate * seconds / 60
	m.currentDuration = elapsed

	m.totalDuration += elapsed
	m.totalVolume += m.currentVolume
	m.totalCorrection += correction * seconds
}

// Reset discards all current values, lifetime accumulators and pending
// pulses, returning the meter to its freshly constructed state. The
// calibration is preserved.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter.Take()
	m.currentDuration = 0
	m.currentFlowrate = 0
	m.currentVolume = 0
	m.currentCorrection = 0
	m.totalDuration = 0
	m.totalVolume = 0
	m.totalCorrection = 0
}

// CurrentDuration returns the length of the most recently closed window.
func (m *Meter) CurrentDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentDuration
}

// CurrentFlowrate returns the corrected flow rate of the most recently
// closed window in l/min.
func (m *Meter) CurrentFlowrate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentFlowrate
}

// CurrentVolume returns the volume that flowed during the most recently
// closed window in liters.
func (m *Meter) CurrentVolume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentVolume
}

// CurrentError returns the deviation of the applied correction factor
// from unity as a fraction, 0.0 before the first window closes.
func (m *Meter) CurrentError() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.currentDuration == 0 {
		return 0
	}
	return abs(m.currentCorrection - 1.0)
}

// TotalDuration returns the summed length of all closed windows since
// construction or Reset.
func (m *Meter) TotalDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalDuration
}

// TotalFlowrate returns the average flow rate over all closed windows in
// l/min, 0.0 while no window has closed.
func (m *Meter) TotalFlowrate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.totalDuration == 0 {
		return 0
	}
	return m.totalVolume / m.totalDuration.Minutes()
}

// TotalVolume returns the total volume in liters since construction or
// Reset.
func (m *Meter) TotalVolume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalVolume
}

// TotalError returns the duration-weighted mean correction's deviation
// from unity as a fraction, 0.0 while no window has closed.
func (m *Meter) TotalError() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.totalDuration == 0 {
		return 0
	}
	return abs(m.totalCorrection/m.totalDuration.Seconds() - 1.0)
}

// Properties returns a copy of the meter's sensor properties.
func (m *Meter) Properties() FlowSensorProperties {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.props
}

// SetProperties replaces the meter's sensor properties. It takes effect
// from the next window close; accumulated totals are not recomputed.
func (m *Meter) SetProperties(props FlowSensorProperties) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.props = props
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
