package sensor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/outlandnish/FlowMeter/pkg/config"
	"github.com/outlandnish/FlowMeter/pkg/flowmeter"
)

// Mock simulates a flow sensor MCU for testing and development.
type Mock struct {
	cfg    *config.MockConfig
	window time.Duration

	frames    chan Frame
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	// Simulation state
	startTime time.Time
	carry     float64 // Fractional pulses carried into the next window
}

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)

// NewMock creates a new mocked device emitting frames at the window cadence.
func NewMock(cfg *config.MockConfig, window time.Duration) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			BaseFlow:   12.0,
			Swing:      8.0,
			NoiseLevel: 0.5,
			Period:     30 * time.Second,
		}
	}
	if window <= 0 {
		window = flowmeter.DefaultWindow
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:       cfg,
		window:    window,
		frames:    make(chan Frame, DefaultBufferSize),
		ctx:       ctx,
		cancel:    cancel,
		connected: false,
	}
}

// Connect simulates connecting to the device.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.startTime = time.Now()
	m.carry = 0

	// Start generating frames
	go m.generateFrames()

	return nil
}

// Close stops the mocked device.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false
	close(m.frames)

	return nil
}

// Frames returns the channel for reading frames.
func (m *Mock) Frames() <-chan Frame {
	return m.frames
}

// Reset restarts the simulated draw profile.
func (m *Mock) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return fmt.Errorf("not connected")
	}

	m.startTime = time.Now()
	m.carry = 0

	return nil
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// generateFrames generates simulated frames at the window cadence.
func (m *Mock) generateFrames() {
	ticker := time.NewTicker(m.window)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			frame := m.generateFrame()
			select {
			case m.frames <- frame:
			case <-m.ctx.Done():
				return
			default:
				// Channel full, skip
			}
		}
	}
}

// generateFrame generates a single simulated window frame.
func (m *Mock) generateFrame() Frame {
	m.mu.RLock()
	now := time.Now()
	elapsed := now.Sub(m.startTime)
	carry := m.carry
	m.mu.RUnlock()

	// Sinusoidal draw profile around the base flow
	flow := m.cfg.BaseFlow
	if m.cfg.Period > 0 {
		phase := 2 * math.Pi * elapsed.Seconds() / m.cfg.Period.Seconds()
		flow += m.cfg.Swing * math.Sin(phase)
	}

	// Add noise
	noise := (math.Sin(float64(elapsed.Nanoseconds())*0.001) +
		math.Cos(float64(elapsed.Nanoseconds())*0.0013)) *
		m.cfg.NoiseLevel * 0.5
	flow += noise
	if flow < 0 {
		flow = 0
	}

	// Work back to the pulse count an FS400A would report for this flow.
	// The fractional remainder carries over so long runs stay consistent.
	exact := flow*flowmeter.FS400A.KFactor*m.window.Seconds() + carry
	pulses := math.Floor(exact)

	m.mu.Lock()
	m.carry = exact - pulses
	m.mu.Unlock()

	return Frame{
		At:     now,
		Uptime: elapsed,
		Window: m.window,
		Pulses: uint32(pulses),
		Flow:   flow,
	}
}
