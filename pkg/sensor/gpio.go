package sensor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/outlandnish/FlowMeter/pkg/flowmeter"
)

// edgeTimeout bounds WaitForEdge so the edge loop can observe shutdown.
const edgeTimeout = 250 * time.Millisecond

// GPIO counts sensor pulses on a directly wired host pin (Raspberry Pi class).
// Frames carry no device-computed flowrate; the host meter derives it.
type GPIO struct {
	pinName string
	window  time.Duration
	bufSize int

	pin       gpio.PinIO
	counter   flowmeter.Counter
	frames    chan Frame
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	started   time.Time
}

// NewGPIO creates a GPIO source counting pulses on the named pin.
func NewGPIO(pinName string, window time.Duration, bufSize int) *GPIO {
	if window <= 0 {
		window = flowmeter.DefaultWindow
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &GPIO{
		pinName: pinName,
		window:  window,
		bufSize: bufSize,
		frames:  make(chan Frame, bufSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect initialises the gpio host, configures the pin for rising edge
// detection, and starts the edge and window goroutines.
func (d *GPIO) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialise gpio host: %w", err)
	}

	pin := gpioreg.ByName(d.pinName)
	if pin == nil {
		return fmt.Errorf("gpio pin %s not found", d.pinName)
	}

	if err := pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return fmt.Errorf("failed to configure pin %s: %w", d.pinName, err)
	}

	d.pin = pin
	d.connected = true
	d.started = time.Now()

	go d.countEdges(pin)
	go d.closeWindows()

	return nil
}

// Close stops edge detection and closes the frames channel.
func (d *GPIO) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	// Cancel context to stop the edge and window goroutines
	d.cancel()

	if d.pin != nil {
		if err := d.pin.Halt(); err != nil {
			log.Printf("Error halting gpio pin: %v", err)
		}
		d.pin = nil
	}

	d.connected = false

	// Close frames channel
	close(d.frames)

	return nil
}

// Frames returns the channel for reading frames.
func (d *GPIO) Frames() <-chan Frame {
	return d.frames
}

// Reset discards pulses counted in the open window.
func (d *GPIO) Reset() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return fmt.Errorf("not connected")
	}

	d.counter.Take()
	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *GPIO) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// countEdges turns rising edges on the sensor pin into counter increments.
// The pin is passed in so the loop never races Close clearing d.pin; Halt
// wakes WaitForEdge and the context check exits the loop.
func (d *GPIO) countEdges(pin gpio.PinIO) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in countEdges: %v", r)
		}
	}()

	for {
		select {
		case <-d.ctx.Done():
			return
		default:
			if pin.WaitForEdge(edgeTimeout) {
				d.counter.Increment()
			}
		}
	}
}

// closeWindows drains the counter every window and emits a synthetic frame.
func (d *GPIO) closeWindows() {
	ticker := time.NewTicker(d.window)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-d.ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if elapsed <= 0 {
				continue
			}

			frame := Frame{
				At:     now,
				Uptime: now.Sub(d.started),
				Window: elapsed,
				Pulses: d.counter.Take(),
			}

			// Send frame to channel (non-blocking)
			select {
			case d.frames <- frame:
			case <-d.ctx.Done():
				return
			default:
				// Channel full, log and skip
				log.Printf("Frames channel full, dropping frame")
			}
		}
	}
}
