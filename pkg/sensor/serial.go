package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the standard baud rate for XIAO SAMD21.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the frames channel buffer.
	DefaultBufferSize = 100
)

// Frame represents one closed measurement window reported by a sensor source.
type Frame struct {
	At     time.Time     // Host receive time
	Uptime time.Duration // Device uptime at window close
	Window time.Duration // Measurement window length
	Pulses uint32        // Pulses attributed to the window
	Flow   float64       // Device-computed flowrate (l/min)
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to a serial-attached flow sensor MCU.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      serial.Port
	frames    chan Frame
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a new Device instance with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:      port,
		baudRate:  baudRate,
		bufSize:   bufSize,
		frames:    make(chan Frame, bufSize),
		ctx:       ctx,
		cancel:    cancel,
		connected: false,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		// Try to get port description if available
		port, err := serial.Open(name, &serial.Mode{
			BaudRate: DefaultBaudRate,
		})
		if err == nil {
			// Port opened successfully, get description
			desc := name // Use name as description if we can't get more info
			port.Close()
			result = append(result, Port{
				Name:        name,
				Description: desc,
			})
		} else {
			// Still add the port even if we can't open it
			result = append(result, Port{
				Name:        name,
				Description: name,
			})
		}
	}

	return result, nil
}

// Connect connects to the serial port and starts reading frames.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}

	port, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true

	// Start reading frames in a goroutine
	go d.readFrames()

	return nil
}

// Close closes the connection and stops reading frames.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	// Cancel context to stop reading goroutine
	d.cancel()

	// Close serial port
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}

	d.connected = false

	// Close frames channel
	close(d.frames)

	return nil
}

// Frames returns the channel for reading frames.
func (d *Serial) Frames() <-chan Frame {
	return d.frames
}

// Reset sends the reset command so the MCU zeroes its meter state.
func (d *Serial) Reset() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return fmt.Errorf("not connected")
	}

	if _, err := d.conn.Write([]byte{'r'}); err != nil {
		return fmt.Errorf("failed to send reset command: %w", err)
	}

	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readFrames reads lines from the serial port and parses them into Frame.
func (d *Serial) readFrames() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in readFrames: %v", r)
		}
	}()

	scanner := bufio.NewScanner(d.conn)
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
			if !scanner.Scan() {
				// Scanner stopped (EOF or error)
				if err := scanner.Err(); err != nil {
					if err != io.EOF {
						log.Printf("Error reading from serial port: %v", err)
					}
				}
				return
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			frame, err := parseFrame(line)
			if err != nil {
				log.Printf("Failed to parse line '%s': %v", line, err)
				continue
			}
			frame.At = time.Now()

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

// parseFrame parses a window frame from the MCU.
// Format: uptime_ms,window_ms,pulses,flow_mlpm
// Example: 1065000,1000,24,5000
func parseFrame(line string) (Frame, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return Frame{}, fmt.Errorf("invalid frame format: expected 4 comma-separated values, got %d", len(parts))
	}

	// Parse uptime (milliseconds since boot)
	uptimeMillis, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Frame{}, fmt.Errorf("invalid uptime: %w", err)
	}

	// Parse window length (milliseconds)
	windowMillis, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Frame{}, fmt.Errorf("invalid window: %w", err)
	}
	if windowMillis == 0 {
		return Frame{}, fmt.Errorf("invalid window: zero length")
	}

	// Parse pulse count
	pulses, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return Frame{}, fmt.Errorf("invalid pulse count: %w", err)
	}

	// Parse flowrate (milliliters per minute)
	flowMilli, err := strconv.ParseUint(parts[3], 10, 32)
	if err != nil {
		return Frame{}, fmt.Errorf("invalid flowrate: %w", err)
	}

	return Frame{
		Uptime: time.Duration(uptimeMillis) * time.Millisecond,
		Window: time.Duration(windowMillis) * time.Millisecond,
		Pulses: uint32(pulses),
		Flow:   float64(flowMilli) / 1000.0, // Convert mL/min to l/min
	}, nil
}
