//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"github.com/chewxy/math32"

	"github.com/outlandnish/FlowMeter/pkg/flowmeter"
)

var (
	uart = machine.UART0

	meter  = flowmeter.New("D2", flowmeter.FS400A)
	pulses flowmeter.Counter

	// Timing
	boot       time.Time
	lastWindow time.Time

	// LED blink state
	ledState    bool
	lastBlink   time.Time
	blinkPeriod time.Duration
)

func main() {
	// Sensor pin: pull-down input, one counter increment per rising edge
	PIN_SENSOR.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	PIN_SENSOR.SetInterrupt(machine.PinRising,
		func(machine.Pin) {
			pulses.Increment()
		},
	)

	// Configure LED pin as output
	PIN_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	// Configure UART for frame output and commands
	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	// Initialize timing
	boot = time.Now()
	lastWindow = boot
	lastBlink = boot
	blinkPeriod = time.Duration(BLINK_IDLE_MS) * time.Millisecond

	// Main loop
	for {
		now := time.Now()

		// Check for serial input (non-blocking)
		processSerial()

		// Close the measurement window every WINDOW_MS
		if elapsed := now.Sub(lastWindow); elapsed >= time.Duration(WINDOW_MS)*time.Millisecond {
			count := pulses.Take()
			meter.AddPulses(count)
			meter.Tick(elapsed)
			lastWindow = now

			outputFrame(elapsed, count)
			updateBlinkPeriod()
		}

		blinkLED(now)

		// Small delay to prevent tight loop (but still allow precise timing)
		time.Sleep(time.Millisecond)
	}
}

// outputFrame writes one CSV frame for a closed window.
// Format: "uptime_ms,window_ms,pulses,flow_mlpm\n"
// Example: "1065000,1000,24,5000\n"
func outputFrame(elapsed time.Duration, count uint32) {
	uptimeMillis := time.Since(boot).Milliseconds()
	flowMilli := uint32(meter.CurrentFlowrate()*1000 + 0.5)

	print(uptimeMillis)
	print(",")
	print(elapsed.Milliseconds())
	print(",")
	print(count)
	print(",")
	print(flowMilli)
	print("\n")
}

// processSerial handles single-byte commands from the host.
func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		switch data {
		case 'r':
			// Zero the meter and any pulses of the open window
			meter.Reset()
			pulses.Take()
		case 'z':
			// Liveness probe: echo a zero-length frame. The window field
			// is 0 so host parsers never account it as a real window.
			outputFrame(0, 0)
		}
	}
}

// updateBlinkPeriod maps flow against capacity onto a blink half-period.
// Square root response so low flows are already visible on the LED.
func updateBlinkPeriod() {
	props := meter.Properties()

	frac := float32(0)
	if props.Capacity > 0 {
		frac = float32(meter.CurrentFlowrate() / props.Capacity)
	}
	frac = math32.Min(math32.Max(frac, 0), 1)

	ms := float32(BLINK_IDLE_MS) - (float32(BLINK_IDLE_MS)-float32(BLINK_MIN_MS))*math32.Sqrt(frac)
	blinkPeriod = time.Duration(ms) * time.Millisecond
}

// blinkLED toggles the LED each time the blink half-period passes.
func blinkLED(now time.Time) {
	if now.Sub(lastBlink) < blinkPeriod {
		return
	}

	ledState = !ledState
	if ledState {
		PIN_LED.High()
	} else {
		PIN_LED.Low()
	}
	lastBlink = now
}
