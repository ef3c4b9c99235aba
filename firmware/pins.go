package main

import "machine"

const (
	// Measurement configuration
	WINDOW_MS = 1000 // Measurement window length in milliseconds

	// LED blink half-periods. The blink shortens as flow approaches the
	// sensor capacity; with no flow the LED beats as a 1 Hz heartbeat.
	BLINK_IDLE_MS = 1000
	BLINK_MIN_MS  = 50

	// Sensor pin (hall pulse output, one rising edge per pulse)
	PIN_SENSOR = machine.D2

	// Onboard LED
	PIN_LED = machine.LED

	// Serial configuration
	// Baud rate calculation: Format "uptime_ms,window_ms,pulses,flow_mlpm\n"
	// Example: "4294967295,1000,65535,120000\n" = ~30 bytes max per line
	// 1 frame/sec * 30 bytes/line = 30 bytes/sec, trivial for any rate.
	// 115200 keeps each frame transmission under 3 ms so the window loop
	// timing stays undisturbed.
	UART_BAUD_RATE = 115200
)
