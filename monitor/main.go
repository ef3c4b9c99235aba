package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/outlandnish/FlowMeter/pkg/config"
	"github.com/outlandnish/FlowMeter/pkg/flowmeter"
	"github.com/outlandnish/FlowMeter/pkg/sensor"
	"github.com/outlandnish/FlowMeter/pkg/trend"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use mocked sensor instead of serial port")
		windowFlag = flag.Duration("window", 0, "Measurement window override (0 = use config)")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	// Override measurement window if provided via command line
	if *windowFlag > 0 {
		cfg.Measurement.Window = *windowFlag
	}

	// Create Fyne application
	application := app.NewWithID("com.outlandnish.flowmeter")

	// Create main window
	window := application.NewWindow("Flow Meter")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	// Create flow meter from the configured sensor properties
	flowMeter := flowmeter.New(cfg.Sensor.Pin, cfg.Sensor.Properties())

	// Create application state
	state := &appState{
		cfg:       cfg,
		cfgPath:   *configFlag,
		device:    nil,
		flowMeter: flowMeter,
		series:    trend.NewSeries(trend.DefaultSpan),
		window:    window,
		useMock:   *mockFlag,
	}

	// Create toolbar
	toolbar := createToolbar(state)

	// Create trend widget for graph display
	trendWidget := trend.New(cfg)
	state.trendWidget = trendWidget

	// Create readout panel for the live numbers
	readout := newReadoutPanel()
	state.readout = readout

	// Border layout: toolbar on top, readout on the left, trend as content
	content := container.NewBorder(
		toolbar,
		nil,
		readout.box,
		nil,
		trendWidget,
	)

	window.SetContent(content)
	window.ShowAndRun()
}

// measurementChain tracks the components of the measurement chain for graceful shutdown.
type measurementChain struct {
	device         sensor.Device
	frames         <-chan sensor.Frame
	meterGoroutine chan struct{} // Closed when meter goroutine exits
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	cfgPath     string
	device      sensor.Device
	flowMeter   *flowmeter.Meter
	series      *trend.Series
	trendWidget *trend.Widget
	readout     *readoutPanel
	window      fyne.Window
	connectBtn  *widget.Button
	useMock     bool
	chain       *measurementChain // Current measurement chain (nil if not connected)

	// Throttling for trend updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// createToolbar creates the application toolbar with Connect, Settings and Reset buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	// Connect button with icon
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	// Settings button with icon
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	// Reset button zeroes the running totals. It works offline too, so it
	// stays enabled regardless of connection state.
	resetBtn := widget.NewButtonWithIcon("", theme.MediaReplayIcon(), func() {
		handleReset(state)
	})

	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(connectBtn, settingsBtn), // left
		container.NewHBox(resetBtn),                // right
		nil, // center (spacer)
	)
}

// closeMeasurementChain gracefully closes the measurement chain.
// Waits for the meter goroutine to finish and the frame channel to drain.
func closeMeasurementChain(chain *measurementChain) {
	if chain == nil {
		return
	}

	// Close device - this will close the frames channel
	if chain.device != nil {
		chain.device.Close()
	}

	// Wait for meter goroutine to finish
	// The meter goroutine exits when the frames channel closes
	if chain.meterGoroutine != nil {
		<-chain.meterGoroutine
	}
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.device != nil && state.device.IsConnected() {
		// Disconnect - gracefully close measurement chain
		closeMeasurementChain(state.chain)
		state.chain = nil
		state.device = nil
		if state.useMock {
			fmt.Println("Disconnected from mocked sensor")
		} else {
			fmt.Println("Disconnected from serial port")
		}
	} else {
		// Connect
		var device sensor.Device
		if state.useMock {
			device = sensor.NewMock(&state.cfg.Mock, state.cfg.Measurement.Window)
			fmt.Println("Using mocked sensor")
		} else {
			device = sensor.New(state.cfg.Serial.Port, state.cfg.Serial.BaudRate, state.cfg.Measurement.BufferSize)
		}

		if err := device.Connect(); err != nil {
			if state.useMock {
				dialog.ShowError(fmt.Errorf("failed to connect to mocked sensor: %w", err), state.window)
			} else {
				dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
			}
			return
		}
		state.device = device
		if state.useMock {
			fmt.Printf("Connected to mocked sensor\n")
		} else {
			fmt.Printf("Connected to serial port: %s\n", state.cfg.Serial.Port)
		}

		// Throttle updates to ~60 FPS (16.67ms between updates) to ensure smooth UI
		const updateInterval = 16 * time.Millisecond

		frames := device.Frames()
		meterDone := make(chan struct{})

		// Feed every frame through the meter, append to the trend series and
		// refresh the UI at most once per updateInterval.
		go func() {
			defer close(meterDone)
			for frame := range frames {
				state.flowMeter.AddPulses(frame.Pulses)
				state.flowMeter.Tick(frame.Window)
				state.series.Insert(trend.Point{
					T:      frame.At,
					Flow:   state.flowMeter.CurrentFlowrate(),
					Volume: state.flowMeter.TotalVolume(),
				})

				// Skip update if too soon since last update
				state.updateMu.Lock()
				now := time.Now()
				timeSinceLastUpdate := now.Sub(state.lastUpdateTime)
				state.updateMu.Unlock()
				if timeSinceLastUpdate < updateInterval {
					continue
				}

				state.updateMu.Lock()
				state.lastUpdateTime = now
				state.updateMu.Unlock()

				// Update widgets on main thread
				// Trend widget handles downsampling internally, so pass full data
				points := state.series.Points()
				fyne.Do(func() {
					state.trendWidget.UpdateData(points)
					state.readout.update(state.flowMeter)
				})
			}
		}()

		// Store chain for graceful shutdown
		state.chain = &measurementChain{
			device:         device,
			frames:         frames,
			meterGoroutine: meterDone,
		}
	}
}
