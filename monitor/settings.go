package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/outlandnish/FlowMeter/pkg/sensor"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	// Create tabs
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createSensorTab(state),
		createCalibrationTab(state),
		createMeasurementTab(state),
		createMockTab(state),
	)

	// Create dialog with tabs as content
	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	// Get available serial ports
	ports, err := sensor.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	// Add current port if not in list
	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
		currentDisplay = currentPort
	}

	portSelect := widget.NewSelect(portOptions, func(selected string) {
		// Selection handler - will be called on submit
	})
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(fmt.Sprintf("%d", state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud > 0 {
				state.cfg.Serial.BaudRate = baud
			}
			if portSelect.Selected != "" {
				selectedPort := portMap[portSelect.Selected]
				if selectedPort == "" {
					selectedPort = portSelect.Selected // Fallback to selected text
				}

				// Check if port changed and device is connected
				portChanged := state.cfg.Serial.Port != selectedPort
				wasConnected := state.device != nil && state.device.IsConnected()

				state.cfg.Serial.Port = selectedPort
				if err := state.cfg.Save(state.cfgPath); err != nil {
					dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
					return
				}

				// If port changed and device was connected, restart the measurement chain
				if portChanged && wasConnected {
					// Gracefully close old chain
					closeMeasurementChain(state.chain)
					state.chain = nil
					state.device = nil

					// Reconnect with new port
					handleConnect(state)
				}
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createSensorTab creates the Sensor configuration tab.
func createSensorTab(state *appState) *container.TabItem {
	pinEntry := widget.NewEntry()
	pinEntry.SetText(state.cfg.Sensor.Pin)

	capacityEntry := widget.NewEntry()
	capacityEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Sensor.Capacity))

	kFactorEntry := widget.NewEntry()
	kFactorEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Sensor.KFactor))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Pin", Widget: pinEntry},
			{Text: "Capacity (l/min)", Widget: capacityEntry},
			{Text: "K-Factor ((pulses/s)/(l/min))", Widget: kFactorEntry},
		},
		OnSubmit: func() {
			if pinEntry.Text != "" {
				state.cfg.Sensor.Pin = pinEntry.Text
			}
			if capacity, err := strconv.ParseFloat(capacityEntry.Text, 64); err == nil && capacity > 0 {
				state.cfg.Sensor.Capacity = capacity
			}
			if kFactor, err := strconv.ParseFloat(kFactorEntry.Text, 64); err == nil && kFactor > 0 {
				state.cfg.Sensor.KFactor = kFactor
			}
			if err := state.cfg.Save(state.cfgPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
			// Apply to the running meter without losing accumulated totals
			state.flowMeter.SetProperties(state.cfg.Sensor.Properties())
		},
	}

	return container.NewTabItem("Sensor", form)
}

// createCalibrationTab creates the Calibration configuration tab with the ten
// per-decile meter factors.
func createCalibrationTab(state *appState) *container.TabItem {
	entries := make([]*widget.Entry, len(state.cfg.Sensor.MFactor))
	items := make([]*widget.FormItem, 0, len(entries))
	for i := range entries {
		entry := widget.NewEntry()
		entry.SetText(fmt.Sprintf("%.3f", state.cfg.Sensor.MFactor[i]))
		entries[i] = entry

		lo := i * 10
		items = append(items, &widget.FormItem{
			Text:   fmt.Sprintf("Band %d (%d-%d%%)", i, lo, lo+10),
			Widget: entry,
		})
	}

	form := &widget.Form{
		Items: items,
		OnSubmit: func() {
			for i, entry := range entries {
				if m, err := strconv.ParseFloat(entry.Text, 64); err == nil && m > 0 {
					state.cfg.Sensor.MFactor[i] = m
				}
			}
			if err := state.cfg.Save(state.cfgPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
			// Apply to the running meter without losing accumulated totals
			state.flowMeter.SetProperties(state.cfg.Sensor.Properties())
		},
	}

	return container.NewTabItem("Calibration", form)
}

// createMeasurementTab creates the Measurement configuration tab.
func createMeasurementTab(state *appState) *container.TabItem {
	windowEntry := widget.NewEntry()
	windowEntry.SetText(state.cfg.Measurement.Window.String())

	bufferSizeEntry := widget.NewEntry()
	bufferSizeEntry.SetText(fmt.Sprintf("%d", state.cfg.Measurement.BufferSize))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Window", Widget: windowEntry},
			{Text: "Buffer Size", Widget: bufferSizeEntry},
		},
		OnSubmit: func() {
			if w, err := time.ParseDuration(windowEntry.Text); err == nil && w > 0 {
				state.cfg.Measurement.Window = w
			}
			if bs, err := strconv.Atoi(bufferSizeEntry.Text); err == nil && bs > 0 {
				state.cfg.Measurement.BufferSize = bs
			}
			if err := state.cfg.Save(state.cfgPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
			// Window and buffer size take effect on the next connect
		},
	}

	return container.NewTabItem("Measurement", form)
}

// createMockTab creates the Mock sensor configuration tab.
func createMockTab(state *appState) *container.TabItem {
	baseFlowEntry := widget.NewEntry()
	baseFlowEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.BaseFlow))

	swingEntry := widget.NewEntry()
	swingEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.Swing))

	noiseLevelEntry := widget.NewEntry()
	noiseLevelEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Mock.NoiseLevel))

	periodEntry := widget.NewEntry()
	periodEntry.SetText(state.cfg.Mock.Period.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Base Flow (l/min)", Widget: baseFlowEntry},
			{Text: "Swing (l/min)", Widget: swingEntry},
			{Text: "Noise Level (l/min)", Widget: noiseLevelEntry},
			{Text: "Period", Widget: periodEntry},
		},
		OnSubmit: func() {
			if bf, err := strconv.ParseFloat(baseFlowEntry.Text, 64); err == nil {
				state.cfg.Mock.BaseFlow = bf
			}
			if sw, err := strconv.ParseFloat(swingEntry.Text, 64); err == nil {
				state.cfg.Mock.Swing = sw
			}
			if nl, err := strconv.ParseFloat(noiseLevelEntry.Text, 64); err == nil {
				state.cfg.Mock.NoiseLevel = nl
			}
			if p, err := time.ParseDuration(periodEntry.Text); err == nil {
				state.cfg.Mock.Period = p
			}
			if err := state.cfg.Save(state.cfgPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
		},
	}

	return container.NewTabItem("Mock", form)
}
