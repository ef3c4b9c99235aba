package main

import (
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"github.com/outlandnish/FlowMeter/pkg/flowmeter"
)

// readoutPanel shows the live meter numbers next to the trend graph.
type readoutPanel struct {
	box fyne.CanvasObject

	flowrate    *widget.Label
	volume      *widget.Label
	totalVolume *widget.Label
	duration    *widget.Label
	band        *widget.Label
	currentErr  *widget.Label
	totalErr    *widget.Label
}

func newReadoutPanel() *readoutPanel {
	p := &readoutPanel{
		flowrate:    widget.NewLabel("0.00 l/min"),
		volume:      widget.NewLabel("0.0000 l"),
		totalVolume: widget.NewLabel("0.000 l"),
		duration:    widget.NewLabel("0s"),
		band:        widget.NewLabel("-"),
		currentErr:  widget.NewLabel("0.0 %"),
		totalErr:    widget.NewLabel("0.0 %"),
	}

	caption := func(text string) *widget.Label {
		return widget.NewLabelWithStyle(text, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	}

	grid := container.New(layout.NewFormLayout(),
		caption("Flowrate"), p.flowrate,
		caption("Volume"), p.volume,
		caption("Total volume"), p.totalVolume,
		caption("Duration"), p.duration,
		caption("Band"), p.band,
		caption("Error"), p.currentErr,
		caption("Total error"), p.totalErr,
	)

	// VBox keeps the grid top-aligned inside the border layout
	p.box = container.NewVBox(grid)
	return p
}

// update refreshes the panel from the meter. Must run on the Fyne main thread.
func (p *readoutPanel) update(m *flowmeter.Meter) {
	p.flowrate.SetText(fmt.Sprintf("%.2f l/min", m.CurrentFlowrate()))
	p.volume.SetText(fmt.Sprintf("%.4f l", m.CurrentVolume()))
	p.totalVolume.SetText(fmt.Sprintf("%.3f l", m.TotalVolume()))
	p.duration.SetText(m.TotalDuration().Round(time.Second).String())
	p.band.SetText(formatBand(m))
	p.currentErr.SetText(fmt.Sprintf("%.1f %%", m.CurrentError()*100))
	p.totalErr.SetText(fmt.Sprintf("%.1f %%", m.TotalError()*100))
}

// formatBand shows which calibration decile the corrected flowrate falls into.
func formatBand(m *flowmeter.Meter) string {
	props := m.Properties()
	if props.Capacity <= 0 {
		return "-"
	}
	band := int(m.CurrentFlowrate() / props.Capacity * 10)
	if band > 9 {
		band = 9
	}
	if band < 0 {
		band = 0
	}
	return fmt.Sprintf("%d (%d-%d%%)", band, band*10, band*10+10)
}

// handleReset zeroes the meter totals and clears the trend. When a device is
// connected its pulse counter is reset too so the next window starts clean.
func handleReset(state *appState) {
	state.flowMeter.Reset()
	state.series.Clear()

	if state.device != nil && state.device.IsConnected() {
		if err := state.device.Reset(); err != nil {
			dialog.ShowError(fmt.Errorf("failed to reset device: %w", err), state.window)
		}
	}

	state.trendWidget.UpdateData(nil)
	state.readout.update(state.flowMeter)
}
