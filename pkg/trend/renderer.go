package trend

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

// trendRenderer renders the trend widget.
type trendRenderer struct {
	trend *Widget

	// Background
	bg *canvas.Rectangle

	// Grid lines and labels
	gridLines []*canvas.Line
	gridTexts []*canvas.Text

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *trendRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *trendRenderer) Layout(size fyne.Size) {
	// Background fills entire widget
	r.bg.Resize(size)

	// Check if size changed
	if r.lastSize.Width != size.Width || r.lastSize.Height != size.Height {
		r.lastSize = size
		// Size changed, trigger widget refresh to redraw with new dimensions
		r.trend.BaseWidget.Refresh()
	}
}

// Refresh updates the widget display.
func (r *trendRenderer) Refresh() {
	r.trend.mu.RLock()
	points := r.trend.displayPoints
	yMin := r.trend.yMin
	yMax := r.trend.yMax
	xMin := r.trend.xMin
	xMax := r.trend.xMax
	capacity := r.trend.cfg.Sensor.Capacity
	r.trend.mu.RUnlock()

	size := r.trend.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	// Clear old objects (but keep background)
	r.objects = []fyne.CanvasObject{r.bg}
	r.gridLines = r.gridLines[:0]
	r.gridTexts = r.gridTexts[:0]

	// Calculate margins
	marginLeft := float32(60.0)
	marginRight := float32(20.0)
	marginTop := float32(20.0)
	marginBottom := float32(40.0)

	plotWidth := size.Width - marginLeft - marginRight
	plotHeight := size.Height - marginTop - marginBottom
	plotX := marginLeft
	plotY := marginTop

	// Draw grid
	r.drawGrid(plotX, plotY, plotWidth, plotHeight, yMin, yMax, xMin, xMax)

	// Draw capacity reference line (red) when it falls inside the scale
	if capacity > yMin && capacity < yMax {
		r.drawCapacityLine(plotX, plotY, plotWidth, plotHeight, capacity, yMin, yMax)
	}

	// Draw flow curve (orange line)
	if len(points) > 1 {
		r.drawFlowLine(plotX, plotY, plotWidth, plotHeight, points, yMin, yMax, xMin, xMax)
	}

	// Draw latest flow indicator
	if len(points) > 0 {
		r.drawFlowLabel(plotX, plotY, points[len(points)-1].Flow)
	}
}

// drawGrid draws the chart grid with axis labels.
func (r *trendRenderer) drawGrid(plotX, plotY, plotWidth, plotHeight float32, yMin, yMax float64, xMin, xMax time.Time) {
	// Horizontal grid lines (flowrate)
	numHLines := 8
	for i := range numHLines + 1 {
		y := plotY + float32(i)*plotHeight/float32(numHLines)
		line := canvas.NewLine(color.RGBA{R: 40, G: 40, B: 40, A: 255})
		line.Position1 = fyne.NewPos(plotX, y)
		line.Position2 = fyne.NewPos(plotX+plotWidth, y)
		line.StrokeWidth = 1
		r.gridLines = append(r.gridLines, line)
		r.objects = append(r.objects, line)

		// Y-axis label
		value := yMax - float64(i)*(yMax-yMin)/float64(numHLines)
		text := canvas.NewText(formatFlow(value), color.RGBA{R: 150, G: 150, B: 150, A: 255})
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(plotX-5, y-6))
		r.gridTexts = append(r.gridTexts, text)
		r.objects = append(r.objects, text)
	}

	// Vertical grid lines (time)
	numVLines := 10
	for i := range numVLines + 1 {
		x := plotX + float32(i)*plotWidth/float32(numVLines)
		line := canvas.NewLine(color.RGBA{R: 40, G: 40, B: 40, A: 255})
		line.Position1 = fyne.NewPos(x, plotY)
		line.Position2 = fyne.NewPos(x, plotY+plotHeight)
		line.StrokeWidth = 1
		r.gridLines = append(r.gridLines, line)
		r.objects = append(r.objects, line)

		// X-axis label
		timeOffset := float64(i) * xMax.Sub(xMin).Seconds() / float64(numVLines)
		text := canvas.NewText(formatElapsed(time.Duration(timeOffset*float64(time.Second))), color.RGBA{R: 150, G: 150, B: 150, A: 255})
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, plotY+plotHeight+5))
		r.gridTexts = append(r.gridTexts, text)
		r.objects = append(r.objects, text)
	}
}

// drawFlowLine draws the flowrate curve (orange).
func (r *trendRenderer) drawFlowLine(plotX, plotY, plotWidth, plotHeight float32, points []Point, yMin, yMax float64, xMin, xMax time.Time) {
	if len(points) < 2 {
		return
	}

	positions := make([]fyne.Position, 0, len(points))
	for _, p := range points {
		x := plotX + float32(p.T.Sub(xMin).Seconds()/xMax.Sub(xMin).Seconds())*plotWidth
		y := plotY + plotHeight - float32((p.Flow-yMin)/(yMax-yMin))*plotHeight
		positions = append(positions, fyne.NewPos(x, y))
	}

	// Draw connected line segments
	for i := range len(positions) - 1 {
		line := canvas.NewLine(color.RGBA{R: 255, G: 165, B: 0, A: 255}) // Orange
		line.Position1 = positions[i]
		line.Position2 = positions[i+1]
		line.StrokeWidth = 1.5
		r.objects = append(r.objects, line)
	}
}

// drawCapacityLine draws the sensor capacity reference line (red).
func (r *trendRenderer) drawCapacityLine(plotX, plotY, plotWidth, plotHeight float32, capacity, yMin, yMax float64) {
	y := plotY + plotHeight - float32((capacity-yMin)/(yMax-yMin))*plotHeight

	line := canvas.NewLine(color.RGBA{R: 200, G: 60, B: 60, A: 255})
	line.Position1 = fyne.NewPos(plotX, y)
	line.Position2 = fyne.NewPos(plotX+plotWidth, y)
	line.StrokeWidth = 1
	r.objects = append(r.objects, line)

	text := canvas.NewText("capacity", color.RGBA{R: 200, G: 60, B: 60, A: 255})
	text.TextSize = 10
	text.Alignment = fyne.TextAlignLeading
	text.Move(fyne.NewPos(plotX+plotWidth-60, y-14))
	r.objects = append(r.objects, text)
}

// drawFlowLabel draws the latest flowrate in the chart corner.
func (r *trendRenderer) drawFlowLabel(plotX, plotY float32, flow float64) {
	text := canvas.NewText(fmt.Sprintf("%.2f l/min", flow), color.RGBA{R: 200, G: 200, B: 200, A: 255})
	text.TextSize = 11
	text.Alignment = fyne.TextAlignLeading
	text.Move(fyne.NewPos(plotX+10, plotY+10))
	r.objects = append(r.objects, text)
}

// Objects returns all canvas objects for rendering.
func (r *trendRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *trendRenderer) Destroy() {
	// Cleanup handled by Fyne
}

// Helper functions for formatting

func formatFlow(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func formatElapsed(d time.Duration) string {
	if d >= time.Minute {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%.0fs", d.Seconds())
}
