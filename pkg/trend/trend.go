package trend

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/outlandnish/FlowMeter/pkg/config"
)

// Widget is a custom Fyne widget that charts recent flowrate over time.
type Widget struct {
	widget.BaseWidget

	cfg *config.Config

	// Data (protected by mu)
	mu     sync.RWMutex
	points []Point

	// Display buffer (reused for downsampling)
	displayPoints []Point

	// Auto-scaling
	yMin, yMax float64
	xMin, xMax time.Time

	// Display settings
	maxDisplayPoints int
}

// New creates a new trend widget instance.
func New(cfg *config.Config) *Widget {
	w := &Widget{
		cfg:              cfg,
		points:           make([]Point, 0),
		displayPoints:    make([]Point, 0, 1000),
		maxDisplayPoints: 1000, // Limit points for efficient rendering
	}
	w.ExtendBaseWidget(w)
	// Trigger initial refresh to display the empty chart
	w.Refresh()
	return w
}

// UpdateData updates the widget with new series points.
// This should be called from the measurement loop using fyne.Do().
func (w *Widget) UpdateData(points []Point) {
	w.mu.Lock()

	// Downsample for display (reuse buffer)
	w.displayPoints = Downsample(w.displayPoints, points, w.maxDisplayPoints)

	// Store full data
	w.points = points

	// Calculate auto-scaling
	w.updateAutoScale()

	w.mu.Unlock()

	// Refresh the widget (must be outside lock to avoid potential deadlock)
	w.Refresh()
}

// updateAutoScale calculates axis ranges from current data.
func (w *Widget) updateAutoScale() {
	if len(w.displayPoints) == 0 {
		w.yMin = 0.0
		w.yMax = 1.0
		w.xMin = time.Now()
		w.xMax = time.Now().Add(10 * time.Second)
		return
	}

	// Find min/max flow
	w.yMin = w.displayPoints[0].Flow
	w.yMax = w.displayPoints[0].Flow
	for _, p := range w.displayPoints {
		if p.Flow < w.yMin {
			w.yMin = p.Flow
		}
		if p.Flow > w.yMax {
			w.yMax = p.Flow
		}
	}

	// Add 10% margin
	range_ := w.yMax - w.yMin
	if range_ == 0 {
		range_ = 1.0
	}
	margin := range_ * 0.1
	w.yMin -= margin
	w.yMax += margin

	// Flow is never negative
	if w.yMin < 0 {
		w.yMin = 0
	}

	// Time range
	w.xMin = w.displayPoints[0].T
	w.xMax = w.displayPoints[len(w.displayPoints)-1].T
	// Ensure minimum window
	minSpan := w.cfg.Measurement.Window * 10
	if minSpan <= 0 {
		minSpan = 10 * time.Second
	}
	if w.xMax.Sub(w.xMin) < minSpan {
		w.xMax = w.xMin.Add(minSpan)
	}
}

// CreateRenderer creates the widget renderer.
func (w *Widget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &trendRenderer{
		trend:    w,
		bg:       bg,
		objects:  []fyne.CanvasObject{bg},
		lastSize: fyne.Size{Width: 0, Height: 0},
	}
}
