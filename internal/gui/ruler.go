package gui

import (
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/kikiluvv/splice/internal/timeline"
	"github.com/kikiluvv/splice/pkg/util"
)

const (
	rulerHeight = 22
	minTickPx   = 70
	tickLength  = 6
)

var tickSteps = []time.Duration{
	time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	time.Minute,
	5 * time.Minute,
	10 * time.Minute,
	30 * time.Minute,
	time.Hour,
}

// RulerView is the time scale above the track. Tapping seeks and dragging
// scrubs, whatever clip lies below.
type RulerView struct {
	widget.BaseWidget

	ctrl      *timeline.Controller
	scrubbing bool
	lastX     float32
}

// NewRulerView creates a ruler sharing ctrl's time axis
func NewRulerView(ctrl *timeline.Controller) *RulerView {
	v := &RulerView{ctrl: ctrl}
	v.ExtendBaseWidget(v)
	return v
}

func (v *RulerView) CreateRenderer() fyne.WidgetRenderer {
	r := &rulerRenderer{view: v, bg: canvas.NewRectangle(theme.Color(theme.ColorNameHeaderBackground))}
	r.rebuild()
	return r
}

func (v *RulerView) Tapped(ev *fyne.PointEvent) {
	v.ctrl.SeekAt(float64(ev.Position.X))
}

func (v *RulerView) Dragged(ev *fyne.DragEvent) {
	v.lastX = ev.Position.X
	if !v.scrubbing {
		v.scrubbing = v.ctrl.BeginScrub(float64(ev.Position.X))
		return
	}
	v.ctrl.PointerMove(float64(ev.Position.X))
}

func (v *RulerView) DragEnd() {
	if v.scrubbing {
		v.ctrl.PointerUp(float64(v.lastX))
	}
	v.scrubbing = false
}

// TickStep picks the smallest step keeping labels at least minTickPx apart
func TickStep(span time.Duration, width float32) time.Duration {
	if span <= 0 || width <= 0 {
		return 0
	}
	for _, step := range tickSteps {
		if float32(float64(step)/float64(span))*width >= minTickPx {
			return step
		}
	}
	return tickSteps[len(tickSteps)-1]
}

type rulerRenderer struct {
	view    *RulerView
	size    fyne.Size
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *rulerRenderer) Layout(size fyne.Size) {
	r.size = size
	r.rebuild()
}

func (r *rulerRenderer) MinSize() fyne.Size {
	return fyne.NewSize(200, rulerHeight)
}

func (r *rulerRenderer) Refresh() {
	r.rebuild()
	canvas.Refresh(r.view)
}

func (r *rulerRenderer) Objects() []fyne.CanvasObject {
	return append([]fyne.CanvasObject{r.bg}, r.objects...)
}

func (r *rulerRenderer) Destroy() {}

func (r *rulerRenderer) rebuild() {
	r.bg.Move(fyne.NewPos(0, 0))
	r.bg.Resize(r.size)
	r.objects = r.objects[:0]

	span := r.view.ctrl.Store().Span()
	step := TickStep(span, r.size.Width)
	if step <= 0 {
		return
	}

	fg := theme.Color(theme.ColorNameForeground)
	for t := time.Duration(0); t <= span; t += step {
		x := float32(r.view.ctrl.XAt(t))

		tick := canvas.NewLine(fg)
		tick.Position1 = fyne.NewPos(x, r.size.Height-tickLength)
		tick.Position2 = fyne.NewPos(x, r.size.Height)

		label := canvas.NewText(util.FormatClock(t), fg)
		label.TextSize = theme.CaptionTextSize()
		label.Move(fyne.NewPos(x+2, 0))

		r.objects = append(r.objects, tick, label)
	}
}
