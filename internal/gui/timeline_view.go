package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/kikiluvv/splice/internal/clips"
	"github.com/kikiluvv/splice/internal/timeline"
)

const (
	trackHeight    = 72
	clipInset      = 4
	progressHeight = 3
)

// TimelineView draws the clip track and forwards pointer input to the
// timeline controller. It holds no edit state of its own.
type TimelineView struct {
	widget.BaseWidget

	ctrl  *timeline.Controller
	lastX float32
}

// NewTimelineView creates a track widget for ctrl
func NewTimelineView(ctrl *timeline.Controller) *TimelineView {
	v := &TimelineView{ctrl: ctrl}
	v.ExtendBaseWidget(v)
	return v
}

func (v *TimelineView) CreateRenderer() fyne.WidgetRenderer {
	r := &timelineRenderer{
		view:     v,
		bg:       canvas.NewRectangle(theme.Color(theme.ColorNameInputBackground)),
		playhead: canvas.NewLine(theme.Color(theme.ColorNameError)),
		images:   make(map[string]*canvas.Image),
	}
	r.playhead.StrokeWidth = 2
	r.rebuild()
	return r
}

func (v *TimelineView) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	v.lastX = ev.Position.X
	v.ctrl.PointerDown(float64(ev.Position.X))
}

func (v *TimelineView) MouseUp(ev *desktop.MouseEvent) {
	v.ctrl.PointerUp(float64(ev.Position.X))
}

func (v *TimelineView) Dragged(ev *fyne.DragEvent) {
	x := ev.Position.X
	// drivers without mouse events start the session on the first move
	if _, ok := v.ctrl.Dragging(); !ok {
		v.ctrl.PointerDown(float64(x - ev.Dragged.DX))
	}
	v.lastX = x
	v.ctrl.PointerMove(float64(x))
}

func (v *TimelineView) DragEnd() {
	v.ctrl.PointerUp(float64(v.lastX))
}

func (v *TimelineView) Tapped(ev *fyne.PointEvent) {
	v.ctrl.Click(float64(ev.Position.X))
}

func (v *TimelineView) DoubleTapped(ev *fyne.PointEvent) {
	v.ctrl.DoubleClick(float64(ev.Position.X))
}

type timelineRenderer struct {
	view     *TimelineView
	size     fyne.Size
	bg       *canvas.Rectangle
	playhead *canvas.Line
	clips    []fyne.CanvasObject
	images   map[string]*canvas.Image
}

func (r *timelineRenderer) Layout(size fyne.Size) {
	r.size = size
	r.view.ctrl.SetWidth(float64(size.Width))
	r.rebuild()
}

func (r *timelineRenderer) MinSize() fyne.Size {
	return fyne.NewSize(200, trackHeight)
}

func (r *timelineRenderer) Refresh() {
	r.rebuild()
	canvas.Refresh(r.view)
}

func (r *timelineRenderer) Objects() []fyne.CanvasObject {
	objs := make([]fyne.CanvasObject, 0, len(r.clips)+2)
	objs = append(objs, r.bg)
	objs = append(objs, r.clips...)
	return append(objs, r.playhead)
}

func (r *timelineRenderer) Destroy() {}

func (r *timelineRenderer) rebuild() {
	lay := r.view.ctrl.Layout()
	h := r.size.Height

	r.bg.Move(fyne.NewPos(0, 0))
	r.bg.Resize(r.size)

	r.clips = r.clips[:0]
	for _, cv := range lay.Clips {
		r.clips = append(r.clips, r.clipObjects(cv, h)...)
	}

	x := float32(lay.PlayheadX)
	r.playhead.Position1 = fyne.NewPos(x, 0)
	r.playhead.Position2 = fyne.NewPos(x, h)
}

func (r *timelineRenderer) clipObjects(cv timeline.ClipView, h float32) []fyne.CanvasObject {
	pos := fyne.NewPos(float32(cv.X), clipInset)
	size := fyne.NewSize(float32(cv.Width), h-2*clipInset)

	box := canvas.NewRectangle(theme.Color(theme.ColorNameButton))
	box.CornerRadius = 3
	box.StrokeColor = theme.Color(theme.ColorNameSeparator)
	box.StrokeWidth = 1
	if cv.Selected {
		box.StrokeColor = theme.Color(theme.ColorNamePrimary)
		box.StrokeWidth = 2
	}
	if cv.Dragging {
		box.FillColor = theme.Color(theme.ColorNameHover)
	}
	box.Move(pos)
	box.Resize(size)
	objs := []fyne.CanvasObject{box}

	if n := len(cv.Thumbnails); n > 0 && cv.ThumbnailState == clips.Ready {
		w := size.Width / float32(n)
		for i, th := range cv.Thumbnails {
			img := r.image(th.ImageRef)
			img.Move(fyne.NewPos(pos.X+float32(i)*w, pos.Y))
			img.Resize(fyne.NewSize(w, size.Height))
			objs = append(objs, img)
		}
	}

	if cv.ThumbnailState == clips.Generating {
		bar := canvas.NewRectangle(theme.Color(theme.ColorNamePrimary))
		bar.Move(fyne.NewPos(pos.X, pos.Y+size.Height-progressHeight))
		bar.Resize(fyne.NewSize(size.Width*float32(cv.Progress/100), progressHeight))
		objs = append(objs, bar)
	}

	label := canvas.NewText(cv.Name, theme.Color(theme.ColorNameForeground))
	label.TextSize = theme.CaptionTextSize()
	label.Move(pos.Add(fyne.NewPos(theme.Padding(), theme.Padding())))
	return append(objs, label)
}

// image keeps decoded thumbnails across rebuilds
func (r *timelineRenderer) image(ref string) *canvas.Image {
	if img, ok := r.images[ref]; ok {
		return img
	}
	img := canvas.NewImageFromFile(ref)
	img.FillMode = canvas.ImageFillContain
	r.images[ref] = img
	return img
}
