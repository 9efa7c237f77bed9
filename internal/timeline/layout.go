package timeline

import (
	"time"

	"github.com/kikiluvv/splice/internal/clips"
)

// ClipView is the render model of one clip
type ClipView struct {
	ID             clips.ID
	Name           string
	Start          time.Duration
	End            time.Duration
	X              float64
	Width          float64
	Selected       bool
	Dragging       bool
	ThumbnailState clips.ThumbnailState
	Thumbnails     []clips.Thumbnail
	// Progress is the thumbnail progress in percent while generating
	Progress float64
}

// Layout is the render model of the whole track
type Layout struct {
	Width     float64
	Span      time.Duration
	PlayheadX float64
	Clips     []ClipView
}

// SetWidth sets the track width in pixels used for time mapping
func (c *Controller) SetWidth(w float64) {
	c.mu.Lock()
	c.width = w
	c.mu.Unlock()
}

// TimeAt maps a horizontal offset to a time on the timeline axis
func (c *Controller) TimeAt(x float64) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeAtLocked(x)
}

// XAt maps a time to a horizontal offset
func (c *Controller) XAt(t time.Duration) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.xAtLocked(t)
}

// Layout positions every clip and the playhead for rendering
func (c *Controller) Layout() Layout {
	playhead := c.playhead()

	c.mu.Lock()
	defer c.mu.Unlock()

	sel, _ := c.store.Selected()
	all := c.store.Clips()
	out := Layout{
		Width:     c.width,
		Span:      c.store.Span(),
		PlayheadX: c.xAtLocked(playhead),
		Clips:     make([]ClipView, 0, len(all)),
	}
	for _, cl := range all {
		x0, x1 := c.xAtLocked(cl.Start), c.xAtLocked(cl.End)
		out.Clips = append(out.Clips, ClipView{
			ID:             cl.ID,
			Name:           cl.Name,
			Start:          cl.Start,
			End:            cl.End,
			X:              x0,
			Width:          x1 - x0,
			Selected:       cl.ID == sel,
			Dragging:       c.drag.edits() && c.drag.clip == cl.ID,
			ThumbnailState: cl.ThumbnailState,
			Thumbnails:     cl.Thumbnails,
			Progress:       c.progress[cl.ID],
		})
	}
	return out
}

// timeAtLocked computes (x / width) * span, clamped to the axis
func (c *Controller) timeAtLocked(x float64) time.Duration {
	span := c.store.Span()
	if c.width <= 0 || span <= 0 {
		return 0
	}
	f := x / c.width
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return time.Duration(f * float64(span))
}

func (c *Controller) xAtLocked(t time.Duration) float64 {
	span := c.store.Span()
	if span <= 0 {
		return 0
	}
	return float64(t) / float64(span) * c.width
}

// deltaLocked converts a pixel distance to a time distance on an axis of
// the given span
func (c *Controller) deltaLocked(dx float64, span time.Duration) time.Duration {
	if c.width <= 0 {
		return 0
	}
	return time.Duration(dx / c.width * float64(span))
}
