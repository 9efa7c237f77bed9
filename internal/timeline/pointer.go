package timeline

import (
	"time"

	"github.com/kikiluvv/splice/internal/clips"
	"github.com/kikiluvv/splice/internal/metrics"
)

// DragMode is the kind of drag session in progress
type DragMode int

const (
	DragNone DragMode = iota
	DragMove
	DragTrimLeft
	DragTrimRight
	DragScrub
)

func (m DragMode) String() string {
	switch m {
	case DragMove:
		return "move"
	case DragTrimLeft:
		return "trim-left"
	case DragTrimRight:
		return "trim-right"
	case DragScrub:
		return "scrub"
	default:
		return "none"
	}
}

// dragState is the single input-capture point. A zero value means idle.
type dragState struct {
	mode      DragMode
	clip      clips.ID
	anchorX   float64
	origStart time.Duration
	origEnd   time.Duration
	span      time.Duration
	changed   bool
}

func (d dragState) active() bool {
	return d.mode != DragNone
}

func (d dragState) edits() bool {
	return d.mode == DragMove || d.mode == DragTrimLeft || d.mode == DragTrimRight
}

// Hit is the result of hit testing a pointer offset
type Hit struct {
	Clip clips.ID
	Mode DragMode
}

// Dragging reports the active drag session, if any
func (c *Controller) Dragging() (Hit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Hit{Clip: c.drag.clip, Mode: c.drag.mode}, c.drag.active()
}

// PointerDown starts a drag session. On a clip edge it starts a trim, on a
// clip body a move, and on empty track a scrub. It returns false when a
// session is already active.
func (c *Controller) PointerDown(x float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drag.active() || c.width <= 0 {
		return false
	}

	hit := c.hitTestLocked(x)
	c.drag = dragState{mode: hit.Mode, clip: hit.Clip, anchorX: x, span: c.store.Span()}
	if cl, ok := c.store.Get(hit.Clip); ok {
		c.drag.origStart, c.drag.origEnd = cl.Start, cl.End
	}

	c.logger.Debug().
		Str("mode", hit.Mode.String()).
		Uint64("clip_id", uint64(hit.Clip)).
		Float64("x", x).
		Msg("drag started")
	return true
}

// BeginScrub starts a scrub session regardless of what lies under x. Hosts
// use it for a ruler above the clips.
func (c *Controller) BeginScrub(x float64) bool {
	c.mu.Lock()
	if c.drag.active() || c.width <= 0 {
		c.mu.Unlock()
		return false
	}
	c.drag = dragState{mode: DragScrub, anchorX: x, span: c.store.Span()}
	c.mu.Unlock()

	c.PointerMove(x)
	return true
}

// SeekAt seeks to the time under x without hit testing
func (c *Controller) SeekAt(x float64) {
	c.seek(c.TimeAt(x))
}

// PointerMove updates the active drag session
func (c *Controller) PointerMove(x float64) {
	c.mu.Lock()
	d := c.drag
	if !d.active() {
		c.mu.Unlock()
		return
	}

	if d.mode == DragScrub {
		t := c.timeAtLocked(x)
		c.mu.Unlock()
		if c.player != nil {
			if _, err := c.player.RequestTime(t); err != nil {
				c.logger.Debug().Err(err).Msg("scrub ignored")
			}
		}
		c.notify()
		return
	}

	delta := c.deltaLocked(x-d.anchorX, d.span)
	var (
		next clips.Store
		err  error
	)
	switch d.mode {
	case DragMove:
		next, err = c.store.Move(d.clip, d.origStart+delta)
	case DragTrimLeft:
		next, err = c.store.Trim(d.clip, d.origStart+delta, d.origEnd)
	case DragTrimRight:
		// keep the left edge fixed when the right edge is pulled past it
		end := d.origEnd + delta
		if min := d.origStart + c.store.Limits().MinDuration; end < min {
			end = min
		}
		next, err = c.store.Trim(d.clip, d.origStart, end)
	}
	if err != nil {
		c.mu.Unlock()
		return
	}

	changed := !sameBounds(c.store, next, d.clip)
	c.store = next
	if changed {
		c.drag.changed = true
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// PointerUp ends the drag session and schedules thumbnails for the edited
// clip.
func (c *Controller) PointerUp(x float64) {
	c.PointerMove(x)

	c.mu.Lock()
	d := c.drag
	c.drag = dragState{}
	if d.edits() && d.changed {
		op := "move"
		if d.mode != DragMove {
			op = "trim"
		}
		metrics.RecordEdit(op, nil)
		if c.opts.AutoThumbnails {
			c.regenerateLocked(d.clip)
		}
	}
	c.mu.Unlock()

	if d.active() {
		c.notify()
	}
}

// CancelDrag restores the dragged clip's original bounds. Hosts call it when
// pointer capture is lost.
func (c *Controller) CancelDrag() {
	c.mu.Lock()
	d := c.drag
	c.drag = dragState{}
	if d.edits() && d.changed {
		start, end := d.origStart, d.origEnd
		if next, err := c.store.Update(d.clip, clips.Patch{Start: &start, End: &end}); err == nil {
			c.store = next
			if c.opts.AutoThumbnails {
				c.regenerateLocked(d.clip)
			}
		}
	}
	c.mu.Unlock()

	if d.active() {
		c.notify()
	}
}

// Click selects the clip under x, or seeks when x is on empty track
func (c *Controller) Click(x float64) {
	c.mu.Lock()
	if c.width <= 0 {
		c.mu.Unlock()
		return
	}
	hit := c.hitTestLocked(x)
	t := c.timeAtLocked(x)
	c.mu.Unlock()

	if hit.Mode != DragScrub {
		_ = c.Select(hit.Clip)
		return
	}
	c.seek(t)
}

// DoubleClick on empty track seeks to x and opens a pending insert between
// clips there. Double-clicks on a clip are ignored.
func (c *Controller) DoubleClick(x float64) {
	c.mu.Lock()
	if c.width <= 0 {
		c.mu.Unlock()
		return
	}
	hit := c.hitTestLocked(x)
	t := c.timeAtLocked(x)
	c.mu.Unlock()

	if hit.Mode != DragScrub {
		return
	}

	c.seek(t)
	c.beginInsertAt(clips.InsertBetween, t)
}

func (c *Controller) seek(t time.Duration) {
	if c.player == nil {
		return
	}
	if err := c.player.Seek(t); err != nil {
		c.logger.Debug().Err(err).Dur("time", t).Msg("seek ignored")
	}
	c.notify()
}

// hitTestLocked finds what lies under x. Later clips are drawn on top, so
// they win.
func (c *Controller) hitTestLocked(x float64) Hit {
	all := c.store.Clips()
	handle := c.opts.EdgeHandlePx

	for i := len(all) - 1; i >= 0; i-- {
		cl := all[i]
		x0, x1 := c.xAtLocked(cl.Start), c.xAtLocked(cl.End)
		if x < x0-handle || x > x1+handle {
			continue
		}

		dl, dr := abs(x-x0), abs(x-x1)
		switch {
		case dl <= handle && dl <= dr:
			return Hit{Clip: cl.ID, Mode: DragTrimLeft}
		case dr <= handle:
			return Hit{Clip: cl.ID, Mode: DragTrimRight}
		case x >= x0 && x <= x1:
			return Hit{Clip: cl.ID, Mode: DragMove}
		}
	}
	return Hit{Mode: DragScrub}
}

func sameBounds(a, b clips.Store, id clips.ID) bool {
	ca, _ := a.Get(id)
	cb, _ := b.Get(id)
	return ca.Start == cb.Start && ca.End == cb.End
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
