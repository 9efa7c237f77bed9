package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kikiluvv/splice/internal/clips"
	"github.com/kikiluvv/splice/internal/logging"
	"github.com/kikiluvv/splice/internal/metrics"
	"github.com/kikiluvv/splice/internal/playback"
	"github.com/kikiluvv/splice/internal/thumbnails"
	"github.com/rs/zerolog"
)

var (
	// ErrClipBusy is returned for edits touching the clip being dragged
	ErrClipBusy = errors.New("clip is being dragged")
	// ErrNoPendingInsert is returned by ConfirmInsert without BeginInsert
	ErrNoPendingInsert = errors.New("no pending insert")
)

// DefaultEdgeHandlePx is the hit width of a clip's trim handles
const DefaultEdgeHandlePx = 6

// Thumbnailer starts thumbnail batches
type Thumbnailer interface {
	Generate(ctx context.Context, req thumbnails.Request, sink thumbnails.Sink) uint64
	Cancel(id clips.ID)
}

// Player is the transport the timeline seeks
type Player interface {
	Seek(t time.Duration) error
	RequestTime(t time.Duration) (bool, error)
	Snapshot() playback.Transport
}

// Options configures a Controller
type Options struct {
	EdgeHandlePx   float64
	ThumbnailCount int
	// AutoThumbnails regenerates thumbnails after every edit
	AutoThumbnails bool
}

// PendingInsert is an insert waiting for a name and source
type PendingInsert struct {
	Position clips.InsertPosition
	At       time.Duration
}

// Controller owns the clip store and turns timeline interaction into edits.
// All store mutations go through it.
type Controller struct {
	logger zerolog.Logger
	opts   Options
	thumbs Thumbnailer
	player Player
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	store     clips.Store
	width     float64
	drag      dragState
	pending   *PendingInsert
	progress  map[clips.ID]float64
	listeners map[int]func()
	nextSub   int
}

// New creates a controller for store. thumbs and player may be nil.
func New(logger zerolog.Logger, store clips.Store, thumbs Thumbnailer, player Player, opts Options) *Controller {
	if opts.EdgeHandlePx <= 0 {
		opts.EdgeHandlePx = DefaultEdgeHandlePx
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		logger:    logging.WithComponent(logger, "timeline"),
		opts:      opts,
		thumbs:    thumbs,
		player:    player,
		ctx:       ctx,
		cancel:    cancel,
		store:     store,
		progress:  make(map[clips.ID]float64),
		listeners: make(map[int]func()),
	}
	metrics.ClipsOnTimeline.Set(float64(store.Len()))
	return c
}

// Close cancels outstanding thumbnail work
func (c *Controller) Close() {
	c.cancel()
}

// Store returns the current edit decision list
func (c *Controller) Store() clips.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// Load replaces the store and cancels all thumbnail work for the old one
func (c *Controller) Load(s clips.Store) {
	c.mu.Lock()
	c.drag = dragState{}
	c.pending = nil
	if c.thumbs != nil {
		for _, old := range c.store.Clips() {
			c.thumbs.Cancel(old.ID)
		}
	}
	c.store = s
	metrics.ClipsOnTimeline.Set(float64(s.Len()))
	c.progress = make(map[clips.ID]float64)
	if c.opts.AutoThumbnails {
		c.regenerateLocked(c.store.Stale()...)
	}
	c.mu.Unlock()
	c.notify()
}

// OnChange registers fn to run after every state change
func (c *Controller) OnChange(fn func()) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// apply runs an edit. Edits reporting an error leave the store untouched and
// are only logged.
func (c *Controller) apply(op string, touches []clips.ID, edit func(clips.Store) (clips.Store, error)) error {
	c.mu.Lock()
	if c.drag.active() {
		for _, id := range touches {
			if id == c.drag.clip {
				c.mu.Unlock()
				c.logger.Debug().Str("op", op).Uint64("clip_id", uint64(id)).Msg("edit rejected during drag")
				metrics.RecordEdit(op, ErrClipBusy)
				return ErrClipBusy
			}
		}
	}

	next, err := edit(c.store)
	metrics.RecordEdit(op, err)
	if err != nil {
		c.mu.Unlock()
		c.logger.Debug().Err(err).Str("op", op).Msg("edit ignored")
		return err
	}

	c.commitLocked(next)
	c.mu.Unlock()
	c.notify()
	return nil
}

// commitLocked installs next and schedules thumbnails for invalidated clips
func (c *Controller) commitLocked(next clips.Store) {
	c.cancelRemovedLocked(c.store, next)
	c.store = next
	metrics.ClipsOnTimeline.Set(float64(next.Len()))
	if c.opts.AutoThumbnails {
		c.regenerateLocked(next.Stale()...)
	}
}

func (c *Controller) cancelRemovedLocked(prev, next clips.Store) {
	for _, old := range prev.Clips() {
		if _, ok := next.Get(old.ID); ok {
			continue
		}
		delete(c.progress, old.ID)
		if c.thumbs != nil {
			c.thumbs.Cancel(old.ID)
		}
	}
}

// Cut splits the clip under t
func (c *Controller) Cut(t time.Duration) error {
	var touches []clips.ID
	if cl, ok := c.Store().ClipAt(t); ok {
		touches = append(touches, cl.ID)
	}
	return c.apply("cut", touches, func(s clips.Store) (clips.Store, error) {
		return s.Cut(t)
	})
}

// CutAtPlayhead splits the clip under the playhead
func (c *Controller) CutAtPlayhead() error {
	return c.Cut(c.playhead())
}

// Delete removes a clip, leaving a gap
func (c *Controller) Delete(id clips.ID) error {
	return c.apply("delete", []clips.ID{id}, func(s clips.Store) (clips.Store, error) {
		return s.Delete(id)
	})
}

// DeleteSelected removes the selected clip
func (c *Controller) DeleteSelected() error {
	id, ok := c.Store().Selected()
	if !ok {
		metrics.RecordEdit("delete", clips.ErrNoSelection)
		return clips.ErrNoSelection
	}
	return c.Delete(id)
}

// MergeWithNext joins a clip with its successor
func (c *Controller) MergeWithNext(id clips.ID) error {
	touches := []clips.ID{id}
	s := c.Store()
	for i, cl := range s.Clips() {
		if cl.ID == id && i+1 < s.Len() {
			touches = append(touches, s.Clips()[i+1].ID)
		}
	}
	return c.apply("merge", touches, func(s clips.Store) (clips.Store, error) {
		return s.MergeWithNext(id)
	})
}

// MergeSelected merges the selected clip with its successor
func (c *Controller) MergeSelected() error {
	id, ok := c.Store().Selected()
	if !ok {
		metrics.RecordEdit("merge", clips.ErrNoSelection)
		return clips.ErrNoSelection
	}
	return c.MergeWithNext(id)
}

// Update applies a patch to a clip
func (c *Controller) Update(id clips.ID, p clips.Patch) error {
	return c.apply("update", []clips.ID{id}, func(s clips.Store) (clips.Store, error) {
		return s.Update(id, p)
	})
}

// Rename sets a clip's name
func (c *Controller) Rename(id clips.ID, name string) error {
	return c.apply("rename", []clips.ID{id}, func(s clips.Store) (clips.Store, error) {
		return s.Rename(id, name)
	})
}

// Trim sets both bounds of a clip, respecting the minimum duration
func (c *Controller) Trim(id clips.ID, start, end time.Duration) error {
	return c.apply("trim", []clips.ID{id}, func(s clips.Store) (clips.Store, error) {
		return s.Trim(id, start, end)
	})
}

// Select makes id the selected clip
func (c *Controller) Select(id clips.ID) error {
	c.mu.Lock()
	next, err := c.store.Select(id)
	if err == nil {
		c.store = next
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.notify()
	return nil
}

// ClearSelection deselects any clip
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	c.store = c.store.ClearSelection()
	c.mu.Unlock()
	c.notify()
}

// BeginInsert opens a pending insert at the playhead
func (c *Controller) BeginInsert(pos clips.InsertPosition) {
	c.beginInsertAt(pos, c.playhead())
}

func (c *Controller) beginInsertAt(pos clips.InsertPosition, at time.Duration) {
	c.mu.Lock()
	c.pending = &PendingInsert{Position: pos, At: at}
	c.mu.Unlock()
	c.notify()
}

// Pending returns the pending insert, if any
func (c *Controller) Pending() (PendingInsert, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return PendingInsert{}, false
	}
	return *c.pending, true
}

// CancelInsert drops the pending insert
func (c *Controller) CancelInsert() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
	c.notify()
}

// ConfirmInsert applies the pending insert. An empty sourceRef reuses the
// source of the clip at the insert point, or of the first clip.
func (c *Controller) ConfirmInsert(name, sourceRef string) (clips.Clip, error) {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	s := c.store
	c.mu.Unlock()

	if p == nil {
		return clips.Clip{}, ErrNoPendingInsert
	}
	if sourceRef == "" {
		sourceRef = defaultSource(s, p.At)
	}
	if name == "" {
		name = fmt.Sprintf("Clip %d", s.Len()+1)
	}

	var touches []clips.ID
	if p.Position == clips.InsertBetween {
		if cl, ok := s.ClipAt(p.At); ok {
			touches = append(touches, cl.ID)
		}
	}

	var inserted clips.Clip
	err := c.apply("insert", touches, func(s clips.Store) (clips.Store, error) {
		next, cl, err := s.Insert(p.Position, name, sourceRef, p.At)
		inserted = cl
		return next, err
	})
	if err != nil {
		c.notify()
		return clips.Clip{}, err
	}
	return inserted, nil
}

func defaultSource(s clips.Store, at time.Duration) string {
	if cl, ok := s.ClipAt(at); ok {
		return cl.SourceRef
	}
	if all := s.Clips(); len(all) > 0 {
		return all[0].SourceRef
	}
	return ""
}

func (c *Controller) playhead() time.Duration {
	if c.player == nil {
		return 0
	}
	return c.player.Snapshot().CurrentTime
}

// Progress returns the thumbnail progress of a clip in percent
func (c *Controller) Progress(id clips.ID) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.progress[id]
	return p, ok
}

// RefreshThumbnails starts batches for every clip without thumbnails
func (c *Controller) RefreshThumbnails() {
	c.mu.Lock()
	c.regenerateLocked(c.store.Stale()...)
	c.mu.Unlock()
	c.notify()
}

// RegenerateThumbnails restarts the batch for one clip, superseding any
// batch in flight.
func (c *Controller) RegenerateThumbnails(id clips.ID) error {
	c.mu.Lock()
	if _, ok := c.store.Get(id); !ok {
		c.mu.Unlock()
		return clips.ErrNotFound
	}
	c.regenerateLocked(id)
	c.mu.Unlock()
	c.notify()
	return nil
}

// regenerateLocked issues a batch per clip and records its generation in the
// store so only that batch can commit. The dragged clip waits for the drag
// to end.
func (c *Controller) regenerateLocked(ids ...clips.ID) {
	if c.thumbs == nil {
		return
	}
	for _, id := range ids {
		if c.drag.active() && c.drag.clip == id {
			continue
		}
		cl, ok := c.store.Get(id)
		if !ok {
			continue
		}

		gen := c.thumbs.Generate(c.ctx, thumbnails.Request{
			ClipID:    cl.ID,
			SourceRef: cl.SourceRef,
			Start:     cl.Start,
			End:       cl.End,
			Count:     c.opts.ThumbnailCount,
		}, thumbSink{c})

		next, err := c.store.MarkGenerating(id, gen)
		if err != nil {
			continue
		}
		c.store = next
		c.progress[id] = 0
	}
}

// thumbSink routes batch callbacks back into the controller
type thumbSink struct {
	c *Controller
}

func (s thumbSink) Progress(id clips.ID, gen uint64, pct float64) {
	s.c.mu.Lock()
	cl, ok := s.c.store.Get(id)
	if !ok || cl.Generation != gen {
		s.c.mu.Unlock()
		return
	}
	s.c.progress[id] = pct
	s.c.mu.Unlock()
	s.c.notify()
}

func (s thumbSink) Commit(res thumbnails.Result) error {
	s.c.mu.Lock()
	next, err := s.c.store.CommitThumbnails(res.ClipID, res.Generation, res.Thumbnails)
	if err != nil {
		s.c.mu.Unlock()
		return err
	}
	s.c.store = next
	delete(s.c.progress, res.ClipID)
	s.c.mu.Unlock()
	s.c.notify()
	return nil
}

// Failed leaves the clip in its generating state so it can be retried
func (s thumbSink) Failed(id clips.ID, gen uint64, err error) {
	s.c.logger.Warn().Err(err).Uint64("clip_id", uint64(id)).Uint64("generation", gen).Msg("thumbnail generation failed")
	s.c.mu.Lock()
	cl, ok := s.c.store.Get(id)
	if !ok || cl.Generation != gen {
		s.c.mu.Unlock()
		return
	}
	delete(s.c.progress, id)
	s.c.mu.Unlock()
	s.c.notify()
}
