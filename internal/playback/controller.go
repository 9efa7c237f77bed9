package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kikiluvv/splice/internal/logging"
	"github.com/kikiluvv/splice/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrNotReady is returned by transport operations before the duration is known
var ErrNotReady = errors.New("playback not ready")

// Defaults for the controller
const (
	DefaultResyncThreshold = 500 * time.Millisecond
	DefaultSkipStep        = 10 * time.Second
)

// State of the transport
type State int

const (
	StateIdle State = iota
	StateReady
	StatePlaying
	StatePaused
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Transport is a snapshot of the visible transport state
type Transport struct {
	State       State
	CurrentTime time.Duration
	Duration    time.Duration
	Buffered    []Range
	Playing     bool
	Muted       bool
	Volume      float64
	Err         error
}

// Fraction returns CurrentTime as a fraction of Duration
func (t Transport) Fraction() float64 {
	if t.Duration <= 0 {
		return 0
	}
	return float64(t.CurrentTime) / float64(t.Duration)
}

// Options configures a Controller
type Options struct {
	ResyncThreshold time.Duration
	SkipStep        time.Duration
}

// Controller keeps the transport in sync with a decode session. Transport
// state only changes in response to session events or explicit calls.
type Controller struct {
	logger  zerolog.Logger
	session Session
	opts    Options
	unsub   func()

	mu        sync.Mutex
	t         Transport
	retried   bool
	resumeAt  time.Duration
	listeners map[int]func(Transport)
	nextSub   int
}

// NewController subscribes to session and starts in StateIdle
func NewController(logger zerolog.Logger, session Session, opts Options) *Controller {
	if opts.ResyncThreshold <= 0 {
		opts.ResyncThreshold = DefaultResyncThreshold
	}
	if opts.SkipStep <= 0 {
		opts.SkipStep = DefaultSkipStep
	}

	c := &Controller{
		logger:    logging.WithComponent(logger, "playback"),
		session:   session,
		opts:      opts,
		t:         Transport{State: StateIdle, Volume: 1},
		listeners: make(map[int]func(Transport)),
	}
	c.unsub = session.Subscribe(c.handle)
	return c
}

// Close detaches the controller from its session
func (c *Controller) Close() {
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
}

// Snapshot returns the current transport state
func (c *Controller) Snapshot() Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Transport {
	t := c.t
	t.Buffered = append([]Range(nil), c.t.Buffered...)
	return t
}

// Subscribe registers fn to receive every transport change
func (c *Controller) Subscribe(fn func(Transport)) (cancel func()) {
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

func (c *Controller) notify(t Transport) {
	c.mu.Lock()
	fns := make([]func(Transport), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(t)
	}
}

func (c *Controller) ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t.State != StateIdle && c.t.State != StateError
}

// Play starts playback
func (c *Controller) Play() error {
	if !c.ready() {
		return ErrNotReady
	}
	if err := c.session.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

// Pause pauses playback
func (c *Controller) Pause() error {
	if !c.ready() {
		return ErrNotReady
	}
	if err := c.session.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	return nil
}

// Toggle switches between playing and paused
func (c *Controller) Toggle() error {
	if c.Snapshot().Playing {
		return c.Pause()
	}
	return c.Play()
}

// Seek moves the playhead to t clamped to [0, duration]
func (c *Controller) Seek(t time.Duration) error {
	c.mu.Lock()
	if c.t.State == StateIdle || c.t.State == StateError {
		c.mu.Unlock()
		return ErrNotReady
	}
	t = clamp(t, c.t.Duration)
	c.mu.Unlock()

	if err := c.session.Seek(t); err != nil {
		return fmt.Errorf("seek to %s: %w", t, err)
	}
	c.mu.Lock()
	c.t.CurrentTime = clamp(t, c.t.Duration)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// SeekFraction seeks to f of the duration, f clamped to [0, 1]
func (c *Controller) SeekFraction(f float64) error {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	d := c.Snapshot().Duration
	return c.Seek(time.Duration(f * float64(d)))
}

// Skip seeks relative to the current time
func (c *Controller) Skip(delta time.Duration) error {
	return c.Seek(c.Snapshot().CurrentTime + delta)
}

// SkipForward and SkipBack skip by the configured step
func (c *Controller) SkipForward() error { return c.Skip(c.opts.SkipStep) }
func (c *Controller) SkipBack() error    { return c.Skip(-c.opts.SkipStep) }

// RequestTime aligns the session with an externally requested time such as
// a scrub. The session is only reseeked when its position differs from t by
// more than the resync threshold. It reports whether a resync happened.
func (c *Controller) RequestTime(t time.Duration) (bool, error) {
	c.mu.Lock()
	if c.t.State == StateIdle || c.t.State == StateError {
		c.mu.Unlock()
		return false, ErrNotReady
	}
	t = clamp(t, c.t.Duration)
	c.mu.Unlock()

	drift := c.session.CurrentTime() - t
	if drift < 0 {
		drift = -drift
	}
	if drift <= c.opts.ResyncThreshold {
		return false, nil
	}

	c.logger.Debug().Dur("requested", t).Dur("drift", drift).Msg("resyncing decode session")
	metrics.PlaybackResyncsTotal.Inc()
	if err := c.Seek(t); err != nil {
		return false, err
	}
	return true, nil
}

// SetVolume sets the volume clamped to [0, 1]
func (c *Controller) SetVolume(v float64) error {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	if err := c.session.SetVolume(v); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}

	c.mu.Lock()
	c.t.Volume = v
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// SetVolumePercent sets the volume from a 0-100 control
func (c *Controller) SetVolumePercent(p int) error {
	return c.SetVolume(float64(p) / 100)
}

// SetMuted mutes or unmutes the session
func (c *Controller) SetMuted(muted bool) error {
	if err := c.session.SetMuted(muted); err != nil {
		return fmt.Errorf("set muted: %w", err)
	}

	c.mu.Lock()
	c.t.Muted = muted
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// ToggleMute flips the mute state
func (c *Controller) ToggleMute() error {
	return c.SetMuted(!c.Snapshot().Muted)
}

// Retry reloads the session after the controller entered StateError
func (c *Controller) Retry() error {
	c.mu.Lock()
	if c.t.State != StateError {
		c.mu.Unlock()
		return nil
	}
	c.retried = false
	c.t.State = StateIdle
	c.t.Err = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	if err := c.session.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// handle applies a session event. Session calls are made after the lock is
// released because sessions may emit events synchronously.
func (c *Controller) handle(ev Event) {
	var after func()

	c.mu.Lock()
	switch ev.Kind {
	case EventDurationChange:
		c.t.Duration = ev.Duration
		c.t.CurrentTime = clamp(c.t.CurrentTime, ev.Duration)
		if c.t.State == StateIdle && ev.Duration > 0 {
			c.t.State = StateReady
		}

	case EventTimeUpdate:
		c.t.CurrentTime = clamp(ev.Time, c.t.Duration)
		if c.retried && ev.Time > c.resumeAt && c.t.State != StateError {
			c.retried = false
		}

	case EventBufferedChange:
		c.t.Buffered = append([]Range(nil), ev.Buffered...)

	case EventPlay:
		if c.t.State != StateError {
			c.t.State = StatePlaying
			c.t.Playing = true
		}

	case EventPause:
		if c.t.State != StateError {
			c.t.State = StatePaused
			c.t.Playing = false
		}

	case EventEnded:
		c.t.State = StatePaused
		c.t.Playing = false
		c.t.CurrentTime = 0
		after = func() {
			if err := c.session.Seek(0); err != nil {
				c.logger.Warn().Err(err).Msg("failed to rewind after end")
			}
		}

	case EventError:
		after = c.recoverLocked(ev.Err)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if after != nil {
		// after may change state, so subscribers get the result last
		after()
		snap = c.Snapshot()
	}
	c.notify(snap)
}

// recoverLocked makes one reload and re-seek attempt for a decoder error.
// A second error before playback progresses puts the controller in
// StateError.
func (c *Controller) recoverLocked(err error) func() {
	if err == nil {
		err = errors.New("decoder error")
	}

	if c.retried {
		c.logger.Error().Err(err).Msg("playback failed after reload")
		metrics.PlaybackErrorsTotal.WithLabelValues("failed").Inc()
		c.t.State = StateError
		c.t.Playing = false
		c.t.Err = err
		return nil
	}

	c.retried = true
	c.resumeAt = c.t.CurrentTime
	resume, wasPlaying := c.t.CurrentTime, c.t.Playing
	c.logger.Warn().Err(err).Dur("resume_at", resume).Msg("decoder error, reloading")

	return func() {
		fail := func(stage string, rerr error) {
			c.logger.Error().Err(rerr).Str("stage", stage).Msg("playback recovery failed")
			metrics.PlaybackErrorsTotal.WithLabelValues("failed").Inc()
			c.mu.Lock()
			c.t.State = StateError
			c.t.Playing = false
			c.t.Err = fmt.Errorf("%s: %w", stage, rerr)
			snap := c.snapshotLocked()
			c.mu.Unlock()
			c.notify(snap)
		}

		if rerr := c.session.Reload(); rerr != nil {
			fail("reload", rerr)
			return
		}
		if rerr := c.session.Seek(resume); rerr != nil {
			fail("seek", rerr)
			return
		}
		c.mu.Lock()
		c.t.CurrentTime = clamp(resume, c.t.Duration)
		c.mu.Unlock()
		if wasPlaying {
			if rerr := c.session.Play(); rerr != nil {
				fail("play", rerr)
				return
			}
		}
		metrics.PlaybackErrorsTotal.WithLabelValues("recovered").Inc()
	}
}

func clamp(t, duration time.Duration) time.Duration {
	if t < 0 {
		return 0
	}
	if duration > 0 && t > duration {
		return duration
	}
	return t
}
