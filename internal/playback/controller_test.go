package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu        sync.Mutex
	subs      map[int]func(Event)
	next      int
	pos       time.Duration
	seeks     []time.Duration
	plays     int
	pauses    int
	reloads   int
	volume    float64
	muted     bool
	reloadErr error
	seekErr   error
}

func newFakeSession() *fakeSession {
	return &fakeSession{subs: make(map[int]func(Event))}
}

func (s *fakeSession) Play() error {
	s.mu.Lock()
	s.plays++
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Pause() error {
	s.mu.Lock()
	s.pauses++
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Seek(t time.Duration) error {
	s.mu.Lock()
	if s.seekErr != nil {
		err := s.seekErr
		s.mu.Unlock()
		return err
	}
	s.pos = t
	s.seeks = append(s.seeks, t)
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) CurrentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *fakeSession) SetVolume(v float64) error {
	s.volume = v
	return nil
}

func (s *fakeSession) SetMuted(m bool) error {
	s.muted = m
	return nil
}

func (s *fakeSession) Reload() error {
	s.mu.Lock()
	s.reloads++
	err := s.reloadErr
	s.mu.Unlock()
	return err
}

func (s *fakeSession) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *fakeSession) emit(ev Event) {
	s.mu.Lock()
	var fns []func(Event)
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *fakeSession) lastSeek() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seeks) == 0 {
		return -1
	}
	return s.seeks[len(s.seeks)-1]
}

func readyController(t *testing.T, duration time.Duration) (*Controller, *fakeSession) {
	t.Helper()
	sess := newFakeSession()
	c := NewController(zerolog.Nop(), sess, Options{})
	t.Cleanup(c.Close)
	sess.emit(Event{Kind: EventDurationChange, Duration: duration})
	require.Equal(t, StateReady, c.Snapshot().State)
	return c, sess
}

func TestIdleRejectsTransportOps(t *testing.T) {
	sess := newFakeSession()
	c := NewController(zerolog.Nop(), sess, Options{})
	defer c.Close()

	assert.Equal(t, StateIdle, c.Snapshot().State)
	assert.ErrorIs(t, c.Seek(time.Second), ErrNotReady)
	assert.ErrorIs(t, c.Play(), ErrNotReady)
	assert.ErrorIs(t, c.Pause(), ErrNotReady)
	_, err := c.RequestTime(time.Second)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, sess.seeks)
}

func TestSeekClampsToDuration(t *testing.T) {
	c, sess := readyController(t, 100*time.Second)

	require.NoError(t, c.Seek(150*time.Second))
	assert.Equal(t, 100*time.Second, c.Snapshot().CurrentTime)
	assert.Equal(t, 100*time.Second, sess.lastSeek())

	require.NoError(t, c.Seek(-5*time.Second))
	assert.Equal(t, time.Duration(0), c.Snapshot().CurrentTime)
	assert.Equal(t, time.Duration(0), sess.lastSeek())
}

func TestSeekFractionAndSkip(t *testing.T) {
	c, sess := readyController(t, 100*time.Second)

	require.NoError(t, c.SeekFraction(0.25))
	assert.Equal(t, 25*time.Second, sess.lastSeek())

	require.NoError(t, c.SkipForward())
	assert.Equal(t, 35*time.Second, c.Snapshot().CurrentTime)

	require.NoError(t, c.Skip(-50*time.Second))
	assert.Equal(t, time.Duration(0), c.Snapshot().CurrentTime)

	require.NoError(t, c.SeekFraction(2))
	assert.Equal(t, 100*time.Second, c.Snapshot().CurrentTime)
	assert.InDelta(t, 1.0, c.Snapshot().Fraction(), 1e-9)
}

func TestStateFollowsSessionEvents(t *testing.T) {
	c, sess := readyController(t, 60*time.Second)

	sess.emit(Event{Kind: EventPlay})
	assert.Equal(t, StatePlaying, c.Snapshot().State)
	assert.True(t, c.Snapshot().Playing)

	sess.emit(Event{Kind: EventTimeUpdate, Time: 12 * time.Second})
	assert.Equal(t, 12*time.Second, c.Snapshot().CurrentTime)

	sess.emit(Event{Kind: EventBufferedChange, Buffered: []Range{{0, 30 * time.Second}}})
	assert.Equal(t, []Range{{0, 30 * time.Second}}, c.Snapshot().Buffered)

	sess.emit(Event{Kind: EventPause})
	assert.Equal(t, StatePaused, c.Snapshot().State)
	assert.False(t, c.Snapshot().Playing)

	sess.emit(Event{Kind: EventPlay})
	sess.emit(Event{Kind: EventEnded})
	snap := c.Snapshot()
	assert.Equal(t, StatePaused, snap.State)
	assert.Equal(t, time.Duration(0), snap.CurrentTime)
	assert.Equal(t, time.Duration(0), sess.lastSeek())
}

func TestToggle(t *testing.T) {
	c, sess := readyController(t, 10*time.Second)

	require.NoError(t, c.Toggle())
	assert.Equal(t, 1, sess.plays)

	sess.emit(Event{Kind: EventPlay})
	require.NoError(t, c.Toggle())
	assert.Equal(t, 1, sess.pauses)
}

func TestRequestTimeResyncsOnlyBeyondThreshold(t *testing.T) {
	c, sess := readyController(t, 100*time.Second)
	require.NoError(t, c.Seek(10*time.Second))
	seeks := len(sess.seeks)

	resynced, err := c.RequestTime(10*time.Second + 400*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, resynced)
	assert.Len(t, sess.seeks, seeks)

	resynced, err = c.RequestTime(10*time.Second + 600*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, resynced)
	assert.Equal(t, 10*time.Second+600*time.Millisecond, sess.lastSeek())
}

func TestVolumeAndMute(t *testing.T) {
	sess := newFakeSession()
	c := NewController(zerolog.Nop(), sess, Options{})
	defer c.Close()

	require.NoError(t, c.SetVolumePercent(50))
	assert.InDelta(t, 0.5, c.Snapshot().Volume, 1e-9)
	assert.InDelta(t, 0.5, sess.volume, 1e-9)

	require.NoError(t, c.SetVolume(3))
	assert.InDelta(t, 1.0, c.Snapshot().Volume, 1e-9)

	require.NoError(t, c.SetVolume(-1))
	assert.Zero(t, c.Snapshot().Volume)

	require.NoError(t, c.ToggleMute())
	assert.True(t, c.Snapshot().Muted)
	assert.True(t, sess.muted)
	require.NoError(t, c.ToggleMute())
	assert.False(t, c.Snapshot().Muted)
}

func TestDecoderErrorReloadsOnceThenFails(t *testing.T) {
	c, sess := readyController(t, 100*time.Second)
	sess.emit(Event{Kind: EventPlay})
	sess.emit(Event{Kind: EventTimeUpdate, Time: 40 * time.Second})

	sess.emit(Event{Kind: EventError, Err: errors.New("decode failed")})
	assert.Equal(t, 1, sess.reloads)
	assert.Equal(t, 40*time.Second, sess.lastSeek())
	assert.Equal(t, 1, sess.plays)
	assert.NotEqual(t, StateError, c.Snapshot().State)

	sess.emit(Event{Kind: EventError, Err: errors.New("decode failed again")})
	snap := c.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.EqualError(t, snap.Err, "decode failed again")
	assert.Equal(t, 1, sess.reloads)
	assert.ErrorIs(t, c.Seek(time.Second), ErrNotReady)

	require.NoError(t, c.Retry())
	assert.Equal(t, 2, sess.reloads)
	assert.Equal(t, StateIdle, c.Snapshot().State)
	sess.emit(Event{Kind: EventDurationChange, Duration: 100 * time.Second})
	assert.Equal(t, StateReady, c.Snapshot().State)
}

func TestRecoveredPlaybackAllowsAnotherReload(t *testing.T) {
	_, sess := readyController(t, 100*time.Second)
	sess.emit(Event{Kind: EventTimeUpdate, Time: 5 * time.Second})

	sess.emit(Event{Kind: EventError})
	sess.emit(Event{Kind: EventTimeUpdate, Time: 6 * time.Second})
	sess.emit(Event{Kind: EventError})

	assert.Equal(t, 2, sess.reloads)
}

func TestFailedReloadEntersErrorState(t *testing.T) {
	c, sess := readyController(t, 100*time.Second)
	sess.reloadErr = errors.New("source gone")

	sess.emit(Event{Kind: EventError, Err: errors.New("decode failed")})

	snap := c.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.ErrorContains(t, snap.Err, "source gone")
}

func TestFailedRecoveryIsLastUpdate(t *testing.T) {
	c, sess := readyController(t, 100*time.Second)
	sess.reloadErr = errors.New("source gone")

	var mu sync.Mutex
	var got []Transport
	c.Subscribe(func(tr Transport) {
		mu.Lock()
		got = append(got, tr)
		mu.Unlock()
	})

	sess.emit(Event{Kind: EventError, Err: errors.New("decode failed")})

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, StateError, last.State)
	assert.ErrorContains(t, last.Err, "source gone")
}

func TestFailedSeekKeepsCurrentTime(t *testing.T) {
	c, sess := readyController(t, 100*time.Second)
	require.NoError(t, c.Seek(10*time.Second))

	var updates int
	c.Subscribe(func(Transport) { updates++ })

	sess.seekErr = errors.New("not seekable")
	err := c.Seek(40 * time.Second)
	require.Error(t, err)
	assert.ErrorContains(t, err, "not seekable")
	assert.Equal(t, 10*time.Second, c.Snapshot().CurrentTime)
	assert.Zero(t, updates)
}

func TestSubscribersReceiveSnapshots(t *testing.T) {
	c, sess := readyController(t, 100*time.Second)

	var got []Transport
	cancel := c.Subscribe(func(tr Transport) { got = append(got, tr) })

	sess.emit(Event{Kind: EventTimeUpdate, Time: 3 * time.Second})
	require.NotEmpty(t, got)
	assert.Equal(t, 3*time.Second, got[len(got)-1].CurrentTime)

	cancel()
	n := len(got)
	sess.emit(Event{Kind: EventTimeUpdate, Time: 4 * time.Second})
	assert.Len(t, got, n)
}

func TestClockSessionDrivesController(t *testing.T) {
	sess := NewClockSession(60*time.Millisecond, 5*time.Millisecond)
	defer sess.Close()
	c := NewController(zerolog.Nop(), sess, Options{})
	defer c.Close()

	sess.Load()
	require.Equal(t, StateReady, c.Snapshot().State)
	assert.Equal(t, 60*time.Millisecond, c.Snapshot().Duration)
	assert.Equal(t, []Range{{0, 60 * time.Millisecond}}, c.Snapshot().Buffered)

	require.NoError(t, c.Play())
	assert.Equal(t, StatePlaying, c.Snapshot().State)

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.State == StatePaused && s.CurrentTime == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, time.Duration(0), sess.CurrentTime())
}

func TestClockSessionRecoversFromError(t *testing.T) {
	sess := NewClockSession(10*time.Second, time.Hour)
	defer sess.Close()
	c := NewController(zerolog.Nop(), sess, Options{})
	defer c.Close()

	sess.Load()
	require.NoError(t, c.Seek(4*time.Second))

	sess.Fail(errors.New("boom"))
	assert.Equal(t, 4*time.Second, sess.CurrentTime())
	assert.Equal(t, 4*time.Second, c.Snapshot().CurrentTime)
	assert.NotEqual(t, StateError, c.Snapshot().State)
}
