package playback

import (
	"sync"
	"time"
)

// ClockSession is a decode session that advances a clock instead of decoding
// frames. Hosts without a native decoder use it to drive the transport.
type ClockSession struct {
	mu       sync.Mutex
	duration time.Duration
	pos      time.Duration
	playing  bool
	volume   float64
	muted    bool
	lastTick time.Time

	subs    map[int]func(Event)
	nextSub int

	tick time.Duration
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewClockSession creates a session for media of the given duration. Call
// Load to announce it to subscribers.
func NewClockSession(duration, tick time.Duration) *ClockSession {
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	s := &ClockSession{
		duration: duration,
		volume:   1,
		subs:     make(map[int]func(Event)),
		tick:     tick,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.loop()
	return s
}

// Load emits the events a decoder sends once the source is opened
func (s *ClockSession) Load() {
	s.mu.Lock()
	d, pos := s.duration, s.pos
	s.mu.Unlock()

	s.emit(
		Event{Kind: EventDurationChange, Duration: d},
		Event{Kind: EventBufferedChange, Buffered: []Range{{Start: 0, End: d}}},
		Event{Kind: EventTimeUpdate, Time: pos},
	)
}

func (s *ClockSession) Play() error {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return nil
	}
	if s.pos >= s.duration {
		s.pos = 0
	}
	s.playing = true
	s.lastTick = time.Now()
	s.mu.Unlock()

	s.emit(Event{Kind: EventPlay})
	return nil
}

func (s *ClockSession) Pause() error {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return nil
	}
	s.advanceLocked(time.Now())
	s.playing = false
	pos := s.pos
	s.mu.Unlock()

	s.emit(Event{Kind: EventPause}, Event{Kind: EventTimeUpdate, Time: pos})
	return nil
}

func (s *ClockSession) Seek(t time.Duration) error {
	s.mu.Lock()
	s.pos = clamp(t, s.duration)
	s.lastTick = time.Now()
	pos := s.pos
	s.mu.Unlock()

	s.emit(Event{Kind: EventTimeUpdate, Time: pos})
	return nil
}

func (s *ClockSession) CurrentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *ClockSession) SetVolume(v float64) error {
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	return nil
}

func (s *ClockSession) SetMuted(muted bool) error {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	return nil
}

// Reload rewinds the session and announces the source again
func (s *ClockSession) Reload() error {
	s.mu.Lock()
	s.playing = false
	s.pos = 0
	s.mu.Unlock()

	s.Load()
	return nil
}

// Fail reports a decoder error to subscribers
func (s *ClockSession) Fail(err error) {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
	s.emit(Event{Kind: EventError, Err: err})
}

func (s *ClockSession) Subscribe(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close stops the clock
func (s *ClockSession) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *ClockSession) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			if !s.playing {
				s.mu.Unlock()
				continue
			}
			s.advanceLocked(now)
			pos := s.pos
			ended := s.pos >= s.duration
			if ended {
				s.playing = false
			}
			s.mu.Unlock()

			s.emit(Event{Kind: EventTimeUpdate, Time: pos})
			if ended {
				s.emit(Event{Kind: EventEnded})
			}
		}
	}
}

func (s *ClockSession) advanceLocked(now time.Time) {
	if !now.After(s.lastTick) {
		return
	}
	s.pos = clamp(s.pos+now.Sub(s.lastTick), s.duration)
	s.lastTick = now
}

func (s *ClockSession) emit(events ...Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}
