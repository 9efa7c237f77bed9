package playback

import "time"

// EventKind identifies a decode session event
type EventKind int

const (
	EventTimeUpdate EventKind = iota
	EventDurationChange
	EventBufferedChange
	EventPlay
	EventPause
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventTimeUpdate:
		return "timeupdate"
	case EventDurationChange:
		return "durationchange"
	case EventBufferedChange:
		return "buffered"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Range is a buffered interval [Start, End)
type Range struct {
	Start time.Duration
	End   time.Duration
}

// Event is emitted by a Session. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	Time     time.Duration
	Duration time.Duration
	Buffered []Range
	Err      error
}

// Session is the primary decode session driving visible playback. State
// changes are reported through Subscribe; callers must not poll for them.
type Session interface {
	Play() error
	Pause() error
	Seek(t time.Duration) error
	CurrentTime() time.Duration
	SetVolume(v float64) error
	SetMuted(muted bool) error
	// Reload reopens the source after a decoder error
	Reload() error
	// Subscribe registers fn for all events and returns a function that
	// removes it.
	Subscribe(fn func(Event)) (cancel func())
}
