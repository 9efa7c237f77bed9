package clips

import (
	"sort"
	"time"
)

// Defaults for edit operations
const (
	DefaultInsertDuration     = 30 * time.Second
	DefaultMinDuration        = 500 * time.Millisecond
	DefaultAdjacencyTolerance = 100 * time.Millisecond
	DefaultCutEpsilon         = 10 * time.Millisecond
)

// Limits holds the tunables used by edit operations
type Limits struct {
	InsertDuration     time.Duration
	MinDuration        time.Duration
	AdjacencyTolerance time.Duration
	CutEpsilon         time.Duration
}

// DefaultLimits returns the stock editing limits
func DefaultLimits() Limits {
	return Limits{
		InsertDuration:     DefaultInsertDuration,
		MinDuration:        DefaultMinDuration,
		AdjacencyTolerance: DefaultAdjacencyTolerance,
		CutEpsilon:         DefaultCutEpsilon,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.InsertDuration <= 0 {
		l.InsertDuration = d.InsertDuration
	}
	if l.MinDuration <= 0 {
		l.MinDuration = d.MinDuration
	}
	if l.AdjacencyTolerance <= 0 {
		l.AdjacencyTolerance = d.AdjacencyTolerance
	}
	if l.CutEpsilon <= 0 {
		l.CutEpsilon = d.CutEpsilon
	}
	return l
}

// Store is the edit decision list: clips ordered by Start plus the current
// selection. A Store is a value; every operation returns a new Store and
// leaves the receiver untouched.
type Store struct {
	clips    []Clip
	nextID   ID
	selected ID
	duration time.Duration
	limits   Limits
}

// New creates a store holding a single clip spanning [0, duration)
func New(name, sourceRef string, duration time.Duration, limits Limits) Store {
	s := Empty(duration, limits)
	if duration <= 0 {
		return s
	}
	s.clips = []Clip{{
		ID:        s.nextID,
		Name:      name,
		Start:     0,
		End:       duration,
		SourceRef: sourceRef,
	}}
	s.nextID++
	return s
}

// Empty creates a store with no clips
func Empty(duration time.Duration, limits Limits) Store {
	return Store{
		nextID:   1,
		duration: duration,
		limits:   limits.withDefaults(),
	}
}

// Restore rebuilds a store from persisted clips. Clips with end <= start are
// dropped and the result is sorted.
func Restore(clips []Clip, duration time.Duration, limits Limits) Store {
	s := Empty(duration, limits)
	for _, c := range clips {
		if c.End <= c.Start || c.Start < 0 {
			continue
		}
		c.Generation = 0
		if c.ThumbnailState == Generating {
			c.ThumbnailState = NotGenerated
		}
		s.clips = append(s.clips, c)
		if c.ID >= s.nextID {
			s.nextID = c.ID + 1
		}
	}
	s.sort()
	return s
}

// Len returns the number of clips
func (s Store) Len() int {
	return len(s.clips)
}

// Clips returns a copy of the ordered clip list
func (s Store) Clips() []Clip {
	out := make([]Clip, len(s.clips))
	copy(out, s.clips)
	return out
}

// Get retrieves a clip by ID
func (s Store) Get(id ID) (Clip, bool) {
	if i := s.index(id); i >= 0 {
		return s.clips[i], true
	}
	return Clip{}, false
}

// ClipAt returns the first clip (in order) with start <= t <= end
func (s Store) ClipAt(t time.Duration) (Clip, bool) {
	if i := s.indexAt(t); i >= 0 {
		return s.clips[i], true
	}
	return Clip{}, false
}

// Selected returns the selected clip ID, if any
func (s Store) Selected() (ID, bool) {
	return s.selected, s.selected != 0
}

// Duration returns the source media duration
func (s Store) Duration() time.Duration {
	return s.duration
}

// Span returns the extent of the timeline axis: the media duration or the
// end of the last clip, whichever is later.
func (s Store) Span() time.Duration {
	span := s.duration
	for _, c := range s.clips {
		if c.End > span {
			span = c.End
		}
	}
	return span
}

// Limits returns the editing limits in effect
func (s Store) Limits() Limits {
	return s.limits
}

// WithDuration returns a store using d as the media duration
func (s Store) WithDuration(d time.Duration) Store {
	out := s.clone()
	out.duration = d
	return out
}

// Stale returns IDs of clips whose thumbnails need generating
func (s Store) Stale() []ID {
	var ids []ID
	for _, c := range s.clips {
		if c.ThumbnailState == NotGenerated {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func (s Store) index(id ID) int {
	for i, c := range s.clips {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s Store) indexAt(t time.Duration) int {
	for i, c := range s.clips {
		if c.Contains(t) {
			return i
		}
	}
	return -1
}

func (s Store) clone() Store {
	out := s
	out.clips = make([]Clip, len(s.clips))
	copy(out.clips, s.clips)
	return out
}

func (s *Store) sort() {
	sort.SliceStable(s.clips, func(i, j int) bool {
		return s.clips[i].Start < s.clips[j].Start
	})
}

func (s *Store) allocID() ID {
	id := s.nextID
	s.nextID++
	return id
}
