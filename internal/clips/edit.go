package clips

import (
	"errors"
	"sort"
	"time"
)

// Sentinel errors returned by edit operations. The returned store is always
// the unchanged receiver when an error is reported.
var (
	ErrNotFound        = errors.New("clip not found")
	ErrNoClipAtTime    = errors.New("no clip at time")
	ErrAtBoundary      = errors.New("time is on a clip boundary")
	ErrNotAdjacent     = errors.New("clip has no adjacent successor")
	ErrInvalidRange    = errors.New("invalid clip range")
	ErrNoSelection     = errors.New("no clip selected")
	ErrStaleGeneration = errors.New("stale thumbnail generation")
	ErrUnknownPosition = errors.New("unknown insert position")
)

// InsertPosition selects where Insert places the new clip
type InsertPosition string

const (
	InsertAfter   InsertPosition = "after"
	InsertBetween InsertPosition = "between"
)

// Patch carries optional field updates for Update
type Patch struct {
	Name  *string
	Start *time.Duration
	End   *time.Duration
}

// Cut splits the clip containing t into [start,t) and [t,end). Both parts
// keep the source and lose their thumbnails.
func (s Store) Cut(t time.Duration) (Store, error) {
	i := s.indexAt(t)
	if i < 0 {
		return s, ErrNoClipAtTime
	}
	if s.nearEdge(s.clips[i], t) {
		return s, ErrAtBoundary
	}

	out := s.clone()
	out.splitAt(i, t)
	return out, nil
}

// splitAt cuts clip i at t in place; the right part lands at i+1
func (s *Store) splitAt(i int, t time.Duration) {
	orig := s.clips[i]

	left := orig
	left.End = t
	left.invalidate()

	right := orig
	right.ID = s.allocID()
	right.Name = orig.Name + " (2)"
	right.Start = t
	right.invalidate()

	s.clips[i] = left
	s.clips = append(s.clips, Clip{})
	copy(s.clips[i+2:], s.clips[i+1:])
	s.clips[i+1] = right
	s.sort()
}

func (s Store) nearEdge(c Clip, t time.Duration) bool {
	return t-c.Start <= s.limits.CutEpsilon || c.End-t <= s.limits.CutEpsilon
}

// Delete removes a clip. The time range it covered is left empty and later
// clips keep their positions.
func (s Store) Delete(id ID) (Store, error) {
	i := s.index(id)
	if i < 0 {
		return s, ErrNotFound
	}

	out := s.clone()
	out.clips = append(out.clips[:i], out.clips[i+1:]...)
	if out.selected == id {
		out.selected = 0
	}
	return out, nil
}

// MergeWithNext joins a clip with its successor when the gap between them is
// within the adjacency tolerance. The merged clip keeps the first clip's ID.
func (s Store) MergeWithNext(id ID) (Store, error) {
	i := s.index(id)
	if i < 0 {
		return s, ErrNotFound
	}
	if i+1 >= len(s.clips) {
		return s, ErrNotAdjacent
	}

	cur, next := s.clips[i], s.clips[i+1]
	gap := cur.End - next.Start
	if gap < 0 {
		gap = -gap
	}
	if gap > s.limits.AdjacencyTolerance {
		return s, ErrNotAdjacent
	}

	out := s.clone()
	merged := cur
	merged.End = next.End
	merged.Name = cur.Name + " + " + next.Name
	merged.invalidate()

	out.clips[i] = merged
	out.clips = append(out.clips[:i+1], out.clips[i+2:]...)
	if out.selected == next.ID {
		out.selected = merged.ID
	}
	out.sort()
	return out, nil
}

// Insert adds a clip of the default insert duration. InsertAfter appends it
// at the end of the last clip. InsertBetween splits the clip under playhead
// and places the new clip at the split point.
func (s Store) Insert(pos InsertPosition, name, sourceRef string, playhead time.Duration) (Store, Clip, error) {
	switch pos {
	case InsertAfter:
		var start time.Duration
		if n := len(s.clips); n > 0 {
			start = s.clips[n-1].End
		}
		out := s.clone()
		c := Clip{
			ID:        out.allocID(),
			Name:      name,
			Start:     start,
			End:       start + s.limits.InsertDuration,
			SourceRef: sourceRef,
		}
		out.clips = append(out.clips, c)
		out.sort()
		return out, c, nil

	case InsertBetween:
		i := s.indexAt(playhead)
		if i < 0 {
			return s, Clip{}, ErrNoClipAtTime
		}

		out := s.clone()
		at := playhead
		host := out.clips[i]
		switch {
		case at-host.Start <= s.limits.CutEpsilon:
			at = host.Start
		case host.End-at <= s.limits.CutEpsilon:
			at = host.End
		default:
			out.splitAt(i, at)
		}

		c := Clip{
			ID:        out.allocID(),
			Name:      name,
			Start:     at,
			End:       at + s.limits.InsertDuration,
			SourceRef: sourceRef,
		}
		// place before any clip starting at the same instant
		j := sort.Search(len(out.clips), func(k int) bool {
			return out.clips[k].Start >= at
		})
		out.clips = append(out.clips, Clip{})
		copy(out.clips[j+1:], out.clips[j:])
		out.clips[j] = c
		return out, c, nil

	default:
		return s, Clip{}, ErrUnknownPosition
	}
}

// Update applies the non-nil fields of p. Changing either bound drops the
// clip's thumbnails.
func (s Store) Update(id ID, p Patch) (Store, error) {
	i := s.index(id)
	if i < 0 {
		return s, ErrNotFound
	}

	c := s.clips[i]
	start, end := c.Start, c.End
	if p.Start != nil {
		start = *p.Start
	}
	if p.End != nil {
		end = *p.End
	}
	if start < 0 || end <= start {
		return s, ErrInvalidRange
	}

	out := s.clone()
	if p.Name != nil {
		c.Name = *p.Name
	}
	if start != c.Start || end != c.End {
		c.Start, c.End = start, end
		c.invalidate()
	}
	out.clips[i] = c
	out.sort()
	return out, nil
}

// Rename sets a clip's name
func (s Store) Rename(id ID, name string) (Store, error) {
	return s.Update(id, Patch{Name: &name})
}

// Trim moves one or both edges of a clip. newEnd is first held inside
// [0, span], then start is clamped to [0, end-min] and end to
// [start+min, span], so the clip never gets shorter than the minimum
// duration and never reaches past the span.
func (s Store) Trim(id ID, newStart, newEnd time.Duration) (Store, error) {
	i := s.index(id)
	if i < 0 {
		return s, ErrNotFound
	}

	min, span := s.limits.MinDuration, s.Span()
	end := clamp(newEnd, 0, span)
	start := clamp(newStart, 0, end-min)
	end = clamp(end, start+min, span)

	c := s.clips[i]
	if start == c.Start && end == c.End {
		return s, nil
	}

	out := s.clone()
	c.Start, c.End = start, end
	c.invalidate()
	out.clips[i] = c
	out.sort()
	return out, nil
}

// Move shifts a clip to newStart keeping its duration, clamped so the clip
// stays inside [0, span].
func (s Store) Move(id ID, newStart time.Duration) (Store, error) {
	i := s.index(id)
	if i < 0 {
		return s, ErrNotFound
	}

	c := s.clips[i]
	d := c.Duration()
	start := clamp(newStart, 0, s.Span()-d)
	if start == c.Start {
		return s, nil
	}

	out := s.clone()
	c.Start, c.End = start, start+d
	c.invalidate()
	out.clips[i] = c
	out.sort()
	return out, nil
}

// Select makes id the only selected clip
func (s Store) Select(id ID) (Store, error) {
	if s.index(id) < 0 {
		return s, ErrNotFound
	}
	out := s
	out.selected = id
	return out, nil
}

// ClearSelection deselects any clip
func (s Store) ClearSelection() Store {
	out := s
	out.selected = 0
	return out
}

// DeleteSelected deletes the selected clip
func (s Store) DeleteSelected() (Store, error) {
	id, ok := s.Selected()
	if !ok {
		return s, ErrNoSelection
	}
	return s.Delete(id)
}

// MergeSelected merges the selected clip with its successor
func (s Store) MergeSelected() (Store, error) {
	id, ok := s.Selected()
	if !ok {
		return s, ErrNoSelection
	}
	return s.MergeWithNext(id)
}

// MarkGenerating records gen as the only thumbnail batch allowed to commit
// for id.
func (s Store) MarkGenerating(id ID, gen uint64) (Store, error) {
	i := s.index(id)
	if i < 0 {
		return s, ErrNotFound
	}
	out := s.clone()
	out.clips[i].ThumbnailState = Generating
	out.clips[i].Generation = gen
	return out, nil
}

// CommitThumbnails stores the frames of batch gen. It fails with
// ErrStaleGeneration unless gen is the batch recorded by MarkGenerating.
// Frames outside the clip bounds are discarded.
func (s Store) CommitThumbnails(id ID, gen uint64, thumbs []Thumbnail) (Store, error) {
	i := s.index(id)
	if i < 0 {
		return s, ErrNotFound
	}
	c := s.clips[i]
	if gen == 0 || c.Generation != gen {
		return s, ErrStaleGeneration
	}

	kept := make([]Thumbnail, 0, len(thumbs))
	for _, th := range thumbs {
		if c.Contains(th.Offset) {
			kept = append(kept, th)
		}
	}
	sort.SliceStable(kept, func(a, b int) bool { return kept[a].Offset < kept[b].Offset })

	out := s.clone()
	c.Thumbnails = kept
	c.ThumbnailState = Ready
	c.Generation = 0
	out.clips[i] = c
	return out, nil
}

func clamp(v, lo, hi time.Duration) time.Duration {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
