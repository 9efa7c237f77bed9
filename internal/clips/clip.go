package clips

import (
	"fmt"
	"time"
)

// ID identifies a clip. IDs are assigned monotonically by the Store and are
// never reused.
type ID uint64

// ThumbnailState tracks preview generation for a clip
type ThumbnailState int

const (
	NotGenerated ThumbnailState = iota
	Generating
	Ready
)

func (s ThumbnailState) String() string {
	switch s {
	case NotGenerated:
		return "not_generated"
	case Generating:
		return "generating"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("ThumbnailState(%d)", int(s))
	}
}

// Thumbnail is a preview frame captured at Offset on the source timeline
type Thumbnail struct {
	Offset   time.Duration `yaml:"offset"`
	ImageRef string        `yaml:"image"`
}

// Clip represents a named, time-bounded reference into a source stream
type Clip struct {
	ID        ID            `yaml:"id"`
	Name      string        `yaml:"name"`
	Start     time.Duration `yaml:"start"`
	End       time.Duration `yaml:"end"`
	SourceRef string        `yaml:"source"`

	Thumbnails     []Thumbnail    `yaml:"thumbnails,omitempty"`
	ThumbnailState ThumbnailState `yaml:"thumbnail_state"`

	// Generation is the token of the thumbnail batch allowed to commit.
	// Zero means no batch is outstanding.
	Generation uint64 `yaml:"-"`
}

// Duration returns End - Start
func (c Clip) Duration() time.Duration {
	return c.End - c.Start
}

// Contains reports whether start <= t <= end
func (c Clip) Contains(t time.Duration) bool {
	return c.Start <= t && t <= c.End
}

// invalidate drops previews after the clip bounds changed
func (c *Clip) invalidate() {
	c.Thumbnails = nil
	c.ThumbnailState = NotGenerated
	c.Generation = 0
}

func (c Clip) String() string {
	return fmt.Sprintf("#%d %q [%s, %s)", c.ID, c.Name, c.Start, c.End)
}
