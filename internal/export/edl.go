// Package export renders the edit decision list in interchange formats.
package export

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/kikiluvv/splice/internal/clips"
	"github.com/kikiluvv/splice/pkg/util"
)

// DefaultFrameRate is used when the source frame rate is unknown
const DefaultFrameRate = 30.0

const reelNameLength = 8

// GenerateEDL renders clips as a CMX3600 EDL. Clips are laid end to end on
// the record side, so gaps in the timeline are closed.
func GenerateEDL(list []clips.Clip, title string, frameRate float64) string {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	fps := int(math.Round(frameRate))

	// timecodes count whole frames at the rounded rate, so they are always
	// non-drop, even at 29.97 and 59.94
	lines := []string{
		fmt.Sprintf("TITLE: %s", title),
		"FCM: NON-DROP FRAME",
		"",
	}

	var recordMs int64
	for i, c := range list {
		startMs, endMs := c.Start.Milliseconds(), c.End.Milliseconds()
		durationMs := endMs - startMs

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s",
				i+1,
				ReelName(c.SourceRef),
				"V",
				msToTimecode(startMs, fps),
				msToTimecode(endMs, fps),
				msToTimecode(recordMs, fps),
				msToTimecode(recordMs+durationMs, fps),
			),
			fmt.Sprintf("* FROM CLIP NAME:  %s", c.Name),
			fmt.Sprintf("* SOURCE FILE:  %s", c.SourceRef),
		)

		recordMs += durationMs
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// WriteEDL renders clips and writes them to path
func WriteEDL(path string, list []clips.Clip, title string, frameRate float64) error {
	if err := os.WriteFile(path, []byte(GenerateEDL(list, title, frameRate)), 0644); err != nil {
		return fmt.Errorf("failed to write EDL: %w", err)
	}
	return nil
}

// ReelName derives an 8 character reel name from a media locator
func ReelName(sourceRef string) string {
	name := strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, util.BaseName(sourceRef))

	if len(name) > reelNameLength {
		name = name[:reelNameLength]
	}
	if name == "" {
		name = "AX"
	}
	return name
}

func msToTimecode(ms int64, fps int) string {
	totalFrames := int64(math.Round(float64(ms) * float64(fps) / 1000.0))
	f := int64(fps)
	frames := totalFrames % f
	totalSeconds := totalFrames / f
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
