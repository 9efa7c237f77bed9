package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kikiluvv/splice/pkg/util"
)

// DetectScenes finds scene changes using ffmpeg scene detection. Changes
// closer than minGap to the previous one are dropped.
func (e *Executor) DetectScenes(ctx context.Context, input string, threshold float64, minGap time.Duration) ([]time.Duration, error) {
	e.logger.Info().
		Str("input", input).
		Float64("threshold", threshold).
		Msg("detecting scene changes")

	var stderrBuf bytes.Buffer
	var mu sync.Mutex

	filter := NewFilterBuilder().SceneSelect(threshold).Custom("showinfo").Build()
	opts := RunOptions{
		Args: []string{
			"-i", input,
			"-vf", filter,
			"-an",
			"-f", "null",
			"-",
		},
		LogHandler: func(line string) {
			mu.Lock()
			stderrBuf.WriteString(line + "\n")
			mu.Unlock()
		},
	}

	err := e.Run(ctx, opts)

	mu.Lock()
	output := stderrBuf.String()
	mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !strings.Contains(output, "pts_time:") {
			return nil, fmt.Errorf("scene detection failed: %w", err)
		}
	}

	scenes := spaceOut(parseSceneOutput(output), minGap)
	e.logger.Info().Int("scenes", len(scenes)).Msg("scene detection complete")
	return scenes, nil
}

// parseSceneOutput extracts scene change timestamps from showinfo output
func parseSceneOutput(output string) []time.Duration {
	var scenes []time.Duration

	for _, line := range strings.Split(output, "\n") {
		_, rest, ok := strings.Cut(line, "pts_time:")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		if seconds, err := strconv.ParseFloat(fields[0], 64); err == nil && seconds > 0 {
			scenes = append(scenes, util.Seconds(seconds))
		}
	}

	return scenes
}

func spaceOut(scenes []time.Duration, minGap time.Duration) []time.Duration {
	sort.Slice(scenes, func(i, j int) bool { return scenes[i] < scenes[j] })

	out := scenes[:0]
	var last time.Duration
	for _, s := range scenes {
		if s-last < minGap {
			continue
		}
		out = append(out, s)
		last = s
	}
	return out
}
