package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/kikiluvv/splice/internal/thumbnails"
	"github.com/kikiluvv/splice/pkg/util"
)

// FrameOpener opens offscreen capture sessions backed by ffmpeg. Each
// capture is a separate ffmpeg process, so sessions never touch playback.
type FrameOpener struct {
	exec   *Executor
	width  int
	height int
}

// NewFrameOpener returns an opener capturing frames scaled to width x height
func NewFrameOpener(e *Executor, width, height int) *FrameOpener {
	return &FrameOpener{exec: e, width: width, height: height}
}

// Open probes sourceRef and returns a session positioned at 0
func (o *FrameOpener) Open(ctx context.Context, sourceRef string) (thumbnails.Session, error) {
	info, err := o.exec.ProbeVideo(ctx, sourceRef)
	if err != nil {
		return nil, err
	}
	return &frameSession{opener: o, source: sourceRef, duration: info.Duration}, nil
}

type frameSession struct {
	opener   *FrameOpener
	source   string
	duration time.Duration
	pos      time.Duration
}

// Seek records the capture position. Positions past the end snap to the
// last frame.
func (s *frameSession) Seek(ctx context.Context, t time.Duration) error {
	if t < 0 {
		return fmt.Errorf("negative seek position %s", t)
	}
	if s.duration > 0 && t >= s.duration {
		t = s.duration - 100*time.Millisecond
		if t < 0 {
			t = 0
		}
	}
	s.pos = t
	return nil
}

func (s *frameSession) Capture(ctx context.Context) (image.Image, error) {
	filter := NewFilterBuilder().Scale(s.opener.width, s.opener.height).Build()
	args := []string{
		"-ss", util.FormatDuration(s.pos),
		"-i", s.source,
		"-frames:v", "1",
		"-an",
	}
	if filter != "" {
		args = append(args, "-vf", filter)
	}
	args = append(args, "-f", "image2pipe", "-vcodec", "png", "-")

	data, err := s.opener.exec.Output(ctx, args...)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no frame at %s", s.pos)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

func (s *frameSession) Close() error {
	return nil
}
