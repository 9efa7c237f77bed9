package thumbnails

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/kikiluvv/splice/internal/cache"
	"github.com/kikiluvv/splice/internal/clips"
	"github.com/kikiluvv/splice/internal/logging"
	"github.com/kikiluvv/splice/internal/metrics"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
)

// Defaults for thumbnail batches
const (
	DefaultCount   = 10
	DefaultWidth   = 160
	DefaultHeight  = 90
	DefaultQuality = 80
)

// Session is an offscreen decode session. It holds a single position at a
// time, so callers must seek and capture sequentially.
type Session interface {
	Seek(ctx context.Context, t time.Duration) error
	Capture(ctx context.Context) (image.Image, error)
	Close() error
}

// Opener opens decode sessions independent of any playback session
type Opener interface {
	Open(ctx context.Context, sourceRef string) (Session, error)
}

// FrameWriter persists an encoded frame and returns its image reference
type FrameWriter interface {
	Write(ctx context.Context, key string, jpeg []byte) (string, error)
}

// Request describes one batch
type Request struct {
	ClipID    clips.ID
	SourceRef string
	Start     time.Duration
	End       time.Duration
	Count     int
}

// Result is the output of a completed batch
type Result struct {
	ClipID     clips.ID
	Generation uint64
	Thumbnails []clips.Thumbnail
	Skipped    int
}

// Sink receives progress and results of a batch. Calls for one batch are
// made sequentially from the batch goroutine.
type Sink interface {
	Progress(clipID clips.ID, gen uint64, percent float64)
	// Commit writes the result back. A non-nil error means the result was
	// rejected as stale.
	Commit(res Result) error
	Failed(clipID clips.ID, gen uint64, err error)
}

// Options configures a Pipeline
type Options struct {
	Count       int
	Width       int
	Height      int
	Quality     int
	MaxSessions int
	Cache       cache.FrameCache
	Frames      FrameWriter
}

func (o Options) withDefaults() Options {
	if o.Count <= 0 {
		o.Count = DefaultCount
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.MaxSessions <= 0 {
		o.MaxSessions = 1
	}
	if o.Cache == nil {
		o.Cache = cache.Nop{}
	}
	return o
}

type batch struct {
	gen    uint64
	cancel context.CancelFunc
}

// Pipeline extracts evenly spaced preview frames for clips. Every batch gets
// a generation token; a newer batch for the same clip cancels the older one,
// and only the newest may commit.
type Pipeline struct {
	logger zerolog.Logger
	opener Opener
	opts   Options
	slots  chan struct{}

	mu       sync.Mutex
	nextGen  uint64
	inflight map[clips.ID]batch

	wg sync.WaitGroup
}

// New creates a pipeline. frames must be set in opts.
func New(logger zerolog.Logger, opener Opener, opts Options) (*Pipeline, error) {
	if opener == nil {
		return nil, fmt.Errorf("opener is required")
	}
	if opts.Frames == nil {
		return nil, fmt.Errorf("frame writer is required")
	}
	opts = opts.withDefaults()

	return &Pipeline{
		logger:   logging.WithComponent(logger, "thumbnails"),
		opener:   opener,
		opts:     opts,
		slots:    make(chan struct{}, opts.MaxSessions),
		inflight: make(map[clips.ID]batch),
	}, nil
}

// Generate starts a batch and returns its generation token. It does not
// block; the batch waits for a free session slot in the background.
func (p *Pipeline) Generate(ctx context.Context, req Request, sink Sink) uint64 {
	if req.Count <= 0 {
		req.Count = p.opts.Count
	}

	bctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.nextGen++
	gen := p.nextGen
	if prev, ok := p.inflight[req.ClipID]; ok {
		prev.cancel()
	}
	p.inflight[req.ClipID] = batch{gen: gen, cancel: cancel}
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.finish(req.ClipID, gen, cancel)
		p.run(bctx, gen, req, sink)
	}()

	return gen
}

// Latest returns the newest generation issued for a clip, or 0
func (p *Pipeline) Latest(id clips.ID) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight[id].gen
}

// Cancel stops any batch running for a clip
func (p *Pipeline) Cancel(id clips.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.inflight[id]; ok {
		b.cancel()
		delete(p.inflight, id)
	}
}

// Wait blocks until every started batch has returned
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Close cancels all batches and waits for them
func (p *Pipeline) Close() error {
	p.mu.Lock()
	for id, b := range p.inflight {
		b.cancel()
		delete(p.inflight, id)
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *Pipeline) current(id clips.ID, gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.inflight[id]
	return ok && b.gen == gen
}

func (p *Pipeline) finish(id clips.ID, gen uint64, cancel context.CancelFunc) {
	cancel()
	p.mu.Lock()
	if b, ok := p.inflight[id]; ok && b.gen == gen {
		delete(p.inflight, id)
	}
	p.mu.Unlock()
}

func (p *Pipeline) run(ctx context.Context, gen uint64, req Request, sink Sink) {
	logger := logging.WithClip(p.logger, uint64(req.ClipID)).With().
		Uint64("generation", gen).
		Logger()

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		p.superseded(logger)
		return
	}
	defer func() { <-p.slots }()

	if !p.current(req.ClipID, gen) {
		p.superseded(logger)
		return
	}

	started := time.Now()
	logger.Debug().
		Str("source", req.SourceRef).
		Dur("start", req.Start).
		Dur("end", req.End).
		Int("count", req.Count).
		Msg("generating thumbnails")

	sess, err := p.opener.Open(ctx, req.SourceRef)
	if err != nil {
		if ctx.Err() != nil {
			p.superseded(logger)
			return
		}
		metrics.ThumbnailBatchesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		logger.Warn().Err(err).Str("source", req.SourceRef).Msg("failed to open source, batch aborted")
		sink.Failed(req.ClipID, gen, fmt.Errorf("open %s: %w", req.SourceRef, err))
		return
	}
	metrics.ThumbnailSessionsInFlight.Inc()
	defer func() {
		metrics.ThumbnailSessionsInFlight.Dec()
		if err := sess.Close(); err != nil {
			logger.Debug().Err(err).Msg("closing decode session")
		}
	}()

	offsets := Offsets(req.Start, req.End, req.Count)
	res := Result{
		ClipID:     req.ClipID,
		Generation: gen,
		Thumbnails: make([]clips.Thumbnail, 0, len(offsets)),
	}

	for i, off := range offsets {
		if ctx.Err() != nil {
			p.superseded(logger)
			return
		}

		ref, err := p.frame(ctx, sess, req.SourceRef, off)
		if err != nil {
			if ctx.Err() != nil {
				p.superseded(logger)
				return
			}
			res.Skipped++
			metrics.ThumbnailFramesTotal.WithLabelValues(metrics.FrameFailed).Inc()
			logger.Warn().Err(err).Dur("offset", off).Msg("frame capture failed, skipping")
		} else {
			res.Thumbnails = append(res.Thumbnails, clips.Thumbnail{Offset: off, ImageRef: ref})
		}

		if p.current(req.ClipID, gen) {
			sink.Progress(req.ClipID, gen, float64(i+1)/float64(len(offsets))*100)
		}
	}

	if !p.current(req.ClipID, gen) {
		p.superseded(logger)
		return
	}
	if err := sink.Commit(res); err != nil {
		logger.Debug().Err(err).Msg("thumbnail result rejected")
		p.superseded(logger)
		return
	}

	metrics.ThumbnailBatchesTotal.WithLabelValues(metrics.OutcomeCommitted).Inc()
	metrics.ThumbnailBatchDuration.Observe(time.Since(started).Seconds())
	logger.Debug().
		Int("frames", len(res.Thumbnails)).
		Int("skipped", res.Skipped).
		Dur("took", time.Since(started)).
		Msg("thumbnails committed")
}

func (p *Pipeline) superseded(logger zerolog.Logger) {
	metrics.ThumbnailBatchesTotal.WithLabelValues(metrics.OutcomeSuperseded).Inc()
	logger.Debug().Msg("thumbnail batch superseded")
}

// frame returns an image reference for sourceRef at off, from cache when
// possible.
func (p *Pipeline) frame(ctx context.Context, sess Session, sourceRef string, off time.Duration) (string, error) {
	key := cache.FrameKey(sourceRef, off, p.opts.Width, p.opts.Height)

	data, ok, err := p.opts.Cache.Get(ctx, key)
	if err != nil {
		p.logger.Debug().Err(err).Str("key", key).Msg("frame cache lookup failed")
	}
	if ok {
		metrics.ThumbnailFramesTotal.WithLabelValues(metrics.FrameCached).Inc()
		return p.opts.Frames.Write(ctx, key, data)
	}

	if err := sess.Seek(ctx, off); err != nil {
		return "", fmt.Errorf("seek to %s: %w", off, err)
	}
	img, err := sess.Capture(ctx)
	if err != nil {
		return "", fmt.Errorf("capture at %s: %w", off, err)
	}
	if img == nil {
		return "", errors.New("decoder returned no frame")
	}

	data, err = p.encode(img)
	if err != nil {
		return "", err
	}
	if err := p.opts.Cache.Set(ctx, key, data); err != nil {
		p.logger.Debug().Err(err).Str("key", key).Msg("frame cache store failed")
	}

	metrics.ThumbnailFramesTotal.WithLabelValues(metrics.FrameCaptured).Inc()
	return p.opts.Frames.Write(ctx, key, data)
}

// encode scales img to the thumbnail size and encodes it as JPEG
func (p *Pipeline) encode(img image.Image) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() != p.opts.Width || b.Dy() != p.opts.Height {
		img = resize.Resize(uint(p.opts.Width), uint(p.opts.Height), img, resize.Bilinear)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.opts.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Offsets returns count evenly spaced timestamps in [start, end)
func Offsets(start, end time.Duration, count int) []time.Duration {
	if count <= 0 || end <= start {
		return nil
	}
	step := (end - start) / time.Duration(count)
	out := make([]time.Duration, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, start+time.Duration(i)*step)
	}
	return out
}
