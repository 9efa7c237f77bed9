package thumbnails

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kikiluvv/splice/internal/cache"
	"github.com/kikiluvv/splice/internal/clips"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpener struct {
	mu         sync.Mutex
	opened     int
	active     int
	maxActive  int
	blockFirst bool
	openErr    error
	failAt     map[time.Duration]bool
	captures   int32
}

func (o *fakeOpener) Open(ctx context.Context, sourceRef string) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.opened++
	o.active++
	if o.active > o.maxActive {
		o.maxActive = o.active
	}
	s := &fakeSession{o: o}
	if o.blockFirst && o.opened == 1 {
		s.block = make(chan struct{})
	}
	return s, nil
}

func (o *fakeOpener) openedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}

type fakeSession struct {
	o     *fakeOpener
	pos   time.Duration
	block chan struct{}
}

func (s *fakeSession) Seek(ctx context.Context, t time.Duration) error {
	s.pos = t
	return nil
}

func (s *fakeSession) Capture(ctx context.Context) (image.Image, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.o.failAt[s.pos] {
		return nil, errors.New("decode error")
	}
	atomic.AddInt32(&s.o.captures, 1)

	img := image.NewRGBA(image.Rect(0, 0, 320, 180))
	for x := 0; x < 320; x++ {
		for y := 0; y < 180; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	return img, nil
}

func (s *fakeSession) Close() error {
	s.o.mu.Lock()
	s.o.active--
	s.o.mu.Unlock()
	return nil
}

type recordingSink struct {
	mu       sync.Mutex
	progress []float64
	commits  []Result
	failures []error
	commit   func(Result) error
}

func (s *recordingSink) Progress(_ clips.ID, _ uint64, pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, pct)
}

func (s *recordingSink) Commit(res Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commit != nil {
		if err := s.commit(res); err != nil {
			return err
		}
	}
	s.commits = append(s.commits, res)
	return nil
}

func (s *recordingSink) Failed(_ clips.ID, _ uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

func newTestPipeline(t *testing.T, opener Opener, opts Options) *Pipeline {
	t.Helper()
	w, err := NewDirWriter(t.TempDir())
	require.NoError(t, err)
	opts.Frames = w
	p, err := New(zerolog.Nop(), opener, opts)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestOffsets(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Duration
		count      int
		want       []time.Duration
	}{
		{"even", 0, 4 * time.Second, 4, []time.Duration{0, time.Second, 2 * time.Second, 3 * time.Second}},
		{"shifted", 10 * time.Second, 12 * time.Second, 2, []time.Duration{10 * time.Second, 11 * time.Second}},
		{"empty range", 5 * time.Second, 5 * time.Second, 3, nil},
		{"zero count", 0, time.Second, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Offsets(tt.start, tt.end, tt.count))
		})
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(zerolog.Nop(), nil, Options{Frames: &DirWriter{Dir: t.TempDir()}})
	assert.Error(t, err)

	_, err = New(zerolog.Nop(), &fakeOpener{}, Options{})
	assert.Error(t, err)
}

func TestGenerateCommitsScaledFrames(t *testing.T) {
	opener := &fakeOpener{}
	p := newTestPipeline(t, opener, Options{Count: 4})
	sink := &recordingSink{}

	gen := p.Generate(context.Background(), Request{
		ClipID:    1,
		SourceRef: "file:///a.mp4",
		Start:     0,
		End:       4 * time.Second,
	}, sink)
	p.Wait()

	require.Len(t, sink.commits, 1)
	res := sink.commits[0]
	assert.Equal(t, gen, res.Generation)
	assert.Equal(t, clips.ID(1), res.ClipID)
	require.Len(t, res.Thumbnails, 4)
	assert.Equal(t, []float64{25, 50, 75, 100}, sink.progress)

	for i, th := range res.Thumbnails {
		assert.Equal(t, time.Duration(i)*time.Second, th.Offset)
	}

	f, err := os.Open(res.Thumbnails[0].ImageRef)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
	assert.Equal(t, DefaultHeight, img.Bounds().Dy())
}

func TestGenerateSkipsFailedFrames(t *testing.T) {
	opener := &fakeOpener{failAt: map[time.Duration]bool{2 * time.Second: true}}
	p := newTestPipeline(t, opener, Options{Count: 4})
	sink := &recordingSink{}

	p.Generate(context.Background(), Request{ClipID: 1, SourceRef: "a.mp4", End: 4 * time.Second}, sink)
	p.Wait()

	require.Len(t, sink.commits, 1)
	res := sink.commits[0]
	assert.Len(t, res.Thumbnails, 3)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, sink.progress, 4)
}

func TestGenerateOpenFailureAbortsBatch(t *testing.T) {
	opener := &fakeOpener{openErr: errors.New("no such file")}
	p := newTestPipeline(t, opener, Options{})
	sink := &recordingSink{}

	p.Generate(context.Background(), Request{ClipID: 1, SourceRef: "missing.mp4", End: time.Second}, sink)
	p.Wait()

	assert.Empty(t, sink.commits)
	require.Len(t, sink.failures, 1)
	assert.Contains(t, sink.failures[0].Error(), "missing.mp4")
}

func TestNewerBatchSupersedesOlder(t *testing.T) {
	opener := &fakeOpener{blockFirst: true}
	p := newTestPipeline(t, opener, Options{Count: 2})
	sink := &recordingSink{}

	first := p.Generate(context.Background(), Request{ClipID: 7, SourceRef: "a.mp4", End: 10 * time.Second}, sink)
	require.Eventually(t, func() bool { return opener.openedCount() == 1 }, time.Second, time.Millisecond)

	second := p.Generate(context.Background(), Request{ClipID: 7, SourceRef: "a.mp4", Start: 2 * time.Second, End: 4 * time.Second}, sink)
	assert.Greater(t, second, first)
	assert.Equal(t, second, p.Latest(7))
	p.Wait()

	require.Len(t, sink.commits, 1)
	assert.Equal(t, second, sink.commits[0].Generation)
	assert.Equal(t, 2*time.Second, sink.commits[0].Thumbnails[0].Offset)
	assert.Zero(t, p.Latest(7))
}

func TestCancelStopsBatch(t *testing.T) {
	opener := &fakeOpener{blockFirst: true}
	p := newTestPipeline(t, opener, Options{Count: 2})
	sink := &recordingSink{}

	p.Generate(context.Background(), Request{ClipID: 3, SourceRef: "a.mp4", End: time.Second}, sink)
	require.Eventually(t, func() bool { return opener.openedCount() == 1 }, time.Second, time.Millisecond)

	p.Cancel(3)
	p.Wait()

	assert.Empty(t, sink.commits)
	assert.Empty(t, sink.failures)
}

func TestSessionsAreBounded(t *testing.T) {
	opener := &fakeOpener{}
	p := newTestPipeline(t, opener, Options{Count: 3, MaxSessions: 1})
	sink := &recordingSink{}

	for id := clips.ID(1); id <= 5; id++ {
		p.Generate(context.Background(), Request{ClipID: id, SourceRef: "a.mp4", End: 3 * time.Second}, sink)
	}
	p.Wait()

	assert.Len(t, sink.commits, 5)
	assert.Equal(t, 1, opener.maxActive)
	assert.Zero(t, opener.active)
}

func TestCachedFramesSkipDecode(t *testing.T) {
	opener := &fakeOpener{}
	mem := cache.NewMemory()
	p := newTestPipeline(t, opener, Options{Count: 2, Cache: mem})
	sink := &recordingSink{}

	req := Request{ClipID: 1, SourceRef: "a.mp4", End: 2 * time.Second}
	p.Generate(context.Background(), req, sink)
	p.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&opener.captures))
	assert.Equal(t, 2, mem.Len())

	req.ClipID = 2
	p.Generate(context.Background(), req, sink)
	p.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&opener.captures))

	require.Len(t, sink.commits, 2)
	assert.Equal(t, sink.commits[0].Thumbnails, sink.commits[1].Thumbnails)
}

func TestStaleResultIsRejectedByStore(t *testing.T) {
	opener := &fakeOpener{}
	p := newTestPipeline(t, opener, Options{Count: 2})

	var mu sync.Mutex
	store := clips.New("a", "a.mp4", 10*time.Second, clips.DefaultLimits())
	c := store.Clips()[0]

	sink := &recordingSink{commit: func(res Result) error {
		mu.Lock()
		defer mu.Unlock()
		next, err := store.CommitThumbnails(res.ClipID, res.Generation, res.Thumbnails)
		if err != nil {
			return err
		}
		store = next
		return nil
	}}

	mu.Lock()
	gen := p.Generate(context.Background(), Request{ClipID: c.ID, SourceRef: c.SourceRef, End: c.End}, sink)
	store, _ = store.MarkGenerating(c.ID, gen)
	// trimming drops the pending generation
	store, _ = store.Trim(c.ID, time.Second, 5*time.Second)
	mu.Unlock()
	p.Wait()

	assert.Empty(t, sink.commits)
	got, _ := store.Get(c.ID)
	assert.Equal(t, clips.NotGenerated, got.ThumbnailState)
	assert.Empty(t, got.Thumbnails)
}
