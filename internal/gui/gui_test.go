package gui

import (
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiluvv/splice/internal/clips"
	"github.com/kikiluvv/splice/internal/playback"
	"github.com/kikiluvv/splice/internal/timeline"
)

// newHarness wires a 100s timeline onto a 1000px track, so 10px is one second
func newHarness(t *testing.T) (fyne.App, *timeline.Controller, *playback.Controller, *playback.ClockSession) {
	t.Helper()
	a := test.NewTempApp(t)

	sess := playback.NewClockSession(100*time.Second, time.Hour)
	t.Cleanup(func() { sess.Close() })
	player := playback.NewController(zerolog.Nop(), sess, playback.Options{})
	t.Cleanup(player.Close)
	sess.Load()

	store := clips.New("Interview", "interview.mp4", 100*time.Second, clips.Limits{})
	tl := timeline.New(zerolog.Nop(), store, nil, player, timeline.Options{})
	t.Cleanup(tl.Close)
	tl.SetWidth(1000)

	return a, tl, player, sess
}

func at(x float32) *fyne.PointEvent {
	return &fyne.PointEvent{Position: fyne.NewPos(x, 30)}
}

func TestTimelineView_TapSelects(t *testing.T) {
	_, tl, _, _ := newHarness(t)
	v := NewTimelineView(tl)

	v.Tapped(at(500))

	id, ok := tl.Store().Selected()
	require.True(t, ok)
	assert.Equal(t, clips.ID(1), id)
}

func TestTimelineView_DragTrimsLeftEdge(t *testing.T) {
	_, tl, _, _ := newHarness(t)
	require.NoError(t, tl.Cut(50*time.Second))
	v := NewTimelineView(tl)

	v.MouseDown(&desktop.MouseEvent{PointEvent: *at(500), Button: desktop.MouseButtonPrimary})
	v.Dragged(&fyne.DragEvent{PointEvent: *at(600), Dragged: fyne.Delta{DX: 100}})
	v.DragEnd()

	all := tl.Store().Clips()
	require.Len(t, all, 2)
	assert.Equal(t, 50*time.Second, all[0].End)
	assert.Equal(t, 60*time.Second, all[1].Start)
	assert.Equal(t, 100*time.Second, all[1].End)

	_, dragging := tl.Dragging()
	assert.False(t, dragging)
}

func TestTimelineView_DragWithoutMouseDown(t *testing.T) {
	_, tl, _, _ := newHarness(t)
	require.NoError(t, tl.Cut(50*time.Second))
	v := NewTimelineView(tl)

	v.Dragged(&fyne.DragEvent{PointEvent: *at(550), Dragged: fyne.Delta{DX: 50}})
	v.DragEnd()

	all := tl.Store().Clips()
	assert.Equal(t, 55*time.Second, all[1].Start)
}

func TestTimelineView_DoubleTapOnGapOpensInsert(t *testing.T) {
	_, tl, player, _ := newHarness(t)
	require.NoError(t, tl.Trim(1, 0, 50*time.Second))
	v := NewTimelineView(tl)

	v.DoubleTapped(at(750))

	p, ok := tl.Pending()
	require.True(t, ok)
	assert.Equal(t, clips.InsertBetween, p.Position)
	assert.Equal(t, 75*time.Second, p.At)
	assert.Equal(t, 75*time.Second, player.Snapshot().CurrentTime)
}

func TestTimelineView_DoubleTapOnClipIgnored(t *testing.T) {
	_, tl, player, _ := newHarness(t)
	v := NewTimelineView(tl)

	v.DoubleTapped(at(250))

	_, ok := tl.Pending()
	assert.False(t, ok)
	assert.Equal(t, time.Duration(0), player.Snapshot().CurrentTime)
}

func TestRulerView_TapAndScrub(t *testing.T) {
	_, tl, player, sess := newHarness(t)
	r := NewRulerView(tl)

	r.Tapped(at(250))
	assert.Equal(t, 25*time.Second, player.Snapshot().CurrentTime)

	r.Dragged(&fyne.DragEvent{PointEvent: *at(300), Dragged: fyne.Delta{DX: 50}})
	hit, ok := tl.Dragging()
	require.True(t, ok)
	assert.Equal(t, timeline.DragScrub, hit.Mode)
	assert.Equal(t, 30*time.Second, sess.CurrentTime())

	r.Dragged(&fyne.DragEvent{PointEvent: *at(310), Dragged: fyne.Delta{DX: 10}})
	r.DragEnd()

	assert.Equal(t, 31*time.Second, sess.CurrentTime())
	_, ok = tl.Dragging()
	assert.False(t, ok)
	assert.Equal(t, 1, tl.Store().Len())
}

func TestTickStep(t *testing.T) {
	tests := []struct {
		name  string
		span  time.Duration
		width float32
		want  time.Duration
	}{
		{"short clip", 100 * time.Second, 1000, 10 * time.Second},
		{"hour", time.Hour, 1000, 5 * time.Minute},
		{"narrow track", 10 * time.Hour, 100, time.Hour},
		{"empty", 0, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TickStep(tt.span, tt.width))
		})
	}
}

func TestEditor_KeysAndSave(t *testing.T) {
	a, tl, player, _ := newHarness(t)

	var saved clips.Store
	e := NewEditor(zerolog.Nop(), a, tl, player, Options{
		Title: "Interview",
		Save: func(s clips.Store) error {
			saved = s
			return nil
		},
	})
	defer e.close()

	require.NoError(t, player.Seek(40*time.Second))
	e.typedKey(&fyne.KeyEvent{Name: fyne.KeyC})
	require.Equal(t, 2, tl.Store().Len())

	require.NoError(t, tl.Select(1))
	e.refresh()
	assert.Contains(t, e.status.Text, "2 clips")
	assert.Contains(t, e.status.Text, "Interview")

	e.typedKey(&fyne.KeyEvent{Name: fyne.KeyEscape})
	_, ok := tl.Store().Selected()
	assert.False(t, ok)

	e.save()
	assert.Equal(t, 2, saved.Len())
}

func TestEditor_PendingInsertShowsDialog(t *testing.T) {
	a, tl, player, _ := newHarness(t)
	e := NewEditor(zerolog.Nop(), a, tl, player, Options{})
	defer e.close()

	tl.BeginInsert(clips.InsertAfter)
	e.refresh()
	assert.True(t, e.inserting)
}
