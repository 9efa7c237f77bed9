package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/splice/internal/clips"
	"github.com/kikiluvv/splice/internal/logging"
	"github.com/kikiluvv/splice/internal/playback"
	"github.com/kikiluvv/splice/internal/timeline"
	"github.com/kikiluvv/splice/pkg/util"
)

// Options configures an Editor
type Options struct {
	Title string
	// Save persists the clip list. It runs on the Save button and when the
	// window closes.
	Save func(clips.Store) error
}

// Editor is the editing window: ruler, clip track, clip controls and the
// transport bar. It renders controller state and forwards input; every edit
// goes through the timeline controller.
type Editor struct {
	logger   zerolog.Logger
	win      fyne.Window
	timeline *timeline.Controller
	player   *playback.Controller
	opts     Options

	track     *TimelineView
	ruler     *RulerView
	transport *TransportBar
	status    *widget.Label

	inserting bool
	unsubs    []func()
}

// NewEditor builds the editor window on app a
func NewEditor(logger zerolog.Logger, a fyne.App, tl *timeline.Controller, player *playback.Controller, opts Options) *Editor {
	if opts.Title == "" {
		opts.Title = "splice"
	}

	e := &Editor{
		logger:   logging.WithComponent(logger, "editor"),
		win:      a.NewWindow(opts.Title),
		timeline: tl,
		player:   player,
		opts:     opts,
		track:    NewTimelineView(tl),
		ruler:    NewRulerView(tl),
		status:   widget.NewLabel(""),
	}
	e.transport = NewTransportBar(e.logger, player)

	e.win.Resize(fyne.NewSize(960, 360))
	e.win.SetContent(container.NewBorder(
		e.toolbar(),
		e.transport.Content(),
		nil, nil,
		container.NewVBox(e.ruler, e.track, e.status),
	))
	e.win.Canvas().SetOnTypedKey(e.typedKey)
	e.win.SetCloseIntercept(func() {
		e.save()
		e.close()
		e.win.Close()
	})

	e.unsubs = append(e.unsubs,
		tl.OnChange(func() { fyne.Do(e.refresh) }),
		player.Subscribe(func(t playback.Transport) {
			fyne.Do(func() {
				e.transport.Update(t)
				e.track.Refresh()
			})
		}),
	)
	e.refresh()
	return e
}

// Window returns the editor window
func (e *Editor) Window() fyne.Window {
	return e.win
}

// ShowAndRun shows the window and runs the app event loop
func (e *Editor) ShowAndRun() {
	e.win.ShowAndRun()
}

func (e *Editor) close() {
	for _, fn := range e.unsubs {
		fn()
	}
	e.unsubs = nil
}

func (e *Editor) toolbar() fyne.CanvasObject {
	return container.NewHBox(
		widget.NewButtonWithIcon("Cut", theme.ContentCutIcon(), func() {
			e.check("cut", e.timeline.CutAtPlayhead())
		}),
		widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), func() {
			e.check("delete", e.timeline.DeleteSelected())
		}),
		widget.NewButtonWithIcon("Merge", theme.ContentAddIcon(), func() {
			e.check("merge", e.timeline.MergeSelected())
		}),
		widget.NewButton("Insert After", func() {
			e.timeline.BeginInsert(clips.InsertAfter)
		}),
		widget.NewButton("Insert Here", func() {
			e.timeline.BeginInsert(clips.InsertBetween)
		}),
		widget.NewButtonWithIcon("Rename", theme.DocumentCreateIcon(), e.rename),
		widget.NewButtonWithIcon("Thumbnails", theme.ViewRefreshIcon(), func() {
			if id, ok := e.timeline.Store().Selected(); ok {
				e.check("thumbnails", e.timeline.RegenerateThumbnails(id))
				return
			}
			e.timeline.RefreshThumbnails()
		}),
		widget.NewButtonWithIcon("Save", theme.DocumentSaveIcon(), e.save),
	)
}

func (e *Editor) typedKey(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeySpace:
		e.check("toggle", e.player.Toggle())
	case fyne.KeyLeft:
		e.check("skip back", e.player.SkipBack())
	case fyne.KeyRight:
		e.check("skip forward", e.player.SkipForward())
	case fyne.KeyM:
		e.check("mute", e.player.ToggleMute())
	case fyne.KeyC:
		e.check("cut", e.timeline.CutAtPlayhead())
	case fyne.KeyDelete, fyne.KeyBackspace:
		e.check("delete", e.timeline.DeleteSelected())
	case fyne.KeyEscape:
		e.timeline.ClearSelection()
	}
}

// refresh redraws from controller state. It runs on the UI goroutine.
func (e *Editor) refresh() {
	e.track.Refresh()
	e.ruler.Refresh()
	e.status.SetText(e.describe())

	if p, ok := e.timeline.Pending(); ok {
		e.showInsert(p)
	}
}

func (e *Editor) describe() string {
	s := e.timeline.Store()
	text := fmt.Sprintf("%d clips", s.Len())
	id, ok := s.Selected()
	if !ok {
		return text
	}
	cl, _ := s.Get(id)
	text = fmt.Sprintf("%s | %s  %s - %s", text, cl.Name, util.FormatClock(cl.Start), util.FormatClock(cl.End))
	if pct, ok := e.timeline.Progress(id); ok {
		text += fmt.Sprintf("  thumbnails %.0f%%", pct)
	}
	return text
}

// showInsert asks for the new clip's name and source. Empty fields fall back
// to the controller defaults.
func (e *Editor) showInsert(p timeline.PendingInsert) {
	if e.inserting {
		return
	}
	e.inserting = true

	name := widget.NewEntry()
	name.SetPlaceHolder(fmt.Sprintf("Clip %d", e.timeline.Store().Len()+1))
	source := widget.NewEntry()
	source.SetPlaceHolder("same source as the surrounding clip")

	title := "Insert clip after playhead"
	if p.Position == clips.InsertBetween {
		title = "Insert clip at " + util.FormatClock(p.At)
	}

	items := []*widget.FormItem{
		widget.NewFormItem("Name", name),
		widget.NewFormItem("Source", source),
	}
	dialog.ShowForm(title, "Insert", "Cancel", items, func(ok bool) {
		e.inserting = false
		if !ok {
			e.timeline.CancelInsert()
			return
		}
		if _, err := e.timeline.ConfirmInsert(name.Text, source.Text); err != nil {
			e.check("insert", err)
		}
	}, e.win)
}

func (e *Editor) rename() {
	s := e.timeline.Store()
	id, ok := s.Selected()
	if !ok {
		return
	}
	cl, _ := s.Get(id)

	name := widget.NewEntry()
	name.SetText(cl.Name)
	dialog.ShowForm("Rename clip", "Rename", "Cancel", []*widget.FormItem{
		widget.NewFormItem("Name", name),
	}, func(ok bool) {
		if ok {
			e.check("rename", e.timeline.Rename(id, name.Text))
		}
	}, e.win)
}

func (e *Editor) save() {
	if e.opts.Save == nil {
		return
	}
	if err := e.opts.Save(e.timeline.Store()); err != nil {
		e.logger.Error().Err(err).Msg("failed to save project")
		dialog.ShowError(err, e.win)
		return
	}
	e.logger.Info().Msg("project saved")
}

// check logs edits the controller declined. No-op edits are not surfaced.
func (e *Editor) check(op string, err error) {
	if err != nil {
		e.logger.Debug().Err(err).Str("op", op).Msg("request ignored")
	}
}
