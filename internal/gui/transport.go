package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/splice/internal/playback"
	"github.com/kikiluvv/splice/pkg/util"
)

// TransportBar holds the play, seek, skip and volume controls
type TransportBar struct {
	logger zerolog.Logger
	player *playback.Controller

	play     *widget.Button
	mute     *widget.Button
	retry    *widget.Button
	position *widget.Slider
	volume   *widget.Slider
	clock    *widget.Label
	status   *widget.Label

	content fyne.CanvasObject
}

// NewTransportBar builds the controls for player. Call Update on the UI
// goroutine with each new snapshot.
func NewTransportBar(logger zerolog.Logger, player *playback.Controller) *TransportBar {
	b := &TransportBar{logger: logger, player: player}

	b.play = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() {
		b.check("toggle", player.Toggle())
	})
	back := widget.NewButtonWithIcon("", theme.MediaFastRewindIcon(), func() {
		b.check("skip back", player.SkipBack())
	})
	forward := widget.NewButtonWithIcon("", theme.MediaFastForwardIcon(), func() {
		b.check("skip forward", player.SkipForward())
	})
	b.mute = widget.NewButtonWithIcon("", theme.VolumeUpIcon(), func() {
		b.check("mute", player.ToggleMute())
	})
	b.retry = widget.NewButtonWithIcon("Retry", theme.ViewRefreshIcon(), func() {
		b.check("retry", player.Retry())
	})
	b.retry.Hide()

	b.position = widget.NewSlider(0, 1)
	b.position.Step = 0.001
	b.position.OnChangeEnded = func(f float64) {
		b.check("seek", player.SeekFraction(f))
	}

	b.volume = widget.NewSlider(0, 100)
	b.volume.SetValue(player.Snapshot().Volume * 100)
	b.volume.OnChanged = func(v float64) {
		b.check("volume", player.SetVolumePercent(int(v)))
	}

	b.clock = widget.NewLabel(util.FormatClock(0))
	b.status = widget.NewLabel("")

	volume := container.NewGridWrap(fyne.NewSize(120, b.volume.MinSize().Height), b.volume)
	b.content = container.NewBorder(nil, nil,
		container.NewHBox(back, b.play, forward, b.clock),
		container.NewHBox(b.status, b.retry, b.mute, volume),
		b.position,
	)
	b.Update(player.Snapshot())
	return b
}

// Content returns the bar's canvas object
func (b *TransportBar) Content() fyne.CanvasObject {
	return b.content
}

// Update reflects a transport snapshot
func (b *TransportBar) Update(t playback.Transport) {
	if t.Playing {
		b.play.SetIcon(theme.MediaPauseIcon())
	} else {
		b.play.SetIcon(theme.MediaPlayIcon())
	}
	if t.Muted {
		b.mute.SetIcon(theme.VolumeMuteIcon())
	} else {
		b.mute.SetIcon(theme.VolumeUpIcon())
	}

	b.clock.SetText(fmt.Sprintf("%s / %s", util.FormatClock(t.CurrentTime), util.FormatClock(t.Duration)))
	b.position.Value = t.Fraction()
	b.position.Refresh()

	switch t.State {
	case playback.StateError:
		b.status.SetText(fmt.Sprintf("playback error: %v", t.Err))
		b.retry.Show()
	case playback.StateIdle:
		b.status.SetText("loading")
		b.retry.Hide()
	default:
		b.status.SetText("")
		b.retry.Hide()
	}
}

func (b *TransportBar) check(op string, err error) {
	if err != nil {
		b.logger.Debug().Err(err).Str("op", op).Msg("transport request ignored")
	}
}
