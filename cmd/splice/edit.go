package main

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2/app"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kikiluvv/splice/internal/clips"
	"github.com/kikiluvv/splice/internal/config"
	"github.com/kikiluvv/splice/internal/ffmpeg"
	"github.com/kikiluvv/splice/internal/gui"
	"github.com/kikiluvv/splice/internal/metrics"
	"github.com/kikiluvv/splice/internal/playback"
	"github.com/kikiluvv/splice/internal/project"
	"github.com/kikiluvv/splice/internal/timeline"
)

var editMetricsAddr string

var editCmd = &cobra.Command{
	Use:   "edit [project]",
	Short: "Open a project in the timeline editor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		path := args[0]

		p, err := project.Load(path)
		if err != nil {
			return err
		}

		addr := editMetricsAddr
		if addr == "" {
			addr = cfg.MetricsAddr
		}
		if addr != "" {
			srv := metrics.NewServer(log.Logger, addr)
			go func() {
				if err := srv.Start(); err != nil {
					log.Error().Err(err).Msg("metrics server stopped")
				}
			}()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
		}

		exec, err := ffmpeg.New(log.Logger, cfg.FFmpeg)
		if err != nil {
			return fmt.Errorf("failed to initialize ffmpeg: %w", err)
		}
		pipe, fc, err := newPipeline(cmd.Context(), cfg, exec)
		if err != nil {
			return err
		}
		defer fc.Close()
		defer pipe.Close()

		sess := playback.NewClockSession(p.Duration, cfg.Playback.TickInterval)
		defer sess.Close()
		player := playback.NewController(log.Logger, sess, playback.Options{
			ResyncThreshold: cfg.Playback.ResyncThreshold,
			SkipStep:        cfg.Playback.SkipStep,
		})
		defer player.Close()
		sess.Load()

		tl := timeline.New(log.Logger, p.Store(cfg.Timeline.Limits()), pipe, player, timeline.Options{
			EdgeHandlePx:   cfg.Timeline.EdgeHandlePx,
			ThumbnailCount: cfg.Thumbnails.Count,
			AutoThumbnails: cfg.Thumbnails.AutoGenerate,
		})
		defer tl.Close()

		a := app.NewWithID("io.kikiluvv.splice")
		ed := gui.NewEditor(log.Logger, a, tl, player, gui.Options{
			Title: fmt.Sprintf("splice - %s", p.Name),
			Save: func(s clips.Store) error {
				p.SetStore(s)
				return p.Save(path)
			},
		})

		if cfg.Thumbnails.AutoGenerate {
			tl.RefreshThumbnails()
		}

		log.Info().Str("project", path).Int("clips", len(p.Clips)).Msg("editor opened")
		ed.ShowAndRun()
		return nil
	},
}

func init() {
	editCmd.Flags().StringVar(&editMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
}
