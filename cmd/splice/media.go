package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kikiluvv/splice/internal/clips"
	"github.com/kikiluvv/splice/internal/config"
	"github.com/kikiluvv/splice/internal/export"
	"github.com/kikiluvv/splice/internal/ffmpeg"
	"github.com/kikiluvv/splice/internal/project"
	"github.com/kikiluvv/splice/internal/timeline"
	"github.com/kikiluvv/splice/pkg/util"
)

var (
	initOut  string
	initName string
)

var initCmd = &cobra.Command{
	Use:   "init [source video]",
	Short: "Create a project holding one clip that covers the whole source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		exec, err := ffmpeg.New(log.Logger, cfg.FFmpeg)
		if err != nil {
			return fmt.Errorf("failed to initialize ffmpeg: %w", err)
		}

		p, err := project.New(cmd.Context(), exec, args[0], initName)
		if err != nil {
			return err
		}

		out := initOut
		if out == "" {
			out = util.BaseName(args[0]) + ".splice.yaml"
		}
		if err := p.Save(out); err != nil {
			return err
		}

		log.Info().
			Str("project", out).
			Str("id", p.ID.String()).
			Dur("duration", p.Duration).
			Msg("project created")
		printClips(cmd.OutOrStdout(), p.Store(cfg.Timeline.Limits()))
		return nil
	},
}

var thumbsForce bool

var thumbsCmd = &cobra.Command{
	Use:   "thumbs [project]",
	Short: "Generate preview thumbnails for every clip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		p, err := project.Load(args[0])
		if err != nil {
			return err
		}

		exec, err := ffmpeg.New(log.Logger, cfg.FFmpeg)
		if err != nil {
			return fmt.Errorf("failed to initialize ffmpeg: %w", err)
		}
		pipe, fc, err := newPipeline(ctx, cfg, exec)
		if err != nil {
			return err
		}
		defer fc.Close()
		defer pipe.Close()

		tl := timeline.New(log.Logger, p.Store(cfg.Timeline.Limits()), pipe, nil, timeline.Options{
			ThumbnailCount: cfg.Thumbnails.Count,
		})
		defer tl.Close()

		go func() {
			<-ctx.Done()
			tl.Close()
		}()

		start := time.Now()
		if thumbsForce {
			for _, cl := range tl.Store().Clips() {
				if err := tl.RegenerateThumbnails(cl.ID); err != nil {
					return err
				}
			}
		} else {
			tl.RefreshThumbnails()
		}
		pipe.Wait()

		s := tl.Store()
		ready := 0
		for _, cl := range s.Clips() {
			if cl.ThumbnailState == clips.Ready {
				ready++
			}
		}

		p.SetStore(s)
		if err := p.Save(args[0]); err != nil {
			return err
		}

		log.Info().
			Int("ready", ready).
			Int("clips", s.Len()).
			Dur("elapsed", time.Since(start)).
			Msg("thumbnails generated")
		printClips(cmd.OutOrStdout(), s)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	},
}

var (
	autocutThreshold float64
	autocutMinGap    time.Duration
)

var autocutCmd = &cobra.Command{
	Use:   "autocut [project]",
	Short: "Cut clips at detected scene changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		p, err := project.Load(args[0])
		if err != nil {
			return err
		}

		exec, err := ffmpeg.New(log.Logger, cfg.FFmpeg)
		if err != nil {
			return fmt.Errorf("failed to initialize ffmpeg: %w", err)
		}

		scenes, err := exec.DetectScenes(cmd.Context(), p.Source, autocutThreshold, autocutMinGap)
		if err != nil {
			return err
		}

		s, cuts := cutAt(p.Store(cfg.Timeline.Limits()), scenes)
		if cuts == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no change: no scene changes inside clips")
			return nil
		}

		p.SetStore(s)
		if err := p.Save(args[0]); err != nil {
			return err
		}
		log.Info().Int("scenes", len(scenes)).Int("cuts", cuts).Msg("autocut applied")
		printClips(cmd.OutOrStdout(), s)
		return nil
	},
}

// cutAt applies a cut at each time, skipping the ones the store declines
func cutAt(s clips.Store, times []time.Duration) (clips.Store, int) {
	cuts := 0
	for _, t := range times {
		next, err := s.Cut(t)
		if err != nil {
			log.Debug().Err(err).Dur("time", t).Msg("scene cut skipped")
			continue
		}
		s = next
		cuts++
	}
	return s, cuts
}

var (
	exportOut string
	exportFPS float64
)

var exportCmd = &cobra.Command{
	Use:   "export [project]",
	Short: "Write the clip list as a CMX3600 EDL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		p, err := project.Load(args[0])
		if err != nil {
			return err
		}
		list := p.Store(cfg.Timeline.Limits()).Clips()

		if exportOut == "" {
			fmt.Fprint(cmd.OutOrStdout(), export.GenerateEDL(list, p.Name, exportFPS))
			return nil
		}
		if err := export.WriteEDL(exportOut, list, p.Name, exportFPS); err != nil {
			return err
		}
		log.Info().Str("output", exportOut).Int("events", len(list)).Msg("edl written")
		return nil
	},
}

func init() {
	initCmd.Flags().StringVarP(&initOut, "output", "o", "", "project file (default: <source>.splice.yaml)")
	initCmd.Flags().StringVar(&initName, "name", "", "display name of the first clip (default: source file name)")

	thumbsCmd.Flags().BoolVar(&thumbsForce, "force", false, "regenerate thumbnails that are already ready")

	autocutCmd.Flags().Float64Var(&autocutThreshold, "threshold", 0.4, "scene change threshold (0-1)")
	autocutCmd.Flags().DurationVar(&autocutMinGap, "min-gap", 2*time.Second, "minimum distance between cuts")

	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "EDL file (default: stdout)")
	exportCmd.Flags().Float64Var(&exportFPS, "fps", 30, "timecode frame rate")
}
