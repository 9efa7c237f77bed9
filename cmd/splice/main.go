package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kikiluvv/splice/internal/cache"
	"github.com/kikiluvv/splice/internal/clips"
	"github.com/kikiluvv/splice/internal/config"
	"github.com/kikiluvv/splice/internal/ffmpeg"
	"github.com/kikiluvv/splice/internal/logging"
	"github.com/kikiluvv/splice/internal/project"
	"github.com/kikiluvv/splice/internal/thumbnails"
	"github.com/kikiluvv/splice/pkg/util"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "splice",
	Short: "splice - clip-based timeline editor",
	Long:  "Cut, merge, trim and reorder clips of a source video, preview them with thumbnails and export the edit decision list.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./splice.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(initCmd, listCmd, cutCmd, mergeCmd, deleteCmd, trimCmd, renameCmd, insertCmd)
	rootCmd.AddCommand(thumbsCmd, autocutCmd, exportCmd, editCmd)
}

// editProject loads a project, applies one edit and saves it. Edits the
// store declines are reported as "no change" and leave the file untouched.
func editProject(cmd *cobra.Command, path, op string, edit func(clips.Store) (clips.Store, error)) error {
	cfg := config.FromContext(cmd.Context())

	p, err := project.Load(path)
	if err != nil {
		return err
	}

	next, err := edit(p.Store(cfg.Timeline.Limits()))
	if isNoop(err) {
		log.Debug().Err(err).Str("op", op).Msg("edit ignored")
		fmt.Fprintf(cmd.OutOrStdout(), "no change: %v\n", err)
		return nil
	}
	if err != nil {
		return err
	}

	p.SetStore(next)
	if err := p.Save(path); err != nil {
		return err
	}
	log.Info().Str("op", op).Str("project", path).Int("clips", next.Len()).Msg("edit applied")
	printClips(cmd.OutOrStdout(), next)
	return nil
}

func isNoop(err error) bool {
	for _, target := range []error{
		clips.ErrNotFound,
		clips.ErrNoClipAtTime,
		clips.ErrAtBoundary,
		clips.ErrNotAdjacent,
		clips.ErrInvalidRange,
		clips.ErrNoSelection,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func printClips(w io.Writer, s clips.Store) {
	sel, _ := s.Selected()
	for _, cl := range s.Clips() {
		mark := " "
		if cl.ID == sel {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %3d  %-24s %s - %s  %s  thumbs:%s\n",
			mark, cl.ID, cl.Name,
			util.FormatDuration(cl.Start), util.FormatDuration(cl.End),
			cl.SourceRef, cl.ThumbnailState)
	}
}

func parseID(s string) (clips.ID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid clip id %q", s)
	}
	return clips.ID(id), nil
}

// newFrameCache opens the configured thumbnail frame cache
func newFrameCache(ctx context.Context, cfg config.CacheConfig) (cache.FrameCache, error) {
	switch cfg.Backend {
	case "", "memory":
		return cache.NewMemory(), nil
	case "redis":
		r, err := cache.NewRedis(ctx, cfg.RedisAddr, os.Getenv("SPLICE_REDIS_PASSWORD"), cfg.RedisDB, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "none":
		return cache.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// newPipeline builds the ffmpeg-backed thumbnail pipeline. The caller closes
// both the pipeline and the frame cache.
func newPipeline(ctx context.Context, cfg *config.Config, exec *ffmpeg.Executor) (*thumbnails.Pipeline, cache.FrameCache, error) {
	fc, err := newFrameCache(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open frame cache: %w", err)
	}

	frames, err := thumbnails.NewDirWriter(cfg.ThumbsDir)
	if err != nil {
		fc.Close()
		return nil, nil, err
	}

	opener := ffmpeg.NewFrameOpener(exec, cfg.Thumbnails.Width, cfg.Thumbnails.Height)
	pipe, err := thumbnails.New(log.Logger, opener, thumbnails.Options{
		Count:       cfg.Thumbnails.Count,
		Width:       cfg.Thumbnails.Width,
		Height:      cfg.Thumbnails.Height,
		Quality:     cfg.Thumbnails.Quality,
		MaxSessions: cfg.Concurrency,
		Cache:       fc,
		Frames:      frames,
	})
	if err != nil {
		fc.Close()
		return nil, nil, err
	}
	return pipe, fc, nil
}
