package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kikiluvv/splice/internal/clips"
	"github.com/kikiluvv/splice/internal/config"
	"github.com/kikiluvv/splice/internal/project"
	"github.com/kikiluvv/splice/pkg/util"
)

var listCmd = &cobra.Command{
	Use:   "list [project]",
	Short: "List the clips of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		p, err := project.Load(args[0])
		if err != nil {
			return err
		}
		s := p.Store(cfg.Timeline.Limits())

		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s)\n", p.Name, p.Source, util.FormatDuration(p.Duration))
		printClips(cmd.OutOrStdout(), s)
		return nil
	},
}

var cutCmd = &cobra.Command{
	Use:   "cut [project] [time]",
	Short: "Split the clip under a timestamp in two",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := util.ParseTimestamp(args[1])
		if err != nil {
			return err
		}
		return editProject(cmd, args[0], "cut", func(s clips.Store) (clips.Store, error) {
			return s.Cut(t)
		})
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge [project] [clip id]",
	Short: "Merge a clip with the clip right after it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return editProject(cmd, args[0], "merge", func(s clips.Store) (clips.Store, error) {
			return s.MergeWithNext(id)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [project] [clip id]",
	Short: "Remove a clip, leaving a gap",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return editProject(cmd, args[0], "delete", func(s clips.Store) (clips.Store, error) {
			return s.Delete(id)
		})
	},
}

var trimCmd = &cobra.Command{
	Use:   "trim [project] [clip id] [start] [end]",
	Short: "Set both bounds of a clip",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		start, err := util.ParseTimestamp(args[2])
		if err != nil {
			return err
		}
		end, err := util.ParseTimestamp(args[3])
		if err != nil {
			return err
		}
		return editProject(cmd, args[0], "trim", func(s clips.Store) (clips.Store, error) {
			return s.Trim(id, start, end)
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename [project] [clip id] [name]",
	Short: "Rename a clip",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return editProject(cmd, args[0], "rename", func(s clips.Store) (clips.Store, error) {
			return s.Rename(id, args[2])
		})
	},
}

var (
	insertAt     string
	insertName   string
	insertSource string
)

var insertCmd = &cobra.Command{
	Use:   "insert [project] [after|between]",
	Short: "Insert a new clip after the last clip or at a timestamp",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos := clips.InsertPosition(args[1])
		if pos != clips.InsertAfter && pos != clips.InsertBetween {
			return fmt.Errorf("insert position must be %q or %q", clips.InsertAfter, clips.InsertBetween)
		}

		var at time.Duration
		if insertAt != "" {
			var err error
			if at, err = util.ParseTimestamp(insertAt); err != nil {
				return err
			}
		}

		return editProject(cmd, args[0], "insert", func(s clips.Store) (clips.Store, error) {
			name := insertName
			if name == "" {
				name = fmt.Sprintf("Clip %d", s.Len()+1)
			}
			source := insertSource
			if source == "" {
				source = sourceAt(s, at)
			}
			next, _, err := s.Insert(pos, name, source, at)
			return next, err
		})
	},
}

// sourceAt picks the source of the clip under t, or of the first clip
func sourceAt(s clips.Store, t time.Duration) string {
	if cl, ok := s.ClipAt(t); ok {
		return cl.SourceRef
	}
	if all := s.Clips(); len(all) > 0 {
		return all[0].SourceRef
	}
	return ""
}

func init() {
	insertCmd.Flags().StringVar(&insertAt, "at", "", "playhead position (HH:MM:SS.mmm, MM:SS or seconds)")
	insertCmd.Flags().StringVar(&insertName, "name", "", "clip name (default: Clip N)")
	insertCmd.Flags().StringVar(&insertSource, "source", "", "source reference (default: source at the insert point)")
}
