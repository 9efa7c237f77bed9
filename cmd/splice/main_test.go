package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiluvv/splice/internal/clips"
	"github.com/kikiluvv/splice/internal/project"
)

func writeProject(t *testing.T) string {
	t.Helper()
	p := &project.Project{
		ID:       uuid.New(),
		Name:     "talk",
		Source:   "talk.mp4",
		Duration: 60 * time.Second,
		Clips:    clips.New("talk", "talk.mp4", 60*time.Second, clips.Limits{}).Clips(),
	}
	path := filepath.Join(t.TempDir(), "talk.splice.yaml")
	require.NoError(t, p.Save(path))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestCommands_EditRoundTrip(t *testing.T) {
	path := writeProject(t)

	run(t, "cut", path, "20")
	p, err := project.Load(path)
	require.NoError(t, err)
	require.Len(t, p.Clips, 2)
	assert.Equal(t, 20*time.Second, p.Clips[0].End)

	out := run(t, "cut", path, "20")
	assert.Contains(t, out, "no change")

	run(t, "rename", path, "1", "Opening")
	run(t, "trim", path, "1", "2", "18")
	p, err = project.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Opening", p.Clips[0].Name)
	assert.Equal(t, 2*time.Second, p.Clips[0].Start)
	assert.Equal(t, 18*time.Second, p.Clips[0].End)

	out = run(t, "merge", path, "1")
	assert.Contains(t, out, "no change")

	out = run(t, "export", path)
	assert.Contains(t, out, "TITLE: talk")
	assert.Contains(t, out, "* FROM CLIP NAME:  Opening")
}

func TestCommands_Insert(t *testing.T) {
	path := writeProject(t)

	run(t, "insert", path, "after", "--name", "Outro")
	p, err := project.Load(path)
	require.NoError(t, err)
	require.Len(t, p.Clips, 2)
	assert.Equal(t, "Outro", p.Clips[1].Name)
	assert.Equal(t, "talk.mp4", p.Clips[1].SourceRef)
	assert.Equal(t, 60*time.Second, p.Clips[1].Start)
}

func TestParseID(t *testing.T) {
	id, err := parseID("7")
	require.NoError(t, err)
	assert.Equal(t, clips.ID(7), id)

	_, err = parseID("0")
	assert.Error(t, err)
	_, err = parseID("seven")
	assert.Error(t, err)
}

func TestCutAt(t *testing.T) {
	s := clips.New("a", "a.mp4", 30*time.Second, clips.Limits{})

	s, cuts := cutAt(s, []time.Duration{10 * time.Second, 10 * time.Second, 45 * time.Second, 20 * time.Second})
	assert.Equal(t, 2, cuts)
	assert.Equal(t, 3, s.Len())
}

func TestIsNoop(t *testing.T) {
	assert.True(t, isNoop(clips.ErrNoClipAtTime))
	assert.True(t, isNoop(clips.ErrNotAdjacent))
	assert.False(t, isNoop(nil))
	assert.False(t, isNoop(assert.AnError))
}
