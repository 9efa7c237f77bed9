package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kikiluvv/splice/internal/clips"
	"github.com/kikiluvv/splice/pkg/util"
	"gopkg.in/yaml.v3"
)

// ErrNoDuration is returned when the source reports no playable length
var ErrNoDuration = errors.New("source has no duration")

// Prober reports the length of a source
type Prober interface {
	Duration(ctx context.Context, sourceRef string) (time.Duration, error)
}

// Project is the persisted editing document for one source
type Project struct {
	ID        uuid.UUID     `yaml:"id"`
	Name      string        `yaml:"name"`
	Source    string        `yaml:"source"`
	Duration  time.Duration `yaml:"duration"`
	Clips     []clips.Clip  `yaml:"clips"`
	CreatedAt time.Time     `yaml:"created_at"`
	UpdatedAt time.Time     `yaml:"updated_at"`
}

// New probes sourceRef and seeds a project with one clip covering the whole
// source. The clip is named after name, or the file base name when empty.
func New(ctx context.Context, prober Prober, sourceRef, name string) (*Project, error) {
	if sourceRef == "" {
		return nil, fmt.Errorf("source cannot be empty")
	}

	d, err := prober.Duration(ctx, sourceRef)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", sourceRef, err)
	}
	if d <= 0 {
		return nil, ErrNoDuration
	}

	if name == "" {
		name = util.BaseName(sourceRef)
	}

	now := time.Now().UTC()
	p := &Project{
		ID:        uuid.New(),
		Name:      name,
		Source:    sourceRef,
		Duration:  d,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.SetStore(clips.New(name, sourceRef, d, clips.Limits{}))
	return p, nil
}

// Store rebuilds the clip store from the document
func (p *Project) Store(limits clips.Limits) clips.Store {
	return clips.Restore(p.Clips, p.Duration, limits)
}

// SetStore replaces the document clips with the store contents
func (p *Project) SetStore(s clips.Store) {
	p.Clips = s.Clips()
	p.UpdatedAt = time.Now().UTC()
}

// Load reads a project document
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %w", path, err)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return &p, nil
}

// Save writes the project document, creating parent directories
func (p *Project) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := util.EnsureDir(dir); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
