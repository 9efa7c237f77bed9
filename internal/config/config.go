package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/kikiluvv/splice/internal/clips"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	WorkDir     string `yaml:"work_dir"`
	ThumbsDir   string `yaml:"thumbs_dir"`
	Concurrency int    `yaml:"concurrency"`
	MetricsAddr string `yaml:"metrics_addr"`

	FFmpeg     FFmpegConfig    `yaml:"ffmpeg"`
	Timeline   TimelineConfig  `yaml:"timeline"`
	Thumbnails ThumbnailConfig `yaml:"thumbnails"`
	Cache      CacheConfig     `yaml:"cache"`
	Playback   PlaybackConfig  `yaml:"playback"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"ffprobe_path"`
	Threads    int    `yaml:"threads"`
}

// TimelineConfig carries the edit limits and pointer hit-testing settings
type TimelineConfig struct {
	InsertDuration     time.Duration `yaml:"insert_duration"`
	MinDuration        time.Duration `yaml:"min_duration"`
	AdjacencyTolerance time.Duration `yaml:"adjacency_tolerance"`
	CutEpsilon         time.Duration `yaml:"cut_epsilon"`
	EdgeHandlePx       float64       `yaml:"edge_handle_px"`
}

type ThumbnailConfig struct {
	Count        int  `yaml:"count"`
	Width        int  `yaml:"width"`
	Height       int  `yaml:"height"`
	Quality      int  `yaml:"quality"`
	AutoGenerate bool `yaml:"auto_generate"`
}

type CacheConfig struct {
	Backend   string        `yaml:"backend"` // memory, redis, none
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

type PlaybackConfig struct {
	ResyncThreshold time.Duration `yaml:"resync_threshold"`
	SkipStep        time.Duration `yaml:"skip_step"`
	TickInterval    time.Duration `yaml:"tick_interval"`
}

// Limits converts the timeline section into clip edit limits
func (t TimelineConfig) Limits() clips.Limits {
	return clips.Limits{
		InsertDuration:     t.InsertDuration,
		MinDuration:        t.MinDuration,
		AdjacencyTolerance: t.AdjacencyTolerance,
		CutEpsilon:         t.CutEpsilon,
	}
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Default returns the stock configuration
func Default() *Config {
	return &Config{
		WorkDir:     "./work",
		ThumbsDir:   "./work/thumbs",
		Concurrency: 1,
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
		},
		Timeline: TimelineConfig{
			InsertDuration:     clips.DefaultInsertDuration,
			MinDuration:        clips.DefaultMinDuration,
			AdjacencyTolerance: clips.DefaultAdjacencyTolerance,
			CutEpsilon:         clips.DefaultCutEpsilon,
			EdgeHandlePx:       6,
		},
		Thumbnails: ThumbnailConfig{
			Count:        10,
			Width:        160,
			Height:       90,
			Quality:      80,
			AutoGenerate: true,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
		},
		Playback: PlaybackConfig{
			ResyncThreshold: 500 * time.Millisecond,
			SkipStep:        10 * time.Second,
			TickInterval:    250 * time.Millisecond,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./splice.yaml",
		"./splice.yml",
		filepath.Join(os.Getenv("HOME"), ".splice", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
