package thumbnails

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kikiluvv/splice/pkg/util"
)

// DirWriter stores frames as JPEG files in a directory
type DirWriter struct {
	Dir string
}

// NewDirWriter creates the directory if needed
func NewDirWriter(dir string) (*DirWriter, error) {
	if err := util.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail dir: %w", err)
	}
	return &DirWriter{Dir: dir}, nil
}

// Write stores data under a file name derived from key and returns its path.
// Existing files with the same key are reused.
func (w *DirWriter) Write(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := strings.NewReplacer(":", "_", "/", "_").Replace(key) + ".jpg"
	path := filepath.Join(w.Dir, name)
	if util.FileExists(path) {
		return path, nil
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write frame: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write frame: %w", err)
	}
	return path, nil
}
