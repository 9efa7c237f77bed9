package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// FrameCache stores encoded thumbnail frames keyed by FrameKey
type FrameCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
	Close() error
}

// FrameKey identifies a frame of sourceRef at offset scaled to width x height
func FrameKey(sourceRef string, offset time.Duration, width, height int) string {
	sum := sha1.Sum([]byte(sourceRef))
	return fmt.Sprintf("frame:%s:%d:%dx%d", hex.EncodeToString(sum[:8]), offset.Milliseconds(), width, height)
}

// Memory is an in-process FrameCache
type Memory struct {
	mu     sync.RWMutex
	frames map[string][]byte
}

// NewMemory creates an empty in-process cache
func NewMemory() *Memory {
	return &Memory{frames: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.frames[key]
	return data, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.frames[key] = buf
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Len returns the number of cached frames
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.frames)
}

// Nop never caches anything
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error         { return nil }
func (Nop) Close() error                                      { return nil }
