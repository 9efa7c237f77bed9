package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewRedis(context.Background(), mr.Addr(), "", 0, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestFrameKey(t *testing.T) {
	a := FrameKey("file:///a.mp4", 1500*time.Millisecond, 160, 90)
	b := FrameKey("file:///b.mp4", 1500*time.Millisecond, 160, 90)

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, FrameKey("file:///a.mp4", 1500*time.Millisecond, 160, 90))
	assert.Contains(t, a, ":1500:160x90")
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	data := []byte{1, 2, 3}
	require.NoError(t, m.Set(ctx, "k", data))
	data[0] = 9

	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got, "Set must copy")
	assert.Equal(t, 1, m.Len())
}

func TestRedis_GetSet(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedis(t)

	_, ok, err := c.Get(ctx, "frame:x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "frame:x", []byte("jpeg")))
	got, ok, err := c.Get(ctx, "frame:x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("jpeg"), got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "frame:x")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire after ttl")
}

func TestRedis_ConnectFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), addr, "", 0, time.Minute)
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var c FrameCache = Nop{}
	require.NoError(t, c.Set(context.Background(), "k", []byte("x")))
	_, ok, _ := c.Get(context.Background(), "k")
	assert.False(t, ok)
}
