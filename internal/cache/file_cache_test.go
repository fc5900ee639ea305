package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/terralens/terralens-mosaic-poc/internal/cache"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestSetGetRoundtrip(t *testing.T) {
	t.Setenv("ROOT_PATH", t.TempDir())
	fc := cache.NewFileCacheTTL[payload]("test", time.Hour)

	key := fc.GenerateKey("region", 2021)
	require.NoError(t, fc.Set(key, payload{Name: "nairobi", Score: 0.92}))

	got, ok := fc.Get(key)
	require.True(t, ok)
	require.Equal(t, "nairobi", got.Name)
	require.Equal(t, 0.92, got.Score)
}

func TestGetMissingKey(t *testing.T) {
	t.Setenv("ROOT_PATH", t.TempDir())
	fc := cache.NewFileCacheTTL[payload]("test", time.Hour)

	_, ok := fc.Get("does-not-exist")
	require.False(t, ok)
}

func TestExpiredEntryIsMiss(t *testing.T) {
	t.Setenv("ROOT_PATH", t.TempDir())
	fc := cache.NewFileCacheTTL[payload]("test", time.Nanosecond)

	key := fc.GenerateKey("region")
	require.NoError(t, fc.Set(key, payload{Name: "stale"}))
	time.Sleep(time.Millisecond)

	_, ok := fc.Get(key)
	require.False(t, ok)
}

func TestGenerateKeyIsStable(t *testing.T) {
	t.Setenv("ROOT_PATH", t.TempDir())
	fc := cache.NewFileCacheTTL[payload]("test", time.Hour)

	require.Equal(t, fc.GenerateKey("a", 1), fc.GenerateKey("a", 1))
	require.NotEqual(t, fc.GenerateKey("a", 1), fc.GenerateKey("a", 2))
}
