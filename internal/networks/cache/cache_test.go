package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshare-dashboard/internal/common/logger"
	"github.com/bikeshare-dashboard/pkg/networks/models"
)

func sampleDetail(id string) models.NetworkDetail {
	return models.NetworkDetail{
		NetworkID: id,
		Stations: []models.StationRecord{
			{FreeBikes: 3, EmptySlots: 2},
			{FreeBikes: 0, EmptySlots: 5},
		},
	}
}

func newTestCache(t *testing.T, dir string, ttl time.Duration) *DetailCache {
	t.Helper()
	c, err := New(dir, ttl, logger.Nop())
	require.NoError(t, err)
	return c
}

func TestPutThenGetFromMemory(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 0)

	c.Put("a", sampleDetail("a"))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, sampleDetail("a"), got)
}

func TestGetSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	newTestCache(t, dir, 0).Put("velib", sampleDetail("velib"))

	restarted := newTestCache(t, dir, 0)
	got, ok := restarted.Get("velib")
	require.True(t, ok)
	assert.Equal(t, sampleDetail("velib"), got)

	// promoted to memory: still served after the file disappears
	require.NoError(t, os.Remove(restarted.Path("velib")))
	_, ok = restarted.Get("velib")
	assert.True(t, ok)
}

func TestGetMissingEntry(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 0)

	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestCorruptedFileIsMiss(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 0)
	require.NoError(t, os.WriteFile(c.Path("broken"), []byte("{not json"), 0o644))

	got, ok := c.Get("broken")
	assert.False(t, ok)
	assert.Empty(t, got.Stations)
}

func TestEntryForDifferentIDIsMiss(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 0)
	c.Put("a", sampleDetail("a"))

	b, err := os.ReadFile(c.Path("a"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.Path("b"), b, 0o644))

	fresh := newTestCache(t, c.Dir(), 0)
	_, ok := fresh.Get("b")
	assert.False(t, ok)
}

func TestPathIsFlatAndDistinct(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 0)

	ids := []string{"a", "A", "../etc/passwd", "a/b", "a_b", ""}
	seen := map[string]string{}
	for _, id := range ids {
		p := c.Path(id)
		assert.Equal(t, c.Dir(), filepath.Dir(p), "id %q escaped the cache dir", id)
		if other, dup := seen[p]; dup {
			t.Fatalf("ids %q and %q share %s", id, other, p)
		}
		seen[p] = id
	}
}

func TestDiskWriteFailureIsSwallowed(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := newTestCache(t, dir, 0)
	require.NoError(t, os.RemoveAll(dir))

	c.Put("a", sampleDetail("a"))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, sampleDetail("a"), got)
}

func TestExpiredDiskEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	writer := newTestCache(t, dir, time.Hour)
	writer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	writer.Put("old", sampleDetail("old"))

	reader := newTestCache(t, dir, time.Hour)
	_, ok := reader.Get("old")
	assert.False(t, ok)

	forever := newTestCache(t, dir, 0)
	_, ok = forever.Get("old")
	assert.True(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 0)
	c.Put("a", sampleDetail("a"))

	got, _ := c.Get("a")
	got.Stations[0].FreeBikes = 99

	again, _ := c.Get("a")
	assert.Equal(t, models.Count(3), again.Stations[0].FreeBikes)
}

func TestConcurrentAccess(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 0)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("net-%d", i%4)
			c.Put(id, sampleDetail(id))
			got, ok := c.Get(id)
			if assert.True(t, ok) {
				assert.Len(t, got.Stations, 2)
			}
		}(i)
	}
	wg.Wait()

	fresh := newTestCache(t, c.Dir(), 0)
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("net-%d", i)
		got, ok := fresh.Get(id)
		require.True(t, ok, id)
		assert.Equal(t, sampleDetail(id), got)
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 0)
	c.Put("a", sampleDetail("a"))
	c.Put("b", sampleDetail("b"))

	removed, err := c.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok := c.Get("a")
	assert.False(t, ok)
}
