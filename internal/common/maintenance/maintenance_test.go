package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshare-dashboard/internal/common/logger"
)

type fakePruner struct {
	calls  int32
	cutoff atomic.Value
	err    error
}

func (f *fakePruner) DeleteRunsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	atomic.AddInt32(&f.calls, 1)
	f.cutoff.Store(cutoff)
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

type fakeCache struct{ err error }

func (f fakeCache) Clear() (int, error) { return 3, f.err }

func TestPruneRuns(t *testing.T) {
	pruner := &fakePruner{}
	m := New(pruner, nil, logger.Nop())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	result := m.PruneRuns(context.Background(), 48*time.Hour)

	assert.True(t, result.Success)
	assert.Equal(t, EnrichmentRuns, result.Target)
	assert.Equal(t, int64(7), result.RecordsDeleted)
	assert.Equal(t, fixed.Add(-48*time.Hour), pruner.cutoff.Load())
}

func TestPruneRunsFailures(t *testing.T) {
	assert.False(t, New(nil, nil, logger.Nop()).PruneRuns(context.Background(), time.Hour).Success)
	assert.False(t, New(&fakePruner{}, nil, logger.Nop()).PruneRuns(context.Background(), 0).Success)

	result := New(&fakePruner{err: errors.New("db down")}, nil, logger.Nop()).PruneRuns(context.Background(), time.Hour)
	assert.False(t, result.Success)
	assert.Equal(t, "db down", result.Error)
}

func TestClearDetailCache(t *testing.T) {
	result := New(nil, fakeCache{}, logger.Nop()).ClearDetailCache()
	assert.True(t, result.Success)
	assert.Equal(t, int64(3), result.RecordsDeleted)

	assert.False(t, New(nil, fakeCache{err: errors.New("busy")}, logger.Nop()).ClearDetailCache().Success)
	assert.False(t, New(nil, nil, logger.Nop()).ClearDetailCache().Success)
}

func TestSchedulerRunsAndStops(t *testing.T) {
	pruner := &fakePruner{}
	s := NewCleanupScheduler(New(pruner, nil, logger.Nop()), logger.Nop(), SchedulerConfig{
		PruneInterval: 10 * time.Millisecond,
		RunRetention:  time.Hour,
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&pruner.calls) >= 2 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Equal(t, false, s.GetStatus()["is_running"])
}

func TestTriggerPruneUsesConfiguredRetention(t *testing.T) {
	pruner := &fakePruner{}
	m := New(pruner, nil, logger.Nop())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }
	s := NewCleanupScheduler(m, logger.Nop(), SchedulerConfig{PruneInterval: time.Hour, RunRetention: 72 * time.Hour})

	result := s.TriggerPrune(context.Background())

	assert.True(t, result.Success)
	assert.Equal(t, int32(1), atomic.LoadInt32(&pruner.calls))
	assert.Equal(t, fixed.Add(-72*time.Hour), pruner.cutoff.Load())
	assert.False(t, s.IsRunning())

	status := s.GetStatus()
	assert.Equal(t, "72h0m0s", status["run_retention"])
	assert.Equal(t, "1h0m0s", status["prune_interval"])
}
