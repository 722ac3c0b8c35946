package watcher

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"btcdash/pkg/config"
	"btcdash/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) LatestMetrics(ctx context.Context) (*models.BlockSnapshot, error) {
	args := m.Called(ctx)
	if snap, ok := args.Get(0).(*models.BlockSnapshot); ok {
		return snap, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) LatestBlocks(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if heights, ok := args.Get(0).([]int64); ok {
		return heights, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) BlockByHeight(ctx context.Context, height int64) (*models.BlockSnapshot, error) {
	args := m.Called(ctx, height)
	if snap, ok := args.Get(0).(*models.BlockSnapshot); ok {
		return snap, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) MarketChart(ctx context.Context, days int) ([]models.PricePoint, error) {
	args := m.Called(ctx, days)
	if points, ok := args.Get(0).([]models.PricePoint); ok {
		return points, args.Error(1)
	}
	return nil, args.Error(1)
}

// stubSource is a DataSource with overridable behavior for tests that
// need to control call timing.
type stubSource struct {
	latestMetrics func(ctx context.Context) (*models.BlockSnapshot, error)
}

func (s *stubSource) LatestMetrics(ctx context.Context) (*models.BlockSnapshot, error) {
	if s.latestMetrics != nil {
		return s.latestMetrics(ctx)
	}
	return &models.BlockSnapshot{Height: 1}, nil
}

func (s *stubSource) LatestBlocks(context.Context) ([]int64, error) {
	return nil, nil
}

func (s *stubSource) BlockByHeight(context.Context, int64) (*models.BlockSnapshot, error) {
	return nil, nil
}

func (s *stubSource) MarketChart(context.Context, int) ([]models.PricePoint, error) {
	return nil, nil
}

func testConfig() config.Config {
	return config.Config{
		RefreshIntervalSeconds: 1,
		PriceWindowDays:        1,
		FiatDecimals:           2,
	}
}

func TestNewWatcher(t *testing.T) {
	w := NewWatcher(testConfig(), &stubSource{}, zap.NewNop())

	assert.NotNil(t, w)
	snap, _, err := w.Snapshot()
	assert.Nil(t, snap)
	assert.NoError(t, err)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	w := NewWatcher(testConfig(), &stubSource{}, zap.NewNop())
	sub := w.Subscribe()
	assert.NotNil(t, sub)

	w.mu.RLock()
	assert.Equal(t, 1, len(w.subscribers))
	w.mu.RUnlock()

	w.Unsubscribe(sub)
	w.mu.RLock()
	assert.Equal(t, 0, len(w.subscribers))
	w.mu.RUnlock()
}

func TestStart_FetchesAllStreams(t *testing.T) {
	mockDS := new(MockDataSource)
	mockDS.On("LatestMetrics", mock.Anything).Return(&models.BlockSnapshot{Height: 812345, MarketPrice: 67123.45}, nil)
	mockDS.On("LatestBlocks", mock.Anything).Return([]int64{812345, 812344}, nil)
	mockDS.On("MarketChart", mock.Anything, 1).Return([]models.PricePoint{{Price: 100}, {Price: 110}}, nil)

	w := NewWatcher(testConfig(), mockDS, zap.NewNop())
	sub := w.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	seen := map[EventType]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 3 {
		select {
		case ev := <-sub:
			seen[ev.Type] = true
		case <-timeout:
			t.Fatalf("Timed out waiting for events, saw %v", seen)
		}
	}

	mockDS.AssertExpectations(t)

	snap, _, err := w.Snapshot()
	assert.NoError(t, err)
	assert.Equal(t, int64(812345), snap.Height)

	heights, err := w.BlockHeights()
	assert.NoError(t, err)
	assert.Equal(t, []int64{812345, 812344}, heights)

	prices, err := w.PriceHistory()
	assert.NoError(t, err)
	assert.Len(t, prices, 2)
}

func TestStart_ToleratesZeroRefreshInterval(t *testing.T) {
	// A hand-edited config file can reach the watcher with a zero
	// interval; the polling loop must come up on the default cadence
	// instead of dying on ticker construction.
	cfg, err := config.LoadConfig(strings.NewReader(`{"api_base_url": "http://localhost:8080", "refresh_interval_seconds": 0}`))
	assert.NoError(t, err)

	var calls atomic.Int32
	src := &stubSource{
		latestMetrics: func(ctx context.Context) (*models.BlockSnapshot, error) {
			calls.Add(1)
			return &models.BlockSnapshot{Height: 812345}, nil
		},
	}

	w := NewWatcher(cfg, src, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 10*time.Millisecond)

	snap, _, err := w.Snapshot()
	assert.NoError(t, err)
	assert.Equal(t, int64(812345), snap.Height)
}

func TestApplySnapshot_DropsOutOfOrderResults(t *testing.T) {
	w := NewWatcher(testConfig(), &stubSource{}, zap.NewNop())

	applied := w.applySnapshot(models.SnapshotResult{
		Seq:       2,
		Snapshot:  &models.BlockSnapshot{Height: 812346},
		FetchedAt: time.Now(),
	})
	assert.True(t, applied)

	applied = w.applySnapshot(models.SnapshotResult{
		Seq:       1,
		Snapshot:  &models.BlockSnapshot{Height: 812345},
		FetchedAt: time.Now(),
	})
	assert.False(t, applied)

	snap, _, err := w.Snapshot()
	assert.NoError(t, err)
	assert.Equal(t, int64(812346), snap.Height)
}

func TestApplySnapshot_FailureKeepsLastGoodData(t *testing.T) {
	w := NewWatcher(testConfig(), &stubSource{}, zap.NewNop())

	w.applySnapshot(models.SnapshotResult{
		Seq:       1,
		Snapshot:  &models.BlockSnapshot{Height: 812345},
		FetchedAt: time.Now(),
	})
	w.applySnapshot(models.SnapshotResult{
		Seq:       2,
		Err:       errors.New("backend down"),
		FetchedAt: time.Now(),
	})

	snap, _, err := w.Snapshot()
	assert.Error(t, err)
	assert.NotNil(t, snap)
	assert.Equal(t, int64(812345), snap.Height)

	// A later success clears the error again.
	w.applySnapshot(models.SnapshotResult{
		Seq:       3,
		Snapshot:  &models.BlockSnapshot{Height: 812346},
		FetchedAt: time.Now(),
	})
	snap, _, err = w.Snapshot()
	assert.NoError(t, err)
	assert.Equal(t, int64(812346), snap.Height)
}

type gateKey struct{}

func TestSlowPollDoesNotClobberNewerResult(t *testing.T) {
	release := make(chan struct{})
	src := &stubSource{
		latestMetrics: func(ctx context.Context) (*models.BlockSnapshot, error) {
			if ctx.Value(gateKey{}) != nil {
				<-release
				return &models.BlockSnapshot{Height: 100}, nil
			}
			return &models.BlockSnapshot{Height: 200}, nil
		},
	}

	w := NewWatcher(testConfig(), src, zap.NewNop())
	sub := w.Subscribe()

	// seq 1 parks on the gate, seq 2 resolves immediately.
	slowCtx := context.WithValue(context.Background(), gateKey{}, true)
	w.fetchSnapshot(slowCtx)
	w.fetchSnapshot(context.Background())

	select {
	case ev := <-sub:
		res, ok := ev.Data.(models.SnapshotResult)
		assert.True(t, ok)
		assert.Equal(t, uint64(2), res.Seq)
		assert.Equal(t, int64(200), res.Snapshot.Height)
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for fast poll result")
	}

	close(release)

	select {
	case ev := <-sub:
		t.Fatalf("Stale result must not be broadcast, got %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}

	snap, _, err := w.Snapshot()
	assert.NoError(t, err)
	assert.Equal(t, int64(200), snap.Height)
}

func TestBlockListFailure(t *testing.T) {
	mockDS := new(MockDataSource)
	mockDS.On("LatestBlocks", mock.Anything).Return(nil, errors.New("connection refused"))

	w := NewWatcher(testConfig(), mockDS, zap.NewNop())
	sub := w.Subscribe()

	w.fetchBlockList(context.Background())

	select {
	case ev := <-sub:
		assert.Equal(t, EventBlockListUpdated, ev.Type)
		res, ok := ev.Data.(models.BlockListResult)
		assert.True(t, ok)
		assert.Error(t, res.Err)
		assert.Empty(t, res.Heights)
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for block list event")
	}

	heights, err := w.BlockHeights()
	assert.Error(t, err)
	assert.Empty(t, heights)
}

func TestRefresh_TriggersExtraPoll(t *testing.T) {
	var calls atomic.Int32
	src := &stubSource{
		latestMetrics: func(ctx context.Context) (*models.BlockSnapshot, error) {
			calls.Add(1)
			return &models.BlockSnapshot{Height: 812345}, nil
		},
	}

	cfg := testConfig()
	cfg.RefreshIntervalSeconds = 3600
	w := NewWatcher(cfg, src, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 10*time.Millisecond)

	w.Refresh()
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 10*time.Millisecond)
}

func TestFetchDetail(t *testing.T) {
	mockDS := new(MockDataSource)
	mockDS.On("BlockByHeight", mock.Anything, int64(812300)).Return(&models.BlockSnapshot{Height: 812300, Miner: "AntPool"}, nil)

	w := NewWatcher(testConfig(), mockDS, zap.NewNop())

	block, err := w.FetchDetail(context.Background(), 812300)
	assert.NoError(t, err)
	assert.Equal(t, int64(812300), block.Height)
	assert.Equal(t, "AntPool", block.Miner)
	mockDS.AssertExpectations(t)
}
