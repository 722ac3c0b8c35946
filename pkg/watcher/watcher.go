package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"btcdash/pkg/config"
	"btcdash/pkg/metrics"
	"btcdash/pkg/models"

	"go.uber.org/zap"
)

// DataSource defines the interface for fetching dashboard data.
// api.Client satisfies it.
type DataSource interface {
	LatestMetrics(ctx context.Context) (*models.BlockSnapshot, error)
	LatestBlocks(ctx context.Context) ([]int64, error)
	BlockByHeight(ctx context.Context, height int64) (*models.BlockSnapshot, error)
	MarketChart(ctx context.Context, days int) ([]models.PricePoint, error)
}

// Watcher runs the background fetch streams and mirrors the latest
// applied results for the web server. The metrics stream polls on the
// configured cadence; the block list and price history are fetched
// once at startup.
type Watcher struct {
	cfg    config.Config
	source DataSource
	logger *zap.Logger

	snapSeq atomic.Uint64

	mu          sync.RWMutex
	ctx         context.Context
	snapshot    *models.BlockSnapshot
	snapshotSeq uint64
	snapshotErr error
	lastUpdate  time.Time
	heights     []int64
	heightsErr  error
	prices      []models.PricePoint
	pricesErr   error
	subscribers []Subscriber

	stopChan chan struct{}
}

// NewWatcher creates a new Watcher instance.
func NewWatcher(cfg config.Config, source DataSource, logger *zap.Logger) *Watcher {
	return &Watcher{
		cfg:      cfg,
		source:   source,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (w *Watcher) Subscribe() Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(Subscriber, 100)
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (w *Watcher) Unsubscribe(ch Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, sub := range w.subscribers {
		if sub == ch {
			w.subscribers = append(w.subscribers[:i], w.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (w *Watcher) notify(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- event:
		default:
			// Slow subscribers drop events rather than stall the rest.
		}
	}
}

// Start begins the background fetch loops.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()
	go w.pollingLoop(ctx)
}

// Stop stops the background fetch loops.
func (w *Watcher) Stop() {
	close(w.stopChan)
}

func (w *Watcher) pollingLoop(ctx context.Context) {
	// Initial fetch for every stream.
	w.fetchSnapshot(ctx)
	w.fetchBlockList(ctx)
	w.fetchPriceHistory(ctx)

	ticker := time.NewTicker(w.cfg.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.fetchSnapshot(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Refresh starts an extra metrics fetch outside the regular cadence.
func (w *Watcher) Refresh() {
	w.mu.RLock()
	ctx := w.ctx
	w.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}
	w.fetchSnapshot(ctx)
}

// FetchDetail fetches the full snapshot for one block. It blocks until
// the backend answers, so callers run it from their own goroutine.
func (w *Watcher) FetchDetail(ctx context.Context, height int64) (*models.BlockSnapshot, error) {
	return w.source.BlockByHeight(ctx, height)
}

// fetchSnapshot starts one tagged metrics fetch. The poll ticker is
// never blocked by a slow backend; results resolving out of order are
// dropped by the sequence guard in applySnapshot.
func (w *Watcher) fetchSnapshot(ctx context.Context) {
	seq := w.snapSeq.Add(1)
	go func() {
		snap, err := w.source.LatestMetrics(ctx)
		res := models.SnapshotResult{Seq: seq, Snapshot: snap, FetchedAt: time.Now(), Err: err}
		if w.applySnapshot(res) {
			w.notify(Event{Type: EventSnapshotUpdated, Data: res})
		}
	}()
}

// applySnapshot folds one poll result into the mirrored state. It
// reports whether the result was applied; anything at or below the
// already-applied sequence is stale and dropped.
func (w *Watcher) applySnapshot(res models.SnapshotResult) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if res.Seq <= w.snapshotSeq {
		metrics.ObserveStaleDrop(metrics.StreamLatestMetrics)
		w.logger.Debug("dropping stale snapshot result",
			zap.Uint64("seq", res.Seq),
			zap.Uint64("applied_seq", w.snapshotSeq))
		return false
	}
	w.snapshotSeq = res.Seq
	w.lastUpdate = res.FetchedAt
	if res.Err != nil {
		// Keep the previous snapshot on screen; only the error changes.
		w.snapshotErr = res.Err
		w.logger.Warn("metrics poll failed", zap.Uint64("seq", res.Seq), zap.Error(res.Err))
		return true
	}
	w.snapshot = res.Snapshot
	w.snapshotErr = nil
	metrics.SetSnapshotHeight(res.Snapshot.Height)
	return true
}

func (w *Watcher) fetchBlockList(ctx context.Context) {
	go func() {
		heights, err := w.source.LatestBlocks(ctx)
		res := models.BlockListResult{Heights: heights, FetchedAt: time.Now(), Err: err}

		w.mu.Lock()
		if err != nil {
			w.heightsErr = err
		} else {
			w.heights = heights
			w.heightsErr = nil
		}
		w.mu.Unlock()

		if err != nil {
			w.logger.Warn("block list fetch failed", zap.Error(err))
		}
		w.notify(Event{Type: EventBlockListUpdated, Data: res})
	}()
}

func (w *Watcher) fetchPriceHistory(ctx context.Context) {
	go func() {
		points, err := w.source.MarketChart(ctx, w.cfg.PriceWindowDays)
		res := models.PriceHistoryResult{Points: points, FetchedAt: time.Now(), Err: err}

		w.mu.Lock()
		if err != nil {
			w.pricesErr = err
		} else {
			w.prices = points
			w.pricesErr = nil
		}
		w.mu.Unlock()

		if err != nil {
			w.logger.Warn("price history fetch failed", zap.Error(err))
		}
		w.notify(Event{Type: EventPriceHistoryUpdated, Data: res})
	}()
}

// Snapshot returns the last applied snapshot, when it was fetched, and
// the error from the most recent poll.
func (w *Watcher) Snapshot() (*models.BlockSnapshot, time.Time, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.snapshot == nil {
		return nil, w.lastUpdate, w.snapshotErr
	}
	cp := *w.snapshot
	return &cp, w.lastUpdate, w.snapshotErr
}

// BlockHeights returns the fetched recent block heights.
func (w *Watcher) BlockHeights() ([]int64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cp := make([]int64, len(w.heights))
	copy(cp, w.heights)
	return cp, w.heightsErr
}

// PriceHistory returns the fetched market price window.
func (w *Watcher) PriceHistory() ([]models.PricePoint, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cp := make([]models.PricePoint, len(w.prices))
	copy(cp, w.prices)
	return cp, w.pricesErr
}
