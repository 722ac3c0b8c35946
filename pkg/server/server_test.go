package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"btcdash/pkg/config"
	"btcdash/pkg/models"
	"btcdash/pkg/watcher"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fixedSource struct{}

func (fixedSource) LatestMetrics(context.Context) (*models.BlockSnapshot, error) {
	return &models.BlockSnapshot{Height: 812345, MarketPrice: 67123.45}, nil
}

func (fixedSource) LatestBlocks(context.Context) ([]int64, error) {
	return []int64{812345, 812344}, nil
}

func (fixedSource) BlockByHeight(context.Context, int64) (*models.BlockSnapshot, error) {
	return &models.BlockSnapshot{Height: 812300}, nil
}

func (fixedSource) MarketChart(context.Context, int) ([]models.PricePoint, error) {
	return []models.PricePoint{{Price: 100}, {Price: 110}}, nil
}

func testWatcher() *watcher.Watcher {
	cfg := config.Config{RefreshIntervalSeconds: 3600, PriceWindowDays: 1, FiatDecimals: 2}
	return watcher.NewWatcher(cfg, fixedSource{}, zap.NewNop())
}

func TestHandleStatus(t *testing.T) {
	s := NewServer(testWatcher(), zap.NewNop())

	req, _ := http.NewRequest("GET", "/api/status", nil)
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp map[string]interface{}
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Contains(t, resp, "snapshot")
	assert.Contains(t, resp, "block_heights")
	assert.Contains(t, resp, "price_history")
}

func TestHandleMetrics(t *testing.T) {
	s := NewServer(testWatcher(), zap.NewNop())

	req, _ := http.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "btcdash_watcher_snapshot_height")
}

func TestHandleWS(t *testing.T) {
	s := NewServer(testWatcher(), zap.NewNop())
	server := httptest.NewServer(s.mux)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	assert.NoError(t, err)
	defer func() { _ = ws.Close() }()

	// Read initial state
	var msg map[string]interface{}
	err = ws.ReadJSON(&msg)
	assert.NoError(t, err)
	assert.Equal(t, "initial", msg["type"])
}

func TestBroadcast(t *testing.T) {
	w := testWatcher()
	s := NewServer(w, zap.NewNop())
	go s.listenToWatcher()

	server := httptest.NewServer(s.mux)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	assert.NoError(t, err)
	defer func() { _ = ws.Close() }()

	var initial map[string]interface{}
	assert.NoError(t, ws.ReadJSON(&initial))

	// Give the listener goroutine time to subscribe before events fire.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	deadline := time.Now().Add(2 * time.Second)
	seen := map[string]bool{}
	for time.Now().Before(deadline) && len(seen) < 3 {
		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev map[string]interface{}
		if err := ws.ReadJSON(&ev); err != nil {
			break
		}
		if typ, ok := ev["type"].(string); ok {
			seen[typ] = true
		}
	}

	assert.True(t, seen[string(watcher.EventSnapshotUpdated)], "missing snapshot event, saw %v", seen)
	assert.True(t, seen[string(watcher.EventBlockListUpdated)], "missing block list event, saw %v", seen)
	assert.True(t, seen[string(watcher.EventPriceHistoryUpdated)], "missing price history event, saw %v", seen)
}
