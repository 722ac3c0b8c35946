package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"btcdash/pkg/watcher"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes the watcher's mirrored state over HTTP: a JSON status
// endpoint, a websocket event feed, and Prometheus metrics.
type Server struct {
	watcher *watcher.Watcher
	logger  *zap.Logger
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	mux     *http.ServeMux
}

func NewServer(w *watcher.Watcher, logger *zap.Logger) *Server {
	s := &Server{
		watcher: w,
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) Start(port int) error {
	go s.listenToWatcher()

	s.logger.Info("API server listening", zap.Int("port", port))
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.mux)
}

func (s *Server) statusPayload() map[string]interface{} {
	snap, lastUpdate, snapErr := s.watcher.Snapshot()
	heights, heightsErr := s.watcher.BlockHeights()
	prices, pricesErr := s.watcher.PriceHistory()

	data := map[string]interface{}{
		"snapshot":      snap,
		"block_heights": heights,
		"price_history": prices,
	}
	if !lastUpdate.IsZero() {
		data["last_update"] = lastUpdate
	}
	if snapErr != nil {
		data["snapshot_error"] = snapErr.Error()
	}
	if heightsErr != nil {
		data["block_heights_error"] = heightsErr.Error()
	}
	if pricesErr != nil {
		data["price_history_error"] = pricesErr.Error()
	}
	return data
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.statusPayload())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	// Send initial state
	initialData := map[string]interface{}{
		"type": "initial",
		"data": s.statusPayload(),
	}
	_ = conn.WriteJSON(initialData)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToWatcher() {
	sub := s.watcher.Subscribe()
	defer s.watcher.Unsubscribe(sub)

	for event := range sub {
		s.broadcast(event)
	}
}

func (s *Server) broadcast(event watcher.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			s.logger.Debug("dropping websocket client", zap.Error(err))
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}
