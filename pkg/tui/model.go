package tui

import (
	"time"

	"btcdash/pkg/chart"
	"btcdash/pkg/config"
	"btcdash/pkg/models"
	"btcdash/pkg/watcher"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// Version is set by Start()
var Version = "dev"

const toastDuration = 2 * time.Second

// --- Messages ---

// toastClearMsg carries the toast sequence it was scheduled for, so a
// reschedule invalidates timers still in flight.
type toastClearMsg struct{ seq uint64 }
type uiTickMsg time.Time

// fetchState tracks where one data stream is in its lifecycle.
type fetchState int

const (
	stateIdle fetchState = iota
	stateLoading
	stateReady
	stateFailed
)

// --- Model ---

type model struct {
	cfg     config.Config
	watcher *watcher.Watcher
	sub     watcher.Subscriber
	logger  *zap.Logger

	width  int
	height int

	spinner spinner.Model

	// Chain metrics stream, refreshed every poll tick.
	snapshot      *models.BlockSnapshot
	snapshotSeq   uint64
	snapshotState fetchState
	snapshotErr   error
	lastUpdate    time.Time

	// Recent block heights, fetched once at startup.
	heights     []int64
	blocksState fetchState
	listIdx     int

	// Price history, fetched once at startup.
	series     chart.Series
	chartState fetchState

	// Block detail overlay.
	showDetail   bool
	detailSeq    uint64
	detailState  fetchState
	detailHeight int64
	detail       *models.BlockSnapshot
	detailErr    error
	viewport     viewport.Model

	// Toast shown above the footer.
	statusMessage string
	toastSeq      uint64

	showHelp bool
}

func initialModel(w *watcher.Watcher, cfg config.Config, logger *zap.Logger) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(0, 0)

	return model{
		cfg:           cfg,
		watcher:       w,
		sub:           w.Subscribe(),
		logger:        logger,
		spinner:       s,
		snapshotState: stateLoading,
		blocksState:   stateLoading,
		chartState:    stateLoading,
		detailState:   stateIdle,
		viewport:      vp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		listenForWatcher(m.sub),
		m.spinner.Tick,
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }),
	)
}

// loadingAny reports whether any stream still has a fetch in flight.
func (m model) loadingAny() bool {
	return m.snapshotState == stateLoading ||
		m.blocksState == stateLoading ||
		m.chartState == stateLoading ||
		m.detailState == stateLoading
}
