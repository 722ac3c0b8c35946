package tui

import (
	"fmt"
	"time"

	"btcdash/pkg/chart"
	"btcdash/pkg/metrics"
	"btcdash/pkg/models"
	"btcdash/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpWidth := msg.Width - 8
		if vpWidth > 80 {
			vpWidth = 80
		}
		if vpWidth < 20 {
			vpWidth = 20
		}
		vpHeight := msg.Height - 12
		if vpHeight < 3 {
			vpHeight = 3
		}
		m.viewport.Width = vpWidth
		m.viewport.Height = vpHeight

	case watcher.Event:
		// Re-arm the listener for the next event on the same subscription.
		cmds = append(cmds, listenForWatcher(m.sub))

		switch msg.Type {
		case watcher.EventSnapshotUpdated:
			if res, ok := msg.Data.(models.SnapshotResult); ok {
				if res.Seq <= m.snapshotSeq {
					metrics.ObserveStaleDrop(metrics.StreamLatestMetrics)
					m.logger.Debug("dropping stale snapshot event",
						zap.Uint64("seq", res.Seq),
						zap.Uint64("applied_seq", m.snapshotSeq))
					break
				}
				m.snapshotSeq = res.Seq
				m.lastUpdate = res.FetchedAt
				if res.Err != nil {
					m.snapshotErr = res.Err
					if m.snapshot == nil {
						m.snapshotState = stateFailed
					}
				} else {
					m.snapshot = res.Snapshot
					m.snapshotErr = nil
					m.snapshotState = stateReady
				}
			}
		case watcher.EventBlockListUpdated:
			if res, ok := msg.Data.(models.BlockListResult); ok {
				if res.Err != nil {
					m.blocksState = stateFailed
				} else {
					m.heights = res.Heights
					m.blocksState = stateReady
					if m.listIdx >= len(m.heights) {
						m.listIdx = 0
					}
				}
			}
		case watcher.EventPriceHistoryUpdated:
			if res, ok := msg.Data.(models.PriceHistoryResult); ok {
				if res.Err != nil {
					m.chartState = stateFailed
				} else {
					m.series = chart.Build(res.Points)
					m.chartState = stateReady
				}
			}
		}

	case models.DetailResult:
		if msg.Seq != m.detailSeq {
			metrics.ObserveStaleDrop(metrics.StreamBlockDetail)
			m.logger.Debug("dropping superseded detail result",
				zap.Uint64("seq", msg.Seq),
				zap.Uint64("current_seq", m.detailSeq),
				zap.Int64("height", msg.Height))
			break
		}
		if msg.Err != nil {
			m.detailState = stateFailed
			m.detailErr = msg.Err
		} else {
			m.detail = msg.Block
			m.detailErr = nil
			m.detailState = stateReady
			m.updateDetailViewport()
		}

	case toastClearMsg:
		// A newer toast owns the slot now; only its own timer may clear it.
		if msg.seq == m.toastSeq {
			m.statusMessage = ""
		}

	case uiTickMsg:
		m.pullMirrorState()
		cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))

	case tea.KeyMsg:
		if msg.String() == "?" && !m.showDetail {
			m.showHelp = !m.showHelp
			return m, nil
		}
		if m.showHelp {
			if msg.String() == "q" || msg.String() == "esc" || msg.String() == "?" {
				m.showHelp = false
			}
			return m, nil
		}

		if m.showDetail {
			switch msg.String() {
			case "q", "esc", "backspace":
				m.showDetail = false
				m.detailState = stateIdle
				m.detail = nil
				m.detailErr = nil
				return m, nil
			case "c":
				if m.detail != nil {
					cmds = append(cmds, m.copyHash(m.detail.Hash))
				}
				return m, tea.Batch(cmds...)
			case "o":
				url := explorerBlockURL(m.cfg, m.detailHeight)
				if err := openBrowser(url); err != nil {
					cmds = append(cmds, m.setToast(fmt.Sprintf("Failed to open browser: %v", err)))
				} else {
					cmds = append(cmds, m.setToast("Opened in browser"))
				}
				return m, tea.Batch(cmds...)
			default:
				var cmd tea.Cmd
				m.viewport, cmd = m.viewport.Update(msg)
				cmds = append(cmds, cmd)
				return m, tea.Batch(cmds...)
			}
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "r":
			m.watcher.Refresh()
			cmds = append(cmds, m.setToast("Refreshing data..."))

		case "up", "k":
			if m.listIdx > 0 {
				m.listIdx--
			}

		case "down", "j":
			if m.listIdx < len(m.heights)-1 {
				m.listIdx++
			}

		case "enter":
			if m.blocksState == stateReady && len(m.heights) > 0 {
				m.showDetail = true
				// The spinner's tick chain may have lapsed once the
				// startup streams finished; restart it for the fetch.
				cmds = append(cmds, m.fetchDetailCmd(m.heights[m.listIdx]), m.spinner.Tick)
			}

		case "c":
			if m.snapshot != nil {
				cmds = append(cmds, m.copyHash(m.snapshot.Hash))
			}

		case "o":
			if m.snapshot != nil {
				url := explorerBlockURL(m.cfg, m.snapshot.Height)
				if err := openBrowser(url); err != nil {
					cmds = append(cmds, m.setToast(fmt.Sprintf("Failed to open browser: %v", err)))
				} else {
					cmds = append(cmds, m.setToast("Opened in browser"))
				}
			}
		}
	}

	if m.loadingAny() {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}
