package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"btcdash/pkg/chart"
	"btcdash/pkg/models"
	"btcdash/pkg/utils"
	"btcdash/pkg/watcher"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func listenForWatcher(sub watcher.Subscriber) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

// setToast shows a message above the footer and schedules its removal.
// Bumping the sequence first means an earlier timer that is still
// pending cannot clear a newer message.
func (m *model) setToast(text string) tea.Cmd {
	m.toastSeq++
	m.statusMessage = text
	seq := m.toastSeq
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastClearMsg{seq: seq}
	})
}

// copyHash puts a block hash on the system clipboard. The confirmation
// toast always shows; a clipboard failure is logged but not surfaced.
func (m *model) copyHash(hash string) tea.Cmd {
	if err := clipboard.WriteAll(hash); err != nil {
		m.logger.Warn("clipboard write failed", zap.Error(err))
	}
	return m.setToast("Block hash copied to clipboard!")
}

// fetchDetailCmd kicks off a detail fetch for a block height. Each call
// bumps the sequence, so only the most recent request's result is kept.
func (m *model) fetchDetailCmd(height int64) tea.Cmd {
	m.detailSeq++
	m.detailState = stateLoading
	m.detailHeight = height
	m.detail = nil
	m.detailErr = nil
	seq := m.detailSeq
	w := m.watcher
	return func() tea.Msg {
		block, err := w.FetchDetail(context.Background(), height)
		return models.DetailResult{Seq: seq, Height: height, Block: block, Err: err}
	}
}

// pullMirrorState back-fills streams whose first event fired before this
// model's subscription was draining. The watcher starts ahead of the UI,
// so that window is real for the one-shot streams.
func (m *model) pullMirrorState() {
	if m.snapshotState == stateLoading {
		snap, at, err := m.watcher.Snapshot()
		if snap != nil || err != nil {
			m.snapshot = snap
			m.lastUpdate = at
			m.snapshotErr = err
			if snap == nil {
				m.snapshotState = stateFailed
			} else {
				m.snapshotState = stateReady
			}
		}
	}
	if m.blocksState == stateLoading {
		heights, err := m.watcher.BlockHeights()
		if err != nil {
			m.blocksState = stateFailed
		} else if len(heights) > 0 {
			m.heights = heights
			m.blocksState = stateReady
		}
	}
	if m.chartState == stateLoading {
		points, err := m.watcher.PriceHistory()
		if err != nil {
			m.chartState = stateFailed
		} else if len(points) > 0 {
			m.series = chart.Build(points)
			m.chartState = stateReady
		}
	}
}

func detailRows(b *models.BlockSnapshot) []string {
	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", subtleStyle.Render(fmt.Sprintf("%-14s", label)), value)
	}
	return []string{
		row("Height", utils.AddCommas(strconv.FormatInt(b.Height, 10))),
		row("Hash", b.Hash),
		row("Merkle Root", b.MerkleRoot),
		row("Nonce", strconv.FormatUint(uint64(b.Nonce), 10)),
		row("Miner", b.Miner),
		row("Transactions", utils.AddCommas(strconv.FormatInt(b.TxCount, 10))),
		row("Size", utils.FormatBytes(b.Size)),
		row("Weight", utils.AddCommas(strconv.FormatInt(b.Weight, 10))+" WU"),
		row("Difficulty", formatDifficulty(b.Difficulty)),
	}
}

func (m *model) updateDetailViewport() {
	if m.detail == nil {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(strings.Join(detailRows(m.detail), "\n"))
	m.viewport.GotoTop()
}
