package tui

import (
	"testing"
	"time"

	"btcdash/pkg/config"
	"btcdash/pkg/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestFormatAgo(t *testing.T) {
	now := time.Date(2023, 10, 26, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "never", formatAgo(time.Time{}, now))
	assert.Equal(t, "just now", formatAgo(now, now))
	assert.Equal(t, "12s ago", formatAgo(now.Add(-12*time.Second), now))
	assert.Equal(t, "3m ago", formatAgo(now.Add(-3*time.Minute), now))
}

func TestFormatDifficulty(t *testing.T) {
	assert.Equal(t, "62.46 T", formatDifficulty(62.46e12))
	assert.Equal(t, "1,024", formatDifficulty(1024))
}

func TestExplorerBlockURL(t *testing.T) {
	cfg := config.Config{ExplorerURL: "https://www.blockchain.com/explorer/"}
	assert.Equal(t, "https://www.blockchain.com/explorer/blocks/btc/812345", explorerBlockURL(cfg, 812345))
}

func TestDetailRows(t *testing.T) {
	b := &models.BlockSnapshot{
		Height:     812345,
		Hash:       "00000000000000000002c0cc73626b56fb3ee1ce605b0ce125cc4fb58775a0a9",
		MerkleRoot: "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b",
		Nonce:      2083236893,
		Miner:      "Foundry USA",
		TxCount:    3456,
		Size:       1523456,
		Weight:     3993000,
		Difficulty: 62.46e12,
	}

	rows := detailRows(b)
	assert.Len(t, rows, 9)

	joined := ""
	for _, r := range rows {
		joined += r + "\n"
	}
	assert.Contains(t, joined, "812,345")
	assert.Contains(t, joined, b.Hash)
	assert.Contains(t, joined, b.MerkleRoot)
	assert.Contains(t, joined, "2083236893")
	assert.Contains(t, joined, "Foundry USA")
	assert.Contains(t, joined, "3,456")
	assert.Contains(t, joined, "1.52 MB")
	assert.Contains(t, joined, "3,993,000 WU")
	assert.Contains(t, joined, "62.46 T")
}

func TestSetToastBumpsSequence(t *testing.T) {
	m := model{logger: zap.NewNop()}

	cmd := m.setToast("first")
	assert.NotNil(t, cmd)
	assert.Equal(t, uint64(1), m.toastSeq)
	assert.Equal(t, "first", m.statusMessage)

	cmd = m.setToast("second")
	assert.NotNil(t, cmd)
	assert.Equal(t, uint64(2), m.toastSeq)
	assert.Equal(t, "second", m.statusMessage)
}

func TestFetchDetailCmdBumpsSequence(t *testing.T) {
	m := model{logger: zap.NewNop()}

	cmd := m.fetchDetailCmd(812345)
	assert.NotNil(t, cmd)
	assert.Equal(t, uint64(1), m.detailSeq)
	assert.Equal(t, stateLoading, m.detailState)
	assert.Equal(t, int64(812345), m.detailHeight)

	cmd = m.fetchDetailCmd(812344)
	assert.NotNil(t, cmd)
	assert.Equal(t, uint64(2), m.detailSeq)
	assert.Equal(t, int64(812344), m.detailHeight)
}
