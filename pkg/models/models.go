package models

import (
	"time"
)

// BlockSnapshot holds the explorer backend's view of the latest block
// together with the network-wide aggregates it reports alongside it.
// Detail and list fetches reuse the same shape; fields the backend does
// not populate for historical blocks simply stay zero.
type BlockSnapshot struct {
	Height         int64   `json:"height"`
	Hash           string  `json:"hash"`
	TxCount        int64   `json:"tx_count"`
	Size           int64   `json:"size"`
	Weight         int64   `json:"weight"`
	Difficulty     float64 `json:"difficulty"`
	MerkleRoot     string  `json:"merkle_root"`
	Nonce          uint32  `json:"nonce"`
	Miner          string  `json:"miner"`
	MarketPrice    float64 `json:"market_price"`
	Value          float64 `json:"value"`
	ValueToday     float64 `json:"value_today"`
	AverageValue   float64 `json:"average_value"`
	MedianValue    float64 `json:"median_value"`
	Hashrate       float64 `json:"hashrate"`
	TotalSentToday float64 `json:"total_sent_today"`
	BlockchainSize int64   `json:"blockchain_size"`
}

// PricePoint holds one timestamped market price sample.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// SnapshotResult contains the outcome of one metrics poll. Seq increases
// with every fetch the poller starts, so consumers can discard results
// that resolve out of order.
type SnapshotResult struct {
	Seq       uint64         `json:"seq"`
	Snapshot  *BlockSnapshot `json:"snapshot,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
	Err       error          `json:"-"`
}

// BlockListResult contains the outcome of the recent-blocks fetch. The
// backend returns bare heights; full metrics for a height come from a
// detail fetch.
type BlockListResult struct {
	Heights   []int64   `json:"heights,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
	Err       error     `json:"-"`
}

// PriceHistoryResult contains the outcome of the market-chart fetch.
type PriceHistoryResult struct {
	Points    []PricePoint `json:"points,omitempty"`
	FetchedAt time.Time    `json:"fetched_at"`
	Err       error        `json:"-"`
}

// DetailResult contains the outcome of a single block-detail fetch.
// Seq identifies which request it answers; the UI keeps only the result
// matching its most recent request.
type DetailResult struct {
	Seq    uint64         `json:"seq"`
	Height int64          `json:"height"`
	Block  *BlockSnapshot `json:"block,omitempty"`
	Err    error          `json:"-"`
}

// ProbeResult holds the outcome of one connectivity probe run in test mode.
type ProbeResult struct {
	Endpoint string `json:"endpoint"`
	Status   string `json:"status"` // "ok" or "error"
	Error    string `json:"error,omitempty"`
}

// TestReport holds the results of the configuration test.
type TestReport struct {
	ConfigPath      string        `json:"config_path"`
	ValidStructure  bool          `json:"valid_structure"`
	StructureErrors []string      `json:"structure_errors,omitempty"`
	APIBaseURL      string        `json:"api_base_url"`
	BaseURLSource   string        `json:"base_url_source"` // "env" or "config"
	Probes          []ProbeResult `json:"probes,omitempty"`
}
