package domain

import "time"

// Confidence is the advisory trust label attached to an EngineResult. It
// never alters the computed P&L; callers decide whether to trust or flag
// low-confidence results.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// QualityMetrics are the data-quality gating metrics derived while
// reconstructing a wallet's P&L.
type QualityMetrics struct {
	MappedRatio     float64 `json:"mapped_ratio"`
	ExternalSellPct float64 `json:"external_sell_pct"`
	WashTxCount     int     `json:"wash_tx_count"`
	BundledTxCount  int     `json:"bundled_tx_count"`

	TotalEvents     int `json:"total_events"`
	MappedEvents    int `json:"mapped_events"`
	DuplicateEvents int `json:"duplicate_events"`
	SkippedEvents   int `json:"skipped_events"`
	IrregularEvents int `json:"irregular_events"`

	ExternalSellValue  float64 `json:"external_sell_value"`
	AttemptedSellValue float64 `json:"attempted_sell_value"`
}

// EngineResult is the final output of one wallet P&L computation. The
// snake_case field names are a stable contract for downstream consumers.
type EngineResult struct {
	Wallet            string         `json:"wallet"`
	RealizedPnL       float64        `json:"realized_pnl"`
	UnrealizedPnL     float64        `json:"unrealized_pnl"`
	TotalPnL          float64        `json:"total_pnl"`
	Gain              float64        `json:"gain"`
	Loss              float64        `json:"loss"`
	PositionsOpen     int            `json:"positions_open"`
	PositionsResolved int            `json:"positions_resolved"`
	VolumeTraded      float64        `json:"volume_traded"`
	Confidence        Confidence     `json:"confidence"`
	Quality           QualityMetrics `json:"quality_metrics"`
	ComputedAt        time.Time      `json:"computed_at"`
}
