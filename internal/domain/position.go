package domain

import "time"

// PositionStatus tracks the lifecycle of a holding.
type PositionStatus string

const (
	PositionScoring    PositionStatus = "SCORING"
	PositionMonitoring PositionStatus = "MONITORING"
	PositionExiting    PositionStatus = "EXITING"
	PositionClosed     PositionStatus = "CLOSED"
)

// Position is a live holding tracked by the position manager.
// Persisted as part of the state snapshot after every transition.
type Position struct {
	Mint         string         `json:"mint"`
	Symbol       string         `json:"symbol"`
	Decimals     uint8          `json:"decimals"`
	AmountRaw    uint64         `json:"amount_raw"` // token base units actually held
	EntryPrice   float64        `json:"entry_price"` // SOL per whole token, from vault reserves
	EntryTime    time.Time      `json:"entry_time"`
	Score        int            `json:"score"` // oracle score 1-10
	TakeProfit   float64        `json:"take_profit"` // absolute price level
	StopLoss     float64        `json:"stop_loss"`   // absolute price level
	MoonbagTaken bool           `json:"moonbag_taken"`
	Status       PositionStatus `json:"status"`
	BuySignature string         `json:"buy_signature"`
	Pool         PoolKeys       `json:"pool"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Open reports whether the position still holds tokens.
func (p *Position) Open() bool {
	return p.Status != PositionClosed
}
