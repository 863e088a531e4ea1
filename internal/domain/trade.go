package domain

import "time"

// Exit reasons recorded on closed trades.
const (
	ExitReasonTakeProfit = "TAKE_PROFIT"
	ExitReasonStopLoss   = "STOP_LOSS"
	ExitReasonLowScore   = "LOW_SCORE"
	ExitReasonMoonbag    = "MOONBAG"
	ExitReasonShutdown   = "SHUTDOWN"
)

// TradeRecord is one completed round trip (or partial exit) appended to
// the trade log store. Corresponds to the trades table.
type TradeRecord struct {
	Mint          string
	Symbol        string
	Score         int
	EntryPrice    float64 // SOL per whole token
	ExitPrice     float64
	AmountRaw     uint64 // token base units sold
	EntryTime     time.Time
	ExitTime      time.Time
	ExitReason    string
	PnLPct        float64
	BuySignature  string
	SellSignature string
}
