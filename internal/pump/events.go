// Package pump decodes pump.fun program events from log subscriptions.
package pump

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ProgramID is the pump.fun bonding curve program.
const ProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// GraduationSolLamports is the real SOL the curve collects before the
// token migrates to Raydium (~85 SOL).
const GraduationSolLamports = 85_000_000_000

const programDataPrefix = "Program data: "

// Anchor event discriminator for TradeEvent.
var tradeEventDiscriminator = []byte{189, 219, 127, 211, 78, 230, 97, 238}

// TradeEvent is one buy or sell on the bonding curve. Borsh layout,
// 129 bytes after the discriminator prefix.
type TradeEvent struct {
	Mint                 solana.PublicKey
	SolAmount            uint64
	TokenAmount          uint64
	IsBuy                bool
	User                 solana.PublicKey
	Timestamp            int64
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
}

// CurveProgressPct estimates how far along the bonding curve is, in
// percent of the SOL required to graduate.
func (e *TradeEvent) CurveProgressPct() float64 {
	return float64(e.RealSolReserves) / float64(GraduationSolLamports) * 100
}

// ParseTradeEvent scans transaction logs for a pump.fun trade event.
// Returns nil when no line carries one; malformed payloads are skipped,
// not errors, because the stream is full of unrelated program data.
func ParseTradeEvent(logs []string) *TradeEvent {
	for _, line := range logs {
		if !strings.HasPrefix(line, programDataPrefix) {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, programDataPrefix))
		if err != nil {
			continue
		}
		if ev := decodeTradeEvent(raw); ev != nil {
			return ev
		}
	}
	return nil
}

func decodeTradeEvent(raw []byte) *TradeEvent {
	if len(raw) < 129 || !bytes.Equal(raw[:8], tradeEventDiscriminator) {
		return nil
	}

	return &TradeEvent{
		Mint:                 solana.PublicKeyFromBytes(raw[8:40]),
		SolAmount:            binary.LittleEndian.Uint64(raw[40:48]),
		TokenAmount:          binary.LittleEndian.Uint64(raw[48:56]),
		IsBuy:                raw[56] == 1,
		User:                 solana.PublicKeyFromBytes(raw[57:89]),
		Timestamp:            int64(binary.LittleEndian.Uint64(raw[89:97])),
		VirtualSolReserves:   binary.LittleEndian.Uint64(raw[97:105]),
		VirtualTokenReserves: binary.LittleEndian.Uint64(raw[105:113]),
		RealSolReserves:      binary.LittleEndian.Uint64(raw[113:121]),
		RealTokenReserves:    binary.LittleEndian.Uint64(raw[121:129]),
	}
}
