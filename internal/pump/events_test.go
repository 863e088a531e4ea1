package pump

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func encodeTradeEvent(ev *TradeEvent) string {
	raw := make([]byte, 129)
	copy(raw[:8], tradeEventDiscriminator)
	copy(raw[8:40], ev.Mint.Bytes())
	binary.LittleEndian.PutUint64(raw[40:48], ev.SolAmount)
	binary.LittleEndian.PutUint64(raw[48:56], ev.TokenAmount)
	if ev.IsBuy {
		raw[56] = 1
	}
	copy(raw[57:89], ev.User.Bytes())
	binary.LittleEndian.PutUint64(raw[89:97], uint64(ev.Timestamp))
	binary.LittleEndian.PutUint64(raw[97:105], ev.VirtualSolReserves)
	binary.LittleEndian.PutUint64(raw[105:113], ev.VirtualTokenReserves)
	binary.LittleEndian.PutUint64(raw[113:121], ev.RealSolReserves)
	binary.LittleEndian.PutUint64(raw[121:129], ev.RealTokenReserves)
	return "Program data: " + base64.StdEncoding.EncodeToString(raw)
}

func TestParseTradeEvent_RoundTrip(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	user := solana.NewWallet().PublicKey()

	want := &TradeEvent{
		Mint:                 mint,
		SolAmount:            1_500_000_000,
		TokenAmount:          32_000_000_000,
		IsBuy:                true,
		User:                 user,
		Timestamp:            1735000000,
		VirtualSolReserves:   110_000_000_000,
		VirtualTokenReserves: 95_000_000_000_000,
		RealSolReserves:      80_000_000_000,
		RealTokenReserves:    200_000_000_000_000,
	}

	logs := []string{
		"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P invoke [1]",
		"Program log: Instruction: Buy",
		encodeTradeEvent(want),
		"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P success",
	}

	got := ParseTradeEvent(logs)
	if got == nil {
		t.Fatal("ParseTradeEvent returned nil")
	}
	if got.Mint != want.Mint || got.User != want.User {
		t.Fatalf("keys mismatch: got %s/%s", got.Mint, got.User)
	}
	if got.SolAmount != want.SolAmount || got.TokenAmount != want.TokenAmount {
		t.Fatalf("amounts mismatch: %+v", got)
	}
	if !got.IsBuy {
		t.Fatal("IsBuy lost")
	}
	if got.RealSolReserves != want.RealSolReserves {
		t.Fatalf("RealSolReserves = %d", got.RealSolReserves)
	}
}

func TestParseTradeEvent_IgnoresForeignData(t *testing.T) {
	logs := []string{
		"Program log: Instruction: Sell",
		"Program data: aGVsbG8gd29ybGQ=", // wrong discriminator, too short
		"Program data: not-base64!!!",
	}
	if ev := ParseTradeEvent(logs); ev != nil {
		t.Fatalf("expected nil for foreign log data, got %+v", ev)
	}
}

func TestParseTradeEvent_NoProgramData(t *testing.T) {
	if ev := ParseTradeEvent([]string{"Program log: hi"}); ev != nil {
		t.Fatalf("expected nil, got %+v", ev)
	}
}

func TestCurveProgressPct(t *testing.T) {
	ev := &TradeEvent{RealSolReserves: GraduationSolLamports * 92 / 100}
	got := ev.CurveProgressPct()
	if got < 91.9 || got > 92.1 {
		t.Fatalf("CurveProgressPct = %f, want ~92", got)
	}
}
