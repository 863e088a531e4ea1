package domain

import "github.com/gagliardetto/solana-go"

// PoolKeys is the complete Raydium AMM v4 account set needed to build a
// swap against one pool. Extracted once from the initialize2 transaction
// and immutable afterwards.
type PoolKeys struct {
	AmmID             solana.PublicKey `json:"amm_id"`
	AmmAuthority      solana.PublicKey `json:"amm_authority"`
	AmmOpenOrders     solana.PublicKey `json:"amm_open_orders"`
	AmmTargetOrders   solana.PublicKey `json:"amm_target_orders"`
	LpMint            solana.PublicKey `json:"lp_mint"`
	BaseMint          solana.PublicKey `json:"base_mint"`
	QuoteMint         solana.PublicKey `json:"quote_mint"`
	BaseVault         solana.PublicKey `json:"base_vault"`
	QuoteVault        solana.PublicKey `json:"quote_vault"`
	MarketProgram     solana.PublicKey `json:"market_program"`
	MarketID          solana.PublicKey `json:"market_id"`
	MarketBids        solana.PublicKey `json:"market_bids"`
	MarketAsks        solana.PublicKey `json:"market_asks"`
	MarketEventQueue  solana.PublicKey `json:"market_event_queue"`
	MarketBaseVault   solana.PublicKey `json:"market_base_vault"`
	MarketQuoteVault  solana.PublicKey `json:"market_quote_vault"`
	MarketVaultSigner solana.PublicKey `json:"market_vault_signer"`
}
