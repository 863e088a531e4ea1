package domain

// TokenMetadata is what the metadata/social service knows about a mint.
type TokenMetadata struct {
	Mint        string `json:"mint"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Decimals    uint8  `json:"decimals"`
	Twitter     string `json:"twitter"`
	Telegram    string `json:"telegram"`
	Website     string `json:"website"`
}

// HasSocials reports whether at least one social link is present.
// Anonymous launches with no footprint are treated as rug precursors.
func (m *TokenMetadata) HasSocials() bool {
	return m.Twitter != "" || m.Telegram != "" || m.Website != ""
}
