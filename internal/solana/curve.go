package solana

import (
	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
)

// IsOnCurve reports whether the key is a valid ed25519 point. PDAs are
// off-curve, so a mint extracted from fixed instruction indices that
// decodes off-curve means the indices hit the wrong account.
func IsOnCurve(key solana.PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(key.Bytes())
	return err == nil
}
