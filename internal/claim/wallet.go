package claim

import "github.com/mr-tron/base58"

// WalletKeyLen is the byte length of a decoded wallet public key.
const WalletKeyLen = 32

// ValidWallet reports whether wallet is a base58-encoded 32-byte public key.
func ValidWallet(wallet string) bool {
	key, err := base58.Decode(wallet)
	return err == nil && len(key) == WalletKeyLen
}
