package redlock

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenSource produces the unguessable ownership tokens stored at the
// resource key. A fresh token is drawn for every acquisition attempt.
// Implementations must be safe for concurrent use.
type TokenSource interface {
	Token() string
}

// CryptoTokenSource draws 128-bit tokens from crypto/rand, rendered as hex.
// Entropy-source failure is not recoverable and aborts the process.
type CryptoTokenSource struct{}

// Token implements TokenSource.
func (CryptoTokenSource) Token() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("redlock: entropy source failed: %v", err))
	}
	return hex.EncodeToString(b)
}
