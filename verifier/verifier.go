package verifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrTokenRejected means the verification service saw the token and said no.
// Callers treat rejection and transport errors the same way: the request
// falls back to the session check.
var ErrTokenRejected = errors.New("token rejected by verifier")

// Verifier validates a bearer token against the resource it is presented
// for. The token itself stays opaque to this process.
type Verifier interface {
	Verify(ctx context.Context, resourceID, token string) error
}

// hashToken keys caches and logs without ever holding the raw credential.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
