package oidc

import "errors"

var (
	// ErrProtocolValidation covers signature, issuer, audience and nonce
	// mismatches on handshake completion. Never retried; the request is
	// redirected to the configured fallback.
	ErrProtocolValidation = errors.New("provider response failed validation")

	// ErrNonceExhausted means the outstanding-nonce cap was hit before the
	// handshake could start.
	ErrNonceExhausted = errors.New("too many outstanding login attempts")

	// ErrNonceInvalid means the callback presented an unknown or expired
	// nonce.
	ErrNonceInvalid = errors.New("unknown or expired login nonce")
)
