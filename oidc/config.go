package oidc

import (
	"errors"
	"time"
)

// Config is the immutable trust configuration for the external identity
// provider. It is loaded once at startup and never mutated afterwards.
type Config struct {
	// MetadataURL points at the provider's OpenID discovery document.
	MetadataURL string

	ClientID     string
	ClientSecret string
	RedirectURL  string

	// ResponseType selects the handshake flavor, e.g. "code" or
	// "code id_token" for the hybrid flow.
	ResponseType string
	// ResponseMode asks the provider to return the callback via "query" or
	// "form_post".
	ResponseMode string

	// ValidateIssuer enforces the discovered issuer on id_token validation.
	ValidateIssuer bool

	Scopes []string

	// ClockSkew is the leeway applied to id_token time claims.
	ClockSkew time.Duration

	// NonceLifetime bounds how long an issued nonce stays redeemable.
	NonceLifetime time.Duration
	// NonceMaxAmount caps outstanding nonces in session mode; handshakes
	// beyond the cap fail.
	NonceMaxAmount int
	// UseCookieNonce stores the nonce in an encrypted cookie instead of the
	// server-side nonce table.
	UseCookieNonce bool
	// CookieSealKey is the 32-byte key sealing nonce cookies.
	CookieSealKey []byte

	// FailureRedirect is where failed handshakes land. Never a raw error page.
	FailureRedirect string
	// SuccessRedirect is where completed handshakes land.
	SuccessRedirect string
}

func (c *Config) validate() error {
	if c.MetadataURL == "" {
		return errors.New("oidc: metadata URL is required")
	}
	if c.ClientID == "" {
		return errors.New("oidc: client ID is required")
	}
	if c.RedirectURL == "" {
		return errors.New("oidc: redirect URL is required")
	}
	if c.UseCookieNonce && len(c.CookieSealKey) != 32 {
		return errors.New("oidc: cookie nonce storage needs a 32-byte seal key")
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ResponseType == "" {
		out.ResponseType = "code"
	}
	if len(out.Scopes) == 0 {
		out.Scopes = []string{"openid", "profile", "email"}
	}
	if out.NonceLifetime <= 0 {
		out.NonceLifetime = 5 * time.Minute
	}
	if out.NonceMaxAmount <= 0 {
		out.NonceMaxAmount = 1000
	}
	if out.FailureRedirect == "" {
		out.FailureRedirect = "/"
	}
	if out.SuccessRedirect == "" {
		out.SuccessRedirect = "/"
	}
	return out
}
