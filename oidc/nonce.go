package oidc

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/crypto/chacha20poly1305"
)

// nonceCookieName carries the sealed nonce in cookie mode.
const nonceCookieName = "portal_nonce"

// NonceSource issues a one-time nonce when a handshake starts and redeems it
// exactly once when the callback returns. Both operations may touch the
// response (cookie mode); session mode ignores it.
type NonceSource interface {
	Issue(w http.ResponseWriter) (string, error)
	Redeem(r *http.Request, w http.ResponseWriter, nonce string) error
}

func randomNonce() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// sessionNonces keeps outstanding nonces server-side with a bounded lifetime
// and a bounded outstanding count.
type sessionNonces struct {
	cache    *ttlcache.Cache[string, time.Time]
	lifetime time.Duration
	maxOut   int
}

func newSessionNonces(lifetime time.Duration, maxOutstanding int) *sessionNonces {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, time.Time](lifetime),
		ttlcache.WithDisableTouchOnHit[string, time.Time](),
	)
	go cache.Start()

	return &sessionNonces{
		cache:    cache,
		lifetime: lifetime,
		maxOut:   maxOutstanding,
	}
}

func (s *sessionNonces) Issue(_ http.ResponseWriter) (string, error) {
	if s.cache.Len() >= s.maxOut {
		return "", ErrNonceExhausted
	}
	nonce, err := randomNonce()
	if err != nil {
		return "", err
	}
	s.cache.Set(nonce, time.Now().UTC(), s.lifetime)
	return nonce, nil
}

func (s *sessionNonces) Redeem(_ *http.Request, _ http.ResponseWriter, nonce string) error {
	if nonce == "" || s.cache.Get(nonce) == nil {
		return ErrNonceInvalid
	}
	s.cache.Delete(nonce)
	return nil
}

// cookieNonces seals the nonce into an encrypted cookie instead of server
// state. The outstanding-count cap does not apply here; each user agent
// carries at most one nonce cookie.
type cookieNonces struct {
	key      []byte
	lifetime time.Duration
}

type sealedNonce struct {
	Nonce     string `json:"n"`
	ExpiresAt int64  `json:"exp"`
}

func newCookieNonces(key []byte, lifetime time.Duration) *cookieNonces {
	return &cookieNonces{key: key, lifetime: lifetime}
}

func (c *cookieNonces) Issue(w http.ResponseWriter) (string, error) {
	nonce, err := randomNonce()
	if err != nil {
		return "", err
	}

	sealed, err := c.seal(sealedNonce{
		Nonce:     nonce,
		ExpiresAt: time.Now().Add(c.lifetime).Unix(),
	})
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     nonceCookieName,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(c.lifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
		Secure:   true,
	})
	return nonce, nil
}

func (c *cookieNonces) Redeem(r *http.Request, w http.ResponseWriter, nonce string) error {
	cookie, err := r.Cookie(nonceCookieName)
	if err != nil || cookie.Value == "" {
		return ErrNonceInvalid
	}

	// One-time use: the cookie is cleared whether or not redemption succeeds.
	http.SetCookie(w, &http.Cookie{
		Name:     nonceCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	sealed, err := c.open(cookie.Value)
	if err != nil {
		return ErrNonceInvalid
	}
	if nonce == "" || sealed.Nonce != nonce {
		return ErrNonceInvalid
	}
	if time.Now().Unix() > sealed.ExpiresAt {
		return ErrNonceInvalid
	}
	return nil
}

func (c *cookieNonces) seal(payload sealedNonce) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("creating nonce cipher: %w", err)
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding nonce payload: %w", err)
	}

	cipherNonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(cipherNonce); err != nil {
		return "", fmt.Errorf("generating cipher nonce: %w", err)
	}

	box := aead.Seal(cipherNonce, cipherNonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

func (c *cookieNonces) open(value string) (*sealedNonce, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, fmt.Errorf("creating nonce cipher: %w", err)
	}

	box, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(box) < aead.NonceSize() {
		return nil, ErrNonceInvalid
	}

	cipherNonce, ciphertext := box[:aead.NonceSize()], box[aead.NonceSize():]
	plaintext, err := aead.Open(nil, cipherNonce, ciphertext, nil)
	if err != nil {
		return nil, ErrNonceInvalid
	}

	var payload sealedNonce
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, ErrNonceInvalid
	}
	return &payload, nil
}
