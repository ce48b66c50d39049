package oidc

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// KeySet caches the provider's JWKS and resolves id_token signing keys by
// kid. Unknown kids trigger one refresh, covering provider key rollover.
type KeySet struct {
	mu     sync.RWMutex
	uri    string
	client *http.Client
	keys   map[string]*rsa.PublicKey
}

// NewKeySet creates a lazy JWKS cache for the given jwks_uri.
func NewKeySet(client *http.Client, uri string) *KeySet {
	return &KeySet{
		uri:    uri,
		client: client,
		keys:   make(map[string]*rsa.PublicKey),
	}
}

// Keyfunc is the jwt.Keyfunc used to validate id_token signatures.
func (k *KeySet) Keyfunc(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)

	k.mu.RLock()
	key, ok := k.keys[kid]
	k.mu.RUnlock()
	if ok {
		return key, nil
	}

	if err := k.refresh(); err != nil {
		return nil, err
	}

	k.mu.RLock()
	key, ok = k.keys[kid]
	k.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no signing key for kid %q", kid)
	}
	return key, nil
}

type jsonWebKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k *KeySet) refresh() error {
	resp, err := k.client.Get(k.uri)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("fetching JWKS: status %d, body: %s", resp.StatusCode, string(body))
	}

	var doc struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decoding JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, wk := range doc.Keys {
		if wk.Kty != "RSA" {
			continue
		}
		pub, err := wk.publicKey()
		if err != nil {
			return fmt.Errorf("parsing JWK %q: %w", wk.Kid, err)
		}
		keys[wk.Kid] = pub
	}

	k.mu.Lock()
	k.keys = keys
	k.mu.Unlock()
	return nil
}

func (w jsonWebKey) publicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(w.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(w.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
