package oidc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"go.pilab.hu/portal/domain"
)

// Client drives the handshake against the external identity provider. It is
// a two-method capability: Begin issues the authorization redirect, Complete
// validates the provider's callback and yields the asserted profile.
type Client struct {
	cfg        Config
	meta       *ProviderMetadata
	oauth      *oauth2.Config
	keys       *KeySet
	nonces     NonceSource
	httpClient *http.Client
}

// New discovers the provider and assembles the handshake client. The
// configuration is read-only from here on.
func New(ctx context.Context, cfg Config, httpClient *http.Client) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	meta, err := Discover(ctx, httpClient, cfg.MetadataURL)
	if err != nil {
		return nil, err
	}

	var nonces NonceSource
	if cfg.UseCookieNonce {
		nonces = newCookieNonces(cfg.CookieSealKey, cfg.NonceLifetime)
	} else {
		nonces = newSessionNonces(cfg.NonceLifetime, cfg.NonceMaxAmount)
	}

	return &Client{
		cfg:  cfg,
		meta: meta,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  meta.AuthorizationEndpoint,
				TokenURL: meta.TokenEndpoint,
			},
		},
		keys:       NewKeySet(httpClient, meta.JWKSURI),
		nonces:     nonces,
		httpClient: httpClient,
	}, nil
}

// FailureRedirect is where failed handshakes are sent.
func (c *Client) FailureRedirect() string { return c.cfg.FailureRedirect }

// SuccessRedirect is where completed handshakes are sent.
func (c *Client) SuccessRedirect() string { return c.cfg.SuccessRedirect }

// Begin issues a one-time nonce and returns the provider authorization URL
// to redirect the user agent to. The nonce doubles as the state parameter so
// the callback can be bound to this request before the token exchange.
func (c *Client) Begin(w http.ResponseWriter) (string, error) {
	nonce, err := c.nonces.Issue(w)
	if err != nil {
		return "", err
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("nonce", nonce),
	}
	if c.cfg.ResponseMode != "" {
		opts = append(opts, oauth2.SetAuthURLParam("response_mode", c.cfg.ResponseMode))
	}
	if c.cfg.ResponseType != "code" {
		opts = append(opts, oauth2.SetAuthURLParam("response_type", c.cfg.ResponseType))
	}

	return c.oauth.AuthCodeURL(nonce, opts...), nil
}

// Complete validates the provider callback (query or form_post) and returns
// the asserted profile. Any validation failure means no session and no
// directory entry; the caller redirects to the configured fallback.
func (c *Client) Complete(r *http.Request, w http.ResponseWriter) (*domain.User, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: unreadable callback", ErrProtocolValidation)
	}

	if errCode := r.Form.Get("error"); errCode != "" {
		return nil, fmt.Errorf("%w: provider returned %q", ErrProtocolValidation, errCode)
	}

	state := r.Form.Get("state")
	if err := c.nonces.Redeem(r, w, state); err != nil {
		return nil, err
	}

	rawIDToken := r.Form.Get("id_token")
	if code := r.Form.Get("code"); code != "" {
		raw, err := c.exchange(r.Context(), code)
		if err != nil {
			return nil, err
		}
		rawIDToken = raw
	}
	if rawIDToken == "" {
		return nil, fmt.Errorf("%w: callback carries neither code nor id_token", ErrProtocolValidation)
	}

	claims, err := c.validateIDToken(rawIDToken, state)
	if err != nil {
		return nil, err
	}

	return profileFromClaims(claims)
}

func (c *Client) exchange(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: code exchange failed: %v", ErrProtocolValidation, err)
	}

	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", fmt.Errorf("%w: token response carries no id_token", ErrProtocolValidation)
	}
	return raw, nil
}

func (c *Client) validateIDToken(raw, nonce string) (jwt.MapClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(c.cfg.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.cfg.ClockSkew),
	}
	if c.cfg.ValidateIssuer {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.meta.Issuer))
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.NewParser(parserOpts...).ParseWithClaims(raw, claims, c.keys.Keyfunc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolValidation, err)
	}

	if tokenNonce, _ := claims["nonce"].(string); tokenNonce != nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", ErrProtocolValidation)
	}
	return claims, nil
}

// profileFromClaims maps id_token claims onto a directory profile. The
// subject key prefers the provider's "oid" claim and falls back to "sub";
// a profile without either is rejected outright.
func profileFromClaims(claims jwt.MapClaims) (*domain.User, error) {
	subjectID, _ := claims["oid"].(string)
	if subjectID == "" {
		subjectID, _ = claims["sub"].(string)
	}
	if subjectID == "" {
		log.Warn().Msg("Provider profile carries no subject identifier")
		return nil, domain.ErrMissingSubjectID
	}

	email, _ := claims["email"].(string)
	if email == "" {
		email, _ = claims["preferred_username"].(string)
	}
	name, _ := claims["name"].(string)

	return &domain.User{
		SubjectID:   subjectID,
		Email:       email,
		DisplayName: name,
		Claims:      claims,
	}, nil
}
