package verifier

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Verify_Accepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("id"))
		assert.Equal(t, "GOOD", r.URL.Query().Get("access_token"))
		fmt.Fprint(w, `{"valid":true}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	assert.NoError(t, client.Verify(context.Background(), "42", "GOOD"))
}

func TestClient_Verify_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	err := client.Verify(context.Background(), "42", "BAD")
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestClient_Verify_NegativeVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"valid":false}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	err := client.Verify(context.Background(), "42", "BAD")
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestClient_Verify_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // Down before the call.

	client := NewClient(srv.URL, nil)
	err := client.Verify(context.Background(), "42", "ANY")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenRejected)
}
