package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftchat/internal/services"
	"driftchat/internal/transport/httpdto"
	drift_errors "driftchat/pkg/errors"
)

// authStub is a backend that accepts one access token and can mint a
// replacement through the refresh endpoint.
type authStub struct {
	goodAccess   string
	goodRefresh  string
	nextAccess   string
	refreshCalls int
	userCalls    int
}

func (s *authStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		s.userCalls++
		if r.Header.Get("Authorization") != "Bearer "+s.goodAccess {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, httpdto.NewSuccessResponse(map[string]any{
			"users": []services.UserSummary{},
		}))
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls++
		var req httpdto.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken != s.goodRefresh {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		s.goodAccess = s.nextAccess
		writeJSON(w, http.StatusOK, httpdto.NewSuccessResponse(services.AuthResponse{
			AccessToken:  s.nextAccess,
			RefreshToken: s.goodRefresh,
		}))
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestAPI_SilentRefreshRetry(t *testing.T) {
	stub := &authStub{goodAccess: "fresh", goodRefresh: "refresh-token", nextAccess: "minted"}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	api := NewAPI(srv.URL)
	api.SetTokens("expired", "refresh-token")

	_, err := api.Users(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stub.refreshCalls, "exactly one silent refresh")
	assert.Equal(t, 2, stub.userCalls, "original call plus one retry")
	assert.Equal(t, "minted", api.AccessToken(), "token pair was swapped in")

	// The next request goes straight through on the new token.
	_, err = api.Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stub.refreshCalls)
}

func TestAPI_RefreshRejected(t *testing.T) {
	stub := &authStub{goodAccess: "fresh", goodRefresh: "refresh-token", nextAccess: "minted"}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	api := NewAPI(srv.URL)
	api.SetTokens("expired", "revoked-refresh")

	_, err := api.Users(context.Background())
	assert.ErrorIs(t, err, drift_errors.ErrAuthExpired)
}

func TestAPI_NoRefreshToken(t *testing.T) {
	stub := &authStub{goodAccess: "fresh"}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	api := NewAPI(srv.URL)
	api.SetTokens("expired", "")

	_, err := api.Users(context.Background())
	assert.ErrorIs(t, err, drift_errors.ErrUnauthorized)
}

func TestAPI_SecondUnauthorizedSurfaces(t *testing.T) {
	// The refresh succeeds but mints a token the server still rejects, so
	// the retry 401s too. The client must surface that, not loop.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, httpdto.NewSuccessResponse(services.AuthResponse{
			AccessToken:  "minted",
			RefreshToken: "refresh-token",
		}))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api := NewAPI(srv.URL)
	api.SetTokens("expired", "refresh-token")
	_, err := api.Users(context.Background())
	assert.ErrorIs(t, err, drift_errors.ErrUnauthorized)
}

func TestAPI_ErrorEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/conversations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api := NewAPI(srv.URL)
	api.SetTokens("whatever", "")

	_, err := api.Conversations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORBIDDEN")
}
