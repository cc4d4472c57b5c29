package http

import (
	"encoding/json"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/order-relay-backend/internal/auth"
	"github.com/lorrc/order-relay-backend/internal/config"
	"github.com/lorrc/order-relay-backend/internal/core/domain"
)

func newTokenHandler(t *testing.T) (*TokenHandler, *auth.TokenManager) {
	t.Helper()

	crewHash, err := auth.HashAccessKey("crew-key")
	require.NoError(t, err)
	adminHash, err := auth.HashAccessKey("admin-key")
	require.NoError(t, err)

	keys := config.AccessKeysConfig{
		CrewKeyHash:  crewHash,
		AdminKeyHash: adminHash,
		// No customer key provisioned.
	}
	tm := auth.NewTokenManager("test-secret", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewTokenHandler(tm, keys, logger), tm
}

func issueToken(handler *TokenHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(stdhttp.MethodPost, "/api/v1/auth/token", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	handler.HandleIssueToken(recorder, req)
	return recorder
}

func TestTokenHandler_IssueToken(t *testing.T) {
	handler, tm := newTokenHandler(t)

	recorder := issueToken(handler, `{"role":"crew","access_key":"crew-key"}`)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	var resp struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "crew", resp.Role)

	// The issued token resolves back to the crew role.
	role, err := tm.RoleFromToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCrew, role)
}

func TestTokenHandler_IssueToken_Rejections(t *testing.T) {
	handler, _ := newTokenHandler(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"wrong access key", `{"role":"crew","access_key":"guessed"}`, stdhttp.StatusUnauthorized},
		{"unknown role", `{"role":"superuser","access_key":"crew-key"}`, stdhttp.StatusBadRequest},
		{"guest role not issuable", `{"role":"guest","access_key":"crew-key"}`, stdhttp.StatusBadRequest},
		{"role without provisioned key", `{"role":"customer","access_key":"any"}`, stdhttp.StatusUnauthorized},
		{"key from another role", `{"role":"admin","access_key":"crew-key"}`, stdhttp.StatusUnauthorized},
		{"malformed body", `{"role":`, stdhttp.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := issueToken(handler, tt.body)
			assert.Equal(t, tt.code, recorder.Code)
		})
	}
}
