package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lorrc/order-relay-backend/internal/auth"
	"github.com/lorrc/order-relay-backend/internal/config"
	"github.com/lorrc/order-relay-backend/internal/core/domain"
	apperrors "github.com/lorrc/order-relay-backend/internal/core/errors"
)

// TokenHandler issues signed service tokens in exchange for a role and
// its provisioned access key. Clients may then authenticate over the
// socket with the token instead of a bare role tag.
type TokenHandler struct {
	tm     *auth.TokenManager
	keys   config.AccessKeysConfig
	logger *slog.Logger
}

// NewTokenHandler creates a new token handler.
func NewTokenHandler(tm *auth.TokenManager, keys config.AccessKeysConfig, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{tm: tm, keys: keys, logger: logger}
}

type tokenRequest struct {
	Role      string `json:"role"`
	AccessKey string `json:"access_key"`
}

type tokenResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// HandleIssueToken handles POST /api/v1/auth/token.
func (h *TokenHandler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apperrors.NewBadRequestError(err, "invalid request body"))
		return
	}

	role, ok := domain.ParseRole(req.Role)
	if !ok {
		WriteError(w, apperrors.NewBadRequestError(apperrors.ErrInvalidRole, "unknown role"))
		return
	}

	hash := h.keyHashForRole(role)
	if hash == "" {
		h.logger.Warn("token requested for role with no provisioned key", "role", role)
		WriteError(w, apperrors.NewUnauthorizedError("role not enabled"))
		return
	}

	if err := auth.VerifyAccessKey(hash, req.AccessKey); err != nil {
		h.logger.Warn("token request rejected: bad access key", "role", role)
		WriteError(w, apperrors.NewUnauthorizedError("invalid access key"))
		return
	}

	token, err := h.tm.GenerateToken(role)
	if err != nil {
		h.logger.Error("failed to sign token", "role", role, "error", err)
		WriteError(w, apperrors.NewInternalError(err))
		return
	}

	WriteJSON(w, http.StatusOK, tokenResponse{Token: token, Role: string(role)})
}

func (h *TokenHandler) keyHashForRole(role domain.Role) string {
	switch role {
	case domain.RoleCustomer:
		return h.keys.CustomerKeyHash
	case domain.RoleCrew:
		return h.keys.CrewKeyHash
	case domain.RoleAdmin:
		return h.keys.AdminKeyHash
	}
	return ""
}
