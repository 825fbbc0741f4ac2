package httpapi

import (
	"net/http"
	"strings"
	"time"

	"timeclock.org/internal/auth"
)

type tokenRequest struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	userID := strings.TrimSpace(req.UserID)
	orgID := strings.TrimSpace(req.OrganizationID)
	role := strings.TrimSpace(req.Role)
	if userID == "" || orgID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id and organization_id are required")
		return
	}
	if role == "" {
		role = auth.RoleEmployee
	}

	token, err := auth.GenerateToken(userID, orgID, role, a.tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	a.audit(r.Context(), "auth.token.issued", "user", userID, map[string]string{
		"organization_id": orgID,
		"role":            role,
		"expires_at":      expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
