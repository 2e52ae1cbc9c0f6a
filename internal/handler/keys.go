package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unrepo/unrepo-api/internal/auth"
	"github.com/unrepo/unrepo-api/internal/model"
	"github.com/unrepo/unrepo-api/internal/repository"
)

// KeysHandler implements key issuance and the session-protected key
// management endpoints. Issuance is deliberately open: a bare
// {type, name, email} request lands on (or creates) the account for
// that email and returns the bearer token exactly once. The quota
// core never deletes keys; revocation is a flag flip here.
type KeysHandler struct {
	Accounts *repository.AccountRepo
	Keys     *repository.APIKeyRepo
}

func NewKeysHandler(accounts *repository.AccountRepo, keys *repository.APIKeyRepo) *KeysHandler {
	return &KeysHandler{Accounts: accounts, Keys: keys}
}

type issueKeyReq struct {
	Type  string `json:"type"` // RESEARCH | CHATBOT
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Issue handles POST /v1/keys.
func (h *KeysHandler) Issue(c echo.Context) error {
	var req issueKeyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	capability, err := auth.ParseCapability(req.Type)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "type must be RESEARCH or CHATBOT"})
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "name is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var acct model.Account
	if strings.TrimSpace(req.Email) != "" {
		acct, err = h.Accounts.FindOrCreateByEmail(ctx, req.Email, name)
	} else {
		var id uint64
		id, err = h.Accounts.Create(ctx, "", name, "")
		if err == nil {
			acct, err = h.Accounts.GetByID(ctx, id)
		}
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "create account failed"})
	}

	token, err := auth.NewToken(capability)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "generate key failed"})
	}
	keyID, err := h.Keys.Create(ctx, acct.ID, token, capability, name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "store key failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data": echo.Map{
			"id":         keyID,
			"token":      token, // shown exactly once
			"type":       strings.ToUpper(req.Type),
			"name":       name,
			"account_id": acct.ID,
			"notice":     "Store this key now. It cannot be retrieved again.",
		},
	})
}

type keyPart struct {
	ID         uint64           `json:"id"`
	Token      string           `json:"token"` // masked
	Capability model.Capability `json:"capability"`
	Name       string           `json:"name"`
	IsActive   bool             `json:"is_active"`
	UsageCount int              `json:"usage_count"`
	LastUsedAt *time.Time       `json:"last_used_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// List handles GET /v1/keys (session-protected). Tokens are masked;
// the full value only ever left the server at issuance.
func (h *KeysHandler) List(c echo.Context) error {
	accountID, err := getAccountID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	keys, err := h.Keys.ListByAccount(ctx, accountID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "list keys failed"})
	}
	parts := make([]keyPart, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, keyPart{
			ID:         k.ID,
			Token:      maskToken(k.Token),
			Capability: k.Capability,
			Name:       k.Name,
			IsActive:   k.IsActive,
			UsageCount: k.UsageCount,
			LastUsedAt: k.LastUsedAt,
			CreatedAt:  k.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"keys": parts}})
}

// Deactivate handles DELETE /v1/keys/:id (session-protected).
func (h *KeysHandler) Deactivate(c echo.Context) error {
	accountID, err := getAccountID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	keyID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || keyID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid key id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Keys.Deactivate(ctx, accountID, keyID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "key not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "deactivate key failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// maskToken keeps the capability prefix and the last four characters
// visible.
func maskToken(token string) string {
	if len(token) <= 12 {
		return "****"
	}
	return token[:strings.LastIndex(token, "_")+1] + "…" + token[len(token)-4:]
}
