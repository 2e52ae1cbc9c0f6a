package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unrepo/unrepo-api/internal/repository"
	"github.com/unrepo/unrepo-api/internal/utils"
)

// AccountHandler covers the dashboard surface: email/password
// registration, login and the usage-history view. API traffic never
// touches these endpoints.
type AccountHandler struct {
	Accounts   *repository.AccountRepo
	Usage      *repository.UsageEventRepo
	JWTSecret  string
	TokenTTL   int // minutes
	BcryptCost int
}

func NewAccountHandler(accounts *repository.AccountRepo, usage *repository.UsageEventRepo, secret string, ttlMin, bcryptCost int) *AccountHandler {
	return &AccountHandler{Accounts: accounts, Usage: usage, JWTSecret: secret, TokenTTL: ttlMin, BcryptCost: bcryptCost}
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Register handles POST /v1/auth/register.
func (h *AccountHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "valid email is required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "password must be at least 8 characters"})
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = req.Email[:strings.Index(req.Email, "@")]
	}

	hash, err := utils.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "hash password failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Accounts.Create(ctx, req.Email, req.Name, hash)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"success": false, "error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "create account failed"})
	}

	tok, err := utils.NewSessionToken(h.JWTSecret, id, h.TokenTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "sign token failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data": echo.Map{
			"account_id": id,
			"token":      tok.Token,
			"expires_at": tok.Exp,
		},
	})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /v1/auth/login.
func (h *AccountHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	acct, err := h.Accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Same response as a wrong password; do not leak which.
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid email or password"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "login failed"})
	}
	if !acct.IsActive || acct.PasswordHash == "" || !utils.VerifyPassword(acct.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid email or password"})
	}

	tok, err := utils.NewSessionToken(h.JWTSecret, acct.ID, h.TokenTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "sign token failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"account_id": acct.ID,
			"premium":    acct.Premium(),
			"token":      tok.Token,
			"expires_at": tok.Exp,
		},
	})
}

// UsageHistory handles GET /v1/usage (session-protected). Newest
// first, capped by the ?limit query parameter.
func (h *AccountHandler) UsageHistory(c echo.Context) error {
	accountID, err := getAccountID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	events, err := h.Usage.ListRecentByAccount(ctx, accountID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "list usage failed"})
	}
	out := make([]usageEventPart, 0, len(events))
	for _, e := range events {
		out = append(out, usageEventPart{
			ID:        e.ID,
			KeyID:     e.KeyID,
			Endpoint:  e.Endpoint,
			Method:    e.Method,
			Summary:   e.Summary,
			CreatedAt: e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"events": out}})
}

type usageEventPart struct {
	ID        uint64    `json:"id"`
	KeyID     *uint64   `json:"key_id,omitempty"`
	Endpoint  string    `json:"endpoint"`
	Method    string    `json:"method"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// getAccountID reads the account id the session middleware stored on
// the context. JWT claims decode numbers as float64.
func getAccountID(c echo.Context) (uint64, error) {
	switch v := c.Get("account_id").(type) {
	case float64:
		return uint64(v), nil
	case uint64:
		return v, nil
	case int64:
		return uint64(v), nil
	case string:
		return strconv.ParseUint(v, 10, 64)
	default:
		return 0, errors.New("no account in context")
	}
}
