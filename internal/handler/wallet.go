package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unrepo/unrepo-api/internal/auth"
	"github.com/unrepo/unrepo-api/internal/model"
	"github.com/unrepo/unrepo-api/internal/repository"
	"github.com/unrepo/unrepo-api/internal/wallet"
)

// WalletHandler exposes wallet registration, the usage snapshot, the
// registration-status lookup and the on-demand token-holder refresh.
type WalletHandler struct {
	Service *wallet.Service
	Wallets *repository.WalletRepo
}

func NewWalletHandler(svc *wallet.Service, wallets *repository.WalletRepo) *WalletHandler {
	return &WalletHandler{Service: svc, Wallets: wallets}
}

type walletRegisterReq struct {
	Address   string `json:"walletAddress"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

// Register handles POST /v1/wallet/register. Re-registering an
// existing address returns its current state with counters intact.
func (h *WalletHandler) Register(c echo.Context) error {
	var req walletRegisterReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	w, err := h.Service.Register(ctx, req.Address, req.Signature, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMalformed):
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "walletAddress must be 64 hex characters"})
		case errors.Is(err, auth.ErrInvalidSignature):
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid wallet signature"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "wallet registration failed"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": walletPayload(w)})
}

type walletLookupReq struct {
	Address string `json:"walletAddress"`
	Type    string `json:"type"` // optional capability filter for Usage
}

// Usage handles POST /v1/wallet/usage: current counters without
// consuming anything. When "type" is given only that capability's
// counters are returned.
func (h *WalletHandler) Usage(c echo.Context) error {
	var req walletLookupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	addr, err := auth.ValidateAddress(req.Address)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "walletAddress must be 64 hex characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	w, err := h.Wallets.GetByAddress(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "wallet not registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "lookup failed"})
	}

	if req.Type != "" {
		capability, err := auth.ParseCapability(req.Type)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "type must be RESEARCH or CHATBOT"})
		}
		used, limit := w.Usage(capability)
		return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{
			"walletAddress":   w.Address,
			"type":            string(capability),
			"used":            used,
			"limit":           limit,
			"is_token_holder": w.IsTokenHolder,
		}})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": walletPayload(w)})
}

// Validate handles POST /v1/wallet/validate: whether the address is
// registered and verified. No counter is read or advanced.
func (h *WalletHandler) Validate(c echo.Context) error {
	var req walletLookupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	addr, err := auth.ValidateAddress(req.Address)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "walletAddress must be 64 hex characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	w, err := h.Wallets.GetByAddress(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{
				"walletAddress": addr,
				"registered":    false,
				"verified":      false,
			}})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{
		"walletAddress":   w.Address,
		"registered":      true,
		"verified":        w.IsVerified,
		"is_token_holder": w.IsTokenHolder,
	}})
}

// VerifyTokens handles POST /v1/wallet/verify-tokens: consult the
// oracle now and persist the verdict.
func (h *WalletHandler) VerifyTokens(c echo.Context) error {
	var req walletLookupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	w, err := h.Service.RefreshTokenStatus(ctx, req.Address)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMalformed):
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "walletAddress must be 64 hex characters"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "wallet not registered"})
		default:
			return c.JSON(http.StatusBadGateway, echo.Map{"success": false, "error": "token verification unavailable"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": walletPayload(w)})
}

func walletPayload(w model.Wallet) echo.Map {
	return echo.Map{
		"walletAddress":   w.Address,
		"is_verified":     w.IsVerified,
		"is_token_holder": w.IsTokenHolder,
		"token_balance":   w.TokenBalance,
		"research": echo.Map{
			"used":  w.ResearchUsed,
			"limit": w.ResearchLimit,
		},
		"chat": echo.Map{
			"used":  w.ChatUsed,
			"limit": w.ChatLimit,
		},
		"last_token_check": w.LastTokenCheck,
		"created_at":       w.CreatedAt,
	}
}
