package handler

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/unrepo/unrepo-api/internal/repository"
)

// BillingHandler turns Stripe webhook deliveries into the
// payment_verified flag on an account. That flag is one of the two
// inputs to tier classification; nothing else in the quota core knows
// Stripe exists.
type BillingHandler struct {
	Accounts      *repository.AccountRepo
	WebhookSecret string
}

func NewBillingHandler(accounts *repository.AccountRepo, secret string) *BillingHandler {
	return &BillingHandler{Accounts: accounts, WebhookSecret: secret}
}

// Webhook handles POST /v1/billing/webhook. Stripe retries on
// non-2xx, so unknown event types are acknowledged, not rejected.
func (h *BillingHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<16))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "read body failed"})
	}
	event, err := webhook.ConstructEvent(payload, c.Request().Header.Get("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid webhook signature"})
	}

	switch event.Type {
	case "checkout.session.completed", "invoice.payment_succeeded":
		accountID, err := accountIDFromEvent(event)
		if err != nil {
			log.Printf("WARN: billing: %s without usable account reference: %v", event.Type, err)
			break
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := h.Accounts.SetPaymentVerified(ctx, accountID, true); err != nil {
			log.Printf("ERROR: billing: mark account %d verified: %v", accountID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "update failed"})
		}
		log.Printf("INFO: billing: account %d payment verified via %s", accountID, event.Type)
	default:
		// Acknowledged and ignored.
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "received": true})
}

// accountIDFromEvent digs the account id out of the checkout-session
// metadata, where the payment link is expected to place it.
func accountIDFromEvent(event stripe.Event) (uint64, error) {
	var obj struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return 0, err
	}
	return strconv.ParseUint(obj.Metadata["account_id"], 10, 64)
}
