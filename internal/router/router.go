package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/unrepo/unrepo-api/internal/handler"
	"github.com/unrepo/unrepo-api/internal/middleware"
)

// Handlers carries everything the route table needs. Grouping them in
// one struct keeps main's wiring to a single call.
type Handlers struct {
	API     *handler.APIHandler
	Keys    *handler.KeysHandler
	Account *handler.AccountHandler
	Wallet  *handler.WalletHandler
	Billing *handler.BillingHandler
	Health  echo.HandlerFunc
}

// Register wires the full route table onto the Echo instance.
//
// Three authentication regimes coexist:
//   - /v1/research and /v1/chat authenticate per request by API key
//     or wallet address inside the handler; no middleware here.
//   - key issuance, wallet endpoints and the billing webhook are open
//     (the webhook verifies its own Stripe signature).
//   - key management and usage history require a dashboard session
//     token issued by /v1/auth/login.
func Register(e *echo.Echo, h Handlers, jwtSecret string) {
	e.GET("/healthz", h.Health)

	// Analysis endpoints: credential headers, quota, then work.
	e.POST("/v1/research", h.API.Research)
	e.POST("/v1/chat", h.API.Chat)

	// Open key issuance; the token is returned exactly once.
	e.POST("/v1/keys", h.Keys.Issue)

	w := e.Group("/v1/wallet")
	w.POST("/register", h.Wallet.Register)
	w.POST("/usage", h.Wallet.Usage)
	w.POST("/validate", h.Wallet.Validate)
	w.POST("/verify-tokens", h.Wallet.VerifyTokens)

	e.POST("/v1/billing/webhook", h.Billing.Webhook)

	a := e.Group("/v1/auth")
	a.POST("/register", h.Account.Register)
	a.POST("/login", h.Account.Login)

	// Dashboard endpoints behind the session token.
	session := e.Group("/v1", middleware.SessionAuth(jwtSecret))
	session.GET("/keys", h.Keys.List)
	session.DELETE("/keys/:id", h.Keys.Deactivate)
	session.GET("/usage", h.Account.UsageHistory)
}
