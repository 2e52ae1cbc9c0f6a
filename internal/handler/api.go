package handler // handler defines http handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unrepo/unrepo-api/internal/auth"
	"github.com/unrepo/unrepo-api/internal/github"
	"github.com/unrepo/unrepo-api/internal/llm"
	"github.com/unrepo/unrepo-api/internal/model"
	"github.com/unrepo/unrepo-api/internal/queue"
	"github.com/unrepo/unrepo-api/internal/quota"
	"github.com/unrepo/unrepo-api/internal/repository"
	queue_publisher "github.com/unrepo/unrepo-api/internal/service"
)

// degradedAnalysisNotice is returned in place of analysis output
// when every provider fails. The request still succeeds: the quota
// unit was consumed when the decision committed, and returning
// nothing at all would be strictly worse for the caller.
const degradedAnalysisNotice = "Analysis is temporarily unavailable. The request was accepted; please retry in a few minutes."

// APIHandler bundles the collaborators behind the research and chat
// endpoints: authentication, quota enforcement, the repository
// fetcher, the analysis provider and the usage ledger. The quota
// decision always commits before any external call is made.
type APIHandler struct {
	Auth     *auth.Authenticator
	Enforcer *quota.Enforcer
	Fetcher  *github.Client
	Analyzer llm.Analyzer
	Usage    *repository.UsageEventRepo
}

func NewAPIHandler(a *auth.Authenticator, e *quota.Enforcer, f *github.Client, an llm.Analyzer, u *repository.UsageEventRepo) *APIHandler {
	if a == nil || e == nil || f == nil || an == nil || u == nil {
		panic("nil dependency passed to NewAPIHandler")
	}
	return &APIHandler{Auth: a, Enforcer: e, Fetcher: f, Analyzer: an, Usage: u}
}

// authenticate resolves the request credential for the expected
// capability: x-api-key takes precedence, x-wallet-address is the
// fallback. The returned principal is threaded explicitly through
// the rest of the request; nothing is stored on the context.
func (h *APIHandler) authenticate(c echo.Context, capability model.Capability) (auth.Principal, error) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if key := c.Request().Header.Get("x-api-key"); key != "" {
		return h.Auth.AuthenticateKey(ctx, key, capability)
	}
	if addr := c.Request().Header.Get("x-wallet-address"); addr != "" {
		return h.Auth.AuthenticateWallet(ctx, addr)
	}
	return auth.Principal{}, auth.ErrNotFound
}

// authError maps the sentinel authentication errors onto a 401
// response; anything else is an internal failure.
func authError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrMalformed):
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "malformed credential"})
	case errors.Is(err, auth.ErrNotFound):
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid or missing credential"})
	case errors.Is(err, auth.ErrInvalidSignature):
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid wallet signature"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "authentication failed"})
	}
}

// quotaDenied renders a 429 carrying the counter that produced the
// decision so callers can self-diagnose.
func quotaDenied(c echo.Context, dec quota.Decision) error {
	return c.JSON(http.StatusTooManyRequests, echo.Map{
		"success": false,
		"error":   dec.Message,
		"usage":   echo.Map{"used": dec.Used, "limit": dec.Limit, "reason": string(dec.Reason)},
	})
}

// usagePayload summarizes the post-decision counters for successful
// responses. Token-holder wallets report unlimited access.
func usagePayload(dec quota.Decision) echo.Map {
	if dec.Unmetered {
		return echo.Map{"used": dec.Used, "limit": dec.Limit, "unlimited": true}
	}
	return echo.Map{"used": dec.Used, "limit": dec.Limit, "remaining": dec.Remaining}
}

// recordUsage appends the ledger row for an accepted call and
// publishes the best-effort analytics copy. A ledger failure is
// logged and swallowed: the analysis already happened and losing an
// audit record must not fail the request. The AMQP publication is
// detached so a slow broker cannot delay the response.
func (h *APIHandler) recordUsage(c echo.Context, p auth.Principal, capability model.Capability, dec quota.Decision, summary string) {
	var (
		accountID uint64
		keyID     *uint64
		walletID  string
	)
	if p.Kind == auth.KindKey {
		accountID = p.Account.ID
		keyID = &p.Key.ID
	} else {
		walletID = p.Wallet.Address
	}
	endpoint := c.Path()
	method := c.Request().Method

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Usage.Record(ctx, accountID, keyID, endpoint, method, summary); err != nil {
		log.Printf("ERROR: ledger: record usage for account=%d wallet=%s: %v", accountID, walletID, err)
	}

	tier := quota.TierFree
	if p.Kind == auth.KindKey {
		tier = quota.ClassifyAccount(*p.Account)
	} else {
		tier = quota.ClassifyWallet(*p.Wallet)
	}
	ev := queue.UsageRecordedEvent{
		AccountID:  accountID,
		KeyID:      keyID,
		Wallet:     walletID,
		Capability: string(capability),
		Endpoint:   endpoint,
		Method:     method,
		Summary:    summary,
		Tier:       tier.String(),
		RecordedAt: time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = queue_publisher.PublishUsageRecorded(bg, ev)
	}()
}
