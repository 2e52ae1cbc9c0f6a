// Package wallet implements wallet registration, signature
// verification and the token-holder oracle integration.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HolderStatus is the oracle's verdict for one address.
type HolderStatus struct {
	IsTokenHolder bool    `json:"isTokenHolder"`
	Balance       float64 `json:"tokenBalance"`
	Threshold     float64 `json:"threshold"`
}

// TokenOracle answers whether an address holds a token balance above
// the configured threshold. Implementations may be slow or fail;
// callers never block a quota decision on this interface. Results
// are cached onto the wallet row and allowed to go stale.
type TokenOracle interface {
	VerifyHolder(ctx context.Context, address string) (HolderStatus, error)
}

// HTTPOracle queries a balance endpoint over HTTP. The endpoint is
// expected to respond with {"balance": <number>} for
// GET <endpoint>?address=<address>.
type HTTPOracle struct {
	endpoint  string
	threshold float64
	client    *http.Client
}

// NewHTTPOracle builds an oracle against the given balance endpoint.
func NewHTTPOracle(endpoint string, threshold float64) *HTTPOracle {
	return &HTTPOracle{
		endpoint:  endpoint,
		threshold: threshold,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// VerifyHolder fetches the current balance for address and compares
// it against the threshold.
func (o *HTTPOracle) VerifyHolder(ctx context.Context, address string) (HolderStatus, error) {
	u := o.endpoint + "?address=" + url.QueryEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return HolderStatus{}, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return HolderStatus{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return HolderStatus{}, fmt.Errorf("oracle: unexpected status %d", resp.StatusCode)
	}
	var body struct {
		Balance float64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return HolderStatus{}, fmt.Errorf("oracle: decode response: %w", err)
	}
	return HolderStatus{
		IsTokenHolder: body.Balance >= o.threshold,
		Balance:       body.Balance,
		Threshold:     o.threshold,
	}, nil
}
