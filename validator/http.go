/*
http.go - HTTP adapter for the external sell-through validator

PURPOSE:
  Implements assortment.SellthroughValidator against a JSON-over-HTTP
  backend. One POST per candidate, no retry: a transport failure, a
  timeout, or a non-200 status is surfaced as an error and the approval
  gate decides what that means (reject, or degrade to absent).

WIRE FORMAT:
  POST {baseURL}/validate
  Request:  {"store_id": "...", "feature_key": "...", "current_count": 0, "proposed_count": 12}
  Response: {"approved": true, "predicted_rate": 42.5}

SEE ALSO:
  - assortment/validator.go: the interface and its call semantics
  - assortment/approval.go: the only caller
*/
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/warp/assortment-engine/assortment"
)

// DefaultTimeout bounds a single validator call. The gate makes one
// synchronous call per candidate, so a slow backend stalls the run.
const DefaultTimeout = 5 * time.Second

// =============================================================================
// CLIENT
// =============================================================================

// Client calls a remote sell-through validation service.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates an adapter for the validator service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type validateRequest struct {
	StoreID       string `json:"store_id"`
	FeatureKey    string `json:"feature_key"`
	CurrentCount  int    `json:"current_count"`
	ProposedCount int    `json:"proposed_count"`
}

type validateResponse struct {
	Approved      bool    `json:"approved"`
	PredictedRate float64 `json:"predicted_rate"`
}

// =============================================================================
// VALIDATE
// =============================================================================

// Validate performs one request/response call for a single candidate.
func (c *Client) Validate(ctx context.Context, store assortment.StoreID, feature assortment.FeatureKey, currentCount, proposedCount int) (assortment.ValidationResult, error) {
	body, err := json.Marshal(validateRequest{
		StoreID:       string(store),
		FeatureKey:    string(feature),
		CurrentCount:  currentCount,
		ProposedCount: proposedCount,
	})
	if err != nil {
		return assortment.ValidationResult{}, c.wrap(store, feature, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/validate", bytes.NewReader(body))
	if err != nil {
		return assortment.ValidationResult{}, c.wrap(store, feature, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return assortment.ValidationResult{}, c.wrap(store, feature,
			fmt.Errorf("%w: %v", assortment.ErrValidatorUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused; the body is not trusted.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return assortment.ValidationResult{}, c.wrap(store, feature,
			fmt.Errorf("%w: status %d", assortment.ErrValidatorUnavailable, resp.StatusCode))
	}

	var out validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return assortment.ValidationResult{}, c.wrap(store, feature,
			fmt.Errorf("decode validator response: %w", err))
	}

	return assortment.ValidationResult{
		Approved:      out.Approved,
		PredictedRate: out.PredictedRate,
	}, nil
}

func (c *Client) wrap(store assortment.StoreID, feature assortment.FeatureKey, err error) error {
	return &assortment.ExternalValidatorError{StoreID: store, FeatureKey: feature, Err: err}
}
