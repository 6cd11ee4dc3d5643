package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/palaverhq/palaver/domain"
)

// Client bridges to the external planning engine over JSON/HTTP. The engine's
// internal reasoning is opaque; this adapter only speaks the request/response
// contract.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type acquireRequest struct {
	Intent      string `json:"intent"`
	TokenBudget int    `json:"token_budget"`
}

type acquireResponse struct {
	PlanResult     string               `json:"plan_result"`
	ProposedPlan   *domain.ProposedPlan `json:"proposed_plan,omitempty"`
	ThoughtProcess string               `json:"thought_process,omitempty"`
}

// AcquirePlan asks the engine whether the intent warrants a multi-step plan.
// An unset base URL means no planning engine is deployed; the turn then
// proceeds without plan context.
func (c *Client) AcquirePlan(ctx context.Context, intent string, tokenBudget int) (domain.PlanResult, error) {
	if c.baseURL == "" {
		return domain.PlanResult{}, nil
	}

	body, err := json.Marshal(acquireRequest{Intent: intent, TokenBudget: tokenBudget})
	if err != nil {
		return domain.PlanResult{}, fmt.Errorf("encoding plan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/plans", bytes.NewReader(body))
	if err != nil {
		return domain.PlanResult{}, fmt.Errorf("building plan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.PlanResult{}, fmt.Errorf("calling planning engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.PlanResult{}, fmt.Errorf("planning engine returned %d: %s", resp.StatusCode, raw)
	}

	var decoded acquireResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.PlanResult{}, fmt.Errorf("decoding plan response: %w", err)
	}

	return domain.PlanResult{
		Result:         decoded.PlanResult,
		Proposed:       decoded.ProposedPlan,
		ThoughtProcess: decoded.ThoughtProcess,
	}, nil
}
