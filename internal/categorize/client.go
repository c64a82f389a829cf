package categorize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

var _ Categorizer = (*Client)(nil)

// Client calls a managed inference endpoint over plain HTTP JSON.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
	logger   *slog.Logger
}

func NewClient(endpoint, apiKey, model string, logger *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		// Inference calls are slow; cap them well below the router's
		// request timeout so the handler can still answer.
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

type inferenceRequest struct {
	Model       string   `json:"model"`
	Merchant    string   `json:"merchant"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
}

type inferenceResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

func (c *Client) Categorize(ctx context.Context, in Input) (Suggestion, error) {
	allowed := make([]string, 0, len(Categories()))
	for _, cat := range Categories() {
		allowed = append(allowed, string(cat))
	}

	payload, err := json.Marshal(inferenceRequest{
		Model:       c.model,
		Merchant:    in.Merchant,
		Description: in.Description,
		Categories:  allowed,
	})
	if err != nil {
		return Suggestion{}, fmt.Errorf("failed to marshal inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Suggestion{}, fmt.Errorf("failed to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Suggestion{}, fmt.Errorf("inference call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Suggestion{}, fmt.Errorf("inference endpoint returned status %d", resp.StatusCode)
	}

	var out inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Suggestion{}, fmt.Errorf("failed to decode inference response: %w", err)
	}

	category, ok := ParseCategory(out.Category)
	if !ok {
		// Models drift. An off-list answer becomes "other" with
		// reduced confidence instead of a failed request.
		c.logger.WarnContext(ctx, "Model returned unknown category, coercing to other",
			"category", out.Category,
		)
		return Suggestion{
			Category:   CategoryOther,
			Confidence: out.Confidence / 2,
			Rationale:  out.Rationale,
		}, nil
	}

	return Suggestion{
		Category:   category,
		Confidence: out.Confidence,
		Rationale:  out.Rationale,
	}, nil
}
