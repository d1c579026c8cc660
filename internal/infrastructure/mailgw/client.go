package mailgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apporder "github.com/mallkit/storefront/internal/application/order"
	"github.com/mallkit/storefront/internal/observability"
)

const targetLabel = "mail_gateway"

// Client posts notification requests to the mail gateway service, which
// owns templates and address resolution. Implements the Notifier port.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func New(baseURL, apiKey string, obs observability.Observability) *Client {
	if obs == nil {
		obs = observability.Nop()
	}
	return &Client{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		HTTP:         &http.Client{Timeout: 5 * time.Second},
		reqCounter:   obs.Metrics().Counter(observability.MExternalRequests),
		durHistogram: obs.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

type sendRequest struct {
	UserID   int64          `json:"user_id,omitempty"`
	Staff    bool           `json:"staff,omitempty"`
	Template string         `json:"template"`
	Payload  map[string]any `json:"payload"`
}

type sendResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (c *Client) Send(ctx context.Context, to apporder.Recipients, template string, payload map[string]any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		c.reqCounter.Add(1,
			observability.L("target", targetLabel),
			observability.L("outcome", outcome),
		)
		c.durHistogram.Observe(time.Since(start).Seconds(),
			observability.L("target", targetLabel),
		)
	}()

	body, err := json.Marshal(sendRequest{
		UserID:   to.UserID,
		Staff:    to.Staff,
		Template: template,
		Payload:  payload,
	})
	if err != nil {
		return fmt.Errorf("mailgw: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mailgw: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("mailgw: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mailgw: send returned status %d", resp.StatusCode)
	}
	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("mailgw: decode response: %w", err)
	}
	if out.Code != 0 {
		return fmt.Errorf("mailgw: gateway error %d: %s", out.Code, out.Msg)
	}
	return nil
}
