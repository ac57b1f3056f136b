package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront-bot/pkg/errutil"

	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout = 30 * time.Second
	userAgent      = "WEAO-3PService"
	maxBodyBytes   = 4 << 20
)

// Entry is one product as reported by the status API.
type Entry struct {
	Title        string `json:"title"`
	Version      string `json:"version"`
	UpdateStatus bool   `json:"updateStatus"`
	Updated      string `json:"updatedDate,omitempty"`
	Detected     bool   `json:"detected,omitempty"`
	Platform     string `json:"platform,omitempty"`
}

type Client struct {
	URL        string
	HTTPClient *http.Client
	tracer     trace.Tracer
}

func NewClient(url string, tracer trace.Tracer) *Client {
	return &Client{URL: url, HTTPClient: &http.Client{Timeout: DefaultTimeout}, tracer: tracer}
}

func (c *Client) Fetch(ctx context.Context) ([]Entry, error) {
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "status.fetch")
		defer span.End()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errutil.Unavailable("status service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errutil.Unavailable("status service unavailable", fmt.Errorf("status api returned %d", resp.StatusCode))
	}

	var entries []Entry
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&entries); err != nil {
		return nil, errutil.BadGateway("status service sent an invalid response", err)
	}
	return entries, nil
}
