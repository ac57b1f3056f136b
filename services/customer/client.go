package customer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultPageSize  = 100
	rateLimitBackoff = 2 * time.Second
	maxBodyBytes     = 16 << 20
)

// Client reads the commerce platform REST API. Every failure mode (transport
// error, timeout, non-200, 429, malformed body, success=false) is reported as
// ok=false so callers can treat it as the end of the data.
type Client struct {
	BaseURL string
	APIKey  string
	StoreID string

	HTTPClient *http.Client
	Backoff    time.Duration

	tracer trace.Tracer
}

func NewClient(baseURL, apiKey, storeID string, timeout time.Duration, tracer trace.Tracer) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		StoreID:    storeID,
		HTTPClient: &http.Client{Timeout: timeout},
		Backoff:    rateLimitBackoff,
		tracer:     tracer,
	}
}

func (c *Client) Customers(ctx context.Context, page, pageSize int) (Page[Record], bool) {
	var out Page[Record]
	ok := c.get(ctx, fmt.Sprintf("stores/%s/customers", c.StoreID), page, pageSize, &out)
	return out, ok
}

func (c *Client) SearchOrders(ctx context.Context, email string, page int) (Page[Order], bool) {
	var out Page[Order]
	endpoint := fmt.Sprintf("stores/%s/orders/search/%s", c.StoreID, url.PathEscape(email))
	ok := c.get(ctx, endpoint, page, DefaultPageSize, &out)
	return out, ok
}

func (c *Client) get(ctx context.Context, endpoint string, page, pageSize int, out any) bool {
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "commerce.get", trace.WithAttributes(
			attribute.String("commerce.endpoint", endpoint),
			attribute.Int("commerce.page", page),
		))
		defer span.End()
	}

	zapLog := zap.L().With(zap.String("endpoint", endpoint), zap.Int("page", page))

	q := url.Values{}
	q.Set("Page", strconv.Itoa(page))
	q.Set("PageSize", strconv.Itoa(pageSize))
	u := fmt.Sprintf("%s/%s?%s", c.BaseURL, endpoint, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		zapLog.Warn("[Commerce] failed to build request", zap.Error(err))
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "storefront-bot/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		zapLog.Warn("[Commerce] request failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		zapLog.Warn("[Commerce] rate limited, backing off", zap.Duration("backoff", c.Backoff))
		select {
		case <-time.After(c.Backoff):
		case <-ctx.Done():
		}
		return false
	case resp.StatusCode != http.StatusOK:
		zapLog.Warn("[Commerce] unexpected status", zap.Int("status", resp.StatusCode))
		return false
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "json") && !strings.Contains(ct, "text/plain") {
		zapLog.Warn("[Commerce] unexpected content type", zap.String("content_type", ct))
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		zapLog.Warn("[Commerce] failed to read body", zap.Error(err))
		return false
	}

	var envelope struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || !envelope.Success {
		zapLog.Warn("[Commerce] unsuccessful response", zap.Error(err))
		return false
	}

	if err := json.Unmarshal(body, out); err != nil {
		zapLog.Warn("[Commerce] malformed payload", zap.Error(err))
		return false
	}
	return true
}
