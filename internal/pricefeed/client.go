package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client fetches USD price and market cap per feed id from a CoinGecko-style
// simple-price endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("pricefeed http %d", e.StatusCode)
	}
	return fmt.Sprintf("pricefeed http %d: %s", e.StatusCode, b)
}

// FetchPrice retrieves the current quote for a single feed id. Non-2xx
// responses become *HTTPError; a payload missing the feed id is a decode
// error either way.
func (c *Client) FetchPrice(ctx context.Context, feedID string) (Quote, error) {
	if strings.TrimSpace(feedID) == "" {
		return Quote{}, fmt.Errorf("feedId is required")
	}

	q := url.Values{}
	q.Set("ids", feedID)
	q.Set("vs_currencies", "usd")
	q.Set("include_market_cap", "true")

	u := c.BaseURL + "/simple/price?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Quote{}, err
	}
	httpReq.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-cg-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return Quote{}, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Quote{}, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	var payload map[string]simplePrice
	if err := json.Unmarshal(body, &payload); err != nil {
		return Quote{}, fmt.Errorf("failed to decode price response: %w", err)
	}

	entry, ok := payload[feedID]
	if !ok {
		return Quote{}, fmt.Errorf("price response missing feed %s", feedID)
	}

	return Quote{PriceUsd: entry.Usd, MarketCapUsd: entry.UsdMarketCap}, nil
}
