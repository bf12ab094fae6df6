// Package providers contains the upstream HTTP clients for geocoding, discovery and pricing.
package providers

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

	"golang.org/x/time/rate"

	"github.com/DeafMist/hotel-radar/internal/apperr"
)

// httpClient performs throttled JSON GETs against one upstream.
type httpClient struct {
	service string
	baseURL string
	headers http.Header
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPClient(service, baseURL string, timeout time.Duration, rps float64, headers http.Header) *httpClient {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &httpClient{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: headers,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// getJSON decodes the response of GET baseURL+path?query into dst.
// 429 becomes a RateLimitError and any other non-2xx a ProviderError.
func (c *httpClient) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: wait for rate limiter: %w", c.service, err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.service, err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return &apperr.ProviderError{Service: c.service, Err: err}
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode == http.StatusTooManyRequests {
		return &apperr.RateLimitError{Service: c.service, RetryAfter: parseRetryAfter(res.Header.Get("Retry-After"))}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &apperr.ProviderError{
			Service: c.service,
			Status:  res.StatusCode,
			Err:     fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		return &apperr.ProviderError{Service: c.service, Status: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func parseRetryAfter(raw string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func formatCoordinate(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}
