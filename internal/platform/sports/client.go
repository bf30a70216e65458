// Package sports implements schedule providers for the supported leagues.
// Each provider returns games for one UTC calendar day with kickoff times in
// UTC; local-date filtering is done by the caller.
package sports

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vmarket/vmarket/internal/domain"
)

// Default API roots.
const (
	DefaultNBABaseURL        = "https://api-nba-v1.p.rapidapi.com"
	DefaultNFLBaseURL        = "https://api-american-football.p.rapidapi.com"
	DefaultSportMonksBaseURL = "https://api.sportmonks.com/v3/football"
)

// restClient is the shared GET plumbing for every provider.
type restClient struct {
	name       string
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	logger     *slog.Logger

	limiter     domain.RateLimiter
	limit       int
	limitWindow time.Duration
}

func newRESTClient(name, baseURL string, headers map[string]string) restClient {
	return restClient{
		name:    name,
		baseURL: baseURL,
		headers: headers,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default().With(slog.String("component", "sports"), slog.String("provider", name)),
	}
}

// SetLogger replaces the logger used to report skipped games.
func (c *restClient) SetLogger(l *slog.Logger) {
	c.logger = l.With(slog.String("component", "sports"), slog.String("provider", c.name))
}

// skipGame logs a game the provider returned in an unusable shape. The rest
// of the day is still returned.
func (c *restClient) skipGame(ctx context.Context, gameID, reason string) {
	c.logger.WarnContext(ctx, "invalid game skipped",
		slog.String("game_id", gameID),
		slog.String("reason", reason),
	)
}

// SetRateLimiter makes every request wait for a slot in a shared window
// keyed by the provider name.
func (c *restClient) SetRateLimiter(l domain.RateLimiter, limit int, window time.Duration) {
	c.limiter = l
	c.limit = limit
	c.limitWindow = window
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *restClient) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

func (c *restClient) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.limiter != nil && c.limit > 0 {
		if err := c.limiter.Wait(ctx, "sports:"+c.name, c.limit, c.limitWindow); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	if len(bodyStr) > 256 {
		bodyStr = bodyStr[:256]
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
