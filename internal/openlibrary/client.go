// Package openlibrary is a read-only client for the OpenLibrary catalog API.
package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mrlokans/readstack/internal/config"
)

const userAgent = "Readstack/1.0 (https://github.com/mrlokans/readstack)"

// Client fetches search results, work details and subject listings.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a catalog client. A non-positive rate limit disables
// client-side throttling.
func NewClient(cfg config.Catalog, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultCatalogBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(limit, burst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs a free-text catalog search.
func (c *Client) Search(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp SearchResponse
	if err := c.getJSON(ctx, "/search.json", params, &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return &resp, nil
}

// WorkDetails fetches a single work. The key may be given as "OL123W",
// "works/OL123W" or "/works/OL123W".
func (c *Client) WorkDetails(ctx context.Context, workKey string) (*WorkDetail, error) {
	key := NormalizeWorkKey(workKey)
	if key == "" {
		return nil, fmt.Errorf("work key is required")
	}

	var detail WorkDetail
	path := "/works/" + url.PathEscape(WorkID(key)) + ".json"
	if err := c.getJSON(ctx, path, nil, &detail); err != nil {
		return nil, fmt.Errorf("fetch work %s: %w", key, err)
	}
	if detail.Key == "" {
		detail.Key = key
	}
	return &detail, nil
}

// Subject lists works filed under a subject.
func (c *Client) Subject(ctx context.Context, subject string, limit, offset int) (*SubjectResponse, error) {
	slug := SubjectSlug(subject)
	if slug == "" {
		return nil, fmt.Errorf("subject is required")
	}

	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}

	var resp SubjectResponse
	if err := c.getJSON(ctx, "/subjects/"+url.PathEscape(slug)+".json", params, &resp); err != nil {
		return nil, fmt.Errorf("fetch subject %s: %w", slug, err)
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return classifyTransportError(ctx, err)
	}

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return &DecodeError{Err: err}
	}
	return nil
}

// NormalizeWorkKey returns the canonical "/works/<ID>" form of a work key,
// or "" when no ID is present.
func NormalizeWorkKey(key string) string {
	id := WorkID(key)
	if id == "" {
		return ""
	}
	return "/works/" + id
}

// WorkID strips any "/works/" prefix from a work key.
func WorkID(key string) string {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "/")
	key = strings.TrimPrefix(key, "works/")
	return strings.Trim(key, "/")
}

// SubjectSlug lowercases a subject and replaces spaces with underscores.
func SubjectSlug(subject string) string {
	subject = strings.ToLower(strings.TrimSpace(subject))
	return strings.Join(strings.Fields(subject), "_")
}
