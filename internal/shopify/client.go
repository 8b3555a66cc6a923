// =============================================================================
// shopinvoice - Shopify Admin API Client
// =============================================================================
//
// A small REST client for the Shopify Admin API. It covers exactly what the
// sync needs: paginated collection reads and per-order sub-resource reads.
//
// RATE LIMITING:
//   Every request first waits on a token bucket (golang.org/x/time/rate)
//   sized from shopify.requests_per_second. Requests that still come back
//   throttled (429) or fail server side are retried with a growing wait.
//
// PAGINATION:
//   Shopify uses cursor pagination. The cursor for the next page is the
//   page_info parameter of the rel="next" URL in the Link response header.
//   Follow-up page requests may only carry limit, page_info and fields.
//
// =============================================================================

package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/shopinvoice/shopinvoice/internal/config"
	"github.com/shopinvoice/shopinvoice/internal/types"
)

// ErrRetriesExhausted is returned when a request still fails after the
// configured number of attempts.
var ErrRetriesExhausted = errors.New("retries exhausted")

// StatusError reports an unsuccessful API response.
type StatusError struct {
	URL        string
	Attempts   int
	StatusCode int
	Reason     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d unsuccessful requests from %s. Error code %d, reason: %s",
		e.Attempts, e.URL, e.StatusCode, e.Reason)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one shop's Admin API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	key         string
	password    string
	limiter     *rate.Limiter
	pageLimit   int
	retryLimit  int
	retryWait   time.Duration
	retryFactor float64
	logger      *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, e.g. a test server.
// The URL must end with a slash.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a client for the store's Admin API.
//
// PARAMETERS:
//   - store: Shop name, the subdomain of myshopify.com
//   - cfg: API credentials, version, paging and retry settings
//   - logger: Receives retry messages
//   - opts: Optional overrides
//
// RETURNS:
//   - *Client: A ready client
func NewClient(store string, cfg config.ShopifyConfig, logger *slog.Logger, opts ...Option) *Client {
	burst := int(math.Ceil(cfg.RequestsPerSecond))
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     fmt.Sprintf("https://%s.myshopify.com/admin/api/%s/", store, cfg.APIVersion),
		key:         cfg.Key,
		password:    cfg.Password,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		pageLimit:   cfg.PageLimit,
		retryLimit:  cfg.RetryLimit,
		retryWait:   cfg.RetryWait,
		retryFactor: cfg.RetryFactor,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListQuery narrows a collection read.
type ListQuery struct {
	// CreatedAtMin and CreatedAtMax bound the creation date. Zero means open.
	CreatedAtMin time.Time
	CreatedAtMax time.Time

	// AnyStatus sends status=any so closed and cancelled records are included.
	// Products do not accept the parameter.
	AnyStatus bool
}

// fetchAll reads every page of a collection and hands each page to handle.
//
// PARAMETERS:
//   - resource: Collection path, e.g. "orders.json"
//   - key: Top-level JSON key holding the records, e.g. "orders"
//   - fields: Fields to request
//   - query: Filters applied to the first page
//   - handle: Called once per non-empty page
func fetchAll[T any](ctx context.Context, c *Client, resource, key string, fields []string, query ListQuery, handle func([]T) error) error {
	pageInfo := ""
	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(c.pageLimit))
		params.Set("fields", strings.Join(fields, ","))
		if pageInfo != "" {
			params.Set("page_info", pageInfo)
		} else {
			if query.AnyStatus {
				params.Set("status", "any")
			}
			if !query.CreatedAtMin.IsZero() {
				params.Set("created_at_min", query.CreatedAtMin.Format(types.DateLayout))
			}
			if !query.CreatedAtMax.IsZero() {
				params.Set("created_at_max", query.CreatedAtMax.Format(types.DateLayout))
			}
		}

		body, header, err := c.get(ctx, resource, params)
		if err != nil {
			return err
		}

		var records []T
		if err := decodeEnvelope(body, key, &records); err != nil {
			return fmt.Errorf("failed to decode %s: %w", resource, err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := handle(records); err != nil {
			return err
		}

		pageInfo = nextPageInfo(header.Get("Link"))
		if pageInfo == "" {
			return nil
		}
	}
}

// fetchOrderResource reads a sub-resource of one order, such as its
// transactions or refunds.
func fetchOrderResource[T any](ctx context.Context, c *Client, orderID int64, key string, fields []string) ([]T, error) {
	resource := fmt.Sprintf("orders/%d/%s.json", orderID, key)
	params := url.Values{}
	params.Set("fields", strings.Join(fields, ","))

	body, _, err := c.get(ctx, resource, params)
	if err != nil {
		return nil, err
	}

	var records []T
	if err := decodeEnvelope(body, key, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", resource, err)
	}
	return records, nil
}

// decodeEnvelope extracts the records under key. A missing key yields no
// records.
func decodeEnvelope(body []byte, key string, out interface{}) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return err
	}
	raw, ok := envelope[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// =============================================================================
// REQUESTS
// =============================================================================

// get performs a GET with rate limiting and retries.
func (c *Client) get(ctx context.Context, resource string, params url.Values) ([]byte, http.Header, error) {
	target := c.baseURL + resource
	wait := c.retryWait

	var lastErr error
	for attempt := 1; attempt <= c.retryLimit; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}

		body, header, err := c.do(ctx, target, params)
		if err == nil {
			return body, header, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			statusErr.Attempts = attempt
			if !retryable(statusErr.StatusCode) {
				return nil, nil, statusErr
			}
		} else if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		lastErr = err

		if attempt == c.retryLimit {
			break
		}

		c.logger.Info("Unsuccessful request (api limit reached?), retrying",
			"url", target,
			"attempt", attempt,
			"wait", wait.Round(time.Millisecond).String(),
			"error", err,
		)
		if err := sleep(ctx, wait); err != nil {
			return nil, nil, err
		}
		wait = time.Duration(float64(wait) * c.retryFactor)
	}

	var statusErr *StatusError
	if errors.As(lastErr, &statusErr) {
		return nil, nil, fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
	}
	return nil, nil, fmt.Errorf("%w: %d unsuccessful requests from %s: %w",
		ErrRetriesExhausted, c.retryLimit, target, lastErr)
}

// do performs a single request. Non-200 responses become *StatusError.
func (c *Client) do(ctx context.Context, target string, params url.Values) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.URL.RawQuery = params.Encode()
	req.SetBasicAuth(c.key, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, &StatusError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Reason:     http.StatusText(resp.StatusCode),
		}
	}
	return body, resp.Header, nil
}

// retryable reports whether a response status may succeed on a later try.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nextPageInfo returns the page_info cursor of the rel="next" link, or ""
// on the last page.
//
// Example header:
//
//	<https://shop.myshopify.com/admin/api/2021-04/orders.json?limit=250&page_info=abc>; rel="next"
func nextPageInfo(link string) string {
	for _, part := range strings.Split(link, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		isNext := false
		for _, attr := range segments[1:] {
			if strings.TrimSpace(attr) == `rel="next"` {
				isNext = true
			}
		}
		if !isNext {
			continue
		}
		raw := strings.Trim(strings.TrimSpace(segments[0]), "<>")
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		return u.Query().Get("page_info")
	}
	return ""
}
