package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopinvoice/shopinvoice/internal/config"
	"github.com/shopinvoice/shopinvoice/internal/logging"
)

func testConfig() config.ShopifyConfig {
	return config.ShopifyConfig{
		Key:               "key",
		Password:          "secret",
		APIVersion:        "2021-04",
		PageLimit:         2,
		RetryLimit:        3,
		RetryWait:         time.Millisecond,
		RetryFactor:       1.5,
		RequestsPerSecond: 1000,
		Timeout:           5 * time.Second,
	}
}

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("lillesky", testConfig(), logging.Discard(),
		WithBaseURL(server.URL+"/"),
		WithHTTPClient(server.Client()),
	)
}

func TestNewClient_BaseURL(t *testing.T) {
	c := NewClient("lillesky", testConfig(), logging.Discard())
	assert.Equal(t, "https://lillesky.myshopify.com/admin/api/2021-04/", c.baseURL)
}

func TestNewClient_Options(t *testing.T) {
	assert.Equal(t, 5*time.Second, NewClient("lillesky", testConfig(), logging.Discard()).httpClient.Timeout)

	hc := &http.Client{}
	c := NewClient("lillesky", testConfig(), logging.Discard(),
		WithHTTPClient(hc),
		WithBaseURL("http://localhost:8080/"),
	)
	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, "http://localhost:8080/", c.baseURL)
}

func TestFetchAll_FollowsPageInfo(t *testing.T) {
	var requests []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)

		q := r.URL.Query()
		requests = append(requests, r.URL.RawQuery)
		switch q.Get("page_info") {
		case "":
			assert.Equal(t, "any", q.Get("status"))
			assert.Equal(t, "2021-05-01", q.Get("created_at_min"))
			assert.Equal(t, "2021-05-31", q.Get("created_at_max"))
			w.Header().Set("Link", fmt.Sprintf(`<http://%s/orders.json?limit=2&page_info=page2>; rel="next"`, r.Host))
			fmt.Fprint(w, `{"orders":[{"id":1,"name":"#1001"},{"id":2,"name":"#1002"}]}`)
		case "page2":
			assert.Empty(t, q.Get("status"))
			assert.Empty(t, q.Get("created_at_min"))
			assert.Equal(t, "2", q.Get("limit"))
			assert.Equal(t, "id,name", q.Get("fields"))
			w.Header().Set("Link", fmt.Sprintf(`<http://%s/orders.json?limit=2&page_info=page1>; rel="previous"`, r.Host))
			fmt.Fprint(w, `{"orders":[{"id":3,"name":"#1003"}]}`)
		default:
			t.Errorf("unexpected page_info %q", q.Get("page_info"))
		}
	})
	c := testClient(t, handler)

	query := ListQuery{
		CreatedAtMin: time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC),
		CreatedAtMax: time.Date(2021, 5, 31, 0, 0, 0, 0, time.UTC),
		AnyStatus:    true,
	}
	var names []string
	err := fetchAll(context.Background(), c, "orders.json", "orders", []string{"id", "name"}, query,
		func(page []order) error {
			for _, o := range page {
				names = append(names, o.Name)
			}
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, []string{"#1001", "#1002", "#1003"}, names)
	assert.Len(t, requests, 2)
}

func TestFetchAll_StopsOnEmptyPage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/products.json?page_info=next>; rel="next"`, r.Host))
		fmt.Fprint(w, `{"products":[]}`)
	})
	c := testClient(t, handler)

	calls := 0
	err := fetchAll(context.Background(), c, "products.json", "products", productFields, ListQuery{},
		func(page []product) error {
			calls++
			return nil
		})

	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestGet_RetriesThrottledRequests(t *testing.T) {
	var attempts int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"transactions":[{"id":9,"kind":"sale"}]}`)
	})
	c := testClient(t, handler)

	got, err := fetchOrderResource[transaction](context.Background(), c, 7, "transactions", transactionFields)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestGet_RetriesExhausted(t *testing.T) {
	var attempts int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := testClient(t, handler)

	_, err := fetchOrderResource[refund](context.Background(), c, 7, "refunds", refundFields)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, 3, statusErr.Attempts)
	assert.Contains(t, err.Error(), "3 unsuccessful requests from")
	assert.Contains(t, err.Error(), "orders/7/refunds.json")
	assert.Contains(t, err.Error(), "reason: Service Unavailable")
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := testClient(t, handler)

	_, err := fetchOrderResource[refund](context.Background(), c, 7, "refunds", refundFields)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestGet_CancelledWhileWaiting(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	cfg := testConfig()
	cfg.RetryWait = time.Hour
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := NewClient("lillesky", cfg, logging.Discard(), WithBaseURL(server.URL+"/"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fetchOrderResource[refund](ctx, c, 7, "refunds", refundFields)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNextPageInfo(t *testing.T) {
	tests := []struct {
		name string
		link string
		want string
	}{
		{name: "empty", link: "", want: ""},
		{
			name: "next only",
			link: `<https://shop.myshopify.com/admin/api/2021-04/orders.json?limit=250&page_info=abc>; rel="next"`,
			want: "abc",
		},
		{
			name: "previous and next",
			link: `<https://shop.myshopify.com/admin/api/2021-04/orders.json?page_info=prev>; rel="previous", ` +
				`<https://shop.myshopify.com/admin/api/2021-04/orders.json?page_info=nxt>; rel="next"`,
			want: "nxt",
		},
		{
			name: "previous only",
			link: `<https://shop.myshopify.com/admin/api/2021-04/orders.json?page_info=prev>; rel="previous"`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextPageInfo(tt.link))
		})
	}
}
