//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"
)

// Response types are defined locally so the tests only see the wire format.

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type couponResponse struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	IsActive    bool            `json:"isActive"`
	Config      json.RawMessage `json:"configuration"`
}

type applicableResponse struct {
	Coupons []struct {
		CouponID int64   `json:"coupon_id"`
		Code     string  `json:"code"`
		Discount float64 `json:"discount"`
	} `json:"applicable_coupons"`
}

type applyResponse struct {
	Cart struct {
		TotalPrice    float64 `json:"total_price"`
		TotalDiscount float64 `json:"total_discount"`
		FinalPrice    float64 `json:"final_price"`
		Items         []struct {
			ProductID     int64   `json:"product_id"`
			TotalDiscount float64 `json:"total_discount"`
		} `json:"items"`
	} `json:"updated_cart"`
}

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, c.baseURL+path, &payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "coupons",
				"POSTGRES_PASSWORD": "coupons",
				"POSTGRES_DB":       "coupons",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://coupons:coupons@%s:%s/coupons?sslmode=disable", host, port.Port())
}

func startServer(t *testing.T) *client {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := &Config{
		DatabaseURL: startPostgres(t),
		Redis:       RedisConfig{URL: "redis://" + mr.Addr(), CacheTTL: time.Minute},
		RateLimit:   RateLimitConfig{Max: 1000, Window: time.Minute},
		CORS:        CORSConfig{Origins: []string{"*"}},
		Graceful:    GracefulConfig{ShutdownTimeout: 5 * time.Second},
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, zaptest.NewLogger(t), cfg, ln, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	c := &client{baseURL: "http://" + ln.Addr().String(), http: &http.Client{Timeout: 10 * time.Second}}
	require.Eventually(t, func() bool {
		resp, err := c.http.Get(c.baseURL + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 30*time.Second, 100*time.Millisecond)
	return c
}

var sampleCart = map[string]any{
	"cart": map[string]any{
		"items": []map[string]any{
			{"product_id": 1, "quantity": 6, "price": 50},
			{"product_id": 2, "quantity": 3, "price": 30},
			{"product_id": 3, "quantity": 2, "price": 25},
		},
	},
}

func TestServer(t *testing.T) {
	c := startServer(t)

	t.Run("Health", func(t *testing.T) {
		for _, path := range []string{"/livez", "/readyz"} {
			resp := c.do(t, http.MethodGet, path, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, path)
			assert.Equal(t, "ok", decode[healthResponse](t, resp).Status, path)
		}
	})

	t.Run("RequestID", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, c.baseURL+"/livez", nil)
		require.NoError(t, err)
		req.Header.Set("X-Request-ID", "custom-request-id-12345")
		resp, err := c.http.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "custom-request-id-12345", resp.Header.Get("X-Request-ID"))
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, c.baseURL+"/coupons", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err := c.http.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Less(t, resp.StatusCode, 300)
		assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})

	ids := make(map[string]int64)
	t.Run("CreateCoupons", func(t *testing.T) {
		for _, body := range []map[string]any{
			{
				"code": "CART10", "type": "CART_WISE", "description": "10% off over 100",
				"configuration": map[string]any{"threshold": 100, "discount": 10},
			},
			{
				"code": "P1OFF20", "type": "PRODUCT_WISE",
				"configuration": map[string]any{"productId": 1, "discount": 20},
			},
			{
				"code": "B3G1", "type": "BXGY",
				"details": map[string]any{
					"buyProducts":     []map[string]any{{"productId": 1, "quantity": 3}},
					"getProducts":     []map[string]any{{"productId": 3, "quantity": 1}},
					"repetitionLimit": 2,
				},
			},
		} {
			resp := c.do(t, http.MethodPost, "/coupons", body)
			require.Equal(t, http.StatusCreated, resp.StatusCode, body["code"])
			created := decode[couponResponse](t, resp)
			assert.True(t, created.IsActive)
			ids[created.Code] = created.ID
		}
		require.Len(t, ids, 3)

		resp := c.do(t, http.MethodPost, "/coupons", map[string]any{
			"code": "CART10", "type": "CART_WISE",
			"configuration": map[string]any{"threshold": 1, "discount": 1},
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "duplicate_code", decode[errorResponse](t, resp).Error)
	})

	t.Run("ListCoupons", func(t *testing.T) {
		resp := c.do(t, http.MethodGet, "/coupons", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, decode[[]couponResponse](t, resp), 3)
	})

	t.Run("ApplicableCoupons", func(t *testing.T) {
		resp := c.do(t, http.MethodPost, "/applicable-coupons", sampleCart)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := make(map[string]float64)
		for _, ac := range decode[applicableResponse](t, resp).Coupons {
			got[ac.Code] = ac.Discount
		}
		assert.Equal(t, map[string]float64{"CART10": 44, "P1OFF20": 60, "B3G1": 50}, got)
	})

	t.Run("ApplyCoupon", func(t *testing.T) {
		resp := c.do(t, http.MethodPost, fmt.Sprintf("/apply-coupon/%d", ids["B3G1"]), sampleCart)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		cart := decode[applyResponse](t, resp).Cart
		assert.Equal(t, 440.0, cart.TotalPrice)
		assert.Equal(t, 50.0, cart.TotalDiscount)
		assert.Equal(t, 390.0, cart.FinalPrice)
		require.Len(t, cart.Items, 3)
		assert.Equal(t, 50.0, cart.Items[2].TotalDiscount)
	})

	t.Run("DeactivatedCouponIsNotApplicable", func(t *testing.T) {
		resp := c.do(t, http.MethodPut, fmt.Sprintf("/coupons/%d", ids["CART10"]), map[string]any{"isActive": false})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, decode[couponResponse](t, resp).IsActive)

		resp = c.do(t, http.MethodPost, "/applicable-coupons", sampleCart)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		for _, ac := range decode[applicableResponse](t, resp).Coupons {
			assert.NotEqual(t, "CART10", ac.Code)
		}

		resp = c.do(t, http.MethodPost, fmt.Sprintf("/apply-coupon/%d", ids["CART10"]), sampleCart)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_coupon", decode[errorResponse](t, resp).Error)
	})

	t.Run("DeleteCoupon", func(t *testing.T) {
		path := fmt.Sprintf("/coupons/%d", ids["P1OFF20"])
		resp := c.do(t, http.MethodDelete, path, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = c.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "not_found", decode[errorResponse](t, resp).Error)
	})

	t.Run("RateLimitHeaders", func(t *testing.T) {
		resp := c.do(t, http.MethodGet, "/coupons", nil)
		assert.Equal(t, "1000", resp.Header.Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
	})
}
