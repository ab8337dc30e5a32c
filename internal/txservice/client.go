// Package txservice talks to the Safe transaction service notification
// endpoints.
package txservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/safe-mobile/safe-push/internal/logger"
	"github.com/safe-mobile/safe-push/pkg/address"
	apperrors "github.com/safe-mobile/safe-push/pkg/errors"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// maxErrorBody caps how much of a failed response is kept as detail
const maxErrorBody = 512

// Config configures the client
type Config struct {
	BaseURL           string
	ChainID           string
	RequestsPerSecond float64
	Timeout           time.Duration
	// Breaker trips after this many consecutive failures. Zero uses 5.
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open. Zero uses 30s.
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
}

// Client registers devices with the transaction service. Requests are not
// retried; a circuit breaker fails fast while the service is unhealthy and a
// limiter paces submissions.
type Client struct {
	baseURL    string
	chainID    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

// New creates a transaction service client
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid transaction service URL %q", cfg.BaseURL)
	}
	if cfg.ChainID == "" {
		return nil, fmt.Errorf("chain id is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown == 0 {
		cooldown = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "transaction-service",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(base.String(), "/"),
		chainID:    cfg.ChainID,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    breaker,
	}, nil
}

// Register associates a device and push token with the safes in req
func (c *Client) Register(ctx context.Context, req *types.RegistrationRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode registration: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+"/v1/register/notifications/", body)
}

// Unregister removes the registration of deviceID for safe
func (c *Client) Unregister(ctx context.Context, deviceID string, safe address.Address) error {
	endpoint := fmt.Sprintf("%s/v1/chains/%s/notifications/devices/%s/safes/%s/",
		c.baseURL, url.PathEscape(c.chainID), url.PathEscape(deviceID), safe.Checksummed())
	return c.do(ctx, http.MethodDelete, endpoint, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return mapTransportError(ctx, err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &statusError{code: resp.StatusCode, body: readDetail(resp)}
		}
		return resp, nil
	})
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		var se *statusError
		if errors.As(err, &se) {
			return apperrors.NetworkFailure(se.Error())
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return apperrors.NetworkFailure(err.Error())
		}
		return mapTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NetworkFailure((&statusError{code: resp.StatusCode, body: readDetail(resp)}).Error())
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func mapTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return apperrors.Wrap(apperrors.ErrCancelled, err)
	}
	return apperrors.Wrap(apperrors.ErrNetworkFailure, err)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("status %d", e.code)
	}
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func readDetail(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return strings.TrimSpace(string(b))
}

// State reports the circuit breaker state
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}
