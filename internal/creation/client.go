package creation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zhejian/url-shortener/qrform/internal/auth"
	"github.com/zhejian/url-shortener/qrform/internal/model"
	"github.com/zhejian/url-shortener/qrform/internal/observability"
	"github.com/zhejian/url-shortener/qrform/internal/payload"
)

const createPath = "/api/create"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

var (
	ErrRejected    = errors.New("creation rejected")
	ErrUnavailable = errors.New("creation service unavailable")
	ErrBadResponse = errors.New("unexpected creation service response")

	// errCallerGone marks a call abandoned by its own context. It says
	// nothing about the service's health.
	errCallerGone = errors.New("caller cancelled")
)

// RejectedError is an ok=false answer from the creation service.
type RejectedError struct {
	Status    int
	Message   string
	NeedLogin bool
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("creation rejected (%d): %s", e.Status, e.Message)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// Config configures the creation service client
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	CookieName      string // session cookie the creation service reads
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client calls the external creation service. Each call is attempted
// once; transport errors and 5xx answers trip the circuit breaker.
type Client struct {
	baseURL    string
	cookieName string
	http       *http.Client
	breaker    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a creation service client
func NewClient(cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cookieName: cfg.CookieName,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		metrics: metrics,
		logger:  logger,
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "creation",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			c.metrics.SetBreakerState(name, int(to))
		},
	})
	return c
}

// Create sends req to the creation service on behalf of caller.
// The caller's session token, if any, is forwarded as a cookie.
func (c *Client) Create(ctx context.Context, req *payload.CreationRequest, caller auth.Context) (*model.CreationResult, error) {
	if err := req.Allowed(caller); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode creation request: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, body, caller.Token)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.ObserveCreation("unavailable", time.Since(start))
			return nil, ErrUnavailable
		}
		if errors.Is(err, errCallerGone) {
			c.metrics.ObserveCreation("cancelled", time.Since(start))
			return nil, ctx.Err()
		}
		c.metrics.ObserveCreation("error", time.Since(start))
		return nil, err
	}

	resp := out.(*response)
	if !resp.result.OK {
		c.metrics.ObserveCreation("rejected", time.Since(start))
		return nil, &RejectedError{
			Status:    resp.status,
			Message:   resp.result.Error,
			NeedLogin: resp.result.NeedLogin,
		}
	}
	if resp.result.Code == "" || resp.result.ShortURL == "" {
		c.metrics.ObserveCreation("error", time.Since(start))
		return nil, fmt.Errorf("%w: missing code or short_url", ErrBadResponse)
	}

	c.metrics.ObserveCreation("ok", time.Since(start))
	return &resp.result, nil
}

type response struct {
	status int
	result model.CreationResult
}

// post performs one HTTP exchange. Only failures that say something about
// the service's health are returned as errors, so a 4xx rejection never
// counts against the breaker.
func (c *Client) post(ctx context.Context, body []byte, token string) (*response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if token != "" && c.cookieName != "" {
		httpReq.AddCookie(&http.Cookie{Name: c.cookieName, Value: token})
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", errCallerGone, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read creation response: %w", err)
	}

	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrBadResponse, httpResp.StatusCode)
	}

	resp := &response{status: httpResp.StatusCode}
	if err := json.Unmarshal(raw, &resp.result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if !resp.result.OK && resp.result.Error == "" {
		resp.result.Error = http.StatusText(httpResp.StatusCode)
	}
	return resp, nil
}
