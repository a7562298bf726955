package paymentgw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability/logctx"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	intentsPath          = "/payment_intents"
)

var errRejected = errors.New("paymentgw: request rejected")

type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
	// MaxFailures consecutive transport or 5xx failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
}

func (o *ClientOptions) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.MaxFailures == 0 {
		o.MaxFailures = 5
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = 10 * time.Second
	}
}

type apiError struct {
	Error string `json:"error"`
}

// Client talks to a payment provider over HTTP. It implements payment.Gateway.
type Client struct {
	http *resty.Client
	cb   *gobreaker.CircuitBreaker[*payment.Intent]
	log  observability.Logger
}

var _ payment.Gateway = (*Client)(nil)

func NewClient(opts ClientOptions, logger observability.Logger) *Client {
	opts.defaults()
	if logger == nil {
		logger = observability.NopLogger()
	}
	logger = logger.With(observability.F("component", "payment_gateway_client"))

	cb := gobreaker.NewCircuitBreaker[*payment.Intent](gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opts.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_breaker_state_change",
				observability.F("breaker", name),
				observability.F("from", from.String()),
				observability.F("to", to.String()),
			)
		},
	})

	return &Client{
		http: resty.New().
			SetBaseURL(opts.BaseURL).
			SetTimeout(opts.Timeout).
			SetHeader("Content-Type", "application/json"),
		cb:  cb,
		log: logger,
	}
}

// CreateIntent posts the request keyed by its idempotency key. Transport failures, 5xx
// responses and an open breaker all surface as payment.ErrGatewayUnavailable. A 2xx reply
// without an intent returns nil, nil.
func (c *Client) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	in, err := c.cb.Execute(func() (*payment.Intent, error) {
		return c.post(ctx, req)
	})
	switch {
	case err == nil:
		return in, nil
	case errors.Is(err, errRejected):
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		logctx.FromOr(ctx, c.log).Warn("payment_gateway_short_circuited", observability.F("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	default:
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
}

func (c *Client) post(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	var (
		out    payment.Intent
		apiErr apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerIdempotencyKey, req.IdempotencyKey).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post(intentsPath)
	if err != nil {
		return nil, err
	}
	switch code := resp.StatusCode(); {
	case code >= http.StatusInternalServerError:
		return nil, fmt.Errorf("paymentgw: provider status %d", code)
	case code >= http.StatusBadRequest:
		return nil, fmt.Errorf("%w: status %d: %s", errRejected, code, apiErr.Error)
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}
