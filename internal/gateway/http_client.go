package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/acquiring/internal/config"
	obsmetrics "github.com/smallbiznis/acquiring/internal/observability/metrics"
	"github.com/smallbiznis/acquiring/internal/observability/tracing"
	"github.com/smallbiznis/acquiring/pkg/telemetry/correlation"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 1 << 20

// HTTPClient posts operations to the bank gateway. Every call passes through
// a rate limiter and a circuit breaker; only transport failures count
// against the breaker.
type HTTPClient struct {
	baseURI string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*Response]
	tracer  trace.Tracer
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

type Option func(*HTTPClient)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *HTTPClient) {
		if tp != nil {
			c.tracer = tp.Tracer("acquiring/gateway")
		}
	}
}

func WithMetrics(m *obsmetrics.Metrics) Option {
	return func(c *HTTPClient) {
		c.metrics = m
	}
}

func NewHTTPClient(cfg config.GatewayConfig, log *zap.Logger, opts ...Option) *HTTPClient {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &HTTPClient{
		baseURI: strings.TrimRight(cfg.BaseURI, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: newLimiter(cfg.RateLimit, cfg.RateBurst),
		tracer:  noop.NewTracerProvider().Tracer("acquiring/gateway"),
		log:     log.Named("gateway.client"),
	}
	c.breaker = gobreaker.NewCircuitBreaker[*Response](c.breakerSettings(cfg))

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newLimiter(limit float64, burst int) *rate.Limiter {
	if limit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(limit), burst)
}

func (c *HTTPClient) breakerSettings(cfg config.GatewayConfig) gobreaker.Settings {
	minRequests := cfg.BreakerMinRequests
	ratio := cfg.BreakerFailureRatio
	return gobreaker.Settings{
		Name:        "acquiring-gateway",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < minRequests {
				return false
			}
			if ratio <= 0 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("gateway circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
}

func (c *HTTPClient) Call(ctx context.Context, op Operation, params Params) (*Response, error) {
	if !op.Valid() {
		return nil, &TransportError{Operation: op, Err: ErrUnknownOperation}
	}

	ctx, span := c.tracer.Start(ctx, "gateway."+op.String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tracing.SafeAttributes(
			attribute.String("gateway.operation", op.String()),
			attribute.Bool("gateway.wallet", op.Wallet()),
		)...),
	)
	defer span.End()
	correlation.Annotate(ctx, span)

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.do(ctx, op, params)
	})
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "transport error")
		c.metrics.RecordGatewayCall(ctx, op.String(), obsmetrics.OutcomeTransportError, elapsed)
		c.log.Warn("gateway call failed",
			zap.String("operation", op.String()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, &TransportError{Operation: op, Err: err}
	}

	outcome := obsmetrics.OutcomeSuccess
	successful := resp.IsSuccessful()
	if !successful {
		outcome = obsmetrics.OutcomeRejected
		span.SetStatus(codes.Error, "rejected")
	}
	span.SetAttributes(
		attribute.Int("http.response.status_code", resp.StatusCode()),
		attribute.Bool("gateway.successful", successful),
	)
	c.metrics.RecordGatewayCall(ctx, op.String(), outcome, elapsed)
	c.log.Debug("gateway call",
		zap.String("operation", op.String()),
		zap.Int("status_code", resp.StatusCode()),
		zap.Bool("successful", successful),
		zap.String("error_code", resp.ErrorCode()),
		zap.Duration("elapsed", elapsed),
	)
	return resp, nil
}

func (c *HTTPClient) do(ctx context.Context, op Operation, params Params) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := c.newRequest(ctx, op, params)
	if err != nil {
		return nil, err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrReplyTooLarge, maxBodyBytes)
	}
	if res.StatusCode >= http.StatusMultipleChoices && len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("unexpected status %d with empty body", res.StatusCode)
	}
	return NewResponse(op, res.StatusCode, body), nil
}

func (c *HTTPClient) newRequest(ctx context.Context, op Operation, params Params) (*http.Request, error) {
	endpoint := c.baseURI + op.Path()

	if op.Wallet() {
		payload, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", op, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	form, err := EncodeForm(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s form: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// EncodeForm flattens params into form values. Nested maps and lists are
// sent as JSON strings, which is how the gateway expects jsonParams.
func EncodeForm(params Params) (url.Values, error) {
	values := url.Values{}
	for key, value := range params {
		encoded, ok, err := formValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if ok {
			values.Set(key, encoded)
		}
	}
	return values, nil
}

func formValue(value any) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case bool:
		return strconv.FormatBool(v), true, nil
	case int:
		return strconv.Itoa(v), true, nil
	case int32:
		return strconv.FormatInt(int64(v), 10), true, nil
	case int64:
		return strconv.FormatInt(v, 10), true, nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true, nil
	case uint64:
		return strconv.FormatUint(v, 10), true, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true, nil
	case json.Number:
		return v.String(), true, nil
	case fmt.Stringer:
		return v.String(), true, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", false, err
		}
		return string(encoded), true, nil
	}
}
