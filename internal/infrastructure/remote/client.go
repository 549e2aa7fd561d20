package remote

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

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/apascualco/cinemesh/internal/infrastructure/observability"
)

const (
	DefaultAttemptTimeout = 5 * time.Second
	maxResponseBytes      = 1 << 20
)

// Balancer orders the instances of one call. Each call gets a fresh order.
type Balancer interface {
	Order(instances []*domain.ServiceInstance) []*domain.ServiceInstance
}

// Validator checks a 2xx payload against a named contract.
type Validator interface {
	Check(schemaName string, raw []byte) error
}

// Request describes one logical call. Schema names the contract a 2xx body
// must satisfy; an empty Schema skips validation.
type Request struct {
	Method string
	Path   string
	Body   any
	Schema string
}

// StatusError is the cause of a transient failure on a non-2xx, non-404 reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client calls a logical service by trying its instances one after another
// until one gives an acceptable answer. At most one attempt is made per
// instance and the instance list is resolved again on every call.
type Client struct {
	lookup         domain.Lookup
	balancer       Balancer
	validator      Validator
	httpClient     *http.Client
	attemptTimeout time.Duration
	headers        map[string]string
	metrics        observability.Metrics
	logger         *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(metrics observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader adds a header to every outgoing request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

func NewClient(lookup domain.Lookup, balancer Balancer, validator Validator, opts ...Option) *Client {
	c := &Client{
		lookup:         lookup,
		balancer:       balancer,
		validator:      validator,
		httpClient:     &http.Client{},
		attemptTimeout: DefaultAttemptTimeout,
		headers:        make(map[string]string),
		metrics:        observability.Noop{},
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Call runs the failover loop for serviceName. The per-attempt timeout is
// bounded by ctx, which acts as the deadline for the whole call.
//
// A 404 is authoritative and ends the call. A 2xx that fails its contract and
// any other failure move on to the next instance. When every instance has
// been tried the last transient failure is returned; if the last attempt was
// a contract violation, a transient failure wrapping ErrAllInstancesFailed is
// returned instead so callers never mistake it for a usable answer.
func (c *Client) Call(ctx context.Context, serviceName string, req Request) domain.Outcome {
	instances := c.lookup.Resolve(ctx, serviceName)
	if len(instances) == 0 {
		c.logger.Warn("no instances available",
			"service", serviceName,
			"path", req.Path,
		)
		out := domain.TransientFailure(fmt.Errorf("%w: %s", domain.ErrNoInstances, serviceName))
		c.record(serviceName, out)
		return out
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		out := domain.TransientFailure(err)
		c.record(serviceName, out)
		return out
	}

	ordered := c.balancer.Order(instances)

	var last domain.Outcome
	attempts := 0
	for _, instance := range ordered {
		if err := ctx.Err(); err != nil {
			last = domain.TransientFailure(fmt.Errorf("call to %s abandoned: %w", serviceName, err))
			break
		}

		attempts++
		out := c.attempt(ctx, serviceName, instance, req, body)
		out.Attempts = attempts
		out.Instance = instance.ID

		switch out.Kind {
		case domain.OutcomeSuccess, domain.OutcomeNotFound:
			c.record(serviceName, out)
			return out
		}
		last = out
	}

	if last.Kind == domain.OutcomeContractViolation {
		instance := last.Instance
		last = domain.TransientFailure(fmt.Errorf("%w: %w", domain.ErrAllInstancesFailed, last.Cause))
		last.Instance = instance
	}
	last.Attempts = attempts

	c.logger.Error("all instances failed",
		"service", serviceName,
		"path", req.Path,
		"attempts", attempts,
		"instances", len(ordered),
		"error", last.Cause,
	)
	c.record(serviceName, last)
	return last
}

func (c *Client) attempt(ctx context.Context, serviceName string, instance *domain.ServiceInstance, req Request, body []byte) domain.Outcome {
	start := time.Now()
	out := c.do(ctx, instance, req, body)
	duration := time.Since(start)

	tags := map[string]string{"service": serviceName, "outcome": out.Kind.String()}
	c.metrics.Incr(observability.RemoteAttempts, tags)
	c.metrics.Observe(observability.RemoteAttemptDuration, duration.Seconds(), map[string]string{"service": serviceName})

	attrs := []any{
		"service", serviceName,
		"instance", instance.Address(),
		"path", req.Path,
		"outcome", out.Kind.String(),
		"duration", duration,
	}
	switch out.Kind {
	case domain.OutcomeSuccess:
		c.logger.Debug("remote attempt succeeded", attrs...)
	case domain.OutcomeNotFound:
		c.logger.Info("remote entity not found", attrs...)
	case domain.OutcomeContractViolation:
		c.logger.Warn("remote contract violation, trying next instance", append(attrs, "error", out.Cause)...)
	default:
		c.logger.Warn("remote attempt failed, trying next instance", append(attrs, "error", out.Cause)...)
	}

	return out
}

func (c *Client) do(ctx context.Context, instance *domain.ServiceInstance, req Request, body []byte) domain.Outcome {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, instance.BaseURL()+req.Path, reader)
	if err != nil {
		return domain.TransientFailure(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return domain.TransientFailure(fmt.Errorf("%s timed out after %s: %w", instance.Address(), c.attemptTimeout, err))
		}
		return domain.TransientFailure(fmt.Errorf("request to %s failed: %w", instance.Address(), err))
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return domain.NotFound()
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.TransientFailure(fmt.Errorf("failed to read response from %s: %w", instance.Address(), err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.TransientFailure(&StatusError{
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(raw)), 256),
		})
	}

	if req.Schema != "" {
		if err := c.validator.Check(req.Schema, raw); err != nil {
			return domain.ContractViolation(err)
		}
	}

	return domain.Success(raw)
}

func (c *Client) record(serviceName string, out domain.Outcome) {
	c.metrics.Incr(observability.RemoteCalls, map[string]string{
		"service": serviceName,
		"outcome": out.Kind.String(),
	})
}

// Healthy reports whether serviceName currently resolves to any instance.
// No request is made.
func (c *Client) Healthy(ctx context.Context, serviceName string) bool {
	return len(c.lookup.Resolve(ctx, serviceName)) > 0
}

// Info describes the resolved instances of serviceName for diagnostics.
func (c *Client) Info(ctx context.Context, serviceName string) string {
	instances := c.lookup.Resolve(ctx, serviceName)
	if len(instances) == 0 {
		return fmt.Sprintf("Service: %s, no instances available", serviceName)
	}

	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.BaseURL()
	}
	return fmt.Sprintf("Service: %s, Instances: %d, URLs: [%s]",
		serviceName, len(instances), strings.Join(addrs, ", "))
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return b, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
