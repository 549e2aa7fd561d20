// Package client registers a service with the cinemesh registry and keeps
// the registration alive with heartbeats.
package client

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const HeaderServiceToken = "X-Service-Token"

type RegistryClient struct {
	registryURL string
	privateKey  *rsa.PrivateKey
	tokenFunc   func() (string, error)
	audience    string
	serviceName string
	instanceID  string

	lastRegisterReq RegisterRequest

	httpClient        *http.Client
	maxRetries        int
	backoff           time.Duration
	heartbeatInterval time.Duration
	stopCh            chan struct{}
	stopCancel        context.CancelFunc
	wg                sync.WaitGroup
	mu                sync.RWMutex
	registered        bool
	stopped           bool

	logger *slog.Logger
}

type Option func(*RegistryClient) error

func WithLogger(logger *slog.Logger) Option {
	return func(c *RegistryClient) error {
		c.logger = logger
		return nil
	}
}

// WithPrivateKey signs every registry call with an RS256 service token.
func WithPrivateKey(privateKeyPEM string) Option {
	return func(c *RegistryClient) error {
		key, err := parseRSAPrivateKey(privateKeyPEM)
		if err != nil {
			return fmt.Errorf("failed to parse private key: %w", err)
		}
		c.privateKey = key
		return nil
	}
}

// WithTokenFunc supplies service tokens from an external signer. It takes
// precedence over WithPrivateKey.
func WithTokenFunc(fn func() (string, error)) Option {
	return func(c *RegistryClient) error {
		c.tokenFunc = fn
		return nil
	}
}

func WithAudience(audience string) Option {
	return func(c *RegistryClient) error {
		c.audience = audience
		return nil
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *RegistryClient) error {
		c.httpClient = httpClient
		return nil
	}
}

// WithRetry sets how often registration is retried and the first backoff,
// which doubles up to 30s.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *RegistryClient) error {
		c.maxRetries = maxRetries
		c.backoff = backoff
		return nil
	}
}

func NewRegistryClient(registryURL, serviceName string, opts ...Option) (*RegistryClient, error) {
	c := &RegistryClient{
		registryURL: strings.TrimSuffix(registryURL, "/"),
		serviceName: serviceName,
		audience:    "registry",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: 5,
		backoff:    time.Second,
		stopCh:     make(chan struct{}),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *RegistryClient) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	c.mu.Lock()
	if c.registered {
		c.mu.Unlock()
		return nil, fmt.Errorf("already registered, call Shutdown first")
	}
	c.lastRegisterReq = req
	c.mu.Unlock()

	resp, err := c.registerWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.registered = true
	c.mu.Unlock()

	c.startHeartbeat()

	c.logger.Info("service registered",
		"service", req.ServiceName,
		"instance_id", resp.InstanceID,
		"heartbeat_interval", resp.HeartbeatInterval,
	)

	return resp, nil
}

func (c *RegistryClient) registerWithRetry(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp *RegisterResponse
	err := c.retryWithBackoff(ctx, func() error {
		var err error
		resp, err = c.doRegister(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.instanceID = resp.InstanceID
	c.heartbeatInterval = time.Duration(resp.HeartbeatInterval) * time.Second
	c.mu.Unlock()
	return resp, nil
}

func (c *RegistryClient) doRegister(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	status, body, err := c.post(ctx, "/internal/registry/register", req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, &StatusError{Op: "registration", StatusCode: status, Body: string(body)}
	}

	var resp RegisterResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &resp, nil
}

func (c *RegistryClient) reregister(ctx context.Context) error {
	c.mu.RLock()
	req := c.lastRegisterReq
	c.mu.RUnlock()

	resp, err := c.registerWithRetry(ctx, req)
	if err != nil {
		return err
	}

	c.logger.Info("service re-registered",
		"instance_id", resp.InstanceID,
		"heartbeat_interval", resp.HeartbeatInterval,
	)
	return nil
}

func (c *RegistryClient) Deregister(ctx context.Context) error {
	c.mu.RLock()
	instanceID := c.instanceID
	c.mu.RUnlock()

	if instanceID == "" {
		return nil
	}

	status, body, err := c.post(ctx, "/internal/registry/deregister", map[string]string{
		"instance_id": instanceID,
	})
	if err != nil {
		return fmt.Errorf("failed to send deregister: %w", err)
	}
	if status != http.StatusOK && status != http.StatusNotFound {
		return &StatusError{Op: "deregister", StatusCode: status, Body: string(body)}
	}

	c.logger.Info("service deregistered", "instance_id", instanceID)
	return nil
}

// Shutdown stops the heartbeat loop and removes the instance from the
// registry.
func (c *RegistryClient) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	cancel := c.stopCancel
	c.mu.Unlock()

	close(c.stopCh)
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out waiting for heartbeat to stop")
	}

	return c.Deregister(ctx)
}

func (c *RegistryClient) InstanceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.instanceID
}

func (c *RegistryClient) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.registryURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokenFunc != nil || c.privateKey != nil {
		token, err := c.serviceToken()
		if err != nil {
			return 0, nil, fmt.Errorf("failed to generate service token: %w", err)
		}
		req.Header.Set(HeaderServiceToken, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (c *RegistryClient) serviceToken() (string, error) {
	if c.tokenFunc != nil {
		return c.tokenFunc()
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": c.serviceName,
		"aud": c.audience,
		"iss": c.serviceName,
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(c.privateKey)
}

func (c *RegistryClient) retryWithBackoff(ctx context.Context, fn func() error) error {
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Permanent() {
			return err
		}

		if attempt < c.maxRetries {
			c.logger.Warn("operation failed, retrying",
				"attempt", attempt+1,
				"max_retries", c.maxRetries,
				"backoff", backoff.String(),
				"error", err,
			)

			select {
			case <-time.After(backoff):
				backoff *= 2
				if backoff > 30*time.Second {
					backoff = 30 * time.Second
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", c.maxRetries, lastErr)
}

func parseRSAPrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA private key")
		}
		return rsaKey, nil
	}

	return x509.ParsePKCS1PrivateKey(block.Bytes)
}
