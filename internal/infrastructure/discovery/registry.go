package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
)

const HeaderServiceToken = "X-Service-Token"

// TokenSource signs requests to the registry. Nil means unauthenticated.
type TokenSource interface {
	GenerateServiceToken() (string, error)
}

type serviceResponse struct {
	Service   string                    `json:"service"`
	Instances []*domain.ServiceInstance `json:"instances"`
}

// RegistryLookup resolves instances from the registry service over HTTP.
type RegistryLookup struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

type RegistryOption func(*RegistryLookup)

func WithTokenSource(tokens TokenSource) RegistryOption {
	return func(l *RegistryLookup) { l.tokens = tokens }
}

func WithRegistryHTTPClient(c *http.Client) RegistryOption {
	return func(l *RegistryLookup) { l.httpClient = c }
}

func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(l *RegistryLookup) { l.logger = logger }
}

func NewRegistryLookup(registryURL string, opts ...RegistryOption) *RegistryLookup {
	l := &RegistryLookup{
		baseURL:    strings.TrimSuffix(registryURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

var _ domain.Lookup = (*RegistryLookup)(nil)

// Resolve never fails loudly: any problem reaching the registry is logged
// and reported as no instances.
func (l *RegistryLookup) Resolve(ctx context.Context, serviceName string) []*domain.ServiceInstance {
	instances, err := l.fetch(ctx, serviceName)
	if err != nil {
		l.logger.Warn("registry lookup failed",
			"service", serviceName,
			"registry", l.baseURL,
			"error", err,
		)
		return nil
	}

	healthy := make([]*domain.ServiceInstance, 0, len(instances))
	for _, instance := range instances {
		if instance != nil && instance.IsHealthy() {
			healthy = append(healthy, instance)
		}
	}
	return healthy
}

func (l *RegistryLookup) fetch(ctx context.Context, serviceName string) ([]*domain.ServiceInstance, error) {
	endpoint := l.baseURL + "/internal/registry/services/" + url.PathEscape(serviceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if l.tokens != nil {
		token, err := l.tokens.GenerateServiceToken()
		if err != nil {
			return nil, fmt.Errorf("failed to sign request: %w", err)
		}
		req.Header.Set(HeaderServiceToken, token)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("registry returned status %d: %s", resp.StatusCode, string(body))
	}

	var out serviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Instances, nil
}
