package client

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func generatePrivateKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, string(keyPEM)
}

func fastClient(t *testing.T, url string, opts ...Option) *RegistryClient {
	t.Helper()
	opts = append([]Option{WithRetry(2, time.Millisecond)}, opts...)
	c, err := NewRegistryClient(url, "booking-service", opts...)
	if err != nil {
		t.Fatalf("NewRegistryClient() error = %v", err)
	}
	return c
}

func writeRegistered(w http.ResponseWriter, id string, interval int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(RegisterResponse{
		InstanceID:        id,
		HeartbeatInterval: interval,
		HeartbeatURL:      "/internal/registry/heartbeat",
	})
}

func TestNewRegistryClient(t *testing.T) {
	c, err := NewRegistryClient("http://localhost:8500/", "booking-service")
	if err != nil {
		t.Fatalf("NewRegistryClient() error = %v", err)
	}

	if c.registryURL != "http://localhost:8500" {
		t.Errorf("registryURL = %s, want http://localhost:8500", c.registryURL)
	}
	if c.audience != "registry" {
		t.Errorf("audience = %s, want registry", c.audience)
	}
	if c.privateKey != nil {
		t.Error("privateKey should be nil without WithPrivateKey")
	}
	if c.httpClient == nil {
		t.Error("httpClient should not be nil")
	}
}

func TestNewRegistryClient_InvalidKey(t *testing.T) {
	if _, err := NewRegistryClient("http://localhost:8500", "booking-service", WithPrivateKey("not-a-key")); err == nil {
		t.Error("expected error for invalid private key")
	}
}

func TestRegister_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal/registry/register":
			if r.Header.Get(HeaderServiceToken) != "" {
				t.Errorf("unexpected token without private key")
			}

			var req RegisterRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("failed to decode request: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if req.ServiceName != "booking-service" || req.Port != 8082 || req.Scheme != "http" {
				t.Errorf("unexpected request: %+v", req)
			}
			writeRegistered(w, "booking-service-1", 10)
		case "/internal/registry/deregister":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	c := fastClient(t, server.URL)

	resp, err := c.Register(context.Background(), RegisterRequest{
		ServiceName: "booking-service",
		Host:        "localhost",
		Port:        8082,
		Scheme:      "http",
		HealthURL:   "/health",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if resp.InstanceID != "booking-service-1" {
		t.Errorf("InstanceID = %s, want booking-service-1", resp.InstanceID)
	}
	if c.InstanceID() != "booking-service-1" {
		t.Errorf("client InstanceID = %s, want booking-service-1", c.InstanceID())
	}
	if c.heartbeatInterval != 10*time.Second {
		t.Errorf("heartbeatInterval = %v, want 10s", c.heartbeatInterval)
	}

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestRegister_SignsToken(t *testing.T) {
	key, keyPEM := generatePrivateKey(t)

	var subject atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := jwt.Parse(r.Header.Get(HeaderServiceToken), func(*jwt.Token) (interface{}, error) {
			return &key.PublicKey, nil
		}, jwt.WithAudience("registry"))
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		sub, _ := token.Claims.GetSubject()
		subject.Store(sub)
		writeRegistered(w, "booking-service-1", 10)
	}))
	defer server.Close()

	c := fastClient(t, server.URL, WithPrivateKey(keyPEM))
	defer c.Shutdown(context.Background())

	if _, err := c.Register(context.Background(), RegisterRequest{ServiceName: "booking-service", Host: "localhost", Port: 8082}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got := subject.Load(); got != "booking-service" {
		t.Errorf("token subject = %v, want booking-service", got)
	}
}

func TestRegister_AlreadyRegistered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeRegistered(w, "booking-service-1", 10)
	}))
	defer server.Close()

	c := fastClient(t, server.URL)
	defer c.Shutdown(context.Background())

	req := RegisterRequest{ServiceName: "booking-service", Host: "localhost", Port: 8082}
	if _, err := c.Register(context.Background(), req); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if _, err := c.Register(context.Background(), req); err == nil {
		t.Error("second Register() should fail")
	}
}

func TestRegister_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeRegistered(w, "booking-service-1", 10)
	}))
	defer server.Close()

	c := fastClient(t, server.URL)
	defer c.Shutdown(context.Background())

	if _, err := c.Register(context.Background(), RegisterRequest{ServiceName: "booking-service", Host: "localhost", Port: 8082}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestRegister_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_request"}`))
	}))
	defer server.Close()

	c := fastClient(t, server.URL)

	_, err := c.Register(context.Background(), RegisterRequest{ServiceName: "booking-service"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Register() error = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", statusErr.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestRegister_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := fastClient(t, server.URL)

	if _, err := c.Register(context.Background(), RegisterRequest{ServiceName: "booking-service"}); err == nil {
		t.Fatal("Register() should fail")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestHeartbeat_Sent(t *testing.T) {
	var heartbeats int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal/registry/register":
			writeRegistered(w, "booking-service-1", 1)
		case "/internal/registry/heartbeat":
			atomic.AddInt32(&heartbeats, 1)
			w.WriteHeader(http.StatusOK)
		case "/internal/registry/deregister":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	c := fastClient(t, server.URL)
	if _, err := c.Register(context.Background(), RegisterRequest{ServiceName: "booking-service"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	time.Sleep(1500 * time.Millisecond)
	_ = c.Shutdown(context.Background())

	if atomic.LoadInt32(&heartbeats) < 1 {
		t.Error("expected at least one heartbeat")
	}
}

func TestHeartbeat_ReregistersOnNotFound(t *testing.T) {
	var registrations int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal/registry/register":
			n := atomic.AddInt32(&registrations, 1)
			if n == 1 {
				writeRegistered(w, "booking-service-1", 1)
			} else {
				writeRegistered(w, "booking-service-2", 1)
			}
		case "/internal/registry/heartbeat":
			w.WriteHeader(http.StatusNotFound)
		case "/internal/registry/deregister":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	c := fastClient(t, server.URL)
	if _, err := c.Register(context.Background(), RegisterRequest{ServiceName: "booking-service"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	time.Sleep(1500 * time.Millisecond)
	_ = c.Shutdown(context.Background())

	if atomic.LoadInt32(&registrations) < 2 {
		t.Error("expected re-registration after heartbeat 404")
	}
	if c.InstanceID() != "booking-service-2" {
		t.Errorf("InstanceID = %s, want booking-service-2", c.InstanceID())
	}
}

func TestShutdown_Deregisters(t *testing.T) {
	var deregistered atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal/registry/register":
			writeRegistered(w, "booking-service-1", 10)
		case "/internal/registry/deregister":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			deregistered.Store(body["instance_id"])
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	c := fastClient(t, server.URL)
	if _, err := c.Register(context.Background(), RegisterRequest{ServiceName: "booking-service"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := deregistered.Load(); got != "booking-service-1" {
		t.Errorf("deregistered = %v, want booking-service-1", got)
	}

	if err := c.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestDeregister_NotRegistered(t *testing.T) {
	c := fastClient(t, "http://127.0.0.1:1")
	if err := c.Deregister(context.Background()); err != nil {
		t.Errorf("Deregister() error = %v", err)
	}
}

func TestRegister_TokenFunc(t *testing.T) {
	var token atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token.Store(r.Header.Get(HeaderServiceToken))
		writeRegistered(w, "booking-service-1", 10)
	}))
	defer server.Close()

	c := fastClient(t, server.URL, WithTokenFunc(func() (string, error) {
		return "signed-elsewhere", nil
	}))
	defer c.Shutdown(context.Background())

	if _, err := c.Register(context.Background(), RegisterRequest{ServiceName: "booking-service"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got := token.Load(); got != "signed-elsewhere" {
		t.Errorf("token = %v, want signed-elsewhere", got)
	}
}
