package config

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DiscoveryRegistry = "registry"
	DiscoveryConsul   = "consul"
	DiscoveryStatic   = "static"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	Env         string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"debug"`
	ServiceName string `envconfig:"SERVICE_NAME"`

	// Address other services should use to reach this process.
	SelfHost string `envconfig:"SELF_HOST" default:"localhost"`
	SelfPort int    `envconfig:"SELF_PORT"`

	HeartbeatTTL time.Duration `envconfig:"HEARTBEAT_TTL" default:"30s"`
	RegistryURL  string        `envconfig:"REGISTRY_URL" default:"http://localhost:8500"`

	Discovery       string        `envconfig:"DISCOVERY" default:"registry"`
	ConsulAddr      string        `envconfig:"CONSUL_ADDR" default:"127.0.0.1:8500"`
	StaticInstances string        `envconfig:"STATIC_INSTANCES"`
	LBStrategy      string        `envconfig:"LB_STRATEGY" default:"random"`
	AttemptTimeout  time.Duration `envconfig:"ATTEMPT_TIMEOUT" default:"5s"`
	CallTimeout     time.Duration `envconfig:"CALL_TIMEOUT" default:"30s"`
	ContractStrict  bool          `envconfig:"CONTRACT_STRICT" default:"false"`

	// pattern=service pairs; empty routes movies, bookings and payments.
	GatewayRoutes string `envconfig:"GATEWAY_ROUTES"`

	SettlementWorkers  int           `envconfig:"SETTLEMENT_WORKERS" default:"4"`
	SettlementQueue    int           `envconfig:"SETTLEMENT_QUEUE" default:"100"`
	CaptureLatency     time.Duration `envconfig:"CAPTURE_LATENCY" default:"2s"`
	CaptureSuccessRate float64       `envconfig:"CAPTURE_SUCCESS_RATE" default:"0.95"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	Store      string `envconfig:"STORE" default:"memory"`
	RedisURL   string `envconfig:"REDIS_URL" default:""`
	IDStrategy string `envconfig:"ID_STRATEGY" default:"sequence"`
	SeedData   bool   `envconfig:"SEED_DATA" default:"true"`

	JWTPublicKey      string        `envconfig:"JWT_PUBLIC_KEY"`
	JWTPrivateKey     string        `envconfig:"JWT_PRIVATE_KEY"`
	JWTAudience       string        `envconfig:"JWT_AUDIENCE" default:"registry"`
	JWTTokenTTL       time.Duration `envconfig:"JWT_TOKEN_TTL" default:"5m"`
	JWTAllowedIssuers []string      `envconfig:"JWT_ALLOWED_ISSUERS"`

	Version, Commit, BuildDate string
}

func Load(version, commit, buildDate string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SelfPort == 0 {
		cfg.SelfPort = cfg.Port
	}
	cfg.Version, cfg.Commit, cfg.BuildDate = version, commit, buildDate
	return &cfg, nil
}

// LoadFor applies per-binary defaults before reading the environment.
func LoadFor(serviceName string, port int, version, commit, buildDate string) (*Config, error) {
	cfg, err := Load(version, commit, buildDate)
	if err != nil {
		return nil, err
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = serviceName
	}
	if _, ok := os.LookupEnv("PORT"); !ok {
		cfg.Port = port
		if _, ok := os.LookupEnv("SELF_PORT"); !ok {
			cfg.SelfPort = port
		}
	}
	return cfg, nil
}

func (c *Config) Production() bool {
	return c.Env == "production"
}
