package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/coffee-counter/internal/domain/order"
)

// Config holds the complete application configuration, loadable from
// environment variables (COUNTER_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Allocator string `default:"random" usage:"Ticket allocation policy: random or sequential"`
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
	Snapshot  SnapshotConfig
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// SnapshotConfig controls the periodic order log export.
type SnapshotConfig struct {
	Enabled  bool          `default:"false" usage:"Enable periodic order log snapshots"`
	Path     string        `default:"orders.json.gz" usage:"Snapshot file path" flag:"snapshot-path"`
	Interval time.Duration `default:"1m" usage:"Snapshot interval" flag:"snapshot-interval"`
}

// AllocatorPolicy converts the configured allocator name to the domain
// policy.
func (c *Config) AllocatorPolicy() (order.AllocatorPolicy, error) {
	switch c.Allocator {
	case "random":
		return order.PolicyRandomPool, nil
	case "sequential":
		return order.PolicySequentialCycle, nil
	default:
		return "", errors.Errorf("allocator must be random or sequential, got %q", c.Allocator)
	}
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "COUNTER",
		Files:     []string{"config.yaml", "/etc/counter/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if _, err := cfg.AllocatorPolicy(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like PORT to the
// application's COUNTER_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
