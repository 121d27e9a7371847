// Package hostfactory assembles a host from configuration: the model
// gateway, the tool server clients, discovery, and the transcript store.
package hostfactory

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
	"github.com/go-playground/validator/v10"
)

// Config describes one host deployment.
type Config struct {
	// Provider specifies the model provider: OPENAI or ANTHROPIC.
	Provider string `json:"provider" yaml:"provider" validate:"required,oneof=OPENAI ANTHROPIC"`
	// Model specifies the model identifier to request.
	Model string `json:"model" yaml:"model" validate:"required"`
	// Token specifies the provider API key. When empty, the provider's
	// environment variable is used.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
	// BaseURL overrides the provider API address.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxIterations bounds tool execution cycles per run.
	MaxIterations int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" validate:"gte=0"`
	// MaxGatewayRetries bounds retries of retryable gateway failures.
	MaxGatewayRetries int `json:"max_gateway_retries,omitempty" yaml:"max_gateway_retries,omitempty" validate:"gte=0"`
	// CallTimeout bounds one tool call, e.g. "30s".
	CallTimeout string `json:"call_timeout,omitempty" yaml:"call_timeout,omitempty"`

	// Servers lists the tool servers to discover at startup.
	Servers []ServerConfig `json:"servers" yaml:"servers" validate:"dive"`

	// Redis, when set, mirrors run transcripts to Redis.
	Redis *RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// ServerConfig identifies one tool server.
type ServerConfig struct {
	// ID is the server identifier, unique across the configuration.
	ID string `json:"id" yaml:"id" validate:"required"`
	// URL is the server's base address.
	URL string `json:"url" yaml:"url" validate:"required,url"`
}

// RedisConfig configures the transcript mirror.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" validate:"required"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// TTL bounds how long transcripts stay available, e.g. "24h".
	TTL string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// GetCallTimeout parses CallTimeout, zero when unset.
func (c *Config) GetCallTimeout() (time.Duration, error) {
	if c.CallTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.CallTimeout)
	if err != nil {
		return 0, errors.Wrap(err, "invalid call_timeout")
	}
	return d, nil
}

// LoadConfig loads and validates configuration from file, expanding
// environment variables.
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load config %s", file)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration invariants.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return errors.WithMessage(err, "invalid configuration")
	}
	seen := make(map[string]bool, len(cfg.Servers))
	for _, s := range cfg.Servers {
		if seen[s.ID] {
			return errors.Newf("invalid configuration: duplicate server id: %s", s.ID)
		}
		seen[s.ID] = true
	}
	if _, err := cfg.GetCallTimeout(); err != nil {
		return err
	}
	return nil
}
