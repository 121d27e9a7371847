package hostfactory

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/callbacks"
	"github.com/effective-security/mcphost/gateway"
	"github.com/effective-security/mcphost/gateway/anthropic"
	"github.com/effective-security/mcphost/gateway/openai"
	"github.com/effective-security/mcphost/host"
	"github.com/effective-security/mcphost/mcpclient"
	"github.com/effective-security/mcphost/registry"
	"github.com/effective-security/mcphost/store"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcphost", "hostfactory")

// NewGateway is a wrapper for CreateGateway to allow for overriding the
// default implementation.
var NewGateway = CreateGateway

// Option configures the factory.
type Option func(*options)

type options struct {
	callback callbacks.Callback
}

// WithCallback installs a run observer on the built host.
func WithCallback(cb callbacks.Callback) Option {
	return func(o *options) {
		o.callback = cb
	}
}

// Load builds a host from a configuration file.
func Load(ctx context.Context, file string, opts ...Option) (*host.Host, error) {
	cfg, err := LoadConfig(file)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts...)
}

// New builds a host from configuration: it creates the gateway, discovers
// every configured tool server, and wires the transcript store. A server
// that fails discovery is skipped with a warning; it never takes the host
// down.
func New(ctx context.Context, cfg *Config, opts ...Option) (*host.Host, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	gw, err := NewGateway(cfg)
	if err != nil {
		return nil, err
	}
	gw = gateway.WithRetries(gw, cfg.MaxGatewayRetries)

	regOpts := []registry.Option{}
	if o.callback != nil {
		regOpts = append(regOpts, registry.WithDuplicateWarning(o.callback.OnDuplicateTool))
	}
	reg := registry.New(regOpts...)

	for _, srv := range cfg.Servers {
		client := mcpclient.New(srv.ID, srv.URL)
		if err := reg.Discover(ctx, client); err != nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "server_discovery_failed",
				"server", srv.ID,
				"url", srv.URL,
				"err", err.Error(),
			)
			continue
		}
	}

	hostOpts := []host.Option{}
	if cfg.MaxIterations > 0 {
		hostOpts = append(hostOpts, host.WithMaxIterations(cfg.MaxIterations))
	}
	callTimeout, err := cfg.GetCallTimeout()
	if err != nil {
		return nil, err
	}
	if callTimeout > 0 {
		hostOpts = append(hostOpts, host.WithCallTimeout(callTimeout))
	}
	if o.callback != nil {
		hostOpts = append(hostOpts, host.WithCallback(o.callback))
	}

	st, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	hostOpts = append(hostOpts, host.WithStore(st))

	return host.New(gw, reg, hostOpts...)
}

// CreateGateway creates the configured model gateway.
func CreateGateway(cfg *Config) (gateway.Gateway, error) {
	switch strings.ToUpper(cfg.Provider) {
	case "OPENAI", "OPEN_AI":
		var opts []openai.Option
		opts = append(opts, openai.WithModel(cfg.Model))
		if cfg.Token != "" {
			opts = append(opts, openai.WithToken(cfg.Token))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "ANTHROPIC":
		var opts []anthropic.Option
		opts = append(opts, anthropic.WithModel(cfg.Model))
		if cfg.Token != "" {
			opts = append(opts, anthropic.WithToken(cfg.Token))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	}
	return nil, errors.Newf("unsupported provider type: %s", cfg.Provider)
}

func newStore(cfg *Config) (store.MessageStore, error) {
	if cfg.Redis == nil {
		return store.NewMemoryStore(), nil
	}

	var ttl time.Duration
	if cfg.Redis.TTL != "" {
		var err error
		ttl, err = time.ParseDuration(cfg.Redis.TTL)
		if err != nil {
			return nil, errors.Wrap(err, "invalid redis ttl")
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return store.NewRedisStore(client, cfg.Redis.Prefix, ttl), nil
}
