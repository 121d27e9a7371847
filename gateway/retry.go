package gateway

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/pkg/llms"
	"github.com/effective-security/mcphost/pkg/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcphost", "gateway")

// DefaultMaxRetries bounds retries of transport failures and malformed model
// output before the failure becomes fatal to the run.
const DefaultMaxRetries = 3

type retrying struct {
	next       Gateway
	maxRetries int
}

// WithRetries wraps a gateway with a bounded retry on retryable failures.
// Once retries are exhausted, the failure is surfaced as ErrGateway.
func WithRetries(g Gateway, maxRetries int) Gateway {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &retrying{
		next:       g,
		maxRetries: maxRetries,
	}
}

func (r *retrying) GetName() string {
	return r.next.GetName()
}

func (r *retrying) GetProviderType() llms.ProviderType {
	return r.next.GetProviderType()
}

func (r *retrying) Complete(ctx context.Context, messages []llms.Message, tools []llms.Tool) (*Completion, error) {
	provider := string(r.next.GetProviderType())
	model := r.next.GetName()

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			metricskey.StatsGatewayCallsRetried.IncrCounter(1, provider, model)
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "retrying_gateway_call",
				"provider", provider,
				"attempt", attempt,
				"err", lastErr.Error(),
			)
		}

		metricskey.StatsGatewayCalls.IncrCounter(1, provider, model)
		started := time.Now()
		resp, err := r.next.Complete(ctx, messages, tools)
		metricskey.PerfGatewayCall.MeasureSince(started, provider)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) {
			break
		}
	}

	metricskey.StatsGatewayCallsFailed.IncrCounter(1, provider, model)
	return nil, errors.Mark(lastErr, ErrGateway)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Malformed or empty output and transport hiccups are worth another
	// attempt; authentication and request construction failures are not.
	return errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrEmptyResponse) ||
		errors.Is(err, ErrTransport)
}
