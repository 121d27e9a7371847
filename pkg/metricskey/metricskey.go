package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	// StatsGatewayCalls is base for counter metric for total gateway completions requested
	StatsGatewayCalls = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_gateway_calls",
		Help:         "stats_gateway_calls provides total completion requests sent to the model gateway",
		RequiredTags: []string{"provider", "model"},
	}

	StatsGatewayCallsRetried = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_gateway_calls_retried",
		Help:         "stats_gateway_calls_retried provides total gateway completions retried",
		RequiredTags: []string{"provider", "model"},
	}

	StatsGatewayCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_gateway_calls_failed",
		Help:         "stats_gateway_calls_failed provides total gateway completions failed after retries",
		RequiredTags: []string{"provider", "model"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsRejected = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_rejected",
		Help:         "stats_tool_calls_rejected provides total tool calls rejected before dispatch",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls for tools no server advertises",
		RequiredTags: []string{"tool"},
	}

	StatsRunsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_runs_succeeded",
		Help:         "stats_runs_succeeded provides total orchestration runs that reached the Done state",
		RequiredTags: []string{},
	}

	StatsRunsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_runs_failed",
		Help:         "stats_runs_failed provides total orchestration runs that reached the Failed state",
		RequiredTags: []string{"reason"},
	}
)

// Perf
var (
	// PerfGatewayCall is base for sample metric of gateway completion latency
	PerfGatewayCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_gateway_call",
		Help:         "perf_gateway_call provides the gateway completion latency",
		RequiredTags: []string{"provider"},
	}

	PerfToolDispatch = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_dispatch",
		Help:         "perf_tool_dispatch provides the tool dispatch latency",
		RequiredTags: []string{"tool"},
	}

	PerfRun = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_run",
		Help:         "perf_run provides the orchestration run duration",
		RequiredTags: []string{},
	}
)

// Metrics returns all registered metrics descriptions
var Metrics = []*metrics.Describe{
	&StatsGatewayCalls,
	&StatsGatewayCallsRetried,
	&StatsGatewayCallsFailed,
	&StatsToolCallsSucceeded,
	&StatsToolCallsFailed,
	&StatsToolCallsRejected,
	&StatsToolCallsNotFound,
	&StatsRunsSucceeded,
	&StatsRunsFailed,
	&PerfGatewayCall,
	&PerfToolDispatch,
	&PerfRun,
}
