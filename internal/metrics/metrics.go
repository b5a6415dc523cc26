package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event registry metrics
	EventsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkingdongles_events_fired_total",
			Help: "Total number of events fired through the event registry",
		},
		[]string{"event"},
	)

	CallbackFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkingdongles_event_callback_failures_total",
			Help: "Total number of event callbacks that returned an error or panicked",
		},
		[]string{"event"},
	)

	CallbackRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkingdongles_event_callback_rejections_total",
			Help: "Total number of event callbacks that rejected an event",
		},
		[]string{"event"},
	)

	// Plugin engine metrics
	PluginLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkingdongles_plugin_loads_total",
			Help: "Total number of plugin load attempts by outcome",
		},
		[]string{"plugin", "result"},
	)

	PluginsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forkingdongles_plugins_loaded",
			Help: "Number of currently loaded plugins",
		},
	)

	CommandsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkingdongles_commands_handled_total",
			Help: "Total number of command and regex handlers invoked per plugin",
		},
		[]string{"plugin"},
	)

	HandlerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkingdongles_handler_failures_total",
			Help: "Total number of command or regex handlers that failed per plugin",
		},
		[]string{"plugin"},
	)

	// Session metrics
	TrackedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forkingdongles_tracked_users",
			Help: "Number of users in the session's user table",
		},
	)

	TrackedChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forkingdongles_tracked_channels",
			Help: "Number of joined channels",
		},
	)

	WhoisQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkingdongles_whois_queries_total",
			Help: "Total number of WHOIS queries issued, by whether they were delayed by the rate limit",
		},
		[]string{"delayed"},
	)

	BadModeLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forkingdongles_bad_mode_lines_total",
			Help: "Total number of mode lines that failed to parse",
		},
	)

	// Collaborator metrics
	FetchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkingdongles_fetch_requests_total",
			Help: "Total number of outbound HTTP fetches by decoded kind",
		},
		[]string{"kind"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkingdongles_cache_lookups_total",
			Help: "Total number of memo cache lookups by outcome",
		},
		[]string{"cache", "outcome"},
	)
)
