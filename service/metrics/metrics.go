package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to every component that records metrics; a nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Chain RPC
	rpcCallsTotal   *prometheus.CounterVec
	rpcCallDuration *prometheus.HistogramVec

	// Wallet provider
	providerRequestsTotal *prometheus.CounterVec
	networkRemediations   *prometheus.CounterVec
	sessionTransitions    *prometheus.CounterVec

	// Transactions
	transactionsSubmitted *prometheus.CounterVec
	confirmationDuration  *prometheus.HistogramVec
	validationFailures    *prometheus.CounterVec

	// Vault
	vaultRefreshesTotal *prometheus.CounterVec
	vaultReadsDiscarded prometheus.Counter

	// Split
	splitLegsTotal *prometheus.CounterVec

	// Assistant
	assistantRequests *prometheus.CounterVec

	// Database
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chain_rpc_calls_total",
				Help: "Total number of chain RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chain_rpc_call_duration_seconds",
				Help:    "Duration of chain RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),

		providerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_provider_requests_total",
				Help: "Total number of wallet provider requests by method and status",
			},
			[]string{"method", "status"},
		),
		networkRemediations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_network_remediations_total",
				Help: "Chain switch and add-chain attempts made to reach the expected network",
			},
			[]string{"action", "status"},
		),
		sessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_session_transitions_total",
				Help: "Wallet session state transitions",
			},
			[]string{"state"},
		),

		transactionsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_submitted_total",
				Help: "Total number of transactions submitted by kind and final status",
			},
			[]string{"kind", "status"},
		),
		confirmationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transaction_confirmation_duration_seconds",
				Help:    "Time from broadcast to receipt in seconds",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"kind"},
		),
		validationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transaction_validation_failures_total",
				Help: "Submissions rejected by local validation, by field",
			},
			[]string{"field"},
		),

		vaultRefreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_refreshes_total",
				Help: "Vault summary refreshes by outcome",
			},
			[]string{"status"},
		),
		vaultReadsDiscarded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "vault_reads_discarded_total",
				Help: "Vault reads discarded because the session changed while they were in flight",
			},
		),

		splitLegsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "split_legs_total",
				Help: "Split bill payment legs by outcome",
			},
			[]string{"status"},
		),

		assistantRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_requests_total",
				Help: "AI assistant requests by operation and status",
			},
			[]string{"operation", "status"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"address"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"address", "event_type"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// RecordRPCCall records a chain RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	if m == nil {
		return
	}
	m.rpcCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.rpcCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordProviderRequest records a wallet provider request.
func (m *Metrics) RecordProviderRequest(method string, err error) {
	if m == nil {
		return
	}
	m.providerRequestsTotal.WithLabelValues(method, statusFromErr(err)).Inc()
}

// RecordNetworkRemediation records a switch-chain or add-chain attempt.
func (m *Metrics) RecordNetworkRemediation(action string, err error) {
	if m == nil {
		return
	}
	m.networkRemediations.WithLabelValues(action, statusFromErr(err)).Inc()
}

// RecordSessionTransition records a session moving into state.
func (m *Metrics) RecordSessionTransition(state string) {
	if m == nil {
		return
	}
	m.sessionTransitions.WithLabelValues(state).Inc()
}

// RecordTransaction records a settled submission.
func (m *Metrics) RecordTransaction(kind, status string) {
	if m == nil {
		return
	}
	m.transactionsSubmitted.WithLabelValues(kind, status).Inc()
}

// RecordConfirmation records how long a transaction took to be mined.
func (m *Metrics) RecordConfirmation(kind string, duration float64) {
	if m == nil {
		return
	}
	m.confirmationDuration.WithLabelValues(kind).Observe(duration)
}

// RecordValidationFailure records a submission rejected before signing.
func (m *Metrics) RecordValidationFailure(field string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(field).Inc()
}

// RecordVaultRefresh records a vault summary refresh.
func (m *Metrics) RecordVaultRefresh(err error) {
	if m == nil {
		return
	}
	m.vaultRefreshesTotal.WithLabelValues(statusFromErr(err)).Inc()
}

// RecordVaultReadDiscarded records a stale vault read being dropped.
func (m *Metrics) RecordVaultReadDiscarded() {
	if m == nil {
		return
	}
	m.vaultReadsDiscarded.Inc()
}

// RecordSplitLeg records the outcome of one split payment leg.
func (m *Metrics) RecordSplitLeg(status string) {
	if m == nil {
		return
	}
	m.splitLegsTotal.WithLabelValues(status).Inc()
}

// RecordAssistantRequest records an AI assistant call.
func (m *Metrics) RecordAssistantRequest(operation string, err error) {
	if m == nil {
		return
	}
	m.assistantRequests.WithLabelValues(operation, statusFromErr(err)).Inc()
}

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, statusFromErr(err)).Inc()
}

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(address string, delta float64) {
	if m == nil {
		return
	}
	m.sseActiveConnections.WithLabelValues(address).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(address, eventType string) {
	if m == nil {
		return
	}
	m.sseEventsSent.WithLabelValues(address, eventType).Inc()
}

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusFromErr(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
