package observability

type Counter interface {
	Incr(name string, tags map[string]string)
	Add(name string, value float64, tags map[string]string)
}

type Gauge interface {
	Set(name string, value float64, tags map[string]string)
}

type Histogram interface {
	Observe(name string, value float64, tags map[string]string)
}

// Metrics is what components take when they need more than one kind of instrument.
type Metrics interface {
	Counter
	Gauge
	Histogram
}

// Metric names shared across services.
const (
	RemoteAttempts              = "remote_call_attempts_total"
	RemoteCalls                 = "remote_calls_total"
	RemoteAttemptDuration       = "remote_attempt_duration_seconds"
	SettlementJobs              = "settlement_jobs_total"
	SettlementPanics            = "settlement_panics_total"
	SettlementRejected          = "settlement_rejected_total"
	SettlementConfirmationFails = "settlement_confirmation_failed"
	SettlementQueueDepth        = "settlement_queue_depth"
	RegistryInstances           = "registry_instances"
	HTTPRequests                = "http_requests_total"
	HTTPRequestDuration         = "http_request_duration_seconds"
	HTTPPanics                  = "http_panics_total"
)
