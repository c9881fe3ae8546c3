package observability

// Metric name prefixes
const (
	MetricPrefix = "club_ledger"
)

// Metric names
const (
	// Settlement metrics
	TransactionsSubmittedTotal = MetricPrefix + ".transactions.submitted_total"
	TransactionsResolvedTotal  = MetricPrefix + ".transactions.resolved_total"
	FastPathSettlementsTotal   = MetricPrefix + ".settlements.fast_path_total"
	AdjustmentsTotal           = MetricPrefix + ".adjustments.total"

	// Store metrics
	StoreRetriesTotal        = MetricPrefix + ".store.retries_total"
	StoreRetryExhaustedTotal = MetricPrefix + ".store.retry_exhausted_total"
	StoreUnitDuration        = MetricPrefix + ".store.unit_duration"
)

// Label keys
const (
	LabelKind      = "kind"
	LabelDecision  = "decision"
	LabelOperation = "operation"
	LabelOutcome   = "outcome"
)

// Unit outcomes
const (
	OutcomeCommitted = "committed"
	OutcomeFailed    = "failed"
)
