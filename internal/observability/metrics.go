package observability

// MetricKey names an instrument. Adapters register one instrument per key using Schema.
type MetricKey string

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MTransactionMarks        MetricKey = "saga_transaction_marks_total"
	MBusDeliveries           MetricKey = "bus_deliveries_total"
)

type MetricKind int

const (
	KindCounter MetricKind = iota
	KindHistogram
)

// MetricSpec fixes an instrument's kind, help text and label names. Callers must pass
// labels with exactly these keys.
type MetricSpec struct {
	Key    MetricKey
	Kind   MetricKind
	Help   string
	Labels []string
}

// Schema lists every instrument emitted by the saga participants and their surfaces.
func Schema() []MetricSpec {
	return []MetricSpec{
		{MUsecaseRequests, KindCounter, "Total number of use case invocations.", []string{"use_case", "outcome"}},
		{MUsecaseDuration, KindHistogram, "Duration of use case execution in seconds.", []string{"use_case"}},
		{MHTTPRequests, KindCounter, "Total number of HTTP requests.", []string{"method", "route", "status"}},
		{MHTTPRequestDuration, KindHistogram, "HTTP request latency in seconds.", []string{"method", "route", "status"}},
		{MExternalRequests, KindCounter, "Calls to external peers: bus, payment gateway, Kafka.", []string{"peer", "endpoint", "outcome"}},
		{MExternalRequestDuration, KindHistogram, "Duration of external calls in seconds.", []string{"peer", "endpoint"}},
		{MTransactionMarks, KindCounter, "Transaction marks observed per type, status and origin.", []string{"type", "status", "origin"}},
		{MBusDeliveries, KindCounter, "Event deliveries to bus subscribers.", []string{"event", "outcome"}},
	}
}

type Metrics interface {
	Counter(name MetricKey) Counter
	Histogram(name MetricKey) Histogram
}

type Counter interface {
	Add(delta float64, labels ...Label)
	// Bind fixes labels once for hot paths.
	Bind(labels ...Label) BoundCounter
}

type BoundCounter interface {
	Add(delta float64)
}

type Histogram interface {
	Observe(value float64, labels ...Label)
	Bind(labels ...Label) BoundHistogram
}

type BoundHistogram interface {
	Observe(value float64)
}

type Label struct{ Key, Value string }

func L(k, v string) Label { return Label{Key: k, Value: v} }
