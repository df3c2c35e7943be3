package metrics

// Names of the metrics every run registers.
const (
	ChecksTotal           = "checks_total"
	Checks                = "checks"
	IterationsTotal       = "iterations_total"
	IterationDuration     = "iteration_duration"
	IterationsFailed      = "iterations_failed"
	IterationsInterrupted = "iterations_interrupted"
	GroupDuration         = "group_duration"
	HTTPReqs              = "http_reqs"
	HTTPReqDuration       = "http_req_duration"
	HTTPReqWaiting        = "http_req_waiting"
	HTTPReqConnecting     = "http_req_connecting"
	HTTPReqTLSHandshaking = "http_req_tls_handshaking"
	HTTPReqReceiving      = "http_req_receiving"
	HTTPReqFailed         = "http_req_failed"
	DataSent              = "data_sent"
	DataReceived          = "data_received"
	VUs                   = "vus"
	VUsMax                = "vus_max"
)

// BuiltinMetrics holds handles to the standard metrics so hot paths avoid
// map lookups.
type BuiltinMetrics struct {
	ChecksTotal           *Metric
	Checks                *Metric
	IterationsTotal       *Metric
	IterationDuration     *Metric
	IterationsFailed      *Metric
	IterationsInterrupted *Metric
	GroupDuration         *Metric

	HTTPReqs              *Metric
	HTTPReqDuration       *Metric
	HTTPReqWaiting        *Metric
	HTTPReqConnecting     *Metric
	HTTPReqTLSHandshaking *Metric
	HTTPReqReceiving      *Metric
	HTTPReqFailed         *Metric
	DataSent              *Metric
	DataReceived          *Metric

	VUs    *Metric
	VUsMax *Metric
}

// RegisterBuiltins registers the standard metrics on r. Calling it twice on
// the same registry returns the same handles.
func RegisterBuiltins(r *Registry) *BuiltinMetrics {
	return &BuiltinMetrics{
		ChecksTotal:           r.MustNewMetric(ChecksTotal, Counter),
		Checks:                r.MustNewMetric(Checks, Rate),
		IterationsTotal:       r.MustNewMetric(IterationsTotal, Counter),
		IterationDuration:     r.MustNewMetric(IterationDuration, Trend, Time),
		IterationsFailed:      r.MustNewMetric(IterationsFailed, Counter),
		IterationsInterrupted: r.MustNewMetric(IterationsInterrupted, Counter),
		GroupDuration:         r.MustNewMetric(GroupDuration, Trend, Time),

		HTTPReqs:              r.MustNewMetric(HTTPReqs, Counter),
		HTTPReqDuration:       r.MustNewMetric(HTTPReqDuration, Trend, Time),
		HTTPReqWaiting:        r.MustNewMetric(HTTPReqWaiting, Trend, Time),
		HTTPReqConnecting:     r.MustNewMetric(HTTPReqConnecting, Trend, Time),
		HTTPReqTLSHandshaking: r.MustNewMetric(HTTPReqTLSHandshaking, Trend, Time),
		HTTPReqReceiving:      r.MustNewMetric(HTTPReqReceiving, Trend, Time),
		HTTPReqFailed:         r.MustNewMetric(HTTPReqFailed, Rate),
		DataSent:              r.MustNewMetric(DataSent, Counter, Data),
		DataReceived:          r.MustNewMetric(DataReceived, Counter, Data),

		VUs:    r.MustNewMetric(VUs, Gauge),
		VUsMax: r.MustNewMetric(VUsMax, Gauge),
	}
}
