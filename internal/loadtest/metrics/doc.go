// Package metrics holds the metric registry used by a load-test run.
//
// Every measurement produced by a virtual user is a Sample pushed into a
// Registry. The registry routes each sample to the sink of its metric and to
// every tag-filtered submetric whose filter the sample's tags satisfy. Sinks
// aggregate according to the metric kind:
//
//   - Counter: monotonic sum, exposed as count and rate per second
//   - Gauge: last value plus min and max
//   - Rate: fraction of non-zero samples
//   - Trend: full distribution (avg, min, med, max, p(N))
//
// Thresholds are parsed from k6-style expressions such as "p(95)<500" and
// evaluated against the registry once all virtual users have stopped.
package metrics
