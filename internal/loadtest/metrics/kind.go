package metrics

import (
	"fmt"
	"strings"
)

// Kind is the aggregation family of a metric.
type Kind int

const (
	// Counter sums values and never decreases.
	Counter Kind = iota
	// Gauge keeps the most recent value.
	Gauge
	// Rate tracks the fraction of samples that are non-zero.
	Rate
	// Trend keeps the full distribution of values.
	Trend
)

func (k Kind) String() string {
	switch k {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Rate:
		return "rate"
	case Trend:
		return "trend"
	default:
		return "unknown"
	}
}

// ParseKind parses the string form of a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "counter":
		return Counter, nil
	case "gauge":
		return Gauge, nil
	case "rate":
		return Rate, nil
	case "trend":
		return Trend, nil
	default:
		return 0, fmt.Errorf("unknown metric kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(data []byte) error {
	v, err := ParseKind(string(data))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ValueType describes what a metric's values measure. It only affects how
// values are rendered.
type ValueType int

const (
	// Default is a plain number.
	Default ValueType = iota
	// Time values are milliseconds.
	Time
	// Data values are bytes.
	Data
)

func (v ValueType) String() string {
	switch v {
	case Time:
		return "time"
	case Data:
		return "data"
	default:
		return "default"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v ValueType) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}
