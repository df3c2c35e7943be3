package metrics

import (
	"sort"
	"strings"
)

// TagSet is a set of key/value labels attached to a sample.
//
// A TagSet is treated as immutable once attached to a Sample; use Merge or
// With to derive new sets.
type TagSet map[string]string

// Merge returns a new set holding t overlaid with inner. Keys present in
// inner win. Neither input is modified.
func (t TagSet) Merge(inner TagSet) TagSet {
	out := make(TagSet, len(t)+len(inner))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range inner {
		out[k] = v
	}
	return out
}

// With returns a copy of t with key set to value.
func (t TagSet) With(key, value string) TagSet {
	out := make(TagSet, len(t)+1)
	for k, v := range t {
		out[k] = v
	}
	out[key] = value
	return out
}

// Clone returns a shallow copy of t.
func (t TagSet) Clone() TagSet {
	if t == nil {
		return TagSet{}
	}
	out := make(TagSet, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Contains reports whether every key/value pair in filter is present in t.
func (t TagSet) Contains(filter TagSet) bool {
	for k, v := range filter {
		if got, ok := t[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// Keys returns the tag keys in sorted order.
func (t TagSet) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the set as {k1:v1,k2:v2} with keys sorted.
func (t TagSet) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range t.Keys() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte(':')
		sb.WriteString(t[k])
	}
	sb.WriteByte('}')
	return sb.String()
}
