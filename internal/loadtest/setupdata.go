package loadtest

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// SetupData is the immutable result of Setup shared by every iteration and
// by Teardown. The value is serialised once; readers always receive copies,
// so no VU can change what another VU sees.
type SetupData struct {
	raw []byte
}

// NewSetupData snapshots v. A nil v yields the zero SetupData.
func NewSetupData(v interface{}) (SetupData, error) {
	if v == nil {
		return SetupData{}, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return SetupData{}, fmt.Errorf("setup data is not valid JSON")
		}
		return SetupData{raw: append([]byte(nil), raw...)}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return SetupData{}, fmt.Errorf("setup data must be JSON serialisable: %w", err)
	}
	return SetupData{raw: raw}, nil
}

// IsZero reports whether Setup was absent or returned nothing.
func (d SetupData) IsZero() bool {
	return len(d.raw) == 0
}

// Decode unmarshals a fresh copy of the data into v.
func (d SetupData) Decode(v interface{}) error {
	if d.IsZero() {
		return nil
	}
	return json.Unmarshal(d.raw, v)
}

// Get returns the value at a gjson path, e.g. "token" or "user.id".
func (d SetupData) Get(path string) gjson.Result {
	return gjson.GetBytes(d.raw, path)
}

// String returns the value at path as a string ("" if absent).
func (d SetupData) String(path string) string {
	return d.Get(path).String()
}

// Raw returns a copy of the JSON encoding.
func (d SetupData) Raw() []byte {
	return append([]byte(nil), d.raw...)
}

// MarshalJSON implements json.Marshaler.
func (d SetupData) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return d.Raw(), nil
}
