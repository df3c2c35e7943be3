package workload

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/loadtest/config"
)

// scope holds the variables visible to one run of a phase: file variables,
// setup data, values extracted so far and the builtins vu, iter and uuid.
// It is owned by a single VU goroutine.
type scope struct {
	vars map[string]string
}

func newScope(base map[string]string, vu *loadtest.VU, data loadtest.SetupData) *scope {
	vars := config.MergeVariables(base, setupVars(data))
	vars["vu"] = strconv.Itoa(vu.ID)
	if it := vu.GetIteration(); it > 0 {
		vars["iter"] = strconv.FormatInt(it-1, 10)
	}
	return &scope{vars: vars}
}

// resolve substitutes {{name}} placeholders. Every resolution draws a fresh
// {{uuid}}.
func (s *scope) resolve(in string) string {
	if !strings.Contains(in, "{{") {
		return in
	}
	if strings.Contains(in, "uuid") {
		s.vars["uuid"] = uuid.NewString()
	}
	return config.ResolveVariables(in, s.vars)
}

// resolveValue resolves every string inside a decoded YAML or JSON value.
func (s *scope) resolveValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return s.resolve(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = s.resolveValue(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[toString(k)] = s.resolveValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = s.resolveValue(item)
		}
		return out
	default:
		return v
	}
}

func (s *scope) set(name, value string) {
	s.vars[name] = value
}

func (s *scope) get(name string) (string, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// setupVars flattens the top level of the setup data into variables.
func setupVars(data loadtest.SetupData) map[string]string {
	if data.IsZero() {
		return nil
	}
	root := gjson.ParseBytes(data.Raw())
	if !root.IsObject() {
		return map[string]string{"data": root.String()}
	}
	vars := make(map[string]string)
	root.ForEach(func(key, value gjson.Result) bool {
		vars[key.String()] = value.String()
		return true
	})
	return vars
}

// resolveFileVariables evaluates the file variables once per run, in name
// order, so that {{uuid}} yields one value shared by every phase.
func resolveFileVariables(cfg *config.TestConfig) map[string]string {
	base := cfg.BaseVariables()
	names := make([]string, 0, len(cfg.Variables))
	for name := range cfg.Variables {
		names = append(names, name)
	}
	sort.Strings(names)

	s := &scope{vars: base}
	for _, name := range names {
		s.vars[name] = s.resolve(cfg.Variables[name])
	}
	delete(s.vars, "uuid")
	return s.vars
}

func toString(v interface{}) string {
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}
