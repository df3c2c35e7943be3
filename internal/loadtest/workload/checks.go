package workload

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/loadtest/config"
)

// check is a compiled CheckConfig. Expected values may hold placeholders
// and are resolved each time the check is bound to a scope.
type check struct {
	name      string
	kind      string
	condition string
	value     string
	path      string

	re     *regexp.Regexp
	schema *jsonschema.Schema
}

func compileCheck(c config.CheckConfig) (*check, error) {
	chk := &check{
		name:      c.Name,
		kind:      c.Type,
		condition: c.Condition,
		value:     c.Value,
		path:      http.ToGJSONPath(c.Path),
	}
	if chk.condition == "" {
		chk.condition = defaultCondition(c.Type)
	}
	if chk.name == "" {
		chk.name = describeCheck(c, chk.condition)
	}

	if chk.condition == "matches" && !strings.Contains(c.Value, "{{") {
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return nil, fmt.Errorf("check %q: invalid regex: %w", chk.name, err)
		}
		chk.re = re
	}
	if c.Type == "schema" {
		schema, err := compileSchema(c.Schema)
		if err != nil {
			return nil, fmt.Errorf("check %q: %w", chk.name, err)
		}
		chk.schema = schema
	}
	return chk, nil
}

func compileChecks(in []config.CheckConfig) ([]*check, error) {
	out := make([]*check, 0, len(in))
	for _, c := range in {
		chk, err := compileCheck(c)
		if err != nil {
			return nil, err
		}
		out = append(out, chk)
	}
	return out, nil
}

func defaultCondition(kind string) string {
	switch kind {
	case "body":
		return "contains"
	case "duration":
		return "lt"
	case "schema":
		return ""
	default:
		return "eq"
	}
}

// describeCheck names an unnamed check after what it tests, e.g.
// "status eq 200" or "json data.0.id exists".
func describeCheck(c config.CheckConfig, condition string) string {
	parts := []string{c.Type}
	if c.Path != "" {
		parts = append(parts, c.Path)
	}
	if condition != "" {
		parts = append(parts, condition)
	}
	if c.Value != "" && condition != "exists" {
		parts = append(parts, c.Value)
	}
	return strings.Join(parts, " ")
}

// bindChecks turns compiled checks into loadtest checks with their
// expected values resolved in s.
func bindChecks(checks []*check, s *scope) loadtest.Checks {
	out := make(loadtest.Checks, 0, len(checks))
	for _, c := range checks {
		out = append(out, c.bind(s))
	}
	return out
}

func (c *check) bind(s *scope) loadtest.Check {
	expected := s.resolve(c.value)
	return loadtest.Check{
		Name: c.name,
		Fn: func(subject interface{}) (bool, error) {
			switch v := subject.(type) {
			case *http.Response:
				return c.evalResponse(v, expected)
			case []*http.Response:
				for _, resp := range v {
					ok, err := c.evalResponse(resp, expected)
					if !ok || err != nil {
						return false, err
					}
				}
				return len(v) > 0, nil
			case string:
				return c.evalValue(v, expected)
			default:
				return false, fmt.Errorf("unsupported check subject %T", subject)
			}
		},
	}
}

func (c *check) evalResponse(resp *http.Response, expected string) (bool, error) {
	if resp == nil {
		return false, fmt.Errorf("no response")
	}
	switch c.kind {
	case "status":
		return c.compare(strconv.Itoa(resp.StatusCode), expected)
	case "body":
		return c.compare(resp.BodyString(), expected)
	case "header":
		if c.condition == "exists" {
			present := len(resp.Headers.Values(c.path)) > 0
			return present == wantExists(expected), nil
		}
		return c.compare(resp.Header(c.path), expected)
	case "duration":
		limit, err := parseMillis(expected)
		if err != nil {
			return false, err
		}
		return compareNumbers(c.condition, http.Millis(resp.Timing.TotalTime), limit)
	case "json":
		return c.evalJSON(gjson.GetBytes(resp.Body, c.path), expected)
	case "schema":
		return validateSchema(c.schema, resp.Body)
	default:
		return false, fmt.Errorf("%s checks need a variable, not a response", c.kind)
	}
}

func (c *check) evalValue(value, expected string) (bool, error) {
	switch c.kind {
	case "value":
		if c.condition == "exists" {
			return (value != "") == wantExists(expected), nil
		}
		return c.compare(value, expected)
	case "json":
		return c.evalJSON(gjson.Get(value, c.path), expected)
	case "schema":
		return validateSchema(c.schema, []byte(value))
	default:
		return false, fmt.Errorf("%s checks need a response", c.kind)
	}
}

func (c *check) evalJSON(result gjson.Result, expected string) (bool, error) {
	if c.condition == "exists" {
		return result.Exists() == wantExists(expected), nil
	}
	if !result.Exists() {
		return false, fmt.Errorf("path %s not found", c.path)
	}
	return c.compare(result.String(), expected)
}

// compare applies the check condition to actual and expected. Equality is
// numeric when both sides are numbers.
func (c *check) compare(actual, expected string) (bool, error) {
	switch c.condition {
	case "eq", "ne":
		equal := actual == expected
		if a, b, ok := bothNumbers(actual, expected); ok {
			equal = a == b
		}
		return equal == (c.condition == "eq"), nil
	case "gt", "lt", "gte", "lte":
		a, b, ok := bothNumbers(actual, expected)
		if !ok {
			return false, fmt.Errorf("cannot compare %q %s %q as numbers", actual, c.condition, expected)
		}
		return compareNumbers(c.condition, a, b)
	case "contains":
		return strings.Contains(actual, expected), nil
	case "matches":
		re := c.re
		if re == nil {
			var err error
			if re, err = regexp.Compile(expected); err != nil {
				return false, fmt.Errorf("invalid regex: %w", err)
			}
		}
		return re.MatchString(actual), nil
	case "exists":
		return (actual != "") == wantExists(expected), nil
	default:
		return false, fmt.Errorf("unknown condition %q", c.condition)
	}
}

func compareNumbers(condition string, a, b float64) (bool, error) {
	switch condition {
	case "eq":
		return a == b, nil
	case "ne":
		return a != b, nil
	case "gt":
		return a > b, nil
	case "lt":
		return a < b, nil
	case "gte":
		return a >= b, nil
	case "lte":
		return a <= b, nil
	default:
		return false, fmt.Errorf("condition %q does not apply to numbers", condition)
	}
}

func bothNumbers(a, b string) (float64, float64, bool) {
	x, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, 0, false
	}
	return x, y, true
}

// parseMillis reads a duration limit: a bare number is milliseconds,
// anything else a Go duration.
func parseMillis(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		return ms, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration limit %q", s)
	}
	return http.Millis(d), nil
}

// wantExists is false only for an explicit "false".
func wantExists(expected string) bool {
	return !strings.EqualFold(strings.TrimSpace(expected), "false")
}
