package config

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the entire workload file.
//
// Returns nil if valid, or a *ValidationErrors containing every problem
// found.
func (c *TestConfig) Validate() error {
	errs := &ValidationErrors{}

	validateOptions(c, errs)
	validateSettings(&c.Settings, errs)

	if len(c.Default) == 0 {
		errs.Add("default", "at least one step is required")
	}
	validateSteps("default", c.Default, errs)

	if c.Setup != nil {
		validateSteps("setup.steps", c.Setup.Steps, errs)
		extracted := map[string]bool{}
		collectExtracts(c.Setup.Steps, extracted)
		for i, name := range c.Setup.Returns {
			if _, declared := c.Variables[name]; !extracted[name] && !declared {
				errs.Add(fmt.Sprintf("setup.returns[%d]", i), fmt.Sprintf("%q is never extracted by a setup step", name))
			}
		}
	}
	if c.Teardown != nil {
		validateSteps("teardown.steps", c.Teardown.Steps, errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateOptions(c *TestConfig, errs *ValidationErrors) {
	opts, err := c.ToOptions()
	if err != nil {
		errs.Add("options", err.Error())
		return
	}
	for i, st := range c.Options.Stages {
		if st.Duration == "" {
			errs.Add(fmt.Sprintf("options.stages[%d].duration", i), "duration is required")
		}
	}
	if err := opts.Validate(); err != nil {
		errs.Add("options", err.Error())
	}

	selectors := make([]string, 0, len(opts.Thresholds))
	for s := range opts.Thresholds {
		selectors = append(selectors, s)
	}
	sort.Strings(selectors)
	for _, selector := range selectors {
		if _, _, err := metrics.ParseSelector(selector); err != nil {
			errs.Add("options.thresholds."+selector, err.Error())
			continue
		}
		for i, expr := range opts.Thresholds[selector] {
			if _, err := metrics.ParseThreshold(expr); err != nil {
				errs.Add(fmt.Sprintf("options.thresholds.%s[%d]", selector, i), err.Error())
			}
		}
	}
}

func validateSettings(s *Settings, errs *ValidationErrors) {
	if s.BaseURL != "" {
		if u, err := url.Parse(s.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs.Add("settings.baseUrl", fmt.Sprintf("invalid URL: %s", s.BaseURL))
		}
	}
	switch s.Transport {
	case "", http.KindNetHTTP, http.KindFastHTTP:
	default:
		errs.Add("settings.transport", fmt.Sprintf("unknown transport %q", s.Transport))
	}
	if s.MaxConnsPerHost < 0 {
		errs.Add("settings.maxConnsPerHost", "cannot be negative")
	}
	if s.MaxIdleConnsPerHost < 0 {
		errs.Add("settings.maxIdleConnsPerHost", "cannot be negative")
	}
}

func validateSteps(prefix string, steps []StepConfig, errs *ValidationErrors) {
	for i, st := range steps {
		p := fmt.Sprintf("%s[%d]", prefix, i)
		set := 0
		if st.Request != nil {
			set++
			validateRequest(p+".request", st.Request, errs)
		}
		if st.Batch != nil {
			set++
			if len(st.Batch.Requests) == 0 {
				errs.Add(p+".batch.requests", "at least one request is required")
			}
			for j := range st.Batch.Requests {
				validateRequest(fmt.Sprintf("%s.batch.requests[%d]", p, j), &st.Batch.Requests[j], errs)
			}
			validateChecks(p+".batch.checks", st.Batch.Checks, errs)
		}
		if st.Group != nil {
			set++
			switch {
			case st.Group.Name == "":
				errs.Add(p+".group.name", "name is required")
			case strings.Contains(st.Group.Name, loadtest.GroupSeparator):
				errs.Add(p+".group.name", fmt.Sprintf("must not contain %q", loadtest.GroupSeparator))
			}
			validateSteps(p+".group.steps", st.Group.Steps, errs)
		}
		if st.Sleep != "" {
			set++
			if _, err := ParseDurationString(st.Sleep); err != nil {
				errs.Add(p+".sleep", err.Error())
			}
		}
		if st.Fail != "" {
			set++
		}
		if st.Check != nil {
			set++
			if st.Check.Var == "" {
				errs.Add(p+".check.var", "var is required")
			}
			validateChecks(p+".check.checks", st.Check.Checks, errs)
		}
		if set != 1 {
			errs.Add(p, "exactly one of request, batch, group, sleep, fail or check is required")
		}
	}
}

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

func validateRequest(prefix string, req *RequestConfig, errs *ValidationErrors) {
	method := strings.ToUpper(req.Method)
	if method != "" && !validMethods[method] {
		errs.Add(prefix+".method", fmt.Sprintf("invalid HTTP method: %s", req.Method))
	}

	if req.URL == "" {
		errs.Add(prefix+".url", "url is required")
	} else {
		// Placeholders are checked at run time.
		u := placeholder.ReplaceAllString(req.URL, "placeholder")
		if _, err := url.Parse(u); err != nil {
			errs.Add(prefix+".url", fmt.Sprintf("invalid URL: %v", err))
		}
	}

	if req.Body != nil && len(req.Form) > 0 {
		errs.Add(prefix, "body and form are mutually exclusive")
	}

	if req.Timeout != "" {
		if _, err := ParseDurationString(req.Timeout); err != nil {
			errs.Add(prefix+".timeout", fmt.Sprintf("invalid timeout: %v", err))
		}
	}

	for i, ex := range req.Extract {
		validateExtract(fmt.Sprintf("%s.extract[%d]", prefix, i), &ex, errs)
	}
	validateChecks(prefix+".checks", req.Checks, errs)
}

var validSources = map[string]bool{
	"body": true, "json": true, "header": true, "status": true,
}

func validateExtract(prefix string, ex *ExtractConfig, errs *ValidationErrors) {
	if ex.Name == "" {
		errs.Add(prefix+".name", "name is required")
	}
	if ex.Source == "" {
		errs.Add(prefix+".source", "source is required")
	} else if !validSources[ex.Source] {
		errs.Add(prefix+".source", fmt.Sprintf("invalid source: %s", ex.Source))
	}
	if (ex.Source == "json" || ex.Source == "header") && ex.Path == "" {
		errs.Add(prefix+".path", fmt.Sprintf("path is required for %s extraction", ex.Source))
	}
	if ex.Regex != "" {
		if _, err := regexp.Compile(ex.Regex); err != nil {
			errs.Add(prefix+".regex", fmt.Sprintf("invalid regex: %v", err))
		}
	}
}

var validCheckTypes = map[string]bool{
	"status": true, "body": true, "header": true, "duration": true,
	"json": true, "schema": true, "value": true,
}

var validConditions = map[string]bool{
	"eq": true, "ne": true, "gt": true, "lt": true, "gte": true, "lte": true,
	"contains": true, "matches": true, "exists": true,
}

func validateChecks(prefix string, checks []CheckConfig, errs *ValidationErrors) {
	for i, c := range checks {
		p := fmt.Sprintf("%s[%d]", prefix, i)
		if c.Type == "" {
			errs.Add(p+".type", "type is required")
		} else if !validCheckTypes[c.Type] {
			errs.Add(p+".type", fmt.Sprintf("invalid check type: %s", c.Type))
		}
		if c.Condition != "" && !validConditions[c.Condition] {
			errs.Add(p+".condition", fmt.Sprintf("invalid condition: %s", c.Condition))
		}
		if c.Condition == "matches" {
			if _, err := regexp.Compile(c.Value); err != nil {
				errs.Add(p+".value", fmt.Sprintf("invalid regex: %v", err))
			}
		}
		switch c.Type {
		case "header", "json":
			if c.Path == "" {
				errs.Add(p+".path", fmt.Sprintf("path is required for %s checks", c.Type))
			}
		case "schema":
			if c.Schema == nil {
				errs.Add(p+".schema", "schema is required for schema checks")
			}
		}
	}
}

// collectExtracts records every variable name extracted by steps.
func collectExtracts(steps []StepConfig, into map[string]bool) {
	for _, st := range steps {
		switch {
		case st.Request != nil:
			for _, ex := range st.Request.Extract {
				into[ex.Name] = true
			}
		case st.Batch != nil:
			for _, r := range st.Batch.Requests {
				for _, ex := range r.Extract {
					into[ex.Name] = true
				}
			}
		case st.Group != nil:
			collectExtracts(st.Group.Steps, into)
		}
	}
}
