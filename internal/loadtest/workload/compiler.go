// Package workload compiles a declarative workload file into a
// loadtest.Workload.
//
// Each phase (setup, default, teardown) is a list of steps: a request, a
// parallel batch of requests, a named group of steps, a sleep, an explicit
// failure or a check on a variable. Requests may extract variables from
// their responses; later steps of the same phase reference them as
// {{name}}. Variables returned by setup are visible to every iteration and
// to teardown.
package workload

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/loadtest/config"
)

// step is one compiled statement of a phase.
type step func(ctx context.Context, vu *loadtest.VU, s *scope) error

// program is a compiled workload file.
type program struct {
	vars     map[string]string
	setup    []step
	returns  []string
	def      []step
	teardown []step
}

// Compile applies defaults to cfg, validates it and compiles every phase.
func Compile(cfg *config.TestConfig) (*loadtest.Workload, error) {
	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := cfg.ToOptions()
	if err != nil {
		return nil, err
	}

	p := &program{vars: resolveFileVariables(cfg)}
	if p.def, err = compileSteps("default", cfg.Default); err != nil {
		return nil, err
	}

	w := &loadtest.Workload{
		Name:    cfg.Name,
		Options: opts,
		Default: p.iteration,
	}
	if cfg.Setup != nil {
		if p.setup, err = compileSteps("setup", cfg.Setup.Steps); err != nil {
			return nil, err
		}
		p.returns = cfg.Setup.Returns
		w.Setup = p.runSetup
	}
	if cfg.Teardown != nil {
		if p.teardown, err = compileSteps("teardown", cfg.Teardown.Steps); err != nil {
			return nil, err
		}
		w.Teardown = p.runTeardown
	}
	return w, nil
}

// Load reads, compiles and returns the workload file at path.
func Load(path string) (*loadtest.Workload, *config.TestConfig, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	w, err := Compile(cfg)
	if err != nil {
		return nil, nil, err
	}
	return w, cfg, nil
}

func (p *program) iteration(ctx context.Context, vu *loadtest.VU, data loadtest.SetupData) error {
	return runSteps(ctx, vu, newScope(p.vars, vu, data), p.def)
}

func (p *program) runSetup(ctx context.Context, vu *loadtest.VU) (interface{}, error) {
	s := newScope(p.vars, vu, loadtest.SetupData{})
	if err := runSteps(ctx, vu, s, p.setup); err != nil {
		return nil, err
	}
	if len(p.returns) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(p.returns))
	for _, name := range p.returns {
		v, ok := s.get(name)
		if !ok {
			return nil, fmt.Errorf("setup did not extract %q", name)
		}
		out[name] = v
	}
	return out, nil
}

func (p *program) runTeardown(ctx context.Context, vu *loadtest.VU, data loadtest.SetupData) error {
	return runSteps(ctx, vu, newScope(p.vars, vu, data), p.teardown)
}

func runSteps(ctx context.Context, vu *loadtest.VU, s *scope, steps []step) error {
	for _, st := range steps {
		if err := st(ctx, vu, s); err != nil {
			return err
		}
	}
	return nil
}

func compileSteps(prefix string, in []config.StepConfig) ([]step, error) {
	out := make([]step, 0, len(in))
	for i, sc := range in {
		st, err := compileStep(fmt.Sprintf("%s[%d]", prefix, i), sc)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func compileStep(field string, sc config.StepConfig) (step, error) {
	switch {
	case sc.Request != nil:
		rs, err := compileRequest(sc.Request)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		return rs.run, nil

	case sc.Batch != nil:
		bs, err := compileBatch(sc.Batch)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		return bs.run, nil

	case sc.Group != nil:
		name := sc.Group.Name
		inner, err := compileSteps(field+".group.steps", sc.Group.Steps)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, vu *loadtest.VU, s *scope) error {
			return vu.Group(name, func() error {
				return runSteps(ctx, vu, s, inner)
			})
		}, nil

	case sc.Sleep != "":
		d, err := config.ParseDurationString(sc.Sleep)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		return func(ctx context.Context, vu *loadtest.VU, _ *scope) error {
			return vu.Sleep(ctx, d)
		}, nil

	case sc.Fail != "":
		msg := sc.Fail
		return func(_ context.Context, vu *loadtest.VU, s *scope) error {
			return vu.Fail("%s", s.resolve(msg))
		}, nil

	case sc.Check != nil:
		checks, err := compileChecks(sc.Check.Checks)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		name, abort := sc.Check.Var, sc.Check.AbortOnFail
		return func(_ context.Context, vu *loadtest.VU, s *scope) error {
			value, _ := s.get(name)
			if !vu.Check(value, bindChecks(checks, s)) && abort {
				return vu.Fail("check on %s failed", name)
			}
			return nil
		}, nil

	default:
		return nil, fmt.Errorf("%s: empty step", field)
	}
}

// requestStep is a compiled RequestConfig.
type requestStep struct {
	cfg        config.RequestConfig
	timeout    time.Duration
	checks     []*check
	extractors []*extractor
}

func compileRequest(rc *config.RequestConfig) (*requestStep, error) {
	rs := &requestStep{cfg: *rc}
	if rs.cfg.Method == "" {
		rs.cfg.Method = "GET"
	}
	var err error
	if rs.timeout, err = config.ParseDurationString(rc.Timeout); err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}
	if rs.checks, err = compileChecks(rc.Checks); err != nil {
		return nil, err
	}
	if rs.extractors, err = compileExtractors(rc.Extract); err != nil {
		return nil, err
	}
	return rs, nil
}

func (rs *requestStep) build(s *scope) *http.Request {
	req := http.NewRequest(rs.cfg.Method, s.resolve(rs.cfg.URL))
	for k, v := range rs.cfg.Headers {
		req.WithHeader(k, s.resolve(v))
	}
	for k, v := range rs.cfg.Query {
		req.WithQueryParam(k, s.resolve(v))
	}

	switch {
	case len(rs.cfg.Form) > 0:
		form := url.Values{}
		for k, v := range rs.cfg.Form {
			form.Set(k, s.resolve(v))
		}
		req.WithBody(form.Encode())
		if !hasHeader(req.Headers, "Content-Type") {
			req.WithHeader("Content-Type", "application/x-www-form-urlencoded")
		}
	case rs.cfg.Body != nil:
		req.WithBody(s.resolveValue(rs.cfg.Body))
	}

	if rs.cfg.Name != "" {
		req.WithTag("name", s.resolve(rs.cfg.Name))
	}
	for k, v := range rs.cfg.Tags {
		req.WithTag(k, s.resolve(v))
	}
	req.Timeout = rs.timeout
	req.ExpectedStatuses = rs.cfg.ExpectedStatuses
	return req
}

// after extracts variables and runs the checks of one response.
func (rs *requestStep) after(vu *loadtest.VU, s *scope, resp *http.Response) bool {
	for _, ex := range rs.extractors {
		if v, ok := ex.apply(resp); ok {
			s.set(ex.name, v)
		} else {
			vu.Logger().Debug("extraction found nothing",
				zap.String("variable", ex.name), zap.String("url", resp.URL))
		}
	}
	if len(rs.checks) == 0 {
		return true
	}
	return vu.Check(resp, bindChecks(rs.checks, s))
}

func (rs *requestStep) run(ctx context.Context, vu *loadtest.VU, s *scope) error {
	req := rs.build(s)
	resp := vu.Request(ctx, req)
	if err := interrupted(ctx, vu); err != nil {
		return err
	}
	if !rs.after(vu, s, resp) && rs.cfg.AbortOnFail {
		return vu.Fail("%s %s: checks failed (status %d)", req.Method, req.Name(), resp.StatusCode)
	}
	return nil
}

// batchStep is a compiled BatchConfig.
type batchStep struct {
	requests    []*requestStep
	checks      []*check
	abortOnFail bool
}

func compileBatch(bc *config.BatchConfig) (*batchStep, error) {
	bs := &batchStep{abortOnFail: bc.AbortOnFail}
	for i := range bc.Requests {
		rs, err := compileRequest(&bc.Requests[i])
		if err != nil {
			return nil, fmt.Errorf("requests[%d]: %w", i, err)
		}
		bs.requests = append(bs.requests, rs)
	}
	var err error
	if bs.checks, err = compileChecks(bc.Checks); err != nil {
		return nil, err
	}
	return bs, nil
}

func (bs *batchStep) run(ctx context.Context, vu *loadtest.VU, s *scope) error {
	reqs := make([]*http.Request, len(bs.requests))
	for i, rs := range bs.requests {
		reqs[i] = rs.build(s)
	}
	responses := vu.Batch(ctx, reqs)
	if err := interrupted(ctx, vu); err != nil {
		return err
	}

	ok := true
	for i, rs := range bs.requests {
		if !rs.after(vu, s, responses[i]) && rs.cfg.AbortOnFail {
			ok = false
		}
	}
	if len(bs.checks) > 0 && !vu.Check(responses, bindChecks(bs.checks, s)) && bs.abortOnFail {
		ok = false
	}
	if !ok {
		return vu.Fail("batch of %d requests: checks failed", len(reqs))
	}
	return nil
}

// interrupted returns the error that ends an iteration whose context is
// gone. Checks are not evaluated for such iterations.
func interrupted(ctx context.Context, vu *loadtest.VU) error {
	if err := vu.Context().Err(); err != nil {
		return err
	}
	return ctx.Err()
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
