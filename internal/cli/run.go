package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest/config"
	"github.com/wesleyorama2/surge/internal/loadtest/engine"
	"github.com/wesleyorama2/surge/internal/loadtest/executor"
	"github.com/wesleyorama2/surge/internal/loadtest/output"
	"github.com/wesleyorama2/surge/internal/loadtest/workload"
	"github.com/wesleyorama2/surge/internal/logging"
)

type runFlags struct {
	vus        int
	duration   string
	stages     string
	iterations int64
	rps        float64
	transport  string

	out           []string
	summaryExport string

	quiet   bool
	noColor bool

	logLevel  string
	logFormat string
	logFile   string
}

func (f *runFlags) overrides() (config.Overrides, error) {
	o := config.Overrides{VUs: f.vus, Iterations: f.iterations, RPS: f.rps}
	d, err := config.ParseDurationString(f.duration)
	if err != nil {
		return o, fmt.Errorf("invalid --duration: %w", err)
	}
	o.Duration = d
	if o.Stages, err = config.ParseStages(f.stages); err != nil {
		return o, fmt.Errorf("invalid --stages: %w", err)
	}
	return o, nil
}

func (f *runFlags) logger(cmd *cobra.Command) (*zap.Logger, error) {
	cfg := logging.DefaultConfig()
	cfg.Level = f.logLevel
	cfg.Format = f.logFormat
	cfg.File = f.logFile
	cfg.Writer = cmd.ErrOrStderr()
	return logging.New(cfg)
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a load test from a workload file",
		Long: `Run a load test described by a YAML or JSON workload file.

Flags override the options of the file: --duration and --iterations
replace its stages, --stages replaces its duration and iterations.

The exit code is 0 when every threshold passed, 99 when a threshold
failed and 107 when setup or teardown failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadTest(cmd, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&f.vus, "vus", "u", 0, "number of virtual users")
	flags.StringVarP(&f.duration, "duration", "d", "", "test duration (e.g. 30s, 5m)")
	flags.StringVarP(&f.stages, "stages", "s", "", "ramping stages as duration:target,... (e.g. 30s:10,1m:10,30s:0)")
	flags.Int64VarP(&f.iterations, "iterations", "i", 0, "total iterations shared by all VUs")
	flags.Float64Var(&f.rps, "rps", 0, "maximum requests per second across all VUs")
	flags.StringVar(&f.transport, "transport", "", "HTTP transport: nethttp or fasthttp (overrides settings.transport)")
	flags.StringArrayVarP(&f.out, "out", "o", nil, "sample output, e.g. json=samples.json (repeatable)")
	flags.StringVar(&f.summaryExport, "summary-export", "", "write the end-of-run summary as JSON to this file")
	flags.BoolVarP(&f.quiet, "quiet", "q", false, "disable live progress, print only PASSED or FAILED")
	flags.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&f.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.StringVar(&f.logFormat, "log-format", "console", "log format: console or json")
	flags.StringVar(&f.logFile, "log-file", "", "also write JSON logs to this file (rotated)")
	return cmd
}

func runLoadTest(cmd *cobra.Command, path string, f *runFlags) error {
	logger, err := f.logger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	w, cfg, err := workload.Load(path)
	if err != nil {
		return err
	}
	overrides, err := f.overrides()
	if err != nil {
		return err
	}
	overrides.Apply(&w.Options)

	kind := cfg.Settings.Transport
	if f.transport != "" {
		kind = f.transport
	}
	transport, err := http.New(kind, cfg.TransportConfig())
	if err != nil {
		return err
	}
	defer transport.Close()

	outputs, err := output.Parse(f.out, logger)
	if err != nil {
		return err
	}

	eng, err := engine.New(w, transport, engine.Config{Logger: logger, Outputs: outputs})
	if err != nil {
		return err
	}
	logger.Info("starting run",
		zap.String("file", path),
		zap.String("run_id", eng.RunID()),
		zap.String("transport", kind))

	console := output.NewConsole(output.ConsoleConfig{
		Writer:         cmd.OutOrStdout(),
		UpdateInterval: time.Second,
		Quiet:          f.quiet,
		NoColor:        f.noColor,
	})
	opts := eng.Options()
	console.PrintHeader(w.Name, string(executor.TypeFor(opts)), opts)

	sigCtx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	watchCtx, stopWatch := context.WithCancel(cmd.Context())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		console.Watch(watchCtx, eng)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-sigCtx.Done():
			logger.Warn("interrupted, stopping the run gracefully")
			eng.Stop()
		case <-watchCtx.Done():
		}
	}()

	res, runErr := eng.Run(cmd.Context())
	stopWatch()
	wg.Wait()

	if res == nil {
		return runErr
	}
	console.PrintSummary(res)

	if f.summaryExport != "" {
		if err := output.WriteSummaryFile(f.summaryExport, res); err != nil {
			return err
		}
	}
	if code := res.Status.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
