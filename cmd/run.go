package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wavegen/wavegen/load"
	"github.com/wavegen/wavegen/load/discovery"
	"github.com/wavegen/wavegen/load/report"
	"github.com/wavegen/wavegen/load/sink"
	"github.com/wavegen/wavegen/load/trace"
)

// runOptions holds every `run` flag. Values from --spec or --preset are used
// as the base and only flags set explicitly on the command line (or via
// WAVEGEN_* env) override them.
type runOptions struct {
	specPath    string
	preset      string
	presetsPath string

	target      string
	ports       []int
	minAgents   int
	maxAgents   int
	cycle       time.Duration
	rest        time.Duration
	total       time.Duration
	tickPause   time.Duration
	payloadSize int
	seed        int64

	identity       string
	identityPrefix string
	identityAddrs  []string

	sink        string
	dialTimeout time.Duration
	maxInFlight int
	natsURL     string
	natsSubject string
	rate        float64
	burst       int
	workers     int
	queue       int

	scan scanOptions

	traceLevel  string
	traceOut    string
	summaryOut  string
	metricsAddr string
	statusEvery time.Duration

	clickhouse report.ClickHouseConfig
}

var runOpts = &runOptions{}

// runCmd executes a load session using parameters from flags and an optional spec file
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a sine-wave load session against a target",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runOpts.run(ctx, cmd.Flags(), cmd.OutOrStdout())
	},
}

func (o *runOptions) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.specPath, "spec", "", "YAML session spec; explicit flags override its values")
	fs.StringVar(&o.preset, "preset", "", "Named session shape (smoke, swell, burst); explicit flags override it")
	fs.StringVar(&o.presetsPath, "presets", "", "Presets file replacing the built-in presets")

	fs.StringVar(&o.target, "target", "", "Destination host name or address")
	fs.IntSliceVar(&o.ports, "ports", nil, "Destination ports (empty = discover)")
	fs.IntVar(&o.minAgents, "min-agents", 1, "Agent count at the trough of the wave")
	fs.IntVar(&o.maxAgents, "max-agents", 10, "Agent count at the crest of the wave")
	fs.DurationVar(&o.cycle, "cycle", time.Minute, "Duration of one active phase")
	fs.DurationVar(&o.rest, "rest", 30*time.Second, "Pause between active phases")
	fs.DurationVar(&o.total, "total", 0, "Total session budget (0 = run until interrupted)")
	fs.DurationVar(&o.tickPause, "tick-pause", 0, "Pause between ticks (0 = yield only)")
	fs.IntVar(&o.payloadSize, "payload-size", load.DefaultPayloadSize, "Payload bytes per probe")
	fs.Int64Var(&o.seed, "seed", 42, "Seed for identity and source-port generation (0 = from clock)")

	fs.StringVar(&o.identity, "identity", "random", "Source identity strategy (random, fixed, pool)")
	fs.StringVar(&o.identityPrefix, "identity-prefix", load.DefaultIdentityPrefix, "Prefix random identities are drawn from")
	fs.StringSliceVar(&o.identityAddrs, "identity-addrs", nil, "Addresses for the fixed and pool strategies")

	fs.StringVar(&o.sink, "sink", "tcp", "Transport for batches (discard, tcp, nats)")
	fs.DurationVar(&o.dialTimeout, "dial-timeout", sink.DefaultDialTimeout, "TCP connect timeout per probe")
	fs.IntVar(&o.maxInFlight, "max-inflight", sink.DefaultMaxInFlight, "Concurrent TCP connects per batch")
	fs.StringVar(&o.natsURL, "nats-url", "nats://127.0.0.1:4222", "NATS server for --sink nats")
	fs.StringVar(&o.natsSubject, "nats-subject", sink.DefaultNATSSubject, "NATS subject for --sink nats")
	fs.Float64Var(&o.rate, "rate", 0, "Probe rate ceiling per second (0 = unlimited)")
	fs.IntVar(&o.burst, "burst", 100, "Token bucket burst for --rate")
	fs.IntVar(&o.workers, "workers", load.DefaultWorkers, "Dispatch workers")
	fs.IntVar(&o.queue, "queue", load.DefaultQueueSize, "Dispatch queue length in batches")

	o.scan.bindFlags(fs)

	fs.StringVar(&o.traceLevel, "trace", string(trace.TraceLevelNone), "Session trace level (none, cycles, ticks)")
	fs.StringVar(&o.traceOut, "trace-out", "", "Write trace records as TOML to this path (required with --trace)")
	fs.StringVar(&o.summaryOut, "summary-out", "", "Write the session summary as TOML to this path")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve /status and /metrics on this address")
	fs.DurationVar(&o.statusEvery, "status-every", 5*time.Second, "Interval between progress log lines (0 = off)")

	fs.StringVar(&o.clickhouse.Addr, "clickhouse-addr", "", "ClickHouse address for progress rows (host:port)")
	fs.StringVar(&o.clickhouse.Database, "clickhouse-db", "default", "ClickHouse database")
	fs.StringVar(&o.clickhouse.Username, "clickhouse-user", "default", "ClickHouse user")
	fs.StringVar(&o.clickhouse.Password, "clickhouse-password", "", "ClickHouse password")
}

// sessionSpec merges the spec file or preset (if any) with the flags.
func (o *runOptions) sessionSpec(flags *pflag.FlagSet) (*load.SessionSpec, error) {
	var (
		spec = &load.SessionSpec{}
		base bool
		err  error
	)
	switch {
	case o.specPath != "" && o.preset != "":
		return nil, errors.New("--spec and --preset are mutually exclusive")
	case o.specPath != "":
		if spec, err = load.LoadSessionSpec(o.specPath); err != nil {
			return nil, err
		}
		base = true
	case o.preset != "":
		pf, err := loadPresets(o.presetsPath)
		if err != nil {
			return nil, err
		}
		if spec, err = pf.preset(o.preset); err != nil {
			return nil, err
		}
		base = true
	}
	use := func(name string) bool {
		return !base || flags.Changed(name)
	}

	if use("target") && o.target != "" {
		spec.Target = o.target
	}
	if use("ports") && len(o.ports) > 0 {
		spec.Ports = append([]int(nil), o.ports...)
	}
	if use("min-agents") {
		spec.MinAgents = o.minAgents
	}
	if use("max-agents") {
		spec.MaxAgents = o.maxAgents
	}
	if use("cycle") {
		spec.CycleSeconds = o.cycle.Seconds()
	}
	if use("rest") {
		spec.RestSeconds = o.rest.Seconds()
	}
	if use("total") {
		spec.TotalSeconds = o.total.Seconds()
	}
	if use("tick-pause") {
		spec.TickPauseMs = float64(o.tickPause) / float64(time.Millisecond)
	}
	if use("payload-size") {
		spec.PayloadSize = o.payloadSize
	}
	if use("seed") {
		spec.Seed = o.seed
	}
	if use("identity") {
		spec.Identity.Strategy = o.identity
	}
	if use("identity-prefix") {
		spec.Identity.Prefix = o.identityPrefix
	}
	if use("identity-addrs") && len(o.identityAddrs) > 0 {
		spec.Identity.Addresses = append([]string(nil), o.identityAddrs...)
	}
	return spec, nil
}

// resolveTarget fills in the target from an nmap report and the ports from
// discovery when neither flags nor the spec file name them.
func (o *runOptions) resolveTarget(ctx context.Context, spec *load.SessionSpec) error {
	if strings.TrimSpace(spec.Target) == "" && o.scan.report != "" {
		f, err := os.Open(o.scan.report)
		if err != nil {
			return &discovery.DiscoveryFailure{Err: err}
		}
		host, _, err := discovery.ParseNmapReport(f)
		f.Close()
		if err != nil {
			return &discovery.DiscoveryFailure{Err: err}
		}
		logrus.Infof("Target %s taken from %s", host, o.scan.report)
		spec.Target = host
	}
	if strings.TrimSpace(spec.Target) == "" {
		return &load.ConfigurationError{Field: "destination host", Reason: "must not be empty"}
	}
	if len(spec.Ports) > 0 {
		return nil
	}

	d, err := o.scan.discoverer()
	if err != nil {
		return err
	}
	ports, err := discovery.ResolvePorts(ctx, d, spec.Target)
	if err != nil {
		return err
	}
	spec.Ports = ports
	return nil
}

func (o *runOptions) newSink() (load.Sink, func(), error) {
	var (
		s       load.Sink
		closeFn = func() {}
	)
	switch o.sink {
	case "discard":
		s = &sink.Discard{}
	case "tcp":
		s = sink.NewTCPConnect(o.dialTimeout, o.maxInFlight)
	case "nats":
		n, err := sink.DialNATS(o.natsURL, o.natsSubject)
		if err != nil {
			return nil, nil, err
		}
		s, closeFn = n, n.Close
	default:
		return nil, nil, fmt.Errorf("unknown sink %q (discard, tcp, nats)", o.sink)
	}
	if o.rate > 0 {
		s = sink.NewRateLimited(s, o.rate, o.burst)
	}
	return s, closeFn, nil
}

// newReporters wires the optional progress consumers. The returned cleanup
// must run after the scheduler has returned.
func (o *runOptions) newReporters(ctx context.Context, seed int64) (load.Reporters, func(), error) {
	var (
		reporters = load.Reporters{report.NewLog(o.statusEvery)}
		cleanups  []func()
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if o.metricsAddr != "" {
		metrics := report.NewMetrics()
		srv := report.NewServer(metrics)
		if err := srv.Start(o.metricsAddr); err != nil {
			return nil, cleanup, fmt.Errorf("starting status server: %w", err)
		}
		reporters = append(reporters, metrics, srv)
		cleanups = append(cleanups, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logrus.Warnf("Status server forced to shut down: %v", err)
			}
		})
	}

	if o.clickhouse.Addr != "" {
		write, closeConn, err := report.DialClickHouse(ctx, o.clickhouse)
		if err != nil {
			return nil, cleanup, err
		}
		session := fmt.Sprintf("%s-%d", time.Now().UTC().Format("20060102T150405"), seed)
		ch := report.NewClickHouse(write, session, 0, 0, 0)
		reporters = append(reporters, ch)
		cleanups = append(cleanups, func() {
			ch.Close()
			if n := ch.Dropped(); n > 0 {
				logrus.Warnf("%d progress rows were not written to ClickHouse", n)
			}
			_ = closeConn()
		})
	}
	return reporters, cleanup, nil
}

func (o *runOptions) run(ctx context.Context, flags *pflag.FlagSet, out io.Writer) error {
	if !trace.IsValidTraceLevel(o.traceLevel) {
		return fmt.Errorf("invalid trace level %q (none, cycles, ticks)", o.traceLevel)
	}
	level := trace.TraceLevel(o.traceLevel)
	if level != trace.TraceLevelNone && level != "" && o.traceOut == "" {
		return fmt.Errorf("--trace %s needs --trace-out", o.traceLevel)
	}
	spec, err := o.sessionSpec(flags)
	if err != nil {
		return err
	}
	if err := o.resolveTarget(ctx, spec); err != nil {
		return err
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	cfg, err := spec.Config()
	if err != nil {
		return err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
		logrus.Infof("Seed 0 given; using %d", cfg.Seed)
	}
	if level == trace.TraceLevelTicks && cfg.TickPause == 0 && cfg.TotalDuration == 0 {
		return fmt.Errorf("--trace ticks needs --tick-pause or --total; an unbounded session without a tick pause would record ticks forever")
	}
	identities, err := load.NewIdentitySource(spec.Identity)
	if err != nil {
		return err
	}

	snk, closeSink, err := o.newSink()
	if err != nil {
		return err
	}
	defer closeSink()

	reporters, cleanup, err := o.newReporters(ctx, cfg.Seed)
	defer cleanup()
	if err != nil {
		return err
	}
	st := trace.NewSessionTrace(level)
	reporters = append(reporters, st)

	builder := load.NewBatchBuilder(identities, load.NewPartitionedRNG(cfg.Seed), cfg.PayloadSize)
	dispatcher := load.NewDispatcher(ctx, snk, o.workers, o.queue)
	sess, err := load.NewScheduler(cfg, builder, dispatcher, reporters, nil).Run(ctx)
	if err != nil {
		return err
	}

	summary := trace.Summarize(st)
	printSummary(out, sess, summary)
	if o.summaryOut != "" {
		if err := trace.WriteSummaryTOML(o.summaryOut, summary); err != nil {
			return err
		}
		logrus.Infof("Summary written to %s", o.summaryOut)
	}
	if o.traceOut != "" && st.Level != trace.TraceLevelNone {
		if err := trace.WriteTraceTOML(o.traceOut, st); err != nil {
			return err
		}
		if st.TicksOmitted > 0 {
			logrus.Warnf("Trace kept the first %d ticks; %d more were omitted", len(st.Ticks), st.TicksOmitted)
		}
		logrus.Infof("Trace written to %s", o.traceOut)
	}
	return nil
}

// printSummary displays the final counters of a session.
func printSummary(w io.Writer, sess *load.Session, s *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Session Summary ===")
	fmt.Fprintf(w, "Target               : %s %v\n", sess.Config.DestinationHost, sess.Config.DestinationPorts)
	fmt.Fprintf(w, "Ended By             : %s\n", sess.Reason)
	fmt.Fprintf(w, "Cycles               : %d\n", sess.CycleIndex)
	fmt.Fprintf(w, "Ticks                : %d\n", sess.Ticks)
	fmt.Fprintf(w, "Duration             : %s\n", sess.EndTime.Sub(sess.StartTime).Round(time.Millisecond))
	fmt.Fprintf(w, "Probes Attempted     : %d\n", sess.ProbesAttempted)
	fmt.Fprintf(w, "Probes Sent          : %d\n", sess.ProbesSent)
	fmt.Fprintf(w, "Probes Failed        : %d (%d batches)\n", sess.ProbesFailed, sess.FailedBatches)
	fmt.Fprintf(w, "Probes Dropped       : %d (%d batches)\n", sess.ProbesDropped, sess.DroppedBatches)
	if s.Ticks > 0 {
		fmt.Fprintf(w, "Agents (peak / mean) : %d / %.2f\n", s.PeakAgents, s.MeanAgents)
	}
}

func init() {
	runOpts.bindFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}
