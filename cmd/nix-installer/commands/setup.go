package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/plan"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/planner"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/policy"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/settings"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/stores"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/telemetry"
)

// runtime is the wired ambient stack for one invocation: logger, tracer,
// metrics endpoint. Commands build it first and defer its shutdown.
type runtime struct {
	log     zerolog.Logger
	tracer  *telemetry.Tracer
	metrics *telemetry.MetricsServer
}

func newRuntime(version string) (*runtime, error) {
	cfg := telemetry.DefaultConfig("nix-installer", version)
	cfg.Logging.Level = logLevel
	cfg.Logging.Format = logFormat
	cfg.Tracing.Exporter = traceExporter
	cfg.Tracing.Endpoint = traceEndpoint
	cfg.Tracing.Enabled = traceExporter != "" && traceExporter != "none"
	cfg.Metrics.Enabled = metricsListen != ""
	cfg.Metrics.ListenAddr = metricsListen
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}
	tracer, err := telemetry.NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	return &runtime{
		log:     log,
		tracer:  tracer,
		metrics: telemetry.NewMetricsServer(cfg.Metrics),
	}, nil
}

// context returns ctx with the root logger attached, for zerolog.Ctx
// retrieval inside actions.
func (r *runtime) context(ctx context.Context) context.Context {
	return r.log.WithContext(ctx)
}

func (r *runtime) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.tracer.Shutdown(ctx); err != nil {
		r.log.Warn().Err(err).Msg("Failed to flush spans")
	}
	if err := r.metrics.Shutdown(ctx); err != nil {
		r.log.Warn().Err(err).Msg("Failed to stop metrics endpoint")
	}
}

// settingsFlags are the per-knob overrides shared by plan and install.
// Only flags the user actually set are applied on top of the defaults and
// the settings file.
type settingsFlags struct {
	plannerName     string
	packageURL      string
	daemonUserCount int
	noModifyProfile bool
	extraConf       string
	sslCertFile     string
	force           bool
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.plannerName, "planner", "", "planner to use (linux-multi, ostree, macos-multi); default probes the host")
	cmd.Flags().StringVar(&f.packageURL, "nix-package-url", "", "URL of the Nix tarball to install")
	cmd.Flags().IntVar(&f.daemonUserCount, "daemon-user-count", 0, "number of build users to create")
	cmd.Flags().BoolVar(&f.noModifyProfile, "no-modify-profile", false, "do not edit shell profiles")
	cmd.Flags().StringVar(&f.extraConf, "extra-conf", "", "extra lines for nix.conf")
	cmd.Flags().StringVar(&f.sslCertFile, "ssl-cert-file", "", "SSL certificate bundle for the daemon and fetches")
	cmd.Flags().BoolVar(&f.force, "force", false, "overwrite existing files at managed paths")
}

// resolve merges defaults, the settings file and explicit flags, in that
// order, and validates the result.
func (f *settingsFlags) resolve(cmd *cobra.Command) (settings.InstallSettings, error) {
	s, err := settings.Default()
	if err != nil {
		return settings.InstallSettings{}, err
	}
	if settingsFile != "" {
		s, err = settings.LoadFile(s, settingsFile)
		if err != nil {
			return settings.InstallSettings{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("nix-package-url") {
		s.NixPackageURL = f.packageURL
	}
	if flags.Changed("daemon-user-count") {
		s.DaemonUserCount = f.daemonUserCount
	}
	if flags.Changed("no-modify-profile") {
		s.ModifyProfile = !f.noModifyProfile
	}
	if flags.Changed("extra-conf") {
		s.ExtraConf = f.extraConf
	}
	if flags.Changed("ssl-cert-file") {
		s.SSLCertFile = f.sslCertFile
	}
	if flags.Changed("force") {
		s.Force = f.force
	}

	if err := s.Validate(); err != nil {
		return settings.InstallSettings{}, err
	}
	return s, nil
}

// checkPolicy runs the policy gate over the plan and fails on blocking
// violations. Non-blocking violations are printed and ignored.
func checkPolicy(ctx context.Context, log zerolog.Logger, p *plan.Plan, operation string, dryRun bool) error {
	eng, err := policy.NewEngine(log)
	if err != nil {
		return fmt.Errorf("setting up policy engine: %w", err)
	}
	if policyDir != "" {
		if err := eng.LoadPolicies(ctx, []string{policyDir}); err != nil {
			return err
		}
	}

	result, err := eng.EvaluatePlan(ctx, p, &policy.Context{
		Operation: operation,
		DryRun:    dryRun,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("evaluating policies: %w", err)
	}

	if out := result.Render(); out != "" {
		fmt.Fprint(os.Stderr, out)
	}
	if !result.Allowed {
		return fmt.Errorf("plan blocked by policy")
	}
	return nil
}

// defaultHistoryPath keeps the run history outside /nix so it survives an
// uninstall.
func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "nix-installer", "history.db")
}

// openHistory opens and migrates the history store. A history failure is
// never fatal to the command; callers get a nil store and keep going.
func openHistory(ctx context.Context, log zerolog.Logger) *stores.SQLiteStore {
	path := historyDB
	if path == "" {
		path = defaultHistoryPath()
	}
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Cannot create history directory, continuing without history")
		return nil
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		log.Warn().Err(err).Msg("Cannot open history store, continuing without history")
		return nil
	}
	if err := store.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("Cannot initialize history store, continuing without history")
		return nil
	}
	if err := store.Migrate(ctx); err != nil {
		log.Warn().Err(err).Msg("Cannot migrate history store, continuing without history")
		_ = store.Close()
		return nil
	}
	return store
}

// recordRunStart opens a run row; nil-safe on a nil store.
func recordRunStart(ctx context.Context, store *stores.SQLiteStore, log zerolog.Logger, p *plan.Plan, operation, receiptPath string) {
	if store == nil {
		return
	}
	run := &stores.Run{
		ID:          p.ID,
		Operation:   operation,
		Planner:     p.PlannerName,
		ReceiptPath: receiptPath,
		Status:      stores.RunStatusRunning,
		StartedAt:   time.Now(),
	}
	if err := store.CreateRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("Failed to record run start")
	}
}

// recordRunEnd closes a run row; nil-safe on a nil store.
func recordRunEnd(ctx context.Context, store *stores.SQLiteStore, log zerolog.Logger, p *plan.Plan, operation string, runErr error, cancelled bool) {
	if store == nil {
		return
	}
	status := stores.RunStatusCompleted
	var errMsg *string
	if runErr != nil {
		status = stores.RunStatusFailed
		if cancelled {
			status = stores.RunStatusCancelled
		}
		msg := runErr.Error()
		errMsg = &msg
	}
	if err := store.CompleteRun(ctx, p.ID, operation, status, errMsg); err != nil {
		log.Warn().Err(err).Msg("Failed to record run end")
	}
}

// observerFor builds the walk observer: the history recorder when a store
// is available, nil otherwise.
func observerFor(store *stores.SQLiteStore, runID string, log zerolog.Logger) plan.Observer {
	if store == nil {
		return nil
	}
	return stores.NewRecorder(store, runID, log)
}

// confirm asks the user to proceed. --yes answers every prompt.
func confirm(prompt string) (bool, error) {
	if assumeYes {
		return true, nil
	}
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// verifyReceiptCompatible refuses a receipt that does not match a requested
// planner or settings file. With neither requested the receipt is taken at
// its word: it is the record of what actually happened on this host.
func verifyReceiptCompatible(p *plan.Plan, plannerName, configPath string) error {
	if plannerName == "" && configPath == "" {
		return nil
	}
	s, err := settings.Default()
	if err != nil {
		return err
	}
	if configPath != "" {
		s, err = settings.LoadFile(s, configPath)
		if err != nil {
			return err
		}
		if err := s.Validate(); err != nil {
			return err
		}
	}
	name := plannerName
	if name == "" {
		name = p.PlannerName
	}
	pl, err := planner.ByName(name, s)
	if err != nil {
		return err
	}
	return p.CheckCompatible(pl)
}

// resolvePlanner picks the planner: an explicit name, or host probing.
func resolvePlanner(name string, s settings.InstallSettings) (plan.Planner, error) {
	if name != "" {
		return planner.ByName(name, s)
	}
	return planner.Select(s)
}
