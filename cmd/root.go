package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/macmole/internal/audit"
	"github.com/lakshaymaurya-felt/macmole/internal/auth"
	"github.com/lakshaymaurya-felt/macmole/internal/config"
	"github.com/lakshaymaurya-felt/macmole/internal/core"
	"github.com/lakshaymaurya-felt/macmole/internal/dupes"
	"github.com/lakshaymaurya-felt/macmole/internal/gate"
	"github.com/lakshaymaurya-felt/macmole/internal/logger"
	"github.com/lakshaymaurya-felt/macmole/internal/safety"
	"github.com/lakshaymaurya-felt/macmole/internal/scan"
	"github.com/lakshaymaurya-felt/macmole/internal/walk"
)

var (
	// Global flags
	configFile string
	debug      bool
	fullDepth  bool
	asJSON     bool
	asYAML     bool

	// Version info populated from main
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets build-time version information.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "mm",
	Short: "Find what fills your disk and clean it up safely",
	Long: `MacMole - find what fills your disk and clean it up safely.

Scans your home folders, shows the largest items and duplicate files,
grades every entry by how risky it is to delete, and removes nothing
until you re-authenticate.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM
// cancels it.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $HOME/.config/macmole/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Show detailed operation logs")
	rootCmd.PersistentFlags().BoolVar(&fullDepth, "full", false, "Also scan ~/Library and /Applications")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	rootCmd.PersistentFlags().BoolVar(&asYAML, "yaml", false, "Print the report as YAML")
	rootCmd.MarkFlagsMutuallyExclusive("json", "yaml")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Register all subcommands
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(breakdownCmd)
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mm %s (%s) built %s\n", appVersion, appCommit, appDate)
	},
}

// ─── Shared wiring ───────────────────────────────────────────────────────────

// app holds the components every command is built from. It is created once
// per invocation in setup.
type app struct {
	settings   *config.Settings
	log        zerolog.Logger
	classifier *safety.Classifier
	scanner    *scan.Engine
	dupes      *dupes.Engine
}

var deps *app

func setup(*cobra.Command, []string) error {
	settings, err := config.Load(configFile)
	if err != nil {
		return err
	}

	level := settings.Logging.Level
	if debug {
		level = "debug"
	}
	if err := logger.Init(level, settings.Logging.File); err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	log := logger.Get()

	w := walk.New(walk.Options{
		Concurrency:   settings.Scan.Workers * 2,
		Exclude:       settings.Scan.Exclude,
		OneFilesystem: settings.Scan.OneFilesystem,
	}, log.With().Str("component", "walk").Logger())
	c := safety.New(settings.Home)

	deps = &app{
		settings:   settings,
		log:        log,
		classifier: c,
		scanner: scan.New(w, c, scan.Options{
			Workers: settings.Scan.Workers,
			TopN:    settings.Scan.TopN,
		}, log.With().Str("component", "scan").Logger()),
		dupes: dupes.New(w, dupes.Options{
			Workers:      settings.Scan.Workers,
			PrefixFilter: settings.Dupes.PrefixFilter,
		}, log.With().Str("component", "dupes").Logger()),
	}
	log.Debug().Str("config", configFile).Str("home", settings.Home).Msg("settings loaded")
	return nil
}

// roots resolves the command's scan roots: explicit path arguments win over
// the configured root set.
func (a *app) roots(args []string) ([]config.Root, error) {
	if len(args) == 0 {
		depth := config.DepthBasic
		if fullDepth {
			depth = config.DepthFull
		}
		return a.settings.RootSet(depth)
	}

	roots := make([]config.Root, 0, len(args))
	for _, arg := range args {
		p, err := filepath.Abs(config.ExpandHome(arg, a.settings.Home))
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("scan root: %w", err)
		}
		roots = append(roots, config.Root{Name: filepath.Base(p), Path: p})
	}
	return roots, nil
}

// newGate wires the deletion gate. With yes the prompt is skipped; the
// returned close func releases the audit sink.
func (a *app) newGate(dryRun, yes bool) (*gate.Gate, func(), error) {
	sink, err := audit.Open(a.settings.Audit.Backend, a.settings.Audit.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}

	var authorizer gate.Authorizer = auth.ForSettings(a.settings.Auth.PasswordHash)
	if yes {
		authorizer = auth.Yes()
	}

	g := gate.New(a.classifier, authorizer, sink, core.NewDeleter(a.settings.Home),
		gate.Options{DryRun: dryRun}, a.log.With().Str("component", "gate").Logger())
	closeSink := func() {
		if err := sink.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close audit log")
		}
	}
	return g, closeSink, nil
}
