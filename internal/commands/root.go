package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Icinga/icingaweb2-sub007/internal/config"
	"github.com/Icinga/icingaweb2-sub007/internal/metrics"
	"github.com/Icinga/icingaweb2-sub007/internal/service"
	"github.com/Icinga/icingaweb2-sub007/internal/version"
)

// app carries the state shared by every subcommand of one invocation
type app struct {
	cfgFile     string
	logLevel    string
	logFormat   string
	backend     string
	objectsFile string
	statusFile  string

	cfg    *config.Config
	logger *zap.Logger
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "statusdat",
		Short: "Query the object cache and status file of a monitoring core",
		Long: `statusdat reads objects.cache and status.dat as written by a
Nagios-compatible monitoring core, links them into an object graph and
answers filtered, ordered and grouped queries on it.

Backends are configured in a YAML file or with --objects and --status.`,
		Version:           version.Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "log format (json, console)")
	flags.StringVar(&a.backend, "backend", "", "backend to use (default: first configured)")
	flags.StringVar(&a.objectsFile, "objects", "", "objects.cache of the selected backend")
	flags.StringVar(&a.statusFile, "status", "", "status.dat of the selected backend")

	rootCmd.AddCommand(newParseCmd(a))
	rootCmd.AddCommand(newQueryCmd(a))
	rootCmd.AddCommand(newSummaryCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "%s" .Version}}
`)
	return rootCmd
}

func (a *app) init(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgFile, a.flagOverrides)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.logger.Debug("Configuration loaded",
		zap.String("config", a.cfgFile),
		zap.Int("backends", len(cfg.Backends)))
	return nil
}

// flagOverrides applies the command line on top of file and environment
func (a *app) flagOverrides(cfg *config.Config) {
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	if a.objectsFile == "" && a.statusFile == "" {
		return
	}

	name := a.backend
	if name == "" {
		name = "default"
	}
	for i := range cfg.Backends {
		if cfg.Backends[i].Name != name {
			continue
		}
		if a.objectsFile != "" {
			cfg.Backends[i].ObjectsFile = a.objectsFile
		}
		if a.statusFile != "" {
			cfg.Backends[i].StatusFile = a.statusFile
		}
		return
	}
	cfg.Backends = append(cfg.Backends, config.BackendConfig{
		Name:        name,
		ObjectsFile: a.objectsFile,
		StatusFile:  a.statusFile,
	})
	a.backend = name
}

// openRegistry builds the registry and loads every backend once
func (a *app) openRegistry(ctx context.Context, m *metrics.Metrics) (*service.Registry, error) {
	reg, err := service.NewRegistryFromConfig(a.cfg, m, a.logger)
	if err != nil {
		return nil, err
	}
	if err := reg.ReloadAll(ctx); err != nil {
		return nil, err
	}
	return reg, nil
}

// reader loads the registry and returns the selected backend
func (a *app) reader(ctx context.Context) (*service.Reader, error) {
	reg, err := a.openRegistry(ctx, nil)
	if err != nil {
		return nil, err
	}
	if a.backend != "" {
		return reg.Get(a.backend)
	}
	return reg.Default()
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func newVersionCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// no configuration needed
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			info := version.Get()
			fmt.Fprintln(out, info.String())

			if verbose {
				fmt.Fprintf(out, "\nDetails:\n")
				fmt.Fprintf(out, "  Version:    %s\n", info.Version)
				fmt.Fprintf(out, "  Git Commit: %s\n", info.GitCommit)
				fmt.Fprintf(out, "  Built:      %s\n", info.BuildTime)
				fmt.Fprintf(out, "  Go Version: %s\n", info.GoVersion)
				fmt.Fprintf(out, "  Platform:   %s\n", info.Platform)
			}
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose version output")
	return cmd
}
