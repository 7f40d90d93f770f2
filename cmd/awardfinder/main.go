// Command awardfinder pulls contract awards from USAspending and writes the
// ones ending inside a date window for the target agency to CSV.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/david/award-finder/internal/config"
	"github.com/david/award-finder/internal/ingest"
	"github.com/david/award-finder/internal/logger"
	"github.com/david/award-finder/internal/report"
)

var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

const appName = "awardfinder"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := rootCmd(os.Stdout)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
	profile    string
	maxPages   int
	output     string
}

func (f *globalFlags) options(cmd *cobra.Command) config.Options {
	overrides := map[string]any{}
	if cmd.Flags().Changed("log-level") {
		overrides["log.level"] = f.logLevel
	}
	if cmd.Flags().Changed("profile") {
		overrides["profile"] = f.profile
	}
	if cmd.Flags().Changed("max-pages") {
		overrides["max_pages"] = f.maxPages
	}
	if cmd.Flags().Changed("output") {
		overrides["output.csv_path"] = f.output
	}
	return config.Options{
		ConfigFile: f.configPath,
		EnvFile:    f.envFile,
		Overrides:  overrides,
	}
}

func rootCmd(stdout io.Writer) *cobra.Command {
	flags := &globalFlags{}

	runE := func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flags.options(cmd))
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.Log.Level, cfg.Log.File, cfg.Log.Format)
		if err != nil {
			return err
		}
		_, err = runReport(cmd.Context(), cfg, log, stdout, time.Now())
		return err
	}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Report USAspending contract awards ending within a date window",
		Long: `awardfinder pages through the USAspending award search for the configured
PSC codes, keeps contracts whose end date falls inside the window and whose
awarding or funding agency matches, and writes them to CSV.

Settings come from defaults, an optional YAML file (--config), a named
profile, .env and environment variables (HORIZON_DAYS, PSC_CODES,
AGENCY_MATCH, MAX_PAGES, ...), in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runE,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&flags.envFile, "env-file", "", "Env file to load (default .env when present)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVarP(&flags.profile, "profile", "p", "", "Query profile id (see 'profiles')")
	pf.IntVar(&flags.maxPages, "max-pages", 0, "Maximum pages to fetch")
	pf.StringVarP(&flags.output, "output", "o", "", "CSV output path")

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Fetch awards and write the CSV report (default)",
		Args:  cobra.NoArgs,
		RunE:  runE,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "healthcheck",
		Short: "Check that the USAspending API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.options(cmd))
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Level, cfg.Log.File, cfg.Log.Format)
			if err != nil {
				return err
			}
			return healthcheck(cmd.Context(), cfg, log, stdout)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "profiles",
		Short: "List the built-in query profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ingest.LoadRegistry("")
			if err != nil {
				return err
			}
			report.RenderProfiles(stdout, reg)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.options(cmd))
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(stdout)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			return enc.Close()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}
