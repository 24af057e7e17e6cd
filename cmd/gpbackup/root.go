package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gpbackup/pkg/config"
	"gpbackup/pkg/logger"
	"gpbackup/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	logFile       string
	noColor       bool
	notifications bool
	quiet         bool
	verbose       bool
)

// rootCmd runs a backup when called without any subcommands, so a crontab
// entry needs nothing but the binary
var rootCmd = &cobra.Command{
	Use:   "gpbackup",
	Short: "Incremental backup of recent Google Photos media",
	Long: `gpbackup downloads the photos and videos created in your Google Photos
library within a recent time window, moves them into a backup directory and
remembers which items it already has, so every run only fetches new media.

Run 'gpbackup auth login' once from a terminal to authorize access. After
that, 'gpbackup' can run unattended from cron.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.DisableColor()
		}
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
		if verbose && !cmd.Flags().Changed("log-level") {
			logLevel = "debug"
		}
	},
	RunE: runBackup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("gpbackup", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./gpbackup.yaml or ~/.config/gpbackup/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "send a desktop notification when the run ends")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug logs")

	addRunFlags(rootCmd.Flags())

	rootCmd.SetVersionTemplate(`gpbackup {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig resolves the configuration from file, environment and the flags
// the user actually set on cmd
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := make(map[string]interface{})

	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	if cmd.Flags().Changed("notifications") {
		flags["notifications"] = notifications
	}

	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "staging-dir", "destination", "client-secret", "credential-file", "acquired-file":
			flags[f.Name] = f.Value.String()
		case "past-years", "past-months", "past-days", "concurrent":
			if v, err := cmd.Flags().GetInt(f.Name); err == nil {
				flags[f.Name] = v
			}
		case "filter", "dry-run":
			if v, err := cmd.Flags().GetBool(f.Name); err == nil {
				flags[f.Name] = v
			}
		case "download-timeout", "deadline":
			if v, err := cmd.Flags().GetDuration(f.Name); err == nil {
				flags[f.Name] = v
			}
		}
	})

	return config.Load(configFile, flags)
}

// setupLogging installs the global logger for cfg
func setupLogging(cfg *config.Config) (logger.Logger, error) {
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.GetLogger(), nil
}

// addRunFlags registers the backup flags. They are only forwarded to the
// configuration when set explicitly.
func addRunFlags(fs *pflag.FlagSet) {
	fs.String("staging-dir", "", "directory media is downloaded into before being moved")
	fs.String("destination", "", "backup directory staged files are moved into")
	fs.String("client-secret", "", "OAuth client secret file")
	fs.String("credential-file", "", "stored credential file")
	fs.String("acquired-file", "", "list of already downloaded media ids")
	fs.Bool("filter", true, "only search media created within the lookback window")
	fs.Int("past-years", 0, "lookback window in years")
	fs.Int("past-months", 0, "lookback window in months")
	fs.Int("past-days", 0, "lookback window in days")
	fs.Int("concurrent", 1, "number of parallel downloads (1-10)")
	fs.Duration("download-timeout", 5*time.Minute, "timeout for a single download")
	fs.Duration("deadline", 2*time.Hour, "deadline for the whole run (0 disables it)")
	fs.Bool("dry-run", false, "list what would be downloaded without touching anything")
}
