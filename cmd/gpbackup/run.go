package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gpbackup/pkg/acquired"
	"gpbackup/pkg/auth"
	"gpbackup/pkg/backup"
	errs "gpbackup/pkg/errors"
	"gpbackup/pkg/ui"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Back up recent media (the default command)",
	Long: `Back up the media created within the lookback window.

Steps:
  1. Load the stored credential, or authorize interactively when none exists
  2. List the library's media items created within the window
  3. Skip items whose ids are already in the acquired list
  4. Download the rest into the staging directory, photos first
  5. Move the staged files into the destination directory
  6. Add the new ids to the acquired list

A download that fails is skipped and retried on the next run.`,
	Example: `  # Back up the last month (default)
  gpbackup run

  # Back up the last 2 years and 6 months into /mnt/photos
  gpbackup run --past-years 2 --past-months 6 --destination /mnt/photos

  # Show what would be downloaded
  gpbackup run --dry-run`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd.Flags())
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := setupLogging(cfg)
	if err != nil {
		return err
	}

	credentials, err := auth.NewStore(cfg.Credentials)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	manager := auth.NewManager(credentials, cfg.Photos, log)

	store, err := acquired.NewStore(cfg.Acquired, log)
	if err != nil {
		return fmt.Errorf("failed to open acquired list: %w", err)
	}
	defer store.Close()

	if cfg.Run.DryRun {
		ui.PrintHighlight("Dry run: nothing will be downloaded or written")
	}
	ui.PrintInfo("Destination", cfg.Storage.DestinationDir)
	ui.PrintInfo("Acquired list", store.Location())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := backup.New(cfg, manager, store, log).Run(ctx)

	if err := ui.NewNotifier(cfg.Notifications).NotifyRun(summary, runErr); err != nil {
		log.WithError(err).Debug("Desktop notification not sent")
	}

	if runErr != nil {
		log.WithError(runErr).Error("Backup failed")
		if errs.IsType(runErr, errs.ErrorTypeAuth) {
			if _, statErr := os.Stat(cfg.Photos.ClientSecretFile); statErr != nil {
				auth.ShowClientSecretGuide(os.Stderr, cfg.Photos.ClientSecretFile)
			} else if errs.Is(runErr, auth.ErrNotInteractive) {
				ui.PrintWarning("No stored credential; run 'gpbackup auth login' from a terminal first")
			}
		}
		return runErr
	}

	ui.PrintSummary(summary)
	if summary.Failed > 0 || summary.Unrelocated > 0 {
		ui.PrintWarning(fmt.Sprintf("%d downloads failed, %d files remain in %s; the next run picks both up",
			summary.Failed, summary.Unrelocated, cfg.Storage.StagingDir))
	}
	return nil
}
