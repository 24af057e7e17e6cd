package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gpbackup/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage gpbackup configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (GPBACKUP_*)
  - .env files (./.env, ~/.gpbackup.env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'gpbackup.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging flags, environment
variables, the configuration file and defaults.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the effective configuration.

This command checks:
  - YAML syntax and value ranges
  - that the client secret file exists
  - that the destination directory exists
  - that the staging directory can be created`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# gpbackup configuration file
#
# Every option can also be set through an environment variable prefixed
# with GPBACKUP_, e.g. GPBACKUP_DESTINATION_DIR or GPBACKUP_PAST_MONTHS.

# Google Photos API access
photos:
  scopes:
    - https://www.googleapis.com/auth/photoslibrary
  # OAuth client downloaded from the Google Cloud console ("Desktop app")
  client_secret_file: client_secret.json

# Where the authorization is kept: file, keyring or encrypted
credentials:
  backend: file
  file: credential.json

# Only media created within this window before today is searched
query:
  filter_enabled: true
  past_years: 0
  past_months: 1
  past_days: 0

storage:
  # Downloads land here first
  staging_dir: tmp
  # Staged files are moved here at the end of the run
  destination_dir: /gpbk

# Ids of media already backed up: json or sqlite
acquired:
  backend: json
  file: aquired_list.json
  # Keep the previous list as <file>.backup before every write
  backup_before_write: false

download:
  timeout: 5m
  # Parallel downloads, 1-10
  concurrent: 1
  # 0 disables pacing
  requests_per_minute: 0

run:
  # The whole run is abandoned after this long; 0 disables the deadline
  deadline: 2h
  dry_run: false

notifications:
  enabled: false
  on_complete: true
  on_error: true

logging:
  # debug, info, warn, error
  level: info
  # Optional log file in addition to the console
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "gpbackup.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the configuration file, at least destination_dir")
	fmt.Println("2. Run 'gpbackup config validate' to check the configuration")
	fmt.Println("3. Run 'gpbackup auth login' once from a terminal")
	fmt.Println("4. Add 'gpbackup' to your crontab")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (GPBACKUP_*)")
	fmt.Println("3. .env files")
	if configFile != "" {
		fmt.Printf("4. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("4. Configuration file: (searched in default locations)")
	}
	fmt.Println("5. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var problems, warnings []string

	if _, err := os.Stat(cfg.Photos.ClientSecretFile); err != nil {
		warnings = append(warnings, fmt.Sprintf("client secret file not readable: %v", err))
	}
	if info, err := os.Stat(cfg.Storage.DestinationDir); err != nil {
		problems = append(problems, fmt.Sprintf("destination directory unavailable: %v", err))
	} else if !info.IsDir() {
		problems = append(problems, fmt.Sprintf("destination %s is not a directory", cfg.Storage.DestinationDir))
	}
	if err := checkCreatable(cfg.Storage.StagingDir); err != nil {
		problems = append(problems, fmt.Sprintf("staging directory cannot be created: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := checkCreatable(filepath.Dir(cfg.Logging.File)); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("%d configuration problems", len(problems))
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	if cfg.Query.FilterEnabled {
		fmt.Printf("  Lookback: %d years, %d months, %d days\n", cfg.Query.PastYears, cfg.Query.PastMonths, cfg.Query.PastDays)
	} else {
		fmt.Println("  Lookback: whole library")
	}
	fmt.Printf("  Staging directory: %s\n", cfg.Storage.StagingDir)
	fmt.Printf("  Destination: %s\n", cfg.Storage.DestinationDir)
	fmt.Printf("  Acquired list: %s (%s)\n", cfg.Acquired.File, cfg.Acquired.Backend)
	fmt.Printf("  Concurrent downloads: %d\n", cfg.Download.Concurrent)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

// checkCreatable reports whether dir exists or its nearest existing parent
// is a directory
func checkCreatable(dir string) error {
	for p := dir; ; p = filepath.Dir(p) {
		info, err := os.Stat(p)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", p)
			}
			return nil
		}
		if !os.IsNotExist(err) {
			return err
		}
		if parent := filepath.Dir(p); parent == p {
			return nil
		}
	}
}
