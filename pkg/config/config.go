package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envPrefix is prepended to every environment variable the config reads
const envPrefix = "GPBACKUP_"

// Config holds all configuration options for the photo backup
type Config struct {
	// Google Photos API settings
	Photos PhotosConfig `yaml:"photos" json:"photos"`

	// Where the OAuth credential is persisted
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Lookback window for the media search
	Query QueryConfig `yaml:"query" json:"query"`

	// Staging and destination directories
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Record of already downloaded media ids
	Acquired AcquiredConfig `yaml:"acquired" json:"acquired"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Whole-run settings
	Run RunConfig `yaml:"run" json:"run"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PhotosConfig holds Google Photos API configuration
type PhotosConfig struct {
	Scopes           []string `yaml:"scopes" json:"scopes"`
	ServiceName      string   `yaml:"service_name" json:"service_name"`
	APIVersion       string   `yaml:"api_version" json:"api_version"`
	ClientSecretFile string   `yaml:"client_secret_file" json:"client_secret_file"`
}

// CredentialsConfig holds credential persistence configuration
type CredentialsConfig struct {
	// Backend is one of "file", "keyring" or "encrypted"
	Backend string `yaml:"backend" json:"backend"`
	File    string `yaml:"file" json:"file"`
}

// QueryConfig holds the lookback window configuration
type QueryConfig struct {
	FilterEnabled bool `yaml:"filter_enabled" json:"filter_enabled"`
	PastYears     int  `yaml:"past_years" json:"past_years"`
	PastMonths    int  `yaml:"past_months" json:"past_months"`
	PastDays      int  `yaml:"past_days" json:"past_days"`
}

// StorageConfig holds directory configuration
type StorageConfig struct {
	StagingDir     string `yaml:"staging_dir" json:"staging_dir"`
	DestinationDir string `yaml:"destination_dir" json:"destination_dir"`
}

// AcquiredConfig holds acquired-id store configuration
type AcquiredConfig struct {
	// Backend is one of "json" or "sqlite"
	Backend           string `yaml:"backend" json:"backend"`
	File              string `yaml:"file" json:"file"`
	BackupBeforeWrite bool   `yaml:"backup_before_write" json:"backup_before_write"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	Concurrent        int           `yaml:"concurrent" json:"concurrent"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RunConfig holds whole-run configuration
type RunConfig struct {
	Deadline time.Duration `yaml:"deadline" json:"deadline"`
	DryRun   bool          `yaml:"dry_run" json:"dry_run"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Photos: PhotosConfig{
			Scopes:           []string{"https://www.googleapis.com/auth/photoslibrary"},
			ServiceName:      "photoslibrary",
			APIVersion:       "v1",
			ClientSecretFile: "client_secret.json",
		},
		Credentials: CredentialsConfig{
			Backend: "file",
			File:    "credential.json",
		},
		Query: QueryConfig{
			FilterEnabled: true,
			PastYears:     0,
			PastMonths:    1,
			PastDays:      0,
		},
		Storage: StorageConfig{
			StagingDir:     "tmp",
			DestinationDir: "/gpbk",
		},
		Acquired: AcquiredConfig{
			Backend:           "json",
			File:              "aquired_list.json",
			BackupBeforeWrite: false,
		},
		Download: DownloadConfig{
			Timeout:           5 * time.Minute,
			Concurrent:        1,
			RequestsPerMinute: 0, // 0 means no limit
		},
		Run: RunConfig{
			Deadline: 2 * time.Hour,
			DryRun:   false,
		},
		Notifications: NotificationConfig{
			Enabled:    false,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if scopes := os.Getenv(envPrefix + "SCOPES"); scopes != "" {
		c.Photos.Scopes = splitList(scopes)
	}
	if secret := os.Getenv(envPrefix + "CLIENT_SECRET_FILE"); secret != "" {
		c.Photos.ClientSecretFile = secret
	}

	if backend := os.Getenv(envPrefix + "CREDENTIALS_BACKEND"); backend != "" {
		c.Credentials.Backend = backend
	}
	if file := os.Getenv(envPrefix + "CREDENTIAL_FILE"); file != "" {
		c.Credentials.File = file
	}

	if filter := os.Getenv(envPrefix + "QUERY_FILTER"); filter != "" {
		c.Query.FilterEnabled = strings.ToLower(filter) == "true"
	}
	errs = append(errs, envInt(envPrefix+"PAST_YEARS", &c.Query.PastYears))
	errs = append(errs, envInt(envPrefix+"PAST_MONTHS", &c.Query.PastMonths))
	errs = append(errs, envInt(envPrefix+"PAST_DAYS", &c.Query.PastDays))

	if dir := os.Getenv(envPrefix + "STAGING_DIR"); dir != "" {
		c.Storage.StagingDir = dir
	}
	if dir := os.Getenv(envPrefix + "DESTINATION_DIR"); dir != "" {
		c.Storage.DestinationDir = dir
	}

	if backend := os.Getenv(envPrefix + "ACQUIRED_BACKEND"); backend != "" {
		c.Acquired.Backend = backend
	}
	if file := os.Getenv(envPrefix + "ACQUIRED_FILE"); file != "" {
		c.Acquired.File = file
	}

	errs = append(errs, envInt(envPrefix+"CONCURRENT_DOWNLOADS", &c.Download.Concurrent))
	errs = append(errs, envInt(envPrefix+"REQUESTS_PER_MINUTE", &c.Download.RequestsPerMinute))
	errs = append(errs, envDuration(envPrefix+"DOWNLOAD_TIMEOUT", &c.Download.Timeout))
	errs = append(errs, envDuration(envPrefix+"RUN_DEADLINE", &c.Run.Deadline))

	if notifEnabled := os.Getenv(envPrefix + "NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}

	if logLevel := os.Getenv(envPrefix + "LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv(envPrefix + "LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return errors.Join(errs...)
}

// envInt parses an integer environment variable into dst when it is set
func envInt(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = val
	return nil
}

// envDuration parses a duration environment variable into dst when it is set
func envDuration(key string, dst *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	val, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = val
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"gpbackup.yaml",
		"gpbackup.yml",
		".gpbackup.yaml",
		".gpbackup.yml",
		filepath.Join(home, ".config", "gpbackup", "config.yaml"),
		filepath.Join(home, ".config", "gpbackup", "config.yml"),
		filepath.Join(home, ".gpbackup.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if len(c.Photos.Scopes) == 0 {
		errs = append(errs, errors.New("at least one API scope is required"))
	}
	if c.Photos.ClientSecretFile == "" {
		errs = append(errs, errors.New("client secret file is required"))
	}

	validCredentialBackends := map[string]bool{
		"file": true, "keyring": true, "encrypted": true,
	}
	if !validCredentialBackends[strings.ToLower(c.Credentials.Backend)] {
		errs = append(errs, fmt.Errorf("invalid credentials backend %q", c.Credentials.Backend))
	}
	if c.Credentials.Backend != "keyring" && c.Credentials.File == "" {
		errs = append(errs, errors.New("credential file is required"))
	}

	if c.Query.PastYears < 0 || c.Query.PastMonths < 0 || c.Query.PastDays < 0 {
		errs = append(errs, errors.New("lookback years, months and days cannot be negative"))
	}

	if c.Storage.StagingDir == "" {
		errs = append(errs, errors.New("staging directory is required"))
	}
	if c.Storage.DestinationDir == "" {
		errs = append(errs, errors.New("destination directory is required"))
	}
	if c.Storage.StagingDir != "" && filepath.Clean(c.Storage.StagingDir) == filepath.Clean(c.Storage.DestinationDir) {
		errs = append(errs, errors.New("staging and destination directories must differ"))
	}

	validAcquiredBackends := map[string]bool{
		"json": true, "sqlite": true,
	}
	if !validAcquiredBackends[strings.ToLower(c.Acquired.Backend)] {
		errs = append(errs, fmt.Errorf("invalid acquired backend %q", c.Acquired.Backend))
	}
	if c.Acquired.File == "" {
		errs = append(errs, errors.New("acquired list file is required"))
	}

	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.Concurrent <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.Concurrent > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Run.Deadline < 0 {
		errs = append(errs, errors.New("run deadline cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if staging, ok := flags["staging-dir"].(string); ok && staging != "" {
		c.Storage.StagingDir = staging
	}
	if dest, ok := flags["destination"].(string); ok && dest != "" {
		c.Storage.DestinationDir = dest
	}
	if secret, ok := flags["client-secret"].(string); ok && secret != "" {
		c.Photos.ClientSecretFile = secret
	}
	if cred, ok := flags["credential-file"].(string); ok && cred != "" {
		c.Credentials.File = cred
	}
	if acquired, ok := flags["acquired-file"].(string); ok && acquired != "" {
		c.Acquired.File = acquired
	}
	if filter, ok := flags["filter"].(bool); ok {
		c.Query.FilterEnabled = filter
	}
	if years, ok := flags["past-years"].(int); ok && years >= 0 {
		c.Query.PastYears = years
	}
	if months, ok := flags["past-months"].(int); ok && months >= 0 {
		c.Query.PastMonths = months
	}
	if days, ok := flags["past-days"].(int); ok && days >= 0 {
		c.Query.PastDays = days
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.Concurrent = concurrent
	}
	if timeout, ok := flags["download-timeout"].(time.Duration); ok && timeout > 0 {
		c.Download.Timeout = timeout
	}
	if deadline, ok := flags["deadline"].(time.Duration); ok && deadline >= 0 {
		c.Run.Deadline = deadline
	}
	if dryRun, ok := flags["dry-run"].(bool); ok {
		c.Run.DryRun = dryRun
	}
	if notify, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = notify
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".gpbackup.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
