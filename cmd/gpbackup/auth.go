package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gpbackup/pkg/auth"
	"gpbackup/pkg/config"
	errs "gpbackup/pkg/errors"
	"gpbackup/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Google Photos authorization",
	Long: `Manage the stored Google Photos authorization.

The credential is stored using the configured backend:
  - file: plain JSON, readable only by you (default)
  - keyring: the system keychain
  - encrypted: AES-GCM encrypted file, key derived from GPBACKUP_PASSPHRASE

Never share your credential or client secret files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize access to your photo library",
	Long: `Authorize gpbackup to read your Google Photos library.

A link is printed; open it in a browser, grant access and paste the
authorization code back into the terminal. The resulting credential is
stored and reused by every later run, including cron jobs.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored credential",
	Long:  `Show the stored credential with its secrets masked.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored credential",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var forceLogout bool

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(statusCmd)
	authCmd.AddCommand(logoutCmd)

	logoutCmd.Flags().BoolVarP(&forceLogout, "force", "f", false, "do not ask for confirmation")
	for _, cmd := range []*cobra.Command{loginCmd, statusCmd, logoutCmd} {
		cmd.Flags().String("client-secret", "", "OAuth client secret file")
		cmd.Flags().String("credential-file", "", "stored credential file")
	}
}

func newAuthManager(cmd *cobra.Command) (*auth.Manager, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, err := setupLogging(cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := auth.NewStore(cfg.Credentials)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	return auth.NewManager(store, cfg.Photos, log), cfg, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, cfg, err := newAuthManager(cmd)
	if err != nil {
		return err
	}
	ui.PrintLogo()

	if _, err := os.Stat(cfg.Photos.ClientSecretFile); err != nil {
		auth.ShowClientSecretGuide(os.Stdout, cfg.Photos.ClientSecretFile)
		return fmt.Errorf("client secret file not found: %s", cfg.Photos.ClientSecretFile)
	}

	if manager.Store().Exists() && !confirm("A credential is already stored. Replace it?") {
		return nil
	}

	cred, err := manager.Login(cmd.Context())
	if err != nil {
		if errs.Is(err, auth.ErrNotInteractive) {
			ui.PrintWarning("Login needs an interactive terminal")
		}
		return err
	}

	fmt.Println()
	ui.PrintSuccess("Authorization stored in " + manager.Store().Name() + " store")
	ui.PrintInfo("Token expires", cred.Expiry.Local().Format("2006-01-02 15:04:05"))
	fmt.Println("\nNext steps:")
	fmt.Println("  gpbackup run --dry-run   # see what would be downloaded")
	fmt.Println("  gpbackup                 # run a backup")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, _, err := newAuthManager(cmd)
	if err != nil {
		return err
	}

	cred, err := manager.Status()
	if err != nil {
		if errs.Is(err, auth.ErrCredentialsNotFound) {
			ui.PrintWarning("No credential stored; run 'gpbackup auth login'")
			return nil
		}
		return fmt.Errorf("failed to read credential: %w", err)
	}

	ui.PrintInfo("Store", manager.Store().Name())
	ui.PrintInfo("Access token", cred.AccessToken)
	ui.PrintInfo("Refresh token", cred.RefreshToken)
	ui.PrintInfo("Client ID", cred.ClientID)
	ui.PrintInfo("Token URI", cred.TokenURI)
	if !cred.Expiry.IsZero() {
		ui.PrintInfo("Expires", cred.Expiry.Local().Format("2006-01-02 15:04:05"))
	}
	if cred.RefreshToken == "" {
		ui.PrintWarning("No refresh token stored; the credential stops working when the access token expires")
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, _, err := newAuthManager(cmd)
	if err != nil {
		return err
	}

	if !manager.Store().Exists() {
		ui.PrintWarning("No credential stored")
		return nil
	}
	if !forceLogout && !confirm("Remove the stored credential?") {
		return nil
	}

	if err := manager.Logout(); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	ui.PrintSuccess("Credential removed")
	return nil
}

func confirm(question string) bool {
	fmt.Printf("%s (y/N): ", question)
	input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y")
}
