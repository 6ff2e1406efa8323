package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"photosync/pkg/auth"
	"photosync/pkg/photos"
	"photosync/pkg/ui"
)

var loginToken bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage photo library credentials",
	Long: `Manage stored OAuth refresh tokens.

Tokens are stored in the system keychain when available, otherwise in an
encrypted file in the config directory. PHOTOSYNC_REFRESH_TOKEN overrides
both for the default account.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Authorize read-only access and store the refresh token",
	Long: `Authorize read-only access to a photo library and store the resulting
refresh token under an account name ("default" when omitted).

The OAuth client ID and secret come from photos.client_id and
photos.client_secret in the config file, or PHOTOSYNC_CLIENT_ID and
PHOTOSYNC_CLIENT_SECRET.`,
	Example: `  # Browser-based authorization
  photosync auth login family

  # Paste a refresh token obtained elsewhere
  photosync auth login family --token`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <account>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().BoolVar(&loginToken, "token", false, "enter a refresh token directly instead of authorizing in a browser")
}

func runLogin(cmd *cobra.Command, args []string) error {
	name := "default"
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	if name == "" {
		return errors.New("account name is required")
	}

	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		ok, err := confirm(in, out, fmt.Sprintf("Account %q already exists. Replace it?", name))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	var refreshToken string
	if loginToken {
		fmt.Fprint(out, "Refresh token: ")
		refreshToken, err = readSecret(cmd.InOrStdin(), in)
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("reading refresh token: %w", err)
		}
	} else {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		if cfg.Photos.ClientID == "" || cfg.Photos.ClientSecret == "" {
			return errors.New("photos.client_id and photos.client_secret must be configured to log in")
		}

		oauthCfg := photos.OAuthConfig(cfg.Photos.ClientID, cfg.Photos.ClientSecret)
		state, err := randomState()
		if err != nil {
			return err
		}
		auth.ShowLoginGuide(out, auth.LoginURL(oauthCfg, state))

		fmt.Fprint(out, "\nRedirect URL or code: ")
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading authorization code: %w", err)
		}
		code, err := auth.ExtractCode(line)
		if err != nil {
			return err
		}
		refreshToken, err = auth.ExchangeCode(cmd.Context(), oauthCfg, code)
		if err != nil {
			return err
		}
	}

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return errors.New("refresh token is empty")
	}

	if err := manager.Store(&auth.Account{Name: name, RefreshToken: refreshToken}); err != nil {
		return err
	}

	ui.Out = out
	ui.PrintSuccess(fmt.Sprintf("Credentials stored for account %q", name))
	fmt.Fprintf(out, "\nRun %s to start syncing.\n", ui.Cyan("photosync sync --account "+name))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}

	ui.Out = cmd.OutOrStdout()
	ui.PrintSuccess(fmt.Sprintf("Removed account %q", args[0]))
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	accounts, err := manager.List()
	if err != nil {
		return err
	}

	printAccounts(cmd.OutOrStdout(), accounts)
	return nil
}

func printAccounts(out io.Writer, accounts []*auth.Account) {
	if len(accounts) == 0 {
		fmt.Fprintln(out, "No stored accounts. Run 'photosync auth login' to add one.")
		return
	}
	for _, a := range accounts {
		s := auth.SanitizeAccount(a)
		fmt.Fprintf(out, "%s  %s  %s\n",
			ui.Cyan(s.Name),
			ui.Dim(s.RefreshToken),
			ui.Dim(s.LastModified.Format(time.RFC3339)),
		)
	}
}

// readSecret reads a line without echo when in is a terminal
func readSecret(in io.Reader, buffered *bufio.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := buffered.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func confirm(in *bufio.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "%s (y/N): ", prompt)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y"), nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
