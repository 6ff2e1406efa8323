package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// LoopbackRedirect is the redirect URI registered for desktop OAuth clients.
// Nothing listens on it; the user copies the code from the browser's address bar.
const LoopbackRedirect = "http://localhost"

// LoginURL returns the consent page URL. Offline access with forced consent
// makes the service issue a refresh token on every login.
func LoginURL(cfg *oauth2.Config, state string) string {
	c := *cfg
	if c.RedirectURL == "" {
		c.RedirectURL = LoopbackRedirect
	}
	return c.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExtractCode accepts either a bare authorization code or the full redirect
// URL the browser landed on.
func ExtractCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("authorization code is empty")
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parsing redirect URL: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("authorization denied: %s", e)
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect URL has no code parameter")
	}
	return code, nil
}

// ExchangeCode trades an authorization code for a refresh token
func ExchangeCode(ctx context.Context, cfg *oauth2.Config, code string) (string, error) {
	c := *cfg
	if c.RedirectURL == "" {
		c.RedirectURL = LoopbackRedirect
	}

	tok, err := c.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchanging authorization code: %w", err)
	}
	if tok.RefreshToken == "" {
		return "", errors.New("no refresh token issued; revoke the app's access and log in again")
	}
	return tok.RefreshToken, nil
}

// ShowLoginGuide prints the steps for authorizing read-only library access
func ShowLoginGuide(w io.Writer, authURL string) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "AUTHORIZE PHOTO LIBRARY ACCESS")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Open this URL in a browser and sign in:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "   %s\n", authURL)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "2. Grant read-only access to your photo library.")
	fmt.Fprintln(w, "3. The browser is sent to http://localhost and shows a connection")
	fmt.Fprintln(w, "   error. Copy the whole address from the address bar.")
	fmt.Fprintln(w, "4. Paste it below. The code alone is also accepted.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The refresh token is stored in the system keychain when available,")
	fmt.Fprintln(w, "otherwise in an encrypted file in the config directory.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
