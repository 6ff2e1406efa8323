package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

func TestManagerLifecycle(t *testing.T) {
	manager, store := NewMockManager()

	account := &Account{Name: "family", RefreshToken: "1//0gRefreshTokenValue"}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero(), "Store stamps LastModified")

	got, err := manager.Retrieve("family")
	require.NoError(t, err)
	assert.Equal(t, account.RefreshToken, got.RefreshToken)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, manager.Delete("family"))
	_, err = manager.Retrieve("family")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Equal(t, 0, store.Count())

	err = manager.Delete("family")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	assert.Error(t, manager.Store(&Account{RefreshToken: "x"}))
	assert.Error(t, manager.Store(&Account{Name: "a"}))
	assert.Error(t, manager.Store(nil))
}

func TestManagerStoreFallsBack(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	working := NewMockStore()

	manager := NewManagerWithStores(broken, working)
	require.NoError(t, manager.Store(&Account{Name: "a", RefreshToken: "t"}))

	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, working.Count())
}

func TestManagerStoreAllFail(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("disk full")

	err := NewManagerWithStores(broken, NewEnvironmentStore()).Store(&Account{Name: "a", RefreshToken: "t"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestManagerListPrefersNewest(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()
	now := time.Now()

	require.NoError(t, older.Store(&Account{Name: "a", RefreshToken: "old", LastModified: now.Add(-time.Hour)}))
	require.NoError(t, newer.Store(&Account{Name: "a", RefreshToken: "new", LastModified: now}))
	require.NoError(t, newer.Store(&Account{Name: "b", RefreshToken: "b", LastModified: now.Add(-2 * time.Hour)}))

	accounts, err := NewManagerWithStores(older, newer).List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a", accounts[0].Name)
	assert.Equal(t, "new", accounts[0].RefreshToken)
	assert.Equal(t, "b", accounts[1].Name)
}

func TestManagerResolve(t *testing.T) {
	t.Setenv(EnvRefreshToken, "")
	manager := NewManagerWithStores(NewMockStore(), NewEnvironmentStore())

	_, err := manager.Resolve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, manager.Store(&Account{Name: "stored", RefreshToken: "s"}))
	got, err := manager.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "stored", got.Name)

	t.Setenv(EnvRefreshToken, "from-env")
	got, err = manager.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got.RefreshToken, "environment credentials win for the default account")

	got, err = manager.Resolve("stored")
	require.NoError(t, err)
	assert.Equal(t, "s", got.RefreshToken)
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	t.Setenv(EnvRefreshToken, "")
	assert.False(t, store.Exists(""))
	accounts, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	t.Setenv(EnvRefreshToken, "env-token")
	t.Setenv(EnvAccount, "")
	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "default", account.Name)
	assert.Equal(t, "env-token", account.RefreshToken)

	t.Setenv(EnvAccount, "work")
	assert.True(t, store.Exists("work"))
	assert.False(t, store.Exists("home"))

	assert.ErrorIs(t, store.Store(account), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("work"), ErrStoreUnavailable)
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "credentials.enc")
	store, err := NewEncryptedFileStoreWithPassphrase(path, "correct horse")
	require.NoError(t, err)

	assert.False(t, store.Exists("a"))
	_, err = store.Retrieve("a")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, store.Store(&Account{Name: "a", RefreshToken: "secret-token-a"}))
	require.NoError(t, store.Store(&Account{Name: "b", RefreshToken: "secret-token-b"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-token-a", "tokens are encrypted at rest")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := store.Retrieve("a")
	require.NoError(t, err)
	assert.Equal(t, "secret-token-a", got.RefreshToken)

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	other, err := NewEncryptedFileStoreWithPassphrase(path, "wrong")
	require.NoError(t, err)
	_, err = other.Retrieve("a")
	assert.Error(t, err)

	require.NoError(t, store.Delete("a"))
	require.NoError(t, store.Delete("b"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file is removed with the last account")
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(EnvPassphrase, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Name: "a", RefreshToken: "t"}))

	_, err = os.Stat(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)

	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Retrieve("a")
	require.NoError(t, err)
	assert.Equal(t, "t", got.RefreshToken)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Name: "b", RefreshToken: "tb"}))
	require.NoError(t, store.Store(&Account{Name: "a", RefreshToken: "ta"}))
	require.NoError(t, store.Store(&Account{Name: "a", RefreshToken: "ta2"}))

	accounts, err := store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	got, err := store.Retrieve("a")
	require.NoError(t, err)
	assert.Equal(t, "ta2", got.RefreshToken)

	require.NoError(t, store.Delete("a"))
	assert.False(t, store.Exists("a"))
	assert.ErrorIs(t, store.Delete("a"), ErrCredentialsNotFound)

	accounts, err = store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "b", accounts[0].Name)
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{Name: "a", RefreshToken: "1//0gABCDEFGHIJKLMNOP"}
	s := SanitizeAccount(account)

	assert.Equal(t, "a", s.Name)
	assert.Equal(t, "1//0...MNOP", s.RefreshToken)
	assert.Equal(t, "********", SanitizeAccount(&Account{RefreshToken: "short"}).RefreshToken)
	assert.Nil(t, SanitizeAccount(nil))
}

func TestExtractCode(t *testing.T) {
	code, err := ExtractCode("  4/0Acode  ")
	require.NoError(t, err)
	assert.Equal(t, "4/0Acode", code)

	code, err = ExtractCode("http://localhost/?state=s&code=4/0Afromurl&scope=x")
	require.NoError(t, err)
	assert.Equal(t, "4/0Afromurl", code)

	_, err = ExtractCode("http://localhost/?error=access_denied")
	assert.ErrorContains(t, err, "access_denied")

	_, err = ExtractCode("http://localhost/")
	assert.Error(t, err)

	_, err = ExtractCode("")
	assert.Error(t, err)
}

func TestLoginURL(t *testing.T) {
	cfg := &oauth2.Config{
		ClientID: "client",
		Endpoint: oauth2.Endpoint{AuthURL: "https://auth.test/o/oauth2/auth"},
		Scopes:   []string{"scope-a"},
	}
	u := LoginURL(cfg, "state-1")

	assert.True(t, strings.HasPrefix(u, "https://auth.test/o/oauth2/auth?"))
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
	assert.Contains(t, u, "redirect_uri=http%3A%2F%2Flocalhost")
	assert.Empty(t, cfg.RedirectURL, "caller's config is not modified")
}

func TestExchangeCode(t *testing.T) {
	tokens := map[string]string{
		"good":       `{"access_token":"at","token_type":"Bearer","refresh_token":"rt","expires_in":3600}`,
		"no-refresh": `{"access_token":"at","token_type":"Bearer","expires_in":3600}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		body, ok := tokens[r.PostForm.Get("code")]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	cfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams},
	}

	rt, err := ExchangeCode(context.Background(), cfg, "good")
	require.NoError(t, err)
	assert.Equal(t, "rt", rt)

	_, err = ExchangeCode(context.Background(), cfg, "no-refresh")
	assert.ErrorContains(t, err, "no refresh token")

	_, err = ExchangeCode(context.Background(), cfg, "bad")
	assert.Error(t, err)
}
