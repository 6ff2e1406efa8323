package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photosync/pkg/auth"
	"photosync/pkg/checkpoint"
	"photosync/pkg/config"
	errs "photosync/pkg/errors"
	"photosync/pkg/logger"
	"photosync/pkg/syncer"
)

type fakeItem struct {
	id      string
	created time.Time
}

func (f fakeItem) ID() string           { return f.id }
func (f fakeItem) Filename() string     { return f.id + ".jpg" }
func (f fakeItem) CreatedAt() time.Time { return f.created }
func (f fakeItem) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("data-" + f.id)), nil
}

type fakeIterator struct{ items []syncer.Item }

func (it *fakeIterator) Next(context.Context) (syncer.Item, error) {
	if len(it.items) == 0 {
		return nil, io.EOF
	}
	item := it.items[0]
	it.items = it.items[1:]
	return item, nil
}

func (it *fakeIterator) Close() error { return nil }

type fakeSource struct {
	items       []syncer.Item
	verifyErr   error
	token       string
	verifyCalls int
}

func (f *fakeSource) List(context.Context, string) (syncer.Iterator, error) {
	return &fakeIterator{items: append([]syncer.Item(nil), f.items...)}, nil
}

func (f *fakeSource) Verify(context.Context) error {
	f.verifyCalls++
	return f.verifyErr
}

// resetFlags restores every flag of cmd and its children to its default
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

type env struct {
	dir        string
	configPath string
	output     string
	checkpoint string
	source     *fakeSource
}

func setup(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv(auth.EnvRefreshToken, "")
	for _, name := range []string{"ALBUM", "OUTPUT_DIR", "LIMIT", "CHECKPOINT_PATH", "CHECKPOINT_BACKEND", "TIMEZONE", "LOG_LEVEL", "LOG_FILE", "ACCOUNT"} {
		t.Setenv("PHOTOSYNC_"+name, "")
	}

	e := &env{
		dir:        dir,
		configPath: filepath.Join(dir, "photosync.yaml"),
		output:     filepath.Join(dir, "out"),
		checkpoint: filepath.Join(dir, "last_download_time.txt"),
		source:     &fakeSource{},
	}

	cfg := config.DefaultConfig()
	cfg.Sync.OutputDir = e.output
	cfg.Checkpoint.Path = e.checkpoint
	cfg.Logging.Level = "error"
	require.NoError(t, cfg.Save(e.configPath))

	creds, store := auth.NewMockManager()
	require.NoError(t, store.Store(&auth.Account{Name: "default", RefreshToken: "rt"}))

	origSource, origCreds := newSource, newCredentials
	newSource = func(_ context.Context, _ *config.Config, token string, _ logger.Logger) (remoteSource, error) {
		e.source.token = token
		return e.source, nil
	}
	newCredentials = func() (credentialResolver, error) { return creds, nil }
	t.Cleanup(func() {
		newSource, newCredentials = origSource, origCreds
		resetFlags(rootCmd)
	})

	resetFlags(rootCmd)
	return e
}

func (e *env) run(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSyncDownloadsAndAdvancesCheckpoint(t *testing.T) {
	e := setup(t)
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	e.source.items = []syncer.Item{
		fakeItem{"c", base},
		fakeItem{"b", base.Add(-time.Hour)},
		fakeItem{"a", base.Add(-2 * time.Hour)},
	}

	out, err := e.run("sync")
	require.NoError(t, err, out)

	assert.Equal(t, "rt", e.source.token)
	for _, id := range []string{"a", "b", "c"} {
		data, err := os.ReadFile(filepath.Join(e.output, id+".jpg"))
		require.NoError(t, err)
		assert.Equal(t, "data-"+id, string(data))
	}

	raw, err := os.ReadFile(e.checkpoint)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10 12:00:00", string(raw))
	assert.Contains(t, out, "Sync complete")

	// Second run: only the item at the checkpoint itself is fetched again
	require.NoError(t, os.Remove(filepath.Join(e.output, "a.jpg")))
	out, err = e.run("sync")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 new item(s)")
	_, err = os.Stat(filepath.Join(e.output, "a.jpg"))
	assert.True(t, os.IsNotExist(err), "older items are not downloaded again")
}

func TestSyncAlbumUsesItsOwnCheckpoint(t *testing.T) {
	e := setup(t)
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	e.source.items = []syncer.Item{fakeItem{"a", base}}
	require.NoError(t, os.WriteFile(e.checkpoint, []byte("2030-01-01 00:00:00"), 0644))

	_, err := e.run("sync", "--album", "Trips")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(e.output, "a.jpg"))
	assert.NoError(t, err, "the library checkpoint does not hide the album's items")
	raw, err := os.ReadFile(checkpoint.FilePath(e.checkpoint, "Trips"))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10 12:00:00", string(raw))

	raw, err = os.ReadFile(e.checkpoint)
	require.NoError(t, err)
	assert.Equal(t, "2030-01-01 00:00:00", string(raw))
}

func TestSyncLimitFlag(t *testing.T) {
	e := setup(t)
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	e.source.items = []syncer.Item{
		fakeItem{"c", base},
		fakeItem{"b", base.Add(-time.Hour)},
	}

	_, err := e.run("sync", "--limit", "1")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(e.output, "c.jpg"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(e.output, "b.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestSyncAuthFailureStopsBeforeEngine(t *testing.T) {
	e := setup(t)
	e.source.verifyErr = errs.New(errs.ErrorTypeAuth, 401, "token revoked")
	e.source.items = []syncer.Item{fakeItem{"a", time.Now()}}

	_, err := e.run("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
	assert.Equal(t, 1, exitCode(err))

	_, statErr := os.Stat(e.checkpoint)
	assert.True(t, os.IsNotExist(statErr), "no checkpoint is written")
	_, statErr = os.Stat(e.output)
	assert.True(t, os.IsNotExist(statErr), "nothing is downloaded")
}

func TestSyncMissingCredentials(t *testing.T) {
	e := setup(t)
	newCredentials = func() (credentialResolver, error) {
		m, _ := auth.NewMockManager()
		return m, nil
	}

	_, err := e.run("sync")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrCredentialsNotFound)
	assert.Contains(t, err.Error(), "photosync auth login")
}

func TestSyncCorruptCheckpoint(t *testing.T) {
	e := setup(t)
	require.NoError(t, os.WriteFile(e.checkpoint, []byte("yesterday"), 0644))
	e.source.items = []syncer.Item{fakeItem{"a", time.Now()}}
	e.source.verifyErr = errs.New(errs.ErrorTypeNetwork, 0, "offline")

	_, err := e.run("sync")
	require.Error(t, err)
	assert.ErrorIs(t, err, checkpoint.ErrCorrupt)
	assert.Equal(t, 1, exitCode(err))
	assert.Zero(t, e.source.verifyCalls, "reported before contacting the service")

	raw, readErr := os.ReadFile(e.checkpoint)
	require.NoError(t, readErr)
	assert.Equal(t, "yesterday", string(raw), "a corrupt checkpoint is left untouched")
}

func TestCheckpointShowAndReset(t *testing.T) {
	e := setup(t)

	out, err := e.run("checkpoint", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "none")

	require.NoError(t, os.WriteFile(e.checkpoint, []byte("2024-02-03 04:05:06"), 0644))
	out, err = e.run("checkpoint", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-02-03 04:05:06")

	out, err = e.run("checkpoint", "reset", "--yes")
	require.NoError(t, err, out)
	_, err = os.Stat(e.checkpoint)
	assert.True(t, os.IsNotExist(err))
}

func TestCheckpointResetNeedsConfirmation(t *testing.T) {
	e := setup(t)
	require.NoError(t, os.WriteFile(e.checkpoint, []byte("2024-02-03 04:05:06"), 0644))

	_, err := e.run("checkpoint", "reset")
	require.NoError(t, err)

	_, err = os.Stat(e.checkpoint)
	assert.NoError(t, err, "empty answer keeps the checkpoint")
}

func TestConfigInitAndValidate(t *testing.T) {
	e := setup(t)
	e.configPath = filepath.Join(e.dir, "new", "photosync.yaml")

	out, err := e.run("config", "init")
	require.NoError(t, err, out)

	data, err := os.ReadFile(e.configPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# photosync configuration"))

	_, err = e.run("config", "init")
	assert.ErrorContains(t, err, "already exists")

	out, err = e.run("config", "validate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "client_id")
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	e := setup(t)
	require.NoError(t, os.WriteFile(e.configPath, []byte("download:\n  concurrent_downloads: 50\nsync:\n  limit: -1\n"), 0600))

	out, err := e.run("config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "concurrent downloads should not exceed 10")
	assert.Contains(t, out, "limit cannot be negative")
}

func TestConfigShowMasksSecret(t *testing.T) {
	e := setup(t)
	cfg := config.DefaultConfig()
	cfg.Photos.ClientSecret = "GOCSPX-supersecretvalue"
	cfg.Logging.Level = "error"
	require.NoError(t, cfg.Save(e.configPath))

	out, err := e.run("config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "supersecret")
	assert.Contains(t, out, "GOCS...alue")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 130, exitCode(fmt.Errorf("run: %w", context.Canceled)))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "********", maskSecret("short"))
	assert.Equal(t, "abcd...wxyz", maskSecret("abcdefghijklmnopqrstuvwxyz"))
}

func TestPrintAccounts(t *testing.T) {
	var buf bytes.Buffer
	printAccounts(&buf, nil)
	assert.Contains(t, buf.String(), "No stored accounts")

	buf.Reset()
	printAccounts(&buf, []*auth.Account{{Name: "family", RefreshToken: "1//0gVERYLONGTOKEN", LastModified: time.Now()}})
	assert.Contains(t, buf.String(), "family")
	assert.NotContains(t, buf.String(), "VERYLONG")
}
