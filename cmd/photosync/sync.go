package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"photosync/pkg/auth"
	"photosync/pkg/checkpoint"
	"photosync/pkg/config"
	errs "photosync/pkg/errors"
	"photosync/pkg/logger"
	"photosync/pkg/photos"
	"photosync/pkg/syncer"
	"photosync/pkg/timeutil"
	"photosync/pkg/ui"
)

var (
	albumName        string
	outputDir        string
	limit            int
	concurrent       int
	checkpointPath   string
	accountName      string
	stopAtCheckpoint bool
	timezone         string
)

// remoteSource is the photo service as the sync command uses it
type remoteSource interface {
	syncer.Source
	Verify(ctx context.Context) error
}

// credentialResolver finds the account to sync
type credentialResolver interface {
	Resolve(name string) (*auth.Account, error)
}

// Swapped in tests.
var (
	newSource = func(ctx context.Context, cfg *config.Config, refreshToken string, log logger.Logger) (remoteSource, error) {
		return photos.NewFromConfig(ctx, cfg, refreshToken, log)
	}
	newCredentials = func() (credentialResolver, error) {
		return auth.NewManager()
	}
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download items created since the last sync",
	Long: `Download every item of an album that is not older than the checkpoint,
then advance the checkpoint to the newest item written.

The checkpoint is written even when the run fails or is interrupted, so the
next run resumes where this one stopped. A checkpoint that cannot be parsed
aborts the run before anything is downloaded.`,
	Example: `  # Sync the whole library into ./photos
  photosync sync

  # Sync one album with four parallel downloads
  photosync sync --album "Holidays" --output ~/Pictures/holidays --concurrent 4

  # Try it on the 20 newest items first
  photosync sync --limit 20`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&albumName, "album", "", `album title, or "All Photos" for the whole library; each album keeps its own checkpoint`)
	syncCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	syncCmd.Flags().IntVar(&limit, "limit", 0, "stop after this many items have been listed (0 = no limit)")
	syncCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of parallel downloads (1-10)")
	syncCmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "checkpoint file path")
	syncCmd.Flags().StringVarP(&accountName, "account", "a", "", "stored account to use")
	syncCmd.Flags().BoolVar(&stopAtCheckpoint, "stop-at-checkpoint", false, "stop listing at the first item older than the checkpoint")
	syncCmd.Flags().StringVar(&timezone, "timezone", "", "zone used to compare and store checkpoint times")
}

// syncFlags collects the flags the user actually set
func syncFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	f := cmd.Flags()
	if f.Changed("album") {
		flags["album"] = albumName
	}
	if f.Changed("output") {
		flags["output"] = outputDir
	}
	if f.Changed("limit") {
		flags["limit"] = limit
	}
	if f.Changed("concurrent") {
		flags["concurrent"] = concurrent
	}
	if f.Changed("checkpoint") {
		flags["checkpoint"] = checkpointPath
	}
	if f.Changed("account") {
		flags["account"] = accountName
	}
	if f.Changed("stop-at-checkpoint") {
		flags["stop-at-checkpoint"] = stopAtCheckpoint
	}
	if f.Changed("timezone") {
		flags["timezone"] = timezone
	}
	return flags
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(syncFlags(cmd))
	if err != nil {
		return err
	}
	log := logger.GetLogger().WithField("component", "cli")

	norm, err := timeutil.NewNormalizer(cfg.Sync.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	store, err := checkpoint.Open(cfg.Checkpoint, cfg.Sync.Album, norm, log)
	if err != nil {
		return fmt.Errorf("opening checkpoint: %w", err)
	}
	defer store.Close()

	// A bad checkpoint is reported before any network call.
	if _, err := store.Read(ctx); err != nil {
		return checkpointError(err)
	}

	source, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}

	var display *ui.ProgressDisplay
	if !quiet {
		display = ui.NewProgressDisplay(out, cfg.Sync.Album, cfg.Sync.Limit, verbose || !isTerminal(out))
	}

	opts := syncer.Options{
		Album:            cfg.Sync.Album,
		OutputDir:        cfg.Sync.OutputDir,
		Limit:            cfg.Sync.Limit,
		Workers:          cfg.Download.ConcurrentDownloads,
		StopAtCheckpoint: cfg.Sync.StopAtCheckpoint,
	}
	if display != nil {
		opts.OnEvent = display.OnEvent
	}

	summary, runErr := syncer.New(source, store, norm, log).Run(ctx, opts)

	if display != nil {
		display.Finish()
		if summary != nil {
			fmt.Fprintln(out, ui.RenderSummary(summary, norm))
		}
	}
	if !quiet {
		ui.NewNotifier(cfg.Notifications, out).NotifyRun(summary, runErr)
	}

	if errors.Is(runErr, checkpoint.ErrCorrupt) {
		return checkpointError(runErr)
	}
	return runErr
}

func checkpointError(err error) error {
	if errors.Is(err, checkpoint.ErrCorrupt) {
		return fmt.Errorf("%w\nfix or remove the checkpoint, or run 'photosync checkpoint reset'", err)
	}
	return fmt.Errorf("reading checkpoint: %w", err)
}

// connect resolves credentials and checks them against the service before
// anything else happens.
func connect(ctx context.Context, cfg *config.Config, log logger.Logger) (remoteSource, error) {
	creds, err := newCredentials()
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	account, err := creds.Resolve(cfg.Photos.Account)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return nil, fmt.Errorf("%w\nrun 'photosync auth login' or set %s", err, auth.EnvRefreshToken)
		}
		return nil, err
	}

	source, err := newSource(ctx, cfg, account.RefreshToken, log)
	if err != nil {
		return nil, err
	}
	if err := source.Verify(ctx); err != nil {
		if errs.IsType(err, errs.ErrorTypeAuth) {
			return nil, fmt.Errorf("authentication failed for account %q: %w", account.Name, err)
		}
		return nil, err
	}

	log.WithField("account", account.Name).Debug("Authenticated")
	return source, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
