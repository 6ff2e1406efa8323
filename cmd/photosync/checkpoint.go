package main

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"photosync/pkg/checkpoint"
	"photosync/pkg/logger"
	"photosync/pkg/timeutil"
	"photosync/pkg/ui"
)

var (
	checkpointAlbum string
	resetYes        bool
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or reset the sync checkpoint",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored checkpoint",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointShow,
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the checkpoint so the next sync starts from the beginning",
	Long: `Forget the checkpoint so the next sync considers every item.

Files already in the output directory are overwritten when they are
downloaded again.`,
	Args: cobra.NoArgs,
	RunE: runCheckpointReset,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointResetCmd)

	checkpointCmd.PersistentFlags().StringVar(&checkpointAlbum, "album", "", "album whose checkpoint to use; each album has its own")
	checkpointCmd.PersistentFlags().StringVar(&checkpointPath, "checkpoint", "", "checkpoint file path")
	checkpointResetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "do not ask for confirmation")
}

func openCheckpoint(cmd *cobra.Command) (checkpoint.Store, *timeutil.Normalizer, string, error) {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("album") {
		flags["album"] = checkpointAlbum
	}
	if cmd.Flags().Changed("checkpoint") {
		flags["checkpoint"] = checkpointPath
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, "", err
	}
	norm, err := timeutil.NewNormalizer(cfg.Sync.Timezone)
	if err != nil {
		return nil, nil, "", err
	}
	store, err := checkpoint.Open(cfg.Checkpoint, cfg.Sync.Album, norm, logger.GetLogger())
	if err != nil {
		return nil, nil, "", err
	}
	path := cfg.Checkpoint.Path
	if fs, ok := store.(*checkpoint.FileStore); ok {
		path = fs.Path()
	}
	return store, norm, path, nil
}

func runCheckpointShow(cmd *cobra.Command, _ []string) error {
	store, norm, path, err := openCheckpoint(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	ui.Out = out

	t, err := store.Read(cmd.Context())
	if err != nil {
		if errors.Is(err, checkpoint.ErrCorrupt) {
			return fmt.Errorf("%w\nrun 'photosync checkpoint reset' to start over", err)
		}
		return err
	}

	ui.PrintInfo("Checkpoint file", path)
	if t.Equal(norm.Min()) {
		ui.PrintInfo("Checkpoint", "none (next sync considers every item)")
		return nil
	}
	ui.PrintInfo("Checkpoint", fmt.Sprintf("%s %s", norm.Format(t), t.Location()))

	if b, ok := store.(*checkpoint.BoltStore); ok {
		albums, err := b.Albums()
		if err == nil && len(albums) > 0 {
			ui.PrintInfo("Albums with checkpoints", fmt.Sprint(len(albums)))
			for _, a := range albums {
				fmt.Fprintf(out, "  - %s\n", a)
			}
		}
	}
	return nil
}

func runCheckpointReset(cmd *cobra.Command, _ []string) error {
	store, _, path, err := openCheckpoint(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if !resetYes {
		ok, err := confirm(bufio.NewReader(cmd.InOrStdin()), out, fmt.Sprintf("Reset checkpoint in %s?", path))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	if err := checkpoint.Reset(cmd.Context(), store); err != nil {
		return fmt.Errorf("resetting checkpoint: %w", err)
	}

	ui.Out = out
	ui.PrintSuccess("Checkpoint reset")
	return nil
}
