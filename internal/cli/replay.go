package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dirsync/internal/activity"
	"github.com/roach88/dirsync/internal/engine"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	From     int64
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild committed objects from the activity log",
		Long: `Replay the activity log onto the object table.

The checksum chain is verified first; nothing is written when it is broken.
Each create or modify entry then stores its new snapshot and each delete
entry removes the object. Replaying twice gives the same result.

Exit codes:
  0 - Objects rebuilt
  1 - The activity chain is broken
  2 - Command error (database not found, etc.)

Examples:
  dirsync replay --db ./dirsync.db
  dirsync replay --from 120 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "database path or DSN (overrides config)")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "first entry id to replay")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	e, err := openEnv(ctx, opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := engine.Replay(ctx, e.store, e.store, opts.From)
	var chainErr *activity.ChainIntegrityError
	if errors.As(err, &chainErr) {
		return formatter.Fail(ExitFailure, ErrChainBroken, chainErr.Error(), map[string]any{"entry_id": chainErr.EntryID}, chainErr)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}
	e.logger.Info("replay finished", "entries", res.Entries, "put", res.Put, "deleted", res.Deleted)

	if formatter.Format == "json" {
		return formatter.Success(res)
	}
	if res.Entries == 0 {
		fmt.Fprintln(formatter.Writer, "No entries to replay.")
		return nil
	}
	fmt.Fprintf(formatter.Writer, "Replayed %d entries: %d object(s) stored, %d deleted\n",
		res.Entries, res.Put, res.Deleted)
	return nil
}
