package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/dirsync/internal/activity"
)

// LogOptions holds flags shared by the log subcommands.
type LogOptions struct {
	*RootOptions
	Database string
	From     int64
	To       int64
}

// VerifyResult is the outcome of a chain verification.
type VerifyResult struct {
	Valid    bool   `json:"valid"`
	From     int64  `json:"from"`
	To       int64  `json:"to,omitempty"`
	Entries  int    `json:"entries"`
	BrokenAt int64  `json:"broken_at,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// NewLogCommand creates the log command and its subcommands.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect and verify the activity log",
		Long: `Inspect and verify the hash-chained activity log.

Every entry carries the checksum of the entry before it, so a modified or
removed entry breaks the chain from that point on.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "database path or DSN (overrides config)")

	cmd.AddCommand(newLogLatestCommand(opts))
	cmd.AddCommand(newLogShowCommand(opts))
	cmd.AddCommand(newLogListCommand(opts))
	cmd.AddCommand(newLogVerifyCommand(opts))
	return cmd
}

func newLogLatestCommand(opts *LogOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "latest",
		Short:         "Show the most recent entry",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLog(opts, cmd, func(ctx context.Context, e *env, f *OutputFormatter) error {
				latest, err := e.log.Latest(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read activity log", err)
				}
				if latest == nil {
					if f.Format == "json" {
						return f.Success(nil)
					}
					fmt.Fprintln(f.Writer, "Activity log is empty.")
					return nil
				}
				return outputEntry(f, latest)
			})
		},
	}
}

func newLogShowCommand(opts *LogOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show one entry with its property snapshots",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid entry id %q", args[0]))
			}
			return withLog(opts, cmd, func(ctx context.Context, e *env, f *OutputFormatter) error {
				entry, err := e.store.Entry(ctx, id)
				if errors.Is(err, activity.ErrNotFound) {
					return f.Fail(ExitFailure, ErrEntryNotFound, fmt.Sprintf("no activity entry %d", id), nil, err)
				}
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read activity log", err)
				}
				return outputEntry(f, entry)
			})
		},
	}
}

func newLogListCommand(opts *LogOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List entries in chain order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLog(opts, cmd, func(ctx context.Context, e *env, f *OutputFormatter) error {
				entries, err := e.store.Entries(ctx, opts.From, opts.To)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read activity log", err)
				}
				if f.Format == "json" {
					views := make([]activity.View, 0, len(entries))
					for i := range entries {
						views = append(views, entries[i].View())
					}
					return f.Success(views)
				}
				if len(entries) == 0 {
					fmt.Fprintln(f.Writer, "No entries.")
					return nil
				}
				for i := range entries {
					writeEntryLine(f, &entries[i])
				}
				return nil
			})
		},
	}
	addRangeFlags(cmd, opts)
	return cmd
}

func newLogVerifyCommand(opts *LogOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the checksum chain",
		Long: `Recompute every entry checksum in the range and check each parent link.

Exit codes:
  0 - The chain verifies
  1 - The chain is broken
  2 - Command error (database not found, etc.)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLog(opts, cmd, func(ctx context.Context, e *env, f *OutputFormatter) error {
				return runVerify(ctx, opts, e, f)
			})
		},
	}
	addRangeFlags(cmd, opts)
	return cmd
}

func addRangeFlags(cmd *cobra.Command, opts *LogOptions) {
	cmd.Flags().Int64Var(&opts.From, "from", 0, "first entry id")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "last entry id (0 for the end of the log)")
}

func runVerify(ctx context.Context, opts *LogOptions, e *env, f *OutputFormatter) error {
	entries, err := e.store.Entries(ctx, opts.From, opts.To)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read activity log", err)
	}
	result := VerifyResult{Valid: true, From: opts.From, To: opts.To, Entries: len(entries)}

	err = e.log.VerifyChain(ctx, opts.From, opts.To)
	var chainErr *activity.ChainIntegrityError
	switch {
	case errors.As(err, &chainErr):
		result.Valid = false
		result.BrokenAt = chainErr.EntryID
		result.Reason = chainErr.Reason
	case err != nil:
		return WrapExitError(ExitCommandError, "failed to verify activity log", err)
	}

	if f.Format == "json" {
		if result.Valid {
			if err := f.Success(result); err != nil {
				return err
			}
		} else if err := f.Error(ErrChainBroken, chainErr.Error(), result); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(f.Writer, "✓ Activity chain verified (%d entries)\n", result.Entries)
	} else {
		fmt.Fprintf(f.Writer, "✗ Activity chain broken at entry %d: %s\n", result.BrokenAt, result.Reason)
	}

	if !result.Valid {
		return WrapExitError(ExitFailure, "activity chain broken", chainErr)
	}
	return nil
}

// withLog opens the environment, runs fn and closes it again.
func withLog(opts *LogOptions, cmd *cobra.Command, fn func(context.Context, *env, *OutputFormatter) error) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := openEnv(ctx, opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := e.Close(); closeErr != nil {
			e.logger.Error("error closing environment", "error", closeErr)
		}
	}()
	return fn(ctx, e, formatter)
}

func outputEntry(f *OutputFormatter, e *activity.Entry) error {
	v := e.View()
	if f.Format == "json" {
		return f.Success(v)
	}

	w := f.Writer
	fmt.Fprintf(w, "Entry %d\n", v.ID)
	fmt.Fprintf(w, "  action:   %s %s %s\n", v.ActionName, v.ObjectType, v.ObjectName)
	fmt.Fprintf(w, "  author:   %s\n", v.Author)
	fmt.Fprintf(w, "  time:     %s\n", v.ChangeTime)
	fmt.Fprintf(w, "  checksum: %s\n", v.Checksum)
	fmt.Fprintf(w, "  parent:   %s\n", v.ParentChecksum)
	if v.OldProperties != nil {
		fmt.Fprintf(w, "  old:      %s\n", *v.OldProperties)
	}
	if v.NewProperties != nil {
		fmt.Fprintf(w, "  new:      %s\n", *v.NewProperties)
	}
	return nil
}

func writeEntryLine(f *OutputFormatter, e *activity.Entry) {
	fmt.Fprintf(f.Writer, "%6d  %s  %-6s  %-10s %-24s %s  %s\n",
		e.ID, e.ChangeTimeText(), e.ActionName, e.ObjectType, e.ObjectName, e.Author, truncateChecksum(e.ChecksumHex()))
}

// truncateChecksum shortens a hex checksum for display.
func truncateChecksum(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
