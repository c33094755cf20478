package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dirsync/internal/activity"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Action   string // optional - filter to one action
}

// HistoryResult is the activity of one object.
type HistoryResult struct {
	ObjectType string          `json:"object_type"`
	ObjectName string          `json:"object_name"`
	Entries    []activity.View `json:"entries"`
	Stats      HistoryStats    `json:"stats"`
}

// HistoryStats counts the entries of a history per action.
type HistoryStats struct {
	Total    int  `json:"total"`
	Created  int  `json:"created"`
	Modified int  `json:"modified"`
	Deleted  int  `json:"deleted"`
	Exists   bool `json:"exists"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <object-type> <object-name>",
		Short: "Show the activity of one object",
		Long: `Show every activity log entry about one object, oldest first.

A renamed object appears under each of its names: entries are matched on the
name the object had when the change was made.

Examples:
  dirsync history host www1
  dirsync history host www1 --action modify
  dirsync history host www1 --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "database path or DSN (overrides config)")
	cmd.Flags().StringVar(&opts.Action, "action", "", "only entries with this action (create|modify|delete)")

	return cmd
}

func runHistory(opts *HistoryOptions, objectType, objectName string, cmd *cobra.Command) error {
	if opts.Action != "" && !activity.Action(opts.Action).Valid() {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid action %q", opts.Action))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	e, err := openEnv(ctx, opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer e.Close()

	entries, err := e.store.ObjectHistory(ctx, objectType, objectName)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read activity log", err)
	}

	result := buildHistory(objectType, objectName, entries, activity.Action(opts.Action))
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputHistoryText(formatter, result)
}

// buildHistory counts every entry but only lists those matching action.
func buildHistory(objectType, objectName string, entries []activity.Entry, action activity.Action) HistoryResult {
	result := HistoryResult{ObjectType: objectType, ObjectName: objectName, Entries: []activity.View{}}
	for i := range entries {
		entry := &entries[i]
		switch entry.ActionName {
		case activity.ActionCreate:
			result.Stats.Created++
			result.Stats.Exists = true
		case activity.ActionModify:
			result.Stats.Modified++
			result.Stats.Exists = true
		case activity.ActionDelete:
			result.Stats.Deleted++
			result.Stats.Exists = false
		}
		if action == "" || entry.ActionName == action {
			result.Entries = append(result.Entries, entry.View())
		}
	}
	result.Stats.Total = len(entries)
	return result
}

func outputHistoryText(f *OutputFormatter, result HistoryResult) error {
	w := f.Writer
	fmt.Fprintf(w, "History: %s %s\n", result.ObjectType, result.ObjectName)
	fmt.Fprintln(w, "═══════════════════════════════════════")

	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "No entries.")
		return nil
	}
	for _, v := range result.Entries {
		fmt.Fprintf(w, "[%d] %s  %-6s by %s  %s\n",
			v.ID, v.ChangeTime, v.ActionName, v.Author, truncateChecksum(v.Checksum))
		if f.Verbose && v.NewProperties != nil {
			fmt.Fprintf(w, "      %s\n", *v.NewProperties)
		}
	}

	fmt.Fprintln(w)
	state := "deleted"
	if result.Stats.Exists {
		state = "exists"
	}
	fmt.Fprintf(w, "Stats: %d entries (%d created, %d modified, %d deleted), %s\n",
		result.Stats.Total, result.Stats.Created, result.Stats.Modified, result.Stats.Deleted, state)
	return nil
}
