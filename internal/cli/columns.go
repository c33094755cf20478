package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dirsync/internal/source"
)

// ColumnsOptions holds flags for the columns command.
type ColumnsOptions struct {
	*RootOptions
	RulesDir   string
	ObjectType string
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ColumnsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "columns <source>",
		Short: "List the columns of an import source",
		Long: `Fetch an import source and list its columns as property expressions.

With --object-type the templates a bulk import of that type may choose from
are listed too. A source that cannot be read is reported, not hidden.

Examples:
  dirsync columns cmdb
  dirsync columns --object-type host --format json cmdb`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColumns(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RulesDir, "rules", "", "rules directory (overrides config)")
	cmd.Flags().StringVar(&opts.ObjectType, "object-type", "", "also list import templates for this object type")

	return cmd
}

func runColumns(opts *ColumnsOptions, sourceName string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	rulesDir := opts.RulesDir
	if rulesDir == "" {
		cfg, err := opts.config()
		if err != nil {
			return err
		}
		rulesDir = cfg.RulesDir
	}

	bundle, err := loadBundle(rulesDir)
	if err != nil {
		return err
	}
	def, ok := bundle.Source(sourceName)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown source %q", sourceName))
	}
	src, err := source.Open(def)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid source", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var in source.Introspection
	if opts.ObjectType != "" {
		in = source.IntrospectImport(ctx, src, bundle.Templates, opts.ObjectType)
	} else {
		in = source.Introspect(ctx, src)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(in); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		fmt.Fprintf(w, "%s: %s\n", in.Source, in.Title)
		for _, c := range in.Columns {
			fmt.Fprintf(w, "  %-24s %s\n", c.Expression, c.Label)
		}
		if len(in.Templates) > 0 {
			fmt.Fprintln(w, "Templates")
			for _, c := range in.Templates {
				fmt.Fprintf(w, "  %s\n", c.Expression)
			}
		}
		if in.Failed() {
			fmt.Fprintf(w, "  ✗ %s\n", in.Error)
		}
	}

	if in.Failed() {
		return NewExitError(ExitFailure, in.Error)
	}
	return nil
}
