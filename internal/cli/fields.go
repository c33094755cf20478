package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dirsync/internal/compiler"
	"github.com/roach88/dirsync/internal/object"
)

// FieldsResult lists the destinations a rule for one object type may use.
type FieldsResult struct {
	ObjectType string         `json:"object_type"`
	Fields     []object.Field `json:"fields"`
}

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields <object-type>",
		Short: "List sync destination fields of an object type",
		Long: `List the destination fields a sync property may write for an object type.

Special destinations (custom variables, imports, arguments, groups and time
ranges) come first when the type supports them, then the plain properties.

Examples:
  dirsync fields host
  dirsync fields service --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		ValidArgs:     object.Types(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runFields(opts *RootOptions, objectType string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	desc, err := object.Lookup(objectType)
	if err != nil {
		return formatter.Fail(ExitCommandError, compiler.ErrUnknownObjectType, err.Error(), map[string]any{"known": object.Types()}, err)
	}

	result := FieldsResult{ObjectType: desc.Type, Fields: object.DestinationFields(desc)}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Destination fields for %s:\n", result.ObjectType)
	for _, f := range result.Fields {
		marker := " "
		if f.Special {
			marker = "*"
		}
		fmt.Fprintf(w, "  %s %-20s %s\n", marker, f.Name, f.Label)
	}
	if opts.Verbose {
		fmt.Fprintf(w, "\nKnown object types: %s\n", strings.Join(object.Types(), ", "))
	}
	return nil
}
