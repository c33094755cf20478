package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dirsync/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Files   int                        `json:"files"`
	Sources int                        `json:"sources"`
	Rules   int                        `json:"rules"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [rules-dir]",
		Short: "Validate sources and sync rules",
		Long: `Load a rules directory and check every source and sync rule.

Each rule is compiled against its object type: destinations, filter
expressions and source references are checked, and every problem is
reported. The directory defaults to rules_dir from the config.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, rulesDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if rulesDir == "" {
		cfg, err := opts.config()
		if err != nil {
			return err
		}
		rulesDir = cfg.RulesDir
	}

	formatter.VerboseLog("Loading rules from %s", rulesDir)
	bundle, loadErrors := compiler.LoadDir(rulesDir, compiler.LoadModeCollectAll)

	// Directory not found, no files or a CUE build failure.
	if bundle == nil {
		code, message := loadErrorParts(loadErrors)
		return outputValidateError(formatter, code, message, nil)
	}

	errs := make([]compiler.ValidationError, 0, len(loadErrors))
	for _, err := range loadErrors {
		code, message := loadErrorParts([]error{err})
		errs = append(errs, compiler.ValidationError{Field: "load", Message: message, Code: code})
	}
	errs = append(errs, compiler.Validate(bundle)...)

	result := ValidationResult{
		Valid:   len(errs) == 0,
		Files:   bundle.FileCount,
		Sources: len(bundle.Sources),
		Rules:   len(bundle.Rules),
		Errors:  errs,
	}
	formatter.VerboseLog("Checked %d source(s) and %d rule(s)", result.Sources, result.Rules)

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// loadErrorParts picks the code and message to report for a failed load.
func loadErrorParts(errs []error) (code, message string) {
	if len(errs) == 0 {
		return compiler.ErrCodeGeneric, "rules could not be loaded"
	}
	var loadErr *compiler.LoadError
	if errors.As(errs[0], &loadErr) {
		switch {
		case loadErr.File != "" && loadErr.Line > 0:
			return loadErr.Code, fmt.Sprintf("%s:%d: %s", loadErr.File, loadErr.Line, loadErr.Message)
		case loadErr.File != "":
			return loadErr.Code, fmt.Sprintf("%s: %s", loadErr.File, loadErr.Message)
		}
		return loadErr.Code, loadErr.Message
	}
	return compiler.ErrCodeGeneric, errs[0].Error()
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All rules valid (%d file(s), %d source(s), %d rule(s))\n",
		result.Files, result.Sources, result.Rules)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	// Load errors are command-level errors (exit code 2)
	return formatter.Fail(ExitCommandError, code, message, details, nil)
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Rule != "" {
			fmt.Fprintf(formatter.Writer, "rule %s\n", err.Rule)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
