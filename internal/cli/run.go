package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/dirsync/internal/compiler"
	"github.com/roach88/dirsync/internal/engine"
	"github.com/roach88/dirsync/internal/syncrule"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	RulesDir string
	Actor    string
	DryRun   bool

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <rule>",
		Short: "Run a sync rule",
		Long: `Run one sync rule: read its sources, apply its properties to each
imported row and commit every created, modified or purged object to the
database, with an activity log entry per change.

Exit codes:
  0 - Run completed without row errors
  1 - Run aborted, or some rows could not be imported
  2 - Command error (rules invalid, database unavailable, etc.)

Examples:
  dirsync run hosts
  dirsync run --rules ./rules --db ./dirsync.db hosts
  dirsync run --dry-run --format json hosts`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "database path or DSN (overrides config)")
	cmd.Flags().StringVar(&opts.RulesDir, "rules", "", "rules directory (overrides config)")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "author recorded in the activity log")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "compute changes without writing")

	return cmd
}

func runSync(opts *RunOptions, ruleName string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx, opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := e.Close(); closeErr != nil {
			e.logger.Error("error closing environment", "error", closeErr)
		}
	}()

	rulesDir := opts.RulesDir
	if rulesDir == "" {
		rulesDir = e.cfg.RulesDir
	}
	bundle, plan, err := loadPlan(rulesDir, ruleName)
	if err != nil {
		return err
	}

	sources, err := bundle.OpenSources(plan.Rule)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open sources", err)
	}

	var templates syncrule.TemplateCatalog
	if len(bundle.Templates) > 0 {
		templates = bundle.Templates
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	eng := engine.New(e.store, e.log,
		engine.WithRunIDGenerator(runIDs),
		engine.WithLogger(e.logger),
		engine.WithMetrics(e.metrics),
	)

	formatter.VerboseLog("Running rule %s from %s", ruleName, rulesDir)
	sum, runErr := eng.Run(ctx, engine.RunInput{
		Plan:      plan,
		Sources:   sources,
		Templates: templates,
		Actor:     e.actor(opts.Actor),
		DryRun:    opts.DryRun,
	})

	if runErr != nil {
		if formatter.Format == "json" {
			if err := outputRunJSON(formatter, sum, ErrRunAborted, runErr.Error()); err != nil {
				return err
			}
		} else {
			outputRunText(formatter, sum)
		}
		return WrapExitError(ExitFailure, "sync run aborted", runErr)
	}

	if formatter.Format == "json" {
		if sum.HasErrors() {
			if err := outputRunJSON(formatter, sum, ErrRowErrors, fmt.Sprintf("%d row(s) could not be imported", len(sum.Errors))); err != nil {
				return err
			}
		} else if err := formatter.Success(sum); err != nil {
			return err
		}
	} else {
		outputRunText(formatter, sum)
	}

	if sum.HasErrors() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d row(s) could not be imported", len(sum.Errors)))
	}
	return nil
}

// loadBundle loads the rules directory, stopping at the first error.
func loadBundle(rulesDir string) (*compiler.Bundle, error) {
	bundle, loadErrors := compiler.LoadDir(rulesDir, compiler.LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, message := loadErrorParts(loadErrors)
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}
	return bundle, nil
}

// loadPlan loads the rules directory and compiles the named rule.
func loadPlan(rulesDir, ruleName string) (*compiler.Bundle, *syncrule.Plan, error) {
	bundle, err := loadBundle(rulesDir)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := bundle.Rule(ruleName); !ok {
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown rule %q", ruleName))
	}

	plans, errs := compiler.Plans(bundle)
	for _, verr := range errs {
		if verr.Rule == ruleName {
			return nil, nil, WrapExitError(ExitCommandError, "rules are invalid", verr)
		}
	}
	return bundle, plans[ruleName], nil
}

func outputRunJSON(formatter *OutputFormatter, sum *engine.Summary, code, message string) error {
	encoder := json.NewEncoder(formatter.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{
		Status: "error",
		Data:   sum,
		Error:  &CLIError{Code: code, Message: message},
		RunID:  sum.RunID,
	})
}

func outputRunText(formatter *OutputFormatter, sum *engine.Summary) {
	w := formatter.Writer
	if sum == nil {
		return
	}

	header := fmt.Sprintf("Rule %s (%s)", sum.Rule, sum.ObjectType)
	if sum.DryRun {
		header += " [dry run]"
	}
	fmt.Fprintln(w, header)
	fmt.Fprintf(w, "  rows: %d  created: %d  modified: %d  deleted: %d  unchanged: %d\n",
		sum.Rows, sum.Created, sum.Modified, sum.Deleted, sum.Unchanged)

	if formatter.Verbose {
		for _, c := range sum.Changes {
			fmt.Fprintf(w, "  %-6s %s\n", c.Action, c.ObjectName)
		}
	}
	for _, re := range sum.Errors {
		fmt.Fprintf(w, "  ✗ %s %s: %s\n", re.Code, re.Key, re.Message)
	}
	if sum.PurgeSkipped {
		fmt.Fprintln(w, "  purge skipped: some rows could not be imported")
	}
	fmt.Fprintf(w, "  run %s\n", sum.RunID)
}
