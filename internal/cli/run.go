package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/relfold/relfold/internal/harness"
)

// EntityCount reports the record count of one entity in the final root.
type EntityCount struct {
	Entity string `json:"entity"`
	Count  int    `json:"count"`
}

// RunReport holds the outcome of a scenario run.
type RunReport struct {
	Scenario   string                `json:"scenario"`
	Pass       bool                  `json:"pass"`
	Cycles     []harness.CycleReport `json:"cycles"`
	Final      []EntityCount         `json:"final"`
	Errors     []string              `json:"errors,omitempty"`
	FoldErrors []string              `json:"fold_errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a single scenario",
		Long: `Run a scenario file and report its outcome.

The scenario's models compile into a schema set, the seed records
build the initial root, and each cycle opens a session, applies its
mutations, and folds into the next root. Assertions then check the
final root and the recorded cycle errors.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed (assertion or unexpected cycle error)
  2 - Command error (file not found, malformed scenario, etc.)

Examples:
  relfold run ./scenarios/checkout.yaml
  relfold run ./scenarios/checkout.yaml --verbose
  relfold run ./scenarios/checkout.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runScenarioFile(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Cycle traces go to stderr so stdout stays parseable
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return outputRunError(formatter, ErrCodeNotFound, fmt.Sprintf("scenario file not found: %s", path))
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return outputRunError(formatter, ErrCodeLoadFailed, fmt.Sprintf("loading scenario: %v", err))
	}

	logger.Debug("scenario loaded", "name", scenario.Name, "cycles", len(scenario.Cycles))

	result, err := harness.RunWithLogger(scenario, logger)
	if err != nil {
		return outputRunError(formatter, ErrCodeGeneric, fmt.Sprintf("executing scenario: %v", err))
	}

	report := buildRunReport(scenario, result)

	if opts.Format == "json" {
		return outputRunJSON(formatter, report)
	}
	return outputRunText(formatter, report)
}

// buildRunReport converts a harness result into the CLI report shape.
func buildRunReport(scenario *harness.Scenario, result *harness.Result) RunReport {
	report := RunReport{
		Scenario:   scenario.Name,
		Pass:       result.Pass,
		Cycles:     result.Cycles,
		Final:      make([]EntityCount, 0, result.Final.Len()),
		Errors:     result.Errors,
		FoldErrors: result.FoldErrors,
	}
	for _, entity := range result.Final.Entities() {
		b, _ := result.Final.Branch(entity)
		report.Final = append(report.Final, EntityCount{Entity: entity, Count: b.Len()})
	}
	return report
}

// outputRunJSON outputs the run report as JSON.
func outputRunJSON(formatter *OutputFormatter, report RunReport) error {
	status := "ok"
	response := CLIResponse{
		Status: status,
		Data:   report,
	}
	if !report.Pass {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_SCENARIO_FAILED",
			Message: fmt.Sprintf("%d error(s)", len(report.Errors)),
		}
	}

	encoder := json.NewEncoder(formatter.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !report.Pass {
		// Scenario failure = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", report.Scenario))
	}
	return nil
}

// outputRunText outputs the run report as text.
func outputRunText(formatter *OutputFormatter, report RunReport) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Scenario: %s\n\n", report.Scenario)

	for _, cycle := range report.Cycles {
		status := "✓"
		if cycle.Failed {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s: %d mutation(s)\n", status, cycle.Name, cycle.Mutations)
	}
	fmt.Fprintln(w)

	if len(report.Final) > 0 {
		fmt.Fprintln(w, "Final state:")
		for _, ec := range report.Final {
			fmt.Fprintf(w, "  %s: %d record(s)\n", ec.Entity, ec.Count)
		}
		fmt.Fprintln(w)
	}

	if report.Pass {
		fmt.Fprintln(w, "✓ Scenario passed")
		return nil
	}

	fmt.Fprintln(w, "✗ Scenario failed")
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	// Scenario failure = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", report.Scenario))
}

// outputRunError outputs a command-level run error.
func outputRunError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
