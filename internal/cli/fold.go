package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relfold/relfold/internal/harness"
)

// FoldOptions holds flags for the fold command.
type FoldOptions struct {
	*RootOptions
	Entity string // print a single entity's branch instead of the root
	Hash   bool   // print the content hash instead of the state
}

// FoldResult holds the derived fold state for a scenario.
type FoldResult struct {
	Scenario      string          `json:"scenario"`
	Cycles        int             `json:"cycles"`
	Deterministic bool            `json:"deterministic"`
	Entity        string          `json:"entity,omitempty"`
	Hash          string          `json:"hash"`
	State         json.RawMessage `json:"state,omitempty"`
}

// NewFoldCommand creates the fold command.
func NewFoldCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FoldOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fold <scenario.yaml>",
		Short: "Derive folded state and verify determinism",
		Long: `Derive the final folded state of a scenario and verify determinism.

The scenario runs twice from scratch; both runs must produce
byte-identical fold snapshots. The final root (or a single entity's
branch with --entity) then prints as canonical JSON, or as its content
hash with --hash. Assertion outcomes do not affect fold output; use
run to check assertions.

Exit codes:
  0 - Fold derived and deterministic
  1 - Determinism verification failed (runs differ)
  2 - Command error (file not found, unknown entity, etc.)

Examples:
  relfold fold ./scenarios/checkout.yaml
  relfold fold ./scenarios/checkout.yaml --entity Order
  relfold fold ./scenarios/checkout.yaml --entity Order --hash
  relfold fold ./scenarios/checkout.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFold(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Entity, "entity", "", "print a single entity's branch")
	cmd.Flags().BoolVar(&opts.Hash, "hash", false, "print the content hash instead of the state")

	return cmd
}

func runFold(opts *FoldOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return outputFoldError(formatter, ErrCodeNotFound, fmt.Sprintf("scenario file not found: %s", path))
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return outputFoldError(formatter, ErrCodeLoadFailed, fmt.Sprintf("loading scenario: %v", err))
	}

	// Fold twice from scratch and compare snapshots. Equal runs must
	// produce byte-identical snapshots - anything else means a
	// nondeterministic fold.
	first, err := harness.Run(scenario)
	if err != nil {
		return outputFoldError(formatter, ErrCodeGeneric, fmt.Sprintf("first fold failed: %v", err))
	}
	second, err := harness.Run(scenario)
	if err != nil {
		return outputFoldError(formatter, ErrCodeGeneric, fmt.Sprintf("second fold failed: %v", err))
	}

	deterministic, err := compareSnapshots(scenario.Name, first, second)
	if err != nil {
		return outputFoldError(formatter, ErrCodeGeneric, fmt.Sprintf("comparing folds: %v", err))
	}

	result := FoldResult{
		Scenario:      scenario.Name,
		Cycles:        len(first.Cycles),
		Deterministic: deterministic,
		Entity:        opts.Entity,
	}

	if deterministic {
		if err := fillFoldState(&result, first, opts); err != nil {
			return outputFoldError(formatter, ErrCodeNotFound, err.Error())
		}
	}

	if opts.Format == "json" {
		return outputFoldJSON(formatter, result)
	}
	return outputFoldText(formatter, result, opts)
}

// compareSnapshots checks two runs for byte-identical fold snapshots.
func compareSnapshots(scenarioName string, first, second *harness.Result) (bool, error) {
	a, err := harness.SnapshotJSON(scenarioName, first)
	if err != nil {
		return false, err
	}
	b, err := harness.SnapshotJSON(scenarioName, second)
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}

// fillFoldState computes the requested state and hash from the final
// root: the whole root, or a single entity's branch with --entity.
func fillFoldState(result *FoldResult, run *harness.Result, opts *FoldOptions) error {
	if opts.Entity != "" {
		b, ok := run.Final.Branch(opts.Entity)
		if !ok {
			return fmt.Errorf("entity %q not found in final root", opts.Entity)
		}
		hash, err := b.Hash()
		if err != nil {
			return err
		}
		result.Hash = hash
		if !opts.Hash {
			state, err := b.CanonicalJSON()
			if err != nil {
				return err
			}
			result.State = state
		}
		return nil
	}

	hash, err := run.Final.Hash()
	if err != nil {
		return err
	}
	result.Hash = hash
	if !opts.Hash {
		state, err := run.Final.CanonicalJSON()
		if err != nil {
			return err
		}
		result.State = state
	}
	return nil
}

// outputFoldJSON outputs the fold result as JSON.
func outputFoldJSON(formatter *OutputFormatter, result FoldResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(formatter.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.Deterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputFoldText outputs the fold result as text.
func outputFoldText(formatter *OutputFormatter, result FoldResult, opts *FoldOptions) error {
	w := formatter.Writer

	if !result.Deterministic {
		fmt.Fprintf(w, "✗ Non-deterministic fold over %d cycle(s)\n", result.Cycles)
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}

	fmt.Fprintf(w, "✓ Deterministic fold over %d cycle(s)\n\n", result.Cycles)

	label := "Root"
	if result.Entity != "" {
		label = result.Entity
	}
	if opts.Hash {
		fmt.Fprintf(w, "%s hash: %s\n", label, result.Hash)
		return nil
	}

	fmt.Fprintf(w, "%s\n", result.State)
	return nil
}

// outputFoldError outputs a command-level fold error.
func outputFoldError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
