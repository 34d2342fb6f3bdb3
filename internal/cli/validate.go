package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relfold/relfold/internal/compiler"
	"github.com/relfold/relfold/rel"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Models int                        `json:"models"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <models.cue|dir>...",
		Short: "Validate model declarations without producing output",
		Long: `Validate CUE entity model files without producing schema output.

Compiles the declarations, checks them against the schema rules, and
runs relation resolution to surface synthesis conflicts. Reports every
error found rather than stopping at the first.

Exit codes:
  0 - All models valid
  1 - Validation failed
  2 - Command error (path not found, unreadable file, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	// Collect-all mode: validate reports everything it can find
	loadResult, loadErrors := LoadModels(paths, LoadModeCollectAll)

	// Handle load errors (path not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s)", loadResult.FileCount)
	for name := range loadResult.Declared {
		formatter.VerboseLog("Validating model: %s", name)
	}

	// Per-file compile errors become validation errors
	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
			})
		}
	}

	validationErrors = append(validationErrors, compiler.Validate(loadResult.Declared)...)

	// Resolution catches what per-declaration rules cannot: through
	// synthesis collisions and ill-formed explicit through entities.
	// Only meaningful on declarations that passed the rules above.
	if len(validationErrors) == 0 {
		if _, err := rel.ResolveSchemas(loadResult.Declared); err != nil {
			validationErrors = append(validationErrors, resolveErrorToValidation(err))
		}
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, len(loadResult.Declared))
}

// resolveErrorToValidation converts a resolution error to a validation
// error with the resolve-conflict code.
func resolveErrorToValidation(err error) compiler.ValidationError {
	var schemaErr *rel.SchemaError
	if errors.As(err, &schemaErr) {
		field := fmt.Sprintf("models.%s", schemaErr.Entity)
		if schemaErr.Field != "" {
			field = fmt.Sprintf("models.%s.fields.%s", schemaErr.Entity, schemaErr.Field)
		}
		return compiler.ValidationError{
			Field:   field,
			Message: schemaErr.Message,
			Code:    compiler.ErrResolveConflict,
		}
	}
	return compiler.ValidationError{
		Field:   "models",
		Message: err.Error(),
		Code:    compiler.ErrResolveConflict,
	}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, models int) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true, Models: models}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d model(s) valid\n", models)
	return nil
}

// outputValidateError outputs a single load-level error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

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

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "%s\n", err.Field)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateModelPaths validates all model files under the given paths.
// This is a helper function for external callers.
func ValidateModelPaths(paths []string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadModels(paths, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	var validationErrs []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrs = append(validationErrs, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
			})
		}
	}
	validationErrs = append(validationErrs, compiler.Validate(loadResult.Declared)...)
	if len(validationErrs) == 0 {
		if _, err := rel.ResolveSchemas(loadResult.Declared); err != nil {
			validationErrs = append(validationErrs, resolveErrorToValidation(err))
		}
	}

	return validationErrs, nil
}
