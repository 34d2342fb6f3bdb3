package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relfold/relfold/internal/compiler"
	"github.com/relfold/relfold/rel"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// EntitySummary describes one resolved schema in compile output.
type EntitySummary struct {
	Name        string `json:"name"`
	IDAttribute string `json:"id_attribute"`
	Fields      int    `json:"fields"`
	Synthetic   bool   `json:"synthetic,omitempty"`
}

// CompilationResult holds the resolved schema set and its summary.
type CompilationResult struct {
	Entities []EntitySummary `json:"entities"`
	Hash     string          `json:"hash"`
	Schemas  json.RawMessage `json:"schemas"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <models.cue|dir>...",
		Short: "Compile model declarations to resolved schemas",
		Long: `Compile CUE entity model files into a resolved schema set.

The compiler parses the declarations, validates them, and resolves
relations: foreign keys gain their target id wiring and many-to-many
fields synthesize their through entities. The resolved set serializes
as canonical JSON, so compiling the same declarations always produces
byte-identical output and an identical schema set hash.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	// Use shared loader with collect-all mode
	loadResult, loadErrors := LoadModels(paths, LoadModeCollectAll)

	// Handle load errors (path not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s)", loadResult.FileCount)
	for name := range loadResult.Declared {
		formatter.VerboseLog("Compiling model: %s", name)
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	// Validation runs before resolution so error output carries rule
	// codes instead of a single resolution failure.
	if verrs := compiler.Validate(loadResult.Declared); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return outputCompileErrors(formatter, errs)
	}

	schemas, err := rel.ResolveSchemas(loadResult.Declared)
	if err != nil {
		verr := resolveErrorToValidation(err)
		return outputCompileError(formatter, verr.Code, verr.Message, verr.Field)
	}

	result, err := buildCompilationResult(schemas)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("serializing schemas: %v", err), nil)
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, result.Schemas, 0644); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, len(loadResult.Declared), opts.Output)
}

// buildCompilationResult summarizes a resolved schema set and computes
// its canonical serialization and content hash.
func buildCompilationResult(schemas rel.SchemaSet) (*CompilationResult, error) {
	canonical, err := schemas.CanonicalJSON()
	if err != nil {
		return nil, err
	}
	hash, err := rel.SchemaSetHash(schemas)
	if err != nil {
		return nil, err
	}

	result := &CompilationResult{
		Entities: make([]EntitySummary, 0, len(schemas)),
		Hash:     hash,
		Schemas:  canonical,
	}
	for _, name := range schemas.Names() {
		schema, _ := schemas.Get(name)
		result.Entities = append(result.Entities, EntitySummary{
			Name:        schema.Name,
			IDAttribute: schema.IDAttribute,
			Fields:      len(schema.Fields),
			Synthetic:   schema.Synthetic,
		})
	}
	return result, nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, declared int, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	synthesized := len(result.Entities) - declared
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d model(s) into %d schema(s) (%d synthesized)\n\n",
		declared, len(result.Entities), synthesized)

	fmt.Fprintln(formatter.Writer, "Entities:")
	for _, e := range result.Entities {
		suffix := ""
		if e.Synthetic {
			suffix = " (synthesized)"
		}
		fmt.Fprintf(formatter.Writer, "  %s: id %s, %d field(s)%s\n", e.Name, e.IDAttribute, e.Fields, suffix)
	}
	fmt.Fprintln(formatter.Writer)

	fmt.Fprintf(formatter.Writer, "Schema set hash: %s\n", result.Hash)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote resolved schemas to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		// JSON format - use CLIResponse with first error
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Compilation errors are command-level errors (exit code 2)
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	var validationErr compiler.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Code, fmt.Sprintf("%s: %s", validationErr.Field, validationErr.Message)
	}
	return ErrCodeGeneric, err.Error()
}
