package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/relfold/relfold/internal/compiler"
	"github.com/relfold/relfold/rel"
)

// LoadMode controls how errors are handled during model loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading model files.
type LoadResult struct {
	Declared  map[string]rel.Declaration // merged entity declarations
	Files     []string                   // CUE files loaded, in order
	FileCount int                        // number of CUE files found
}

// LoadError represents an error that occurred during model loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadModels loads entity declarations from CUE model files.
// Each path may be a .cue file or a directory, which is walked for
// .cue files. Declarations from all files merge into one set; the same
// entity declared in two files is an error.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadModels(paths []string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	cueFiles, resolveErrs := resolveModelPaths(paths)
	if len(resolveErrs) > 0 {
		return nil, resolveErrs
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", strings.Join(paths, ", "))}}
	}

	result := &LoadResult{
		Declared:  make(map[string]rel.Declaration),
		Files:     cueFiles,
		FileCount: len(cueFiles),
	}

	// declaredIn remembers which file declared each entity, for
	// duplicate diagnostics.
	declaredIn := make(map[string]string)

	ctx := cuecontext.New()
	for _, file := range cueFiles {
		data, err := os.ReadFile(file)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", file, err)})
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}

		value := ctx.CompileString(string(data), cue.Filename(file))
		if err := value.Err(); err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)})
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}

		declared, err := compiler.CompileModels(value)
		if err != nil {
			errs = append(errs, convertCompileError(err, file))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}

		for name, decl := range declared {
			if prev, ok := declaredIn[name]; ok {
				errs = append(errs, &LoadError{
					Code:    ErrCodeDuplicate,
					Message: fmt.Sprintf("model %q declared in both %s and %s", name, prev, file),
				})
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			declaredIn[name] = file
			result.Declared[name] = decl
		}
	}

	if len(result.Declared) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no models found"})
	}

	return result, errs
}

// resolveModelPaths expands the argument list into concrete .cue file
// paths. Directories are walked; files must carry the .cue extension.
func resolveModelPaths(paths []string) ([]string, []error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model path not found: %s", path)}}
		}
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing model path: %v", err)}}
		}

		if info.IsDir() {
			found, err := FindCUEFiles(path)
			if err != nil {
				return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
			}
			files = append(files, found...)
			continue
		}

		if filepath.Ext(path) != ".cue" {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("not a CUE file: %s", path)}}
		}
		files = append(files, path)
	}
	return files, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Path scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE file read failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeDuplicate   = "E008" // Model declared in multiple files
)

// MapFieldToErrorCode maps a compiler error field to a validation
// error code. Compiler fields are declaration paths like
// "models.Author.fields.books.kind".
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "models":
		return compiler.ErrNoModels
	case strings.HasSuffix(field, ".kind"):
		return compiler.ErrUnknownFieldKind
	default:
		return ErrCodeGeneric
	}
}
