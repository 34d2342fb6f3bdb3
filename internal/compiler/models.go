package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/relfold/relfold/rel"
)

// CompileModels parses a CUE value into entity declarations ready for
// rel.ResolveSchemas. Uses CUE SDK's Go API directly (not CLI
// subprocess).
//
// The CUE value should carry a top-level models struct, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`models: Author: fields: name: kind: "attribute"`)
//	declared, err := CompileModels(v)
//
// Compilation is shape-only: it rejects what a declaration cannot
// represent (missing or unknown kinds, non-string names). Structural
// rules — target existence, through wiring, id attribute kinds — are
// collected by Validate and enforced by rel.ResolveSchemas.
func CompileModels(v cue.Value) (map[string]rel.Declaration, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modelsVal := v.LookupPath(cue.ParsePath("models"))
	if !modelsVal.Exists() {
		return nil, &CompileError{
			Field:   "models",
			Message: "models block is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	declared := make(map[string]rel.Declaration)
	for iter.Next() {
		name := iter.Label()
		decl, err := compileModel(name, iter.Value())
		if err != nil {
			return nil, err
		}
		declared[name] = decl
	}

	if len(declared) == 0 {
		return nil, &CompileError{
			Field:   "models",
			Message: "at least one model is required",
			Pos:     modelsVal.Pos(),
		}
	}

	return declared, nil
}

// compileModel parses one entity declaration.
func compileModel(name string, v cue.Value) (rel.Declaration, error) {
	var decl rel.Declaration

	idVal := v.LookupPath(cue.ParsePath("idAttribute"))
	if idVal.Exists() {
		id, err := idVal.String()
		if err != nil {
			return decl, formatCUEError(err)
		}
		decl.IDAttribute = id
	}

	// fields is optional: an id-only entity is legal and resolution
	// fills in the default id attribute.
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return decl, nil
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return decl, formatCUEError(err)
	}

	decl.Fields = make(map[string]rel.Field)
	for iter.Next() {
		fname := iter.Label()
		f, err := compileField(name, fname, iter.Value())
		if err != nil {
			return rel.Declaration{}, err
		}
		decl.Fields[fname] = f
	}

	return decl, nil
}

// compileField parses one field descriptor.
func compileField(model, fname string, v cue.Value) (rel.Field, error) {
	var f rel.Field

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return f, &CompileError{
			Field:   fmt.Sprintf("models.%s.fields.%s", model, fname),
			Message: "field kind is required",
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return f, formatCUEError(err)
	}
	if !rel.ValidFieldKinds[rel.FieldKind(kind)] {
		return f, &CompileError{
			Field:   fmt.Sprintf("models.%s.fields.%s.kind", model, fname),
			Message: fmt.Sprintf("unknown field kind %q (want attribute, fk, or many)", kind),
			Pos:     kindVal.Pos(),
		}
	}
	f.Kind = rel.FieldKind(kind)

	if toVal := v.LookupPath(cue.ParsePath("to")); toVal.Exists() {
		to, err := toVal.String()
		if err != nil {
			return rel.Field{}, formatCUEError(err)
		}
		f.To = to
	}

	if throughVal := v.LookupPath(cue.ParsePath("through")); throughVal.Exists() {
		through, err := throughVal.String()
		if err != nil {
			return rel.Field{}, formatCUEError(err)
		}
		f.Through = through
	}

	return f, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
