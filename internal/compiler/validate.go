package compiler

import (
	"fmt"
	"sort"

	"github.com/relfold/relfold/rel"
)

// Validation error codes (E100-E199)
const (
	// Declaration-set errors (E100-E101)
	ErrNoModels     = "E100" // at least one model required
	ErrReservedName = "E101" // entity name is the self-reference marker

	// Naming errors (E102-E104)
	ErrInvalidEntityName = "E102" // entity name not a valid identifier
	ErrInvalidFieldName  = "E103" // field name not a valid identifier
	ErrInvalidIDName     = "E104" // id attribute not a valid identifier

	// Field shape errors (E105-E112)
	ErrUnknownFieldKind    = "E105" // kind outside attribute|fk|many
	ErrRelationalID        = "E106" // id attribute declared relational
	ErrAttributeWithTarget = "E107" // attribute field declares to/through
	ErrForeignKeyThrough   = "E108" // fk field declares a through entity
	ErrMissingTarget       = "E109" // relational field without a target
	ErrUnknownTarget       = "E110" // target entity not declared
	ErrUnknownThrough      = "E111" // through entity not declared
	ErrResolutionOutput    = "E112" // from_field/to_field set by hand

	// Resolution errors (E113) — reported by rel.ResolveSchemas, which
	// needs the full declaration set to detect them (synthesized-name
	// collisions, ill-formed explicit through entities)
	ErrResolveConflict = "E113"
)

// ValidationError represents a declaration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks entity declarations against schema rules.
// Returns all errors found (does not fail-fast), in sorted entity and
// field order so output is deterministic.
//
// The rules match what rel.ResolveSchemas enforces fail-fast on its
// inputs; resolution additionally rejects synthesized-name collisions
// and ill-formed explicit through entities, which need the full set to
// detect. A declaration set that passes both Validate and
// rel.ResolveSchemas is fully usable.
func Validate(declared map[string]rel.Declaration) []ValidationError {
	if len(declared) == 0 {
		return []ValidationError{{
			Field:   "models",
			Message: "at least one model is required",
			Code:    ErrNoModels,
		}}
	}

	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []ValidationError
	for _, name := range names {
		errs = append(errs, validateModel(name, declared[name], declared)...)
	}
	return errs
}

// validateModel checks one entity declaration.
func validateModel(name string, decl rel.Declaration, declared map[string]rel.Declaration) []ValidationError {
	var errs []ValidationError

	// E101: the self-reference marker cannot name an entity
	if name == rel.SelfReference {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("models.%s", name),
			Message: fmt.Sprintf("entity name %q is reserved for self references", rel.SelfReference),
			Code:    ErrReservedName,
		})
	} else if !rel.ValidIdentifier(name) {
		// E102: entity names are identifiers
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("models.%s", name),
			Message: "entity name must be a valid identifier",
			Code:    ErrInvalidEntityName,
		})
	}

	idAttr := decl.IDAttribute
	if idAttr == "" {
		idAttr = rel.DefaultIDAttribute
	}
	// E104: id attribute names are identifiers
	if !rel.ValidIdentifier(idAttr) {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("models.%s.idAttribute", name),
			Message: fmt.Sprintf("id attribute %q must be a valid identifier", idAttr),
			Code:    ErrInvalidIDName,
		})
	}

	fnames := make([]string, 0, len(decl.Fields))
	for fname := range decl.Fields {
		fnames = append(fnames, fname)
	}
	sort.Strings(fnames)

	for _, fname := range fnames {
		errs = append(errs, validateField(name, fname, decl.Fields[fname], idAttr, declared)...)
	}
	return errs
}

// validateField checks one field descriptor.
func validateField(model, fname string, f rel.Field, idAttr string, declared map[string]rel.Declaration) []ValidationError {
	var errs []ValidationError
	path := fmt.Sprintf("models.%s.fields.%s", model, fname)

	// E103: field names are identifiers
	if !rel.ValidIdentifier(fname) {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: "field name must be a valid identifier",
			Code:    ErrInvalidFieldName,
		})
	}

	// E105: kind must be one of the known tags. The kind-dependent
	// rules below assume a known kind, so stop here when it is not.
	if !rel.ValidFieldKinds[f.Kind] {
		errs = append(errs, ValidationError{
			Field:   path + ".kind",
			Message: fmt.Sprintf("unknown field kind %q (want attribute, fk, or many)", f.Kind),
			Code:    ErrUnknownFieldKind,
		})
		return errs
	}

	// E106: the id attribute stores ids, not references
	if fname == idAttr && f.Kind != rel.KindAttribute {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: "id attribute cannot be a relational field",
			Code:    ErrRelationalID,
		})
	}

	switch f.Kind {
	case rel.KindAttribute:
		// E107: plain values carry no relation
		if f.To != "" || f.Through != "" {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: "attribute field cannot declare a target",
				Code:    ErrAttributeWithTarget,
			})
		}
	case rel.KindForeignKey:
		// E108: through entities only make sense for many-to-many
		if f.Through != "" {
			errs = append(errs, ValidationError{
				Field:   path + ".through",
				Message: "foreign key cannot declare a through entity",
				Code:    ErrForeignKeyThrough,
			})
		}
		errs = append(errs, validateTargetRef(path, f.To, declared)...)
	case rel.KindManyToMany:
		errs = append(errs, validateTargetRef(path, f.To, declared)...)
		// E111: an explicit through entity must be declared
		if f.Through != "" {
			if _, ok := declared[f.Through]; !ok {
				errs = append(errs, ValidationError{
					Field:   path + ".through",
					Message: fmt.Sprintf("through entity %q is not declared", f.Through),
					Code:    ErrUnknownThrough,
				})
			}
		}
	}

	// E112: resolution fills these; hand-set values would be silently
	// overwritten or contradicted
	if f.FromField != "" || f.ToField != "" {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: "from_field and to_field are resolution outputs, not declaration inputs",
			Code:    ErrResolutionOutput,
		})
	}

	return errs
}

// validateTargetRef checks the target reference of a relational field.
func validateTargetRef(path, target string, declared map[string]rel.Declaration) []ValidationError {
	// E109: relational fields point somewhere
	if target == "" {
		return []ValidationError{{
			Field:   path + ".to",
			Message: "relational field requires a target entity",
			Code:    ErrMissingTarget,
		}}
	}
	if target == rel.SelfReference {
		return nil
	}
	// E110: the target must be declared
	if _, ok := declared[target]; !ok {
		return []ValidationError{{
			Field:   path + ".to",
			Message: fmt.Sprintf("unknown target entity %q", target),
			Code:    ErrUnknownTarget,
		}}
	}
	return nil
}
