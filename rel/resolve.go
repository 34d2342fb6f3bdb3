package rel

import (
	"fmt"
	"slices"
	"unicode"
	"unicode/utf8"
)

// ResolveSchemas turns caller declarations into the complete SchemaSet,
// synthesizing one through entity per many-to-many field that does not
// name an explicit through entity.
//
// Synthesis rules for a many-to-many field F on entity A targeting B:
//   - through entity name: A.Name + UpperFirst(F), e.g. Author.books -> AuthorBooks
//   - owner-side foreign key: "from" + A.Name + "Id"
//   - target-side foreign key: "to" + B.Name + "Id"
//
// A self-referencing field (target SelfReference) resolves both sides to
// A; the from/to prefixes keep the two field names distinct. Resolution
// is deterministic and free of hidden state: resolving the same
// declarations twice yields structurally identical sets (equal canonical
// hashes), so repeated resolution in one process is safe.
//
// Returns SchemaError when a relational target or explicit through
// entity is not declared, a synthesized through entity name collides
// with an existing schema, an id attribute is declared relational, or a
// name is not a valid identifier.
func ResolveSchemas(declared map[string]Declaration) (SchemaSet, error) {
	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := validateDeclaration(name, declared[name], declared); err != nil {
			return nil, err
		}
	}

	resolved := make(SchemaSet, 2*len(declared))
	for _, name := range names {
		decl := declared[name]
		idAttr := decl.IDAttribute
		if idAttr == "" {
			idAttr = DefaultIDAttribute
		}
		fields := make(map[string]Field, len(decl.Fields))
		for fname, f := range decl.Fields {
			// Resolved schemas carry concrete targets; the marker
			// survives only in declarations.
			if f.Relational() && f.To == SelfReference {
				f.To = name
			}
			fields[fname] = f
		}
		resolved[name] = Schema{Name: name, IDAttribute: idAttr, Fields: fields}
	}

	// Synthesize through entities in deterministic order.
	for _, name := range names {
		owner := resolved[name]
		for _, fname := range owner.FieldNames() {
			f := owner.Fields[fname]
			if f.Kind != KindManyToMany {
				continue
			}
			if f.Through != "" {
				wired, err := wireExplicitThrough(owner, fname, f, resolved)
				if err != nil {
					return nil, err
				}
				owner.Fields[fname] = wired
				continue
			}

			throughName := name + upperFirst(fname)
			if _, exists := resolved[throughName]; exists {
				return nil, &SchemaError{
					Entity:  name,
					Field:   fname,
					Message: fmt.Sprintf("synthesized through entity %q collides with an existing schema", throughName),
				}
			}

			fromField := "from" + name + "Id"
			toField := "to" + f.To + "Id"
			resolved[throughName] = Schema{
				Name:        throughName,
				IDAttribute: DefaultIDAttribute,
				Fields: map[string]Field{
					fromField: {Kind: KindForeignKey, To: name},
					toField:   {Kind: KindForeignKey, To: f.To},
				},
				Synthetic: true,
			}

			f.Through = throughName
			f.FromField = fromField
			f.ToField = toField
			owner.Fields[fname] = f
		}
	}

	return resolved, nil
}

// wireExplicitThrough locates the two foreign-key fields of an explicit
// through entity: exactly one targeting the owner and exactly one
// targeting the field's target. A self-referencing field with an
// explicit through entity is rejected as ambiguous (two foreign keys to
// the same entity cannot be told apart); use synthesis for those.
func wireExplicitThrough(owner Schema, fname string, f Field, resolved SchemaSet) (Field, error) {
	through := resolved[f.Through]
	if f.To == owner.Name {
		return Field{}, &SchemaError{
			Entity:  owner.Name,
			Field:   fname,
			Message: fmt.Sprintf("explicit through entity %q is ambiguous for a self-referencing field", f.Through),
		}
	}

	var fromFields, toFields []string
	for _, tfname := range through.FieldNames() {
		tf := through.Fields[tfname]
		if tf.Kind != KindForeignKey {
			continue
		}
		switch tf.To {
		case owner.Name:
			fromFields = append(fromFields, tfname)
		case f.To:
			toFields = append(toFields, tfname)
		}
	}
	if len(fromFields) != 1 || len(toFields) != 1 {
		return Field{}, &SchemaError{
			Entity:  owner.Name,
			Field:   fname,
			Message: fmt.Sprintf("through entity %q must declare exactly one foreign key to %q and one to %q", f.Through, owner.Name, f.To),
		}
	}

	f.FromField = fromFields[0]
	f.ToField = toFields[0]
	return f, nil
}

func validateDeclaration(name string, decl Declaration, declared map[string]Declaration) error {
	if name == SelfReference {
		return &SchemaError{Entity: name, Message: fmt.Sprintf("entity name %q is reserved", SelfReference)}
	}
	if !ValidIdentifier(name) {
		return &SchemaError{Entity: name, Message: "entity name must be a valid identifier"}
	}

	idAttr := decl.IDAttribute
	if idAttr == "" {
		idAttr = DefaultIDAttribute
	}
	if !ValidIdentifier(idAttr) {
		return &SchemaError{Entity: name, Message: fmt.Sprintf("id attribute %q must be a valid identifier", idAttr)}
	}

	fnames := make([]string, 0, len(decl.Fields))
	for fname := range decl.Fields {
		fnames = append(fnames, fname)
	}
	slices.Sort(fnames)

	for _, fname := range fnames {
		f := decl.Fields[fname]
		if !ValidIdentifier(fname) {
			return &SchemaError{Entity: name, Field: fname, Message: "field name must be a valid identifier"}
		}
		if !ValidFieldKinds[f.Kind] {
			return &SchemaError{Entity: name, Field: fname, Message: fmt.Sprintf("unknown field kind %q", f.Kind)}
		}
		if fname == idAttr && f.Kind != KindAttribute {
			return &SchemaError{Entity: name, Field: fname, Message: "id attribute cannot be a relational field"}
		}

		switch f.Kind {
		case KindAttribute:
			if f.To != "" || f.Through != "" {
				return &SchemaError{Entity: name, Field: fname, Message: "attribute field cannot declare a target"}
			}
		case KindForeignKey:
			if f.Through != "" {
				return &SchemaError{Entity: name, Field: fname, Message: "foreign key cannot declare a through entity"}
			}
			if err := validateTarget(name, fname, f.To, declared); err != nil {
				return err
			}
		case KindManyToMany:
			if err := validateTarget(name, fname, f.To, declared); err != nil {
				return err
			}
			if f.Through != "" {
				if _, ok := declared[f.Through]; !ok {
					return &SchemaError{Entity: name, Field: fname, Message: fmt.Sprintf("through entity %q is not declared", f.Through)}
				}
			}
		}
		if f.FromField != "" || f.ToField != "" {
			return &SchemaError{Entity: name, Field: fname, Message: "from_field and to_field are resolution outputs, not declaration inputs"}
		}
	}
	return nil
}

func validateTarget(entity, field, target string, declared map[string]Declaration) error {
	if target == "" {
		return &SchemaError{Entity: entity, Field: field, Message: "relational field requires a target entity"}
	}
	if target == SelfReference {
		return nil
	}
	if _, ok := declared[target]; !ok {
		return &SchemaError{Entity: entity, Field: field, Message: fmt.Sprintf("unknown target entity %q", target)}
	}
	return nil
}

// upperFirst capitalizes the first rune of s.
func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
