package rel

import (
	"regexp"
	"slices"
)

// SelfReference is the target marker meaning "this entity". A relational
// field whose target is SelfReference points back at its own schema;
// ResolveSchemas rewrites it to the concrete entity name, so resolved
// schemas never carry the marker.
const SelfReference = "this"

// DefaultIDAttribute is the id attribute used when a declaration does
// not name one.
const DefaultIDAttribute = "id"

// FieldKind tags a field as a plain attribute or a relational field.
type FieldKind string

const (
	// KindAttribute is a plain value field.
	KindAttribute FieldKind = "attribute"

	// KindForeignKey stores the id of one referenced row of the target
	// entity (or Null).
	KindForeignKey FieldKind = "fk"

	// KindManyToMany relates many rows of this entity to many rows of
	// the target entity via a through entity. The owning record never
	// stores the relation itself; through-entity rows do.
	KindManyToMany FieldKind = "many"
)

// ValidFieldKinds defines the allowed field kind tags.
var ValidFieldKinds = map[FieldKind]bool{
	KindAttribute:  true,
	KindForeignKey: true,
	KindManyToMany: true,
}

// Field describes one field of an entity.
//
// To names the target entity for relational kinds and may be
// SelfReference in a declaration. Through optionally names an explicit
// through entity for many-to-many fields. FromField and ToField are
// filled by ResolveSchemas on many-to-many fields: they name the two
// foreign-key fields on the through entity (owner side, target side).
type Field struct {
	Kind      FieldKind `json:"kind"`
	To        string    `json:"to,omitempty"`
	Through   string    `json:"through,omitempty"`
	FromField string    `json:"from_field,omitempty"`
	ToField   string    `json:"to_field,omitempty"`
}

// Relational reports whether the field stores or implies an id
// reference to another entity.
func (f Field) Relational() bool {
	return f.Kind == KindForeignKey || f.Kind == KindManyToMany
}

// Declaration is the caller-supplied description of one entity, before
// resolution. A zero IDAttribute means DefaultIDAttribute.
type Declaration struct {
	IDAttribute string           `json:"id_attribute,omitempty"`
	Fields      map[string]Field `json:"fields,omitempty"`
}

// Schema is a resolved entity descriptor. Synthetic marks through
// entities produced by ResolveSchemas rather than declared by the
// caller. Schemas are immutable after resolution.
type Schema struct {
	Name        string           `json:"name"`
	IDAttribute string           `json:"id_attribute"`
	Fields      map[string]Field `json:"fields"`
	Synthetic   bool             `json:"synthetic,omitempty"`
}

// Field returns the named field descriptor.
func (s Schema) Field(name string) (Field, bool) {
	f, ok := s.Fields[name]
	return f, ok
}

// FieldNames returns the schema's field names in sorted order.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SchemaSet is the complete resolved schema map for one engine
// configuration: every declared entity plus every synthesized through
// entity, keyed by entity name.
type SchemaSet map[string]Schema

// Get returns the schema for an entity name.
func (ss SchemaSet) Get(name string) (Schema, bool) {
	s, ok := ss[name]
	return s, ok
}

// Names returns all entity names in sorted order. Iterating a SchemaSet
// through Names keeps multi-entity operations deterministic.
func (ss SchemaSet) Names() []string {
	names := make([]string, 0, len(ss))
	for name := range ss {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CanonicalObject returns the schema set as a canonical-JSON-ready
// Object. Field order inside the result is irrelevant; MarshalCanonical
// imposes RFC 8785 key ordering.
func (ss SchemaSet) CanonicalObject() Object {
	obj := make(Object, len(ss))
	for name, s := range ss {
		obj[name] = s.canonicalObject()
	}
	return obj
}

// CanonicalJSON returns the RFC 8785 canonical serialization of the
// schema set. Two resolutions of identical declarations produce
// byte-identical output.
func (ss SchemaSet) CanonicalJSON() ([]byte, error) {
	return MarshalCanonical(ss.CanonicalObject())
}

func (s Schema) canonicalObject() Object {
	fields := make(Object, len(s.Fields))
	for name, f := range s.Fields {
		fo := Object{"kind": String(f.Kind)}
		if f.To != "" {
			fo["to"] = String(f.To)
		}
		if f.Through != "" {
			fo["through"] = String(f.Through)
		}
		if f.FromField != "" {
			fo["from_field"] = String(f.FromField)
		}
		if f.ToField != "" {
			fo["to_field"] = String(f.ToField)
		}
		fields[name] = fo
	}
	return Object{
		"name":         String(s.Name),
		"id_attribute": String(s.IDAttribute),
		"fields":       fields,
		"synthetic":    Bool(s.Synthetic),
	}
}

// identifierPattern constrains entity, field, and id attribute names.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s is a legal entity, field, or id
// attribute name.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}
