package models

import (
	"errors"
	"fmt"
	"strings"
)

// Collection names one of the identity tables.
type Collection string

const (
	CollectionUsers           Collection = "users"
	CollectionParentProfiles  Collection = "parent_profiles"
	CollectionTeacherProfiles Collection = "teacher_profiles"
	CollectionChildProfiles   Collection = "child_profiles"
	CollectionClassrooms      Collection = "classrooms"
)

// Declared field names.
const (
	FieldID        = "id"
	FieldEmail     = "email"
	FieldRole      = "role"
	FieldUserID    = "userId"
	FieldParentID  = "parentId"
	FieldTeacherID = "teacherId"
	FieldFullName  = "fullName"
	FieldName      = "name"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownField      = errors.New("field not declared for collection")
)

// FieldKind tells identifier fields apart from free text.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldIdentifier
	// FieldCaseless is text compared after FoldText on both sides.
	FieldCaseless
)

// FoldText returns the comparison form of a caseless value.
func FoldText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FieldSpec is one entry of a collection's field contract.
type FieldSpec struct {
	Name string
	Kind FieldKind
}

type collectionSpec struct {
	entity string
	fields []FieldSpec
}

var schema = map[Collection]collectionSpec{
	CollectionUsers: {entity: "User", fields: []FieldSpec{
		{FieldID, FieldIdentifier}, {FieldEmail, FieldCaseless}, {FieldRole, FieldText},
	}},
	CollectionParentProfiles: {entity: "ParentProfile", fields: []FieldSpec{
		{FieldID, FieldIdentifier}, {FieldUserID, FieldIdentifier}, {FieldFullName, FieldText},
	}},
	CollectionTeacherProfiles: {entity: "TeacherProfile", fields: []FieldSpec{
		{FieldID, FieldIdentifier}, {FieldUserID, FieldIdentifier}, {FieldFullName, FieldText},
	}},
	CollectionChildProfiles: {entity: "ChildProfile", fields: []FieldSpec{
		{FieldID, FieldIdentifier}, {FieldParentID, FieldIdentifier}, {FieldFullName, FieldText},
	}},
	CollectionClassrooms: {entity: "Classroom", fields: []FieldSpec{
		{FieldID, FieldIdentifier}, {FieldTeacherID, FieldIdentifier}, {FieldName, FieldText},
	}},
}

// Collections lists every collection in a fixed order.
func Collections() []Collection {
	return []Collection{
		CollectionUsers,
		CollectionParentProfiles,
		CollectionTeacherProfiles,
		CollectionChildProfiles,
		CollectionClassrooms,
	}
}

// Valid reports whether the collection is declared.
func (c Collection) Valid() bool {
	_, ok := schema[c]
	return ok
}

// EntityType returns the entity name stored in the collection, e.g. "ChildProfile".
func (c Collection) EntityType() string {
	if spec, ok := schema[c]; ok {
		return spec.entity
	}
	return string(c)
}

// Fields returns the declared field contract of the collection.
func (c Collection) Fields() []FieldSpec {
	spec := schema[c]
	out := make([]FieldSpec, len(spec.fields))
	copy(out, spec.fields)
	return out
}

// LookupField returns the declared spec for a field or an error naming the
// collection and field.
func (c Collection) LookupField(name string) (FieldSpec, error) {
	spec, ok := schema[c]
	if !ok {
		return FieldSpec{}, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	for _, f := range spec.fields {
		if f.Name == name {
			return f, nil
		}
	}
	return FieldSpec{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, c, name)
}

// Filter is a field-equality predicate. The zero value matches every record.
// Identifier values must be in canonical ID form.
type Filter struct {
	Field string
	Value string
}

// MatchAll selects the whole collection.
var MatchAll = Filter{}

// Eq builds an equality filter.
func Eq(field, value string) Filter {
	return Filter{Field: field, Value: value}
}

// IsMatchAll reports whether the filter selects everything.
func (f Filter) IsMatchAll() bool { return f.Field == "" }

// Validate checks the filter field against the collection's contract.
func (f Filter) Validate(c Collection) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	if f.IsMatchAll() {
		return nil
	}
	_, err := c.LookupField(f.Field)
	return err
}

// Matches evaluates the filter against a record. Caseless fields compare
// folded values; everything else uses exact equality.
func (f Filter) Matches(r Record) bool {
	if f.IsMatchAll() {
		return true
	}
	v, ok := r.Field(f.Field)
	if !ok {
		return false
	}
	if spec, err := r.Collection().LookupField(f.Field); err == nil && spec.Kind == FieldCaseless {
		return FoldText(v) == FoldText(f.Value)
	}
	return v == f.Value
}

func (f Filter) String() string {
	if f.IsMatchAll() {
		return "*"
	}
	return f.Field + "=" + f.Value
}
