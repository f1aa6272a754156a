package service

import (
	"fmt"

	"github.com/noah-isme/linkage-api/internal/models"
)

// Cardinality tells single-record hops from fan-out hops.
type Cardinality int

const (
	One Cardinality = iota
	Many
)

func (c Cardinality) String() string {
	if c == Many {
		return "many"
	}
	return "one"
}

// Hop is one join step of a Path.
type Hop struct {
	// Entity is the label used in results and errors. Defaults to the
	// collection's entity type.
	Entity     string
	Collection models.Collection
	// Field is matched in Collection.
	Field string
	// Source is the field of the previous hop's record that supplies the key.
	// Empty for the first hop.
	Source      string
	Cardinality Cardinality
	// ByRole picks the profile collection owned by the previous hop's User
	// instead of Collection.
	ByRole bool
}

func (h Hop) label() string {
	if h.Entity != "" {
		return h.Entity
	}
	if h.ByRole {
		return "Profile"
	}
	return h.Collection.EntityType()
}

func (h Hop) targets() []models.Collection {
	if h.ByRole {
		return []models.Collection{models.CollectionParentProfiles, models.CollectionTeacherProfiles}
	}
	return []models.Collection{h.Collection}
}

// Path is a named, ordered traversal through the identity graph.
type Path struct {
	Name string
	Hops []Hop
}

// Validate rejects paths that cannot be executed.
func (p Path) Validate() error {
	if len(p.Hops) == 0 {
		return fmt.Errorf("%w: no hops", ErrInvalidPath)
	}
	for i, h := range p.Hops {
		n := i + 1
		if h.ByRole {
			if i == 0 || p.Hops[i-1].ByRole || p.Hops[i-1].Collection != models.CollectionUsers {
				return fmt.Errorf("%w: hop %d: role dispatch must follow a users hop", ErrInvalidPath, n)
			}
		} else if !h.Collection.Valid() {
			return fmt.Errorf("%w: hop %d: %w: %q", ErrInvalidPath, n, models.ErrUnknownCollection, h.Collection)
		}
		for _, c := range h.targets() {
			if _, err := c.LookupField(h.Field); err != nil {
				return fmt.Errorf("%w: hop %d: %w", ErrInvalidPath, n, err)
			}
		}
		if i == 0 {
			if h.Source != "" {
				return fmt.Errorf("%w: hop 1 takes the lookup key, not a source field", ErrInvalidPath)
			}
		} else {
			if h.Source == "" {
				return fmt.Errorf("%w: hop %d: missing source field", ErrInvalidPath, n)
			}
			for _, c := range p.Hops[i-1].targets() {
				if _, err := c.LookupField(h.Source); err != nil {
					return fmt.Errorf("%w: hop %d: %w", ErrInvalidPath, n, err)
				}
			}
		}
		if h.Cardinality == Many && i != len(p.Hops)-1 {
			return fmt.Errorf("%w: hop %d: only the last hop may fan out", ErrInvalidPath, n)
		}
	}
	return nil
}

// Built-in path names.
const (
	PathUserChildren     = "user-children"
	PathUserClassrooms   = "user-classrooms"
	PathUserProfile      = "user-profile"
	PathChildGuardian    = "child-guardian"
	PathClassroomTeacher = "classroom-teacher"
)

var (
	userByEmail = Hop{Entity: "User", Collection: models.CollectionUsers, Field: models.FieldEmail}

	// UserChildrenPath walks User(email) to ParentProfile to its children.
	UserChildrenPath = Path{Name: PathUserChildren, Hops: []Hop{
		userByEmail,
		{Entity: "Profile", Collection: models.CollectionParentProfiles, Field: models.FieldUserID, Source: models.FieldID},
		{Entity: "Children", Collection: models.CollectionChildProfiles, Field: models.FieldParentID, Source: models.FieldID, Cardinality: Many},
	}}

	// UserClassroomsPath walks User(email) to TeacherProfile to its classrooms.
	UserClassroomsPath = Path{Name: PathUserClassrooms, Hops: []Hop{
		userByEmail,
		{Entity: "Profile", Collection: models.CollectionTeacherProfiles, Field: models.FieldUserID, Source: models.FieldID},
		{Entity: "Classrooms", Collection: models.CollectionClassrooms, Field: models.FieldTeacherID, Source: models.FieldID, Cardinality: Many},
	}}

	// UserProfilePath resolves the profile matching the user's role.
	UserProfilePath = Path{Name: PathUserProfile, Hops: []Hop{
		userByEmail,
		{Entity: "Profile", Field: models.FieldUserID, Source: models.FieldID, ByRole: true},
	}}

	ChildGuardianPath = Path{Name: PathChildGuardian, Hops: []Hop{
		{Entity: "Child", Collection: models.CollectionChildProfiles, Field: models.FieldID},
		{Entity: "Profile", Collection: models.CollectionParentProfiles, Field: models.FieldID, Source: models.FieldParentID},
		{Entity: "User", Collection: models.CollectionUsers, Field: models.FieldID, Source: models.FieldUserID},
	}}

	ClassroomTeacherPath = Path{Name: PathClassroomTeacher, Hops: []Hop{
		{Entity: "Classroom", Collection: models.CollectionClassrooms, Field: models.FieldID},
		{Entity: "Profile", Collection: models.CollectionTeacherProfiles, Field: models.FieldID, Source: models.FieldTeacherID},
		{Entity: "User", Collection: models.CollectionUsers, Field: models.FieldID, Source: models.FieldUserID},
	}}
)

// BuiltinPaths returns the named paths served by the resolver.
func BuiltinPaths() map[string]Path {
	return map[string]Path{
		PathUserChildren:     UserChildrenPath,
		PathUserClassrooms:   UserClassroomsPath,
		PathUserProfile:      UserProfilePath,
		PathChildGuardian:    ChildGuardianPath,
		PathClassroomTeacher: ClassroomTeacherPath,
	}
}
