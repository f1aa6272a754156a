package models

// Record is a typed entity snapshot read from the identity store.
type Record interface {
	Collection() Collection
	Key() ID
	// Field returns the value of a declared field. Identifier fields are
	// returned in canonical ID form.
	Field(name string) (string, bool)
}

// UserRole is the immutable role assigned at registration.
type UserRole string

const (
	RoleParent  UserRole = "parent"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleParent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// ProfileCollection returns the profile collection owned by users of the role.
// Admins own no profile.
func (r UserRole) ProfileCollection() (Collection, bool) {
	switch r {
	case RoleParent:
		return CollectionParentProfiles, true
	case RoleTeacher:
		return CollectionTeacherProfiles, true
	}
	return "", false
}

// User is the root identity.
type User struct {
	ID    ID       `db:"id" json:"id"`
	Email string   `db:"email" json:"email"`
	Role  UserRole `db:"role" json:"role"`
}

func (u User) Collection() Collection { return CollectionUsers }
func (u User) Key() ID                { return u.ID }

func (u User) Field(name string) (string, bool) {
	switch name {
	case FieldID:
		return string(u.ID), true
	case FieldEmail:
		return u.Email, true
	case FieldRole:
		return string(u.Role), true
	}
	return "", false
}

// ParentProfile is owned by exactly one parent User.
type ParentProfile struct {
	ID       ID     `db:"id" json:"id"`
	UserID   ID     `db:"user_id" json:"userId"`
	FullName string `db:"full_name" json:"fullName"`
}

func (p ParentProfile) Collection() Collection { return CollectionParentProfiles }
func (p ParentProfile) Key() ID                { return p.ID }

func (p ParentProfile) Field(name string) (string, bool) {
	switch name {
	case FieldID:
		return string(p.ID), true
	case FieldUserID:
		return string(p.UserID), true
	case FieldFullName:
		return p.FullName, true
	}
	return "", false
}

// TeacherProfile is owned by exactly one teacher User.
type TeacherProfile struct {
	ID       ID     `db:"id" json:"id"`
	UserID   ID     `db:"user_id" json:"userId"`
	FullName string `db:"full_name" json:"fullName"`
}

func (p TeacherProfile) Collection() Collection { return CollectionTeacherProfiles }
func (p TeacherProfile) Key() ID                { return p.ID }

func (p TeacherProfile) Field(name string) (string, bool) {
	switch name {
	case FieldID:
		return string(p.ID), true
	case FieldUserID:
		return string(p.UserID), true
	case FieldFullName:
		return p.FullName, true
	}
	return "", false
}

// ChildProfile is owned by a ParentProfile.
type ChildProfile struct {
	ID       ID     `db:"id" json:"id"`
	ParentID ID     `db:"parent_id" json:"parentId"`
	FullName string `db:"full_name" json:"fullName"`
}

func (c ChildProfile) Collection() Collection { return CollectionChildProfiles }
func (c ChildProfile) Key() ID                { return c.ID }

func (c ChildProfile) Field(name string) (string, bool) {
	switch name {
	case FieldID:
		return string(c.ID), true
	case FieldParentID:
		return string(c.ParentID), true
	case FieldFullName:
		return c.FullName, true
	}
	return "", false
}

// Classroom is owned by a TeacherProfile.
type Classroom struct {
	ID        ID     `db:"id" json:"id"`
	TeacherID ID     `db:"teacher_id" json:"teacherId"`
	Name      string `db:"name" json:"name"`
}

func (c Classroom) Collection() Collection { return CollectionClassrooms }
func (c Classroom) Key() ID                { return c.ID }

func (c Classroom) Field(name string) (string, bool) {
	switch name {
	case FieldID:
		return string(c.ID), true
	case FieldTeacherID:
		return string(c.TeacherID), true
	case FieldName:
		return c.Name, true
	}
	return "", false
}
