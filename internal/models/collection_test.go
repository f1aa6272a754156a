package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupField(t *testing.T) {
	spec, err := CollectionChildProfiles.LookupField(FieldParentID)
	require.NoError(t, err)
	assert.Equal(t, FieldIdentifier, spec.Kind)

	_, err = CollectionChildProfiles.LookupField(FieldUserID)
	assert.True(t, errors.Is(err, ErrUnknownField))
	assert.Contains(t, err.Error(), "child_profiles.userId")

	_, err = Collection("students").LookupField(FieldID)
	assert.True(t, errors.Is(err, ErrUnknownCollection))
}

func TestFilterValidateAndMatch(t *testing.T) {
	child := ChildProfile{ID: "C1", ParentID: "P1", FullName: "Ada"}

	require.NoError(t, MatchAll.Validate(CollectionChildProfiles))
	assert.True(t, MatchAll.Matches(child))

	f := Eq(FieldParentID, "P1")
	require.NoError(t, f.Validate(CollectionChildProfiles))
	assert.True(t, f.Matches(child))
	assert.False(t, Eq(FieldParentID, "p1").Matches(child))

	assert.ErrorIs(t, Eq("teacherId", "T1").Validate(CollectionChildProfiles), ErrUnknownField)

	user := User{ID: "U1", Email: " Parent@Example.eg", Role: RoleParent}
	assert.True(t, Eq(FieldEmail, "parent@example.eg").Matches(user))
	assert.True(t, Eq(FieldEmail, "PARENT@example.eg ").Matches(user))
	assert.False(t, Eq(FieldRole, "PARENT").Matches(user))
	assert.ErrorIs(t, MatchAll.Validate(Collection("nope")), ErrUnknownCollection)
}

func TestRecordFieldsCoverSchema(t *testing.T) {
	records := []Record{
		User{ID: "U1", Email: "a@b.c", Role: RoleParent},
		ParentProfile{ID: "P1", UserID: "U1"},
		TeacherProfile{ID: "T1", UserID: "U2"},
		ChildProfile{ID: "C1", ParentID: "P1"},
		Classroom{ID: "K1", TeacherID: "T1"},
	}
	for _, r := range records {
		for _, f := range r.Collection().Fields() {
			_, ok := r.Field(f.Name)
			assert.True(t, ok, "%s.%s", r.Collection(), f.Name)
		}
		_, ok := r.Field("password")
		assert.False(t, ok)
	}
}

func TestRoleProfileCollection(t *testing.T) {
	c, ok := RoleParent.ProfileCollection()
	assert.True(t, ok)
	assert.Equal(t, CollectionParentProfiles, c)

	c, ok = RoleTeacher.ProfileCollection()
	assert.True(t, ok)
	assert.Equal(t, CollectionTeacherProfiles, c)

	_, ok = RoleAdmin.ProfileCollection()
	assert.False(t, ok)
	assert.False(t, UserRole("student").Valid())
}
