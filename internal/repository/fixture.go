package repository

import (
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/noah-isme/linkage-api/internal/models"
)

// fixtureFile is an Extended JSON snapshot of the identity collections. Each
// entry uses the document layout of the legacy database, so ObjectIDs are
// written as {"$oid": "..."}.
type fixtureFile struct {
	Users           []bson.Raw `bson:"users"`
	ParentProfiles  []bson.Raw `bson:"parent_profiles"`
	TeacherProfiles []bson.Raw `bson:"teacher_profiles"`
	ChildProfiles   []bson.Raw `bson:"child_profiles"`
	Classrooms      []bson.Raw `bson:"classrooms"`
}

// LoadFixture builds an in-memory store from a fixture file.
func LoadFixture(path string) (*MemoryIdentityRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	repo := NewMemoryIdentityRepository()
	if err := repo.LoadExtJSON(data); err != nil {
		return nil, fmt.Errorf("load fixture %s: %w", path, err)
	}
	return repo, nil
}

// LoadExtJSON decodes an Extended JSON snapshot into the store.
func (r *MemoryIdentityRepository) LoadExtJSON(data []byte) error {
	var file fixtureFile
	if err := bson.UnmarshalExtJSON(data, false, &file); err != nil {
		return fmt.Errorf("decode fixture: %w", err)
	}
	sets := []struct {
		collection models.Collection
		docs       []bson.Raw
	}{
		{models.CollectionUsers, file.Users},
		{models.CollectionParentProfiles, file.ParentProfiles},
		{models.CollectionTeacherProfiles, file.TeacherProfiles},
		{models.CollectionChildProfiles, file.ChildProfiles},
		{models.CollectionClassrooms, file.Classrooms},
	}
	for _, set := range sets {
		for i, raw := range set.docs {
			rec, err := decodeDocument(set.collection, raw)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", set.collection, i, err)
			}
			if err := r.Put(rec); err != nil {
				return fmt.Errorf("%s[%d]: %w", set.collection, i, err)
			}
		}
	}
	return nil
}
