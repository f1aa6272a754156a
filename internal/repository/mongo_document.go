package repository

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/linkage-api/internal/models"
)

// Legacy document collection names.
var mongoCollections = map[models.Collection]string{
	models.CollectionUsers:           "users",
	models.CollectionParentProfiles:  "parentprofiles",
	models.CollectionTeacherProfiles: "teacherprofiles",
	models.CollectionChildProfiles:   "childprofiles",
	models.CollectionClassrooms:      "classrooms",
}

type userDocument struct {
	ID    bson.RawValue `bson:"_id"`
	Email string        `bson:"email"`
	Role  string        `bson:"role"`
}

type profileDocument struct {
	ID       bson.RawValue `bson:"_id"`
	UserID   bson.RawValue `bson:"userId"`
	FullName string        `bson:"fullName"`
}

type childDocument struct {
	ID       bson.RawValue `bson:"_id"`
	ParentID bson.RawValue `bson:"parentId"`
	FullName string        `bson:"fullName"`
}

type classroomDocument struct {
	ID        bson.RawValue `bson:"_id"`
	TeacherID bson.RawValue `bson:"teacherId"`
	Name      string        `bson:"name"`
}

func mongoField(field string) string {
	if field == models.FieldID {
		return "_id"
	}
	return field
}

// decodeID maps a stored identifier onto its canonical form. Strings are kept
// verbatim and ObjectIDs stay distinguishable from them.
func decodeID(v bson.RawValue) (models.ID, error) {
	switch v.Type {
	case bsontype.String:
		return models.StringID(v.StringValue()), nil
	case bsontype.ObjectID:
		return models.ObjectID(v.ObjectID().Hex())
	case bsontype.Type(0), bsontype.Null, bsontype.Undefined:
		return "", nil
	}
	return "", fmt.Errorf("unsupported identifier type %s", v.Type)
}

// encodeID renders a canonical identifier back into the BSON type it was read from.
func encodeID(id models.ID) (interface{}, error) {
	if id.IsObjectID() {
		oid, err := primitive.ObjectIDFromHex(id.Hex())
		if err != nil {
			return nil, fmt.Errorf("encode object id: %w", err)
		}
		return oid, nil
	}
	return string(id), nil
}

func mongoFilter(c models.Collection, f models.Filter) (bson.D, error) {
	if err := f.Validate(c); err != nil {
		return nil, err
	}
	if f.IsMatchAll() {
		return bson.D{}, nil
	}
	spec, err := c.LookupField(f.Field)
	if err != nil {
		return nil, err
	}
	switch spec.Kind {
	case models.FieldCaseless:
		return bson.D{{Key: mongoField(f.Field), Value: caselessPattern(f.Value)}}, nil
	case models.FieldText:
		return bson.D{{Key: mongoField(f.Field), Value: f.Value}}, nil
	}
	value, err := encodeID(models.ID(f.Value))
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: mongoField(f.Field), Value: value}}, nil
}

// caselessPattern matches a stored value whose folded form equals FoldText(v).
func caselessPattern(v string) primitive.Regex {
	return primitive.Regex{
		Pattern: `^\s*` + regexp.QuoteMeta(models.FoldText(v)) + `\s*$`,
		Options: "i",
	}
}

func decodeDocument(c models.Collection, raw bson.Raw) (models.Record, error) {
	switch c {
	case models.CollectionUsers:
		var doc userDocument
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		id, err := decodeID(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("_id: %w", err)
		}
		return models.User{ID: id, Email: doc.Email, Role: models.UserRole(doc.Role)}, nil
	case models.CollectionParentProfiles, models.CollectionTeacherProfiles:
		var doc profileDocument
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		id, err := decodeID(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("_id: %w", err)
		}
		userID, err := decodeID(doc.UserID)
		if err != nil {
			return nil, fmt.Errorf("userId: %w", err)
		}
		if c == models.CollectionParentProfiles {
			return models.ParentProfile{ID: id, UserID: userID, FullName: doc.FullName}, nil
		}
		return models.TeacherProfile{ID: id, UserID: userID, FullName: doc.FullName}, nil
	case models.CollectionChildProfiles:
		var doc childDocument
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		id, err := decodeID(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("_id: %w", err)
		}
		parentID, err := decodeID(doc.ParentID)
		if err != nil {
			return nil, fmt.Errorf("parentId: %w", err)
		}
		return models.ChildProfile{ID: id, ParentID: parentID, FullName: doc.FullName}, nil
	case models.CollectionClassrooms:
		var doc classroomDocument
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		id, err := decodeID(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("_id: %w", err)
		}
		teacherID, err := decodeID(doc.TeacherID)
		if err != nil {
			return nil, fmt.Errorf("teacherId: %w", err)
		}
		return models.Classroom{ID: id, TeacherID: teacherID, Name: doc.Name}, nil
	}
	return nil, fmt.Errorf("%w: %q", models.ErrUnknownCollection, c)
}
