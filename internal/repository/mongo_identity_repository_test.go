package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/noah-isme/linkage-api/internal/models"
)

func TestMongoIdentityRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	oid, err := primitive.ObjectIDFromHex("65a1f0c2b3d4e5f60718293a")
	require.NoError(t, err)

	mt.Run("get decodes object ids", func(mt *mtest.T) {
		repo := NewMongoIdentityRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "email", Value: "teacher@example.eg"},
			{Key: "role", Value: "teacher"},
		}))

		canonical, err := models.ObjectID(oid.Hex())
		require.NoError(mt, err)
		rec, err := repo.Get(context.Background(), models.CollectionUsers, canonical)
		require.NoError(mt, err)
		assert.Equal(mt, models.User{ID: canonical, Email: "teacher@example.eg", Role: models.RoleTeacher}, rec)
	})

	mt.Run("get not found", func(mt *mtest.T) {
		repo := NewMongoIdentityRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch))

		_, err := repo.Get(context.Background(), models.CollectionUsers, "U404")
		assert.ErrorIs(mt, err, ErrRecordNotFound)
	})

	mt.Run("find keeps string and object ids apart", func(mt *mtest.T) {
		repo := NewMongoIdentityRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.childprofiles", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "C1"}, {Key: "parentId", Value: "P1"}, {Key: "fullName", Value: "Amal"}},
			bson.D{{Key: "_id", Value: "C2"}, {Key: "parentId", Value: oid}, {Key: "fullName", Value: "Zayd"}},
		))

		got := collect(mt.T, repo, models.CollectionChildProfiles, models.MatchAll)
		require.Len(mt, got, 2)
		assert.Equal(mt, models.ID("P1"), got[0].(models.ChildProfile).ParentID)
		assert.Equal(mt, models.ID(`ObjectId("65a1f0c2b3d4e5f60718293a")`), got[1].(models.ChildProfile).ParentID)
	})

	mt.Run("upper-case uuid string ids are queried as stored", func(mt *mtest.T) {
		const parent = "0F8FAD5B-D9CB-469F-A165-70867728950E"
		repo := NewMongoIdentityRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.childprofiles", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "C1"}, {Key: "parentId", Value: parent}, {Key: "fullName", Value: "Amal"}},
			),
			mtest.CreateCursorResponse(0, "test.parentprofiles", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: parent}, {Key: "userId", Value: "U1"}, {Key: "fullName", Value: "Hana"}},
			),
		)

		got := collect(mt.T, repo, models.CollectionChildProfiles, models.MatchAll)
		require.Len(mt, got, 1)
		parentID := got[0].(models.ChildProfile).ParentID
		assert.Equal(mt, models.ID(parent), parentID)

		mt.ClearEvents()
		rec, err := repo.Get(context.Background(), models.CollectionParentProfiles, parentID)
		require.NoError(mt, err)
		assert.Equal(mt, parentID, rec.Key())

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, parent, started.Command.Lookup("filter", "_id").StringValue())
	})

	mt.Run("find surfaces server errors", func(mt *mtest.T) {
		repo := NewMongoIdentityRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad value",
		}))

		var got error
		for _, err := range repo.FindBy(context.Background(), models.CollectionClassrooms, models.Eq(models.FieldTeacherID, "T1")) {
			got = err
		}
		assert.Error(mt, got)
	})
}

func TestMongoFilterEncodesExactType(t *testing.T) {
	filter, err := mongoFilter(models.CollectionChildProfiles, models.Eq(models.FieldParentID, `ObjectId("65a1f0c2b3d4e5f60718293a")`))
	require.NoError(t, err)
	require.Len(t, filter, 1)
	assert.Equal(t, "parentId", filter[0].Key)
	assert.IsType(t, primitive.ObjectID{}, filter[0].Value)

	filter, err = mongoFilter(models.CollectionChildProfiles, models.Eq(models.FieldID, "C1"))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "_id", Value: "C1"}}, filter)

	filter, err = mongoFilter(models.CollectionUsers, models.Eq(models.FieldEmail, " Parent+1@Example.eg"))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "email", Value: primitive.Regex{Pattern: `^\s*parent\+1@example\.eg\s*$`, Options: "i"}}}, filter)

	_, err = mongoFilter(models.CollectionChildProfiles, models.Eq("teacherId", "T1"))
	assert.ErrorIs(t, err, models.ErrUnknownField)
}
