package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/dmitrijs2005/secretvault/internal/common"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	mt.Run("insert returns generated id", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		id, err := s.Insert(context.Background(), "users/u1/gallery", Fields{"name": "a.png"})
		require.NoError(mt, err)
		_, err = primitive.ObjectIDFromHex(id)
		assert.NoError(mt, err)
	})

	mt.Run("insert error", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))

		_, err := s.Insert(context.Background(), "users/u1/gallery", Fields{"name": "a.png"})
		assert.Error(mt, err)
	})

	mt.Run("query decodes documents", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.gallery", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: oid},
				{Key: parentKey, Value: "users/u1"},
				{Key: createdKey, Value: primitive.NewDateTimeFromTime(t0)},
				{Key: "name", Value: "a.png"},
				{Key: "size", Value: int64(1024)},
			},
		))

		docs, err := s.Query(context.Background(), "users/u1/gallery", OrderBy{Field: FieldCreatedAt})
		require.NoError(mt, err)
		require.Len(mt, docs, 1)
		assert.Equal(mt, oid.Hex(), docs[0].ID)
		assert.True(mt, t0.Equal(docs[0].CreatedAt))
		assert.Equal(mt, Fields{"name": "a.png", "size": int64(1024)}, docs[0].Fields)
	})

	mt.Run("delete missing is not found", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := s.Delete(context.Background(), "users/u1/gallery", primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, common.ErrNotFound)
	})

	mt.Run("delete existing", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		assert.NoError(mt, s.Delete(context.Background(), "users/u1/gallery", "d1"))
	})

	mt.Run("update upserts", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		err := s.Update(context.Background(), "users/u1", Fields{"profilePicUrl": "https://x/p.jpg", "old": nil})
		assert.NoError(mt, err)
	})

	mt.Run("get missing is not found", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch))

		_, err := s.Get(context.Background(), "users/u1")
		assert.ErrorIs(mt, err, common.ErrNotFound)
	})

	mt.Run("get existing", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "u1"},
				{Key: parentKey, Value: ""},
				{Key: createdKey, Value: primitive.NewDateTimeFromTime(t0)},
				{Key: "username", Value: "ann"},
			},
		))

		doc, err := s.Get(context.Background(), "users/u1")
		require.NoError(mt, err)
		assert.Equal(mt, "u1", doc.ID)
		assert.Equal(mt, "ann", doc.Fields.String("username"))
	})
}
