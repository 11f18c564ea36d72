package mongo

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2/log"
	"github.com/grexie/estorage/pkg/storage/interfaces"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoStorageBackend(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("find translates wildcard to anchored regex", func(mt *mtest.T) {
		b := newMongoStorageBackend(nil, mt.DB)
		ns := mt.DB.Name() + "." + itemsCollection

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "id", Value: "name-ali"}, {Key: "hash", Value: "h1"}, {Key: "data", Value: "d1"}},
			bson.D{{Key: "id", Value: "name-ilker"}, {Key: "hash", Value: "h2"}, {Key: "data", Value: "d2"}},
		))

		items, err := b.Find(ctx, "name-*")
		require.NoError(mt, err)
		require.Len(mt, items, 2)
		require.Equal(mt, "name-ali", items[0].ID())
		require.Equal(mt, "h2", items[1].Hash())
		require.Equal(mt, "d2", items[1].Data())

		evt := mt.GetStartedEvent()
		require.Equal(mt, "find", evt.CommandName)
		require.Equal(mt, `^name-.*$`, evt.Command.Lookup("filter", "id", "$regex").StringValue())
	})

	mt.Run("find quotes literal characters", func(mt *mtest.T) {
		b := newMongoStorageBackend(nil, mt.DB)
		ns := mt.DB.Name() + "." + itemsCollection

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		items, err := b.Find(ctx, "name-ilker")
		require.NoError(mt, err)
		require.Empty(mt, items)

		evt := mt.GetStartedEvent()
		require.Equal(mt, `^name-ilker$`, evt.Command.Lookup("filter", "id", "$regex").StringValue())
	})

	mt.Run("find rejects misplaced wildcard without a round trip", func(mt *mtest.T) {
		b := newMongoStorageBackend(nil, mt.DB)

		_, err := b.Find(ctx, "na*me")
		require.ErrorIs(mt, err, interfaces.ErrInvalidPattern)
		require.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("save upserts by id", func(mt *mtest.T) {
		b := newMongoStorageBackend(nil, mt.DB)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		require.NoError(mt, b.Save(ctx, interfaces.NewItem("x", "hash", "data")))

		evt := mt.GetStartedEvent()
		require.Equal(mt, "update", evt.CommandName)
		require.Equal(mt, "x", evt.Command.Lookup("updates", "0", "q", "id").StringValue())
		require.True(mt, evt.Command.Lookup("updates", "0", "upsert").Boolean())
		require.Equal(mt, "hash", evt.Command.Lookup("updates", "0", "u", "$set", "hash").StringValue())
		require.Equal(mt, "data", evt.Command.Lookup("updates", "0", "u", "$set", "data").StringValue())
	})

	mt.Run("save propagates backend errors", func(mt *mtest.T) {
		b := newMongoStorageBackend(nil, mt.DB)

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Message: "duplicate key",
			Name:    "DuplicateKey",
		}))

		err := b.Save(ctx, interfaces.NewItem("x", "hash", "data"))
		require.Error(mt, err)

		var cmdErr mongo.CommandError
		require.ErrorAs(mt, err, &cmdErr)
		require.Equal(mt, int32(11000), cmdErr.Code)
	})

	mt.Run("ensure index skips existing index", func(mt *mtest.T) {
		b := newMongoStorageBackend(nil, mt.DB)
		ns := mt.DB.Name() + "." + itemsCollection

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "name", Value: "_id_"}},
			bson.D{{Key: "name", Value: "id"}},
		))

		require.NoError(mt, b.ensureIndexes(ctx))

		require.Equal(mt, "listIndexes", mt.GetStartedEvent().CommandName)
		require.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("ensure index creates missing index", func(mt *mtest.T) {
		b := newMongoStorageBackend(nil, mt.DB)
		ns := mt.DB.Name() + "." + itemsCollection

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "name", Value: "_id_"}}),
			mtest.CreateSuccessResponse(),
		)

		require.NoError(mt, b.ensureIndexes(ctx))

		require.Equal(mt, "listIndexes", mt.GetStartedEvent().CommandName)
		evt := mt.GetStartedEvent()
		require.Equal(mt, "createIndexes", evt.CommandName)
		require.Equal(mt, "id", evt.Command.Lookup("indexes", "0", "name").StringValue())
		require.True(mt, evt.Command.Lookup("indexes", "0", "unique").Boolean())
	})
}

func TestDisconnectLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)
	require.NoError(t, client.Disconnect(ctx))

	disconnect(ctx, client)
	require.Contains(t, buf.String(), "error disconnecting from mongo")
}
