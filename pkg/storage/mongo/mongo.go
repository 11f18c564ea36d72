package mongo

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/grexie/estorage/pkg/storage/interfaces"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultMongoURL = "mongodb://localhost:27017/estorage"

const itemsCollection = "items"

type mongoStorageBackend struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ interfaces.IStorageBackend = &mongoStorageBackend{}

func mongoURL() string {
	if u := strings.TrimSpace(os.Getenv("ESTORAGE_MONGO_URL")); u != "" {
		return u
	}
	return defaultMongoURL
}

func NewMongoStorageBackend(ctx context.Context) (interfaces.IStorageBackend, error) {
	rawURL := mongoURL()

	if u, err := url.Parse(rawURL); err != nil {
		return nil, err
	} else if client, err := mongo.Connect(ctx, options.Client().ApplyURI(rawURL)); err != nil {
		return nil, err
	} else if err := client.Ping(ctx, nil); err != nil {
		disconnect(ctx, client)
		return nil, fmt.Errorf("unable to reach mongo: %w", err)
	} else {
		name := strings.TrimPrefix(u.Path, "/")
		if name == "" {
			name = "estorage"
		}

		b := newMongoStorageBackend(client, client.Database(name))
		if err := b.ensureIndexes(ctx); err != nil {
			disconnect(ctx, client)
			return nil, err
		}
		return b, nil
	}
}

func disconnect(ctx context.Context, client *mongo.Client) {
	if err := client.Disconnect(ctx); err != nil {
		log.Warnf("error disconnecting from mongo: %v", err)
	}
}

func newMongoStorageBackend(client *mongo.Client, db *mongo.Database) *mongoStorageBackend {
	return &mongoStorageBackend{client: client, db: db}
}

func (b *mongoStorageBackend) ensureIndexes(ctx context.Context) error {
	return b.EnsureIndex(ctx, itemsCollection, mongo.IndexModel{
		Keys:    bson.M{"id": 1},
		Options: options.Index().SetName("id").SetUnique(true),
	})
}

func (b *mongoStorageBackend) EnsureIndex(ctx context.Context, collectionName string, model mongo.IndexModel) error {
	c := b.db.Collection(collectionName)

	idxs := c.Indexes()

	v := model.Options.Name
	if v == nil {
		return fmt.Errorf("must provide a name for index")
	}
	expectedName := *v

	cur, err := idxs.List(ctx)
	if err != nil {
		return fmt.Errorf("unable to list indexes: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var d bson.M

		if err := cur.Decode(&d); err != nil {
			return fmt.Errorf("unable to decode bson index document: %w", err)
		}

		if name, ok := d["name"].(string); ok && name == expectedName {
			return nil
		}
	}

	_, err = idxs.CreateOne(ctx, model)
	return err
}

func (b *mongoStorageBackend) Close(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	return b.client.Disconnect(ctx)
}
