package mongo

import (
	"context"

	"github.com/grexie/estorage/pkg/storage/interfaces"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type item struct {
	ID_   interfaces.ID `bson:"id"`
	Hash_ string        `bson:"hash"`
	Data_ string        `bson:"data"`
}

var _ interfaces.Item = &item{}

func (i *item) ID() interfaces.ID {
	return i.ID_
}

func (i *item) Hash() string {
	return i.Hash_
}

func (i *item) Data() string {
	return i.Data_
}

// Find matches ids with an anchored $regex built from the pattern, so only
// the trailing wildcard has special meaning. Results come back in id order.
func (m *mongoStorageBackend) Find(ctx context.Context, pattern string) ([]interfaces.Item, error) {
	var page []*item

	if expr, err := interfaces.PatternRegexp(pattern); err != nil {
		return nil, err
	} else if cursor, err := m.db.Collection(itemsCollection).Find(ctx, bson.M{"id": bson.M{"$regex": expr}}, options.Find().SetSort(bson.M{"id": 1})); err != nil {
		return nil, err
	} else if err := cursor.All(ctx, &page); err != nil {
		return nil, err
	} else {
		out := make([]interfaces.Item, len(page))
		for i, it := range page {
			out[i] = it
		}
		return out, nil
	}
}

// Save replaces the whole document for the item's id, creating it if absent.
func (m *mongoStorageBackend) Save(ctx context.Context, value interfaces.Item) error {
	doc := item{
		ID_:   value.ID(),
		Hash_: value.Hash(),
		Data_: value.Data(),
	}

	_, err := m.db.Collection(itemsCollection).UpdateOne(ctx, bson.M{"id": doc.ID_}, bson.M{"$set": &doc}, options.Update().SetUpsert(true))
	return err
}
