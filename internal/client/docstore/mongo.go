package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dmitrijs2005/secretvault/internal/common"
)

// Reserved keys. A path "users/u1/gallery" maps to the Mongo collection
// "gallery" with parentKey "users/u1".
const (
	parentKey  = "_parent"
	createdKey = "_createdAt"
)

type MongoStore struct {
	db  *mongo.Database
	now func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, now: time.Now}
}

// OpenMongo connects and pings.
func OpenMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func (s *MongoStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	parent, name, err := splitCollection(collection)
	if err != nil {
		return "", err
	}
	doc := bson.M{parentKey: parent, createdKey: s.now().UTC()}
	for k, v := range fields {
		doc[k] = v
	}

	res, err := s.db.Collection(name).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	switch id := res.InsertedID.(type) {
	case primitive.ObjectID:
		return id.Hex(), nil
	case string:
		return id, nil
	default:
		return fmt.Sprint(id), nil
	}
}

func (s *MongoStore) Query(ctx context.Context, collection string, order OrderBy) ([]Document, error) {
	parent, name, err := splitCollection(collection)
	if err != nil {
		return nil, err
	}
	key := order.Field
	if key == "" || key == FieldCreatedAt {
		key = createdKey
	}
	dir := 1
	if order.Desc {
		dir = -1
	}

	opts := options.Find().SetSort(bson.D{{Key: key, Value: dir}, {Key: "_id", Value: dir}})
	cur, err := s.db.Collection(name).Find(ctx, bson.M{parentKey: parent}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", collection, err)
	}

	out := make([]Document, 0, len(raw))
	for _, m := range raw {
		out = append(out, fromBSON(m))
	}
	return out, nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	parent, name, err := splitCollection(collection)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(name).DeleteOne(ctx, bson.M{"_id": idFilter(id), parentKey: parent})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("document %s/%s: %w", collection, id, common.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, docPath string, fields Fields) error {
	collection, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	parent, name, _ := splitCollection(collection)

	set := bson.M{parentKey: parent}
	unset := bson.M{}
	for k, v := range fields {
		if v == nil {
			unset[k] = ""
			continue
		}
		set[k] = v
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{createdKey: s.now().UTC()},
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	_, err = s.db.Collection(name).UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", docPath, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, docPath string) (*Document, error) {
	collection, id, err := SplitDoc(docPath)
	if err != nil {
		return nil, err
	}
	parent, name, _ := splitCollection(collection)

	var m bson.M
	err = s.db.Collection(name).FindOne(ctx, bson.M{"_id": id, parentKey: parent}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("document %s: %w", docPath, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", docPath, err)
	}
	doc := fromBSON(m)
	return &doc, nil
}

// idFilter matches both ObjectID and string ids for a hex id.
func idFilter(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"$in": bson.A{oid, id}}
	}
	return id
}

func fromBSON(m bson.M) Document {
	doc := Document{Fields: Fields{}}
	for k, v := range m {
		switch k {
		case "_id":
			if oid, ok := v.(primitive.ObjectID); ok {
				doc.ID = oid.Hex()
			} else {
				doc.ID = fmt.Sprint(v)
			}
		case parentKey:
		case createdKey:
			if dt, ok := v.(primitive.DateTime); ok {
				doc.CreatedAt = dt.Time().UTC()
			}
		default:
			if dt, ok := v.(primitive.DateTime); ok {
				v = dt.Time().UTC()
			}
			doc.Fields[k] = v
		}
	}
	return doc
}
