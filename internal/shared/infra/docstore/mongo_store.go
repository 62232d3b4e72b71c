package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore guarda los artefactos del pipeline en una colección de MongoDB.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(ctx context.Context, client *mongo.Client, dbName string) (*MongoStore, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	return &MongoStore{coll: client.Database(dbName).Collection("artifacts")}, nil
}

// Struct BSON local para no "contaminar" el tipo de dominio con tags.
type mongoDocument struct {
	Key       string                 `bson:"_id"`
	VideoID   int64                  `bson:"videoId"`
	Kind      string                 `bson:"kind"`
	Body      map[string]interface{} `bson:"body"`
	CreatedAt time.Time              `bson:"createdAt"`
}

func (s *MongoStore) Put(ctx context.Context, doc Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	m := mongoDocument{
		Key:       doc.Key,
		VideoID:   doc.VideoID,
		Kind:      doc.Kind,
		Body:      doc.Body,
		CreatedAt: doc.CreatedAt,
	}
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": doc.Key},
		m,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) Get(ctx context.Context, key string) (*Document, error) {
	var m mongoDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &Document{
		Key:       m.Key,
		VideoID:   m.VideoID,
		Kind:      m.Kind,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}, nil
}

// Verificación estática
var _ Store = (*MongoStore)(nil)
