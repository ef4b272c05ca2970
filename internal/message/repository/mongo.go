package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/webchat/webchat/internal/message"
)

// MongoRepo writes chat records into a single collection. The collection
// handle is created once per relay lifetime and reused for every insert.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

func (m *MongoRepo) InsertOne(ctx context.Context, rec *message.StoredRecord) error {
	if _, err := m.col.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert into %s: %w", m.col.Name(), err)
	}
	return nil
}
