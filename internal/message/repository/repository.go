package repository

import (
	"context"

	"github.com/webchat/webchat/internal/message"
)

// Sink is the write path to the document store. Records are inserted once
// and never updated or deleted by this system.
type Sink interface {
	InsertOne(ctx context.Context, rec *message.StoredRecord) error
}
