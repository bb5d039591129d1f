package audit

import (
	"context"

	"github.com/google/uuid"
)

// OutboxEntry is one pending publication of an audit record to the
// downstream compliance topic.
type OutboxEntry struct {
	ID       uuid.UUID
	RecordID uuid.UUID
	Payload  []byte
}

// OutboxStore is implemented by stores that buffer appends for the relay.
type OutboxStore interface {
	NextOutboxBatch(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}
