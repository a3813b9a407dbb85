package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/skillmatch/internal/models"
)

// QueueManager is the durable work queue gateway. Delivery is
// at-least-once: a received message becomes invisible for the visibility
// timeout and reappears unless deleted via the returned delete function.
type QueueManager interface {
	// Enqueue adds a message to the named queue
	Enqueue(ctx context.Context, queue string, msg models.QueueMessage) error

	// Receive pulls the next visible message from the named queue. Returns
	// ErrNoMessage when the queue is empty. The delete function must be
	// called after successful processing.
	Receive(ctx context.Context, queue string) (*models.QueueMessage, func() error, error)

	// Extend extends the visibility timeout for a long-running job
	Extend(ctx context.Context, queue, messageID string, duration time.Duration) error

	// Close closes the queue manager
	Close() error
}
