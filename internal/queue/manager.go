package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/interfaces"
	"github.com/ternarybob/skillmatch/internal/models"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = errors.New("no messages in queue")

// storedMessage is the internal record kept in Badger
type storedMessage struct {
	ID           string              `json:"id"`
	Body         models.QueueMessage `json:"body"`
	EnqueuedAt   time.Time           `json:"enqueued_at"`
	VisibleAt    time.Time           `json:"visible_at"`
	ReceiveCount int                 `json:"receive_count"`
}

// Manager implements a persistent multi-queue broker on a single BadgerDB.
// Message data lives at queue:{name}:msg:{id}; a visibility index at
// queue:{name}:index:{visibleAt}:{id} keeps Receive a prefix scan over
// ready messages. Delivery is at-least-once: Receive bumps the visibility
// timeout and the receive count, and a message that is never deleted
// reappears until the receive cap drops it.
type Manager struct {
	db                *badger.DB
	ownsDB            bool
	visibilityTimeout time.Duration
	maxReceive        int
	logger            arbor.ILogger
}

// NewManager opens the broker database at dataDir and returns the manager
func NewManager(dataDir string, visibilityTimeout time.Duration, maxReceive int, logger arbor.ILogger) (interfaces.QueueManager, error) {
	if dataDir == "" {
		return nil, errors.New("queue data dir is required")
	}

	opts := badger.DefaultOptions(dataDir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}

	m, err := NewManagerWithDB(db, visibilityTimeout, maxReceive, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	m.(*Manager).ownsDB = true
	return m, nil
}

// NewManagerWithDB wraps an externally managed BadgerDB
func NewManagerWithDB(db *badger.DB, visibilityTimeout time.Duration, maxReceive int, logger arbor.ILogger) (interfaces.QueueManager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &Manager{
		db:                db,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
		logger:            logger,
	}, nil
}

// DB exposes the underlying broker database for maintenance (value-log GC)
func (m *Manager) DB() *badger.DB {
	return m.db
}

// Enqueue adds a message to the named queue, immediately visible
func (m *Manager) Enqueue(ctx context.Context, queue string, msg models.QueueMessage) error {
	if queue == "" {
		return errors.New("queue name is required")
	}

	id := uuid.New().String()
	now := time.Now()
	stored := storedMessage{
		ID:         id,
		Body:       msg,
		EnqueuedAt: now,
		VisibleAt:  now,
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(msgKey(queue, id), data); err != nil {
			return err
		}
		return txn.Set(indexKey(queue, stored.VisibleAt, id), []byte{})
	})
}

// Receive pulls the next visible message from the named queue. The second
// return value deletes the message after successful processing; a message
// that is not deleted becomes visible again after the visibility timeout.
func (m *Manager) Receive(ctx context.Context, queue string) (*models.QueueMessage, func() error, error) {
	var stored storedMessage
	var msgID string
	var oldIndexKey []byte

	err := m.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := indexPrefix(queue)
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		found := false

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)

			ts, id, err := parseIndexKey(queue, key)
			if err != nil {
				continue
			}

			// Index keys sort by timestamp; the first future entry ends
			// the scan.
			if ts.After(now) {
				break
			}

			dataItem, err := txn.Get(msgKey(queue, id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Orphaned index entry, clean up
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := dataItem.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}

			if stored.ReceiveCount >= m.maxReceive {
				// Receive cap reached, drop the poison message
				m.logger.Warn().
					Str("queue", queue).
					Str("message_id", id).
					Int("receive_count", stored.ReceiveCount).
					Msg("Message exceeded receive cap, dropping")
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(msgKey(queue, id)); err != nil {
					return err
				}
				continue
			}

			found = true
			msgID = id
			oldIndexKey = key
			break
		}

		if !found {
			return ErrNoMessage
		}

		stored.ReceiveCount++
		stored.VisibleAt = time.Now().Add(m.visibilityTimeout)

		newData, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		if err := txn.Set(msgKey(queue, msgID), newData); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(indexKey(queue, stored.VisibleAt, msgID), []byte{})
	})

	if err != nil {
		return nil, nil, err
	}

	deleteFn := func() error {
		return m.delete(queue, msgID)
	}

	body := stored.Body
	body.MessageID = msgID
	return &body, deleteFn, nil
}

// Extend pushes the visibility timeout out for a long-running job
func (m *Manager) Extend(ctx context.Context, queue, messageID string, duration time.Duration) error {
	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(msgKey(queue, messageID))
		if err != nil {
			return err
		}

		var stored storedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return err
		}

		oldVisibleAt := stored.VisibleAt
		stored.VisibleAt = time.Now().Add(duration)

		newData, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		if err := txn.Set(msgKey(queue, messageID), newData); err != nil {
			return err
		}
		if err := txn.Delete(indexKey(queue, oldVisibleAt, messageID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(indexKey(queue, stored.VisibleAt, messageID), []byte{})
	})
}

// Close closes the broker database when this manager owns it
func (m *Manager) Close() error {
	if m.ownsDB {
		return m.db.Close()
	}
	return nil
}

func (m *Manager) delete(queue, messageID string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(msgKey(queue, messageID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil // Already deleted
			}
			return err
		}

		var stored storedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return err
		}

		if err := txn.Delete(indexKey(queue, stored.VisibleAt, messageID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Delete(msgKey(queue, messageID))
	})
}

func msgKey(queue, id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", queue, id))
}

func indexPrefix(queue string) []byte {
	return []byte(fmt.Sprintf("queue:%s:index:", queue))
}

func indexKey(queue string, visibleAt time.Time, id string) []byte {
	// Zero pad to 20 digits so lexical ordering matches numeric ordering
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", queue, visibleAt.UnixNano(), id))
}

func parseIndexKey(queue string, key []byte) (time.Time, string, error) {
	prefix := indexPrefix(queue)
	if len(key) <= len(prefix)+21 {
		return time.Time{}, "", fmt.Errorf("invalid index key length")
	}

	suffix := string(key[len(prefix):])
	tsStr := suffix[:20]
	id := suffix[21:]

	var ts int64
	if _, err := fmt.Sscanf(tsStr, "%d", &ts); err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), id, nil
}
