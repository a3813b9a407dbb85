package interfaces

import "context"

// ObjectStore persists raw document bytes under opaque keys
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	GetBytes(ctx context.Context, key string) ([]byte, error)
}
