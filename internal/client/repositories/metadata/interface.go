// Package metadata stores small client settings that must survive restarts,
// such as the identifier of the background upload session.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeySessionID = "upload_session_id"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)

	// GetOrCreate returns the stored value for key, storing gen() first when
	// the key is absent. The value stays stable across calls.
	GetOrCreate(ctx context.Context, key string, gen func() []byte) ([]byte, error)
}
