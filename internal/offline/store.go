package offline

import "context"

// Store is the durable key/value collaborator. Implementations must survive
// process restarts; everything above it (outbox, shadows) is written through
// on every change so a crash never loses user-entered edits.
type Store interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists keys with the given prefix in unspecified order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

const (
	outboxKeyPrefix = "outbox/"
	shadowKeyPrefix = "shadow/"
)

func outboxKey(gameID string) string { return outboxKeyPrefix + gameID }
func shadowKey(gameID string) string { return shadowKeyPrefix + gameID }
