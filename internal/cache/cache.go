package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"PocketChat/internal/llm"
)

// Store holds completed replies keyed by request identity, so an
// identical question asked again is answered without another service
// call. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, response string) error
	Close() error
}

// CachedResponse is a stored reply with its capture time.
type CachedResponse struct {
	Response  string
	Timestamp time.Time
}

// Key derives the cache key for one request: a sha256 over the backend,
// the model, and every role/content pair of the outbound conversation.
// The system instruction participates through the conversation, so the
// same question under a different instruction never collides.
func Key(backend, model string, conv llm.Conversation) string {
	h := sha256.New()
	h.Write([]byte(backend))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	for _, msg := range conv {
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
