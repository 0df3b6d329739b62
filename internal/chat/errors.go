package chat

import (
	"errors"

	"github.com/gindriliunas/whatsapp-clone/internal/docstore"
)

// MaxMessageRunes is the upper bound on message body length, counted in
// runes after trimming.
const MaxMessageRunes = 1000

var (
	// ErrInvalidIdentifier rejects malformed participant identifiers and
	// self-conversations.
	ErrInvalidIdentifier = errors.New("invalid participant identifier")

	// ErrInvalidMessage rejects empty or oversized message bodies.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrStoreUnavailable wraps document store failures so callers can
	// distinguish them from validation errors.
	ErrStoreUnavailable = docstore.ErrUnavailable
)
