package chat

import "time"

// Conversation is the two-party container for an ordered message sequence.
// Participants are normalized identifiers in canonical (lexicographic) order.
type Conversation struct {
	ID                 string
	Participants       []string
	LastMessagePreview string
	LastActivity       time.Time
	CreatedAt          time.Time
}

// Other returns the participant that is not selfID, falling back to the first
// participant for malformed records.
func (c Conversation) Other(selfID string) string {
	self := NormalizeID(selfID)
	for _, p := range c.Participants {
		if p != self {
			return p
		}
	}
	if len(c.Participants) > 0 {
		return c.Participants[0]
	}
	return ""
}

// Message is one entry in a conversation. CreatedAt is the authoritative
// ordering key; it is the zero time while the server timestamp is still
// unresolved.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Body           string
	CreatedAt      time.Time
}

// Profile is the denormalized presentation record for a participant, keyed by
// normalized identifier. Purely enrichment; may be stale or absent.
type Profile struct {
	ID          string
	DisplayName string
	AvatarURL   string
	LastSeen    time.Time
	LoginCount  int64
}

// ListEntry pairs a conversation with the resolved profile of its non-self
// participant. Peer.DisplayName falls back to the raw identifier when no
// profile exists yet.
type ListEntry struct {
	Conversation Conversation
	Peer         Profile
}
