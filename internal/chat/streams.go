package chat

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/gindriliunas/whatsapp-clone/internal/docstore"
)

// ListSubscription is a live stream of the self user's conversation list,
// sorted most recently active first and enriched with peer profiles.
type ListSubscription struct {
	C      <-chan []ListEntry
	cancel func()
}

func (s *ListSubscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// MessageSubscription is a live stream of one conversation's messages, sorted
// oldest first.
type MessageSubscription struct {
	C      <-chan []Message
	cancel func()
}

func (s *MessageSubscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// ConversationList subscribes to every conversation self participates in.
// Each store snapshot is projected, deduplicated, sorted and enriched before
// emission; a broken snapshot emits an empty list rather than stale data.
func (r *Reconciler) ConversationList(selfID string) (*ListSubscription, error) {
	self := NormalizeID(selfID)

	sub, err := r.store.Subscribe(collChats, docstore.Where(fieldUsers, docstore.ArrayContains, self))
	if err != nil {
		return nil, err
	}

	out := make(chan []ListEntry, 1)
	go func() {
		defer close(out)
		for snap := range sub.C {
			if snap.Err != nil {
				r.logger.Warn("conversation snapshot failed", zap.Error(snap.Err))
				r.setCached(self, nil)
				emitLatest(out, []ListEntry{})
				continue
			}

			convs := projectConversations(snap.Docs)
			convs = lo.UniqBy(convs, func(c Conversation) string { return c.ID })
			SortConversations(convs)
			r.setCached(self, convs)

			peers := lo.Map(convs, func(c Conversation, _ int) string { return c.Other(self) })
			profiles := r.refreshProfiles(context.Background(), peers)

			entries := make([]ListEntry, len(convs))
			for i, conv := range convs {
				peer := conv.Other(self)
				prof, ok := profiles[peer]
				if !ok {
					// No profile record yet; present the raw identifier.
					prof = Profile{ID: peer, DisplayName: peer}
				}
				entries[i] = ListEntry{Conversation: conv, Peer: prof}
			}
			emitLatest(out, entries)
		}
	}()

	return &ListSubscription{C: out, cancel: sub.Cancel}, nil
}

// Messages subscribes to one conversation's message sequence.
func (r *Reconciler) Messages(conversationID string) (*MessageSubscription, error) {
	sub, err := r.store.Subscribe(messagesCollection(conversationID))
	if err != nil {
		return nil, err
	}

	out := make(chan []Message, 1)
	go func() {
		defer close(out)
		for snap := range sub.C {
			if snap.Err != nil {
				r.logger.Warn("message snapshot failed",
					zap.String("conversation", conversationID), zap.Error(snap.Err))
				emitLatest(out, []Message{})
				continue
			}
			msgs := make([]Message, 0, len(snap.Docs))
			for _, doc := range snap.Docs {
				msgs = append(msgs, Message{
					ID:             doc.Ref.ID,
					ConversationID: conversationID,
					SenderID:       NormalizeID(doc.String(fieldSender)),
					Body:           doc.String(fieldText),
					CreatedAt:      doc.Time(fieldTimestamp),
				})
			}
			SortMessages(msgs)
			emitLatest(out, msgs)
		}
	}()

	return &MessageSubscription{C: out, cancel: sub.Cancel}, nil
}

func projectConversations(docs []docstore.Document) []Conversation {
	convs := make([]Conversation, 0, len(docs))
	for _, doc := range docs {
		if doc.String(fieldMergedInto) != "" {
			continue
		}
		participants := doc.Strings(fieldUsers)
		for i, p := range participants {
			participants[i] = NormalizeID(p)
		}
		convs = append(convs, Conversation{
			ID:                 doc.Ref.ID,
			Participants:       participants,
			LastMessagePreview: doc.String(fieldLastMessage),
			LastActivity:       doc.Time(fieldTimestamp),
			CreatedAt:          doc.Time(fieldCreatedAt),
		})
	}
	return convs
}

// emitLatest delivers v without blocking, replacing the stale buffered value
// if the consumer has not caught up.
func emitLatest[T any](out chan T, v T) {
	for {
		select {
		case out <- v:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}
