package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/gindriliunas/whatsapp-clone/internal/docstore"
)

const (
	collChats = "chats"
	collUsers = "users"

	fieldUsers       = "users"
	fieldLastMessage = "lastMessage"
	fieldTimestamp   = "timestamp"
	fieldCreatedAt   = "createdAt"
	fieldMergedInto  = "mergedInto"

	fieldText   = "text"
	fieldSender = "sender"
)

func messagesCollection(conversationID string) string {
	return collChats + "/" + conversationID + "/messages"
}

// Reconciler is the conversation core: it resolves identifiers to a single
// conversation per participant pair, validates and appends messages, and
// projects the store's raw snapshots into sorted, deduplicated views.
type Reconciler struct {
	store  docstore.Store
	logger *zap.Logger

	mu     sync.RWMutex
	cached map[string][]Conversation // self id -> last list emission

	profilesMu sync.RWMutex
	profiles   map[string]Profile
}

func NewReconciler(store docstore.Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		logger:   logger,
		cached:   make(map[string][]Conversation),
		profiles: make(map[string]Profile),
	}
}

// participantPair returns the canonical participant slice for a new record:
// both identifiers normalized, in lexicographic order.
func participantPair(a, b string) []string {
	pair := []string{NormalizeID(a), NormalizeID(b)}
	slices.Sort(pair)
	return pair
}

// ResolveOrCreate returns the id of the unique conversation between self and
// target, creating it when none exists. Matching is by participant set, not
// order, so both directions resolve to the same record. Found records with a
// drifted participant list (pre-normalization spellings, missing entries) are
// repaired in place; concurrent duplicates are converged onto the earliest
// record.
func (r *Reconciler) ResolveOrCreate(ctx context.Context, selfID, targetID string) (string, error) {
	self := NormalizeID(selfID)
	target := NormalizeID(targetID)
	if err := ValidateID(target); err != nil {
		return "", err
	}
	if target == self {
		return "", fmt.Errorf("%w: cannot start a conversation with yourself", ErrInvalidIdentifier)
	}

	// The live list snapshot usually already has the answer; no store
	// round-trip needed for the common "reopen an existing chat" path.
	if id, ok := r.lookupCached(self, target); ok {
		return id, nil
	}

	docs, err := r.store.Query(ctx, collChats, docstore.Where(fieldUsers, docstore.ArrayContains, self))
	if err != nil {
		return "", fmt.Errorf("%w: resolve conversation: %v", ErrStoreUnavailable, err)
	}

	var matches []docstore.Document
	for _, doc := range docs {
		if doc.String(fieldMergedInto) != "" {
			continue
		}
		if sameParticipants(doc.Strings(fieldUsers), self, target) {
			matches = append(matches, doc)
		}
	}

	if len(matches) > 0 {
		canonical := earliestCreated(matches)
		if len(matches) > 1 {
			r.mergeDuplicates(ctx, canonical, matches)
		}
		r.repairParticipants(ctx, canonical, self, target)
		return canonical.Ref.ID, nil
	}

	id, err := r.store.Create(ctx, collChats, map[string]any{
		fieldUsers:       participantPair(self, target),
		fieldLastMessage: "",
		fieldTimestamp:   docstore.ServerTimestamp,
		fieldCreatedAt:   docstore.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("%w: create conversation: %v", ErrStoreUnavailable, err)
	}
	r.logger.Info("conversation created",
		zap.String("conversation", id),
		zap.String("peer", target))
	return id, nil
}

// PostMessage validates body, appends it to the conversation and updates the
// conversation preview. The preview update is a second write: a failure
// between the two leaves a stale preview, which the next message heals.
func (r *Reconciler) PostMessage(ctx context.Context, conversationID, senderID, body string) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageRunes {
		return fmt.Errorf("%w: body exceeds %d characters", ErrInvalidMessage, MaxMessageRunes)
	}
	sender := NormalizeID(senderID)

	r.ensureParticipant(ctx, conversationID, sender)

	if _, err := r.store.Create(ctx, messagesCollection(conversationID), map[string]any{
		fieldText:      trimmed,
		fieldSender:    sender,
		fieldTimestamp: docstore.ServerTimestamp,
	}); err != nil {
		return fmt.Errorf("%w: append message: %v", ErrStoreUnavailable, err)
	}

	if err := r.store.Write(ctx, docstore.Ref{Collection: collChats, ID: conversationID}, map[string]any{
		fieldLastMessage: trimmed,
		fieldTimestamp:   docstore.ServerTimestamp,
	}, docstore.Merge); err != nil {
		return fmt.Errorf("%w: update conversation preview: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ensureParticipant heals participant-list drift before a send: if the sender
// is missing from the conversation record (or an old spelling survives), the
// list is rewritten in canonical form. Best effort; the send proceeds either
// way.
func (r *Reconciler) ensureParticipant(ctx context.Context, conversationID, sender string) {
	docs, err := r.store.Query(ctx, collChats, docstore.Where(docstore.FieldID, docstore.Eq, conversationID))
	if err != nil || len(docs) == 0 {
		return
	}
	current := docs[0].Strings(fieldUsers)

	set := make(map[string]struct{}, len(current)+1)
	for _, p := range current {
		set[NormalizeID(p)] = struct{}{}
	}
	set[sender] = struct{}{}

	want := make([]string, 0, len(set))
	for p := range set {
		want = append(want, p)
	}
	slices.Sort(want)

	if slices.Equal(current, want) {
		return
	}
	if err := r.store.Write(ctx, docs[0].Ref, map[string]any{fieldUsers: want}, docstore.Merge); err != nil {
		r.logger.Warn("participant repair failed",
			zap.String("conversation", conversationID), zap.Error(err))
		return
	}
	r.logger.Info("participant list repaired",
		zap.String("conversation", conversationID),
		zap.Strings("participants", want))
}

// repairParticipants rewrites a resolved conversation's participant list to
// canonical form when it has drifted. Best effort.
func (r *Reconciler) repairParticipants(ctx context.Context, doc docstore.Document, self, target string) {
	want := participantPair(self, target)
	if slices.Equal(doc.Strings(fieldUsers), want) {
		return
	}
	if err := r.store.Write(ctx, doc.Ref, map[string]any{fieldUsers: want}, docstore.Merge); err != nil {
		r.logger.Warn("participant repair failed",
			zap.String("conversation", doc.Ref.ID), zap.Error(err))
		return
	}
	r.logger.Info("participant list repaired",
		zap.String("conversation", doc.Ref.ID),
		zap.Strings("participants", want))
}

// mergeDuplicates tombstones every duplicate of canonical so readers converge
// on one record. The duplicates' messages stay where they are; only the
// conversation entry disappears from lists and lookups.
func (r *Reconciler) mergeDuplicates(ctx context.Context, canonical docstore.Document, matches []docstore.Document) {
	for _, doc := range matches {
		if doc.Ref.ID == canonical.Ref.ID {
			continue
		}
		if err := r.store.Write(ctx, doc.Ref, map[string]any{fieldMergedInto: canonical.Ref.ID}, docstore.Merge); err != nil {
			r.logger.Warn("duplicate merge failed",
				zap.String("duplicate", doc.Ref.ID),
				zap.String("canonical", canonical.Ref.ID),
				zap.Error(err))
			continue
		}
		r.logger.Info("duplicate conversation merged",
			zap.String("duplicate", doc.Ref.ID),
			zap.String("canonical", canonical.Ref.ID))
	}
}

// earliestCreated picks the duplicate every client deterministically agrees
// on: oldest createdAt wins, document id breaks ties (including the
// all-unresolved case).
func earliestCreated(docs []docstore.Document) docstore.Document {
	best := docs[0]
	for _, doc := range docs[1:] {
		bt, dt := best.Time(fieldCreatedAt), doc.Time(fieldCreatedAt)
		switch {
		case dt.IsZero() && !bt.IsZero():
			continue
		case !dt.IsZero() && bt.IsZero():
			best = doc
		case dt.Before(bt):
			best = doc
		case dt.Equal(bt) && doc.Ref.ID < best.Ref.ID:
			best = doc
		}
	}
	return best
}

func sameParticipants(participants []string, a, b string) bool {
	if len(participants) != 2 {
		return false
	}
	p0, p1 := NormalizeID(participants[0]), NormalizeID(participants[1])
	return (p0 == a && p1 == b) || (p0 == b && p1 == a)
}

func (r *Reconciler) lookupCached(self, target string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, conv := range r.cached[self] {
		if len(conv.Participants) == 2 && slices.Contains(conv.Participants, target) {
			return conv.ID, true
		}
	}
	return "", false
}

func (r *Reconciler) setCached(self string, convs []Conversation) {
	r.mu.Lock()
	r.cached[self] = convs
	r.mu.Unlock()
}
