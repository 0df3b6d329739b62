package chat

import "sort"

// SortConversations orders most recently active first. Conversations with no
// activity yet (zero LastActivity, typically a just-created record whose
// server timestamp has not resolved) sink to the end.
func SortConversations(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		a, b := convs[i].LastActivity, convs[j].LastActivity
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})
}

// SortMessages orders oldest first. Messages whose server timestamp has not
// resolved (zero CreatedAt) float to the front and settle into place on the
// re-emission that follows timestamp resolution.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i].CreatedAt, msgs[j].CreatedAt
		if a.IsZero() != b.IsZero() {
			return a.IsZero()
		}
		return a.Before(b)
	})
}
