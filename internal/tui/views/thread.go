package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/gindriliunas/whatsapp-clone/internal/chat"
)

// Thread displays one conversation's messages with a peer header.
type Thread struct {
	*tview.TextView
	selfID string
	peer   chat.Profile
}

// NewThread creates the message thread view.
func NewThread() *Thread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &Thread{TextView: tv}
}

// SetSelf sets the signed-in identifier used to label own messages.
func (th *Thread) SetSelf(selfID string) {
	th.selfID = selfID
}

// SetPeer updates the header with the peer's name and last-seen time.
func (th *Thread) SetPeer(peer chat.Profile) {
	th.peer = peer
	name := peer.DisplayName
	if name == "" {
		name = peer.ID
	}
	th.SetTitle(fmt.Sprintf(" %s — %s ", sanitize(name), formatLastSeen(peer.LastSeen)))
}

// Update re-renders the thread. Messages arrive oldest first.
func (th *Thread) Update(msgs []chat.Message) {
	th.Clear()

	for _, m := range msgs {
		sender := m.SenderID
		if sender == th.selfID {
			sender = "You"
		} else if th.peer.DisplayName != "" && sender == th.peer.ID {
			sender = th.peer.DisplayName
		}

		ts := formatTime(m.CreatedAt)
		if ts == "" {
			ts = "sending…"
		}
		_, _ = fmt.Fprintf(th, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n", sanitize(sender), ts, sanitize(m.Body))
	}

	th.ScrollToEnd()
}
