package views

import (
	"strings"

	"github.com/rivo/tview"

	"github.com/gindriliunas/whatsapp-clone/internal/chat"
)

// maxFilterRunes caps the list filter input; anything longer than an email
// identifier is noise.
const maxFilterRunes = 100

// ConversationList is the left-pane conversation table with an inline filter.
type ConversationList struct {
	*tview.Flex
	Table  *tview.Table
	Filter *tview.InputField

	entries  []chat.ListEntry
	visible  []chat.ListEntry
	onSelect func(entry chat.ListEntry)
}

// NewConversationList creates the conversation list pane.
func NewConversationList() *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Conversations ")

	filter := tview.NewInputField().
		SetLabel(" / ").
		SetFieldWidth(0).
		SetAcceptanceFunc(tview.InputFieldMaxLength(maxFilterRunes))

	cl := &ConversationList{
		Table:  table,
		Filter: filter,
	}

	filter.SetChangedFunc(func(string) { cl.render() })

	table.SetSelectedFunc(func(row, col int) {
		if entry, ok := cl.Selected(); ok && cl.onSelect != nil {
			cl.onSelect(entry)
		}
	})

	cl.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(filter, 1, 0, false).
		AddItem(table, 0, 1, true)
	return cl
}

// SetOnSelect sets the callback invoked when a conversation is chosen.
func (cl *ConversationList) SetOnSelect(fn func(entry chat.ListEntry)) {
	cl.onSelect = fn
}

// Update replaces the list contents. Entries arrive already sorted.
func (cl *ConversationList) Update(entries []chat.ListEntry) {
	cl.entries = entries
	cl.render()
}

// Selected returns the entry under the cursor.
func (cl *ConversationList) Selected() (chat.ListEntry, bool) {
	row, _ := cl.Table.GetSelection()
	idx := row - 1 // header row
	if idx >= 0 && idx < len(cl.visible) {
		return cl.visible[idx], true
	}
	return chat.ListEntry{}, false
}

func (cl *ConversationList) render() {
	query := strings.ToLower(strings.TrimSpace(cl.Filter.GetText()))

	cl.visible = cl.visible[:0]
	for _, e := range cl.entries {
		if query == "" ||
			strings.Contains(strings.ToLower(e.Peer.DisplayName), query) ||
			strings.Contains(e.Peer.ID, query) {
			cl.visible = append(cl.visible, e)
		}
	}

	cl.Table.Clear()
	cl.Table.SetCell(0, 0, tview.NewTableCell(" Contact").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.Table.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.Table.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, e := range cl.visible {
		row := i + 1
		name := e.Peer.DisplayName
		if name == "" {
			name = e.Peer.ID
		}
		cl.Table.SetCell(row, 0, tview.NewTableCell(" "+sanitize(name)).SetMaxWidth(30).SetExpansion(1))
		cl.Table.SetCell(row, 1, tview.NewTableCell(" "+sanitize(e.Conversation.LastMessagePreview)).SetMaxWidth(40).SetExpansion(2))
		cl.Table.SetCell(row, 2, tview.NewTableCell(" "+formatTime(e.Conversation.LastActivity)).SetMaxWidth(12))
	}

	if len(cl.visible) > 0 {
		row, _ := cl.Table.GetSelection()
		if row < 1 || row > len(cl.visible) {
			cl.Table.Select(1, 0)
		}
	}
}
