package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/gindriliunas/whatsapp-clone/internal/chat"
)

// Composer is the message input at the bottom of the thread view.
type Composer struct {
	*tview.InputField
	onSend func(text string)
}

// NewComposer creates the composer. Input is capped at the message body
// limit so oversized bodies are caught at the keyboard, not the send path.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0).
		SetAcceptanceFunc(tview.InputFieldMaxLength(chat.MaxMessageRunes))

	c := &Composer{InputField: input}

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && c.onSend != nil {
			if text := c.GetText(); text != "" {
				c.onSend(text)
			}
		}
	})

	return c
}

// SetOnSend sets the callback for a submitted message.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// Restore puts a failed send's body back into the input field.
func (c *Composer) Restore(body string) {
	c.SetText(body)
}
