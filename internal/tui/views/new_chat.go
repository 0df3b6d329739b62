package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// NewChatPrompt asks for the identifier of the person to start a chat with.
type NewChatPrompt struct {
	*tview.Flex
	Input    *tview.InputField
	onSubmit func(target string)
	onCancel func()
}

// NewNewChatPrompt creates the new-chat prompt.
func NewNewChatPrompt() *NewChatPrompt {
	input := tview.NewInputField().
		SetLabel(" To (email): ").
		SetFieldWidth(0).
		SetAcceptanceFunc(tview.InputFieldMaxLength(maxFilterRunes))

	p := &NewChatPrompt{Input: input}

	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			if p.onSubmit != nil {
				p.onSubmit(input.GetText())
			}
		case tcell.KeyEscape:
			if p.onCancel != nil {
				p.onCancel()
			}
		}
	})

	box := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewBox(), 0, 1, false).
		AddItem(input, 1, 0, true).
		AddItem(tview.NewBox(), 0, 1, false)
	box.SetBorder(true).SetTitle(" New Chat ")

	p.Flex = box
	return p
}

// SetOnSubmit sets the callback for a submitted identifier.
func (p *NewChatPrompt) SetOnSubmit(fn func(target string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback for dismissing the prompt.
func (p *NewChatPrompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Reset clears the input for the next use.
func (p *NewChatPrompt) Reset() {
	p.Input.SetText("")
}
