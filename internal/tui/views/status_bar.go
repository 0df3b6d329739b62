package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays the signed-in account, store mode and transient flashes.
type StatusBar struct {
	*tview.TextView
	account string
	mode    string
	flash   string
}

// NewStatusBar creates the status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetAccount updates the signed-in identifier display.
func (sb *StatusBar) SetAccount(id string) {
	sb.account = id
	sb.render()
}

// SetMode updates the store mode indicator ("local" or "remote").
func (sb *StatusBar) SetMode(mode string) {
	sb.mode = mode
	sb.render()
}

// SetFlash sets a transient message; empty clears it.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	account := sb.account
	if account == "" {
		account = "signed out"
	}
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", account, sb.mode, time.Now().Format("15:04"))
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}
	_, _ = fmt.Fprint(sb, line)
}
