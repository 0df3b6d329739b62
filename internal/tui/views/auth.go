package views

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/rivo/tview"
)

// Auth displays the device-flow verification QR code and user code.
type Auth struct {
	*tview.TextView
}

// NewAuth creates the sign-in view.
func NewAuth() *Auth {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true).SetTitle(" Sign In ")

	return &Auth{TextView: tv}
}

// ShowVerification renders the verification URL as a scannable QR code along
// with the code the user must enter there.
func (av *Auth) ShowVerification(verificationURL, userCode string) {
	av.Clear()
	_, _ = fmt.Fprintf(av, "\n  Scan to sign in, or open %s\n\n%s\n  Enter code: [::b]%s[-:-:-]\n\n  [::d]Waiting for approval...",
		verificationURL, renderQR(verificationURL), userCode)
}

// ShowMessage displays a status message.
func (av *Auth) ShowMessage(msg string) {
	av.Clear()
	_, _ = fmt.Fprintf(av, "\n\n%s", msg)
}

// renderQR converts a string to a compact QR code using Unicode half-block
// characters, two bitmap rows per terminal row.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := false
			if y+1 < rows {
				bot = bitmap[y+1][x]
			}
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
