package views

import (
	"strings"
	"time"
	"unicode/utf8"
)

// formatTime renders a message or activity timestamp compactly: clock time
// for today, date otherwise, empty for the zero time (unresolved server
// timestamp).
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

// formatLastSeen renders a peer's last sign-in for the thread header.
func formatLastSeen(t time.Time) string {
	if t.IsZero() {
		return "last seen unknown"
	}
	return "last seen " + t.Format("Jan 2 15:04")
}

// sanitize strips codepoints that break tview's cell-width accounting:
// skin tone modifiers, zero width joiners and variation selectors. Multi
// codepoint emoji degrade to their base glyph, which renders at a stable
// width.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		case r == 0x200D: // zero width joiner
		case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		case r >= 0xE0100 && r <= 0xE01EF: // variation selectors supplement
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
