package ui

import (
	"fyne.io/fyne/v2/driver/mobile"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
)

// DateEntry is an Entry that only accepts digits and slashes and inserts the
// MM/DD/YYYY separators while typing.
type DateEntry struct {
	widget.Entry
}

// NewDateEntry creates a new instance of DateEntry.
func NewDateEntry() *DateEntry {
	entry := &DateEntry{}
	entry.ExtendBaseWidget(entry)
	entry.PlaceHolder = config.PlaceholderDate
	return entry
}

// TypedRune reformats the whole text after each accepted keystroke.
// Pasted text bypasses this; the DOB field state machine still rejects it.
func (e *DateEntry) TypedRune(r rune) {
	if (r < '0' || r > '9') && r != config.DateSeparator {
		return
	}
	formatted := engine.FormatPartialDate(e.Text + string(r))
	if formatted == e.Text {
		return
	}
	e.SetText(formatted)
	e.CursorColumn = len([]rune(formatted))
	e.Refresh()
}

// Keyboard shows a numeric keypad on mobile devices.
func (e *DateEntry) Keyboard() mobile.KeyboardType {
	return mobile.NumberKeyboard
}
