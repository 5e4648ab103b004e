package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/tartampluch/go-enroll/internal/config"
)

// datePartMaxLen holds the maximum digit count of month, day and year.
var datePartMaxLen = [3]int{2, 2, 4}

// FormatPartialDate shapes raw keyboard input into the MM/DD/YYYY pattern.
// Characters other than digits and '/' are dropped, separators are inserted
// once a month or day segment holds two digits, and the result never exceeds
// ten characters. It works on incomplete input ("1", "12/", "12/3").
func FormatPartialDate(raw string) string {
	var b strings.Builder
	seg, segLen := 0, 0
	autoSep := false

	for _, r := range raw {
		if b.Len() >= config.DatePartialMaxLen {
			break
		}
		switch {
		case r >= '0' && r <= '9':
			if segLen == datePartMaxLen[seg] {
				if seg == len(datePartMaxLen)-1 {
					continue
				}
				b.WriteRune(config.DateSeparator)
				seg++
				segLen = 0
			}
			b.WriteRune(r)
			segLen++
			autoSep = false
			if seg < len(datePartMaxLen)-1 && segLen == datePartMaxLen[seg] {
				b.WriteRune(config.DateSeparator)
				seg++
				segLen = 0
				autoSep = true
			}
		case r == config.DateSeparator:
			// A typed slash right after an inserted one is absorbed.
			if autoSep {
				autoSep = false
				continue
			}
			if segLen == 0 || seg == len(datePartMaxLen)-1 {
				continue
			}
			b.WriteRune(config.DateSeparator)
			seg++
			segLen = 0
		}
	}

	out := b.String()
	if len(out) > config.DatePartialMaxLen {
		out = out[:config.DatePartialMaxLen]
	}
	return out
}

// IsCompleteDateInput reports whether formatted input has month, day and a
// four digit year. It does not check that the date exists.
func IsCompleteDateInput(text string) bool {
	parts := strings.Split(text, string(config.DateSeparator))
	if len(parts) != 3 {
		return false
	}
	return parts[0] != "" && parts[1] != "" && len(parts[2]) == datePartMaxLen[2]
}

// ParseDate interprets MM/DD/YYYY (one or two digit month and day) or an
// ISO-like date. It returns false for empty input or when no layout matches.
func ParseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	layouts := []string{
		config.DateFormatLenient,
		config.DateFormatFullDash,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsRealCalendarDate rejects dates whose parsed month and day differ from the
// literal month and day of the original text, such as 02/30 rolling to 03/02.
func IsRealCalendarDate(date time.Time, originalText string) bool {
	if date.IsZero() {
		return false
	}
	month, day, ok := literalMonthDay(strings.TrimSpace(originalText))
	if !ok {
		return true
	}
	return int(date.Month()) == month && date.Day() == day
}

// literalMonthDay extracts the month and day digits exactly as written.
func literalMonthDay(text string) (int, int, bool) {
	if parts := strings.Split(text, string(config.DateSeparator)); len(parts) == 3 {
		m, errM := strconv.Atoi(parts[0])
		d, errD := strconv.Atoi(parts[1])
		return m, d, errM == nil && errD == nil
	}
	// ISO forms: YYYY-MM-DD with an optional time suffix.
	if len(text) >= len(config.DateFormatFullDash) && text[4] == '-' && text[7] == '-' {
		m, errM := strconv.Atoi(text[5:7])
		d, errD := strconv.Atoi(text[8:10])
		return m, d, errM == nil && errD == nil
	}
	return 0, 0, false
}

// ParseRealDate combines ParseDate and IsRealCalendarDate.
func ParseRealDate(text string) (time.Time, bool) {
	t, ok := ParseDate(text)
	if !ok || !IsRealCalendarDate(t, text) {
		return time.Time{}, false
	}
	return t, true
}

// CanonicalDate renders a date in the persisted MM/DD/YYYY form.
func CanonicalDate(t time.Time) string {
	return t.Format(config.DateFormatCanonical)
}

// AgeInYears counts whole years between birth and today. The year difference
// is decremented when today's month/day precedes the birth month/day, so a
// Feb-29 birthday counts as passed on Mar-1 of a non-leap year.
// Births after today yield zero.
func AgeInYears(birth, today time.Time) int {
	by, bm, bd := birth.Date()
	ty, tm, td := today.Date()

	age := ty - by
	if tm < bm || (tm == bm && td < bd) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
