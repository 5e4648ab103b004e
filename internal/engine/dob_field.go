package engine

import (
	"time"

	"github.com/tartampluch/go-enroll/internal/config"
)

// DOBState is the intake date-of-birth field state.
type DOBState int

const (
	DOBEmpty DOBState = iota
	DOBTyping
	DOBInvalid
	DOBValid
)

func (s DOBState) String() string {
	switch s {
	case DOBTyping:
		return "typing"
	case DOBInvalid:
		return "invalid"
	case DOBValid:
		return "valid"
	}
	return "empty"
}

// DOBField tracks one date-of-birth input. Age and eligibility exist only in
// DOBValid; every transition out of it clears them.
type DOBField struct {
	clock Clock

	text        string
	state       DOBState
	code        string
	birth       time.Time
	eligibility Eligibility
}

// NewDOBField returns an empty field.
func NewDOBField(clock Clock) *DOBField {
	return &DOBField{clock: clock}
}

// Input feeds raw keyboard text through the formatter and recomputes state.
func (f *DOBField) Input(raw string) DOBState {
	f.text = FormatPartialDate(raw)
	f.birth = time.Time{}
	f.eligibility = Eligibility{}
	f.code = ""

	switch {
	case f.text == "":
		f.state = DOBEmpty
	case !IsCompleteDateInput(f.text):
		f.state = DOBTyping
	default:
		birth, ok := ParseRealDate(f.text)
		switch {
		case !ok:
			f.state = DOBInvalid
			f.code = config.CodeInvalidDate
		case afterDay(birth, f.clock.Now()):
			f.state = DOBInvalid
			f.code = config.CodeFutureDate
		default:
			f.state = DOBValid
			f.text = CanonicalDate(birth)
			f.birth = birth
			f.eligibility = Classify(birth, f.clock.Now())
		}
	}
	return f.state
}

// State returns the current state.
func (f *DOBField) State() DOBState { return f.state }

// Text returns the formatted text, canonical once valid.
func (f *DOBField) Text() string { return f.text }

// ErrorCode is set in DOBInvalid only.
func (f *DOBField) ErrorCode() string { return f.code }

// Eligibility is available in DOBValid only.
func (f *DOBField) Eligibility() (Eligibility, bool) {
	return f.eligibility, f.state == DOBValid
}

// BirthDate is available in DOBValid only.
func (f *DOBField) BirthDate() (time.Time, bool) {
	return f.birth, f.state == DOBValid
}
