package engine

import (
	"time"

	"github.com/tartampluch/go-enroll/internal/config"
)

// Eligibility is the age-based classification of a single person.
type Eligibility struct {
	Age       int
	IsUnder19 bool
	IsOver65  bool
}

// Classify derives age and program-boundary flags from a birth date.
// Age 65 is not over 65; age 19 is not under 19.
func Classify(birth, today time.Time) Eligibility {
	age := AgeInYears(birth, today)
	return Eligibility{
		Age:       age,
		IsUnder19: age < config.MinorAgeThreshold,
		IsOver65:  age > config.SeniorAgeThreshold,
	}
}

// Flagged reports whether either boundary applies.
func (e Eligibility) Flagged() bool {
	return e.IsUnder19 || e.IsOver65
}

// ClassifyText parses a stored date of birth and classifies it.
// It returns false when the text is absent or not a real date.
func ClassifyText(dateOfBirth string, today time.Time) (Eligibility, bool) {
	birth, ok := ParseRealDate(dateOfBirth)
	if !ok {
		return Eligibility{}, false
	}
	return Classify(birth, today), true
}
