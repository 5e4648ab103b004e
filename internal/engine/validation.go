package engine

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/tartampluch/go-enroll/internal/config"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New(config.ErrValidation)

// FieldErrors maps a field name to a config.Code* error code.
type FieldErrors map[string]string

// ValidationError reports the failing fields of one section of one person.
type ValidationError struct {
	Owner   PersonID
	Section Section
	Fields  FieldErrors
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	return fmt.Sprintf("%s: %s/%s: %s", config.ErrValidation, e.Owner, e.Section, strings.Join(keys, ","))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// fieldCheck returns an error code for a non-empty value, or "".
type fieldCheck func(v *Validator, value string) string

// sectionRule declares which fields a section requires given its current
// values, and which format checks apply to non-empty fields.
type sectionRule struct {
	required func(Values) []string
	checks   map[string]fieldCheck
}

var personalChecks = map[string]fieldCheck{
	FieldDateOfBirth:  checkDateOfBirth,
	FieldGender:       checkGender,
	FieldTobaccoUsage: checkTobacco,
	FieldHealthStatus: checkHealthStatus,
}

var rules = map[Section]sectionRule{
	SectionPersonal: {
		required: func(v Values) []string {
			if v[FieldIncludedInCoverage] == config.ValueFalse {
				return nil
			}
			return []string{FieldFirstName, FieldLastName, FieldDateOfBirth, FieldGender, FieldTobaccoUsage}
		},
		checks: personalChecks,
	},
	SectionIntake: {
		required: func(Values) []string {
			return []string{FieldDateOfBirth, FieldGender, FieldTobaccoUsage}
		},
		checks: personalChecks,
	},
	SectionContact: {
		required: func(Values) []string {
			return []string{FieldEmail, FieldPhone}
		},
		checks: map[string]fieldCheck{
			FieldEmail: checkPattern(emailPattern, config.CodeInvalidEmail),
		},
	},
	SectionAddress: {
		required: func(Values) []string {
			return []string{FieldStreet, FieldCity, FieldState, FieldZip}
		},
		checks: map[string]fieldCheck{
			FieldZip: checkPattern(zipPattern, config.CodeInvalidZip),
		},
	},
	SectionIdentity: {
		required: func(v Values) []string {
			req := []string{FieldTobaccoUsage}
			if yesNo(v[FieldIsUSCitizen]) == "no" {
				req = append(req, FieldImmigrationDocumentType)
			}
			if yesNo(v[FieldIsIncarcerated]) == "yes" {
				req = append(req, FieldIsPendingDisposition)
			}
			return req
		},
		checks: map[string]fieldCheck{
			FieldTobaccoUsage:         checkTobacco,
			FieldIsUSCitizen:          checkYesNo,
			FieldIsIncarcerated:       checkYesNo,
			FieldIsPendingDisposition: checkYesNo,
		},
	},
}

// Validator applies the section rule table. The clock decides what "future" means.
type Validator struct {
	Clock Clock
}

// ValidateSection returns the failing fields of a section, or nil when the
// values may be committed. Unknown sections validate to nil.
func (v *Validator) ValidateSection(section Section, values Values) FieldErrors {
	rule, ok := rules[section]
	if !ok {
		return nil
	}

	errs := FieldErrors{}
	for _, f := range rule.required(values) {
		if strings.TrimSpace(values[f]) == "" {
			errs[f] = config.CodeRequired
		}
	}
	for f, check := range rule.checks {
		if _, failed := errs[f]; failed {
			continue
		}
		val := strings.TrimSpace(values[f])
		if val == "" {
			continue
		}
		if code := check(v, val); code != "" {
			errs[f] = code
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateIncomeSource checks one income entry.
func ValidateIncomeSource(src IncomeSource) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(src.Type) == "" {
		errs[FieldIncomeType] = config.CodeRequired
	}
	switch {
	case src.Frequency == "":
		errs[FieldIncomeFrequency] = config.CodeRequired
	case periodsPerYear[src.Frequency] == 0:
		errs[FieldIncomeFrequency] = config.CodeInvalidFrequency
	}
	if src.Amount < 0 {
		errs[FieldIncomeAmount] = config.CodeInvalidAmount
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validateIncome prefixes field names with the source index ("1.amount").
func validateIncome(owner PersonID, sources []IncomeSource) error {
	errs := FieldErrors{}
	for i, src := range sources {
		for f, code := range ValidateIncomeSource(src) {
			errs[strconv.Itoa(i)+"."+f] = code
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Owner: owner, Section: SectionIncome, Fields: errs}
}

// ValidateHousehold runs the checks that gate forward navigation: the
// primary intake fields, every member's personal section and all income
// sources. It returns the first failure as a *ValidationError.
func (v *Validator) ValidateHousehold(h *Household) error {
	if errs := v.ValidateSection(SectionIntake, personValues(h.Primary, SectionIntake)); errs != nil {
		return &ValidationError{Owner: PrimaryID, Section: SectionIntake, Fields: errs}
	}
	if err := validateIncome(PrimaryID, h.Primary.Income); err != nil {
		return err
	}
	for _, m := range h.AllMembers() {
		if errs := v.ValidateSection(SectionPersonal, memberValues(m, SectionPersonal)); errs != nil {
			return &ValidationError{Owner: m.ID, Section: SectionPersonal, Fields: errs}
		}
		if err := validateIncome(m.ID, m.Income); err != nil {
			return err
		}
	}
	return nil
}

func checkDateOfBirth(v *Validator, value string) string {
	birth, ok := ParseRealDate(value)
	if !ok {
		return config.CodeInvalidDate
	}
	if v.Clock != nil && afterDay(birth, v.Clock.Now()) {
		return config.CodeFutureDate
	}
	return ""
}

func checkGender(_ *Validator, value string) string {
	if g, ok := ParseGender(value); !ok || g == GenderUnset {
		return config.CodeInvalidChoice
	}
	return ""
}

func checkTobacco(_ *Validator, value string) string {
	if t, ok := ParseTobaccoUsage(value); !ok || t == TobaccoUnknown {
		return config.CodeInvalidChoice
	}
	return ""
}

func checkHealthStatus(_ *Validator, value string) string {
	if _, ok := ParseHealthStatus(value); !ok {
		return config.CodeInvalidChoice
	}
	return ""
}

func checkYesNo(_ *Validator, value string) string {
	switch yesNo(value) {
	case "yes", "no":
		return ""
	}
	return config.CodeInvalidChoice
}

func checkPattern(re *regexp.Regexp, code string) fieldCheck {
	return func(_ *Validator, value string) string {
		if !re.MatchString(value) {
			return code
		}
		return ""
	}
}
