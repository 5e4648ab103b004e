package engine

import (
	"maps"
	"slices"
	"strings"

	"github.com/tartampluch/go-enroll/internal/config"
)

// PersonID identifies a person for the whole lifetime of a household.
type PersonID string

// PrimaryID is the fixed identifier of the primary applicant.
const PrimaryID PersonID = config.PrimaryApplicantID

// Gender is either male, female or unset.
type Gender string

const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender accepts the persisted spellings case-insensitively.
func ParseGender(s string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(GenderMale):
		return GenderMale, true
	case string(GenderFemale):
		return GenderFemale, true
	case "":
		return GenderUnset, true
	}
	return GenderUnset, false
}

// TobaccoUsage is the single canonical tobacco representation. Storage
// spellings (smoker/non-smoker, yes/no, booleans) are translated at the edge.
type TobaccoUsage string

const (
	TobaccoUnknown   TobaccoUsage = ""
	TobaccoSmoker    TobaccoUsage = "smoker"
	TobaccoNonSmoker TobaccoUsage = "non-smoker"
)

// ParseTobaccoUsage normalizes any known spelling. Unrecognized input maps to
// TobaccoUnknown with ok=false.
func ParseTobaccoUsage(s string) (TobaccoUsage, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "smoker", "yes", "true", "y":
		return TobaccoSmoker, true
	case "non-smoker", "nonsmoker", "no", "false", "n":
		return TobaccoNonSmoker, true
	case "", "unknown":
		return TobaccoUnknown, true
	}
	return TobaccoUnknown, false
}

// HealthStatus is self-reported by the primary applicant.
type HealthStatus string

const (
	HealthUnset     HealthStatus = ""
	HealthImproving HealthStatus = "improving"
	HealthGreat     HealthStatus = "great"
	HealthExcellent HealthStatus = "excellent"
)

// ParseHealthStatus accepts the three reported levels case-insensitively.
func ParseHealthStatus(s string) (HealthStatus, bool) {
	switch h := HealthStatus(strings.ToLower(strings.TrimSpace(s))); h {
	case HealthImproving, HealthGreat, HealthExcellent, HealthUnset:
		return h, true
	}
	return HealthUnset, false
}

// MemberType distinguishes the single spouse from dependents.
type MemberType string

const (
	MemberSpouse    MemberType = "spouse"
	MemberDependent MemberType = "dependent"
)

// Contact holds reachability details.
type Contact struct {
	Email string
	Phone string
}

// Address is a US postal address.
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// Identity holds identity and demographic answers. Yes/no answers keep their
// form spelling ("yes", "no", "") so that an unanswered question stays distinct.
type Identity struct {
	SSN                     string
	IsUSCitizen             string
	ImmigrationDocumentType string
	IsIncarcerated          string
	IsPendingDisposition    string
	Ethnicity               string
	Race                    string
}

// Person is the shape shared by the primary applicant and family members.
type Person struct {
	ID           PersonID
	FirstName    string
	LastName     string
	DateOfBirth  string // MM/DD/YYYY or empty
	Gender       Gender
	Tobacco      TobaccoUsage
	HealthStatus HealthStatus // primary applicant only
	Contact      Contact
	Address      Address
	Identity     Identity
	Income       []IncomeSource
}

// DisplayName joins first and last name, falling back to a generic label.
func (p Person) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return config.FallbackName
	}
	return name
}

// Clone returns a deep copy.
func (p Person) Clone() Person {
	out := p
	if p.Income != nil {
		out.Income = make([]IncomeSource, len(p.Income))
		for i, src := range p.Income {
			out.Income[i] = src.Clone()
		}
	}
	return out
}

// Equal compares two persons field by field.
func (p Person) Equal(o Person) bool {
	return p.ID == o.ID &&
		p.FirstName == o.FirstName &&
		p.LastName == o.LastName &&
		p.DateOfBirth == o.DateOfBirth &&
		p.Gender == o.Gender &&
		p.Tobacco == o.Tobacco &&
		p.HealthStatus == o.HealthStatus &&
		p.Contact == o.Contact &&
		p.Address == o.Address &&
		p.Identity == o.Identity &&
		slices.EqualFunc(p.Income, o.Income, IncomeSource.Equal)
}

// FamilyMember is a spouse or dependent attached to the household.
type FamilyMember struct {
	Person
	Type               MemberType
	IncludedInCoverage bool
}

// Clone returns a deep copy.
func (m FamilyMember) Clone() FamilyMember {
	out := m
	out.Person = m.Person.Clone()
	return out
}

// Equal compares two members field by field.
func (m FamilyMember) Equal(o FamilyMember) bool {
	return m.Type == o.Type &&
		m.IncludedInCoverage == o.IncludedInCoverage &&
		m.Person.Equal(o.Person)
}

// Frequency is how often an income source pays.
type Frequency string

const (
	FrequencyMonthly  Frequency = "monthly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyYearly   Frequency = "yearly"
)

// periodsPerYear converts a frequency into annual multiples.
var periodsPerYear = map[Frequency]float64{
	FrequencyMonthly:  12,
	FrequencyBiweekly: 26,
	FrequencyWeekly:   52,
	FrequencyYearly:   1,
}

// IncomeSource is one income stream. Details carries type-specific fields.
type IncomeSource struct {
	Type      string
	Frequency Frequency
	Amount    float64
	Employer  string
	Details   map[string]string
}

// Annual normalizes the amount to a yearly figure. Unknown frequencies count as zero.
func (s IncomeSource) Annual() float64 {
	return s.Amount * periodsPerYear[s.Frequency]
}

// Clone returns a deep copy.
func (s IncomeSource) Clone() IncomeSource {
	out := s
	out.Details = maps.Clone(s.Details)
	return out
}

// Equal compares two sources field by field.
func (s IncomeSource) Equal(o IncomeSource) bool {
	return s.Type == o.Type &&
		s.Frequency == o.Frequency &&
		s.Amount == o.Amount &&
		s.Employer == o.Employer &&
		maps.Equal(s.Details, o.Details)
}
