package engine

import (
	"strconv"
	"strings"
)

// Section names a group of fields edited and validated together.
type Section string

const (
	SectionPersonal Section = "personal"
	SectionContact  Section = "contact"
	SectionAddress  Section = "address"
	SectionIdentity Section = "identity"
	// SectionIntake is the reduced personal set collected on the first screen.
	SectionIntake Section = "intake"
	// SectionIncome is only used to report income source validation.
	SectionIncome Section = "income"
)

// Field names as exchanged with forms.
const (
	FieldFirstName               = "firstName"
	FieldLastName                = "lastName"
	FieldDateOfBirth             = "dateOfBirth"
	FieldGender                  = "gender"
	FieldTobaccoUsage            = "tobaccoUsage"
	FieldHealthStatus            = "healthStatus"
	FieldIncludedInCoverage      = "includedInCoverage"
	FieldEmail                   = "email"
	FieldPhone                   = "phone"
	FieldStreet                  = "street"
	FieldCity                    = "city"
	FieldState                   = "state"
	FieldZip                     = "zip"
	FieldSSN                     = "ssn"
	FieldIsUSCitizen             = "isUSCitizen"
	FieldImmigrationDocumentType = "immigrationDocumentType"
	FieldIsIncarcerated          = "isIncarcerated"
	FieldIsPendingDisposition    = "isPendingDisposition"
	FieldEthnicity               = "ethnicity"
	FieldRace                    = "race"

	FieldIncomeType      = "type"
	FieldIncomeFrequency = "frequency"
	FieldIncomeAmount    = "amount"
)

// Values is the flat field/value view of a section.
type Values map[string]string

// Clone copies the map.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Sections lists every editable section in display order.
var Sections = []Section{SectionPersonal, SectionContact, SectionAddress, SectionIdentity}

// SectionFields lists the fields a section exposes for the given owner.
// It returns nil for an unknown section.
func SectionFields(section Section, owner PersonID) []string {
	switch section {
	case SectionPersonal:
		fields := []string{FieldFirstName, FieldLastName, FieldDateOfBirth, FieldGender, FieldTobaccoUsage}
		if owner == PrimaryID {
			return append(fields, FieldHealthStatus)
		}
		return append(fields, FieldIncludedInCoverage)
	case SectionContact:
		return []string{FieldEmail, FieldPhone}
	case SectionAddress:
		return []string{FieldStreet, FieldCity, FieldState, FieldZip}
	case SectionIdentity:
		return []string{
			FieldSSN, FieldIsUSCitizen, FieldImmigrationDocumentType, FieldIsIncarcerated,
			FieldIsPendingDisposition, FieldEthnicity, FieldRace, FieldTobaccoUsage,
		}
	case SectionIntake:
		return []string{FieldDateOfBirth, FieldGender, FieldTobaccoUsage}
	}
	return nil
}

// personValues flattens the committed record for one section.
func personValues(p Person, section Section) Values {
	v := Values{}
	switch section {
	case SectionPersonal, SectionIntake:
		v[FieldFirstName] = p.FirstName
		v[FieldLastName] = p.LastName
		v[FieldDateOfBirth] = p.DateOfBirth
		v[FieldGender] = string(p.Gender)
		v[FieldTobaccoUsage] = string(p.Tobacco)
		v[FieldHealthStatus] = string(p.HealthStatus)
	case SectionContact:
		v[FieldEmail] = p.Contact.Email
		v[FieldPhone] = p.Contact.Phone
	case SectionAddress:
		v[FieldStreet] = p.Address.Street
		v[FieldCity] = p.Address.City
		v[FieldState] = p.Address.State
		v[FieldZip] = p.Address.Zip
	case SectionIdentity:
		v[FieldSSN] = p.Identity.SSN
		v[FieldIsUSCitizen] = p.Identity.IsUSCitizen
		v[FieldImmigrationDocumentType] = p.Identity.ImmigrationDocumentType
		v[FieldIsIncarcerated] = p.Identity.IsIncarcerated
		v[FieldIsPendingDisposition] = p.Identity.IsPendingDisposition
		v[FieldEthnicity] = p.Identity.Ethnicity
		v[FieldRace] = p.Identity.Race
		v[FieldTobaccoUsage] = string(p.Tobacco)
	}
	if section == SectionIntake {
		return pick(v, SectionFields(SectionIntake, p.ID))
	}
	return v
}

// memberValues adds the coverage flag to the personal view of a member.
func memberValues(m FamilyMember, section Section) Values {
	v := personValues(m.Person, section)
	if section == SectionPersonal {
		delete(v, FieldHealthStatus)
		v[FieldIncludedInCoverage] = strconv.FormatBool(m.IncludedInCoverage)
	}
	return v
}

func pick(v Values, fields []string) Values {
	out := make(Values, len(fields))
	for _, f := range fields {
		out[f] = v[f]
	}
	return out
}

// applyPersonValues writes validated section values into a person.
// Free text is normalized and dates are stored canonically.
func applyPersonValues(p *Person, section Section, v Values) {
	switch section {
	case SectionPersonal, SectionIntake:
		if section == SectionPersonal {
			p.FirstName = NormalizeText(v[FieldFirstName])
			p.LastName = NormalizeText(v[FieldLastName])
			if p.ID == PrimaryID {
				p.HealthStatus, _ = ParseHealthStatus(v[FieldHealthStatus])
			}
		}
		p.DateOfBirth = canonicalDateText(v[FieldDateOfBirth])
		p.Gender, _ = ParseGender(v[FieldGender])
		p.Tobacco, _ = ParseTobaccoUsage(v[FieldTobaccoUsage])
	case SectionContact:
		p.Contact.Email = strings.TrimSpace(v[FieldEmail])
		p.Contact.Phone = NormalizeText(v[FieldPhone])
	case SectionAddress:
		p.Address.Street = NormalizeText(v[FieldStreet])
		p.Address.City = NormalizeText(v[FieldCity])
		p.Address.State = NormalizeText(v[FieldState])
		p.Address.Zip = strings.TrimSpace(v[FieldZip])
	case SectionIdentity:
		p.Identity.SSN = strings.TrimSpace(v[FieldSSN])
		p.Identity.IsUSCitizen = yesNo(v[FieldIsUSCitizen])
		p.Identity.ImmigrationDocumentType = NormalizeText(v[FieldImmigrationDocumentType])
		p.Identity.IsIncarcerated = yesNo(v[FieldIsIncarcerated])
		p.Identity.IsPendingDisposition = yesNo(v[FieldIsPendingDisposition])
		p.Identity.Ethnicity = NormalizeText(v[FieldEthnicity])
		p.Identity.Race = NormalizeText(v[FieldRace])
		p.Tobacco, _ = ParseTobaccoUsage(v[FieldTobaccoUsage])
	}
}

// applyMemberValues also handles the coverage flag.
func applyMemberValues(m *FamilyMember, section Section, v Values) {
	applyPersonValues(&m.Person, section, v)
	if section == SectionPersonal {
		if inc, err := strconv.ParseBool(v[FieldIncludedInCoverage]); err == nil {
			m.IncludedInCoverage = inc
		}
	}
}

func canonicalDateText(s string) string {
	if t, ok := ParseRealDate(s); ok {
		return CanonicalDate(t)
	}
	return strings.TrimSpace(s)
}

// realDateOrEmpty keeps a date only once it is a real calendar date.
func realDateOrEmpty(s string) string {
	if t, ok := ParseRealDate(s); ok {
		return CanonicalDate(t)
	}
	return ""
}

func yesNo(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
