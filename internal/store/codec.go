package store

import (
	"bytes"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/tartampluch/go-enroll/internal/engine"
)

// personRecord is the persisted person shape. Fields are flat and optional so
// that records written by older screens still decode.
type personRecord struct {
	ID           string       `json:"id,omitempty"`
	FirstName    string       `json:"firstName,omitempty"`
	LastName     string       `json:"lastName,omitempty"`
	DateOfBirth  string       `json:"dateOfBirth,omitempty"`
	Gender       string       `json:"gender,omitempty"`
	TobaccoUsage tobaccoValue `json:"tobaccoUsage,omitempty"`
	HealthStatus string       `json:"healthStatus,omitempty"`

	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`

	SSN                     string `json:"ssn,omitempty"`
	IsUSCitizen             string `json:"isUSCitizen,omitempty"`
	ImmigrationDocumentType string `json:"immigrationDocumentType,omitempty"`
	IsIncarcerated          string `json:"isIncarcerated,omitempty"`
	IsPendingDisposition    string `json:"isPendingDisposition,omitempty"`
	Ethnicity               string `json:"ethnicity,omitempty"`
	Race                    string `json:"race,omitempty"`
}

type memberRecord struct {
	personRecord
	Type               string `json:"type,omitempty"`
	IncludedInCoverage *bool  `json:"includedInCoverage,omitempty"`
}

type incomeRecord struct {
	Type      string            `json:"type"`
	Frequency string            `json:"frequency"`
	Amount    amountValue       `json:"amount"`
	Employer  string            `json:"employer,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// tobaccoValue accepts every legacy spelling: "smoker"/"non-smoker",
// "yes"/"no" and JSON booleans.
type tobaccoValue string

func (t *tobaccoValue) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "null":
		*t = ""
		return nil
	case "true":
		*t = "yes"
		return nil
	case "false":
		*t = "no"
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = tobaccoValue(s)
	return nil
}

// amountValue accepts numbers and numeric strings.
type amountValue float64

func (a *amountValue) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*a = amountValue(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*a = amountValue(f)
	return nil
}

// Tobacco spellings differ by owner: the primary keeps smoker/non-smoker,
// family members use yes/no.
func primaryTobacco(t engine.TobaccoUsage) string {
	return string(t)
}

func memberTobacco(t engine.TobaccoUsage) string {
	switch t {
	case engine.TobaccoSmoker:
		return "yes"
	case engine.TobaccoNonSmoker:
		return "no"
	}
	return ""
}

func decodeTobacco(v string) engine.TobaccoUsage {
	t, _ := engine.ParseTobaccoUsage(v)
	return t
}

func toPersonRecord(p engine.Person, tobacco string) personRecord {
	return personRecord{
		ID:                      string(p.ID),
		FirstName:               p.FirstName,
		LastName:                p.LastName,
		DateOfBirth:             p.DateOfBirth,
		Gender:                  string(p.Gender),
		TobaccoUsage:            tobaccoValue(tobacco),
		HealthStatus:            string(p.HealthStatus),
		Email:                   p.Contact.Email,
		Phone:                   p.Contact.Phone,
		Street:                  p.Address.Street,
		City:                    p.Address.City,
		State:                   p.Address.State,
		Zip:                     p.Address.Zip,
		SSN:                     p.Identity.SSN,
		IsUSCitizen:             p.Identity.IsUSCitizen,
		ImmigrationDocumentType: p.Identity.ImmigrationDocumentType,
		IsIncarcerated:          p.Identity.IsIncarcerated,
		IsPendingDisposition:    p.Identity.IsPendingDisposition,
		Ethnicity:               p.Identity.Ethnicity,
		Race:                    p.Identity.Race,
	}
}

func (r personRecord) person() engine.Person {
	gender, _ := engine.ParseGender(r.Gender)
	health, _ := engine.ParseHealthStatus(r.HealthStatus)
	return engine.Person{
		ID:           engine.PersonID(r.ID),
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		DateOfBirth:  r.DateOfBirth,
		Gender:       gender,
		Tobacco:      decodeTobacco(string(r.TobaccoUsage)),
		HealthStatus: health,
		Contact:      engine.Contact{Email: r.Email, Phone: r.Phone},
		Address:      engine.Address{Street: r.Street, City: r.City, State: r.State, Zip: r.Zip},
		Identity: engine.Identity{
			SSN:                     r.SSN,
			IsUSCitizen:             r.IsUSCitizen,
			ImmigrationDocumentType: r.ImmigrationDocumentType,
			IsIncarcerated:          r.IsIncarcerated,
			IsPendingDisposition:    r.IsPendingDisposition,
			Ethnicity:               r.Ethnicity,
			Race:                    r.Race,
		},
	}
}

func toMemberRecord(m engine.FamilyMember) memberRecord {
	included := m.IncludedInCoverage
	return memberRecord{
		personRecord:       toPersonRecord(m.Person, memberTobacco(m.Tobacco)),
		Type:               string(m.Type),
		IncludedInCoverage: &included,
	}
}

func toIncomeRecords(sources []engine.IncomeSource) []incomeRecord {
	out := make([]incomeRecord, len(sources))
	for i, s := range sources {
		out[i] = incomeRecord{
			Type:      s.Type,
			Frequency: string(s.Frequency),
			Amount:    amountValue(s.Amount),
			Employer:  s.Employer,
			Details:   s.Details,
		}
	}
	return out
}

func fromIncomeRecords(records []incomeRecord) []engine.IncomeSource {
	if len(records) == 0 {
		return nil
	}
	out := make([]engine.IncomeSource, len(records))
	for i, r := range records {
		out[i] = engine.IncomeSource{
			Type:      r.Type,
			Frequency: engine.Frequency(r.Frequency),
			Amount:    float64(r.Amount),
			Employer:  r.Employer,
			Details:   r.Details,
		}
	}
	return out
}
