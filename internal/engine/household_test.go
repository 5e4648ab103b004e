package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-enroll/internal/engine"
)

func TestHousehold_Size(t *testing.T) {
	h := engine.NewHousehold()
	assert.Equal(t, 1, h.Size())
	assert.Equal(t, engine.PrimaryID, h.Primary.ID)

	h.Members = append(h.Members, engine.FamilyMember{Person: engine.Person{ID: "a"}})
	h.Pending = append(h.Pending, engine.FamilyMember{Person: engine.Person{ID: "b"}}, engine.FamilyMember{Person: engine.Person{ID: "c"}})
	assert.Equal(t, 4, h.Size())
}

func TestHousehold_TotalAnnualIncome(t *testing.T) {
	h := engine.NewHousehold()
	h.Primary.Income = []engine.IncomeSource{
		{Type: "employment", Frequency: engine.FrequencyMonthly, Amount: 1000},
		{Type: "gift", Frequency: "sometimes", Amount: 999},
	}
	h.Members = []engine.FamilyMember{{
		Person: engine.Person{ID: "a", Income: []engine.IncomeSource{
			{Type: "employment", Frequency: engine.FrequencyBiweekly, Amount: 100},
		}},
		IncludedInCoverage: false,
	}}
	h.Pending = []engine.FamilyMember{{
		Person: engine.Person{ID: "b", Income: []engine.IncomeSource{
			{Type: "employment", Frequency: engine.FrequencyWeekly, Amount: 10},
			{Type: "interest", Frequency: engine.FrequencyYearly, Amount: 5},
		}},
	}}

	// 12000 + 0 + 2600 + 520 + 5; excluded members still count.
	assert.InDelta(t, 15125.0, h.TotalAnnualIncome(), 0.0001)
}

func TestHousehold_CloneIsDeep(t *testing.T) {
	h := engine.NewHousehold()
	h.Primary.Income = []engine.IncomeSource{{Type: "a", Details: map[string]string{"k": "v"}}}
	h.Members = []engine.FamilyMember{{Person: engine.Person{ID: "x", FirstName: "Ann"}}}

	c := h.Clone()
	c.Primary.Income[0].Details["k"] = "changed"
	c.Members[0].FirstName = "Bob"
	c.Status.EnrollmentSubmitted = true

	assert.Equal(t, "v", h.Primary.Income[0].Details["k"])
	assert.Equal(t, "Ann", h.Members[0].FirstName)
	assert.False(t, h.Status.EnrollmentSubmitted)
}

func TestHousehold_LookupsAndSpouse(t *testing.T) {
	h := engine.NewHousehold()
	assert.False(t, h.HasSpouse())

	h.Pending = []engine.FamilyMember{{Person: engine.Person{ID: "s"}, Type: engine.MemberSpouse}}
	h.Members = []engine.FamilyMember{{Person: engine.Person{ID: "d"}, Type: engine.MemberDependent}}
	assert.True(t, h.HasSpouse())

	m, confirmed, ok := h.Member("s")
	require.True(t, ok)
	assert.False(t, confirmed)
	assert.Equal(t, engine.MemberSpouse, m.Type)

	_, confirmed, ok = h.Member("d")
	assert.True(t, ok)
	assert.True(t, confirmed)

	_, ok = h.Person("missing")
	assert.False(t, ok)

	all := h.AllMembers()
	require.Len(t, all, 2)
	assert.Equal(t, engine.PersonID("d"), all[0].ID, "confirmed first")
}

func TestPerson_Equal(t *testing.T) {
	a := engine.Person{ID: "x", FirstName: "Ann", Income: []engine.IncomeSource{{Type: "a", Amount: 1}}}
	b := a.Clone()
	assert.True(t, a.Equal(b))

	b.Income[0].Amount = 2
	assert.False(t, a.Equal(b))

	c := a.Clone()
	c.Identity.SSN = "123"
	assert.False(t, a.Equal(c))
}

func TestParseTobaccoUsage(t *testing.T) {
	tests := []struct {
		in   string
		want engine.TobaccoUsage
		ok   bool
	}{
		{"smoker", engine.TobaccoSmoker, true},
		{"Yes", engine.TobaccoSmoker, true},
		{"true", engine.TobaccoSmoker, true},
		{"non-smoker", engine.TobaccoNonSmoker, true},
		{"no", engine.TobaccoNonSmoker, true},
		{"false", engine.TobaccoNonSmoker, true},
		{"", engine.TobaccoUnknown, true},
		{"sometimes", engine.TobaccoUnknown, false},
	}
	for _, tt := range tests {
		got, ok := engine.ParseTobaccoUsage(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ann Doe", engine.Person{FirstName: "Ann", LastName: "Doe"}.DisplayName())
	assert.NotEmpty(t, engine.Person{}.DisplayName())
}
