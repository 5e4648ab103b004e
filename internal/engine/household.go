package engine

// Household is the primary applicant plus confirmed and pending family members.
// Pending members are still inside their own add-flow; they keep insertion order
// and are unique by id across both collections.
type Household struct {
	Primary Person
	Members []FamilyMember
	Pending []FamilyMember
	Status  Status
}

// Status holds the enrollment flags persisted next to the household.
type Status struct {
	EligibilityAcknowledged bool
	EnrollmentSubmitted     bool
}

// NewHousehold returns an empty household with the primary id assigned.
func NewHousehold() *Household {
	return &Household{Primary: Person{ID: PrimaryID}}
}

// Size is 1 + confirmed + pending. It is always derived, never stored.
func (h *Household) Size() int {
	return 1 + len(h.Members) + len(h.Pending)
}

// TotalAnnualIncome sums the normalized income of every household person,
// covered or not.
func (h *Household) TotalAnnualIncome() float64 {
	total := sumAnnual(h.Primary.Income)
	for _, m := range h.Members {
		total += sumAnnual(m.Income)
	}
	for _, m := range h.Pending {
		total += sumAnnual(m.Income)
	}
	return total
}

func sumAnnual(sources []IncomeSource) float64 {
	var total float64
	for _, s := range sources {
		total += s.Annual()
	}
	return total
}

// Member looks a family member up in either collection.
func (h *Household) Member(id PersonID) (m FamilyMember, confirmed, ok bool) {
	if i := indexOf(h.Members, id); i >= 0 {
		return h.Members[i], true, true
	}
	if i := indexOf(h.Pending, id); i >= 0 {
		return h.Pending[i], false, true
	}
	return FamilyMember{}, false, false
}

// Person returns the person with the given id, primary included.
func (h *Household) Person(id PersonID) (Person, bool) {
	if id == PrimaryID {
		return h.Primary, true
	}
	m, _, ok := h.Member(id)
	return m.Person, ok
}

// HasSpouse reports a confirmed or pending spouse.
func (h *Household) HasSpouse() bool {
	for _, m := range h.Members {
		if m.Type == MemberSpouse {
			return true
		}
	}
	for _, m := range h.Pending {
		if m.Type == MemberSpouse {
			return true
		}
	}
	return false
}

// AllMembers lists confirmed members followed by pending ones.
func (h *Household) AllMembers() []FamilyMember {
	out := make([]FamilyMember, 0, len(h.Members)+len(h.Pending))
	out = append(out, h.Members...)
	return append(out, h.Pending...)
}

// Clone returns a deep copy so that a published snapshot is never mutated.
func (h *Household) Clone() *Household {
	out := &Household{Primary: h.Primary.Clone(), Status: h.Status}
	out.Members = cloneMembers(h.Members)
	out.Pending = cloneMembers(h.Pending)
	return out
}

func cloneMembers(in []FamilyMember) []FamilyMember {
	if in == nil {
		return nil
	}
	out := make([]FamilyMember, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

func indexOf(members []FamilyMember, id PersonID) int {
	for i, m := range members {
		if m.ID == id {
			return i
		}
	}
	return -1
}
