package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/tartampluch/go-enroll/internal/config"
)

var (
	ErrUnknownPerson        = errors.New(config.ErrUnknownPerson)
	ErrSpouseAlreadyPresent = errors.New(config.ErrSpouseExists)
	ErrUnknownSection       = errors.New(config.ErrUnknownSection)
)

// Persister is the only I/O edge of the repository.
type Persister interface {
	Load(ctx context.Context) (*Household, error)
	Save(ctx context.Context, h *Household) error
}

// Repository owns the household. Every mutation builds a new *Household and
// swaps it in, so a snapshot handed out earlier is never modified and an
// unchanged household keeps its pointer.
type Repository struct {
	mu        sync.Mutex
	household *Household
	version   uint64
	complete  map[PersonID]bool

	listeners map[int]func(*Household)
	nextSub   int
	onRemove  []func(PersonID)

	saveMu    sync.Mutex
	persister Persister
	validator *Validator
	loadErr   error

	// NewID allocates family member ids.
	NewID func() string
	// Metrics receives mutation and persistence events. Never nil after NewRepository.
	Metrics Recorder
	// OnPersistError is told about load/save failures so the UI can show a
	// non-blocking notice. The in-memory household stays authoritative.
	OnPersistError func(op string, err error)
}

// NewRepository creates a repository holding an empty household.
func NewRepository(p Persister, clock Clock) *Repository {
	return &Repository{
		household: NewHousehold(),
		complete:  make(map[PersonID]bool),
		listeners: make(map[int]func(*Household)),
		persister: p,
		validator: &Validator{Clock: clock},
		NewID:     uuid.NewString,
		Metrics:   nopRecorder{},
	}
}

// Validator exposes the rule table bound to the repository clock.
func (r *Repository) Validator() *Validator {
	return r.validator
}

// Load replaces the household with the persisted one. On failure the current
// household is kept and the error is reported and returned.
func (r *Repository) Load(ctx context.Context) error {
	if r.persister == nil {
		return nil
	}
	h, err := r.persister.Load(ctx)
	if err != nil {
		err = fmt.Errorf("%s: %w", config.ErrLoadHousehold, err)
		r.mu.Lock()
		r.loadErr = err
		r.mu.Unlock()
		r.persistFailed(ctx, config.MetricOpLoad, err)
		return err
	}

	r.mu.Lock()
	r.loadErr = nil
	r.complete = make(map[PersonID]bool, len(h.Members)+len(h.Pending))
	for _, m := range h.Members {
		r.complete[m.ID] = true
	}
	for _, m := range h.Pending {
		r.complete[m.ID] = false
	}
	subs := r.swap(h)
	r.mu.Unlock()

	slog.DebugContext(ctx, config.MsgHouseholdLoaded,
		config.LogKeyComponent, config.CompHousehold,
		config.LogKeySize, h.Size(),
	)
	notify(subs, h)
	return nil
}

// Snapshot returns the current household. Callers must treat it as read-only.
func (r *Repository) Snapshot() *Household {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.household
}

// Version increases on every effective mutation.
func (r *Repository) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// LoadError returns the failure of the last Load, if any. It lets a UI that
// starts after loading still report the problem.
func (r *Repository) LoadError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadErr
}

// Person returns a copy of a person, primary included.
func (r *Repository) Person(id PersonID) (Person, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.household.Person(id)
	return p.Clone(), ok
}

// IsComplete reports the last completeness recorded for a member.
func (r *Repository) IsComplete(id PersonID) (complete, known bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	complete, known = r.complete[id]
	return complete, known
}

// Subscribe registers a callback run after every effective mutation.
// The returned function unregisters it.
func (r *Repository) Subscribe(fn func(*Household)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.listeners[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

// OnRemove registers a hook run when a member is removed, used to drop
// per-member edit state.
func (r *Repository) OnRemove(fn func(PersonID)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = append(r.onRemove, fn)
}

// AddFamilyMember starts an add-flow: a pending, covered member with a fresh
// id and completeness false. A second spouse is refused, whether the first is
// confirmed or still pending.
func (r *Repository) AddFamilyMember(ctx context.Context, t MemberType) (PersonID, error) {
	if t != MemberSpouse && t != MemberDependent {
		return "", fmt.Errorf("%s: %q", config.ErrInvalidMemberType, t)
	}

	r.mu.Lock()
	if t == MemberSpouse && r.household.HasSpouse() {
		r.mu.Unlock()
		return "", ErrSpouseAlreadyPresent
	}
	id := PersonID(r.NewID())
	next := r.household.Clone()
	next.Pending = append(next.Pending, FamilyMember{
		Person:             Person{ID: id},
		Type:               t,
		IncludedInCoverage: true,
	})
	r.complete[id] = false
	subs := r.swap(next)
	r.mu.Unlock()

	r.Metrics.MemberMutated(MutationAdd)
	slog.DebugContext(ctx, config.MsgMemberAdded,
		config.LogKeyComponent, config.CompHousehold,
		config.LogKeyMemberID, id,
		config.LogKeyType, t,
	)
	notify(subs, next)
	r.save(ctx)
	return id, nil
}

// AddImportedMember inserts a fully built member under a fresh id, confirmed
// when complete is true. The one-spouse rule applies.
func (r *Repository) AddImportedMember(ctx context.Context, m FamilyMember, complete bool) (PersonID, error) {
	r.mu.Lock()
	if m.Type == MemberSpouse && r.household.HasSpouse() {
		r.mu.Unlock()
		return "", ErrSpouseAlreadyPresent
	}
	m = m.Clone()
	m.ID = PersonID(r.NewID())
	if m.Type != MemberSpouse {
		m.Type = MemberDependent
	}
	next := r.household.Clone()
	if complete {
		next.Members = append(next.Members, m)
	} else {
		next.Pending = append(next.Pending, m)
	}
	r.complete[m.ID] = complete
	subs := r.swap(next)
	r.mu.Unlock()

	r.Metrics.MemberMutated(MutationImport)
	notify(subs, next)
	r.save(ctx)
	return m.ID, nil
}

// RemoveFamilyMember deletes a member from both collections and from the
// completeness and edit tracking. Unknown ids are a no-op.
func (r *Repository) RemoveFamilyMember(ctx context.Context, id PersonID) {
	r.mu.Lock()
	if _, _, ok := r.household.Member(id); !ok {
		r.mu.Unlock()
		return
	}
	next := r.household.Clone()
	next.Members = slices.DeleteFunc(next.Members, func(m FamilyMember) bool { return m.ID == id })
	next.Pending = slices.DeleteFunc(next.Pending, func(m FamilyMember) bool { return m.ID == id })
	delete(r.complete, id)
	hooks := slices.Clone(r.onRemove)
	subs := r.swap(next)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook(id)
	}
	r.Metrics.MemberMutated(MutationRemove)
	slog.DebugContext(ctx, config.MsgMemberRemoved,
		config.LogKeyComponent, config.CompHousehold,
		config.LogKeyMemberID, id,
	)
	notify(subs, next)
	r.save(ctx)
}

// RecordFamilyMemberForm is the sub-form callback. data, when given, is merged
// over the stored member keeping its id and type. Nothing happens unless the
// completeness or a field actually changed; the return value says whether the
// household was replaced. A complete member is confirmed, an incomplete one
// goes back to pending.
func (r *Repository) RecordFamilyMemberForm(ctx context.Context, id PersonID, isComplete bool, data *FamilyMember) (bool, error) {
	r.mu.Lock()
	current, confirmed, ok := r.household.Member(id)
	if !ok {
		r.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrUnknownPerson, id)
	}

	merged := current
	if data != nil {
		merged = data.Clone()
		merged.ID = current.ID
		merged.Type = current.Type
		// Sub-forms report every keystroke; partial dates stay in the form.
		merged.DateOfBirth = realDateOrEmpty(merged.DateOfBirth)
	}
	if r.complete[id] == isComplete && merged.Equal(current) {
		r.mu.Unlock()
		return false, nil
	}

	next := r.household.Clone()
	switch {
	case isComplete && confirmed:
		next.Members[indexOf(next.Members, id)] = merged
	case !isComplete && !confirmed:
		next.Pending[indexOf(next.Pending, id)] = merged
	case isComplete:
		next.Pending = slices.DeleteFunc(next.Pending, func(m FamilyMember) bool { return m.ID == id })
		next.Members = append(next.Members, merged)
	default:
		next.Members = slices.DeleteFunc(next.Members, func(m FamilyMember) bool { return m.ID == id })
		next.Pending = append(next.Pending, merged)
	}
	r.complete[id] = isComplete
	subs := r.swap(next)
	r.mu.Unlock()

	r.Metrics.MemberMutated(MutationRecord)
	slog.DebugContext(ctx, config.MsgMemberRecorded,
		config.LogKeyComponent, config.CompHousehold,
		config.LogKeyMemberID, id,
		config.LogKeyComplete, isComplete,
	)
	notify(subs, next)
	r.save(ctx)
	return true, nil
}

// SetIncludedInCoverage changes whether a member counts toward coverage.
func (r *Repository) SetIncludedInCoverage(ctx context.Context, id PersonID, included bool) error {
	_, err := r.updateMember(ctx, id, func(m *FamilyMember) {
		m.IncludedInCoverage = included
	})
	return err
}

// ToggleIncludedInCoverage flips the coverage flag and returns the new value.
func (r *Repository) ToggleIncludedInCoverage(ctx context.Context, id PersonID) (bool, error) {
	m, err := r.updateMember(ctx, id, func(m *FamilyMember) {
		m.IncludedInCoverage = !m.IncludedInCoverage
	})
	return m.IncludedInCoverage, err
}

func (r *Repository) updateMember(ctx context.Context, id PersonID, fn func(*FamilyMember)) (FamilyMember, error) {
	r.mu.Lock()
	current, _, ok := r.household.Member(id)
	if !ok {
		r.mu.Unlock()
		return FamilyMember{}, fmt.Errorf("%w: %s", ErrUnknownPerson, id)
	}
	updated := current.Clone()
	fn(&updated)
	if updated.Equal(current) {
		r.mu.Unlock()
		return current, nil
	}
	next := r.household.Clone()
	replaceMember(next, updated)
	subs := r.swap(next)
	r.mu.Unlock()

	r.Metrics.MemberMutated(MutationToggle)
	notify(subs, next)
	r.save(ctx)
	return updated, nil
}

// SectionValues returns the committed values of one section of one person.
func (r *Repository) SectionValues(owner PersonID, section Section) (Values, error) {
	if SectionFields(section, owner) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner == PrimaryID {
		return personValues(r.household.Primary, section), nil
	}
	m, _, ok := r.household.Member(owner)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPerson, owner)
	}
	return memberValues(m, section), nil
}

// ApplySection validates section values and writes them into the owner's
// record. On validation failure it returns a *ValidationError and changes nothing.
func (r *Repository) ApplySection(ctx context.Context, owner PersonID, section Section, values Values) error {
	if SectionFields(section, owner) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}

	if owner != PrimaryID && section == SectionPersonal {
		if _, ok := values[FieldIncludedInCoverage]; !ok {
			// Coverage decides which personal fields are required.
			if committed, err := r.SectionValues(owner, section); err == nil {
				values = values.Clone()
				values[FieldIncludedInCoverage] = committed[FieldIncludedInCoverage]
			}
		}
	}
	if errs := r.validator.ValidateSection(section, values); errs != nil {
		r.Metrics.ValidationFailed(string(section))
		return &ValidationError{Owner: owner, Section: section, Fields: errs}
	}

	r.mu.Lock()
	next := r.household.Clone()
	if owner == PrimaryID {
		applyPersonValues(&next.Primary, section, values)
		if next.Primary.Equal(r.household.Primary) {
			r.mu.Unlock()
			return nil
		}
	} else {
		m, _, ok := next.Member(owner)
		if !ok {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownPerson, owner)
		}
		before := m.Clone()
		applyMemberValues(&m, section, values)
		if m.Equal(before) {
			r.mu.Unlock()
			return nil
		}
		replaceMember(next, m)
	}
	subs := r.swap(next)
	r.mu.Unlock()

	notify(subs, next)
	return nil
}

// SetIncomeSources replaces a person's income after validating every entry.
func (r *Repository) SetIncomeSources(ctx context.Context, owner PersonID, sources []IncomeSource) error {
	if err := validateIncome(owner, sources); err != nil {
		r.Metrics.ValidationFailed(string(SectionIncome))
		return err
	}
	cloned := make([]IncomeSource, len(sources))
	for i, s := range sources {
		cloned[i] = s.Clone()
		cloned[i].Type = NormalizeText(s.Type)
		cloned[i].Employer = NormalizeText(s.Employer)
	}

	r.mu.Lock()
	next := r.household.Clone()
	if owner == PrimaryID {
		next.Primary.Income = cloned
	} else {
		m, _, ok := next.Member(owner)
		if !ok {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownPerson, owner)
		}
		m.Income = cloned
		replaceMember(next, m)
	}
	subs := r.swap(next)
	r.mu.Unlock()

	notify(subs, next)
	r.save(ctx)
	return nil
}

// SetEligibilityAcknowledged records that the user saw the eligibility notice.
func (r *Repository) SetEligibilityAcknowledged(ctx context.Context, ack bool) {
	r.setStatus(ctx, func(s *Status) { s.EligibilityAcknowledged = ack })
}

// MarkSubmitted records a finished submission.
func (r *Repository) MarkSubmitted(ctx context.Context) {
	r.setStatus(ctx, func(s *Status) { s.EnrollmentSubmitted = true })
}

func (r *Repository) setStatus(ctx context.Context, fn func(*Status)) {
	r.mu.Lock()
	status := r.household.Status
	fn(&status)
	if status == r.household.Status {
		r.mu.Unlock()
		return
	}
	next := r.household.Clone()
	next.Status = status
	subs := r.swap(next)
	r.mu.Unlock()

	notify(subs, next)
	r.save(ctx)
}

// Checkpoint flushes the current household to the persister.
func (r *Repository) Checkpoint(ctx context.Context) error {
	if r.persister == nil {
		return nil
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	h := r.Snapshot()
	if err := r.persister.Save(ctx, h); err != nil {
		r.persistFailed(ctx, config.MetricOpSave, err)
		return fmt.Errorf("%s: %w", config.ErrSaveHousehold, err)
	}
	slog.DebugContext(ctx, config.MsgHouseholdSaved,
		config.LogKeyComponent, config.CompHousehold,
		config.LogKeySize, h.Size(),
	)
	return nil
}

// save is the best-effort checkpoint run after mutations; failures are
// already reported through OnPersistError.
func (r *Repository) save(ctx context.Context) {
	_ = r.Checkpoint(ctx)
}

func (r *Repository) persistFailed(ctx context.Context, op string, err error) {
	r.Metrics.PersistFailed(op)
	slog.ErrorContext(ctx, config.MsgPersistFailed,
		config.LogKeyComponent, config.CompHousehold,
		config.LogKeyMode, op,
		config.LogKeyError, err,
	)
	if r.OnPersistError != nil {
		r.OnPersistError(op, err)
	}
}

// swap installs next and returns the listeners to notify. Caller holds mu.
func (r *Repository) swap(next *Household) []func(*Household) {
	r.household = next
	r.version++
	subs := make([]func(*Household), 0, len(r.listeners))
	for _, fn := range r.listeners {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(*Household), h *Household) {
	for _, fn := range subs {
		fn(h)
	}
}

func replaceMember(h *Household, m FamilyMember) {
	if i := indexOf(h.Members, m.ID); i >= 0 {
		h.Members[i] = m
		return
	}
	if i := indexOf(h.Pending, m.ID); i >= 0 {
		h.Pending[i] = m
	}
}
