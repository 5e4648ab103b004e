package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
)

// Adapter maps a household onto the key-value store. It implements engine.Persister.
//
// Absent keys read as defaults and malformed values are logged and replaced
// by defaults. Only store I/O failures are returned as errors.
// Save calls must not overlap; the repository serializes them.
type Adapter struct {
	kv    KV
	vault Vault

	// NewID backfills member records persisted without an id.
	NewID func() string

	// known holds the member ids written by the last load or save so that
	// keys of removed members can be cleaned up.
	known map[engine.PersonID]bool
}

// NewAdapter creates an adapter. vault may be nil, in which case SSNs stay in
// the JSON profile.
func NewAdapter(kv KV, vault Vault) *Adapter {
	return &Adapter{
		kv:    kv,
		vault: vault,
		NewID: uuid.NewString,
		known: make(map[engine.PersonID]bool),
	}
}

func incomeKey(id engine.PersonID) string {
	if id == engine.PrimaryID {
		return config.KeyIncomeSources
	}
	return config.KeyIncomeSourcesPrefix + string(id)
}

// Load reads the whole household.
func (a *Adapter) Load(ctx context.Context) (*engine.Household, error) {
	h := engine.NewHousehold()

	primary, err := readJSON[personRecord](ctx, a, config.KeyPrimaryApplicant)
	if err != nil {
		return nil, err
	}
	h.Primary = primary.person()
	h.Primary.ID = engine.PrimaryID

	// The intake screen writes these keys on their own; they win over the profile.
	if v, ok, err := a.get(ctx, config.KeyDateOfBirth); err != nil {
		return nil, err
	} else if ok {
		h.Primary.DateOfBirth = v
	}
	if v, ok, err := a.get(ctx, config.KeyGender); err != nil {
		return nil, err
	} else if ok {
		if g, valid := engine.ParseGender(v); valid {
			h.Primary.Gender = g
		} else {
			a.malformed(ctx, config.KeyGender, nil)
		}
	}
	if v, ok, err := a.get(ctx, config.KeyTobaccoUsage); err != nil {
		return nil, err
	} else if ok {
		if t, valid := engine.ParseTobaccoUsage(v); valid {
			h.Primary.Tobacco = t
		} else {
			a.malformed(ctx, config.KeyTobaccoUsage, nil)
		}
	}

	confirmed, err := readJSON[[]memberRecord](ctx, a, config.KeyFamilyMembers)
	if err != nil {
		return nil, err
	}
	pending, err := readJSON[[]memberRecord](ctx, a, config.KeyPendingFamilyMembers)
	if err != nil {
		return nil, err
	}
	seen := make(map[engine.PersonID]bool)
	spouse := false
	h.Members = a.normalize(ctx, confirmed, seen, &spouse)
	h.Pending = a.normalize(ctx, pending, seen, &spouse)

	people := []*engine.Person{&h.Primary}
	for i := range h.Members {
		people = append(people, &h.Members[i].Person)
	}
	for i := range h.Pending {
		people = append(people, &h.Pending[i].Person)
	}
	for _, p := range people {
		income, err := readJSON[[]incomeRecord](ctx, a, incomeKey(p.ID))
		if err != nil {
			return nil, err
		}
		p.Income = fromIncomeRecords(income)
		a.readSecret(ctx, p)
	}

	if h.Status.EligibilityAcknowledged, err = a.readFlag(ctx, config.KeyEligibilityAcknowledged); err != nil {
		return nil, err
	}
	if h.Status.EnrollmentSubmitted, err = a.readFlag(ctx, config.KeyEnrollmentSubmitted); err != nil {
		return nil, err
	}

	a.known = seen

	slog.DebugContext(ctx, config.MsgHouseholdLoaded,
		config.LogKeyComponent, config.CompStore,
		config.LogKeySize, h.Size(),
	)
	return h, nil
}

// normalize backfills stale records, drops duplicates and demotes every
// spouse after the first one.
func (a *Adapter) normalize(ctx context.Context, records []memberRecord, seen map[engine.PersonID]bool, spouse *bool) []engine.FamilyMember {
	if len(records) == 0 {
		return nil
	}
	log := slog.With(slog.String(config.LogKeyComponent, config.CompStore))

	out := make([]engine.FamilyMember, 0, len(records))
	for _, r := range records {
		backfilled := false
		if r.ID == "" || engine.PersonID(r.ID) == engine.PrimaryID {
			r.ID = a.NewID()
			backfilled = true
		}
		m := engine.FamilyMember{
			Person:             r.person(),
			Type:               engine.MemberType(r.Type),
			IncludedInCoverage: true,
		}
		if r.IncludedInCoverage != nil {
			m.IncludedInCoverage = *r.IncludedInCoverage
		} else {
			backfilled = true
		}
		if m.Type != engine.MemberSpouse && m.Type != engine.MemberDependent {
			m.Type = engine.MemberDependent
			backfilled = true
		}
		if backfilled {
			log.DebugContext(ctx, config.MsgBackfilled, config.LogKeyMemberID, string(m.ID))
		}

		if seen[m.ID] {
			log.WarnContext(ctx, config.MsgDroppedDuplicate, config.LogKeyMemberID, string(m.ID))
			continue
		}
		seen[m.ID] = true

		if m.Type == engine.MemberSpouse {
			if *spouse {
				m.Type = engine.MemberDependent
				log.WarnContext(ctx, config.MsgDemotedSpouse, config.LogKeyMemberID, string(m.ID))
			}
			*spouse = true
		}
		out = append(out, m)
	}
	return out
}

// Save writes the whole household and removes keys of members that are gone.
func (a *Adapter) Save(ctx context.Context, h *engine.Household) error {
	primary := h.Primary.Clone()
	primary.ID = engine.PrimaryID
	if err := a.writeSecret(primary.ID, primary.Identity.SSN); err != nil {
		return err
	}
	rec := toPersonRecord(primary, primaryTobacco(primary.Tobacco))
	if a.vault != nil {
		rec.SSN = ""
	}
	if err := a.writeJSON(ctx, config.KeyPrimaryApplicant, rec); err != nil {
		return err
	}
	if err := a.setOrRemove(ctx, config.KeyDateOfBirth, primary.DateOfBirth); err != nil {
		return err
	}
	if err := a.setOrRemove(ctx, config.KeyGender, string(primary.Gender)); err != nil {
		return err
	}
	if err := a.setOrRemove(ctx, config.KeyTobaccoUsage, primaryTobacco(primary.Tobacco)); err != nil {
		return err
	}
	if err := a.writeIncome(ctx, primary.ID, primary.Income); err != nil {
		return err
	}

	current := make(map[engine.PersonID]bool, len(h.Members)+len(h.Pending))
	encode := func(members []engine.FamilyMember) ([]memberRecord, error) {
		out := make([]memberRecord, 0, len(members))
		for _, m := range members {
			current[m.ID] = true
			if err := a.writeSecret(m.ID, m.Identity.SSN); err != nil {
				return nil, err
			}
			if err := a.writeIncome(ctx, m.ID, m.Income); err != nil {
				return nil, err
			}
			r := toMemberRecord(m)
			if a.vault != nil {
				r.SSN = ""
			}
			out = append(out, r)
		}
		return out, nil
	}

	confirmed, err := encode(h.Members)
	if err != nil {
		return err
	}
	pending, err := encode(h.Pending)
	if err != nil {
		return err
	}
	if err := a.writeJSON(ctx, config.KeyFamilyMembers, confirmed); err != nil {
		return err
	}
	if err := a.writeJSON(ctx, config.KeyPendingFamilyMembers, pending); err != nil {
		return err
	}

	for id := range a.known {
		if current[id] {
			continue
		}
		if err := a.remove(ctx, incomeKey(id)); err != nil {
			return err
		}
		if err := a.writeSecret(id, ""); err != nil {
			return err
		}
	}
	a.known = current

	if err := a.set(ctx, config.KeyEligibilityAcknowledged, flag(h.Status.EligibilityAcknowledged)); err != nil {
		return err
	}
	if err := a.set(ctx, config.KeyEnrollmentSubmitted, flag(h.Status.EnrollmentSubmitted)); err != nil {
		return err
	}

	slog.DebugContext(ctx, config.MsgHouseholdSaved,
		config.LogKeyComponent, config.CompStore,
		config.LogKeySize, h.Size(),
	)
	return nil
}

func flag(b bool) string {
	if b {
		return config.ValueTrue
	}
	return config.ValueFalse
}

func (a *Adapter) get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := a.kv.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("%s: %s: %w", config.ErrStoreGet, key, err)
	}
	return v, ok && v != "", nil
}

func (a *Adapter) set(ctx context.Context, key, value string) error {
	if err := a.kv.Set(ctx, key, value); err != nil {
		return fmt.Errorf("%s: %s: %w", config.ErrStoreSet, key, err)
	}
	return nil
}

func (a *Adapter) remove(ctx context.Context, key string) error {
	if err := a.kv.Remove(ctx, key); err != nil {
		return fmt.Errorf("%s: %s: %w", config.ErrStoreRemove, key, err)
	}
	return nil
}

func (a *Adapter) setOrRemove(ctx context.Context, key, value string) error {
	if value == "" {
		return a.remove(ctx, key)
	}
	return a.set(ctx, key, value)
}

// readJSON decodes key. A malformed value is logged and yields the zero value.
func readJSON[T any](ctx context.Context, a *Adapter, key string) (T, error) {
	var out T
	v, ok, err := a.get(ctx, key)
	if err != nil || !ok {
		return out, err
	}
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		a.malformed(ctx, key, err)
		var zero T
		return zero, nil
	}
	return out, nil
}

func (a *Adapter) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrEncodeSnapshot, err)
	}
	return a.set(ctx, key, string(data))
}

func (a *Adapter) writeIncome(ctx context.Context, id engine.PersonID, sources []engine.IncomeSource) error {
	if len(sources) == 0 {
		return a.remove(ctx, incomeKey(id))
	}
	return a.writeJSON(ctx, incomeKey(id), toIncomeRecords(sources))
}

func (a *Adapter) readFlag(ctx context.Context, key string) (bool, error) {
	v, ok, err := a.get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	switch v {
	case config.ValueTrue:
		return true, nil
	case config.ValueFalse:
		return false, nil
	}
	a.malformed(ctx, key, nil)
	return false, nil
}

func (a *Adapter) malformed(ctx context.Context, key string, err error) {
	attrs := []any{
		config.LogKeyComponent, config.CompStore,
		config.LogKeyKey, key,
	}
	if err != nil {
		attrs = append(attrs, config.LogKeyError, err)
	}
	slog.WarnContext(ctx, config.MsgMalformedKey, attrs...)
}

// readSecret replaces the SSN with the vault copy when there is one.
// A vault failure keeps whatever the profile held.
func (a *Adapter) readSecret(ctx context.Context, p *engine.Person) {
	if a.vault == nil {
		return
	}
	secret, err := a.vault.Get(string(p.ID))
	if err != nil {
		slog.WarnContext(ctx, config.ErrVaultRead,
			config.LogKeyComponent, config.CompStore,
			config.LogKeyMemberID, string(p.ID),
			config.LogKeyError, err,
		)
		return
	}
	if secret != "" {
		p.Identity.SSN = secret
	}
}

func (a *Adapter) writeSecret(id engine.PersonID, secret string) error {
	if a.vault == nil {
		return nil
	}
	if secret == "" {
		return a.vault.Delete(string(id))
	}
	return a.vault.Set(string(id), secret)
}
