package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tartampluch/go-enroll/internal/config"
)

// ErrOverrideNotPermitted is returned when bypassing a hard block.
var ErrOverrideNotPermitted = errors.New(config.ErrOverrideForbidden)

// IssueRole says who an eligibility issue is about.
type IssueRole string

const (
	RolePrimary   IssueRole = "primary"
	RoleSpouse    IssueRole = "spouse"
	RoleDependent IssueRole = "dependent"
)

// AgeValidationIssue is an ephemeral scan finding; it is never persisted.
// Index is the member position (confirmed first, then pending), -1 for the primary.
type AgeValidationIssue struct {
	Who       IssueRole
	Index     int
	PersonID  PersonID
	Age       int
	IsOver65  bool
	IsUnder19 bool
}

// ScanResult is the household-wide eligibility picture.
type ScanResult struct {
	Issues   []AgeValidationIssue
	Blocking bool
}

// ScanHousehold classifies the primary and every member not explicitly
// excluded from coverage. Persons without a valid birth date are skipped.
// Any over-65 person makes the result blocking; under-19 alone is advisory.
func ScanHousehold(h *Household, today time.Time) ScanResult {
	var res ScanResult
	seen := make(map[PersonID]struct{})

	add := func(p Person, who IssueRole, index int) {
		if _, dup := seen[p.ID]; dup {
			return
		}
		e, ok := ClassifyText(p.DateOfBirth, today)
		if !ok || !e.Flagged() {
			return
		}
		seen[p.ID] = struct{}{}
		res.Issues = append(res.Issues, AgeValidationIssue{
			Who:       who,
			Index:     index,
			PersonID:  p.ID,
			Age:       e.Age,
			IsOver65:  e.IsOver65,
			IsUnder19: e.IsUnder19,
		})
		if e.IsOver65 {
			res.Blocking = true
		}
	}

	add(h.Primary, RolePrimary, -1)
	for i, m := range h.AllMembers() {
		if !m.IncludedInCoverage {
			continue
		}
		who := RoleDependent
		if m.Type == MemberSpouse {
			who = RoleSpouse
		}
		add(m.Person, who, i)
	}
	return res
}

// GatePolicy decides what a blocking scan does at a call site.
type GatePolicy int

const (
	// PolicyHardBlock refuses to advance while blocking.
	PolicyHardBlock GatePolicy = iota
	// PolicySoftBlockWithOverride lets the user continue anyway.
	PolicySoftBlockWithOverride
)

func (p GatePolicy) String() string {
	if p == PolicySoftBlockWithOverride {
		return "soft-block-with-override"
	}
	return "hard-block"
}

// GateOutcome summarizes a scan.
type GateOutcome int

const (
	GateClear GateOutcome = iota
	GateAdvisory
	GateBlocked
)

func (o GateOutcome) String() string {
	switch o {
	case GateAdvisory:
		return config.MetricOutcomeAdvisory
	case GateBlocked:
		return config.MetricOutcomeBlocked
	}
	return config.MetricOutcomeClear
}

// Gate is the eligibility check run before forward navigation at one call site.
// An override only holds for the household version it was granted on.
type Gate struct {
	repo   *Repository
	clock  Clock
	policy GatePolicy

	mu              sync.Mutex
	last            ScanResult
	outcome         GateOutcome
	noticePending   bool
	ackVersion      uint64
	acked           bool
	overridden      bool
	overrideVersion uint64
}

// NewGate creates a gate for one call site.
func NewGate(repo *Repository, clock Clock, policy GatePolicy) *Gate {
	return &Gate{repo: repo, clock: clock, policy: policy}
}

// Policy returns the configured policy.
func (g *Gate) Policy() GatePolicy { return g.policy }

// Evaluate scans the current household. Any issue leaves a notice pending
// until Acknowledge or Dismiss, unless it was already acknowledged for this
// household version.
func (g *Gate) Evaluate(ctx context.Context) (ScanResult, GateOutcome) {
	version := g.repo.Version()
	res := ScanHousehold(g.repo.Snapshot(), g.clock.Now())

	outcome := GateClear
	switch {
	case res.Blocking:
		outcome = GateBlocked
	case len(res.Issues) > 0:
		outcome = GateAdvisory
	}

	g.mu.Lock()
	g.last = res
	g.outcome = outcome
	g.noticePending = len(res.Issues) > 0 && !(g.acked && g.ackVersion == version)
	if g.overridden && g.overrideVersion != version {
		g.overridden = false
	}
	g.mu.Unlock()

	g.repo.Metrics.ScanCompleted(outcome.String())
	slog.DebugContext(ctx, config.MsgEligibilityScan,
		config.LogKeyComponent, config.CompGate,
		config.LogKeyPolicy, g.policy.String(),
		config.LogKeyIssues, len(res.Issues),
		config.LogKeyBlocking, res.Blocking,
	)
	return res, outcome
}

// Last returns the most recent scan.
func (g *Gate) Last() (ScanResult, GateOutcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.outcome
}

// Acknowledge closes the notice and records that the user saw it.
func (g *Gate) Acknowledge(ctx context.Context) {
	g.repo.SetEligibilityAcknowledged(ctx, true)
	version := g.repo.Version()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.noticePending = false
	g.acked = true
	g.ackVersion = version
}

// Dismiss closes the notice without recording anything.
func (g *Gate) Dismiss() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.noticePending = false
}

// Override is the "continue anyway" choice. It fails under PolicyHardBlock.
func (g *Gate) Override(ctx context.Context) error {
	if g.policy == PolicyHardBlock {
		return ErrOverrideNotPermitted
	}
	g.Acknowledge(ctx)

	g.mu.Lock()
	g.overridden = true
	g.overrideVersion = g.repo.Version()
	g.mu.Unlock()

	slog.InfoContext(ctx, config.MsgGateOverride,
		config.LogKeyComponent, config.CompGate,
		config.LogKeyPolicy, g.policy.String(),
	)
	return nil
}

// NoticePending reports an unacknowledged eligibility notice.
func (g *Gate) NoticePending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.noticePending
}

// MayAdvance applies the policy to the last evaluation.
func (g *Gate) MayAdvance() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.outcome != GateBlocked {
		return true
	}
	return g.policy == PolicySoftBlockWithOverride &&
		g.overridden &&
		g.overrideVersion == g.repo.Version()
}

// ContinueResult is what a "continue" action needs to render.
type ContinueResult struct {
	// Validation is the validation failure, if any; the gate is not run then.
	Validation error
	Scan       ScanResult
	Outcome    GateOutcome
	Advance    bool
}

// Continue runs validation and then the gate, in that order. When both pass
// the household is checkpointed before navigation proceeds.
func (g *Gate) Continue(ctx context.Context, validate func(context.Context) error) ContinueResult {
	if validate != nil {
		if err := validate(ctx); err != nil {
			return ContinueResult{Validation: err}
		}
	}

	scan, outcome := g.Evaluate(ctx)
	res := ContinueResult{Scan: scan, Outcome: outcome, Advance: g.MayAdvance()}
	if !res.Advance {
		slog.InfoContext(ctx, config.MsgNavigationBlocked,
			config.LogKeyComponent, config.CompGate,
			config.LogKeyPolicy, g.policy.String(),
		)
		return res
	}
	_ = g.repo.Checkpoint(ctx)
	return res
}

// ValidateHousehold is the validation step for review-stage navigation.
func (r *Repository) ValidateHousehold(_ context.Context) error {
	err := r.validator.ValidateHousehold(r.Snapshot())
	var verr *ValidationError
	if errors.As(err, &verr) {
		r.Metrics.ValidationFailed(string(verr.Section))
	}
	return err
}
