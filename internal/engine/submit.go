package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tartampluch/go-enroll/internal/config"
)

var (
	ErrSubmissionInFlight = errors.New(config.ErrSubmitInFlight)
	ErrAlreadySubmitted   = errors.New(config.ErrAlreadySubmitted)
	ErrEligibilityBlocked = errors.New(config.ErrEligibilityBlock)
	// ErrNoticeUnacknowledged means the gate found issues the user has not seen yet.
	ErrNoticeUnacknowledged = errors.New(config.ErrNoticeUnacked)
)

// Receipt confirms a finished submission.
type Receipt struct {
	ConfirmationID string
	SubmittedAt    time.Time
	HouseholdSize  int
}

// Submitter finalizes the enrollment. The pause before completion stands in
// for a backend round trip; it ignores cancellation, and a second Submit while
// one is running is refused instead of racing.
type Submitter struct {
	repo *Repository
	gate *Gate

	Clock Clock
	Delay time.Duration
	// Sleep waits for d. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration)
	NewID func() string

	inFlight atomic.Bool
}

// NewSubmitter wires a submitter. gate may be nil when the caller already ran Continue.
func NewSubmitter(repo *Repository, gate *Gate, clock Clock, delay time.Duration) *Submitter {
	return &Submitter{
		repo:  repo,
		gate:  gate,
		Clock: clock,
		Delay: delay,
		Sleep: sleepContext,
		NewID: uuid.NewString,
	}
}

// Busy reports a submission in progress; the UI disables its trigger meanwhile.
func (s *Submitter) Busy() bool {
	return s.inFlight.Load()
}

// Submit validates the household, checks the gate, waits the configured delay
// and records the submission. Eligibility issues must be acknowledged first.
func (s *Submitter) Submit(ctx context.Context) (Receipt, error) {
	log := slog.With(config.LogKeyComponent, config.CompSubmit)

	if !s.inFlight.CompareAndSwap(false, true) {
		log.WarnContext(ctx, config.MsgSubmitSuppressed)
		return Receipt{}, ErrSubmissionInFlight
	}
	defer s.inFlight.Store(false)

	if s.repo.Snapshot().Status.EnrollmentSubmitted {
		return Receipt{}, ErrAlreadySubmitted
	}

	if s.gate != nil {
		res := s.gate.Continue(ctx, s.repo.ValidateHousehold)
		if res.Validation != nil {
			return Receipt{}, res.Validation
		}
		if !res.Advance {
			return Receipt{}, ErrEligibilityBlocked
		}
		if s.gate.NoticePending() {
			return Receipt{}, ErrNoticeUnacknowledged
		}
	} else if err := s.repo.ValidateHousehold(ctx); err != nil {
		return Receipt{}, err
	}

	log.InfoContext(ctx, config.MsgSubmitStart)
	start := s.Clock.Now()
	s.Sleep(context.WithoutCancel(ctx), s.Delay)

	h := s.repo.Snapshot()
	receipt := Receipt{
		ConfirmationID: s.NewID(),
		SubmittedAt:    s.Clock.Now(),
		HouseholdSize:  h.Size(),
	}
	s.repo.MarkSubmitted(context.WithoutCancel(ctx))
	s.repo.Metrics.Submitted()

	log.InfoContext(ctx, config.MsgSubmitDone,
		config.LogKeyConfirm, receipt.ConfirmationID,
		config.LogKeySize, receipt.HouseholdSize,
		config.LogKeyDuration, receipt.SubmittedAt.Sub(start).Milliseconds(),
	)
	return receipt, nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
