package engine_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tartampluch/go-enroll/internal/engine"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

// MockClock controls time for deterministic testing.
type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

// MockFetcher simulates the network layer for unit tests using `testify/mock`.
type MockFetcher struct {
	mock.Mock
}

// Fetch implements the engine.VCardFetcher interface.
func (m *MockFetcher) Fetch(ctx context.Context, url, user, pass string) (io.ReadCloser, error) {
	args := m.Called(ctx, url, user, pass)
	if r := args.Get(0); r != nil {
		return r.(io.ReadCloser), args.Error(1)
	}
	return nil, args.Error(1)
}

// memPersister records saves and can be told to fail.
type memPersister struct {
	mu      sync.Mutex
	loaded  *engine.Household
	loadErr error
	saveErr error
	saved   *engine.Household
	saves   int
}

func (p *memPersister) Load(context.Context) (*engine.Household, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	if p.loaded == nil {
		return engine.NewHousehold(), nil
	}
	return p.loaded.Clone(), nil
}

func (p *memPersister) Save(_ context.Context, h *engine.Household) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saved = h.Clone()
	return nil
}

func (p *memPersister) saveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// countingRecorder implements engine.Recorder.
type countingRecorder struct {
	mu          sync.Mutex
	scans       map[string]int
	validations map[string]int
	persist     map[string]int
	mutations   map[string]int
	submitted   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		scans:       map[string]int{},
		validations: map[string]int{},
		persist:     map[string]int{},
		mutations:   map[string]int{},
	}
}

func (c *countingRecorder) ScanCompleted(o string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scans[o]++
}

func (c *countingRecorder) ValidationFailed(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validations[s]++
}

func (c *countingRecorder) PersistFailed(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persist[op]++
}

func (c *countingRecorder) MemberMutated(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutations[op]++
}

func (c *countingRecorder) Submitted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitted++
}

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

var fixedNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// newTestRepo returns a repository with sequential ids m1, m2, ...
func newTestRepo(t *testing.T) (*engine.Repository, *memPersister) {
	t.Helper()
	p := &memPersister{}
	repo := engine.NewRepository(p, MockClock{CurrentTime: fixedNow})
	n := 0
	repo.NewID = func() string {
		n++
		return fmt.Sprintf("m%d", n)
	}
	return repo, p
}

// completeMember is a member whose personal section validates.
func completeMember(first, dob string) *engine.FamilyMember {
	return &engine.FamilyMember{
		Person: engine.Person{
			FirstName:   first,
			LastName:    "Doe",
			DateOfBirth: dob,
			Gender:      engine.GenderFemale,
			Tobacco:     engine.TobaccoNonSmoker,
		},
		IncludedInCoverage: true,
	}
}
