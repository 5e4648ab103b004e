package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/tartampluch/go-enroll/internal/config"
)

var (
	ErrNotEditing   = errors.New(config.ErrNotEditing)
	ErrUnknownField = errors.New(config.ErrUnknownField)
)

// EditKey identifies one section of one person.
type EditKey struct {
	Owner   PersonID
	Section Section
}

type editSession struct {
	draft  Values
	errors FieldErrors
}

// EditController runs begin-edit, validate, commit-or-cancel per EditKey.
// A key is either absent (not editing) or holds a draft; commit applies the
// whole draft or nothing.
type EditController struct {
	mu       sync.Mutex
	repo     *Repository
	sessions map[EditKey]*editSession
}

// NewEditController binds a controller to a repository and drops sessions
// of removed members.
func NewEditController(repo *Repository) *EditController {
	c := &EditController{
		repo:     repo,
		sessions: make(map[EditKey]*editSession),
	}
	repo.OnRemove(c.Forget)
	return c
}

// BeginEdit opens a draft seeded from the committed record. Calling it on a
// section already being edited keeps the existing draft.
func (c *EditController) BeginEdit(owner PersonID, section Section) (Values, error) {
	key := EditKey{owner, section}

	c.mu.Lock()
	if s, ok := c.sessions[key]; ok {
		draft := s.draft.Clone()
		c.mu.Unlock()
		return draft, nil
	}
	c.mu.Unlock()

	committed, err := c.repo.SectionValues(owner, section)
	if err != nil {
		return nil, err
	}

	draft := make(Values, len(committed))
	for _, f := range SectionFields(section, owner) {
		draft[f] = ""
	}
	// Seed blank draft fields from the committed record.
	for f, v := range committed {
		if _, known := draft[f]; known && strings.TrimSpace(draft[f]) == "" {
			draft[f] = v
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[key]; ok {
		return s.draft.Clone(), nil
	}
	c.sessions[key] = &editSession{draft: draft}
	slog.Debug(config.MsgEditBegin,
		config.LogKeyComponent, config.CompEdit,
		config.LogKeyOwner, owner,
		config.LogKeySection, section,
	)
	return draft.Clone(), nil
}

// UpdateDraft changes one draft field. The committed household is untouched.
func (c *EditController) UpdateDraft(owner PersonID, section Section, field, value string) error {
	key := EditKey{owner, section}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[key]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotEditing, owner, section)
	}
	if !slices.Contains(SectionFields(section, owner), field) {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	s.draft[field] = value
	return nil
}

// Commit validates the draft and merges it into the household. On validation
// failure the section stays in edit mode, the field errors are kept for
// Errors and a *ValidationError is returned. A successful commit is followed
// by a persistence checkpoint whose failure does not undo the commit.
func (c *EditController) Commit(ctx context.Context, owner PersonID, section Section) error {
	key := EditKey{owner, section}
	c.mu.Lock()
	s, ok := c.sessions[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrNotEditing, owner, section)
	}
	draft := s.draft.Clone()
	c.mu.Unlock()

	log := slog.With(
		config.LogKeyComponent, config.CompEdit,
		config.LogKeyOwner, owner,
		config.LogKeySection, section,
	)

	if err := c.repo.ApplySection(ctx, owner, section, draft); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			c.mu.Lock()
			if s, ok := c.sessions[key]; ok {
				s.errors = verr.Fields
			}
			c.mu.Unlock()
			log.DebugContext(ctx, config.MsgEditRejected, config.LogKeyFields, len(verr.Fields))
		}
		return err
	}

	c.mu.Lock()
	delete(c.sessions, key)
	c.mu.Unlock()
	log.DebugContext(ctx, config.MsgEditCommit)

	_ = c.repo.Checkpoint(ctx)
	return nil
}

// Cancel discards the draft. Cancelling a section not in edit mode is a no-op.
func (c *EditController) Cancel(owner PersonID, section Section) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[EditKey{owner, section}]; !ok {
		return
	}
	delete(c.sessions, EditKey{owner, section})
	slog.Debug(config.MsgEditCancel,
		config.LogKeyComponent, config.CompEdit,
		config.LogKeyOwner, owner,
		config.LogKeySection, section,
	)
}

// IsEditing reports whether a draft exists.
func (c *EditController) IsEditing(owner PersonID, section Section) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sessions[EditKey{owner, section}]
	return ok
}

// Draft returns a copy of the current draft.
func (c *EditController) Draft(owner PersonID, section Section) (Values, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[EditKey{owner, section}]
	if !ok {
		return nil, false
	}
	return s.draft.Clone(), true
}

// Errors returns the field errors of the last rejected commit.
func (c *EditController) Errors(owner PersonID, section Section) FieldErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[EditKey{owner, section}]
	if !ok || len(s.errors) == 0 {
		return nil
	}
	out := make(FieldErrors, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// Forget drops every session of an owner.
func (c *EditController) Forget(owner PersonID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.sessions {
		if key.Owner == owner {
			delete(c.sessions, key)
		}
	}
}
