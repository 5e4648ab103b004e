package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
)

func seedPrimary(t *testing.T, repo *engine.Repository) {
	t.Helper()
	ctrl := engine.NewEditController(repo)
	_, err := ctrl.BeginEdit(engine.PrimaryID, engine.SectionPersonal)
	require.NoError(t, err)
	for f, v := range validPersonal() {
		require.NoError(t, ctrl.UpdateDraft(engine.PrimaryID, engine.SectionPersonal, f, v))
	}
	require.NoError(t, ctrl.Commit(context.Background(), engine.PrimaryID, engine.SectionPersonal))
}

func TestEditController_CancelLeavesModelUntouched(t *testing.T) {
	repo, p := newTestRepo(t)
	seedPrimary(t, repo)
	ctrl := engine.NewEditController(repo)

	before := repo.Snapshot()
	beforeCopy := before.Clone()
	saves := p.saveCount()

	_, err := ctrl.BeginEdit(engine.PrimaryID, engine.SectionPersonal)
	require.NoError(t, err)
	require.NoError(t, ctrl.UpdateDraft(engine.PrimaryID, engine.SectionPersonal, engine.FieldFirstName, "Mallory"))
	require.NoError(t, ctrl.UpdateDraft(engine.PrimaryID, engine.SectionPersonal, engine.FieldDateOfBirth, "12/12/1912"))
	require.NoError(t, ctrl.UpdateDraft(engine.PrimaryID, engine.SectionPersonal, engine.FieldGender, "male"))

	assert.Same(t, before, repo.Snapshot(), "drafts never touch the model")
	ctrl.Cancel(engine.PrimaryID, engine.SectionPersonal)

	assert.False(t, ctrl.IsEditing(engine.PrimaryID, engine.SectionPersonal))
	assert.Same(t, before, repo.Snapshot())
	assert.Equal(t, beforeCopy, repo.Snapshot())
	assert.Equal(t, saves, p.saveCount())

	// Cancelling again is harmless.
	ctrl.Cancel(engine.PrimaryID, engine.SectionPersonal)
}

func TestEditController_BeginEditSeedsFromCommitted(t *testing.T) {
	repo, _ := newTestRepo(t)
	seedPrimary(t, repo)
	ctrl := engine.NewEditController(repo)

	draft, err := ctrl.BeginEdit(engine.PrimaryID, engine.SectionPersonal)
	require.NoError(t, err)
	assert.Equal(t, "Ann", draft[engine.FieldFirstName])
	assert.Equal(t, "01/02/1980", draft[engine.FieldDateOfBirth])
	assert.Equal(t, "non-smoker", draft[engine.FieldTobaccoUsage])

	// A second BeginEdit keeps the draft in progress.
	require.NoError(t, ctrl.UpdateDraft(engine.PrimaryID, engine.SectionPersonal, engine.FieldFirstName, "Anne"))
	draft, err = ctrl.BeginEdit(engine.PrimaryID, engine.SectionPersonal)
	require.NoError(t, err)
	assert.Equal(t, "Anne", draft[engine.FieldFirstName])
}

func TestEditController_CommitRejected(t *testing.T) {
	repo, _ := newTestRepo(t)
	rec := newCountingRecorder()
	repo.Metrics = rec
	ctrl := engine.NewEditController(repo)

	_, err := ctrl.BeginEdit(engine.PrimaryID, engine.SectionContact)
	require.NoError(t, err)
	require.NoError(t, ctrl.UpdateDraft(engine.PrimaryID, engine.SectionContact, engine.FieldEmail, "not-an-email"))

	before := repo.Snapshot()
	err = ctrl.Commit(context.Background(), engine.PrimaryID, engine.SectionContact)

	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, ctrl.IsEditing(engine.PrimaryID, engine.SectionContact), "stays in edit mode")
	assert.Equal(t, engine.FieldErrors{
		engine.FieldEmail: config.CodeInvalidEmail,
		engine.FieldPhone: config.CodeRequired,
	}, ctrl.Errors(engine.PrimaryID, engine.SectionContact))
	assert.Same(t, before, repo.Snapshot(), "no partial commit")
	assert.Equal(t, 1, rec.validations[string(engine.SectionContact)])

	draft, ok := ctrl.Draft(engine.PrimaryID, engine.SectionContact)
	require.True(t, ok)
	assert.Equal(t, "not-an-email", draft[engine.FieldEmail])
}

func TestEditController_CommitSuccess(t *testing.T) {
	repo, p := newTestRepo(t)
	ctrl := engine.NewEditController(repo)
	ctx := context.Background()

	_, err := ctrl.BeginEdit(engine.PrimaryID, engine.SectionAddress)
	require.NoError(t, err)
	for f, v := range map[string]string{
		engine.FieldStreet: " 1   Main St ",
		engine.FieldCity:   "Springfield",
		engine.FieldState:  "IL",
		engine.FieldZip:    "62701",
	} {
		require.NoError(t, ctrl.UpdateDraft(engine.PrimaryID, engine.SectionAddress, f, v))
	}
	require.NoError(t, ctrl.Commit(ctx, engine.PrimaryID, engine.SectionAddress))

	assert.False(t, ctrl.IsEditing(engine.PrimaryID, engine.SectionAddress))
	assert.Nil(t, ctrl.Errors(engine.PrimaryID, engine.SectionAddress))
	addr := repo.Snapshot().Primary.Address
	assert.Equal(t, "1 Main St", addr.Street)
	assert.Equal(t, "62701", addr.Zip)
	require.NotNil(t, p.saved, "commit is a checkpoint")
	assert.Equal(t, "Springfield", p.saved.Primary.Address.City)
}

func TestEditController_CommitSurvivesPersistFailure(t *testing.T) {
	repo, p := newTestRepo(t)
	p.saveErr = errors.New("offline")
	ctrl := engine.NewEditController(repo)

	_, err := ctrl.BeginEdit(engine.PrimaryID, engine.SectionIntake)
	require.NoError(t, err)
	require.NoError(t, ctrl.UpdateDraft(engine.PrimaryID, engine.SectionIntake, engine.FieldDateOfBirth, "1/2/1990"))
	require.NoError(t, ctrl.UpdateDraft(engine.PrimaryID, engine.SectionIntake, engine.FieldGender, "male"))
	require.NoError(t, ctrl.UpdateDraft(engine.PrimaryID, engine.SectionIntake, engine.FieldTobaccoUsage, "no"))

	require.NoError(t, ctrl.Commit(context.Background(), engine.PrimaryID, engine.SectionIntake))
	h := repo.Snapshot()
	assert.Equal(t, "01/02/1990", h.Primary.DateOfBirth, "stored canonically")
	assert.Equal(t, engine.TobaccoNonSmoker, h.Primary.Tobacco)
}

func TestEditController_Errors(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctrl := engine.NewEditController(repo)
	ctx := context.Background()

	err := ctrl.UpdateDraft(engine.PrimaryID, engine.SectionContact, engine.FieldEmail, "x")
	assert.ErrorIs(t, err, engine.ErrNotEditing)

	err = ctrl.Commit(ctx, engine.PrimaryID, engine.SectionContact)
	assert.ErrorIs(t, err, engine.ErrNotEditing)

	_, err = ctrl.BeginEdit(engine.PrimaryID, engine.SectionContact)
	require.NoError(t, err)
	err = ctrl.UpdateDraft(engine.PrimaryID, engine.SectionContact, engine.FieldZip, "x")
	assert.ErrorIs(t, err, engine.ErrUnknownField)

	_, err = ctrl.BeginEdit(engine.PrimaryID, "bogus")
	assert.ErrorIs(t, err, engine.ErrUnknownSection)

	_, err = ctrl.BeginEdit("ghost", engine.SectionContact)
	assert.ErrorIs(t, err, engine.ErrUnknownPerson)
}

func TestEditController_MemberSections(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctrl := engine.NewEditController(repo)
	ctx := context.Background()

	id, _ := repo.AddFamilyMember(ctx, engine.MemberDependent)
	draft, err := ctrl.BeginEdit(id, engine.SectionPersonal)
	require.NoError(t, err)
	assert.Equal(t, "true", draft[engine.FieldIncludedInCoverage])
	_, hasHealth := draft[engine.FieldHealthStatus]
	assert.False(t, hasHealth)

	// Excluding from coverage relaxes the required set.
	require.NoError(t, ctrl.UpdateDraft(id, engine.SectionPersonal, engine.FieldIncludedInCoverage, "false"))
	require.NoError(t, ctrl.UpdateDraft(id, engine.SectionPersonal, engine.FieldFirstName, "<i>Tim</i>"))
	require.NoError(t, ctrl.Commit(ctx, id, engine.SectionPersonal))

	m, _, _ := repo.Snapshot().Member(id)
	assert.False(t, m.IncludedInCoverage)
	assert.Equal(t, "Tim", m.FirstName)

	// Removing the member drops its sessions.
	_, err = ctrl.BeginEdit(id, engine.SectionContact)
	require.NoError(t, err)
	repo.RemoveFamilyMember(ctx, id)
	assert.False(t, ctrl.IsEditing(id, engine.SectionContact))
}
