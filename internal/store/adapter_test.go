package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
	"github.com/tartampluch/go-enroll/internal/store"
)

func newAdapter(kv store.KV, vault store.Vault) *store.Adapter {
	a := store.NewAdapter(kv, vault)
	n := 0
	a.NewID = func() string {
		n++
		return fmt.Sprintf("gen%d", n)
	}
	return a
}

func sampleHousehold() *engine.Household {
	h := engine.NewHousehold()
	h.Primary.FirstName = "Dana"
	h.Primary.LastName = "Reyes"
	h.Primary.DateOfBirth = "03/14/1980"
	h.Primary.Gender = engine.GenderFemale
	h.Primary.Tobacco = engine.TobaccoSmoker
	h.Primary.HealthStatus = engine.HealthGreat
	h.Primary.Address = engine.Address{Street: "1 Main St", City: "Austin", State: "TX", Zip: "78701"}
	h.Primary.Identity.SSN = "123-45-6789"
	h.Primary.Income = []engine.IncomeSource{{Type: "job", Frequency: engine.FrequencyMonthly, Amount: 4000, Employer: "Acme"}}

	h.Members = []engine.FamilyMember{{
		Person: engine.Person{
			ID: "s1", FirstName: "Sam", LastName: "Reyes", DateOfBirth: "07/01/1979",
			Gender: engine.GenderMale, Tobacco: engine.TobaccoNonSmoker,
			Identity: engine.Identity{SSN: "987-65-4321"},
			Income:   []engine.IncomeSource{{Type: "self", Frequency: engine.FrequencyYearly, Amount: 20000}},
		},
		Type:               engine.MemberSpouse,
		IncludedInCoverage: true,
	}}
	h.Pending = []engine.FamilyMember{{
		Person:             engine.Person{ID: "d1", FirstName: "Kid"},
		Type:               engine.MemberDependent,
		IncludedInCoverage: false,
	}}
	h.Status.EligibilityAcknowledged = true
	return h
}

func TestAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	a := newAdapter(kv, nil)

	want := sampleHousehold()
	require.NoError(t, a.Save(ctx, want))

	got, err := newAdapter(kv, nil).Load(ctx)
	require.NoError(t, err)
	assert.True(t, want.Primary.Equal(got.Primary))
	require.Len(t, got.Members, 1)
	assert.True(t, want.Members[0].Equal(got.Members[0]))
	require.Len(t, got.Pending, 1)
	assert.True(t, want.Pending[0].Equal(got.Pending[0]))
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, 3, got.Size())
}

func TestAdapter_EmptyStoreLoadsDefaults(t *testing.T) {
	h, err := newAdapter(store.NewMemoryKV(), nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.PrimaryID, h.Primary.ID)
	assert.Equal(t, 1, h.Size())
	assert.False(t, h.Status.EnrollmentSubmitted)
}

func TestAdapter_TobaccoSpellings(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	require.NoError(t, newAdapter(kv, nil).Save(ctx, sampleHousehold()))

	data := kv.Dump()
	assert.Equal(t, "smoker", data[config.KeyTobaccoUsage])

	var members []map[string]any
	require.NoError(t, json.Unmarshal([]byte(data[config.KeyFamilyMembers]), &members))
	require.Len(t, members, 1)
	assert.Equal(t, "no", members[0]["tobaccoUsage"])
}

func TestAdapter_LegacyTobaccoValues(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, config.KeyFamilyMembers,
		`[{"id":"a","type":"dependent","includedInCoverage":true,"tobaccoUsage":true},
		  {"id":"b","type":"dependent","includedInCoverage":true,"tobaccoUsage":"non-smoker"},
		  {"id":"c","type":"dependent","includedInCoverage":true,"tobaccoUsage":"no"}]`))

	h, err := newAdapter(kv, nil).Load(ctx)
	require.NoError(t, err)
	require.Len(t, h.Members, 3)
	assert.Equal(t, engine.TobaccoSmoker, h.Members[0].Tobacco)
	assert.Equal(t, engine.TobaccoNonSmoker, h.Members[1].Tobacco)
	assert.Equal(t, engine.TobaccoNonSmoker, h.Members[2].Tobacco)
}

func TestAdapter_MalformedValuesFallBack(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, config.KeyPrimaryApplicant, "{not json"))
	require.NoError(t, kv.Set(ctx, config.KeyFamilyMembers, `{"oops":1}`))
	require.NoError(t, kv.Set(ctx, config.KeyIncomeSources, `[{"amount":"lots"}]`))
	require.NoError(t, kv.Set(ctx, config.KeyEnrollmentSubmitted, "maybe"))
	require.NoError(t, kv.Set(ctx, config.KeyDateOfBirth, "01/02/1990"))

	h, err := newAdapter(kv, nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "01/02/1990", h.Primary.DateOfBirth)
	assert.Empty(t, h.Primary.FirstName)
	assert.Empty(t, h.Members)
	assert.Empty(t, h.Primary.Income)
	assert.False(t, h.Status.EnrollmentSubmitted)
}

func TestAdapter_BackfillAndDedupe(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, config.KeyFamilyMembers,
		`[{"firstName":"NoId"},
		  {"id":"s1","type":"spouse","includedInCoverage":false},
		  {"id":"s2","type":"spouse"},
		  {"id":"s1","type":"dependent"}]`))
	require.NoError(t, kv.Set(ctx, config.KeyPendingFamilyMembers, `[{"id":"s2","type":"dependent"},{"id":"p1","type":"spouse"}]`))

	h, err := newAdapter(kv, nil).Load(ctx)
	require.NoError(t, err)

	require.Len(t, h.Members, 3)
	assert.Equal(t, engine.PersonID("gen1"), h.Members[0].ID)
	assert.Equal(t, engine.MemberDependent, h.Members[0].Type)
	assert.True(t, h.Members[0].IncludedInCoverage)

	assert.Equal(t, engine.MemberSpouse, h.Members[1].Type)
	assert.False(t, h.Members[1].IncludedInCoverage)

	assert.Equal(t, engine.PersonID("s2"), h.Members[2].ID)
	assert.Equal(t, engine.MemberDependent, h.Members[2].Type, "second spouse is demoted")

	require.Len(t, h.Pending, 1)
	assert.Equal(t, engine.PersonID("p1"), h.Pending[0].ID)
	assert.Equal(t, engine.MemberDependent, h.Pending[0].Type)
	assert.True(t, h.HasSpouse())
}

func TestAdapter_IncomeAmountAsString(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, config.KeyIncomeSources, `[{"type":"job","frequency":"weekly","amount":"500.5"}]`))

	h, err := newAdapter(kv, nil).Load(ctx)
	require.NoError(t, err)
	require.Len(t, h.Primary.Income, 1)
	assert.InDelta(t, 500.5, h.Primary.Income[0].Amount, 0.001)
}

func TestAdapter_RemovedMemberKeysCleanedUp(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	vault := newMapVault()
	a := newAdapter(kv, vault)

	h := sampleHousehold()
	require.NoError(t, a.Save(ctx, h))
	_, ok, _ := kv.Get(ctx, config.KeyIncomeSourcesPrefix+"s1")
	require.True(t, ok)
	require.Equal(t, "987-65-4321", vault.secrets["s1"])

	h.Members = nil
	require.NoError(t, a.Save(ctx, h))

	_, ok, _ = kv.Get(ctx, config.KeyIncomeSourcesPrefix+"s1")
	assert.False(t, ok)
	assert.NotContains(t, vault.secrets, "s1")
}

func TestAdapter_SSNKeptInVault(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	vault := newMapVault()

	require.NoError(t, newAdapter(kv, vault).Save(ctx, sampleHousehold()))

	for key, value := range kv.Dump() {
		assert.NotContains(t, value, "123-45-6789", "SSN leaked into %s", key)
		assert.NotContains(t, value, "987-65-4321", "SSN leaked into %s", key)
	}
	assert.Equal(t, "123-45-6789", vault.secrets[string(engine.PrimaryID)])

	h, err := newAdapter(kv, vault).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "123-45-6789", h.Primary.Identity.SSN)
	assert.Equal(t, "987-65-4321", h.Members[0].Identity.SSN)
}

func TestAdapter_StoreErrorsReturned(t *testing.T) {
	ctx := context.Background()

	kv := new(MockKV)
	kv.On("Get", mock.Anything, config.KeyPrimaryApplicant).Return("", false, errDisk)
	_, err := newAdapter(kv, nil).Load(ctx)
	require.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), config.ErrStoreGet)

	kv = new(MockKV)
	kv.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(errDisk)
	kv.On("Remove", mock.Anything, mock.Anything).Return(nil)
	err = newAdapter(kv, nil).Save(ctx, sampleHousehold())
	require.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), config.ErrStoreSet)
}

func TestAdapter_RepositoryIntegration(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	repo := engine.NewRepository(newAdapter(kv, nil), engine.RealClock{})

	id, err := repo.AddFamilyMember(ctx, engine.MemberSpouse)
	require.NoError(t, err)
	require.NoError(t, repo.Checkpoint(ctx))

	reloaded := engine.NewRepository(newAdapter(kv, nil), engine.RealClock{})
	require.NoError(t, reloaded.Load(ctx))
	_, confirmed, ok := reloaded.Snapshot().Member(id)
	assert.True(t, ok)
	assert.False(t, confirmed)
}
