package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
)

func TestDOBField_Transitions(t *testing.T) {
	f := engine.NewDOBField(MockClock{CurrentTime: fixedNow})
	assert.Equal(t, engine.DOBEmpty, f.State())

	assert.Equal(t, engine.DOBTyping, f.Input("0"))
	_, ok := f.Eligibility()
	assert.False(t, ok)

	assert.Equal(t, engine.DOBTyping, f.Input("0101"))
	assert.Equal(t, "01/01/", f.Text())

	assert.Equal(t, engine.DOBValid, f.Input("01011950"))
	assert.Equal(t, "01/01/1950", f.Text())
	e, ok := f.Eligibility()
	assert.True(t, ok)
	assert.Equal(t, 74, e.Age)
	assert.True(t, e.IsOver65)
	birth, ok := f.BirthDate()
	assert.True(t, ok)
	assert.Equal(t, 1950, birth.Year())

	// Deleting a digit drops back to typing and clears derived state.
	assert.Equal(t, engine.DOBTyping, f.Input("01/01/195"))
	_, ok = f.Eligibility()
	assert.False(t, ok)
	_, ok = f.BirthDate()
	assert.False(t, ok)

	assert.Equal(t, engine.DOBInvalid, f.Input("02/30/2000"))
	assert.Equal(t, config.CodeInvalidDate, f.ErrorCode())
	_, ok = f.Eligibility()
	assert.False(t, ok, "no stale age survives an invalid date")

	assert.Equal(t, engine.DOBInvalid, f.Input("01/01/2030"))
	assert.Equal(t, config.CodeFutureDate, f.ErrorCode())

	assert.Equal(t, engine.DOBValid, f.Input("1/2/2010"))
	assert.Equal(t, "01/02/2010", f.Text(), "canonicalized once valid")
	assert.Empty(t, f.ErrorCode())
	e, _ = f.Eligibility()
	assert.True(t, e.IsUnder19)

	assert.Equal(t, engine.DOBEmpty, f.Input(""))
	assert.Equal(t, "empty", f.State().String())
}
