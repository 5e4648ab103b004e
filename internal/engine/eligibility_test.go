package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tartampluch/go-enroll/internal/engine"
)

func TestClassify_Boundaries(t *testing.T) {
	today := day(2024, 1, 1)
	tests := []struct {
		name      string
		birthYear int
		age       int
		under19   bool
		over65    bool
	}{
		{"Age 18", 2006, 18, true, false},
		{"Age 19", 2005, 19, false, false},
		{"Age 40", 1984, 40, false, false},
		{"Age 65", 1959, 65, false, false},
		{"Age 66", 1958, 66, false, true},
		{"Age 0", 2024, 0, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := engine.Classify(day(tt.birthYear, 1, 1), today)
			assert.Equal(t, tt.age, e.Age)
			assert.Equal(t, tt.under19, e.IsUnder19, "isUnder19")
			assert.Equal(t, tt.over65, e.IsOver65, "isOver65")
			assert.Equal(t, tt.under19 || tt.over65, e.Flagged())
		})
	}
}

func TestClassifyText(t *testing.T) {
	e, ok := engine.ClassifyText("01/01/1950", day(2024, 1, 1))
	assert.True(t, ok)
	assert.Equal(t, 74, e.Age)
	assert.True(t, e.IsOver65)

	_, ok = engine.ClassifyText("", day(2024, 1, 1))
	assert.False(t, ok)

	_, ok = engine.ClassifyText("02/30/2000", day(2024, 1, 1))
	assert.False(t, ok)
}
