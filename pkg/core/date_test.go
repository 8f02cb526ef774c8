package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2025, Month: time.January, Day: 2}, d)
	assert.Equal(t, "2025-01-02", d.String())

	_, err = ParseDate("2025/01/02")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDate_AddDays(t *testing.T) {
	d := Date{Year: 2024, Month: time.December, Day: 31}
	assert.Equal(t, Date{Year: 2025, Month: time.January, Day: 1}, d.AddDays(1))
	assert.Equal(t, Date{Year: 2024, Month: time.February, Day: 29}, Date{Year: 2024, Month: time.March, Day: 1}.AddDays(-1))
}

func TestDate_Compare(t *testing.T) {
	a := Date{Year: 2025, Month: time.January, Day: 1}
	b := Date{Year: 2025, Month: time.January, Day: 2}
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, Date{}.IsZero())
}

func TestDate_SecondsOf(t *testing.T) {
	d := Date{Year: 2025, Month: time.January, Day: 2}
	assert.Equal(t, 0, d.SecondsOf(time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, 3600, d.SecondsOf(time.Date(2025, 1, 2, 1, 0, 0, 0, time.UTC)))
	assert.Equal(t, SecondsPerDay, d.SecondsOf(time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)))
}

func TestMarkerState_Validate(t *testing.T) {
	assert.NoError(t, MarkerState{PositionSeconds: 0, BoundarySeconds: 3600}.Validate())
	assert.NoError(t, MarkerState{PositionSeconds: SecondsPerDay, BoundarySeconds: SecondsPerDay}.Validate())
	assert.ErrorIs(t, MarkerState{PositionSeconds: 10, BoundarySeconds: 5}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, MarkerState{PositionSeconds: -1, BoundarySeconds: 5}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, MarkerState{PositionSeconds: 0, BoundarySeconds: SecondsPerDay + 1}.Validate(), ErrInvalidInput)
}

func TestBlock_Contains(t *testing.T) {
	b := Block{StartSeconds: 10, EndSeconds: 20, Kind: Filled}
	assert.True(t, b.Contains(10))
	assert.True(t, b.Contains(19))
	assert.False(t, b.Contains(20))
	assert.Equal(t, "filled", b.Kind.String())
	assert.Equal(t, "gap", Gap.String())
}
