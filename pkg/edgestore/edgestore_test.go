package edgestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

func TestCreateEdgeSetsRecordedAt(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(fixedClock(t0))

	e := s.CreateEdge("A", "B", "uses", 0.5, time.Time{})
	assert.Equal(t, t0, e.RecordedAt)
	assert.Equal(t, t0, e.ValidFrom)
	assert.Nil(t, e.SupersededAt)
}

func TestSupersedeTimeTravel(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t1.Add(time.Hour)

	clockVal := t0
	s := New(func() time.Time { return clockVal })

	e0 := s.CreateEdge("A", "B", "uses", 0.5, time.Time{})

	clockVal = t1
	newWeight := 0.9
	_, fresh, err := s.Supersede(e0.ID, &newWeight, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.9, fresh.Weight)

	clockVal = t2

	atT0 := s.QueryAt(t2, t0)
	require.Len(t, atT0, 1)
	assert.Equal(t, 0.5, atT0[0].Weight)

	atT2 := s.QueryAt(t2, t2)
	require.Len(t, atT2, 1)
	assert.Equal(t, 0.9, atT2[0].Weight)
}

func TestSupersedeRejectsNonCurrent(t *testing.T) {
	s := New(nil)
	e0 := s.CreateEdge("A", "B", "uses", 0.5, time.Time{})
	_, _, err := s.Supersede(e0.ID, nil, nil)
	require.NoError(t, err)

	_, _, err = s.Supersede(e0.ID, nil, nil)
	assert.ErrorIs(t, err, ErrNotCurrent)
}

func TestOnlyOneCurrentPerTriple(t *testing.T) {
	s := New(nil)
	e0 := s.CreateEdge("A", "B", "uses", 0.5, time.Time{})
	_, fresh, err := s.Supersede(e0.ID, nil, nil)
	require.NoError(t, err)

	cur, ok := s.Current("A", "B", "uses")
	require.True(t, ok)
	assert.Equal(t, fresh.ID, cur.ID)

	history := s.History("A", "B")
	require.Len(t, history, 2)
	supersededCount := 0
	for _, e := range history {
		if e.SupersededAt != nil {
			supersededCount++
		}
	}
	assert.Equal(t, 1, supersededCount)
}

func TestCompactMonotonicityKeepsCurrent(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clockVal := t0
	s := New(func() time.Time { return clockVal })

	e0 := s.CreateEdge("A", "B", "uses", 0.5, time.Time{})
	clockVal = t0.Add(48 * time.Hour)
	_, _, err := s.Supersede(e0.ID, nil, nil)
	require.NoError(t, err)
	clockVal = clockVal.Add(2 * time.Hour) // superseded version is now older than the retention window

	before := len(s.edges)
	dropped := s.Compact(time.Hour)
	after := len(s.edges)

	assert.LessOrEqual(t, after, before)
	assert.Equal(t, 1, dropped)
	_, ok := s.Current("A", "B", "uses")
	assert.True(t, ok)
}

func TestExpireSetsValidUntil(t *testing.T) {
	s := New(nil)
	e0 := s.CreateEdge("A", "B", "uses", 0.5, time.Time{})
	at := e0.ValidFrom.Add(time.Hour)
	require.NoError(t, s.Expire(e0.ID, at))

	got, ok := s.Current("A", "B", "uses")
	require.True(t, ok)
	require.NotNil(t, got.ValidUntil)
	assert.Equal(t, at, *got.ValidUntil)
}

func TestTemporalDecayHalvesAtHalfLife(t *testing.T) {
	validFrom := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Edge{Weight: 1.0, ValidFrom: validFrom}
	now := validFrom.Add(24 * time.Hour)

	decayed := TemporalDecay(e, now, 24*time.Hour)
	assert.InDelta(t, 0.5, decayed, 1e-9)
}

func TestQueryAtExcludesBeforeValidFrom(t *testing.T) {
	validFrom := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(fixedClock(validFrom))
	s.CreateEdge("A", "B", "uses", 0.5, validFrom)

	before := validFrom.Add(-time.Hour)
	assert.Empty(t, s.QueryAt(before, time.Time{}))
}
