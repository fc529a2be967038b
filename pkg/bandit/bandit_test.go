package bandit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUCB1TriesEveryArmOnceBeforeExploiting(t *testing.T) {
	b := New(ModeUCB1, 1)
	seen := make(map[Strategy]bool)
	for i := 0; i < len(AllStrategies); i++ {
		s, err := b.Select(NewContext(0, 0, 0, 0, 0), 0)
		assert.NoError(t, err)
		seen[s] = true
		b.Update(s, NewContext(0, 0, 0, 0, 0), 0.5)
	}
	assert.Len(t, seen, len(AllStrategies))
}

func TestUCB1PrefersHigherMeanAfterWarmup(t *testing.T) {
	b := New(ModeUCB1, 1)
	// One play per arm keeps every exploration bonus equal, so the arm
	// with the higher mean reward wins.
	for _, s := range AllStrategies {
		r := 0.0
		if s == RoundRobin {
			r = 1.0
		}
		b.Update(s, NewContext(0, 0, 0, 0, 0), r)
	}

	s, err := b.Select(NewContext(0, 0, 0, 0, 0), 0)
	assert.NoError(t, err)
	assert.Equal(t, RoundRobin, s)
}

func TestThompsonIsSeedDeterministic(t *testing.T) {
	b1 := New(ModeThompson, 42)
	b2 := New(ModeThompson, 42)

	var seq1, seq2 []Strategy
	for i := 0; i < 10; i++ {
		s1, _ := b1.Select(NewContext(0, 0, 0, 0, 0), 0)
		s2, _ := b2.Select(NewContext(0, 0, 0, 0, 0), 0)
		seq1 = append(seq1, s1)
		seq2 = append(seq2, s2)
		b1.Update(s1, NewContext(0, 0, 0, 0, 0), 0.3)
		b2.Update(s2, NewContext(0, 0, 0, 0, 0), 0.3)
	}
	assert.Equal(t, seq1, seq2)
}

func TestBanExcludesStrategyUntilExpiry(t *testing.T) {
	b := New(ModeUCB1, 1)
	b.Ban(RoundRobin, "too many failures", 0, 1000, 0.9)

	for i := 0; i < len(AllStrategies)-1; i++ {
		s, err := b.Select(NewContext(0, 0, 0, 0, 0), 500)
		assert.NoError(t, err)
		assert.NotEqual(t, RoundRobin, s)
		b.Update(s, NewContext(0, 0, 0, 0, 0), 0.5)
	}

	s, err := b.Select(NewContext(0, 0, 0, 0, 0), 1500)
	assert.NoError(t, err)
	_ = s // after expiry RoundRobin is eligible again; no assertion on which arm wins
	assert.Empty(t, b.ActiveBans(1500))
}

func TestAllArmsBannedFallsBackToRoundRobin(t *testing.T) {
	b := New(ModeUCB1, 1)
	for _, s := range AllStrategies {
		b.Ban(s, "test", 0, 1000, 1.0)
	}
	s, err := b.Select(NewContext(0, 0, 0, 0, 0), 500)
	assert.NoError(t, err)
	assert.Equal(t, RoundRobin, s)
}

func TestLinUCBPrefersArmAlignedWithContext(t *testing.T) {
	b := New(ModeLinUCB, 1)
	ctx := NewContext(1, 0, 0, 0, 0)

	// Every arm sees the same contexts, so confidence bonuses are equal and
	// only the rewarded arm's theta aligns with ctx.
	for i := 0; i < 20; i++ {
		for _, s := range AllStrategies {
			r := 0.0
			if s == Swarm {
				r = 1.0
			}
			b.Update(s, ctx, r)
		}
	}

	s, err := b.Select(ctx, 0)
	assert.NoError(t, err)
	assert.Equal(t, Swarm, s)
}

func TestSnapshotRoundTripsAllThreeModes(t *testing.T) {
	for _, mode := range []Mode{ModeUCB1, ModeThompson, ModeLinUCB} {
		b := New(mode, 7)
		b.Update(Swarm, NewContext(0.4, 0.1, 0.2, 0.3, 0.0), 0.8)
		b.Update(Competitive, NewContext(0.1, 0.9, 0.0, 0.5, 0.2), 0.3)
		b.Ban(Hierarchical, "test ban", 10, 2000, 0.75)

		snap := b.Serialize()
		restored := Deserialize(snap, 7)
		roundTripped := restored.Serialize()

		assert.Equal(t, snap, roundTripped, "mode %s", mode)
	}
}

func TestStatsForReflectsUpdates(t *testing.T) {
	b := New(ModeUCB1, 1)
	b.Update(Hierarchical, NewContext(0, 0, 0, 0, 0), 1.0)
	b.Update(Hierarchical, NewContext(0, 0, 0, 0, 0), 0.0)

	st := b.StatsFor(Hierarchical)
	assert.Equal(t, 2, st.Plays)
	assert.Equal(t, 1.0, st.CumulativeReward)
}
