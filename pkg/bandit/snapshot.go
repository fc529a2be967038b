package bandit

// StatsSnapshot is the JSON-stable form of one arm's Stats, per spec §6's
// "Bandit snapshot: { mode, per_arm: {plays, cumulative_reward, alpha,
// beta, A?, b?}, version }". A and B are always filled in, whatever the
// mode, since every arm carries LinUCB bookkeeping (an identity A and a
// zero B before its first update); UCB1/Thompson selection never reads
// them.
type StatsSnapshot struct {
	Plays            int         `json:"plays"`
	CumulativeReward float64     `json:"cumulative_reward"`
	Alpha            float64     `json:"alpha"`
	Beta             float64     `json:"beta"`
	A                [][]float64 `json:"a"`
	B                []float64   `json:"b"`
}

// BanSnapshot is a Ban's JSON-stable form.
type BanSnapshot struct {
	Strategy    string  `json:"strategy"`
	Reason      string  `json:"reason"`
	BannedAt    int64   `json:"banned_at"`
	ExpiresAt   int64   `json:"expires_at"`
	FailureRate float64 `json:"failure_rate"`
}

// Snapshot is the spec §6 "Bandit snapshot" record: mode, per-arm stats,
// active bans, and a format version for forward compatibility.
type Snapshot struct {
	Mode    Mode                     `json:"mode"`
	PerArm  map[string]StatsSnapshot `json:"per_arm"`
	Bans    []BanSnapshot            `json:"bans"`
	Version int                      `json:"version"`
}

const snapshotVersion = 1

// Serialize captures the bandit's full state as a round-trippable
// Snapshot (spec §8: "Bandit snapshot / restore: deserialize(serialize(s))
// == s for all three modes").
func (b *Bandit) Serialize() Snapshot {
	perArm := make(map[string]StatsSnapshot, len(b.stats))
	for s, st := range b.stats {
		a := make([][]float64, ContextDim)
		for i := range a {
			a[i] = append([]float64(nil), st.A[i][:]...)
		}
		perArm[string(s)] = StatsSnapshot{
			Plays:            st.Plays,
			CumulativeReward: st.CumulativeReward,
			Alpha:            st.Alpha,
			Beta:             st.Beta,
			A:                a,
			B:                append([]float64(nil), st.B[:]...),
		}
	}
	bans := make([]BanSnapshot, 0, len(b.bans))
	for _, ban := range b.bans {
		bans = append(bans, BanSnapshot{
			Strategy:    string(ban.Strategy),
			Reason:      ban.Reason,
			BannedAt:    ban.BannedAt,
			ExpiresAt:   ban.ExpiresAt,
			FailureRate: ban.FailureRate,
		})
	}
	return Snapshot{Mode: b.mode, PerArm: perArm, Bans: bans, Version: snapshotVersion}
}

// Deserialize rebuilds a Bandit from a Snapshot produced by Serialize.
// The RNG seed is not part of the snapshot (spec §6 does not list one);
// Thompson draws after a restore start a fresh, caller-seeded sequence.
func Deserialize(snap Snapshot, seed int64) *Bandit {
	b := New(snap.Mode, seed)
	for s, ss := range snap.PerArm {
		st := &Stats{
			Plays:            ss.Plays,
			CumulativeReward: ss.CumulativeReward,
			Alpha:            ss.Alpha,
			Beta:             ss.Beta,
		}
		for i := 0; i < ContextDim && i < len(ss.A); i++ {
			for j := 0; j < ContextDim && j < len(ss.A[i]); j++ {
				st.A[i][j] = ss.A[i][j]
			}
		}
		for i := 0; i < ContextDim && i < len(ss.B); i++ {
			st.B[i] = ss.B[i]
		}
		b.stats[Strategy(s)] = st
	}
	for _, ban := range snap.Bans {
		b.bans[Strategy(ban.Strategy)] = Ban{
			Strategy:    Strategy(ban.Strategy),
			Reason:      ban.Reason,
			BannedAt:    ban.BannedAt,
			ExpiresAt:   ban.ExpiresAt,
			FailureRate: ban.FailureRate,
		}
	}
	return b
}
