package experience_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/experience"
)

type recordingSink struct {
	calls []experience.Growth
}

func (r *recordingSink) ApplyGrowth(g experience.Growth) {
	r.calls = append(r.calls, g)
}

func newState() *experience.State {
	return experience.NewState(experience.DefaultCurve(), experience.DefaultGrowth())
}

func TestCurve_Default_Requirements(t *testing.T) {
	c := experience.DefaultCurve()
	require.NoError(t, c.Validate())
	assert.Equal(t, uint32(120), c.Requirement(1)) // 100 * 1.2
	assert.Equal(t, uint32(180), c.Requirement(2)) // 150 * 1.2
	assert.Equal(t, uint32(270), c.Requirement(3)) // 225 * 1.2
	assert.Equal(t, uint32(607), c.Requirement(5)) // floor(506.25)=506 * 1.2 = 607.2
	assert.Equal(t, uint32(759), c.Requirement(6)) // past the early-game threshold
}

func TestCurve_LevelZero_TreatedAsOne(t *testing.T) {
	c := experience.DefaultCurve()
	assert.Equal(t, c.Requirement(1), c.Requirement(0))
}

func TestCurve_Saturates(t *testing.T) {
	c := experience.DefaultCurve()
	assert.Equal(t, uint32(math.MaxUint32), c.Requirement(500))
}

func TestCurve_Validate_RejectsBadParameters(t *testing.T) {
	cases := map[string]experience.Curve{
		"zero base":         {BaseXP: 0, Multiplier: 1.5, EarlyGameThreshold: 5, EarlyGameScale: 1.2},
		"shrinking curve":   {BaseXP: 100, Multiplier: 0.9, EarlyGameThreshold: 5, EarlyGameScale: 1},
		"scale below one":   {BaseXP: 100, Multiplier: 1.5, EarlyGameThreshold: 5, EarlyGameScale: 0.5},
		"scale over mult":   {BaseXP: 100, Multiplier: 1.1, EarlyGameThreshold: 5, EarlyGameScale: 1.5},
		"nan multiplier":    {BaseXP: 100, Multiplier: math.NaN(), EarlyGameThreshold: 5, EarlyGameScale: 1.2},
		"infinite multiple": {BaseXP: 100, Multiplier: math.Inf(1), EarlyGameThreshold: 5, EarlyGameScale: 1.2},
	}
	for name, c := range cases {
		assert.Error(t, c.Validate(), name)
	}
}

func TestApplyXP_BelowThreshold_Accumulates(t *testing.T) {
	s := newState()
	res := s.ApplyXP(100, nil)
	assert.False(t, res.Leveled())
	assert.Equal(t, uint32(1), s.Level)
	assert.Equal(t, uint32(100), s.Experience)
}

func TestApplyXP_ExactThreshold_LevelsUp(t *testing.T) {
	s := newState()
	res := s.ApplyXP(120, nil)
	assert.True(t, res.Leveled())
	assert.Equal(t, uint32(2), s.Level)
	assert.Equal(t, uint32(0), s.Experience)
}

// With the default curve Requirement(2) == 180, so 250 XP pays for one level only.
func TestApplyXP_250_OneLevelWithDefaultCurve(t *testing.T) {
	s := newState()
	res := s.ApplyXP(250, nil)
	assert.Equal(t, uint32(1), res.Gained())
	assert.Equal(t, uint32(2), s.Level)
	assert.Equal(t, uint32(130), s.Experience)
}

// A curve with Requirement(2) < 130 lets the same 250 XP jump two levels in one call.
func TestApplyXP_250_TwoLevelsWhenSecondRequirementIsSmall(t *testing.T) {
	c := experience.Curve{BaseXP: 100, Multiplier: 1.05, EarlyGameThreshold: 1, EarlyGameScale: 1.2}
	require.Equal(t, uint32(120), c.Requirement(1))
	require.Equal(t, uint32(105), c.Requirement(2))
	s := experience.NewState(c, experience.DefaultGrowth())
	res := s.ApplyXP(250, nil)
	assert.Equal(t, uint32(2), res.Gained())
	assert.Equal(t, uint32(3), s.Level)
	assert.Equal(t, uint32(25), s.Experience)
}

func TestApplyXP_MultiLevel_DefaultCurve(t *testing.T) {
	s := newState()
	sink := &recordingSink{}
	res := s.ApplyXP(300, sink) // 120 + 180
	assert.Equal(t, experience.LevelUp{From: 1, To: 3}, res)
	assert.Equal(t, uint32(0), s.Experience)
	require.Len(t, sink.calls, 1)
	assert.Equal(t, experience.DefaultGrowth().Times(2), sink.calls[0])
}

func TestApplyXP_Negative_NoOp(t *testing.T) {
	s := newState()
	s.ApplyXP(50, nil)
	sink := &recordingSink{}
	res := s.ApplyXP(-10, sink)
	assert.False(t, res.Leveled())
	assert.Equal(t, uint32(50), s.Experience)
	assert.Empty(t, sink.calls)
}

func TestApplyXP_Zero_NoOp(t *testing.T) {
	s := newState()
	s.ApplyXP(70, nil)
	res := s.ApplyXP(0, nil)
	assert.False(t, res.Leveled())
	assert.Equal(t, uint32(1), s.Level)
	assert.Equal(t, uint32(70), s.Experience)
}

func TestApplyXP_Huge_Terminates(t *testing.T) {
	s := newState()
	res := s.ApplyXP(math.MaxInt64, nil)
	assert.True(t, res.Leveled())
	assert.Less(t, s.Experience, s.Requirement())
}

func TestApplyXP_FlatCurve_Terminates(t *testing.T) {
	c := experience.Curve{BaseXP: 1, Multiplier: 1, EarlyGameThreshold: 0, EarlyGameScale: 1}
	s := experience.NewState(c, experience.Growth{MagicPower: 1})
	sink := &recordingSink{}
	res := s.ApplyXP(1_000_000, sink)
	assert.Equal(t, uint32(1_000_001), s.Level)
	assert.Equal(t, uint32(0), s.Experience)
	assert.Equal(t, uint32(1_000_000), res.Gained())
	assert.Equal(t, int64(1_000_000), sink.calls[0].MagicPower)
}

func TestRestoredState_Resolve(t *testing.T) {
	s := experience.RestoredState(0, 500, experience.DefaultCurve(), experience.DefaultGrowth())
	assert.Equal(t, uint32(1), s.Level)
	sink := &recordingSink{}
	res := s.Resolve(sink)
	assert.Equal(t, experience.LevelUp{From: 1, To: 3}, res) // 500 - 120 - 180 = 200 < 270
	assert.Equal(t, uint32(200), s.Experience)
	assert.Less(t, s.Experience, s.Requirement())
	require.Len(t, sink.calls, 1)
	assert.Equal(t, experience.DefaultGrowth().Times(2), sink.calls[0])

	again := s.Resolve(sink)
	assert.False(t, again.Leveled())
	assert.Len(t, sink.calls, 1)
}

func TestRestoredState_Resolve_ConsistentIsNoOp(t *testing.T) {
	s := experience.RestoredState(4, 10, experience.DefaultCurve(), experience.DefaultGrowth())
	sink := &recordingSink{}
	assert.False(t, s.Resolve(sink).Leveled())
	assert.Equal(t, uint32(4), s.Level)
	assert.Equal(t, uint32(10), s.Experience)
	assert.Empty(t, sink.calls)
}

func TestPropertyCurve_NonDecreasing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := experience.Curve{
			BaseXP:             rapid.Uint32Range(1, 10_000).Draw(t, "base"),
			Multiplier:         rapid.Float64Range(1, 3).Draw(t, "mult"),
			EarlyGameThreshold: rapid.Uint32Range(0, 20).Draw(t, "threshold"),
		}
		c.EarlyGameScale = rapid.Float64Range(1, c.Multiplier).Draw(t, "scale")
		require.NoError(t, c.Validate())
		level := rapid.Uint32Range(1, 200).Draw(t, "level")
		assert.LessOrEqual(t, c.Requirement(level), c.Requirement(level+1))
	})
}

func TestPropertyApplyXP_InvariantHolds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newState()
		grants := rapid.SliceOfN(rapid.Int64Range(0, 50_000), 1, 20).Draw(t, "grants")
		for _, g := range grants {
			s.ApplyXP(g, nil)
			assert.GreaterOrEqual(t, s.Level, uint32(1))
			assert.Less(t, s.Experience, s.Requirement())
		}
	})
}

func TestPropertyApplyXP_Monotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(0, 100_000).Draw(t, "a")
		extra := rapid.Int64Range(0, 100_000).Draw(t, "extra")
		s1, s2 := newState(), newState()
		s1.ApplyXP(a, nil)
		s2.ApplyXP(a+extra, nil)
		assert.LessOrEqual(t, s1.Level, s2.Level, "more XP never yields a lower level")
	})
}

func TestPropertyApplyXP_SplitEqualsWhole(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(0, 50_000).Draw(t, "a")
		b := rapid.Int64Range(0, 50_000).Draw(t, "b")
		whole, split := newState(), newState()
		whole.ApplyXP(a+b, nil)
		split.ApplyXP(a, nil)
		split.ApplyXP(b, nil)
		assert.Equal(t, whole.Level, split.Level)
		assert.Equal(t, whole.Experience, split.Experience)
	})
}
