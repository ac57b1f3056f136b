package catalog

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	cases := []struct {
		spent float64
		want  int
	}{
		{0, 0},
		{-5, 0},
		{9.99, 0},
		{10, 1},
		{75, 7},
		{99.99, 9},
		{100, 10},
		{2500, 10},
		{1e300, 10},
		{math.Inf(1), 10},
		{math.Inf(-1), 0},
		{math.NaN(), 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Level(tc.spent), "spent=%v", tc.spent)
	}
}

func TestLevelIsMonotonic(t *testing.T) {
	prev := Level(0)
	for cents := 0; cents <= 150_00; cents += 7 {
		l := Level(float64(cents) / 100)
		require.GreaterOrEqual(t, l, prev)
		require.LessOrEqual(t, l, MaxLevel)
		prev = l
	}
}

func TestKeysEarned(t *testing.T) {
	require.Equal(t, 1, KeysEarned(5, 4, 5))
	require.Equal(t, 1, KeysEarned(14, 9, 5))
	require.Equal(t, 2, KeysEarned(12, 0, 5))
	require.Equal(t, 0, KeysEarned(3, 12, 5))
	require.Equal(t, 0, KeysEarned(7, 7, 5))
	require.Equal(t, 2, KeysEarned(10, 0, 0))
}

func TestDiscountForLevel(t *testing.T) {
	require.Equal(t, Discount{}, DiscountForLevel(0))
	require.Equal(t, Discount{Percent: 5, CodePrefix: "BUYER5"}, DiscountForLevel(6))
	require.Equal(t, Discount{Percent: 7, CodePrefix: "VIP7"}, DiscountForLevel(7))
	require.Equal(t, Discount{Percent: 10, CodePrefix: "LEGEND10"}, DiscountForLevel(10))
}

func TestLevelProgress(t *testing.T) {
	p := LevelProgress(25)
	require.Equal(t, 2, p.CurrentLevel)
	require.Equal(t, 3, p.NextLevel)
	require.InDelta(t, 50.0, p.Percent, 0.001)
	require.InDelta(t, 5.0, p.NeededForNext, 0.001)

	top := LevelProgress(120)
	require.Equal(t, MaxLevel, top.CurrentLevel)
	require.Zero(t, top.NextLevel)
}

func TestMatchProducts(t *testing.T) {
	ids := MatchProducts([]string{"Arceus X V5 - Lifetime", "BUNNI.LOL weekly", "Gift card", "wave"})
	require.Equal(t, []string{"wave", "bunni", "arceus"}, ids)

	require.Empty(t, MatchProducts(nil))
	require.Equal(t, []string{"arceus"}, MatchProducts([]string{"arceusxv5 key", "Arceus"}))
}

func TestRewardWeightsSumTo100(t *testing.T) {
	total := 0
	for _, r := range Rewards {
		total += r.Weight
	}
	require.Equal(t, 100, total)
}

func TestLevelName(t *testing.T) {
	require.Equal(t, "Not Verified", LevelName(0))
	require.Equal(t, "VIP", LevelName(7))
	require.Equal(t, "Legend", LevelName(10))
	require.Equal(t, "Unknown", LevelName(11))
}
