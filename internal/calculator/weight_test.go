package calculator

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestDecayWeight_MatchesStepwiseFloor(t *testing.T) {
	for _, d := range []uint16{0, 1, 30, 97, 500, 999} {
		w := sdkmath.NewInt(1_000_000_007)
		expected := w
		for n := uint64(1); n <= 20; n++ {
			expected = expected.MulRaw(int64(1000 - d)).QuoRaw(1000)
			got, err := DecayWeightN(w, d, n)
			require.NoError(t, err)
			require.Truef(t, got.Equal(expected), "d=%d n=%d: got %s want %s", d, n, got, expected)
		}
	}
}

func TestDecayWeight_NeverIncreasesNorNegative(t *testing.T) {
	w := InitialWeight
	for i := 0; i < 200; i++ {
		next, err := DecayWeight(w, 97)
		require.NoError(t, err)
		require.True(t, next.LTE(w))
		require.False(t, next.IsNegative())
		w = next
	}
}

func TestDecayWeight_FullDiscount(t *testing.T) {
	w, err := DecayWeight(InitialWeight, MaxDiscountRate)
	require.NoError(t, err)
	require.True(t, w.IsZero())

	// Once at zero the weight stays there.
	w, err = DecayWeightN(sdkmath.ZeroInt(), 10, 1_000_000)
	require.NoError(t, err)
	require.True(t, w.IsZero())
}
