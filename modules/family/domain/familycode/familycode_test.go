package familycode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/familycode"
)

func TestNormalize_TrailingZeroEquivalence(t *testing.T) {
	a, err := familycode.Normalize("1-2-0-0")
	require.NoError(t, err)
	b, err := familycode.Normalize("1-2")
	require.NoError(t, err)

	require.True(t, a.Equal(b))
	require.Equal(t, "1-2", a.String())
}

func TestNormalize_ArabicIndicDigitsAndWhitespace(t *testing.T) {
	cases := map[string]string{
		"١-٢-٣":       "1-2-3",
		"۱-۲-۰":       "1-2",
		"  3 - 4 -0 ": "3-4",
		"1- 2-0":      "1-2",
		"10-0-7-0":    "10-0-7",
		"٠٠١-٠٢":      "1-2",
	}
	for raw, want := range cases {
		c, err := familycode.Normalize(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, c.String(), raw)
	}
}

func TestNormalize_RejectsNonCodes(t *testing.T) {
	for _, raw := range []string{"", "  ", "محمد", "1", "1-", "-1-2", "1--2", "1-a-2", "1.2", "1-2-3x", "١"} {
		_, err := familycode.Normalize(raw)
		require.ErrorIs(t, err, familycode.ErrNotCode, raw)
	}
}

func TestNormalize_AllZero(t *testing.T) {
	_, err := familycode.Normalize("0-0-0")
	require.ErrorIs(t, err, familycode.ErrAllZero)
}

func TestNormalize_MinSegments(t *testing.T) {
	_, err := familycode.Normalize("1")
	require.ErrorIs(t, err, familycode.ErrNotCode)

	c, err := familycode.Normalize("1", familycode.WithMinSegments(1))
	require.NoError(t, err)
	require.Equal(t, "1", c.String())

	_, err = familycode.Normalize("1-2", familycode.WithMinSegments(3))
	require.ErrorIs(t, err, familycode.ErrNotCode)
}

func TestParent(t *testing.T) {
	p, ok := familycode.MustParse("1-2-3").Parent()
	require.True(t, ok)
	require.True(t, p.Equal(familycode.MustParse("1-2")))

	_, ok = familycode.MustParse("1").Parent()
	require.False(t, ok)

	_, ok = familycode.MustParse("1-0-0").Parent()
	require.False(t, ok)
}

func TestParent_ZeroesLastNonZeroSegment(t *testing.T) {
	p, ok := familycode.MustParse("2-0-5").Parent()
	require.True(t, ok)
	require.Equal(t, "2", p.String())

	p, ok = familycode.MustParse("1-3-0-4").Parent()
	require.True(t, ok)
	require.Equal(t, "1-3", p.String())
}

func TestParent_IsStrictlyShallower(t *testing.T) {
	for _, raw := range []string{"1-2", "1-2-3-4", "9-0-1", "4-4-4-4-4"} {
		c := familycode.MustParse(raw)
		p, ok := c.Parent()
		require.True(t, ok, raw)
		require.Equal(t, c.Depth()-1, p.Depth(), raw)
		require.False(t, p.Equal(c), raw)
	}
}

func TestDepth(t *testing.T) {
	require.Equal(t, 1, familycode.MustParse("7").Depth())
	require.Equal(t, 2, familycode.MustParse("7-0-3").Depth())
	require.Equal(t, 3, familycode.MustParse("1-2-3-0-0").Depth())
	require.True(t, familycode.Code{}.IsZero())
}
