package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		want     string
		negative bool
	}{
		{"plain", "42.50", "42.5", false},
		{"leading minus", "-42.50", "42.5", true},
		{"trailing minus", "42.50-", "42.5", true},
		{"parenthesized", "(42.50)", "42.5", true},
		{"thousands separator", "1,234.56", "1234.56", false},
		{"dollar symbol", "$99.00", "99", false},
		{"euro symbol", "€12.30", "12.3", false},
		{"pound with minus", "-£5.00", "5", true},
		{"interior whitespace", " 1 234.00 ", "1234", false},
		{"zero", "0.00", "0", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, negative, err := ParseAmount(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
			assert.Equal(t, tc.negative, negative)
		})
	}

	t.Run("rejects garbage", func(t *testing.T) {
		_, _, err := ParseAmount("abc")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, _, err := ParseAmount("  ")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestParseMagnitude(t *testing.T) {
	assert.Equal(t, "100", ParseMagnitude("100.00").String())
	assert.Equal(t, "1234.5", ParseMagnitude("1,234.50").String())
	assert.True(t, ParseMagnitude("").IsZero())
	assert.True(t, ParseMagnitude("n/a").IsZero())
}

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, "USD", NormalizeCurrency("usd", "EUR"))
	assert.Equal(t, "EUR", NormalizeCurrency("", "eur"))
	assert.Equal(t, "EUR", NormalizeCurrency("  ", "EUR"))
	// Unknown codes pass through uppercased.
	assert.Equal(t, "ZZZ", NormalizeCurrency("zzz", "USD"))
}
