package numfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestDefaultSeparators(t *testing.T) {
	assert.Equal(t, ',', Default.Decimal())
	assert.Equal(t, '.', Default.Group())
}

func TestFormatCurrency(t *testing.T) {
	cases := map[float64]string{
		0:       "R$ 0,00",
		1234.56: "R$ 1.234,56",
		12.5:    "R$ 12,50",
		1000000: "R$ 1.000.000,00",
		-42.1:   "-R$ 42,10",
		-0.001:  "R$ 0,00",
		99.999:  "R$ 100,00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatCurrency(in), "FormatCurrency(%v)", in)
	}
}

func TestFormatPercentAndQuantity(t *testing.T) {
	assert.Equal(t, "82,5%", FormatPercent(82.5))
	assert.Equal(t, "80%", FormatPercent(80))
	assert.Equal(t, "1,5 kg", FormatQuantity(1.5, "kg"))
	assert.Equal(t, "1.000 un", FormatQuantity(1000, "un"))
	assert.Equal(t, "0,125", FormatQuantity(0.125, ""))
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1.234,56", 1234.56},
		{"R$ 1.234,56", 1234.56},
		{"  12,5 ", 12.5},
		{"1234,5", 1234.5},
		{"1.500", 1500},
		{"1.5", 1.5},
		{"1234.5", 1234.5},
		{"1,234.56", 1234.56},
		{"82,5%", 82.5},
		{"-R$ 42,10", -42.1},
		{"R$ -42,10", -42.1},
		{"0", 0},
		{"1.000.000", 1000000},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseNumber(tc.in)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestParseNumberRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "1,2,3", "12a", "1.23.4", "1.2345,6", "R$"} {
		_, err := ParseNumber(in)
		assert.ErrorIs(t, err, ErrInvalidNumber, "input %q", in)
	}
}

func TestCurrencyRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 0.01, 3.1, 19.9, 1234.56, 987654.32, -15.75} {
		got, err := ParseNumber(FormatCurrency(v))
		require.NoError(t, err)
		assert.InDelta(t, v, got, 1e-9, "round trip of %v", v)
	}
}

func TestEnglishFormatter(t *testing.T) {
	f := New(language.AmericanEnglish, "$")
	assert.Equal(t, "$ 1,234.56", f.Currency(1234.56))
	got, err := f.Parse("1,234.5")
	require.NoError(t, err)
	assert.InDelta(t, 1234.5, got, 1e-9)
}

func TestRoundCents(t *testing.T) {
	assert.Equal(t, int64(1999), RoundCents(19.99))
	assert.Equal(t, int64(10), RoundCents(0.1))
}
