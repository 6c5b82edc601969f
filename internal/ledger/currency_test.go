package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "₹1,200.00", FormatCurrency(decimal.NewFromInt(1200)))
	assert.Equal(t, "₹0.50", FormatCurrency(decimal.RequireFromString("0.5")))
	assert.Equal(t, "-₹75.25", FormatCurrency(decimal.RequireFromString("-75.25")))
	assert.Equal(t, "", FormatCurrency(decimal.Zero))
}

func TestFormatCurrencyBlanksAmountsThatRoundToZero(t *testing.T) {
	assert.Equal(t, "", FormatCurrency(decimal.RequireFromString("0.004")))
	assert.Equal(t, "", FormatCurrency(decimal.RequireFromString("-0.001")))
	assert.Equal(t, "₹0.01", FormatCurrency(decimal.RequireFromString("0.005")))
	assert.Equal(t, "0.00", FormatPlain(decimal.RequireFromString("-0.001")))
}

func TestFormatCurrencyGrouping(t *testing.T) {
	assert.Equal(t, "₹1,00,000.00", FormatCurrency(decimal.NewFromInt(100000)))
	assert.Equal(t, "₹12,34,56,789.50", FormatCurrency(decimal.RequireFromString("123456789.5")))
	assert.Equal(t, "-₹10,00,000.00", FormatCurrency(decimal.NewFromInt(-1000000)))

	us := NewFormatter("en-US")
	assert.Equal(t, "₹100,000.00", us.Currency(decimal.NewFromInt(100000)))
	assert.Equal(t, "₹123,456,789.50", us.Currency(decimal.RequireFromString("123456789.5")))
	assert.Equal(t, "₹999.00", us.Currency(decimal.NewFromInt(999)))

	assert.Equal(t, "1,000.00", NewFormatter("not a locale").Plain(decimal.NewFromInt(1000)))
}

func TestFormatPlainKeepsLargeAmountsExact(t *testing.T) {
	v := decimal.RequireFromString("12345678901234567.89")
	assert.Equal(t, "12,345,678,901,234,567.89", NewFormatter("en-US").Plain(v))
	back, err := ParseAmount(FormatCurrency(v))
	require.NoError(t, err)
	assert.True(t, back.Equal(v), "came back as %s", back)
}

func TestFormatPlain(t *testing.T) {
	assert.Equal(t, "0.00", FormatPlain(decimal.Zero))
	assert.Equal(t, "1,200.00", FormatPlain(decimal.NewFromInt(1200)))
	assert.Equal(t, "10.13", FormatPlain(decimal.RequireFromString("10.125")))
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"₹1,200.00":   "1200",
		"Rs. 2,500":   "2500",
		"INR 10.5":    "10.5",
		"(300.00)":    "-300",
		"-45":         "-45",
		"":            "0",
		"-":           "0",
		" 1 000.25 ":  "1000.25",
		"₹1,00,000":   "100000",
	}
	for in, want := range cases {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "%q parsed as %s", in, got)
	}

	_, err := ParseAmount("twelve")
	require.Error(t, err)
}

func TestCurrencyRoundTrip(t *testing.T) {
	for _, v := range []string{"1200", "0.01", "99999.99", "-12.5"} {
		d := decimal.RequireFromString(v)
		back, err := ParseAmount(FormatCurrency(d))
		require.NoError(t, err)
		assert.True(t, back.Equal(d), "%s came back as %s", v, back)
	}
}
