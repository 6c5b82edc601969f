package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// DefaultLocale drives digit grouping when none is configured.
const DefaultLocale = "en-IN"

// RupeeSymbol prefixes every non-blank currency cell.
const RupeeSymbol = "₹"

var amountStripper = strings.NewReplacer(
	RupeeSymbol, "",
	"Rs.", "",
	"INR", "",
	",", "",
	" ", "",
	"\u00a0", "",
	"\t", "",
)

var defaultFormatter = NewFormatter(DefaultLocale)

// Formatter renders amounts with locale aware grouping and two decimals.
// Indian locales group as 1,00,000; everything else groups in thousands.
type Formatter struct {
	lakh   bool
	symbol string
}

// NewFormatter builds a formatter for the BCP 47 locale, falling back to
// English grouping when the tag cannot be parsed.
func NewFormatter(locale string) Formatter {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.English
	}
	region, _ := tag.Region()
	return Formatter{lakh: region.String() == "IN", symbol: RupeeSymbol}
}

// Currency renders v as "₹1,200.00". Amounts that round to zero render as
// an empty string so the table shows a blank cell.
func (f Formatter) Currency(v decimal.Decimal) string {
	v = v.Round(2)
	if v.IsZero() {
		return ""
	}
	if v.IsNegative() {
		return "-" + f.symbol + f.Plain(v.Neg())
	}
	return f.symbol + f.Plain(v)
}

// Plain renders v grouped with exactly two decimals and no symbol. It works
// on the decimal string, so large amounts keep every digit.
func (f Formatter) Plain(v decimal.Decimal) string {
	fixed := v.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
		if strings.Trim(fixed, "0.") == "" {
			sign = ""
		}
	}
	intPart, frac, _ := strings.Cut(fixed, ".")
	return sign + f.group(intPart) + "." + frac
}

func (f Formatter) group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	size := 3
	if f.lakh {
		size = 2
	}
	var parts []string
	for len(head) > size {
		parts = append([]string{head[len(head)-size:]}, parts...)
		head = head[:len(head)-size]
	}
	parts = append([]string{head}, parts...)
	return strings.Join(parts, ",") + "," + tail
}

// FormatCurrency uses the default locale.
func FormatCurrency(v decimal.Decimal) string { return defaultFormatter.Currency(v) }

// FormatPlain uses the default locale.
func FormatPlain(v decimal.Decimal) string { return defaultFormatter.Plain(v) }

// ParseAmount strips the currency symbol, grouping commas and whitespace and
// parses what remains. Blank input parses as zero; "(1.00)" is negative.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = amountStripper.Replace(strings.TrimSpace(s))
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// amountOrZero is the comparator view of a currency cell.
func amountOrZero(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
