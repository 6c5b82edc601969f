package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SignPolicy decides which direction a signed running balance denotes when
// the backend omits balanceType.
type SignPolicy string

const (
	// SignPositiveDr treats non-negative running totals as Dr (customer owes).
	SignPositiveDr SignPolicy = "positive-dr"
	// SignPositiveCr treats non-negative running totals as Cr.
	SignPositiveCr SignPolicy = "positive-cr"
)

// ParseSignPolicy validates a configured policy name. Empty selects the default.
func ParseSignPolicy(s string) (SignPolicy, error) {
	switch SignPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SignPositiveDr:
		return SignPositiveDr, nil
	case SignPositiveCr:
		return SignPositiveCr, nil
	default:
		return "", fmt.Errorf("ledger: unknown balance sign policy %q", s)
	}
}

// Direction maps a signed balance to Dr or Cr.
func (p SignPolicy) Direction(v decimal.Decimal) string {
	positive := !v.IsNegative()
	if p == SignPositiveCr {
		positive = !positive
	}
	if positive {
		return BalanceDr
	}
	return BalanceCr
}

// Signed is the inverse of Direction: it turns a magnitude and its Dr/Cr
// label back into a signed running balance. Unknown labels keep the sign.
func (p SignPolicy) Signed(v decimal.Decimal, balanceType string) decimal.Decimal {
	mag := v.Abs()
	drPositive := p != SignPositiveCr
	switch balanceType {
	case BalanceDr:
		if drPositive {
			return mag
		}
		return mag.Neg()
	case BalanceCr:
		if drPositive {
			return mag.Neg()
		}
		return mag
	default:
		return v
	}
}

// Totals accumulates figures while normalising, used for the summary and
// for opening/closing fallbacks.
type Totals struct {
	Debits       decimal.Decimal
	Credits      decimal.Decimal
	Count        int
	FirstBalance decimal.Decimal
	LastBalance  decimal.Decimal
	HasBalance   bool
}

// Normalizer maps raw records to canonical transactions.
type Normalizer struct {
	Formatter Formatter
	Policy    SignPolicy
}

// NewNormalizer builds a normalizer for the given locale and sign policy.
func NewNormalizer(locale string, policy SignPolicy) Normalizer {
	if policy == "" {
		policy = SignPositiveDr
	}
	return Normalizer{Formatter: NewFormatter(locale), Policy: policy}
}

// Normalize is a pure mapping: it neither sorts nor deduplicates. A record
// carrying both a debit and a credit amount is rejected as malformed.
func (n Normalizer) Normalize(raw []RawTransaction) ([]Transaction, Totals, error) {
	policy := n.Policy
	if policy == "" {
		policy = SignPositiveDr
	}
	totals := Totals{Debits: decimal.Zero, Credits: decimal.Zero}
	out := make([]Transaction, 0, len(raw))
	for i, r := range raw {
		if !r.Debit.Value.IsZero() && !r.Credit.Value.IsZero() {
			return nil, Totals{}, fetchErr("", fmt.Errorf("malformed ledger payload: row %d carries both debit and credit", i+1))
		}
		txn := Transaction{
			Date:        r.Date,
			Particulars: r.Particulars,
			VchType:     r.VchType,
			VchNo:       r.VchNo,
			Debit:       n.Formatter.Currency(r.Debit.Value),
			Credit:      n.Formatter.Currency(r.Credit.Value),
			Balance:     n.Formatter.Currency(r.Balance.Value.Abs()),
		}
		signed := r.Balance.Value
		if bt := canonicalBalanceType(r.BalanceType); bt != "" {
			txn.BalanceType = bt
			signed = policy.Signed(r.Balance.Value, bt)
		} else {
			txn.BalanceType = policy.Direction(r.Balance.Value)
		}
		totals.Debits = totals.Debits.Add(r.Debit.Value)
		totals.Credits = totals.Credits.Add(r.Credit.Value)
		totals.Count++
		if r.Balance.Present {
			if !totals.HasBalance {
				totals.FirstBalance = signed
			}
			totals.LastBalance = signed
			totals.HasBalance = true
		}
		out = append(out, txn)
	}
	return out, totals, nil
}

// canonicalBalanceType folds dr/DR/cr/CR to Dr/Cr; other values pass through.
func canonicalBalanceType(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "dr":
		return BalanceDr
	case "cr":
		return BalanceCr
	default:
		return s
	}
}
