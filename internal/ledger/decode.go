package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Envelope sources, in the order DecodeEnvelope tries them.
const (
	SourceData   = "data"
	SourceLedger = "ledger"
	SourceItems  = "items"
	SourceBody   = "body"
)

// envelopeKeys is the documented fallback priority for locating the ledger
// payload inside a response body. The body itself is tried last.
var envelopeKeys = []string{SourceData, SourceLedger, SourceItems}

// Field aliases accepted on raw transaction records; first present wins.
var (
	aliasDate        = []string{"date", "txnDate", "transactionDate"}
	aliasParticulars = []string{"particulars", "description", "narration"}
	aliasVchType     = []string{"vchType", "voucherType", "vch_type"}
	aliasVchNo       = []string{"vchNo", "voucherNo", "vch_no"}
	aliasDebit       = []string{"debit", "dr"}
	aliasCredit      = []string{"credit", "cr"}
	aliasBalance     = []string{"balance", "runningBalance", "running_balance"}
	aliasBalanceType = []string{"balanceType", "balance_type", "drCr"}
)

var (
	aliasCustomerID      = []string{"id", "_id", "customerId"}
	aliasCustomerName    = []string{"name", "customerName", "displayName"}
	aliasCustomerAddress = []string{"address"}
	aliasCustomerGSTIN   = []string{"gstin", "gstNumber"}
	aliasCustomerPAN     = []string{"pan", "panNumber"}
	aliasCustomerPhone   = []string{"phone", "mobile", "contactNumber"}
	aliasCustomerEmail   = []string{"email"}
	aliasCustomerDiv     = []string{"divisionId", "division"}
	aliasCustomerRef     = []string{"customerCode", "code", "reference"}
)

// Amount is a tolerant numeric field: JSON numbers, numeric or currency
// strings, null and absence are all accepted.
type Amount struct {
	Value   decimal.Decimal
	Present bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = Amount{}
		return nil
	}
	text := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			*a = Amount{}
			return nil
		}
	}
	v, err := ParseAmount(text)
	if err != nil {
		return fmt.Errorf("amount %q: %w", text, err)
	}
	*a = Amount{Value: v, Present: true}
	return nil
}

// RawTransaction is an upstream record before normalisation.
type RawTransaction struct {
	Date        string
	Particulars string
	VchType     string
	VchNo       string
	Debit       Amount
	Credit      Amount
	Balance     Amount
	BalanceType string
}

// UnmarshalJSON resolves field aliases in their documented priority.
func (r *RawTransaction) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	var out RawTransaction
	var err error
	if out.Date, err = pickText(fields, aliasDate); err != nil {
		return err
	}
	if out.Particulars, err = pickText(fields, aliasParticulars); err != nil {
		return err
	}
	if out.VchType, err = pickText(fields, aliasVchType); err != nil {
		return err
	}
	if out.VchNo, err = pickText(fields, aliasVchNo); err != nil {
		return err
	}
	if out.BalanceType, err = pickText(fields, aliasBalanceType); err != nil {
		return err
	}
	if out.Debit, err = pickAmount(fields, aliasDebit); err != nil {
		return err
	}
	if out.Credit, err = pickAmount(fields, aliasCredit); err != nil {
		return err
	}
	if out.Balance, err = pickAmount(fields, aliasBalance); err != nil {
		return err
	}
	*r = out
	return nil
}

// RawSummary mirrors the optional server-side summary block.
type RawSummary struct {
	TotalDebits      Amount `json:"totalDebits"`
	TotalCredits     Amount `json:"totalCredits"`
	TransactionCount *int   `json:"transactionCount"`
	NetBalance       Amount `json:"netBalance"`
}

// Payload is the decoded ledger body, whichever envelope shape it came in.
type Payload struct {
	Source         string
	Customer       Customer
	Transactions   []RawTransaction
	OpeningBalance Amount
	ClosingBalance Amount
	Summary        *RawSummary
}

type payloadObject struct {
	Customer       json.RawMessage  `json:"customer"`
	Transactions   []RawTransaction `json:"transactions"`
	OpeningBalance Amount           `json:"openingBalance"`
	ClosingBalance Amount           `json:"closingBalance"`
	Summary        *RawSummary      `json:"summary"`
}

// DecodeEnvelope locates and decodes the ledger payload. Candidates are tried
// in order: body.data, body.ledger, body.items, then the body itself. An object
// candidate must carry "transactions"; an array candidate is the transaction
// list. A body with success=false yields a FetchError with the backend message.
func DecodeEnvelope(body []byte) (Payload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Payload{}, fetchErr("", fmt.Errorf("empty ledger response"))
	}
	if body[0] == '[' {
		p, ok, err := decodeCandidate(body)
		if err != nil || !ok {
			return Payload{}, fetchErr("", malformed(err))
		}
		p.Source = SourceBody
		return p, nil
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return Payload{}, fetchErr("", malformed(err))
	}
	if ok, present := boolField(top, "success"); present && !ok {
		return Payload{}, &FetchError{Message: BackendMessage(body)}
	}
	for _, key := range envelopeKeys {
		raw, found := top[key]
		if !found || isNull(raw) {
			continue
		}
		p, ok, err := decodeCandidate(raw)
		if err != nil {
			return Payload{}, fetchErr("", malformed(err))
		}
		if ok {
			p.Source = key
			return p, nil
		}
	}
	p, ok, err := decodeCandidate(body)
	if err != nil {
		return Payload{}, fetchErr("", malformed(err))
	}
	if !ok {
		return Payload{}, fetchErr("", malformed(fmt.Errorf("no transactions in any known envelope")))
	}
	p.Source = SourceBody
	return p, nil
}

// DecodeCustomers reads a customer list from body, body.data or body.customers.
func DecodeCustomers(body []byte) ([]Customer, error) {
	body = bytes.TrimSpace(body)
	candidates := []json.RawMessage{body}
	if len(body) > 0 && body[0] == '{' {
		var top map[string]json.RawMessage
		if err := json.Unmarshal(body, &top); err != nil {
			return nil, fetchErr("", malformed(err))
		}
		if ok, present := boolField(top, "success"); present && !ok {
			return nil, &FetchError{Message: BackendMessage(body)}
		}
		candidates = candidates[:0]
		for _, key := range []string{"data", "customers", "items"} {
			if raw, found := top[key]; found && !isNull(raw) {
				candidates = append(candidates, raw)
			}
		}
	}
	for _, raw := range candidates {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fetchErr("", malformed(err))
		}
		out := make([]Customer, 0, len(items))
		for _, item := range items {
			c, err := decodeCustomer(item)
			if err != nil {
				return nil, fetchErr("", malformed(err))
			}
			out = append(out, c)
		}
		return out, nil
	}
	return nil, fetchErr("", malformed(fmt.Errorf("no customer list in response")))
}

// BackendMessage extracts "message" or "error" from an error body, falling
// back to DefaultFetchMessage.
func BackendMessage(body []byte) string {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &top); err != nil {
		return DefaultFetchMessage
	}
	for _, key := range []string{"message", "error"} {
		if msg, err := pickText(top, []string{key}); err == nil && strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
	}
	return DefaultFetchMessage
}

func decodeCandidate(raw json.RawMessage) (Payload, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Payload{}, false, nil
	}
	switch raw[0] {
	case '[':
		var txns []RawTransaction
		if err := json.Unmarshal(raw, &txns); err != nil {
			return Payload{}, false, err
		}
		return Payload{Transactions: txns}, true, nil
	case '{':
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(raw, &keys); err != nil {
			return Payload{}, false, err
		}
		if _, ok := keys["transactions"]; !ok {
			return Payload{}, false, nil
		}
		var obj payloadObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Payload{}, false, err
		}
		p := Payload{
			Transactions:   obj.Transactions,
			OpeningBalance: obj.OpeningBalance,
			ClosingBalance: obj.ClosingBalance,
			Summary:        obj.Summary,
		}
		if len(obj.Customer) > 0 && !isNull(obj.Customer) {
			c, err := decodeCustomer(obj.Customer)
			if err != nil {
				return Payload{}, false, err
			}
			p.Customer = c
		}
		return p, true, nil
	default:
		return Payload{}, false, nil
	}
}

func decodeCustomer(raw json.RawMessage) (Customer, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Customer{}, err
	}
	var c Customer
	targets := []struct {
		dst     *string
		aliases []string
	}{
		{&c.ID, aliasCustomerID},
		{&c.Name, aliasCustomerName},
		{&c.Address, aliasCustomerAddress},
		{&c.GSTIN, aliasCustomerGSTIN},
		{&c.PAN, aliasCustomerPAN},
		{&c.Phone, aliasCustomerPhone},
		{&c.Email, aliasCustomerEmail},
		{&c.Division, aliasCustomerDiv},
		{&c.Reference, aliasCustomerRef},
	}
	for _, t := range targets {
		v, err := pickText(fields, t.aliases)
		if err != nil {
			return Customer{}, err
		}
		*t.dst = v
	}
	return c, nil
}

// pickText returns the first present alias as text. Strings are unquoted,
// numbers and booleans keep their literal form, objects are rejected.
func pickText(fields map[string]json.RawMessage, aliases []string) (string, error) {
	for _, key := range aliases {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		raw = bytes.TrimSpace(raw)
		switch raw[0] {
		case '"':
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return "", fmt.Errorf("field %s: %w", key, err)
			}
			return s, nil
		case '{', '[':
			return "", fmt.Errorf("field %s: expected scalar", key)
		default:
			return string(raw), nil
		}
	}
	return "", nil
}

func pickAmount(fields map[string]json.RawMessage, aliases []string) (Amount, error) {
	for _, key := range aliases {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		var a Amount
		if err := a.UnmarshalJSON(raw); err != nil {
			return Amount{}, fmt.Errorf("field %s: %w", key, err)
		}
		return a, nil
	}
	return Amount{}, nil
}

func boolField(fields map[string]json.RawMessage, key string) (value, present bool) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func malformed(err error) error {
	if err == nil {
		return fmt.Errorf("malformed ledger payload")
	}
	return fmt.Errorf("malformed ledger payload: %w", err)
}
