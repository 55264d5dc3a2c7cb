package order

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DefaultMaxQuantity is the per-line quantity above which an order is
// treated as suspicious. It is an anti-fraud heuristic, not a stock limit.
const DefaultMaxQuantity = 5

// Policy holds the tunable validation thresholds.
type Policy struct {
	MaxQuantity int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{MaxQuantity: DefaultMaxQuantity}
}

// Rule identifies which validation check rejected an order.
type Rule string

const (
	RuleMissingField       Rule = "missing_field"
	RuleLengthMismatch     Rule = "length_mismatch"
	RuleInvalidPhone       Rule = "invalid_phone"
	RuleInvalidQuantity    Rule = "invalid_quantity"
	RuleSuspiciousQuantity Rule = "suspicious_quantity"
	RuleInvalidPrice       Rule = "invalid_price"
	RuleTotalMismatch      Rule = "total_mismatch"
	RuleMissingAddress     Rule = "missing_address"
	RuleInvalidEncoding    Rule = "invalid_encoding"
)

// ValidationError describes the first rule an order violated.
type ValidationError struct {
	Rule   Rule
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	switch e.Rule {
	case RuleMissingField:
		return "missing " + e.Field
	case RuleSuspiciousQuantity:
		return "suspicious quantity"
	case RuleMissingAddress:
		return "missing address/pin"
	}
	if e.Detail != "" {
		return e.Detail
	}
	return strings.ReplaceAll(string(e.Rule), "_", " ")
}

const countryPrefix = "+91"

// NormalizePhone strips surrounding spaces, a leading country prefix and
// leading zeros. The second result reports whether exactly 10 digits remain.
func NormalizePhone(phone string) (string, bool) {
	p := strings.TrimSpace(phone)
	p = strings.TrimPrefix(p, countryPrefix)
	p = strings.TrimLeft(p, "0")
	if len(p) != 10 {
		return p, false
	}
	for i := range len(p) {
		if p[i] < '0' || p[i] > '9' {
			return p, false
		}
	}
	return p, true
}

// Validate checks an order against structural and business invariants and
// returns a *ValidationError for the first violated rule, or nil. It performs
// no I/O and never mutates the order.
func Validate(o *Order, policy Policy) error {
	if policy.MaxQuantity <= 0 {
		policy.MaxQuantity = DefaultMaxQuantity
	}

	if field := firstMissing(o); field != "" {
		return &ValidationError{Rule: RuleMissingField, Field: field}
	}
	if field := firstInvalidUTF8(o); field != "" {
		return &ValidationError{Rule: RuleInvalidEncoding, Field: field, Detail: "invalid utf-8 in " + field}
	}

	n := len(o.ProductIDs)
	if len(o.Quantities) != n || len(o.UnitPrices) != n {
		return &ValidationError{
			Rule:  RuleLengthMismatch,
			Field: "line_items",
			Detail: fmt.Sprintf("line item length mismatch: %d product_ids, %d quantities, %d prices",
				n, len(o.Quantities), len(o.UnitPrices)),
		}
	}

	if _, ok := NormalizePhone(o.Customer.Phone); !ok {
		return &ValidationError{Rule: RuleInvalidPhone, Field: "phone", Detail: "invalid phone"}
	}

	for i, q := range o.Quantities {
		if q < 1 {
			return &ValidationError{
				Rule:   RuleInvalidQuantity,
				Field:  "quantities",
				Detail: fmt.Sprintf("invalid quantity %d for product %s", q, o.ProductIDs[i]),
			}
		}
	}
	for _, q := range o.Quantities {
		if q > policy.MaxQuantity {
			return &ValidationError{Rule: RuleSuspiciousQuantity, Field: "quantities"}
		}
	}

	for i, p := range o.UnitPrices {
		if !p.IsPositive() {
			return &ValidationError{
				Rule:   RuleInvalidPrice,
				Field:  "prices",
				Detail: fmt.Sprintf("invalid price %s for product %s", p, o.ProductIDs[i]),
			}
		}
	}

	computed := decimal.Zero
	for _, li := range o.LineItems() {
		computed = computed.Add(li.Amount())
	}
	if !computed.Equal(o.DeclaredTotal) {
		return &ValidationError{
			Rule:   RuleTotalMismatch,
			Field:  "total",
			Detail: fmt.Sprintf("total mismatch: computed %s, declared %s", computed, o.DeclaredTotal),
		}
	}

	if blank(o.Address.Line1) || blank(o.Address.PostalCode) {
		return &ValidationError{Rule: RuleMissingAddress, Field: "address"}
	}

	return nil
}

// firstMissing returns the name of the first required field that is empty.
func firstMissing(o *Order) string {
	strs := []struct {
		name, value string
	}{
		{"order_id", o.ID},
		{"name", o.Customer.Name},
		{"email", o.Customer.Email},
		{"phone", o.Customer.Phone},
		{"address1", o.Address.Line1},
		{"city", o.Address.City},
		{"state", o.Address.State},
		{"pin", o.Address.PostalCode},
	}
	for _, f := range strs {
		if blank(f.value) {
			return f.name
		}
	}

	switch {
	case len(o.ProductIDs) == 0:
		return "product_ids"
	case len(o.Quantities) == 0:
		return "quantities"
	case len(o.UnitPrices) == 0:
		return "prices"
	case o.DeclaredTotal.IsZero():
		return "total"
	case blank(o.PaymentMethod):
		return "payment_method"
	}

	for _, id := range o.ProductIDs {
		if blank(id) {
			return "product_ids"
		}
	}
	return ""
}

// firstInvalidUTF8 returns the name of the first text field that is not
// valid UTF-8.
func firstInvalidUTF8(o *Order) string {
	strs := []struct {
		name, value string
	}{
		{"order_id", o.ID},
		{"name", o.Customer.Name},
		{"email", o.Customer.Email},
		{"phone", o.Customer.Phone},
		{"address1", o.Address.Line1},
		{"address2", o.Address.Line2},
		{"city", o.Address.City},
		{"state", o.Address.State},
		{"pin", o.Address.PostalCode},
		{"payment_method", o.PaymentMethod},
		{"payment_id", o.PaymentID},
		{"notes", o.Notes},
	}
	for _, f := range strs {
		if !utf8.ValidString(f.value) {
			return f.name
		}
	}
	for _, id := range o.ProductIDs {
		if !utf8.ValidString(id) {
			return "product_ids"
		}
	}
	return ""
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
