// Package money centralizes monetary arithmetic rules: every amount in the
// system is a shopspring decimal quantized to 2 decimal places before storage
// or rendering. Amounts are NEVER handled as binary floats.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Quantize normalizes d to 2 decimal places (half-up).
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// String2 renders d with exactly two decimal places, e.g. "15.00".
func String2(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// Map is a payment-method → amount mapping stored as a JSONB column.
// Keys are method codes ("CASH", "DEBIT", ...); values are 2dp decimals.
type Map map[string]decimal.Decimal

// Get returns the amount for method, or zero when absent.
func (m Map) Get(method string) decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	if v, ok := m[method]; ok {
		return v
	}
	return decimal.Zero
}

// Strings renders every entry as a fixed-2 string, the shape persisted in
// frozen session totals and returned to callers.
func (m Map) Strings() map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = String2(v)
	}
	return out
}

func (m Map) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Map) Scan(src interface{}) error {
	if src == nil {
		*m = Map{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("money.Map: unsupported scan type %T", src)
	}
	return json.Unmarshal(raw, m)
}

// CountMap is a payment-method → count mapping (plus a "total" key),
// persisted as JSONB alongside frozen session totals.
type CountMap map[string]int64

func (m CountMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *CountMap) Scan(src interface{}) error {
	if src == nil {
		*m = CountMap{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("money.CountMap: unsupported scan type %T", src)
	}
	return json.Unmarshal(raw, m)
}
