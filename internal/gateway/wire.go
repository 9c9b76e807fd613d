package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// The API is loose about scalar encodings: numbers arrive as JSON numbers or
// numeric strings depending on the endpoint. These types accept both.

// Amount is a money value.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func AmountFromInt(v int64) Amount {
	return Amount{Decimal: decimal.NewFromInt(v)}
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s, null := scalar(b)
	if null {
		a.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("amount %q: %w", s, err)
	}
	a.Decimal = d
	return nil
}

// ID is an identifier the API may send as a number or a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s, null := scalar(b)
	if null {
		*id = ""
		return nil
	}
	*id = ID(s)
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Int is an integer sent as a number or a numeric string.
type Int int

func (i *Int) UnmarshalJSON(b []byte) error {
	s, null := scalar(b)
	if null {
		*i = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("int %q: %w", s, err)
		}
		v = int(f)
	}
	*i = Int(v)
	return nil
}

// Float is a coordinate sent as a number or a numeric string.
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	s, null := scalar(b)
	if null {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("float %q: %w", s, err)
	}
	*f = Float(v)
	return nil
}

func scalar(b []byte) (string, bool) {
	raw := bytes.TrimSpace(b)
	if len(raw) == 0 || string(raw) == "null" {
		return "", true
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return string(raw), false
		}
		s = strings.TrimSpace(s)
		return s, s == ""
	}
	return string(raw), false
}
