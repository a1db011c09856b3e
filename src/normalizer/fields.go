package normalizer

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Fields is a decoded JSON object whose numbers are kept as json.Number.
type Fields map[string]any

// DecodeFields decodes a JSON object keeping numeric precision.
func DecodeFields(payload []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var f Fields
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return f, nil
}

// String returns the first alias holding a non-empty string or number.
func (f Fields) String(aliases ...string) string {
	for _, key := range aliases {
		v, ok := f[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case json.Number:
			return t.String()
		case float64:
			if !math.IsNaN(t) && !math.IsInf(t, 0) {
				return strconv.FormatFloat(t, 'f', -1, 64)
			}
		case int:
			return strconv.Itoa(t)
		case int64:
			return strconv.FormatInt(t, 10)
		}
	}
	return ""
}

// Decimal returns the first alias holding a finite number. Numeric strings
// are accepted; anything else counts as absent.
func (f Fields) Decimal(aliases ...string) decimal.NullDecimal {
	for _, key := range aliases {
		v, ok := f[key]
		if !ok || v == nil {
			continue
		}
		if d, ok := toDecimal(v); ok {
			return decimal.NewNullDecimal(d)
		}
	}
	return decimal.NullDecimal{}
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case decimal.Decimal:
		return t, true
	}
	return decimal.Zero, false
}
