package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Number coerces a loosely typed JSON value to float64.
// Missing, non-numeric and non-finite values become 0.
func Number(v any) float64 {
	f, err := cast.ToFloat64E(scalar(v))
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Int coerces v to an integer, truncating fractional values. Failures become 0.
func Int(v any) int64 {
	if n, err := cast.ToInt64E(scalar(v)); err == nil {
		return n
	}
	return int64(Number(v))
}

// Index coerces a positional reference. Anything that is not a
// non-negative whole number yields -1.
func Index(v any) int {
	switch t := v.(type) {
	case nil, bool:
		return -1
	case string:
		if strings.TrimSpace(t) == "" {
			return -1
		}
	}
	f, err := cast.ToFloat64E(scalar(v))
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return -1
	}
	return int(f)
}

// Text renders scalars as strings; nil and containers become "".
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case map[string]any, []any:
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

// ID reads an external identifier. Whole floats lose their ".0".
func ID(v any) ExternalID {
	switch t := v.(type) {
	case nil, bool, map[string]any, []any:
		return ""
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return ExternalID(strconv.FormatFloat(t, 'f', -1, 64))
		}
	}
	return ExternalID(strings.TrimSpace(Text(v)))
}

// scalar trims strings and turns json.Number into its literal so cast sees plain text.
func scalar(v any) any {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	}
	return v
}
