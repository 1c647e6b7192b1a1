package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseAmount reads a provider numeric field. Missing, malformed or
// non-finite values read as zero.
func ParseAmount(value any) float64 {
	var out float64
	switch typed := value.(type) {
	case nil:
		return 0
	case float64:
		out = typed
	case float32:
		out = float64(typed)
	case int:
		out = float64(typed)
	case int64:
		out = float64(typed)
	case int32:
		out = float64(typed)
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0
		}
		out = parsed
	case string:
		trimmed := strings.TrimSpace(strings.ReplaceAll(typed, ",", ""))
		if trimmed == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0
		}
		out = parsed
	default:
		return 0
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0
	}
	return out
}

// FirstAmount returns the first present field, mirroring "a ?? b ?? 0".
func FirstAmount(values ...any) float64 {
	for _, value := range values {
		if value == nil {
			continue
		}
		return ParseAmount(value)
	}
	return 0
}
