package workers

import (
	"encoding/json"
	"strconv"
	"strings"
)

// defaultImportance is used when the NLP service omits or mangles the
// importance of a requirement
const defaultImportance = 0.5

// normalizeImportance coerces the loose importance value to a float in
// [0,1]. Accepts numbers and numeric strings; percent-scale values are
// brought back into range.
func normalizeImportance(raw json.RawMessage) float64 {
	v, ok := rawToFloat(raw)
	if !ok {
		return defaultImportance
	}
	if v > 1 {
		v = v / 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeInferred coerces the loose inferred value to a bool. Accepts
// booleans, "true"/"false" strings and numbers (non-zero is true).
func normalizeInferred(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.EqualFold(strings.TrimSpace(s), "true")
	}

	if v, ok := rawToFloat(raw); ok {
		return v != 0
	}
	return false
}

func rawToFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
