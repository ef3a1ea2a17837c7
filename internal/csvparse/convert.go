package csvparse

import (
	"math"
	"strconv"
	"strings"

	"github.com/trogers1052/options-monitor/internal/models"
)

// ConvertValue coerces one raw field. A single layer of surrounding double
// quotes is removed first. Non-empty decimal numbers become numbers, "true"
// and "false" in any case become booleans, anything else stays a string.
func ConvertValue(raw string) models.Value {
	value := strings.TrimSpace(raw)

	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		value = value[1 : len(value)-1]
	}

	if n, ok := parseNumber(value); ok {
		return models.Number(n)
	}

	switch strings.ToLower(value) {
	case "true":
		return models.Bool(true)
	case "false":
		return models.Bool(false)
	}

	return models.String(value)
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// hex floats are accepted by ParseFloat but never appear in quote data
	if strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	// ParseFloat also accepts "inf" and "infinity"
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
