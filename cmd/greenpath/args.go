package main

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"greenpath/internal/api"
)

// parseAssignments reads repeated key=value flags. Later keys win.
func parseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

// parseMetrics reads building metrics. Empty values are skipped, the way a
// blank form field is not sent.
func parseMetrics(pairs []string) (map[string]float64, error) {
	raw, err := parseAssignments(pairs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		if !slices.Contains(api.MetricFields, k) {
			return nil, fmt.Errorf("unknown metric %q (valid: %s)", k, strings.Join(api.MetricFields, ", "))
		}
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("metric %s: %q is not a number", k, v)
		}
		out[k] = f
	}
	return out, nil
}

// parseWeights reads theme ratings; every value must be a whole number in
// 0..100.
func parseWeights(pairs []string) (map[string]int, error) {
	raw, err := parseAssignments(pairs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			return nil, fmt.Errorf("theme %s: weight must be a whole number between 0 and 100, got %q", k, v)
		}
		out[k] = n
	}
	return out, nil
}

// parsePatch turns key=value pairs into a JSON patch body. Numbers and
// booleans keep their type, "null" clears a field, anything else is a string.
func parsePatch(pairs []string) (map[string]any, error) {
	raw, err := parseAssignments(pairs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		switch {
		case v == "null":
			out[k] = nil
		case v == "true" || v == "false":
			out[k] = v == "true"
		default:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				out[k] = f
			} else {
				out[k] = v
			}
		}
	}
	return out, nil
}
