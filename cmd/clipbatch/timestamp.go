package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var errBadTimestamp = errors.New("expected seconds, MM:SS or HH:MM:SS")

// parseTimestamp parses "12.5", "01:05" or "00:01:05.250" into seconds.
func parseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errBadTimestamp
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", errBadTimestamp, s)
	}

	var total float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("%w: %q", errBadTimestamp, s)
		}
		// Only the last field may be fractional.
		if i < len(parts)-1 && v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %q", errBadTimestamp, s)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("%w: %q", errBadTimestamp, s)
		}
		total = total*60 + v
	}
	return total, nil
}

// formatTimestamp renders seconds as HH:MM:SS.mmm.
func formatTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	ms := int64(math.Round(sec * 1000))
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}
