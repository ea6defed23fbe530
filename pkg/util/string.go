package util

import (
	"strings"
	"time"
)

// TruncateRunes shortens s to at most limit runes, appending an ellipsis when
// anything was cut. Used to keep stored error messages bounded.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}

// ParseTimeRange parses optional RFC3339 from/to query values into a time
// range. Empty values yield nil bounds.
func ParseTimeRange(fromStr, toStr string) (from, to *time.Time, err error) {
	if fromStr = strings.TrimSpace(fromStr); fromStr != "" {
		t, parseErr := time.Parse(time.RFC3339, fromStr)
		if parseErr != nil {
			return nil, nil, parseErr
		}
		from = &t
	}
	if toStr = strings.TrimSpace(toStr); toStr != "" {
		t, parseErr := time.Parse(time.RFC3339, toStr)
		if parseErr != nil {
			return nil, nil, parseErr
		}
		to = &t
	}
	return from, to, nil
}
