package validator

import (
	"regexp"
	"strings"
	"time"
)

type ValidationError struct {
	Field   string
	Message string
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var msgs []string
	for _, err := range v {
		msgs = append(msgs, err.Field+": "+err.Message)
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) ToMap() map[string]string {
	result := make(map[string]string)
	for _, err := range v {
		result[err.Field] = err.Message
	}
	return result
}

// IsEmpty checks if a string is empty after trimming whitespace.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Numeric validation
var numericRegex = regexp.MustCompile(`^[0-9]+$`)

func IsNumeric(s string) bool {
	return numericRegex.MatchString(s)
}

// ParsePortalDate parses a date the way the portal prints it: "YYYY/MM/DD"
// with one- or two-digit month and day.
func ParsePortalDate(dateStr string) (time.Time, bool) {
	date, err := time.Parse("2006/1/2", strings.TrimSpace(dateStr))
	return date, err == nil
}

var timeRangeRegex = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2})~(\d{2}:\d{2}:\d{2})$`)

// SplitTimeRange splits a portal punch range "HH:MM:SS~HH:MM:SS" into its
// two clock strings. Returns false when the pattern does not match.
func SplitTimeRange(rangeStr string) (in, out string, ok bool) {
	m := timeRangeRegex.FindStringSubmatch(rangeStr)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// IsValidClockTime checks a "HH:MM:SS" wall-clock string.
func IsValidClockTime(clockStr string) (time.Time, bool) {
	t, err := time.Parse("15:04:05", clockStr)
	return t, err == nil
}

// CleanCellText strips the whitespace variants the portal pads table
// cells with (NBSP, ideographic space) in addition to ASCII space.
func CleanCellText(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "　", "")
	return strings.TrimSpace(s)
}
