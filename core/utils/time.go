package utils

import (
	"time"
	"unicode/utf8"
)

// UTCNow returns the current time in UTC.
func UTCNow() time.Time {
	return time.Now().UTC()
}

// FromUnixSeconds converts a source-reported fractional unix timestamp to UTC time.
func FromUnixSeconds(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

// Truncate limits a string to at most maxLen bytes, backing off to a rune
// boundary so the result stays valid UTF-8. Used to bound the error detail
// stored in the run log.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
