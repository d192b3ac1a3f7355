package cookie

import (
	"strconv"
	"strings"
	"time"
)

// isoLayouts are the ISO-8601 shapes accepted for non-numeric expiry values.
// Values without an offset are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseExpires converts a stored expiry string to epoch seconds. All-digit
// values are taken as epoch seconds already; anything else must parse as
// ISO-8601 with a trailing "Z" treated as +00:00.
func ParseExpires(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if allDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

// NetscapeExpiry renders the expiry column of a cookies.txt line: digits are
// kept verbatim, ISO-8601 becomes epoch seconds, anything else becomes "0".
func NetscapeExpiry(c Cookie) string {
	v := strings.TrimSpace(c.ExpiresValue())
	if v != "" && allDigits(v) {
		return v
	}
	n, ok := ParseExpires(v)
	if !ok {
		return "0"
	}
	return strconv.FormatInt(n, 10)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
