// Package extract turns raw output captured from cookie-extraction tools on a
// remote host into canonical cookies.
package extract

import (
	"fmt"
	"strings"

	"sessionops/internal/cookie"
)

// Method names an extraction technique. The set is closed.
type Method string

const (
	MethodSharpChromium Method = "sharp_chromium"
	MethodSharpDPAPI    Method = "sharp_dpapi"
	MethodCookieMonster Method = "cookie_monster"
	MethodManualShell   Method = "manual_shell"
)

// Methods lists the supported extraction methods.
func Methods() []Method {
	return []Method{MethodSharpChromium, MethodSharpDPAPI, MethodCookieMonster, MethodManualShell}
}

// Result is the outcome of one extraction. Count is always len(Cookies).
type Result struct {
	Cookies   []cookie.Cookie `json:"cookies"`
	RawOutput string          `json:"raw_output"`
	Count     int             `json:"count"`
}

// lineParser turns captured lines into pre-normalization field maps.
type lineParser func(lines []string) []cookie.Fields

// ParseOutput runs the parser registered for method over raw, normalizes the
// records and keeps only cookies whose domain contains filter.
func ParseOutput(method Method, raw, filter string) (Result, error) {
	spec, ok := methods[method]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	records := spec.parse(strings.Split(raw, "\n"))
	cookies := make([]cookie.Cookie, 0, len(records))
	for _, f := range records {
		cookies = append(cookies, cookie.Normalize(f))
	}
	cookies = cookie.FilterDomain(cookies, filter)

	return Result{Cookies: cookies, RawOutput: raw, Count: len(cookies)}, nil
}

// parseBlocks reads "Key: value" blocks separated by "---" banners or
// "[...]" status lines. A record is emitted only once it carries a name.
func parseBlocks(lines []string) []cookie.Fields {
	var out []cookie.Fields
	current := cookie.Fields{}

	flush := func() bool {
		if name, _ := current[cookie.KeyName].(string); name == "" {
			return false
		}
		out = append(out, current)
		return true
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		if line == "" {
			if flush() {
				current = cookie.Fields{}
			}
			continue
		}
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "[") {
			flush()
			current = cookie.Fields{}
			continue
		}

		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		canon, ok := cookie.CanonicalKey(key)
		if !ok {
			continue
		}
		current[canon] = strings.TrimSpace(val)
	}
	flush()

	return out
}

// parseKeyValue reads "key=value; key=value" lines, one cookie per line.
func parseKeyValue(lines []string) []cookie.Fields {
	var out []cookie.Fields

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "[") || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "=") || !strings.Contains(line, ";") {
			continue
		}

		rec := cookie.Fields{}
		for _, part := range strings.Split(line, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok {
				continue
			}
			canon, known := cookie.CanonicalKey(k)
			if !known {
				continue
			}
			v = strings.TrimSpace(v)
			switch canon {
			case cookie.KeySecure, cookie.KeyHTTPOnly:
				rec[canon] = isOneOrTrue(v)
			default:
				rec[canon] = v
			}
		}

		if nonEmpty(rec, cookie.KeyName) && nonEmpty(rec, cookie.KeyDomain) {
			out = append(out, rec)
		}
	}
	return out
}

// columns maps positional fields of a '|' separated row.
var columns = []string{
	cookie.KeyDomain, cookie.KeyName, cookie.KeyValue, cookie.KeyPath,
	cookie.KeyExpires, cookie.KeySecure, cookie.KeyHTTPOnly,
}

// parseColumns reads sqlite-style "domain|name|value|path|expires|secure|httponly" rows.
func parseColumns(lines []string) []cookie.Fields {
	var out []cookie.Fields

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < len(columns) {
			continue
		}

		rec := cookie.Fields{}
		for i, key := range columns {
			v := strings.TrimSpace(parts[i])
			switch key {
			case cookie.KeySecure, cookie.KeyHTTPOnly:
				rec[key] = isOneOrTrue(v)
			default:
				rec[key] = v
			}
		}
		if !nonEmpty(rec, cookie.KeyName) || !nonEmpty(rec, cookie.KeyDomain) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func isOneOrTrue(v string) bool {
	v = strings.ToLower(v)
	return v == "1" || v == "true"
}

func nonEmpty(f cookie.Fields, key string) bool {
	s, _ := f[key].(string)
	return s != ""
}
