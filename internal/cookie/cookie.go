// Package cookie defines the canonical cookie record that every extraction
// parser produces and every exporter and replay client consumes.
//
// Tool output arrives as loosely-typed field maps (see Fields). Normalize turns
// such a map into a Cookie with documented defaults; it never fails.
package cookie

import (
	"fmt"
	"strconv"
	"strings"
)

// Canonical field keys understood by Normalize.
const (
	KeyDomain   = "domain"
	KeyName     = "name"
	KeyValue    = "value"
	KeyPath     = "path"
	KeyExpires  = "expires"
	KeySecure   = "secure"
	KeyHTTPOnly = "httpOnly"
	KeySameSite = "sameSite"
)

// DefaultPath is applied when a record carries no path.
const DefaultPath = "/"

// keyAliases maps lower-cased tool keys onto canonical keys.
var keyAliases = map[string]string{
	"host":       KeyDomain,
	"domain":     KeyDomain,
	"name":       KeyName,
	"value":      KeyValue,
	"path":       KeyPath,
	"expires":    KeyExpires,
	"expiry":     KeyExpires,
	"expiration": KeyExpires,
	"secure":     KeySecure,
	"httponly":   KeyHTTPOnly,
	"http_only":  KeyHTTPOnly,
	"samesite":   KeySameSite,
	"same_site":  KeySameSite,
}

// CanonicalKey resolves a raw tool key (any case, surrounding space allowed)
// to its canonical field key.
func CanonicalKey(raw string) (string, bool) {
	key, ok := keyAliases[strings.ToLower(strings.TrimSpace(raw))]
	return key, ok
}

// Fields is a pre-normalization record. Values are strings, bools or numbers
// depending on what the producing parser could infer.
type Fields map[string]interface{}

// Cookie is the canonical cookie record. Expires and SameSite are optional;
// nil means absent and serializes as JSON null.
type Cookie struct {
	Domain   string  `json:"domain"`
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Path     string  `json:"path"`
	Expires  *string `json:"expires"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"http_only"`
	SameSite *string `json:"same_site"`
}

// Normalize canonicalizes a field map. Missing path becomes "/", missing or
// non-truthy flags become false, empty expires/sameSite become absent.
func Normalize(f Fields) Cookie {
	c := Cookie{
		Domain:   asString(f[KeyDomain]),
		Name:     asString(f[KeyName]),
		Value:    asString(f[KeyValue]),
		Path:     asString(f[KeyPath]),
		Secure:   Truthy(f[KeySecure]),
		HTTPOnly: Truthy(f[KeyHTTPOnly]),
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if v := asString(f[KeyExpires]); v != "" {
		c.Expires = &v
	}
	if v := asString(f[KeySameSite]); v != "" {
		c.SameSite = &v
	}
	return c
}

// Fields returns the cookie as a canonical field map. Normalize(c.Fields())
// yields a cookie equal to c for any normalized c.
func (c Cookie) Fields() Fields {
	f := Fields{
		KeyDomain:   c.Domain,
		KeyName:     c.Name,
		KeyValue:    c.Value,
		KeyPath:     c.Path,
		KeySecure:   c.Secure,
		KeyHTTPOnly: c.HTTPOnly,
	}
	if c.Expires != nil {
		f[KeyExpires] = *c.Expires
	}
	if c.SameSite != nil {
		f[KeySameSite] = *c.SameSite
	}
	return f
}

// ExpiresValue returns the stored expiry string or "" when absent.
func (c Cookie) ExpiresValue() string {
	if c.Expires == nil {
		return ""
	}
	return *c.Expires
}

// SameSiteValue returns the stored sameSite string or "" when absent.
func (c Cookie) SameSiteValue() string {
	if c.SameSite == nil {
		return ""
	}
	return *c.SameSite
}

// Truthy reports whether a loosely-typed flag is set. Strings "true", "1" and
// "yes" (any case) are truthy, as are true and non-zero numbers.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true
		}
		return false
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return false
	}
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// FilterDomain keeps cookies whose domain contains substr, case-insensitively.
// An empty filter keeps everything.
func FilterDomain(cookies []Cookie, substr string) []Cookie {
	if substr == "" {
		return cookies
	}
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if DomainMatches(c.Domain, substr) {
			out = append(out, c)
		}
	}
	return out
}

// DomainMatches reports whether domain contains substr under Unicode case
// folding. An empty substr matches every domain.
func DomainMatches(domain, substr string) bool {
	return strings.Contains(strings.ToLower(domain), strings.ToLower(substr))
}
