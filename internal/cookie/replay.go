package cookie

import (
	"strconv"
	"strings"

	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/idna"
)

// URL synthesizes the origin a cookie is set against when replaying it:
// https for secure cookies, http otherwise, leading dots stripped from the
// domain and the cookie path appended.
func (c Cookie) URL() string {
	host := strings.TrimLeft(c.Domain, ".")
	if ascii, err := idna.ToASCII(host); err == nil {
		host = ascii
	}
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	path := c.Path
	if path == "" {
		path = DefaultPath
	}
	return scheme + "://" + host + path
}

// ReplaySameSite returns the sameSite attribute to send to a browser. Only
// values that capitalize to Strict, Lax or None are accepted.
func (c Cookie) ReplaySameSite() (proto.NetworkCookieSameSite, bool) {
	v := c.SameSiteValue()
	if v == "" {
		return "", false
	}
	switch capitalize(v) {
	case "Strict":
		return proto.NetworkCookieSameSiteStrict, true
	case "Lax":
		return proto.NetworkCookieSameSiteLax, true
	case "None":
		return proto.NetworkCookieSameSiteNone, true
	}
	return "", false
}

// Param converts the cookie into the DevTools CookieParam shape used both by
// Network.setCookie and by the automation engine. Unparseable expiry values
// are omitted so the browser treats the cookie as a session cookie.
func (c Cookie) Param() *proto.NetworkCookieParam {
	p := &proto.NetworkCookieParam{
		Name:     c.Name,
		Value:    c.Value,
		URL:      c.URL(),
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
	}
	if p.Path == "" {
		p.Path = DefaultPath
	}
	if ss, ok := c.ReplaySameSite(); ok {
		p.SameSite = ss
	}
	if ts, ok := ParseExpires(c.ExpiresValue()); ok {
		p.Expires = proto.TimeSinceEpoch(ts)
	}
	return p
}

// Params converts a batch, preserving order.
func Params(cookies []Cookie) []*proto.NetworkCookieParam {
	out := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, c.Param())
	}
	return out
}

// FromNetwork maps a browser cookie back into the canonical schema. Session
// cookies (non-positive expiry) carry no expires value.
func FromNetwork(nc *proto.NetworkCookie) Cookie {
	c := Cookie{
		Domain:   nc.Domain,
		Name:     nc.Name,
		Value:    nc.Value,
		Path:     nc.Path,
		Secure:   nc.Secure,
		HTTPOnly: nc.HTTPOnly,
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if exp := int64(nc.Expires); exp > 0 {
		s := strconv.FormatInt(exp, 10)
		c.Expires = &s
	}
	if nc.SameSite != "" {
		s := string(nc.SameSite)
		c.SameSite = &s
	}
	return c
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
