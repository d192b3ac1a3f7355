// Package export renders cookie sets into documents other tools can import.
package export

import (
	"encoding/json"
	"strings"

	"sessionops/internal/cookie"
	"sessionops/internal/logging"
)

// Format names an export document type.
type Format string

const (
	FormatNetscape       Format = "netscape"
	FormatJSON           Format = "json"
	FormatEditThisCookie Format = "editthiscookie"
	FormatHeader         Format = "header"
)

// Formats lists the supported formats, default first.
func Formats() []Format {
	return []Format{FormatNetscape, FormatJSON, FormatEditThisCookie, FormatHeader}
}

// Document is a rendered export.
type Document struct {
	Content     string `json:"content"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Format      Format `json:"format"`
	Count       int    `json:"count"`
}

type renderer struct {
	filename    string
	contentType string
	render      func([]cookie.Cookie) string
}

var renderers = map[Format]renderer{
	FormatNetscape:       {"cookies.txt", "text/plain", renderNetscape},
	FormatJSON:           {"cookies.json", "application/json", renderJSON},
	FormatEditThisCookie: {"editthiscookie.json", "application/json", renderEditThisCookie},
	FormatHeader:         {"cookie_header.txt", "text/plain", renderHeader},
}

// Export filters cookies by domain and renders them in format. Unknown
// formats render as Netscape.
func Export(cookies []cookie.Cookie, format Format, domainFilter string) Document {
	cookies = cookie.FilterDomain(cookies, domainFilter)

	r, ok := renderers[format]
	if !ok {
		logging.ExportDebug("Unknown export format %q, using %s", format, FormatNetscape)
		format = FormatNetscape
		r = renderers[FormatNetscape]
	}

	doc := Document{
		Content:     r.render(cookies),
		Filename:    r.filename,
		ContentType: r.contentType,
		Format:      format,
		Count:       len(cookies),
	}
	logging.Export("Exported %d cookies as %s (filter=%q)", doc.Count, format, domainFilter)
	return doc
}

const netscapeHeader = "# Netscape HTTP Cookie File"

func renderNetscape(cookies []cookie.Cookie) string {
	var b strings.Builder
	b.WriteString(netscapeHeader + "\n")
	// Only the first line is a required header. Readers skip the comment
	// and blank line that follow it.
	b.WriteString("# Exported by sessionops\n\n")

	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = cookie.DefaultPath
		}
		b.WriteString(strings.Join([]string{
			c.Domain,
			flag(strings.HasPrefix(c.Domain, ".")),
			path,
			flag(c.Secure),
			cookie.NetscapeExpiry(c),
			c.Name,
			c.Value,
		}, "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}

func flag(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func renderJSON(cookies []cookie.Cookie) string {
	if cookies == nil {
		cookies = []cookie.Cookie{}
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// editThisCookie is the import schema of the EditThisCookie extension.
type editThisCookie struct {
	Domain         string   `json:"domain"`
	ExpirationDate *float64 `json:"expirationDate,omitempty"`
	HostOnly       bool     `json:"hostOnly"`
	HTTPOnly       bool     `json:"httpOnly"`
	Name           string   `json:"name"`
	Path           string   `json:"path"`
	SameSite       string   `json:"sameSite"`
	Secure         bool     `json:"secure"`
	Session        bool     `json:"session"`
	StoreID        string   `json:"storeId"`
	Value          string   `json:"value"`
}

func renderEditThisCookie(cookies []cookie.Cookie) string {
	out := make([]editThisCookie, 0, len(cookies))
	for _, c := range cookies {
		e := editThisCookie{
			Domain:   c.Domain,
			HostOnly: !strings.HasPrefix(c.Domain, "."),
			HTTPOnly: c.HTTPOnly,
			Name:     c.Name,
			Path:     c.Path,
			SameSite: "unspecified",
			Secure:   c.Secure,
			Session:  c.Expires == nil,
			StoreID:  "0",
			Value:    c.Value,
		}
		if e.Path == "" {
			e.Path = cookie.DefaultPath
		}
		if c.SameSite != nil {
			e.SameSite = *c.SameSite
		}
		if ts, ok := cookie.ParseExpires(c.ExpiresValue()); ok {
			f := float64(ts)
			e.ExpirationDate = &f
		}
		out = append(out, e)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

func renderHeader(cookies []cookie.Cookie) string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return "Cookie: " + strings.Join(pairs, "; ")
}
