package cookie

import (
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNormalize_Defaults(t *testing.T) {
	c := Normalize(Fields{KeyDomain: ".example.com", KeyName: "sid", KeyValue: "abc"})

	want := Cookie{Domain: ".example.com", Name: "sid", Value: "abc", Path: "/"}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_FlagStrings(t *testing.T) {
	tests := []struct {
		raw  interface{}
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"Yes", true},
		{"false", false},
		{"0", false},
		{"on", false},
		{"", false},
		{true, true},
		{nil, false},
	}
	for _, tt := range tests {
		c := Normalize(Fields{KeySecure: tt.raw, KeyHTTPOnly: tt.raw})
		assert.Equal(t, tt.want, c.Secure, "secure for %#v", tt.raw)
		assert.Equal(t, tt.want, c.HTTPOnly, "httpOnly for %#v", tt.raw)
	}
}

func TestNormalize_EmptyOptionalsAreAbsent(t *testing.T) {
	c := Normalize(Fields{KeyName: "a", KeyExpires: "", KeySameSite: ""})
	assert.Nil(t, c.Expires)
	assert.Nil(t, c.SameSite)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []Fields{
		{},
		{KeyDomain: "x.test", KeyName: "n", KeyPath: "/app", KeyExpires: "1700000000", KeySecure: "yes"},
		{KeyDomain: ".y.test", KeyName: "m", KeySameSite: "lax", KeyHTTPOnly: true, KeyExpires: int64(42)},
		{KeyName: "only", KeySecure: "nope"},
	}
	for _, f := range inputs {
		once := Normalize(f)
		twice := Normalize(once.Fields())
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("Normalize not idempotent for %v (-once +twice):\n%s", f, diff)
		}
	}
}

func TestCanonicalKey(t *testing.T) {
	cases := map[string]string{
		"Host":       KeyDomain,
		" domain ":   KeyDomain,
		"HttpOnly":   KeyHTTPOnly,
		"http_only":  KeyHTTPOnly,
		"SameSite":   KeySameSite,
		"same_site":  KeySameSite,
		"Expiry":     KeyExpires,
		"EXPIRATION": KeyExpires,
	}
	for raw, want := range cases {
		got, ok := CanonicalKey(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := CanonicalKey("priority")
	assert.False(t, ok)
}

func TestFilterDomain_CaseInsensitiveSubstring(t *testing.T) {
	cookies := []Cookie{
		{Domain: "sub.example.com", Name: "a"},
		{Domain: ".other.org", Name: "b"},
	}
	got := FilterDomain(cookies, "EXAMPLE")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Name)

	assert.Len(t, FilterDomain(cookies, ""), 2)
}

func TestParseExpires(t *testing.T) {
	want2030 := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"2030-01-01T00:00:00Z", want2030, true},
		{"2030-01-01T00:00:00+00:00", want2030, true},
		{"2030-01-01T02:00:00+02:00", want2030, true},
		{"2030-01-01", want2030, true},
		{"1893456000", 1893456000, true},
		{"not-a-date", 0, false},
		{"", 0, false},
		{"-5", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseExpires(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNetscapeExpiry(t *testing.T) {
	assert.Equal(t, "1893456000", NetscapeExpiry(Cookie{Expires: strPtr("2030-01-01T00:00:00Z")}))
	assert.Equal(t, "0", NetscapeExpiry(Cookie{Expires: strPtr("not-a-date")}))
	assert.Equal(t, "0", NetscapeExpiry(Cookie{}))
	assert.Equal(t, "99999999999999999999", NetscapeExpiry(Cookie{Expires: strPtr("99999999999999999999")}))
}

func TestURL(t *testing.T) {
	assert.Equal(t, "https://example.com/", Cookie{Domain: ".example.com", Path: "/", Secure: true}.URL())
	assert.Equal(t, "http://app.example.com/api", Cookie{Domain: "app.example.com", Path: "/api"}.URL())
	assert.Equal(t, "http://xn--bcher-kva.example/", Cookie{Domain: ".bücher.example", Path: "/"}.URL())
}

func TestParam(t *testing.T) {
	c := Cookie{
		Domain:   ".example.com",
		Name:     "sid",
		Value:    "abc",
		Path:     "/",
		Secure:   true,
		HTTPOnly: true,
		Expires:  strPtr("2030-01-01T00:00:00Z"),
		SameSite: strPtr("lax"),
	}
	p := c.Param()
	assert.Equal(t, "https://example.com/", p.URL)
	assert.Equal(t, proto.NetworkCookieSameSiteLax, p.SameSite)
	assert.Equal(t, proto.TimeSinceEpoch(1893456000), p.Expires)
	assert.True(t, p.HTTPOnly)

	bad := Cookie{Domain: "x.test", Name: "n", Path: "/", Expires: strPtr("garbage"), SameSite: strPtr("no_restriction")}
	bp := bad.Param()
	assert.Zero(t, bp.Expires)
	assert.Empty(t, bp.SameSite)
}

func TestFromNetwork(t *testing.T) {
	c := FromNetwork(&proto.NetworkCookie{
		Name:     "sid",
		Value:    "v",
		Domain:   ".example.com",
		Path:     "/",
		Expires:  1893456000.7,
		SameSite: proto.NetworkCookieSameSiteNone,
		Secure:   true,
	})
	require.NotNil(t, c.Expires)
	assert.Equal(t, "1893456000", *c.Expires)
	require.NotNil(t, c.SameSite)
	assert.Equal(t, "None", *c.SameSite)

	session := FromNetwork(&proto.NetworkCookie{Name: "s", Domain: "x", Path: "/", Expires: -1})
	assert.Nil(t, session.Expires)
	assert.Nil(t, session.SameSite)
}
