package profile

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	p, ok := Lookup(Windows, Edge)
	require.True(t, ok)
	assert.Equal(t, `%LOCALAPPDATA%\Microsoft\Edge\User Data`, p.ProfileBase)

	_, ok = Lookup(Linux, Edge)
	assert.False(t, ok, "edge has no linux table entry")

	p, ok = Lookup(Linux, Firefox)
	require.True(t, ok)
	assert.Equal(t, "cookies.sqlite", p.CookieFile)
}

func TestNormalizeOS(t *testing.T) {
	assert.Equal(t, Windows, NormalizeOS("Windows"))
	assert.Equal(t, Linux, NormalizeOS("linux"))
	assert.Equal(t, Linux, NormalizeOS("darwin"))
}

func TestFiles(t *testing.T) {
	win := Files(Windows, Chrome, "")
	require.Len(t, win, 5)
	assert.Equal(t, "Default", win[0].Profile)
	assert.Equal(t, "Bookmarks", win[4].Name)

	ff := Files(Linux, Firefox, "abc.default-release")
	require.Len(t, ff, 4)
	assert.Equal(t, "key4.db", ff[2].Name)
	assert.Equal(t, "~/.mozilla/firefox", ff[2].BasePath)
}

func TestProxyConfigs(t *testing.T) {
	cfg := ProxyConfigs("127.0.0.1", 1080)
	assert.Contains(t, cfg.PAC, `SOCKS5 127.0.0.1:1080`)
	assert.Contains(t, cfg.BrowserLaunchCmd, `--proxy-server="socks5://127.0.0.1:1080"`)
	assert.Equal(t, "curl --socks5-hostname 127.0.0.1:1080 https://target.com", cfg.CurlExample)

	var foxy struct {
		Mode         string `json:"mode"`
		FixedServers struct {
			Socks struct {
				Host string `json:"host"`
				Port int    `json:"port"`
			} `json:"socks"`
		} `json:"fixed_servers"`
	}
	require.NoError(t, json.Unmarshal([]byte(cfg.FoxyProxyConfig), &foxy))
	assert.Equal(t, "fixed_servers", foxy.Mode)
	assert.Equal(t, 1080, foxy.FixedServers.Socks.Port)
}

func TestDebuggerURLs(t *testing.T) {
	urls := DebuggerURLs("localhost", 9222)
	assert.Equal(t, "http://localhost:9222", urls.LocalURL)
	assert.Equal(t, "http://localhost:9222/json", urls.JSONURL)
	assert.Equal(t, "ws://localhost:9222/devtools/browser/", urls.WebSocketDebugURL)

	v6 := DebuggerURLs("::1", 9222)
	assert.Equal(t, "http://[::1]:9222", v6.LocalURL)
}

func TestLaunchCommands(t *testing.T) {
	edge := LaunchCommands(Edge, "/data/p")
	assert.True(t, strings.HasPrefix(edge["linux"], "microsoft-edge --user-data-dir=\"/data/p\""))
	assert.Contains(t, edge["windows"], "msedge.exe")

	ff := LaunchCommands(Firefox, "/data/ff")
	assert.Equal(t, `firefox --profile "/data/ff" --no-remote`, ff["linux"])

	assert.Empty(t, LaunchCommands(Browser("safari"), "/x"))
}
