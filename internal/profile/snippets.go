package profile

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
)

// ProxyConfig holds ready-to-paste snippets for routing a local browser
// through a SOCKS5 pivot.
type ProxyConfig struct {
	PAC              string `json:"proxy_pac"`
	BrowserLaunchCmd string `json:"browser_launch_cmd"`
	FoxyProxyConfig  string `json:"foxyproxy_config"`
	CurlExample      string `json:"curl_example"`
}

// ProxyConfigs renders the pivot snippets for host:port.
func ProxyConfigs(host string, port int) ProxyConfig {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	foxy, _ := json.MarshalIndent(map[string]interface{}{
		"mode": "fixed_servers",
		"fixed_servers": map[string]interface{}{
			"socks": map[string]interface{}{
				"host":   host,
				"port":   port,
				"scheme": "socks5",
			},
		},
	}, "", "  ")

	return ProxyConfig{
		PAC: fmt.Sprintf("function FindProxyForURL(url, host) {\n  return \"SOCKS5 %s\";\n}", addr),
		BrowserLaunchCmd: fmt.Sprintf(
			`chrome --proxy-server="socks5://%s" --user-data-dir=/tmp/proxy-profile --no-first-run --no-default-browser-check`,
			addr),
		FoxyProxyConfig: string(foxy),
		CurlExample:     fmt.Sprintf("curl --socks5-hostname %s https://target.com", addr),
	}
}

// CDPURLs lists the DevTools endpoints reachable through a forwarded
// debugger port.
type CDPURLs struct {
	LocalURL          string `json:"local_url"`
	DevtoolsFrontend  string `json:"devtools_frontend"`
	WebSocketDebugURL string `json:"ws_debug_url"`
	JSONURL           string `json:"json_url"`
}

// DebuggerURLs renders the DevTools endpoints for a forwarded port.
func DebuggerURLs(host string, port int) CDPURLs {
	base := net.JoinHostPort(host, strconv.Itoa(port))
	return CDPURLs{
		LocalURL:          "http://" + base,
		DevtoolsFrontend:  "chrome-devtools://devtools/bundled/inspector.html?ws=" + base + "/devtools/page/",
		WebSocketDebugURL: "ws://" + base + "/devtools/browser/",
		JSONURL:           "http://" + base + "/json",
	}
}

const chromiumFlags = "--no-first-run --no-default-browser-check --disable-sync"

// LaunchCommands returns per-OS commands that start a browser on a
// downloaded profile directory. Unknown browsers yield an empty map.
func LaunchCommands(b Browser, profileDir string) map[string]string {
	cmds := make(map[string]string)

	switch b {
	case Chrome, Edge:
		exeLinux := "google-chrome"
		exeMac := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		exeWin := `C:\Program Files\Google\Chrome\Application\chrome.exe`
		if b == Edge {
			exeLinux = "microsoft-edge"
			exeMac = "/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge"
			exeWin = `C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`
		}
		cmds["linux"] = fmt.Sprintf(`%s --user-data-dir="%s" %s`, exeLinux, profileDir, chromiumFlags)
		cmds["macos"] = fmt.Sprintf(`"%s" --user-data-dir="%s" %s`, exeMac, profileDir, chromiumFlags)
		cmds["windows"] = fmt.Sprintf(`"%s" --user-data-dir="%s" %s`, exeWin, profileDir, chromiumFlags)
	case Firefox:
		cmds["linux"] = fmt.Sprintf(`firefox --profile "%s" --no-remote`, profileDir)
		cmds["macos"] = fmt.Sprintf(`/Applications/Firefox.app/Contents/MacOS/firefox --profile "%s" --no-remote`, profileDir)
		cmds["windows"] = fmt.Sprintf(`"C:\Program Files\Mozilla Firefox\firefox.exe" --profile "%s" --no-remote`, profileDir)
	}
	return cmds
}
