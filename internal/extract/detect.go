package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sessionops/internal/logging"
	"sessionops/internal/profile"
)

// DetectedBrowser describes a browser found on a target host.
type DetectedBrowser struct {
	Name        string          `json:"name"`
	BrowserType profile.Browser `json:"browser_type"`
	ExePath     string          `json:"exe_path"`
	Running     bool            `json:"running"`
	PID         *int            `json:"pid,omitempty"`
	Profiles    []string        `json:"profiles"`
	CookiePath  string          `json:"cookie_path"`
}

const (
	windowsProbeTimeout = 30 * time.Second
	linuxProbeTimeout   = 15 * time.Second
	tasklistTimeout     = 15 * time.Second
)

const windowsProbe = `powershell -Command "` +
	`$procs = Get-Process -ErrorAction SilentlyContinue | Select-Object -Property ProcessName,Id | ConvertTo-Json -Compress; ` +
	`$chrome = Test-Path 'C:\Program Files\Google\Chrome\Application\chrome.exe'; ` +
	`$edge = Test-Path 'C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe'; ` +
	`$ff = Test-Path 'C:\Program Files\Mozilla Firefox\firefox.exe'; ` +
	`@{Processes=$procs;Chrome=$chrome;Edge=$edge;Firefox=$ff} | ConvertTo-Json"`

const linuxProbe = "echo '---CHROME---' && which google-chrome 2>/dev/null && " +
	"echo '---FIREFOX---' && which firefox 2>/dev/null && " +
	"echo '---PROCS---' && ps aux | grep -E '(chrome|firefox)' | grep -v grep"

// DetectBrowsers probes host for installed and running browsers.
func (e *Extractor) DetectBrowsers(ctx context.Context, host string, os profile.OS) ([]DetectedBrowser, error) {
	if os == profile.Windows {
		return e.detectWindows(ctx, host)
	}
	return e.detectLinux(ctx, host)
}

type windowsProbeResult struct {
	Processes json.RawMessage `json:"Processes"`
	Chrome    bool            `json:"Chrome"`
	Edge      bool            `json:"Edge"`
	Firefox   bool            `json:"Firefox"`
}

type windowsProcess struct {
	ProcessName string `json:"ProcessName"`
	ID          int    `json:"Id"`
}

var windowsCandidates = []struct {
	probe   func(windowsProbeResult) bool
	process string
	browser DetectedBrowser
}{
	{
		probe:   func(r windowsProbeResult) bool { return r.Chrome },
		process: "chrome",
		browser: DetectedBrowser{
			Name:        "Google Chrome",
			BrowserType: profile.Chrome,
			ExePath:     `C:\Program Files\Google\Chrome\Application\chrome.exe`,
			Profiles:    []string{"Default"},
			CookiePath:  `%LOCALAPPDATA%\Google\Chrome\User Data\Default\Cookies`,
		},
	},
	{
		probe:   func(r windowsProbeResult) bool { return r.Edge },
		process: "msedge",
		browser: DetectedBrowser{
			Name:        "Microsoft Edge",
			BrowserType: profile.Edge,
			ExePath:     `C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
			Profiles:    []string{"Default"},
			CookiePath:  `%LOCALAPPDATA%\Microsoft\Edge\User Data\Default\Cookies`,
		},
	},
	{
		probe:   func(r windowsProbeResult) bool { return r.Firefox },
		process: "firefox",
		browser: DetectedBrowser{
			Name:        "Mozilla Firefox",
			BrowserType: profile.Firefox,
			ExePath:     `C:\Program Files\Mozilla Firefox\firefox.exe`,
			Profiles:    []string{"default-release"},
			CookiePath:  `%APPDATA%\Mozilla\Firefox\Profiles\*.default-release\cookies.sqlite`,
		},
	},
}

func (e *Extractor) detectWindows(ctx context.Context, host string) ([]DetectedBrowser, error) {
	out, err := e.exec.Execute(ctx, Task{Host: host, Command: windowsProbe, Timeout: windowsProbeTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: browser probe on %s: %w", ErrRemoteExecution, host, err)
	}

	browsers, err := ParseWindowsProbe(out.Stdout)
	if err == nil {
		return browsers, nil
	}

	logging.ExtractWarn("Failed to parse browser detection output from %s: %v", host, err)
	out, err = e.exec.Execute(ctx, Task{
		Host:    host,
		Command: `tasklist /FI "IMAGENAME eq chrome.exe" /FO CSV`,
		Timeout: tasklistTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: tasklist on %s: %w", ErrRemoteExecution, host, err)
	}
	browsers = []DetectedBrowser{}
	if strings.Contains(strings.ToLower(out.Stdout), "chrome.exe") {
		browsers = append(browsers, DetectedBrowser{
			Name:        "Google Chrome",
			BrowserType: profile.Chrome,
			Running:     true,
			Profiles:    []string{"Default"},
		})
	}
	return browsers, nil
}

// ParseWindowsProbe decodes the PowerShell probe document. Processes may be
// an array, a single object, or either of those encoded as a JSON string.
func ParseWindowsProbe(output string) ([]DetectedBrowser, error) {
	var res windowsProbeResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &res); err != nil {
		return nil, fmt.Errorf("decode probe: %w", err)
	}

	procs, err := decodeProcesses(res.Processes)
	if err != nil {
		return nil, fmt.Errorf("decode processes: %w", err)
	}
	pids := make(map[string][]int)
	for _, p := range procs {
		name := strings.ToLower(p.ProcessName)
		pids[name] = append(pids[name], p.ID)
	}

	browsers := []DetectedBrowser{}
	for _, c := range windowsCandidates {
		if !c.probe(res) {
			continue
		}
		b := c.browser
		b.Profiles = append([]string(nil), c.browser.Profiles...)
		if ids, ok := pids[c.process]; ok {
			pid := ids[0]
			b.Running = true
			b.PID = &pid
		}
		browsers = append(browsers, b)
	}
	return browsers, nil
}

func decodeProcesses(raw json.RawMessage) ([]windowsProcess, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		return decodeProcesses(json.RawMessage(inner))
	}
	if raw[0] == '{' {
		var one windowsProcess
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, err
		}
		return []windowsProcess{one}, nil
	}
	var many []windowsProcess
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, err
	}
	return many, nil
}

var (
	chromeMarker  = regexp.MustCompile(`---CHROME---\s*\n\s*/`)
	firefoxMarker = regexp.MustCompile(`---FIREFOX---\s*\n\s*/`)
)

func (e *Extractor) detectLinux(ctx context.Context, host string) ([]DetectedBrowser, error) {
	out, err := e.exec.Execute(ctx, Task{Host: host, Command: linuxProbe, Timeout: linuxProbeTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: browser probe on %s: %w", ErrRemoteExecution, host, err)
	}
	return ParseLinuxProbe(out.Stdout), nil
}

// ParseLinuxProbe reads the marker-delimited output of the Linux probe.
func ParseLinuxProbe(output string) []DetectedBrowser {
	procs := ""
	if _, after, ok := strings.Cut(output, "---PROCS---"); ok {
		procs = strings.ToLower(after)
	}

	browsers := []DetectedBrowser{}
	if chromeMarker.MatchString(output) {
		browsers = append(browsers, DetectedBrowser{
			Name:        "Google Chrome",
			BrowserType: profile.Chrome,
			ExePath:     "/usr/bin/google-chrome",
			Running:     strings.Contains(procs, "chrome"),
			Profiles:    []string{"Default"},
			CookiePath:  "~/.config/google-chrome/Default/Cookies",
		})
	}
	if firefoxMarker.MatchString(output) {
		browsers = append(browsers, DetectedBrowser{
			Name:        "Mozilla Firefox",
			BrowserType: profile.Firefox,
			ExePath:     "/usr/bin/firefox",
			Running:     strings.Contains(procs, "firefox"),
			Profiles:    []string{"default-release"},
			CookiePath:  "~/.mozilla/firefox/*.default-release/cookies.sqlite",
		})
	}
	return browsers
}
