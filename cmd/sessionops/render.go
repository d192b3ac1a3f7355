package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sessionops/internal/cdp"
	"sessionops/internal/cookie"
	"sessionops/internal/extract"
	"sessionops/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

const maxValueWidth = 40

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func section(w io.Writer, title, body string) {
	fmt.Fprintln(w, headerStyle.Render(title))
	fmt.Fprintln(w, body)
	fmt.Fprintln(w)
}

// renderTable pads on the unstyled text so escape codes never skew columns.
func renderTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if cw := lipgloss.Width(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	pad := func(s string, n int) string {
		return s + strings.Repeat(" ", n-lipgloss.Width(s))
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = headerStyle.Render(pad(h, widths[i]))
	}
	fmt.Fprintln(w, strings.Join(cells, "  "))
	for _, row := range rows {
		for i, cell := range row {
			cells[i] = pad(cell, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func flags(c cookie.Cookie) string {
	var f []string
	if c.Secure {
		f = append(f, "secure")
	}
	if c.HTTPOnly {
		f = append(f, "httponly")
	}
	if c.SameSite != nil {
		f = append(f, "samesite="+*c.SameSite)
	}
	return strings.Join(f, ",")
}

func cookieRow(c cookie.Cookie) []string {
	return []string{c.Domain, c.Name, truncate(c.Value, maxValueWidth), c.Path, c.ExpiresValue(), flags(c)}
}

var cookieHeaders = []string{"DOMAIN", "NAME", "VALUE", "PATH", "EXPIRES", "FLAGS"}

func renderCookies(w io.Writer, cookies []cookie.Cookie) {
	if len(cookies) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no cookies"))
		return
	}
	rows := make([][]string, 0, len(cookies))
	for _, c := range cookies {
		rows = append(rows, cookieRow(c))
	}
	renderTable(w, cookieHeaders, rows)
	fmt.Fprintf(w, "%s %d\n", dimStyle.Render("total"), len(cookies))
}

func renderRecords(w io.Writer, records []store.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, dimStyle.Render("store is empty"))
		return
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := append([]string{r.ID, r.Source, r.CapturedAt.Format("2006-01-02 15:04:05")}, cookieRow(r.Cookie)...)
		rows = append(rows, row)
	}
	renderTable(w, append([]string{"ID", "SOURCE", "CAPTURED"}, cookieHeaders...), rows)
}

func renderTargets(w io.Writer, targets []cdp.Target) {
	if len(targets) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no targets (debugger unreachable or idle)"))
		return
	}
	rows := make([][]string, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, []string{t.ID, t.Type, truncate(t.Title, maxValueWidth), t.URL})
	}
	renderTable(w, []string{"ID", "TYPE", "TITLE", "URL"}, rows)
}

func renderInject(w io.Writer, res cdp.InjectResult) {
	fmt.Fprintf(w, "%s %d  %s %d\n",
		okStyle.Render("injected"), res.Injected,
		errStyle.Render("failed"), res.Failed)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s %s\n", errStyle.Render("-"), e)
	}
}

func renderBrowsers(w io.Writer, found []extract.DetectedBrowser) {
	if len(found) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no browsers detected"))
		return
	}
	rows := make([][]string, 0, len(found))
	for _, b := range found {
		pid := ""
		if b.PID != nil {
			pid = strconv.Itoa(*b.PID)
		}
		running := "no"
		if b.Running {
			running = "yes"
		}
		rows = append(rows, []string{b.Name, string(b.BrowserType), running, pid, b.ExePath})
	}
	renderTable(w, []string{"NAME", "TYPE", "RUNNING", "PID", "PATH"}, rows)
}
