package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sessionops/internal/cdp"
	"sessionops/internal/config"
	"sessionops/internal/cookie"
	"sessionops/internal/export"
	"sessionops/internal/extract"
	"sessionops/internal/store"
)

const blockCapture = "--- Chrome Cookies ---\nHost: .example.com\nName: sid\nValue: abc\nSecure: True\n---\nHost: .other.org\nName: pref\nValue: 1\n---\n"

// setupCLI resets globals and returns a command writing into out.
func setupCLI(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.Store.DatabasePath = filepath.Join(t.TempDir(), "captures.db")
	jsonOut = false

	extractMethod = string(extract.MethodSharpChromium)
	extractDomain, extractFormat = "", ""
	extractSave, extractDryRun = false, false
	extractHost, extractOS, extractBrowser, extractAssembly = "", "windows", "chrome", ""
	exportFormat, exportDomain, exportOut, exportFromStore = string(export.FormatNetscape), "", "", false
	cdpHost, cdpPort, cdpFromStore, cdpDomain = "127.0.0.1", 9222, false, ""
	storeDomain = ""

	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader(""))
	return cmd, out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestExtractParse_TableAndFilter(t *testing.T) {
	cmd, out := setupCLI(t)
	extractDomain = "EXAMPLE"

	require.NoError(t, runExtractParse(cmd, []string{writeFile(t, "dump.txt", blockCapture)}))

	assert.Contains(t, out.String(), ".example.com")
	assert.Contains(t, out.String(), "secure")
	assert.NotContains(t, out.String(), ".other.org")
}

func TestExtractParse_StdinToNetscape(t *testing.T) {
	cmd, out := setupCLI(t)
	cmd.SetIn(strings.NewReader(blockCapture))
	extractFormat = "netscape"

	require.NoError(t, runExtractParse(cmd, nil))

	assert.True(t, strings.HasPrefix(out.String(), "# Netscape HTTP Cookie File"))
	assert.Contains(t, out.String(), ".example.com\tTRUE\t/\tTRUE\t0\tsid\tabc")
}

func TestExtractParse_MultipleFilesKeepOrder(t *testing.T) {
	cmd, out := setupCLI(t)
	jsonOut = true
	a := writeFile(t, "a.txt", "Host: a.test\nName: first\nValue: 1\n---\n")
	b := writeFile(t, "b.txt", "Host: b.test\nName: second\nValue: 2\n---\n")

	require.NoError(t, runExtractParse(cmd, []string{a, b}))

	var got []cookie.Cookie
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "second", got[1].Name)
}

func TestExtractParse_UnknownMethod(t *testing.T) {
	cmd, _ := setupCLI(t)
	extractMethod = "mimikatz"

	err := runExtractParse(cmd, []string{writeFile(t, "dump.txt", blockCapture)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, extract.ErrUnknownMethod))
}

func TestExtractParse_SaveThenStoreListAndDelete(t *testing.T) {
	cmd, _ := setupCLI(t)
	extractSave = true
	require.NoError(t, runExtractParse(cmd, []string{writeFile(t, "ws01.txt", blockCapture)}))

	cmd, out := setupCLI2(t, cmd)
	jsonOut = true
	require.NoError(t, runStoreList(cmd, nil))

	var records []store.Record
	require.NoError(t, json.Unmarshal(out.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "ws01.txt", records[0].Source)

	out.Reset()
	jsonOut = false
	require.NoError(t, runStoreDelete(cmd, []string{records[0].ID, "missing"}))
	assert.Contains(t, out.String(), "1 of 2")
}

// setupCLI2 keeps the current config and gives cmd a fresh output buffer.
func setupCLI2(t *testing.T, cmd *cobra.Command) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	return cmd, out
}

func TestExtractRun_DryRun(t *testing.T) {
	cmd, out := setupCLI(t)
	extractDryRun = true
	extractMethod = string(extract.MethodSharpDPAPI)
	extractBrowser = "edge"
	extractDomain = "example.com"

	require.NoError(t, runExtractRun(cmd, nil))
	assert.Equal(t, "SharpDPAPI.exe cookies /browser:edge /target:example.com\n", out.String())
}

func TestExport_FromFileToDirectory(t *testing.T) {
	cmd, out := setupCLI(t)
	in := writeFile(t, "cookies.json", `{"cookies":[{"domain":".example.com","name":"sid","value":"abc","path":"/"}],"count":1}`)
	dir := t.TempDir()
	exportFormat = string(export.FormatHeader)
	exportOut = dir

	require.NoError(t, runExport(cmd, []string{in}))

	data, err := os.ReadFile(filepath.Join(dir, "cookie_header.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Cookie: sid=abc", string(data))
	assert.Contains(t, out.String(), "1 cookies")
}

func TestExport_UnknownFormatFallsBack(t *testing.T) {
	cmd, out := setupCLI(t)
	cmd.SetIn(strings.NewReader(`[{"domain":"a.test","name":"n","value":"v","path":"/"}]`))
	exportFormat = "har"

	require.NoError(t, runExport(cmd, nil))
	assert.True(t, strings.HasPrefix(out.String(), "# Netscape HTTP Cookie File"))
}

func TestDecodeCookies(t *testing.T) {
	got, err := decodeCookies([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = decodeCookies([]byte("{not json"))
	assert.Error(t, err)
}

func TestCDP_RejectsNonLoopbackHost(t *testing.T) {
	cmd, _ := setupCLI(t)
	cdpHost = "10.0.0.5"

	assert.ErrorIs(t, runCDPTargets(cmd, nil), cdp.ErrHostNotAllowed)
	assert.ErrorIs(t, runCDPInject(cmd, nil), cdp.ErrHostNotAllowed)
}

func TestCDP_Targets(t *testing.T) {
	cmd, out := setupCLI(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]cdp.Target{{ID: "T1", Type: "page", Title: "Inbox", URL: "https://mail.example.com/"}})
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.Listener.Addr())
	cdpHost, cdpPort = host, port

	require.NoError(t, runCDPTargets(cmd, nil))
	assert.Contains(t, out.String(), "T1")
	assert.Contains(t, out.String(), "https://mail.example.com/")
}

func TestCDP_InjectUnreachableFails(t *testing.T) {
	cmd, out := setupCLI(t)
	cmd.SetIn(strings.NewReader(`[{"domain":"a.test","name":"n","value":"v","path":"/"}]`))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port := splitHostPort(t, l.Addr())
	l.Close()
	cdpHost, cdpPort = host, port

	err = runCDPInject(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, out.String(), "Failed to connect to CDP")
}

func TestProfileCommands(t *testing.T) {
	cmd, out := setupCLI(t)

	pivotHost, proxyPort = "127.0.0.1", 1080
	require.NoError(t, runProfileProxy(cmd, nil))
	assert.Contains(t, out.String(), `SOCKS5 127.0.0.1:1080`)

	out.Reset()
	debugPort = 9222
	require.NoError(t, runProfileCDPURLs(cmd, nil))
	assert.Contains(t, out.String(), "http://127.0.0.1:9222")

	out.Reset()
	profileOS, profileBrowser, profileName = "linux", "firefox", ""
	require.NoError(t, runProfilePaths(cmd, nil))
	assert.Contains(t, out.String(), "cookies.sqlite")

	profileOS, profileBrowser = "linux", "edge"
	assert.Error(t, runProfilePaths(cmd, nil))

	out.Reset()
	profileBrowser, profileDir = "chrome", "/tmp/p"
	require.NoError(t, runProfileLaunch(cmd, nil))
	assert.Contains(t, out.String(), "/tmp/p")
}

func TestCommandContextHonorsTimeout(t *testing.T) {
	saved := timeout
	t.Cleanup(func() { timeout = saved })

	timeout = 0
	ctx, cancel := commandContext(&cobra.Command{})
	_, hasDeadline := ctx.Deadline()
	cancel()
	assert.False(t, hasDeadline)

	timeout = 10 * time.Second
	ctx, cancel = commandContext(&cobra.Command{})
	_, hasDeadline = ctx.Deadline()
	cancel()
	assert.True(t, hasDeadline)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func splitHostPort(t *testing.T, addr net.Addr) (string, int) {
	t.Helper()
	host, p, err := net.SplitHostPort(addr.String())
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return host, port
}
