package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionops/internal/profile"
)

func TestParseWindowsProbe(t *testing.T) {
	out := `{
  "Processes": "[{\"ProcessName\":\"chrome\",\"Id\":4120},{\"ProcessName\":\"chrome\",\"Id\":4188},{\"ProcessName\":\"explorer\",\"Id\":12}]",
  "Chrome": true,
  "Edge": true,
  "Firefox": false
}`
	browsers, err := ParseWindowsProbe(out)
	require.NoError(t, err)
	require.Len(t, browsers, 2)

	chrome := browsers[0]
	assert.Equal(t, profile.Chrome, chrome.BrowserType)
	assert.True(t, chrome.Running)
	require.NotNil(t, chrome.PID)
	assert.Equal(t, 4120, *chrome.PID)

	edge := browsers[1]
	assert.Equal(t, profile.Edge, edge.BrowserType)
	assert.False(t, edge.Running)
	assert.Nil(t, edge.PID)
}

func TestParseWindowsProbe_SingleProcessObject(t *testing.T) {
	out := `{"Processes":{"ProcessName":"firefox","Id":7},"Chrome":false,"Edge":false,"Firefox":true}`
	browsers, err := ParseWindowsProbe(out)
	require.NoError(t, err)
	require.Len(t, browsers, 1)
	assert.True(t, browsers[0].Running)
	assert.Equal(t, []string{"default-release"}, browsers[0].Profiles)
}

func TestParseLinuxProbe(t *testing.T) {
	out := "---CHROME---\n/usr/bin/google-chrome\n---FIREFOX---\n---PROCS---\nuser 99 0.0 chrome --type=renderer\n"
	browsers := ParseLinuxProbe(out)
	require.Len(t, browsers, 1)
	assert.Equal(t, profile.Chrome, browsers[0].BrowserType)
	assert.True(t, browsers[0].Running)

	assert.Empty(t, ParseLinuxProbe("---CHROME---\n---FIREFOX---\n"))
}

func TestDetectBrowsers_WindowsFallsBackToTasklist(t *testing.T) {
	exec := &fakeExecutor{outputs: []Output{
		{Stdout: "Get-Process : access denied"},
		{Stdout: "\"Image Name\",\"PID\"\n\"chrome.exe\",\"4120\"\n"},
	}}
	browsers, err := New(exec).DetectBrowsers(context.Background(), "ws01", profile.Windows)
	require.NoError(t, err)
	require.Len(t, browsers, 1)
	assert.True(t, browsers[0].Running)

	require.Len(t, exec.tasks, 2)
	assert.Contains(t, exec.tasks[1].Command, "tasklist")
}

func TestDetectBrowsers_Linux(t *testing.T) {
	exec := &fakeExecutor{outputs: []Output{{Stdout: "---CHROME---\n---FIREFOX---\n/usr/bin/firefox\n---PROCS---\n"}}}
	browsers, err := New(exec).DetectBrowsers(context.Background(), "lnx", profile.Linux)
	require.NoError(t, err)
	require.Len(t, browsers, 1)
	assert.Equal(t, profile.Firefox, browsers[0].BrowserType)
	assert.False(t, browsers[0].Running)
	assert.Equal(t, linuxProbeTimeout, exec.tasks[0].Timeout)
}
