package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionops/internal/browser"
	"sessionops/internal/cookie"
)

type stubEngine struct{ jar []*proto.NetworkCookieParam }

func (e *stubEngine) Launch(context.Context, browser.LaunchOptions) (browser.Browser, error) {
	return e, nil
}
func (e *stubEngine) NewContext(context.Context, browser.ContextOptions) (browser.BrowserContext, error) {
	return e, nil
}
func (e *stubEngine) AddCookies(c []*proto.NetworkCookieParam) error {
	e.jar = append(e.jar, c...)
	return nil
}
func (e *stubEngine) Cookies() ([]*proto.NetworkCookie, error) {
	out := make([]*proto.NetworkCookie, 0, len(e.jar))
	for _, p := range e.jar {
		out = append(out, &proto.NetworkCookie{Name: p.Name, Value: p.Value, Domain: p.Domain, Path: p.Path})
	}
	return out, nil
}
func (e *stubEngine) NewPage(context.Context) (browser.Page, error) { return stubPage{}, nil }
func (e *stubEngine) Close() error                                  { return nil }

type stubPage struct{}

func (stubPage) Navigate(context.Context, string, browser.WaitUntil, time.Duration) error {
	return nil
}
func (stubPage) Info(context.Context) (string, string, error) {
	return "Inbox", "https://mail.example.com/", nil
}
func (stubPage) Screenshot(context.Context, bool) ([]byte, error) { return []byte("\x89PNG"), nil }
func (stubPage) Evaluate(context.Context, string) (string, error) { return "42", nil }
func (stubPage) HTML(context.Context) (string, error)             { return "<html></html>", nil }
func (stubPage) Close() error                                     { return nil }

func TestReplay_WithStubEngine(t *testing.T) {
	cmd, out := setupCLI(t)
	shot := filepath.Join(t.TempDir(), "landing.png")
	replayURL, replayWait, replayScreenshot, replayScript = "https://mail.example.com/", "load", shot, "() => 42"
	replayHold = false
	t.Cleanup(func() { replayScreenshot, replayScript = "", "" })

	eng := &stubEngine{}
	mgr := browser.NewManager(browser.DefaultConfig(), func(context.Context) (browser.Engine, error) {
		return eng, nil
	})
	cookies := []cookie.Cookie{{Domain: ".example.com", Name: "sid", Value: "abc", Path: "/"}}

	require.NoError(t, replay(context.Background(), cmd, mgr, cookies))

	assert.Contains(t, out.String(), "Inbox")
	assert.Contains(t, out.String(), "42")
	assert.Contains(t, out.String(), "sid")
	png, err := os.ReadFile(shot)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png))
	assert.Empty(t, mgr.ActiveSessions())

	_, err = mgr.StartSession(context.Background(), browser.StartOptions{})
	assert.ErrorIs(t, err, browser.ErrEngineClosed)
}
