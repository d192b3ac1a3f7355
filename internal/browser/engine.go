package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// WaitUntil selects the lifecycle event a navigation waits for.
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitNetworkIdle      WaitUntil = "networkidle"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
)

// ParseWaitUntil maps a user-supplied value onto a WaitUntil, defaulting to load.
func ParseWaitUntil(s string) WaitUntil {
	switch WaitUntil(s) {
	case WaitNetworkIdle, WaitDOMContentLoaded:
		return WaitUntil(s)
	}
	return WaitLoad
}

// Viewport is a page size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// LaunchOptions configures one exclusively-owned browser process.
type LaunchOptions struct {
	Headless  bool
	NoSandbox bool
}

// ContextOptions configures an isolated browser context.
type ContextOptions struct {
	Viewport          Viewport
	UserAgent         string
	Proxy             string
	IgnoreHTTPSErrors bool
}

// Engine is the shared automation runtime. It is created once per process
// and only spawns browsers.
type Engine interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
	Close() error
}

// EngineFactory creates the shared Engine on first use.
type EngineFactory func(ctx context.Context) (Engine, error)

// Browser is a running browser process.
type Browser interface {
	NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error)
	Close() error
}

// BrowserContext is an isolated cookie jar and page group inside a Browser.
type BrowserContext interface {
	AddCookies(cookies []*proto.NetworkCookieParam) error
	Cookies() ([]*proto.NetworkCookie, error)
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab inside a BrowserContext.
type Page interface {
	Navigate(ctx context.Context, url string, wait WaitUntil, timeout time.Duration) error
	Info(ctx context.Context) (title, url string, err error)
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	// Evaluate returns string results verbatim and anything else as JSON.
	Evaluate(ctx context.Context, script string) (string, error)
	HTML(ctx context.Context) (string, error)
	Close() error
}
