package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodFactory returns an EngineFactory backed by go-rod. An empty bin resolves
// a local Chrome, downloading one if none is installed.
func RodFactory(bin string) EngineFactory {
	return func(ctx context.Context) (Engine, error) {
		if bin == "" {
			if path, ok := launcher.LookPath(); ok {
				bin = path
			} else {
				path, err := launcher.NewBrowser().Get()
				if err != nil {
					return nil, fmt.Errorf("resolve browser binary: %w", err)
				}
				bin = path
			}
		}
		return &rodEngine{bin: bin, live: make(map[*rodBrowser]struct{})}, nil
	}
}

type rodEngine struct {
	bin string

	mu   sync.Mutex
	live map[*rodBrowser]struct{}
}

func (e *rodEngine) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	l := launcher.New().
		Bin(e.bin).
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox).
		Set("disable-gpu").
		Set("disable-dev-shm-usage")

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	rb := &rodBrowser{engine: e, launcher: l, browser: b}
	e.mu.Lock()
	e.live[rb] = struct{}{}
	e.mu.Unlock()
	return rb, nil
}

// Close kills any browser still running. Sessions normally close their own.
func (e *rodEngine) Close() error {
	e.mu.Lock()
	live := make([]*rodBrowser, 0, len(e.live))
	for b := range e.live {
		live = append(live, b)
	}
	e.mu.Unlock()

	var errs []error
	for _, b := range live {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type rodBrowser struct {
	engine   *rodEngine
	launcher *launcher.Launcher
	browser  *rod.Browser
	once     sync.Once
}

func (b *rodBrowser) NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error) {
	res, err := proto.TargetCreateBrowserContext{
		DisposeOnDetach: true,
		ProxyServer:     opts.Proxy,
	}.Call(b.browser)
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	incognito := *b.browser
	incognito.BrowserContextID = res.BrowserContextID

	if opts.IgnoreHTTPSErrors {
		if err := incognito.IgnoreCertErrors(true); err != nil {
			_ = incognito.Close()
			return nil, fmt.Errorf("ignore cert errors: %w", err)
		}
	}
	return &rodContext{browser: &incognito, opts: opts}, nil
}

func (b *rodBrowser) Close() error {
	var err error
	b.once.Do(func() {
		err = b.browser.Close()
		b.launcher.Kill()
		b.launcher.Cleanup()

		b.engine.mu.Lock()
		delete(b.engine.live, b)
		b.engine.mu.Unlock()
	})
	return err
}

type rodContext struct {
	browser *rod.Browser
	opts    ContextOptions
}

func (c *rodContext) AddCookies(cookies []*proto.NetworkCookieParam) error {
	return c.browser.SetCookies(cookies)
}

func (c *rodContext) Cookies() ([]*proto.NetworkCookie, error) {
	return c.browser.GetCookies()
}

func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	page, err := c.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, err
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             c.opts.Viewport.Width,
		Height:            c.opts.Viewport.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	if c.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: c.opts.UserAgent}); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	return &rodPage{page: page}, nil
}

// Close disposes the browser context created in NewContext.
func (c *rodContext) Close() error {
	return c.browser.Close()
}

type rodPage struct {
	page *rod.Page
}

var lifecycleEvents = map[WaitUntil]proto.PageLifecycleEventName{
	WaitLoad:             proto.PageLifecycleEventNameLoad,
	WaitNetworkIdle:      proto.PageLifecycleEventNameNetworkIdle,
	WaitDOMContentLoaded: proto.PageLifecycleEventNameDOMContentLoaded,
}

func (p *rodPage) Navigate(ctx context.Context, url string, wait WaitUntil, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	event, ok := lifecycleEvents[wait]
	if !ok {
		event = proto.PageLifecycleEventNameLoad
	}

	page := p.page.Context(tctx)
	waitFn := page.WaitNavigation(event)
	if err := page.Navigate(url); err != nil {
		return err
	}
	waitFn()
	return tctx.Err()
}

func (p *rodPage) Info(ctx context.Context) (string, string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", "", err
	}
	return info.Title, info.URL, nil
}

func (p *rodPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (p *rodPage) Evaluate(ctx context.Context, script string) (string, error) {
	res, err := p.page.Context(ctx).Evaluate(rod.Eval(script).ByPromise())
	if err != nil {
		return "", err
	}
	if s, ok := res.Value.Val().(string); ok {
		return s, nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(raw), nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
