// Package browser runs isolated headless browser sessions that replay
// captured cookies under operator control.
package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sessionops/internal/cookie"
	"sessionops/internal/logging"
)

var (
	// ErrSessionNotFound is returned for ids that were never started or were stopped.
	ErrSessionNotFound = errors.New("automation session not found")
	// ErrEngineClosed is returned by StartSession after Shutdown.
	ErrEngineClosed = errors.New("automation engine closed")
)

// NavigationTimeout is the upper bound for a single navigation.
const NavigationTimeout = 30 * time.Second

// Config holds automation configuration.
type Config struct {
	Headless       bool `json:"headless"`
	NoSandbox      bool `json:"no_sandbox"`
	ViewportWidth  int  `json:"viewport_width"`
	ViewportHeight int  `json:"viewport_height"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		NoSandbox:      true,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth <= 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight <= 0 {
		return 1080
	}
	return c.ViewportHeight
}

// StartOptions describes a new automation session.
type StartOptions struct {
	Cookies   []cookie.Cookie
	UserAgent string
	Viewport  Viewport
	Proxy     string
}

// NavigateResult is returned by Navigate. Screenshot is base64 PNG.
type NavigateResult struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Screenshot string `json:"screenshot,omitempty"`
}

// ScreenshotResult is returned by Screenshot.
type ScreenshotResult struct {
	Screenshot string `json:"screenshot"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// ScriptResult carries either the script's value or its failure.
type ScriptResult struct {
	Result *string `json:"result"`
	Error  *string `json:"error"`
}

// PageContent is the current document of a session.
type PageContent struct {
	HTML  string `json:"html"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SessionInfo is the public metadata of a running session.
type SessionInfo struct {
	ID              string    `json:"id"`
	CookiesInjected int       `json:"cookies_injected"`
	Viewport        Viewport  `json:"viewport"`
	CreatedAt       time.Time `json:"created_at"`
}

// session owns browser -> context -> page. Teardown walks that chain backwards.
type session struct {
	id              string
	browser         Browser
	context         BrowserContext
	page            Page
	viewport        Viewport
	cookiesInjected int
	createdAt       time.Time
}

// Manager owns the shared engine and the registry of automation sessions.
// Operations on one session are not serialized; callers that share an id
// across goroutines must coordinate themselves.
type Manager struct {
	cfg     Config
	factory EngineFactory

	engineMu sync.Mutex
	engine   Engine
	closed   bool

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewManager creates a manager. The engine is not created until the first
// StartSession.
func NewManager(cfg Config, factory EngineFactory) *Manager {
	return &Manager{
		cfg:      cfg,
		factory:  factory,
		sessions: make(map[string]*session),
	}
}

func (m *Manager) ensureEngine(ctx context.Context) (Engine, error) {
	m.engineMu.Lock()
	defer m.engineMu.Unlock()

	if m.closed {
		return nil, ErrEngineClosed
	}
	if m.engine != nil {
		return m.engine, nil
	}

	timer := logging.StartTimer(logging.CategoryBrowser, "Engine init")
	eng, err := m.factory(ctx)
	timer.Stop()
	if err != nil {
		return nil, fmt.Errorf("start automation engine: %w", err)
	}
	m.engine = eng
	logging.Browser("Automation engine initialized")
	return eng, nil
}

// StartSession launches a dedicated browser with one context and one page,
// injects opts.Cookies and returns the new session id.
func (m *Manager) StartSession(ctx context.Context, opts StartOptions) (id string, err error) {
	eng, err := m.ensureEngine(ctx)
	if err != nil {
		return "", err
	}

	vp := opts.Viewport
	if vp.Width <= 0 {
		vp.Width = m.cfg.GetViewportWidth()
	}
	if vp.Height <= 0 {
		vp.Height = m.cfg.GetViewportHeight()
	}

	s := &session{viewport: vp, createdAt: time.Now().UTC()}
	defer func() {
		if err != nil {
			m.teardown(s)
		}
	}()

	s.browser, err = eng.Launch(ctx, LaunchOptions{Headless: m.cfg.Headless, NoSandbox: m.cfg.NoSandbox})
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}

	s.context, err = s.browser.NewContext(ctx, ContextOptions{
		Viewport:          vp,
		UserAgent:         opts.UserAgent,
		Proxy:             opts.Proxy,
		IgnoreHTTPSErrors: true,
	})
	if err != nil {
		return "", fmt.Errorf("create context: %w", err)
	}

	if params := cookie.Params(opts.Cookies); len(params) > 0 {
		if err = s.context.AddCookies(params); err != nil {
			return "", fmt.Errorf("add cookies: %w", err)
		}
		s.cookiesInjected = len(params)
	}

	s.page, err = s.context.NewPage(ctx)
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}

	// Shutdown sets closed before it snapshots sessions, so a session
	// registered under both locks is always seen by it.
	m.engineMu.Lock()
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.engineMu.Unlock()
		return "", ErrEngineClosed
	}
	for {
		s.id = uuid.NewString()[:12]
		if _, taken := m.sessions[s.id]; !taken {
			break
		}
	}
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.engineMu.Unlock()

	logging.Browser("Automation session %s started with %d cookies", s.id, s.cookiesInjected)
	return s.id, nil
}

func (m *Manager) get(id string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Navigate loads url in the session's page and reports where it ended up.
func (m *Manager) Navigate(ctx context.Context, id, url string, wait WaitUntil, screenshot bool) (NavigateResult, error) {
	s, err := m.get(id)
	if err != nil {
		return NavigateResult{}, err
	}

	logging.BrowserDebug("Session %s navigating to %s (wait=%s)", id, url, wait)
	if err := s.page.Navigate(ctx, url, wait, NavigationTimeout); err != nil {
		return NavigateResult{}, fmt.Errorf("navigate %s: %w", url, err)
	}

	title, current, err := s.page.Info(ctx)
	if err != nil {
		return NavigateResult{}, fmt.Errorf("page info: %w", err)
	}
	res := NavigateResult{Title: title, URL: current}

	if screenshot {
		png, err := s.page.Screenshot(ctx, false)
		if err != nil {
			return NavigateResult{}, fmt.Errorf("screenshot: %w", err)
		}
		res.Screenshot = base64.StdEncoding.EncodeToString(png)
	}
	return res, nil
}

// Screenshot captures the session's page as base64 PNG.
func (m *Manager) Screenshot(ctx context.Context, id string, fullPage bool) (ScreenshotResult, error) {
	s, err := m.get(id)
	if err != nil {
		return ScreenshotResult{}, err
	}

	png, err := s.page.Screenshot(ctx, fullPage)
	if err != nil {
		return ScreenshotResult{}, fmt.Errorf("screenshot: %w", err)
	}

	w, h := s.viewport.Width, s.viewport.Height
	if w <= 0 || h <= 0 {
		w, h = 1920, 1080
	}
	return ScreenshotResult{
		Screenshot: base64.StdEncoding.EncodeToString(png),
		Width:      w,
		Height:     h,
	}, nil
}

// ExecuteScript evaluates script in the page. Script failures are reported in
// ScriptResult.Error; the returned error is only ever ErrSessionNotFound.
func (m *Manager) ExecuteScript(ctx context.Context, id, script string) (ScriptResult, error) {
	s, err := m.get(id)
	if err != nil {
		return ScriptResult{}, err
	}

	out, err := s.page.Evaluate(ctx, script)
	if err != nil {
		msg := err.Error()
		logging.BrowserDebug("Session %s script failed: %s", id, msg)
		return ScriptResult{Error: &msg}, nil
	}
	return ScriptResult{Result: &out}, nil
}

// GetCookies returns every cookie in the session's context.
func (m *Manager) GetCookies(ctx context.Context, id string) ([]cookie.Cookie, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}

	raw, err := s.context.Cookies()
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	out := make([]cookie.Cookie, 0, len(raw))
	for _, nc := range raw {
		out = append(out, cookie.FromNetwork(nc))
	}
	return out, nil
}

// PageContent returns the current document HTML, title and URL.
func (m *Manager) PageContent(ctx context.Context, id string) (PageContent, error) {
	s, err := m.get(id)
	if err != nil {
		return PageContent{}, err
	}

	html, err := s.page.HTML(ctx)
	if err != nil {
		return PageContent{}, fmt.Errorf("page html: %w", err)
	}
	title, url, err := s.page.Info(ctx)
	if err != nil {
		return PageContent{}, fmt.Errorf("page info: %w", err)
	}
	return PageContent{HTML: html, Title: title, URL: url}, nil
}

// ActiveSessions lists running sessions, oldest first.
func (m *Manager) ActiveSessions() []SessionInfo {
	m.mu.RLock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, SessionInfo{
			ID:              s.id,
			CookiesInjected: s.cookiesInjected,
			Viewport:        s.viewport,
			CreatedAt:       s.createdAt,
		})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// StopSession tears down page, context and browser in that order. Unknown
// or already stopped ids are ignored. Teardown errors are logged only.
func (m *Manager) StopSession(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		logging.BrowserDebug("StopSession: %s not running", id)
		return
	}
	m.teardown(s)
	logging.Browser("Automation session %s stopped", id)
}

func (m *Manager) teardown(s *session) {
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			logging.BrowserWarn("Session %s: close page: %v", s.id, err)
		}
	}
	if s.context != nil {
		if err := s.context.Close(); err != nil {
			logging.BrowserWarn("Session %s: close context: %v", s.id, err)
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			logging.BrowserWarn("Session %s: close browser: %v", s.id, err)
		}
	}
}

// Shutdown stops every session and then releases the engine. Later
// StartSession calls fail with ErrEngineClosed.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.engineMu.Lock()
	m.closed = true
	m.engineMu.Unlock()

	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			m.StopSession(id)
			return nil
		})
	}
	_ = g.Wait()

	m.engineMu.Lock()
	defer m.engineMu.Unlock()
	if m.engine == nil {
		return nil
	}
	err := m.engine.Close()
	m.engine = nil
	if err != nil {
		logging.BrowserWarn("Engine close: %v", err)
		return fmt.Errorf("close engine: %w", err)
	}
	logging.Browser("Automation engine shut down after stopping %d sessions", len(ids))
	return nil
}
