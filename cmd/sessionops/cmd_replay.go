package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sessionops/internal/browser"
	"sessionops/internal/cookie"
)

var (
	replayURL        string
	replayCookies    []string
	replayFromStore  bool
	replayDomain     string
	replayWait       string
	replayScreenshot string
	replayFullPage   bool
	replayScript     string
	replayUserAgent  string
	replayProxy      string
	replayWidth      int
	replayHeight     int
	replayHold       bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Open a fresh browser carrying captured cookies",
	Long: `Launches an isolated browser, injects captured cookies, navigates to --url
and reports the landing page. Optionally saves a screenshot, evaluates a
script and keeps the session open until interrupted (--hold).`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVarP(&replayURL, "url", "u", "", "URL to visit (required)")
	replayCmd.Flags().StringSliceVar(&replayCookies, "cookies", nil, "Cookie JSON files")
	replayCmd.Flags().BoolVar(&replayFromStore, "from-store", false, "Use cookies from the capture store")
	replayCmd.Flags().StringVarP(&replayDomain, "domain", "d", "", "Only cookies whose domain contains this")
	replayCmd.Flags().StringVar(&replayWait, "wait", string(browser.WaitLoad), "Navigation event (load, networkidle, domcontentloaded)")
	replayCmd.Flags().StringVar(&replayScreenshot, "screenshot", "", "Write a PNG screenshot to this path")
	replayCmd.Flags().BoolVar(&replayFullPage, "full-page", false, "Capture the full page")
	replayCmd.Flags().StringVar(&replayScript, "script", "", "JavaScript function to evaluate after navigation")
	replayCmd.Flags().StringVar(&replayUserAgent, "user-agent", "", "User agent override")
	replayCmd.Flags().StringVar(&replayProxy, "proxy", "", "Proxy server, e.g. socks5://127.0.0.1:1080")
	replayCmd.Flags().IntVar(&replayWidth, "width", 0, "Viewport width (config default when 0)")
	replayCmd.Flags().IntVar(&replayHeight, "height", 0, "Viewport height (config default when 0)")
	replayCmd.Flags().BoolVar(&replayHold, "hold", false, "Keep the session open until interrupted")
	_ = replayCmd.MarkFlagRequired("url")
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var cookies []cookie.Cookie
	if replayFromStore || len(replayCookies) > 0 {
		var err error
		cookies, err = loadCookies(ctx, cmd.InOrStdin(), replayCookies, replayFromStore, replayDomain)
		if err != nil {
			return err
		}
	}
	if !replayFromStore && replayDomain != "" {
		cookies = cookie.FilterDomain(cookies, replayDomain)
	}

	mgr := browser.NewManager(cfg.BrowserManagerConfig(), browser.RodFactory(cfg.Browser.Binary))
	return replay(ctx, cmd, mgr, cookies)
}

// replay drives one session against mgr and always shuts it down.
func replay(ctx context.Context, cmd *cobra.Command, mgr *browser.Manager, cookies []cookie.Cookie) (err error) {
	defer func() {
		if serr := mgr.Shutdown(context.Background()); serr != nil {
			logger.Warn("Browser shutdown reported errors", zap.Error(serr))
		}
	}()

	id, err := mgr.StartSession(ctx, browser.StartOptions{
		Cookies:   cookies,
		UserAgent: replayUserAgent,
		Viewport:  browser.Viewport{Width: replayWidth, Height: replayHeight},
		Proxy:     replayProxy,
	})
	if err != nil {
		return err
	}
	logger.Info("Replay session started", zap.String("session", id), zap.Int("cookies", len(cookies)))

	nav, err := mgr.Navigate(ctx, id, replayURL, browser.ParseWaitUntil(replayWait), false)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", headerStyle.Render("title"), nav.Title)
	fmt.Fprintf(out, "%s %s\n", headerStyle.Render("url  "), nav.URL)

	if replayScreenshot != "" {
		shot, err := mgr.Screenshot(ctx, id, replayFullPage)
		if err != nil {
			return err
		}
		png, err := base64.StdEncoding.DecodeString(shot.Screenshot)
		if err != nil {
			return fmt.Errorf("decode screenshot: %w", err)
		}
		if err := os.WriteFile(replayScreenshot, png, 0600); err != nil {
			return fmt.Errorf("write screenshot: %w", err)
		}
		fmt.Fprintf(out, "%s %s (%dx%d)\n", okStyle.Render("screenshot"), replayScreenshot, shot.Width, shot.Height)
	}

	if replayScript != "" {
		res, err := mgr.ExecuteScript(ctx, id, replayScript)
		if err != nil {
			return err
		}
		if res.Error != nil {
			fmt.Fprintf(out, "%s %s\n", errStyle.Render("script error"), *res.Error)
		} else if res.Result != nil {
			fmt.Fprintf(out, "%s %s\n", okStyle.Render("script"), *res.Result)
		}
	}

	live, err := mgr.GetCookies(ctx, id)
	if err != nil {
		return err
	}
	if jsonOut {
		if err := printJSON(out, live); err != nil {
			return err
		}
	} else {
		renderCookies(out, live)
	}

	if replayHold {
		fmt.Fprintf(out, "%s session %s open, Ctrl-C to close\n", dimStyle.Render("holding"), id)
		sig, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-sig.Done()
	}

	mgr.StopSession(id)
	return nil
}
