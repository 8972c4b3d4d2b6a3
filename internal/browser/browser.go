// Package browser runs headless Chrome sessions through chromedp. Each
// session is bound to one proxy and one fingerprint for its whole life.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/hiteshvirani/email.scrapping/internal/behavior"
	"github.com/hiteshvirani/email.scrapping/internal/config"
	"github.com/hiteshvirani/email.scrapping/internal/fingerprint"
	"github.com/hiteshvirani/email.scrapping/internal/logger"
	"github.com/hiteshvirani/email.scrapping/internal/proxypool"
	"github.com/hiteshvirani/email.scrapping/internal/session"
)

const (
	readyStatePollInterval = 100 * time.Millisecond
	navigationSettle       = 500 * time.Millisecond
	actionTimeout          = 15 * time.Second
)

// Launcher starts Chrome processes. The zero value runs headful Chrome from
// PATH and discards chromedp's own logging.
type Launcher struct {
	Headless   bool
	ChromePath string
	Log        zerolog.Logger
}

// Launch starts a browser bound to spec. The browser lives until the
// returned page is closed or ctx is cancelled.
func (l *Launcher) Launch(ctx context.Context, spec session.Spec) (session.Page, error) {
	fp := spec.Fingerprint

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", l.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("lang", fp.Locale),
		chromedp.WindowSize(fp.Viewport.Width, fp.Viewport.Height),
	)
	if fp.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(fp.UserAgent))
	}
	if spec.Proxy != nil {
		opts = append(opts, chromedp.ProxyServer(spec.Proxy.Server))
	}
	if path := strings.TrimSpace(l.ChromePath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Printf(l.Log, zerolog.DebugLevel)),
		chromedp.WithErrorf(logger.Printf(l.Log, zerolog.DebugLevel)),
	)

	s := &Session{
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		viewport:    fp.Viewport,
		log:         l.Log,
	}

	if spec.Proxy != nil && spec.Proxy.HasCredentials() {
		answerProxyAuth(tabCtx, spec.Proxy)
	}

	if err := chromedp.Run(tabCtx, setupTasks(spec)); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return s, nil
}

// answerProxyAuth replies to proxy authentication challenges with the
// proxy's credentials. Chrome has no flag for proxy credentials.
func answerProxyAuth(ctx context.Context, p *proxypool.Proxy) {
	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(ctx, fetch.ContinueRequest(e.RequestID))
			}()
		case *fetch.EventAuthRequired:
			go func() {
				_ = chromedp.Run(ctx, fetch.ContinueWithAuth(e.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: p.Username,
					Password: p.Password,
				}))
			}()
		}
	})
}

func setupTasks(spec session.Spec) chromedp.Tasks {
	fp := spec.Fingerprint
	tasks := chromedp.Tasks{}
	if spec.Proxy != nil && spec.Proxy.HasCredentials() {
		tasks = append(tasks, fetch.Enable().WithHandleAuthRequests(true))
	}

	headers := network.Headers{}
	for k, v := range fp.Headers {
		if k == "User-Agent" {
			continue
		}
		headers[k] = v
	}
	tasks = append(tasks,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		emulation.SetDeviceMetricsOverride(int64(fp.Viewport.Width), int64(fp.Viewport.Height), fp.ScaleFactor, false),
	)
	if fp.UserAgent != "" {
		override := emulation.SetUserAgentOverride(fp.UserAgent).
			WithAcceptLanguage(fingerprint.AcceptLanguage(fp.Locale)).
			WithPlatform(fingerprint.NavigatorPlatform(fp.UserAgent))
		if md := userAgentMetadata(fp.UserAgent); md != nil {
			override = override.WithUserAgentMetadata(md)
		}
		tasks = append(tasks, override)
	}
	if fp.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(fp.Timezone))
	}
	if fp.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(fp.Locale))
	}
	return tasks
}

// userAgentMetadata builds the client-hint metadata for a Chromium user
// agent, or nil for other browsers.
func userAgentMetadata(ua string) *emulation.UserAgentMetadata {
	brand, major, ok := fingerprint.Brand(ua)
	if !ok {
		return nil
	}
	full := fullVersion(ua, major)
	return &emulation.UserAgentMetadata{
		Brands: []*emulation.UserAgentBrandVersion{
			{Brand: "Not_A Brand", Version: "8"},
			{Brand: "Chromium", Version: major},
			{Brand: brand, Version: major},
		},
		FullVersionList: []*emulation.UserAgentBrandVersion{
			{Brand: "Not_A Brand", Version: "8.0.0.0"},
			{Brand: "Chromium", Version: full},
			{Brand: brand, Version: full},
		},
		Platform:     fingerprint.ClientHintPlatform(ua),
		Architecture: "x86",
		Bitness:      "64",
		Mobile:       false,
	}
}

func fullVersion(ua, major string) string {
	idx := strings.Index(ua, "Chrome/")
	if idx < 0 {
		return major + ".0.0.0"
	}
	ver := ua[idx+len("Chrome/"):]
	if end := strings.IndexAny(ver, " ;)"); end >= 0 {
		ver = ver[:end]
	}
	if ver == "" {
		return major + ".0.0.0"
	}
	return ver
}

// Session is one Chrome tab. Methods are not safe for concurrent use.
type Session struct {
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	viewport    config.Viewport
	log         zerolog.Logger

	mouseX, mouseY float64
	closeOnce      sync.Once
}

func (s *Session) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (s *Session) Navigate(url string, timeout time.Duration) error {
	return s.run(timeout, chromedp.Navigate(url), chromedp.ActionFunc(waitReadyState))
}

// WaitLoaded waits for a navigation started by a click to finish.
func (s *Session) WaitLoaded(timeout time.Duration) error {
	return s.run(timeout, chromedp.Sleep(navigationSettle), chromedp.ActionFunc(waitReadyState))
}

func waitReadyState(ctx context.Context) error {
	ticker := time.NewTicker(readyStatePollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		var state string
		err := chromedp.Evaluate(`document.readyState`, &state).Do(ctx)
		if err == nil {
			lastErr = nil
			if state == "complete" {
				return nil
			}
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Session) Content() (string, error) {
	var html string
	err := s.run(actionTimeout, chromedp.Evaluate(`document.documentElement.outerHTML`, &html))
	return html, err
}

func (s *Session) Visible(selector string) (bool, error) {
	var visible bool
	err := s.run(actionTimeout, chromedp.Evaluate(visibleScript(selector), &visible))
	return visible, err
}

func (s *Session) Box(selector string) (behavior.Box, error) {
	var res boxResult
	if err := s.run(actionTimeout, chromedp.Evaluate(boxScript(selector), &res)); err != nil {
		return behavior.Box{}, err
	}
	if !res.Found {
		return behavior.Box{}, fmt.Errorf("%w: %s", behavior.ErrNotFound, selector)
	}
	return res.box(), nil
}

// Click dispatches a DOM click on the element without moving the pointer.
func (s *Session) Click(selector string) error {
	var found bool
	if err := s.run(actionTimeout, chromedp.Evaluate(clickScript(selector), &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", behavior.ErrNotFound, selector)
	}
	return nil
}

func (s *Session) ScrollIntoView(selector string) error {
	var found bool
	if err := s.run(actionTimeout, chromedp.Evaluate(scrollIntoViewScript(selector), &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", behavior.ErrNotFound, selector)
	}
	return nil
}

func (s *Session) LinkBoxes(limit int) ([]behavior.Box, error) {
	var res []boxResult
	if err := s.run(actionTimeout, chromedp.Evaluate(linkBoxesScript(limit), &res)); err != nil {
		return nil, err
	}
	boxes := make([]behavior.Box, 0, len(res))
	for _, r := range res {
		boxes = append(boxes, r.box())
	}
	return boxes, nil
}

func (s *Session) Viewport() (int, int) {
	return s.viewport.Width, s.viewport.Height
}

func (s *Session) MouseMove(x, y float64) error {
	if err := s.run(actionTimeout, input.DispatchMouseEvent(input.MouseMoved, x, y)); err != nil {
		return err
	}
	s.mouseX, s.mouseY = x, y
	return nil
}

func (s *Session) MouseClick(x, y float64) error {
	err := s.run(actionTimeout,
		input.DispatchMouseEvent(input.MousePressed, x, y).WithButton(input.Left).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, x, y).WithButton(input.Left).WithClickCount(1),
	)
	if err != nil {
		return err
	}
	s.mouseX, s.mouseY = x, y
	return nil
}

// Wheel scrolls at the last pointer position.
func (s *Session) Wheel(dx, dy float64) error {
	return s.run(actionTimeout,
		input.DispatchMouseEvent(input.MouseWheel, s.mouseX, s.mouseY).WithDeltaX(dx).WithDeltaY(dy))
}

func (s *Session) TypeChar(r rune) error {
	return s.run(actionTimeout, chromedp.KeyEvent(string(r)))
}

// AddInitScript registers src to run before any page script on every
// document the tab loads.
func (s *Session) AddInitScript(src string) error {
	return s.run(actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(src).Do(ctx)
		return err
	}))
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = chromedp.Cancel(s.ctx)
		s.tabCancel()
		s.allocCancel()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if err != nil {
			s.log.Debug().Err(err).Msg("Chrome did not shut down cleanly")
		}
	})
	return err
}

var _ session.Launcher = (*Launcher)(nil)
