package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiteshvirani/email.scrapping/internal/behavior"
	"github.com/hiteshvirani/email.scrapping/internal/challenge"
	"github.com/hiteshvirani/email.scrapping/internal/config"
	"github.com/hiteshvirani/email.scrapping/internal/extract"
	"github.com/hiteshvirani/email.scrapping/internal/fingerprint"
	"github.com/hiteshvirani/email.scrapping/internal/proxypool"
)

var (
	ErrLaunch = errors.New("browser session could not be started")
	ErrPanic  = errors.New("crawl loop panicked")
)

// Chance of an idle interaction before clicking to the next page.
const preClickIdleChance = 0.3

// Task is one search query to crawl.
type Task struct {
	Query    string
	MaxPages int // 0 uses Config.MaxPagesPerQuery
}

// Outcome is the result of one task. Emails holds partial results when the
// task ended early.
type Outcome struct {
	Query     string
	Emails    []string
	Pages     int
	Challenge bool
	Indicator string
	Proxy     string
	State     State
	Err       error
}

// Stats accumulate across every task a controller has run.
type Stats struct {
	PagesProcessed int
	EmailsFound    int
	Challenges     int
	TasksDone      int
	TasksFailed    int
	CurrentProxy   string
}

type Options struct {
	Config   config.Config
	Launcher Launcher
	// Pool may be nil; proxying is used only when Config.UseProxy is set and
	// the pool is non-empty.
	Pool   ProxySource
	Rand   *rand.Rand
	Sleep  func(time.Duration)
	Logger zerolog.Logger
}

// Controller drives one browser session through a sequence of tasks. Run is
// not safe for concurrent use; Stats may be read from any goroutine.
type Controller struct {
	cfg          config.Config
	launcher     Launcher
	pool         ProxySource
	fingerprints *fingerprint.Randomizer
	sim          *behavior.Simulator
	detector     *challenge.Detector
	rnd          *rand.Rand
	sleep        func(time.Duration)
	log          zerolog.Logger

	page  Page
	proxy *proxypool.Proxy

	mu    sync.Mutex
	state State
	stats Stats
}

func New(opts Options) *Controller {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Controller{
		cfg:          opts.Config,
		launcher:     opts.Launcher,
		pool:         opts.Pool,
		fingerprints: fingerprint.NewRandomizer(fingerprint.PoolsFrom(opts.Config), opts.Rand),
		sim: behavior.New(behavior.TimingFrom(opts.Config),
			behavior.WithRand(opts.Rand),
			behavior.WithSleep(opts.Sleep),
			behavior.WithLogger(opts.Logger)),
		detector: challenge.New(opts.Config.ChallengeIndicators...),
		rnd:      opts.Rand,
		sleep:    opts.Sleep,
		log:      opts.Logger,
	}
}

func (c *Controller) proxyEnabled() bool {
	return c.cfg.UseProxy && c.pool != nil && c.pool.Len() > 0
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.log.Debug().Stringer("state", s).Msg("State transition")
}

// State returns the state of the task in progress, or the terminal state
// of the last one.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Run crawls one query. It never panics and never returns an error: failures
// are reported in the Outcome.
func (c *Controller) Run(ctx context.Context, task Task) (out Outcome) {
	maxPages := task.MaxPages
	if maxPages <= 0 {
		maxPages = c.cfg.MaxPagesPerQuery
	}
	emails := extract.NewSet()
	out = Outcome{Query: task.Query}

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		out.Emails = emails.Slice()
		c.finish(&out)
	}()

	c.log.Info().Str("query", task.Query).Int("max_pages", maxPages).Msg("Searching")
	out.Err = c.crawl(ctx, task.Query, maxPages, emails, &out)
	return out
}

func (c *Controller) crawl(ctx context.Context, query string, maxPages int, emails *extract.Set, out *Outcome) error {
	c.setState(Idle)
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.page == nil {
		c.setState(SessionStarting)
		if err := c.startSession(ctx); err != nil {
			return err
		}
	}
	if c.proxy != nil {
		out.Proxy = c.proxy.String()
	}

	c.setState(Navigating)
	target, err := searchURL(c.cfg.BaseURL, query)
	if err != nil {
		return err
	}
	if err := c.page.Navigate(target, c.cfg.PageLoad()); err != nil {
		return fmt.Errorf("navigate to search page: %w", err)
	}
	c.sim.PageDelay()

	c.setState(ConsentCheck)
	c.dismissConsent()

	c.setState(ChallengeCheck)
	if hit, err := c.challenged(out); err != nil || hit {
		return err
	}
	c.sim.IdleInteraction(c.page)

	for pageNum := 1; ; pageNum++ {
		c.setState(Extracting)
		html, err := c.page.Content()
		if err != nil {
			return fmt.Errorf("read page %d: %w", pageNum, err)
		}
		found, err := extract.Emails(html)
		if err != nil {
			return fmt.Errorf("extract page %d: %w", pageNum, err)
		}
		delta := emails.Merge(found)
		out.Pages++
		c.log.Info().
			Int("page", pageNum).
			Int("new", len(delta)).
			Int("total", emails.Len()).
			Msg("Page processed")

		c.setState(Paginating)
		if hit, err := c.challenged(out); err != nil || hit {
			return err
		}
		if pageNum >= maxPages {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		c.sim.PageDelay()
		if c.rnd.Float64() < preClickIdleChance {
			c.sim.IdleInteraction(c.page)
		}

		sel, ok := c.firstVisible(nextPageSelectors)
		if !ok {
			c.log.Info().Int("page", pageNum).Msg("No more pages available")
			return nil
		}
		c.sim.ScrollTo(c.page, sel)
		c.sim.ActionDelay()
		if err := c.sim.Click(c.page, sel); err != nil {
			c.log.Warn().Err(err).Str("selector", sel).Msg("Next page control could not be clicked")
			return nil
		}

		c.setState(Navigating)
		if err := c.page.WaitLoaded(c.cfg.PageLoad()); err != nil {
			return fmt.Errorf("load page %d: %w", pageNum+1, err)
		}
		c.sim.PageDelay()
	}
}

// challenged reads the page and records a detected challenge in out.
func (c *Controller) challenged(out *Outcome) (bool, error) {
	content, err := c.page.Content()
	if err != nil {
		return false, fmt.Errorf("read page for challenge check: %w", err)
	}
	indicator, hit := c.detector.Detect(content)
	if hit {
		out.Challenge = true
		out.Indicator = indicator
		c.log.Warn().Str("indicator", indicator).Msg("Challenge detected, stopping query")
	}
	return hit, nil
}

func (c *Controller) firstVisible(selectors []string) (string, bool) {
	for _, sel := range selectors {
		visible, err := c.page.Visible(sel)
		if err != nil {
			c.log.Debug().Err(err).Str("selector", sel).Msg("Selector lookup failed")
			continue
		}
		if visible {
			return sel, true
		}
	}
	return "", false
}

func (c *Controller) dismissConsent() {
	sel, ok := c.firstVisible(consentSelectors)
	if !ok {
		return
	}
	c.sim.ActionDelay()
	if err := c.sim.Click(c.page, sel); err != nil {
		c.log.Debug().Err(err).Str("selector", sel).Msg("Consent dialog could not be dismissed")
		return
	}
	c.log.Info().Str("selector", sel).Msg("Accepted cookie consent")
	c.sim.ActionDelay()
}

// startSession launches a browser with a fresh proxy and fingerprint,
// retrying up to MaxRetries times.
func (c *Controller) startSession(ctx context.Context) error {
	attempts := max(c.cfg.MaxRetries, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.sleep(c.cfg.Retry())
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var proxy *proxypool.Proxy
		if c.proxyEnabled() {
			proxy = c.pool.Next()
		}
		fp := c.fingerprints.Build()

		page, err := c.launcher.Launch(ctx, Spec{Proxy: proxy, Fingerprint: fp})
		if err == nil && c.cfg.EnableStealth {
			if err = fingerprint.Apply(page, fingerprint.PatchesFor(fp)); err != nil {
				_ = page.Close()
			}
		}
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Int("attempt", attempt).Int("of", attempts).Msg("Browser launch failed")
			continue
		}

		c.page, c.proxy = page, proxy
		c.mu.Lock()
		c.stats.CurrentProxy = ""
		if proxy != nil {
			c.stats.CurrentProxy = proxy.String()
		}
		c.mu.Unlock()

		ev := c.log.Info().
			Str("viewport", fmt.Sprintf("%dx%d", fp.Viewport.Width, fp.Viewport.Height)).
			Str("locale", fp.Locale).
			Str("timezone", fp.Timezone)
		if proxy != nil {
			ev = ev.Str("proxy", proxy.String())
		}
		ev.Msg("Browser started")
		return nil
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrLaunch, attempts, lastErr)
}

// finish settles the outcome: proxy reporting, teardown, rotation, stats.
func (c *Controller) finish(out *Outcome) {
	cancelled := errors.Is(out.Err, context.Canceled) || errors.Is(out.Err, context.DeadlineExceeded)

	switch {
	case out.Err != nil:
		out.State = Failed
		c.log.Error().Err(out.Err).Str("query", out.Query).Msg("Query failed")
		if c.proxy != nil && !cancelled {
			c.pool.ReportFailure(c.proxy)
		}
		c.teardown()
	case out.Challenge:
		out.State = Done
		if c.proxy != nil {
			c.pool.ReportFailure(c.proxy)
		}
		c.teardown()
	default:
		out.State = Done
		if c.proxy != nil {
			c.pool.ReportSuccess(c.proxy)
		}
		if c.proxyEnabled() && c.rnd.Float64() < c.cfg.ProxyRotationChance {
			c.log.Info().Msg("Rotating proxy")
			c.teardown()
		}
	}

	c.mu.Lock()
	c.state = out.State
	c.stats.PagesProcessed += out.Pages
	c.stats.EmailsFound += len(out.Emails)
	if out.Challenge {
		c.stats.Challenges++
	}
	if out.State == Failed {
		c.stats.TasksFailed++
	} else {
		c.stats.TasksDone++
	}
	c.mu.Unlock()

	c.log.Info().
		Str("query", out.Query).
		Stringer("state", out.State).
		Int("pages", out.Pages).
		Int("emails", len(out.Emails)).
		Bool("challenge", out.Challenge).
		Msg("Query finished")
}

func (c *Controller) teardown() {
	if c.page != nil {
		if err := c.page.Close(); err != nil {
			c.log.Debug().Err(err).Msg("Browser close reported an error")
		}
	}
	c.page = nil
	c.proxy = nil
	c.mu.Lock()
	c.stats.CurrentProxy = ""
	c.mu.Unlock()
}

// Close releases the browser session. It is safe to call more than once.
func (c *Controller) Close() error {
	c.teardown()
	return nil
}

func searchURL(base, query string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
