package session

import (
	"context"
	"errors"
	"math/rand"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/hiteshvirani/email.scrapping/internal/behavior"
	"github.com/hiteshvirani/email.scrapping/internal/config"
	"github.com/hiteshvirani/email.scrapping/internal/proxypool"
)

// stubPage serves a fixed sequence of result pages. Clicking a next-page
// selector advances to the following one.
type stubPage struct {
	pages        []string
	current      int
	consent      bool
	navigateErr  error
	contentPanic bool

	navigated     []string
	consentClicks int
	initScripts   int
	closed        int
}

func (p *stubPage) Viewport() (int, int) { return 1366, 768 }
func (p *stubPage) MouseMove(x, y float64) error { return nil }
func (p *stubPage) MouseClick(x, y float64) error { return nil }
func (p *stubPage) Wheel(dx, dy float64) error { return nil }
func (p *stubPage) TypeChar(r rune) error { return nil }
func (p *stubPage) ScrollIntoView(sel string) error { return nil }
func (p *stubPage) LinkBoxes(int) ([]behavior.Box, error) {
	return []behavior.Box{{X: 10, Y: 10, Width: 80, Height: 16}}, nil
}

// Box always misses so clicks take the direct path.
func (p *stubPage) Box(string) (behavior.Box, error) { return behavior.Box{}, behavior.ErrNotFound }

func (p *stubPage) Click(sel string) error {
	switch {
	case isNextSelector(sel) && p.current+1 < len(p.pages):
		p.current++
		return nil
	case sel == consentSelectors[0] && p.consent:
		p.consent = false
		p.consentClicks++
		return nil
	}
	return errors.New("node not found")
}

func (p *stubPage) AddInitScript(string) error {
	p.initScripts++
	return nil
}

func (p *stubPage) Navigate(u string, _ time.Duration) error {
	if p.navigateErr != nil {
		return p.navigateErr
	}
	p.navigated = append(p.navigated, u)
	p.current = 0
	return nil
}

func (p *stubPage) WaitLoaded(time.Duration) error { return nil }

func (p *stubPage) Content() (string, error) {
	if p.contentPanic {
		panic("renderer crashed")
	}
	return p.pages[p.current], nil
}

func (p *stubPage) Visible(sel string) (bool, error) {
	switch {
	case isNextSelector(sel):
		return sel == nextPageSelectors[0] && p.current+1 < len(p.pages), nil
	case sel == consentSelectors[0]:
		return p.consent, nil
	}
	return false, nil
}

func (p *stubPage) Close() error {
	p.closed++
	return nil
}

func isNextSelector(sel string) bool {
	for _, s := range nextPageSelectors {
		if s == sel {
			return true
		}
	}
	return false
}

type stubLauncher struct {
	newPage  func() *stubPage
	failures int

	launched []*stubPage
	specs    []Spec
	attempts int
}

func (l *stubLauncher) Launch(_ context.Context, spec Spec) (Page, error) {
	l.attempts++
	if l.attempts <= l.failures {
		return nil, errors.New("chrome failed to start")
	}
	p := l.newPage()
	l.launched = append(l.launched, p)
	l.specs = append(l.specs, spec)
	return p, nil
}

func resultsPage(emails ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="search">`)
	for _, e := range emails {
		b.WriteString(`<div class="g"><span>Reach us at ` + e + `</span></div>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.UseProxy = true
	cfg.ProxyRotationChance = 0
	cfg.MaxPagesPerQuery = 2
	cfg.MaxRetries = 3
	return cfg
}

func testPool(t *testing.T) *proxypool.Pool {
	t.Helper()
	pl := proxypool.New(proxypool.Options{Logger: zerolog.Nop()})
	pl.LoadList([]string{"user:pass@1.1.1.1:8080", "2.2.2.2:3128"})
	return pl
}

func newTestController(cfg config.Config, l Launcher, pool ProxySource) *Controller {
	return New(Options{
		Config:   cfg,
		Launcher: l,
		Pool:     pool,
		Rand:     rand.New(rand.NewSource(1)),
		Sleep:    func(time.Duration) {},
		Logger:   zerolog.Nop(),
	})
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func TestRunTwoPages(t *testing.T) {
	launcher := &stubLauncher{newPage: func() *stubPage {
		return &stubPage{pages: []string{
			resultsPage("a@x.com", "b@x.com"),
			resultsPage("c@x.com", "d@x.com"),
			resultsPage("never@x.com"),
		}}
	}}
	pool := testPool(t)
	c := newTestController(testConfig(), launcher, pool)
	defer c.Close()

	out := c.Run(context.Background(), Task{Query: `plumber "Boston" "@gmail.com"`})

	if out.State != Done || out.Err != nil {
		t.Fatalf("outcome state %v err %v, want DONE", out.State, out.Err)
	}
	if out.Pages != 2 {
		t.Errorf("Pages = %d, want 2", out.Pages)
	}
	want := []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"}
	if diff := cmp.Diff(want, sorted(out.Emails)); diff != "" {
		t.Errorf("emails mismatch (-want +got):\n%s", diff)
	}
	if out.Challenge {
		t.Error("challenge reported on clean pages")
	}

	page := launcher.launched[0]
	if len(page.navigated) != 1 {
		t.Fatalf("navigated %d times, want 1", len(page.navigated))
	}
	u, err := url.Parse(page.navigated[0])
	if err != nil {
		t.Fatal(err)
	}
	if got := u.Query().Get("q"); got != `plumber "Boston" "@gmail.com"` {
		t.Errorf("search query = %q", got)
	}
	if page.initScripts != 10 {
		t.Errorf("registered %d init scripts, want the full patch set", page.initScripts)
	}

	spec := launcher.specs[0]
	if spec.Proxy == nil || spec.Proxy.Server != "http://1.1.1.1:8080" {
		t.Errorf("session bound to proxy %v, want the first pool entry", spec.Proxy)
	}
	if spec.Fingerprint.Headers["User-Agent"] != spec.Fingerprint.UserAgent {
		t.Error("fingerprint headers disagree with its user agent")
	}
	if st := pool.StatusOf(spec.Proxy); !st.Healthy || st.Failures != 0 {
		t.Errorf("proxy status after success = %+v", st)
	}

	stats := c.Stats()
	if stats.PagesProcessed != 2 || stats.EmailsFound != 4 || stats.TasksDone != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if c.State() != Done {
		t.Errorf("controller state = %v", c.State())
	}
}

func TestRunStopsAtLastPage(t *testing.T) {
	launcher := &stubLauncher{newPage: func() *stubPage {
		return &stubPage{pages: []string{resultsPage("only@x.com")}}
	}}
	cfg := testConfig()
	cfg.MaxPagesPerQuery = 5
	c := newTestController(cfg, launcher, testPool(t))
	defer c.Close()

	out := c.Run(context.Background(), Task{Query: "q"})
	if out.State != Done || out.Pages != 1 {
		t.Fatalf("got state %v pages %d, want DONE after 1 page", out.State, out.Pages)
	}
}

func TestRunChallenge(t *testing.T) {
	testCases := []struct {
		description string
		pages       []string
		wantPages   int
		wantEmails  int
	}{
		{
			"challenge on landing page",
			[]string{`<html><body><h1>Our systems have detected UNUSUAL TRAFFIC</h1></body></html>`},
			0, 0,
		},
		{
			"challenge after first page",
			[]string{
				resultsPage("a@x.com"),
				`<html><body><div class="g-recaptcha"></div>b@x.com</body></html>`,
			},
			2, 2,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			launcher := &stubLauncher{newPage: func() *stubPage {
				return &stubPage{pages: testCase.pages}
			}}
			pool := testPool(t)
			cfg := testConfig()
			cfg.MaxPagesPerQuery = 3
			c := newTestController(cfg, launcher, pool)
			defer c.Close()

			out := c.Run(context.Background(), Task{Query: "q"})
			if out.State != Done || out.Err != nil {
				t.Fatalf("state %v err %v, want DONE without error", out.State, out.Err)
			}
			if !out.Challenge {
				t.Fatal("challenge not reported")
			}
			if out.Pages != testCase.wantPages || len(out.Emails) != testCase.wantEmails {
				t.Errorf("pages %d emails %d, want %d and %d", out.Pages, len(out.Emails), testCase.wantPages, testCase.wantEmails)
			}
			if st := pool.StatusOf(launcher.specs[0].Proxy); st.Failures != 1 {
				t.Errorf("proxy failures = %d, want 1", st.Failures)
			}
			if launcher.launched[0].closed != 1 {
				t.Error("session was not torn down after a challenge")
			}
			if c.Stats().Challenges != 1 {
				t.Errorf("Challenges = %d", c.Stats().Challenges)
			}
		})
	}
}

func TestRunNavigationFailure(t *testing.T) {
	launcher := &stubLauncher{newPage: func() *stubPage {
		return &stubPage{pages: []string{resultsPage()}, navigateErr: context.DeadlineExceeded}
	}}
	pool := testPool(t)
	c := newTestController(testConfig(), launcher, pool)
	defer c.Close()

	out := c.Run(context.Background(), Task{Query: "q"})
	if out.State != Failed || out.Err == nil {
		t.Fatalf("state %v err %v, want FAILED", out.State, out.Err)
	}
	if launcher.launched[0].closed != 1 {
		t.Error("session left open after a failure")
	}
	if c.Stats().TasksFailed != 1 {
		t.Errorf("TasksFailed = %d", c.Stats().TasksFailed)
	}
}

func TestRunPenalizesProxyOnFailure(t *testing.T) {
	launcher := &stubLauncher{newPage: func() *stubPage {
		return &stubPage{pages: []string{resultsPage()}, navigateErr: errors.New("net::ERR_PROXY_CONNECTION_FAILED")}
	}}
	pool := testPool(t)
	c := newTestController(testConfig(), launcher, pool)
	defer c.Close()

	c.Run(context.Background(), Task{Query: "q"})
	if st := pool.StatusOf(launcher.specs[0].Proxy); st.Failures != 1 {
		t.Errorf("proxy failures = %d, want 1", st.Failures)
	}

	// The next task starts a fresh session on the next proxy.
	c.Run(context.Background(), Task{Query: "q2"})
	if len(launcher.specs) != 2 {
		t.Fatalf("launched %d sessions, want 2", len(launcher.specs))
	}
	if launcher.specs[1].Proxy.Server != "http://2.2.2.2:3128" {
		t.Errorf("second session used %s", launcher.specs[1].Proxy.Server)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	launcher := &stubLauncher{newPage: func() *stubPage {
		return &stubPage{pages: []string{resultsPage()}, contentPanic: true}
	}}
	c := newTestController(testConfig(), launcher, testPool(t))
	defer c.Close()

	out := c.Run(context.Background(), Task{Query: "q"})
	if out.State != Failed || !errors.Is(out.Err, ErrPanic) {
		t.Fatalf("state %v err %v, want FAILED with ErrPanic", out.State, out.Err)
	}
	if launcher.launched[0].closed != 1 {
		t.Error("session left open after a panic")
	}
}

func TestRunLaunchRetries(t *testing.T) {
	testCases := []struct {
		description string
		failures    int
		maxRetries  int
		wantState   State
	}{
		{"succeeds on third attempt", 2, 3, Done},
		{"gives up after retries", 5, 2, Failed},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			launcher := &stubLauncher{
				failures: testCase.failures,
				newPage:  func() *stubPage { return &stubPage{pages: []string{resultsPage("a@x.com")}} },
			}
			cfg := testConfig()
			cfg.MaxRetries = testCase.maxRetries
			var slept []time.Duration
			c := New(Options{
				Config:   cfg,
				Launcher: launcher,
				Pool:     testPool(t),
				Rand:     rand.New(rand.NewSource(1)),
				Sleep:    func(d time.Duration) { slept = append(slept, d) },
				Logger:   zerolog.Nop(),
			})
			defer c.Close()

			out := c.Run(context.Background(), Task{Query: "q"})
			if out.State != testCase.wantState {
				t.Fatalf("state = %v, want %v (err %v)", out.State, testCase.wantState, out.Err)
			}
			if testCase.wantState == Failed && !errors.Is(out.Err, ErrLaunch) {
				t.Errorf("err = %v, want ErrLaunch", out.Err)
			}
			if !containsDuration(slept, cfg.Retry()) {
				t.Error("no retry delay between launch attempts")
			}
		})
	}
}

func containsDuration(ds []time.Duration, want time.Duration) bool {
	for _, d := range ds {
		if d == want {
			return true
		}
	}
	return false
}

func TestSessionReuseAndRotation(t *testing.T) {
	for _, testCase := range []struct {
		description  string
		rotation     float64
		wantLaunches int
	}{
		{"no rotation reuses the session", 0, 1},
		{"certain rotation restarts every task", 1, 3},
	} {
		t.Run(testCase.description, func(t *testing.T) {
			launcher := &stubLauncher{newPage: func() *stubPage {
				return &stubPage{pages: []string{resultsPage("a@x.com")}}
			}}
			cfg := testConfig()
			cfg.ProxyRotationChance = testCase.rotation
			c := newTestController(cfg, launcher, testPool(t))
			defer c.Close()

			for _, q := range []string{"one", "two", "three"} {
				if out := c.Run(context.Background(), Task{Query: q}); out.State != Done {
					t.Fatalf("task %q ended in %v: %v", q, out.State, out.Err)
				}
			}
			if len(launcher.launched) != testCase.wantLaunches {
				t.Errorf("launched %d sessions, want %d", len(launcher.launched), testCase.wantLaunches)
			}
		})
	}
}

func TestRunWithoutProxy(t *testing.T) {
	launcher := &stubLauncher{newPage: func() *stubPage {
		return &stubPage{pages: []string{resultsPage("a@x.com")}}
	}}
	cfg := testConfig()
	cfg.UseProxy = false
	cfg.EnableStealth = false
	c := newTestController(cfg, launcher, nil)
	defer c.Close()

	out := c.Run(context.Background(), Task{Query: "q"})
	if out.State != Done || out.Proxy != "" {
		t.Fatalf("state %v proxy %q", out.State, out.Proxy)
	}
	if launcher.specs[0].Proxy != nil {
		t.Error("session bound to a proxy with proxying disabled")
	}
	if launcher.launched[0].initScripts != 0 {
		t.Error("patches applied with stealth disabled")
	}
}

func TestRunDismissesConsent(t *testing.T) {
	launcher := &stubLauncher{newPage: func() *stubPage {
		return &stubPage{pages: []string{resultsPage("a@x.com")}, consent: true}
	}}
	c := newTestController(testConfig(), launcher, testPool(t))
	defer c.Close()

	c.Run(context.Background(), Task{Query: "q"})
	if launcher.launched[0].consentClicks != 1 {
		t.Errorf("consent clicked %d times, want 1", launcher.launched[0].consentClicks)
	}
}

func TestRunCancelledContext(t *testing.T) {
	launcher := &stubLauncher{newPage: func() *stubPage { return &stubPage{pages: []string{resultsPage()}} }}
	c := newTestController(testConfig(), launcher, testPool(t))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := c.Run(ctx, Task{Query: "q"})
	if out.State != Failed || !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("state %v err %v", out.State, out.Err)
	}
	if len(launcher.launched) != 0 {
		t.Error("browser launched for a cancelled task")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	launcher := &stubLauncher{newPage: func() *stubPage { return &stubPage{pages: []string{resultsPage("a@x.com")}} }}
	c := newTestController(testConfig(), launcher, testPool(t))
	c.Run(context.Background(), Task{Query: "q"})

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if launcher.launched[0].closed != 1 {
		t.Errorf("page closed %d times, want 1", launcher.launched[0].closed)
	}
}

func TestStateString(t *testing.T) {
	if Paginating.String() != "PAGINATING" || State(42).String() != "UNKNOWN" {
		t.Errorf("unexpected names %q %q", Paginating, State(42))
	}
	if !Failed.Terminal() || Extracting.Terminal() {
		t.Error("Terminal() misclassifies states")
	}
}
