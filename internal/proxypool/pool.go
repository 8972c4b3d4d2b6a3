package proxypool

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxFailures    = 3
	DefaultHealthCheckURL = "https://httpbin.org/ip"
)

// Options configure a Pool.
type Options struct {
	DefaultUsername string
	DefaultPassword string
	MaxFailures     int
	HealthCheckURL  string
	Rand            *rand.Rand
	Logger          zerolog.Logger
}

// Pool is an ordered proxy set with a round-robin cursor. Every health
// mutation happens under mu, so one Pool can be shared between controllers.
type Pool struct {
	mu      sync.Mutex
	proxies []*Proxy
	cursor  int
	rnd     *rand.Rand

	defaultUser    string
	defaultPass    string
	maxFailures    int
	healthCheckURL string
	log            zerolog.Logger
}

// New returns an empty pool.
func New(opts Options) *Pool {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = DefaultMaxFailures
	}
	if opts.HealthCheckURL == "" {
		opts.HealthCheckURL = DefaultHealthCheckURL
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Pool{
		rnd:            opts.Rand,
		defaultUser:    opts.DefaultUsername,
		defaultPass:    opts.DefaultPassword,
		maxFailures:    opts.MaxFailures,
		healthCheckURL: opts.HealthCheckURL,
		log:            opts.Logger,
	}
}

// LoadList parses entries and appends the valid ones. Malformed entries are
// logged and skipped. It returns the number of proxies added.
func (pl *Pool) LoadList(entries []string) int {
	added := 0
	for _, entry := range entries {
		if pl.add(entry) {
			added++
		}
	}
	return added
}

// LoadFile reads one proxy per line. Blank lines and lines starting with #
// are ignored.
func (pl *Pool) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open proxy file: %w", err)
	}
	defer f.Close()

	added := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if pl.add(line) {
			added++
		}
	}
	if err := scanner.Err(); err != nil {
		return added, fmt.Errorf("read proxy file: %w", err)
	}
	return added, nil
}

func (pl *Pool) add(entry string) bool {
	p, err := ParseProxy(entry, pl.defaultUser, pl.defaultPass)
	if err != nil {
		pl.log.Warn().Err(err).Msg("Skipping proxy entry")
		return false
	}
	pl.mu.Lock()
	pl.proxies = append(pl.proxies, p)
	pl.mu.Unlock()
	return true
}

// Len is the total number of proxies, healthy or not.
func (pl *Pool) Len() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return len(pl.proxies)
}

// Next returns the next healthy proxy in pool order, or nil when the pool is
// empty. The cursor walks the whole ordered pool, so N healthy proxies are all
// handed out once before any repeats.
func (pl *Pool) Next() *Proxy {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	n := len(pl.proxies)
	if n == 0 {
		return nil
	}
	pl.resetIfExhaustedLocked()

	for i := 0; i < n; i++ {
		idx := (pl.cursor + i) % n
		p := pl.proxies[idx]
		if p.healthy {
			pl.cursor = (idx + 1) % n
			p.lastUsed = time.Now()
			return p
		}
	}
	return nil
}

// Random returns a uniformly chosen healthy proxy, or nil for an empty pool.
func (pl *Pool) Random() *Proxy {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if len(pl.proxies) == 0 {
		return nil
	}
	pl.resetIfExhaustedLocked()

	healthy := make([]*Proxy, 0, len(pl.proxies))
	for _, p := range pl.proxies {
		if p.healthy {
			healthy = append(healthy, p)
		}
	}
	p := healthy[pl.rnd.Intn(len(healthy))]
	p.lastUsed = time.Now()
	return p
}

// resetIfExhaustedLocked marks every proxy healthy again when none is. The
// caller holds mu.
func (pl *Pool) resetIfExhaustedLocked() {
	for _, p := range pl.proxies {
		if p.healthy {
			return
		}
	}
	pl.log.Warn().Int("total", len(pl.proxies)).Msg("All proxies marked unhealthy, resetting pool")
	pl.resetLocked()
}

func (pl *Pool) resetLocked() {
	for _, p := range pl.proxies {
		p.healthy = true
		p.failures = 0
	}
}

// Reset marks every proxy healthy.
func (pl *Pool) Reset() {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.resetLocked()
}

// ReportFailure counts one more consecutive failure; the proxy turns
// unhealthy once the count reaches the configured maximum.
func (pl *Pool) ReportFailure(p *Proxy) {
	if p == nil {
		return
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()

	p.failures++
	if p.failures >= pl.maxFailures && p.healthy {
		p.healthy = false
		pl.log.Warn().Str("proxy", p.String()).Int("failures", p.failures).Msg("Proxy marked unhealthy")
	}
}

// ReportSuccess clears the failure count.
func (pl *Pool) ReportSuccess(p *Proxy) {
	if p == nil {
		return
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	p.failures = 0
	p.healthy = true
}

// CheckHealth fetches the health-check URL through p. A 2xx answer within
// timeout makes the proxy healthy; anything else condemns it. Errors are
// logged, never returned.
func (pl *Pool) CheckHealth(ctx context.Context, p *Proxy, timeout time.Duration) bool {
	client := resty.New().
		SetProxy(p.URL()).
		SetTimeout(timeout)

	ok := false
	resp, err := client.R().SetContext(ctx).Get(pl.healthCheckURL)
	switch {
	case err != nil:
		pl.log.Debug().Err(err).Str("proxy", p.String()).Msg("Health check failed")
	case !resp.IsSuccess():
		pl.log.Debug().Int("status", resp.StatusCode()).Str("proxy", p.String()).Msg("Health check returned non-success status")
	default:
		ok = true
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()
	if ok {
		p.healthy = true
		p.failures = 0
	} else {
		p.healthy = false
		if p.failures < pl.maxFailures {
			p.failures = pl.maxFailures
		}
	}
	return ok
}

// CheckAll checks every proxy concurrently and returns the outcome keyed by
// the masked proxy string.
func (pl *Pool) CheckAll(ctx context.Context, timeout time.Duration) map[string]bool {
	pl.mu.Lock()
	proxies := append([]*Proxy(nil), pl.proxies...)
	pl.mu.Unlock()

	results := make(map[string]bool, len(proxies))
	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range proxies {
		p := p
		g.Go(func() error {
			ok := pl.CheckHealth(gctx, p, timeout)
			resultsMu.Lock()
			results[p.String()] = ok
			resultsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Status is a point-in-time view of one proxy.
type Status struct {
	Server   string
	Healthy  bool
	Failures int
	LastUsed time.Time
}

// Stats summarizes the pool.
type Stats struct {
	Total     int
	Healthy   int
	Unhealthy int
	Proxies   []Status
}

// Stats returns a consistent snapshot of every proxy's health.
func (pl *Pool) Stats() Stats {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	s := Stats{Total: len(pl.proxies), Proxies: make([]Status, 0, len(pl.proxies))}
	for _, p := range pl.proxies {
		if p.healthy {
			s.Healthy++
		}
		s.Proxies = append(s.Proxies, Status{
			Server:   p.Server,
			Healthy:  p.healthy,
			Failures: p.failures,
			LastUsed: p.lastUsed,
		})
	}
	s.Unhealthy = s.Total - s.Healthy
	return s
}

// StatusOf returns the current health of p.
func (pl *Pool) StatusOf(p *Proxy) Status {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return Status{Server: p.Server, Healthy: p.healthy, Failures: p.failures, LastUsed: p.lastUsed}
}
