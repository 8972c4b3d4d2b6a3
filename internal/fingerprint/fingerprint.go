package fingerprint

import (
	"math/rand"
	"strings"
	"time"

	"github.com/hiteshvirani/email.scrapping/internal/config"
)

// Fingerprint is the browser identity for one session.
type Fingerprint struct {
	Viewport            config.Viewport
	Locale              string
	Timezone            string
	ScaleFactor         float64
	UserAgent           string
	HardwareConcurrency int
	Headers             map[string]string
}

// Pools are the value sets a Randomizer draws from. Every pool must be
// non-empty; config.Validate guarantees that for pools built by PoolsFrom.
type Pools struct {
	Viewports           []config.Viewport
	Locales             []string
	Timezones           []string
	UserAgents          []string
	ScaleFactors        []float64
	HardwareConcurrency []int
}

func PoolsFrom(cfg config.Config) Pools {
	return Pools{
		Viewports:           cfg.Viewports,
		Locales:             cfg.Locales,
		Timezones:           cfg.Timezones,
		UserAgents:          cfg.UserAgents,
		ScaleFactors:        cfg.DeviceScaleFactors,
		HardwareConcurrency: cfg.HardwareConcurrency,
	}
}

// Randomizer builds fingerprints. It is not safe for concurrent use; each
// session controller owns one.
type Randomizer struct {
	pools Pools
	rnd   *rand.Rand
}

func NewRandomizer(pools Pools, rnd *rand.Rand) *Randomizer {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Randomizer{pools: pools, rnd: rnd}
}

// Build draws every attribute independently and derives the header set from
// the chosen user agent and locale.
func (r *Randomizer) Build() Fingerprint {
	fp := Fingerprint{
		Viewport:            pick(r.rnd, r.pools.Viewports),
		Locale:              pick(r.rnd, r.pools.Locales),
		Timezone:            pick(r.rnd, r.pools.Timezones),
		ScaleFactor:         pick(r.rnd, r.pools.ScaleFactors),
		UserAgent:           pick(r.rnd, r.pools.UserAgents),
		HardwareConcurrency: pick(r.rnd, r.pools.HardwareConcurrency),
	}
	fp.Headers = HeadersFor(fp.UserAgent)
	fp.Headers["Accept-Language"] = AcceptLanguage(fp.Locale)
	return fp
}

func pick[T any](rnd *rand.Rand, pool []T) T {
	var zero T
	if len(pool) == 0 {
		return zero
	}
	return pool[rnd.Intn(len(pool))]
}

// Languages is the navigator.languages value for a locale: the locale itself
// followed by its bare language when they differ.
func Languages(locale string) []string {
	base, _, found := strings.Cut(locale, "-")
	if !found || base == "" {
		return []string{locale}
	}
	return []string{locale, base}
}

// AcceptLanguage renders the Accept-Language header for a locale.
func AcceptLanguage(locale string) string {
	langs := Languages(locale)
	if len(langs) == 1 {
		return langs[0]
	}
	return langs[0] + "," + langs[1] + ";q=0.9"
}
