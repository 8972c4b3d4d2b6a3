package challenge

import (
	"strings"

	"github.com/hiteshvirani/email.scrapping/internal/config"
)

// Detector scans rendered page content for signs of an anti-bot challenge.
type Detector struct {
	indicators []string
}

// New returns a detector for the given indicators, or for
// config.DefaultChallengeIndicators when none are given. Matching is
// case-insensitive; blank indicators are dropped.
func New(indicators ...string) *Detector {
	if len(indicators) == 0 {
		indicators = config.DefaultChallengeIndicators
	}
	d := &Detector{indicators: make([]string, 0, len(indicators))}
	for _, ind := range indicators {
		ind = strings.ToLower(strings.TrimSpace(ind))
		if ind != "" {
			d.indicators = append(d.indicators, ind)
		}
	}
	return d
}

// Detect returns the first indicator found in content.
func (d *Detector) Detect(content string) (string, bool) {
	if content == "" {
		return "", false
	}
	lower := strings.ToLower(content)
	for _, ind := range d.indicators {
		if strings.Contains(lower, ind) {
			return ind, true
		}
	}
	return "", false
}

func (d *Detector) Indicators() []string {
	return append([]string(nil), d.indicators...)
}
