package session

import (
	"context"
	"time"

	"github.com/hiteshvirani/email.scrapping/internal/behavior"
	"github.com/hiteshvirani/email.scrapping/internal/fingerprint"
	"github.com/hiteshvirani/email.scrapping/internal/proxypool"
)

// Page is a live browser tab owned by one controller. Selectors starting
// with "//" are XPath expressions, everything else is CSS.
type Page interface {
	behavior.Page
	fingerprint.ScriptInjector

	Navigate(url string, timeout time.Duration) error
	WaitLoaded(timeout time.Duration) error
	Content() (string, error)
	Visible(selector string) (bool, error)
	Close() error
}

// Spec is everything a session is bound to at creation time.
type Spec struct {
	Proxy       *proxypool.Proxy
	Fingerprint fingerprint.Fingerprint
}

// Launcher opens browser sessions. Callers must Close the returned Page.
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (Page, error)
}

// ProxySource is the part of the proxy pool a controller uses.
type ProxySource interface {
	Len() int
	Next() *proxypool.Proxy
	ReportFailure(p *proxypool.Proxy)
	ReportSuccess(p *proxypool.Proxy)
}

// Consent dialogs, most specific first.
var consentSelectors = []string{
	`#W0wltc`,
	`button#L2AGLb`,
	`button[aria-label="Accept all"]`,
	`button[aria-label="I agree"]`,
	`button[aria-label="Accept all cookies"]`,
	`button[jsname="b3VHJd"]`,
	`//button[contains(., "Accept all")]`,
	`//button[contains(., "I agree")]`,
	`//button[contains(., "Agree to all")]`,
	`//button[contains(., "Accept")]`,
}

// Next-page controls, most specific first.
var nextPageSelectors = []string{
	`#pnnext`,
	`a#pnnext`,
	`[aria-label="Next page"]`,
	`//a[contains(., "Next")]`,
}
