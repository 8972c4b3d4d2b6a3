package fingerprint

import (
	"fmt"
	"strings"
)

const defaultChromeMajor = "120"

// Browser families the header builder distinguishes.
const (
	familyChrome  = "chrome"
	familyEdge    = "edge"
	familyFirefox = "firefox"
)

// HeadersFor returns the request headers a real browser with this user agent
// sends on a top-level navigation. The result depends only on ua.
func HeadersFor(ua string) map[string]string {
	h := map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Encoding":           "gzip, deflate, br",
		"Accept-Language":           "en-US,en;q=0.9",
		"Cache-Control":             "max-age=0",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
		"User-Agent":                ua,
	}

	brand, major, ok := Brand(ua)
	if !ok {
		return h
	}
	h["Sec-Ch-Ua"] = fmt.Sprintf(`"Not_A Brand";v="8", "Chromium";v="%s", "%s";v="%s"`, major, brand, major)
	h["Sec-Ch-Ua-Mobile"] = "?0"
	h["Sec-Ch-Ua-Platform"] = fmt.Sprintf("%q", ClientHintPlatform(ua))
	return h
}

func browserFamily(ua string) string {
	switch {
	case strings.Contains(ua, "Edg/"):
		return familyEdge
	case strings.Contains(ua, "Firefox/") && !strings.Contains(ua, "Chrome/"):
		return familyFirefox
	default:
		return familyChrome
	}
}

// Brand returns the client-hint brand name and major version of a Chromium
// user agent. ok is false for Firefox.
func Brand(ua string) (name, major string, ok bool) {
	switch browserFamily(ua) {
	case familyFirefox:
		return "", "", false
	case familyEdge:
		return "Microsoft Edge", chromeMajor(ua), true
	default:
		return "Google Chrome", chromeMajor(ua), true
	}
}

// IsChromium reports whether ua belongs to a Chromium-based browser.
func IsChromium(ua string) bool {
	return browserFamily(ua) != familyFirefox
}

func chromeMajor(ua string) string {
	idx := strings.Index(ua, "Chrome/")
	if idx < 0 {
		return defaultChromeMajor
	}
	ver := ua[idx+len("Chrome/"):]
	if end := strings.IndexAny(ver, ". ;)"); end > 0 {
		ver = ver[:end]
	}
	if ver == "" {
		return defaultChromeMajor
	}
	return ver
}

// ClientHintPlatform is the Sec-Ch-Ua-Platform value for ua.
func ClientHintPlatform(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "Macintosh"), strings.Contains(ua, "Mac OS X"):
		return "macOS"
	case strings.Contains(ua, "Linux"), strings.Contains(ua, "X11"):
		return "Linux"
	default:
		return "Windows"
	}
}

// NavigatorPlatform is the navigator.platform value matching ua.
func NavigatorPlatform(ua string) string {
	switch ClientHintPlatform(ua) {
	case "macOS":
		return "MacIntel"
	case "Linux":
		return "Linux x86_64"
	default:
		return "Win32"
	}
}
