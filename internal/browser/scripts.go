package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hiteshvirani/email.scrapping/internal/behavior"
)

// boxResult is what the element scripts return. Scripts never return null so
// a missing element is Found == false rather than an evaluation error.
type boxResult struct {
	Found  bool    `json:"found"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r boxResult) box() behavior.Box {
	return behavior.Box{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// resolveJS is a JS expression yielding the first element matching selector,
// or null. Selectors starting with "//" are XPath.
func resolveJS(selector string) string {
	quoted, _ := json.Marshal(selector)
	if strings.HasPrefix(selector, "//") {
		return fmt.Sprintf(`document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`, quoted)
	}
	return fmt.Sprintf(`document.querySelector(%s)`, quoted)
}

func elementScript(selector, body string) string {
	return fmt.Sprintf(`(() => {
  let el = null;
  try { el = %s; } catch (e) { el = null; }
  %s
})()`, resolveJS(selector), body)
}

func visibleScript(selector string) string {
	return elementScript(selector, `if (!el) return false;
  const r = el.getBoundingClientRect();
  const st = window.getComputedStyle(el);
  return r.width > 0 && r.height > 0 && st.visibility !== 'hidden' && st.display !== 'none';`)
}

func boxScript(selector string) string {
	return elementScript(selector, `if (!el) return {found: false};
  const r = el.getBoundingClientRect();
  if (r.width === 0 && r.height === 0) return {found: false};
  return {found: true, x: r.x, y: r.y, width: r.width, height: r.height};`)
}

func clickScript(selector string) string {
	return elementScript(selector, `if (!el) return false;
  el.click();
  return true;`)
}

func scrollIntoViewScript(selector string) string {
	return elementScript(selector, `if (!el) return false;
  el.scrollIntoView({behavior: 'smooth', block: 'center'});
  return true;`)
}

// linkBoxesScript returns the boxes of up to limit links fully inside the
// viewport.
func linkBoxesScript(limit int) string {
	return fmt.Sprintf(`(() => {
  const out = [];
  const h = window.innerHeight, w = window.innerWidth;
  for (const a of document.querySelectorAll('a[href]')) {
    if (out.length >= %d) break;
    const r = a.getBoundingClientRect();
    if (r.width > 0 && r.height > 0 && r.top >= 0 && r.left >= 0 && r.bottom <= h && r.right <= w) {
      out.push({found: true, x: r.x, y: r.y, width: r.width, height: r.height});
    }
  }
  return out;
})()`, limit)
}
