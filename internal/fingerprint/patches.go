package fingerprint

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Patch is one init script that masks an automation signal. The set of
// implementations is fixed; PatchesFor assembles them for a fingerprint.
type Patch interface {
	Name() string
	Script() string
}

// ScriptInjector registers a script to run before any page script on every
// document the session loads.
type ScriptInjector interface {
	AddInitScript(src string) error
}

// Apply registers patches in order and stops at the first failure.
func Apply(inj ScriptInjector, patches []Patch) error {
	for _, p := range patches {
		if err := inj.AddInitScript(p.Script()); err != nil {
			return fmt.Errorf("apply %s patch: %w", p.Name(), err)
		}
	}
	return nil
}

// PatchesFor returns the full patch set, parameterized by fp.
func PatchesFor(fp Fingerprint) []Patch {
	return []Patch{
		WebdriverPatch{},
		ChromeRuntimePatch{},
		LanguagesPatch{Languages: Languages(fp.Locale)},
		PluginsPatch{},
		PermissionsPatch{},
		HardwareConcurrencyPatch{Cores: fp.HardwareConcurrency},
		PlatformPatch{Platform: NavigatorPlatform(fp.UserAgent)},
		VendorPatch{},
		AutomationGlobalsPatch{},
		WebGLPatch{Vendor: "Intel Inc.", Renderer: "Intel Iris OpenGL Engine"},
	}
}

// guarded wraps body so a missing API on one page does not abort the others.
func guarded(body string) string {
	return "(() => {\n  try {\n" + body + "\n  } catch (e) {}\n})();"
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

type WebdriverPatch struct{}

func (WebdriverPatch) Name() string { return "webdriver" }
func (WebdriverPatch) Script() string {
	return guarded(`    Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });`)
}

type ChromeRuntimePatch struct{}

func (ChromeRuntimePatch) Name() string { return "chrome-runtime" }
func (ChromeRuntimePatch) Script() string {
	return guarded(`    window.chrome = window.chrome || {};
    if (!window.chrome.runtime) {
      window.chrome.runtime = {
        connect: function() { return { onMessage: { addListener: function() {} }, postMessage: function() {} }; },
        sendMessage: function() {},
        onMessage: { addListener: function() {} },
      };
    }
    if (!window.chrome.csi) { window.chrome.csi = function() { return {}; }; }
    if (!window.chrome.loadTimes) { window.chrome.loadTimes = function() { return {}; }; }`)
}

type LanguagesPatch struct {
	Languages []string
}

func (LanguagesPatch) Name() string { return "languages" }
func (p LanguagesPatch) Script() string {
	quoted := make([]string, 0, len(p.Languages))
	for _, l := range p.Languages {
		quoted = append(quoted, jsString(l))
	}
	return guarded(fmt.Sprintf(
		`    Object.defineProperty(navigator, 'languages', { get: () => [%s], configurable: true });`,
		strings.Join(quoted, ", ")))
}

type PluginsPatch struct{}

func (PluginsPatch) Name() string { return "plugins" }
func (PluginsPatch) Script() string {
	return guarded(`    Object.defineProperty(navigator, 'plugins', {
      get: () => {
        const plugins = [
          { 0: { type: 'application/x-google-chrome-pdf' }, description: 'Portable Document Format', filename: 'internal-pdf-viewer', length: 1, name: 'Chrome PDF Plugin' },
          { 0: { type: 'application/pdf' }, description: '', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai', length: 1, name: 'Chrome PDF Viewer' },
          { 0: { type: 'application/x-nacl' }, 1: { type: 'application/x-pnacl' }, description: '', filename: 'internal-nacl-plugin', length: 2, name: 'Native Client' },
        ];
        plugins.item = (i) => plugins[i] || null;
        plugins.namedItem = (name) => plugins.find(p => p.name === name) || null;
        plugins.refresh = () => {};
        return plugins;
      },
      configurable: true,
    });`)
}

type PermissionsPatch struct{}

func (PermissionsPatch) Name() string { return "permissions" }
func (PermissionsPatch) Script() string {
	return guarded(`    const originalQuery = window.navigator.permissions.query.bind(window.navigator.permissions);
    window.navigator.permissions.query = (parameters) => (
      parameters && parameters.name === 'notifications'
        ? Promise.resolve({ state: typeof Notification !== 'undefined' ? Notification.permission : 'default', onchange: null })
        : originalQuery(parameters)
    );`)
}

type HardwareConcurrencyPatch struct {
	Cores int
}

func (HardwareConcurrencyPatch) Name() string { return "hardware-concurrency" }
func (p HardwareConcurrencyPatch) Script() string {
	cores := p.Cores
	if cores <= 0 {
		cores = 4
	}
	return guarded(fmt.Sprintf(
		`    Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d, configurable: true });`, cores))
}

type PlatformPatch struct {
	Platform string
}

func (PlatformPatch) Name() string { return "platform" }
func (p PlatformPatch) Script() string {
	return guarded(fmt.Sprintf(
		`    Object.defineProperty(navigator, 'platform', { get: () => %s, configurable: true });`, jsString(p.Platform)))
}

type VendorPatch struct{}

func (VendorPatch) Name() string { return "vendor" }
func (VendorPatch) Script() string {
	return guarded(`    Object.defineProperty(navigator, 'vendor', { get: () => 'Google Inc.', configurable: true });`)
}

// automationGlobals are the window properties left behind by common drivers.
var automationGlobals = []string{
	"cdc_adoQpoasnfa76pfcZLmcfl_Array",
	"cdc_adoQpoasnfa76pfcZLmcfl_Promise",
	"cdc_adoQpoasnfa76pfcZLmcfl_Symbol",
	"__webdriver_evaluate",
	"__selenium_evaluate",
	"__webdriver_script_function",
	"__webdriver_script_func",
	"__webdriver_script_fn",
	"__fxdriver_evaluate",
	"__driver_unwrapped",
	"__webdriver_unwrapped",
	"__driver_evaluate",
	"__selenium_unwrapped",
	"__fxdriver_unwrapped",
}

type AutomationGlobalsPatch struct{}

func (AutomationGlobalsPatch) Name() string { return "automation-globals" }
func (AutomationGlobalsPatch) Script() string {
	var b strings.Builder
	for _, g := range automationGlobals {
		fmt.Fprintf(&b, "    delete window[%s];\n", jsString(g))
	}
	b.WriteString(`    const nativeToString = Function.prototype.toString;
    Function.prototype.toString = function() {
      if (navigator.permissions && this === navigator.permissions.query) {
        return 'function query() { [native code] }';
      }
      return nativeToString.call(this);
    };`)
	return guarded(b.String())
}

// WebGL debug constants for UNMASKED_VENDOR_WEBGL and UNMASKED_RENDERER_WEBGL.
const (
	glUnmaskedVendor   = 37445
	glUnmaskedRenderer = 37446
)

type WebGLPatch struct {
	Vendor   string
	Renderer string
}

func (WebGLPatch) Name() string { return "webgl" }
func (p WebGLPatch) Script() string {
	return guarded(fmt.Sprintf(`    const patch = (proto) => {
      if (!proto) { return; }
      const getParameter = proto.getParameter;
      proto.getParameter = function(parameter) {
        if (parameter === %d) { return %s; }
        if (parameter === %d) { return %s; }
        return getParameter.call(this, parameter);
      };
    };
    patch(window.WebGLRenderingContext && WebGLRenderingContext.prototype);
    patch(window.WebGL2RenderingContext && WebGL2RenderingContext.prototype);`,
		glUnmaskedVendor, jsString(p.Vendor), glUnmaskedRenderer, jsString(p.Renderer)))
}
