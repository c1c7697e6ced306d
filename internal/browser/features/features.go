// internal/browser/features/features.go
package features

import (
	"fmt"
	"sort"
	"strings"
)

// Feature is a named capability flag. A browser version either has it or it does not.
type Feature string

const (
	// JSErrorStackTraceLimit exposes Error.stackTraceLimit (initialized to 10).
	JSErrorStackTraceLimit Feature = "JS_ERROR_STACK_TRACE_LIMIT"
	// JSErrorCaptureStackTrace exposes Error.captureStackTrace.
	JSErrorCaptureStackTrace Feature = "JS_ERROR_CAPTURE_STACK_TRACE"
	// JSWindowInstallTriggerNull defines the legacy InstallTrigger global as null.
	JSWindowInstallTriggerNull Feature = "JS_WINDOW_INSTALL_TRIGGER_NULL"
	// JSIntlV8BreakIterator exposes Intl.v8BreakIterator.
	JSIntlV8BreakIterator Feature = "JS_INTL_V8_BREAK_ITERATOR"
	// JSPresentationRequest exposes the PresentationRequest class.
	JSPresentationRequest Feature = "JS_PRESENTATION_REQUEST"
	// JSURLSearchParamsSize exposes URLSearchParams.prototype.size.
	JSURLSearchParamsSize Feature = "JS_URL_SEARCH_PARAMS_SIZE"
	// JSWebGLContextEventStatusMessage exposes WebGLContextEvent.prototype.statusMessage.
	JSWebGLContextEventStatusMessage Feature = "JS_WEBGL_CONTEXT_EVENT_STATUS_MESSAGE"
	// SubmitInputDefaultValueIfValueNotDefined gives submit inputs without a value
	// attribute the value "Submit Query".
	SubmitInputDefaultValueIfValueNotDefined Feature = "SUBMITINPUT_DEFAULT_VALUE_IF_VALUE_NOT_DEFINED"
)

// Family identifies the browser product line a version belongs to.
type Family int

const (
	FamilyChrome Family = iota
	FamilyEdge
	FamilyFirefox
	FamilyFirefoxESR
)

func (f Family) String() string {
	switch f {
	case FamilyChrome:
		return "Chrome"
	case FamilyEdge:
		return "Edge"
	case FamilyFirefox:
		return "Firefox"
	case FamilyFirefoxESR:
		return "FirefoxESR"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// BrowserVersion is an immutable snapshot of one emulated browser: its identity and the
// set of features it exposes to scripts.
type BrowserVersion struct {
	nickname  string
	family    Family
	major     int
	userAgent string
	features  map[Feature]struct{}
}

// Nickname is the stable identity of the version, also used as the memoization key for
// everything derived from it.
func (b *BrowserVersion) Nickname() string { return b.nickname }

func (b *BrowserVersion) Family() Family    { return b.family }
func (b *BrowserVersion) Major() int        { return b.major }
func (b *BrowserVersion) UserAgent() string { return b.userAgent }

// HasFeature reports whether the feature is enabled for this version.
func (b *BrowserVersion) HasFeature(f Feature) bool {
	if b == nil {
		return false
	}
	_, ok := b.features[f]
	return ok
}

// Features returns the enabled features, sorted.
func (b *BrowserVersion) Features() []Feature {
	out := make([]Feature, 0, len(b.features))
	for f := range b.features {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (b *BrowserVersion) IsChrome() bool { return b.family == FamilyChrome }
func (b *BrowserVersion) IsEdge() bool   { return b.family == FamilyEdge }
func (b *BrowserVersion) IsFirefox() bool {
	return b.family == FamilyFirefox || b.family == FamilyFirefoxESR
}

func (b *BrowserVersion) String() string {
	return fmt.Sprintf("%s %d (%s)", b.family, b.major, b.nickname)
}

// -- Predefined versions --

var chromiumFeatures = []Feature{
	JSErrorStackTraceLimit,
	JSErrorCaptureStackTrace,
	JSIntlV8BreakIterator,
	JSPresentationRequest,
	JSURLSearchParamsSize,
	JSWebGLContextEventStatusMessage,
}

var firefoxFeatures = []Feature{
	JSWindowInstallTriggerNull,
	JSURLSearchParamsSize,
	JSWebGLContextEventStatusMessage,
}

var (
	Chrome = newVersion("chrome", FamilyChrome, 131,
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		chromiumFeatures)
	Edge = newVersion("edge", FamilyEdge, 131,
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
		chromiumFeatures)
	Firefox = newVersion("firefox", FamilyFirefox, 133,
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
		firefoxFeatures)
	// FirefoxESR predates URLSearchParams.size.
	FirefoxESR = newVersion("firefox-esr", FamilyFirefoxESR, 115,
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:115.0) Gecko/20100101 Firefox/115.0",
		[]Feature{JSWindowInstallTriggerNull, JSWebGLContextEventStatusMessage})

	// Best is the version used when nothing else is configured.
	Best = Chrome
)

var known = []*BrowserVersion{Chrome, Edge, Firefox, FirefoxESR}

func newVersion(nickname string, family Family, major int, ua string, flags []Feature) *BrowserVersion {
	set := make(map[Feature]struct{}, len(flags))
	for _, f := range flags {
		set[f] = struct{}{}
	}
	return &BrowserVersion{nickname: nickname, family: family, major: major, userAgent: ua, features: set}
}

// Lookup resolves a configuration name ("chrome", "edge", "firefox", "firefox-esr") to a
// predefined version. Matching is case-insensitive and accepts "ff" and "ff-esr".
func Lookup(name string) (*BrowserVersion, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "best":
		return Best, nil
	case "ff":
		n = "firefox"
	case "ff-esr", "firefoxesr", "firefox_esr":
		n = "firefox-esr"
	}
	for _, v := range known {
		if v.nickname == n {
			return v, nil
		}
	}
	return nil, fmt.Errorf("unknown browser version %q", name)
}

// All returns the predefined versions.
func All() []*BrowserVersion {
	out := make([]*BrowserVersion, len(known))
	copy(out, known)
	return out
}

// -- Builder --

// Builder derives a new BrowserVersion from an existing one.
type Builder struct {
	v     BrowserVersion
	named bool
}

// NewBuilder starts from a copy of base.
func NewBuilder(base *BrowserVersion) *Builder {
	b := &Builder{v: *base}
	b.v.features = make(map[Feature]struct{}, len(base.features))
	for f := range base.features {
		b.v.features[f] = struct{}{}
	}
	return b
}

// Nickname sets the identity of the derived version. Derived versions must not share a
// nickname with a different feature set, since derived data is cached by nickname.
func (b *Builder) Nickname(n string) *Builder {
	b.v.nickname = n
	b.named = true
	return b
}

func (b *Builder) UserAgent(ua string) *Builder {
	b.v.userAgent = ua
	return b
}

func (b *Builder) Enable(fs ...Feature) *Builder {
	for _, f := range fs {
		b.v.features[f] = struct{}{}
	}
	return b
}

func (b *Builder) Disable(fs ...Feature) *Builder {
	for _, f := range fs {
		delete(b.v.features, f)
	}
	return b
}

// Build returns the derived version. If no nickname was set, one is generated from the
// base nickname and the enabled features so caches keyed on it stay correct.
func (b *Builder) Build() *BrowserVersion {
	v := b.v
	v.features = make(map[Feature]struct{}, len(b.v.features))
	for f := range b.v.features {
		v.features[f] = struct{}{}
	}
	if !b.named {
		flags := v.Features()
		names := make([]string, len(flags))
		for i, f := range flags {
			names[i] = string(f)
		}
		v.nickname = b.v.nickname + "[" + strings.Join(names, ",") + "]"
	}
	return &v
}
