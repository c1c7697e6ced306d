// internal/browser/page/page.go
package page

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/antchfx/htmlquery"
	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// HtmlPage is one loaded document. Its DOM may only be touched while holding the page's
// Monitor, or before the page has been attached to a window.
type HtmlPage struct {
	id      string
	url     *url.URL
	root    *html.Node
	window  atomic.Pointer[WebWindow]
	monitor Monitor
}

// Parse builds a page from HTML source. The page is not attached to any window yet.
func Parse(r io.Reader, u *url.URL) (*HtmlPage, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return New(root, u), nil
}

// New wraps an already parsed document.
func New(root *html.Node, u *url.URL) *HtmlPage {
	if u == nil {
		u = &url.URL{Scheme: "about", Opaque: "blank"}
	}
	return &HtmlPage{
		id:   uuid.NewString(),
		url:  u,
		root: root,
	}
}

func (p *HtmlPage) ID() string { return p.id }

func (p *HtmlPage) URL() *url.URL { return p.url }

func (p *HtmlPage) Root() *html.Node { return p.root }

// EnclosingWindow is the window the page was loaded into; nil before attachment.
func (p *HtmlPage) EnclosingWindow() *WebWindow { return p.window.Load() }

// Monitor is the page's execution lock.
func (p *HtmlPage) Monitor() *Monitor { return &p.monitor }

// IsEnclosed reports whether the page is still the active document of its window.
func (p *HtmlPage) IsEnclosed() bool {
	w := p.window.Load()
	return w != nil && w.EnclosedPage() == p
}

// ResolveURL resolves ref against the page URL.
func (p *HtmlPage) ResolveURL(ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", ref, err)
	}
	return p.url.ResolveReference(u), nil
}

// Body returns the body element, or nil for framesets and fragments.
func (p *HtmlPage) Body() *html.Node {
	return htmlquery.FindOne(p.root, "//body")
}

// Scripts returns the inline and external script elements in document order.
func (p *HtmlPage) Scripts() []*html.Node {
	return htmlquery.Find(p.root, "//script")
}

// Title returns the text of the document title.
func (p *HtmlPage) Title() string {
	if t := htmlquery.FindOne(p.root, "//head/title"); t != nil {
		return strings.TrimSpace(htmlquery.InnerText(t))
	}
	return ""
}

func (p *HtmlPage) String() string {
	return fmt.Sprintf("HtmlPage(%s)", p.url)
}
