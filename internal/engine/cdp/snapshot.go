// File: internal/engine/cdp/snapshot.go
package cdp

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
)

// pageSnapshot is the model-facing view of the current page.
type pageSnapshot struct {
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Elements []snapshotElement `json:"elements"`
}

// snapshotElement is one interactive element candidate carrying a selector
// the model can hand back for execution.
type snapshotElement struct {
	Tag         string `json:"tag"`
	Text        string `json:"text,omitempty"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Aria        string `json:"aria,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Href        string `json:"href,omitempty"`
	Selector    string `json:"selector"`
}

// snapshotScript collects the page title, URL and interactive element
// candidates. Selector generation prefers ids and stable data attributes,
// then falls back to a class plus nth-of-type path. Elements far outside
// the viewport or without meaningful extent are skipped.
const snapshotScript = `(() => {
	const escapeIdent = (s) => String(s).replace(/[^a-zA-Z0-9_-]/g, (ch) => '\\' + ch);
	const quote = (s) => String(s).replace(/\\/g, '\\\\').replace(/"/g, '\\"');
	const selectorFor = (el) => {
		if (!el || !el.tagName) return '';
		if (el.id) return '#' + escapeIdent(el.id);
		const tag = el.tagName.toLowerCase();
		const stable = ['data-testid', 'data-test', 'data-qa', 'name', 'aria-label', 'placeholder', 'role', 'type'];
		for (const attr of stable) {
			const v = el.getAttribute && el.getAttribute(attr);
			if (v && v.length <= 80) return tag + '[' + attr + '="' + quote(v) + '"]';
		}
		let sel = tag;
		if (typeof el.className === 'string') {
			const classes = el.className.trim().split(/\s+/).filter(Boolean).slice(0, 2);
			if (classes.length) sel += classes.map((c) => '.' + escapeIdent(c)).join('');
		}
		const parent = el.parentElement;
		if (parent) {
			const siblings = Array.from(parent.children).filter((ch) => ch.tagName === el.tagName);
			if (siblings.length > 1) sel += ':nth-of-type(' + (siblings.indexOf(el) + 1) + ')';
		}
		return sel;
	};
	const limit = 120;
	const candidates = Array.from(document.querySelectorAll(
		'a[href], button, input, textarea, select, [role="button"], [contenteditable="true"], [tabindex]'));
	const elements = [];
	for (const el of candidates) {
		let rect;
		try { rect = el.getBoundingClientRect(); } catch (e) { continue; }
		if (!rect || rect.width < 2 || rect.height < 2) continue;
		if (rect.bottom < -200 || rect.top > window.innerHeight + 1200) continue;
		const text = ((el.innerText || el.value || '') + '').replace(/\s+/g, ' ').trim().slice(0, 80);
		elements.push({
			tag: el.tagName.toLowerCase(),
			text: text,
			name: (el.getAttribute('name') || '').slice(0, 80),
			type: (el.getAttribute('type') || '').slice(0, 30),
			aria: (el.getAttribute('aria-label') || '').slice(0, 80),
			placeholder: (el.getAttribute('placeholder') || '').slice(0, 80),
			href: (el.getAttribute('href') || '').slice(0, 120),
			selector: selectorFor(el),
		});
		if (elements.length >= limit) break;
	}
	return { title: document.title || '', url: location.href, elements: elements };
})()`

// evalOptions configures snapshot evaluations: values come back by value,
// promises are awaited and page-side exceptions stay silent.
func evalOptions(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
}

// snapshot evaluates the collection script in the page.
func (s *Session) snapshot(ctx context.Context) (*pageSnapshot, error) {
	var snap pageSnapshot
	if err := s.runActions(ctx, chromedp.Evaluate(snapshotScript, &snap, evalOptions)); err != nil {
		return nil, fmt.Errorf("collecting page snapshot: %w", err)
	}
	s.emit(schemas.LogCategoryAction, fmt.Sprintf("snapshot of %s holds %d elements", snap.URL, len(snap.Elements)), levelDiagnostic, nil)
	return &snap, nil
}

// pageText returns the page's rendered markup distilled to visible text,
// capped at the configured snapshot budget.
func (s *Session) pageText(ctx context.Context) (string, error) {
	var markup string
	if err := s.runActions(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page markup: %w", err)
	}
	return distillText(markup, s.engine.cfg.SnapshotMaxChars), nil
}

// distillText walks an HTML document and keeps only the text a reader would
// see: head, script, style and template subtrees are dropped and whitespace
// runs collapse to single spaces. A non-positive cap leaves the length
// unbounded.
func distillText(markup string, maxChars int) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "head", "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	text := strings.Join(strings.Fields(b.String()), " ")
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
	}
	return text
}
