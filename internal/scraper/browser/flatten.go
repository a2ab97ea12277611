package browser

import (
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
)

// flattenJS rewrites the live DOM so that a single outerHTML read returns
// everything the user sees: frame and iframe documents are replaced by a
// <div data-captured-frame> holding their body, open shadow roots are copied
// into a <div data-shadow-root> appended to their host.
//
// Frames are inlined bottom-up; once a parent is serialized the child
// contentDocument references are gone.
const flattenJS = `() => {
	const stats = {shadows: 0, frames: 0};

	const walk = (root, depth) => {
		if (depth > 64) return;
		for (const el of Array.from(root.children || [])) visit(el, depth + 1);
	};

	const visit = (el, depth) => {
		const tag = el.tagName;
		if (tag === 'IFRAME' || tag === 'FRAME') {
			inlineFrame(el, depth);
			return;
		}
		walk(el, depth);
		if (el.shadowRoot) {
			walk(el.shadowRoot, depth);
			const box = el.ownerDocument.createElement('div');
			box.setAttribute('data-shadow-root', el.tagName.toLowerCase());
			box.innerHTML = el.shadowRoot.innerHTML;
			el.appendChild(box);
			stats.shadows++;
		}
	};

	const inlineFrame = (frame, depth) => {
		const box = frame.ownerDocument.createElement('div');
		box.setAttribute('data-captured-frame', frame.name || frame.id || '');
		box.setAttribute('data-frame-src', frame.src || '');
		try {
			const doc = frame.contentDocument;
			if (!doc || !doc.body) throw new Error('no document');
			walk(doc.body, depth);
			box.innerHTML = doc.body.innerHTML;
			stats.frames++;
		} catch (e) {
			box.setAttribute('data-frame-error', e.message);
		}
		frame.replaceWith(box);
	};

	walk(document.documentElement, 0);
	return JSON.stringify({html: document.documentElement.outerHTML, shadows: stats.shadows, frames: stats.frames});
}`

// Flattened is the result of Flatten.
type Flattened struct {
	HTML    string `json:"html"`
	Shadows int    `json:"shadows"`
	Frames  int    `json:"frames"`
}

// Flatten inlines frames and shadow roots into one parseable HTML string.
// It mutates the live DOM, so call it only right before leaving the page.
// When the script cannot run, the plain page HTML is returned.
func Flatten(page *rod.Page) (*Flattened, error) {
	res, evalErr := page.Eval(flattenJS)
	if evalErr == nil {
		var out Flattened
		if err := json.Unmarshal([]byte(res.Value.Str()), &out); err == nil {
			return &out, nil
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("flatten failed and fallback HTML failed: %w", err)
	}
	return &Flattened{HTML: html}, nil
}
