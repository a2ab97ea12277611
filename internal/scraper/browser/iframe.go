// Package browser holds go-rod helpers shared by the browser fetcher and the
// fixture capture tool.
package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
)

const (
	domStableWindow = 300 * time.Millisecond
	domStableDiff   = 0.01
	maxFrameDepth   = 4
)

// WaitForIFrames waits until the page's DOM settles, then does the same for
// every visible frame, up to a few levels deep. Frames that vanish or belong
// to another origin while waiting are skipped.
func WaitForIFrames(page *rod.Page) error {
	return waitFrames(page, 0)
}

func waitFrames(page *rod.Page, depth int) error {
	if err := page.WaitDOMStable(domStableWindow, domStableDiff); err != nil {
		return fmt.Errorf("wait DOM stable (frame depth %d): %w", depth, err)
	}
	if depth >= maxFrameDepth {
		return nil
	}

	elements, err := page.Elements("iframe, frame")
	if err != nil {
		return nil
	}
	for _, el := range elements {
		if visible, _ := el.Visible(); !visible {
			continue
		}
		frame, err := el.Frame()
		if err != nil {
			continue
		}
		if err := waitFrames(frame, depth+1); err != nil {
			var evalErr *rod.EvalError
			if errors.As(err, &evalErr) {
				continue
			}
			return err
		}
	}
	return nil
}

// GetIFrameBySelector returns the loaded document of the frame matching
// selector. It waits as long as page's context allows for the element.
func GetIFrameBySelector(page *rod.Page, selector string) (*rod.Page, error) {
	el, err := page.Element(selector)
	if err != nil {
		return nil, fmt.Errorf("frame %q not found: %w", selector, err)
	}
	frame, err := el.Frame()
	if err != nil {
		return nil, fmt.Errorf("frame %q has no document: %w", selector, err)
	}
	if err := frame.WaitLoad(); err != nil {
		return nil, fmt.Errorf("frame %q did not load: %w", selector, err)
	}
	return frame, nil
}
