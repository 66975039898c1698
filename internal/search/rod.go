// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// RodLauncher launches a local Chrome through go-rod.
type RodLauncher struct {
	Headless    bool
	Bin         string
	IdleTimeout time.Duration
	Logger      *zap.Logger
}

// Launch starts Chrome and connects to it. On a failed connect the process
// is killed before returning.
func (l *RodLauncher) Launch(ctx context.Context) (Browser, error) {
	lc := launcher.New().Context(ctx).Headless(l.Headless)
	if l.Bin != "" {
		lc = lc.Bin(l.Bin)
	}
	controlURL, err := lc.Launch()
	if err != nil {
		return nil, errors.Wrap(err, "launching chrome")
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		lc.Kill()
		lc.Cleanup()
		return nil, errors.Wrap(err, "connecting to chrome")
	}
	return &rodBrowser{browser: browser, launcher: lc, idle: l.IdleTimeout, log: orNop(l.Logger)}, nil
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	idle     time.Duration
	log      *zap.Logger
}

// Anchors opens pageURL in a new tab, waits for the network to go idle, and
// returns every anchor's href and text.
func (b *rodBrowser) Anchors(ctx context.Context, pageURL string) ([]Anchor, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, errors.Wrap(err, "opening tab")
	}
	defer page.Close()

	wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	if err := page.Navigate(pageURL); err != nil {
		return nil, errors.Wrapf(err, "navigating to %s", pageURL)
	}
	wait()
	settle(b.log, pageURL, b.idle, page.WaitIdle)

	elements, err := page.Elements("a")
	if err != nil {
		return nil, errors.Wrap(err, "finding anchors")
	}

	anchors := make([]Anchor, 0, len(elements))
	for _, el := range elements {
		href, err := el.Attribute("href")
		if err != nil || href == nil {
			continue
		}
		text, err := el.Text()
		if err != nil {
			continue
		}
		anchors = append(anchors, Anchor{Href: *href, Text: text})
	}
	return anchors, nil
}

// settle waits up to idle for the page's pending requests. A page that never
// goes idle is logged and read as it stands.
func settle(log *zap.Logger, pageURL string, idle time.Duration, wait func(time.Duration) error) {
	if idle <= 0 {
		return
	}
	if err := wait(idle); err != nil {
		log.Debug("page did not go idle",
			zap.String("url", pageURL), zap.Duration("idle_timeout", idle), zap.Error(err))
	}
}

// Close shuts the browser down and removes the launcher's user data dir.
func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}
