// Package extract implements the extraction adapter: rendering a map search
// for raw business candidates and crawling individual business websites for
// contact enrichment.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

const mapsSearchBase = "https://www.google.com/maps/search/"

// feedScrollScript scrolls the results feed until its height stops growing,
// so lazily loaded result cards land in the DOM before the snapshot.
const feedScrollScript = `
new Promise((resolve) => {
	const wrapper = document.querySelector('div[role="feed"]');
	if (!wrapper) { resolve(false); return; }
	let total = 0;
	const distance = 1000;
	const timer = setInterval(() => {
		const before = wrapper.scrollHeight;
		wrapper.scrollBy(0, distance);
		total += distance;
		if (total >= before) {
			clearInterval(timer);
			resolve(true);
		}
	}, 200);
})`

// MapsConfig controls the headless browser session.
type MapsConfig struct {
	UserAgent   string
	NavTimeout  time.Duration
	ScrollDelay time.Duration
	MaxScrolls  int
}

// MapsExtractor renders map search pages using headless Chrome via chromedp
// and parses the result feed into business candidates. One browser process is
// shared across jobs; each search runs in its own tab.
type MapsExtractor struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	cfg             MapsConfig
	logger          *zap.Logger
}

// NewMapsExtractor launches the shared browser.
func NewMapsExtractor(cfg MapsConfig, logger *zap.Logger) (*MapsExtractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 90 * time.Second
	}
	if cfg.ScrollDelay <= 0 {
		cfg.ScrollDelay = 5 * time.Second
	}
	if cfg.MaxScrolls <= 0 {
		cfg.MaxScrolls = 10
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &MapsExtractor{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		cfg:             cfg,
		logger:          logger,
	}, nil
}

// Close tears down the chromedp allocator and browser contexts.
func (m *MapsExtractor) Close(context.Context) error {
	if m == nil {
		return nil
	}
	m.browserCancel()
	m.allocatorCancel()
	return nil
}

// SearchBusinesses renders the search results for (city, category), scrolls
// the feed to exhaustion, and parses the candidates. Navigation and render
// failures are not hard errors: they degrade to an empty result, mirroring a
// "no results found" outcome.
func (m *MapsExtractor) SearchBusinesses(ctx context.Context, query leads.SearchQuery) (leads.SearchResult, error) {
	searchURL := m.searchURL(query)

	tabCtx, cancelTab := chromedp.NewContext(m.browserCtx)
	defer cancelTab()
	taskCtx, cancelTask := context.WithTimeout(tabCtx, m.cfg.NavTimeout)
	defer cancelTask()

	stop := forwardCancel(ctx, cancelTask)
	defer stop()

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(searchURL),
		chromedp.WaitReady("body"),
		m.scrollFeed(),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		m.logger.Warn("map search render failed, treating as empty result",
			zap.String("url", searchURL),
			zap.Error(err),
		)
		return leads.SearchResult{}, nil
	}

	candidates, err := ParseBusinesses([]byte(html), query)
	if err != nil {
		return leads.SearchResult{}, fmt.Errorf("parse search results: %w", err)
	}
	return leads.SearchResult{Candidates: candidates, RawHTML: []byte(html)}, nil
}

func (m *MapsExtractor) searchURL(query leads.SearchQuery) string {
	terms := query.BusinessCategory + " " + query.City
	return mapsSearchBase + strings.Join(strings.Fields(terms), "+")
}

// scrollFeed repeats the feed scroll until the page stops growing or the
// scroll budget runs out, pausing between rounds for lazy content.
func (m *MapsExtractor) scrollFeed() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for i := 0; i < m.cfg.MaxScrolls; i++ {
			var done bool
			err := chromedp.Evaluate(feedScrollScript, &done, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}).Do(ctx)
			if err != nil {
				return err
			}
			if !done {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.cfg.ScrollDelay):
			}
		}
		return nil
	})
}

func forwardCancel(ctx context.Context, cancel context.CancelFunc) func() {
	stopCh := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stopCh:
		}
	}()
	return func() { close(stopCh) }
}
