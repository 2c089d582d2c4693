package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,4}`)

// Pages probed beyond the home page. Only the first candidate path per page
// kind is tried.
const (
	contactPath = "/contact-us"
	aboutPath   = "/about-us"
)

// WebsiteConfig controls the per-site enrichment crawl.
type WebsiteConfig struct {
	UserAgent    string
	Timeout      time.Duration
	ProbeTimeout time.Duration
	DomainQPS    float64
}

// WebsiteEnricher visits a business website (home, contact and about pages)
// and extracts contact details. All failures degrade to whatever was found so
// far; an unreachable site yields the zero EnrichmentRecord.
type WebsiteEnricher struct {
	cfg      WebsiteConfig
	probe    *http.Client
	limiters sync.Map
	logger   *zap.Logger
}

// NewWebsiteEnricher constructs an enricher.
func NewWebsiteEnricher(cfg WebsiteConfig, logger *zap.Logger) *WebsiteEnricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	return &WebsiteEnricher{
		cfg:    cfg,
		probe:  &http.Client{Timeout: cfg.ProbeTimeout},
		logger: logger,
	}
}

// EnrichWebsite crawls the site and returns whatever contact details were
// found. It returns an error only for malformed input; network and parse
// failures degrade to a partial or empty record.
func (e *WebsiteEnricher) EnrichWebsite(ctx context.Context, websiteURL string) (leads.EnrichmentRecord, error) {
	var rec leads.EnrichmentRecord
	base, err := url.Parse(websiteURL)
	if err != nil || base.Host == "" {
		return rec, fmt.Errorf("invalid website url %q", websiteURL)
	}

	if err := e.waitDomain(ctx, base.Host); err != nil {
		return rec, nil
	}
	if !e.available(ctx, websiteURL) {
		e.logger.Debug("website unavailable, skipping enrichment", zap.String("url", websiteURL))
		return rec, nil
	}

	collector := e.newCollector(&rec)
	e.visit(collector, websiteURL)

	for _, path := range []string{contactPath, aboutPath} {
		pageURL := strings.TrimRight(websiteURL, "/") + path
		if ctx.Err() != nil {
			break
		}
		if !e.available(ctx, pageURL) {
			continue
		}
		e.visit(collector, pageURL)
	}
	collector.Wait()
	return rec, nil
}

func (e *WebsiteEnricher) newCollector(rec *leads.EnrichmentRecord) *colly.Collector {
	c := colly.NewCollector()
	if e.cfg.UserAgent != "" {
		c.UserAgent = e.cfg.UserAgent
	}
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(e.cfg.Timeout)

	c.OnHTML("a[href^='mailto:']", func(el *colly.HTMLElement) {
		if rec.Email != "" {
			return
		}
		addr := strings.TrimPrefix(el.Attr("href"), "mailto:")
		if addr != "" {
			rec.Email = addr
		}
	})

	c.OnHTML("a[href]", func(el *colly.HTMLElement) {
		link := el.Attr("href")
		switch {
		case strings.Contains(link, "youtube.com") && rec.SocialLinks.YouTube == "":
			rec.SocialLinks.YouTube = link
		case strings.Contains(link, "instagram.com") && rec.SocialLinks.Instagram == "":
			rec.SocialLinks.Instagram = link
		case strings.Contains(link, "facebook.com") && rec.SocialLinks.Facebook == "":
			rec.SocialLinks.Facebook = link
		case strings.Contains(link, "linkedin.com") && rec.SocialLinks.LinkedIn == "":
			rec.SocialLinks.LinkedIn = link
		}
	})

	c.OnHTML("header", func(el *colly.HTMLElement) {
		if rec.LogoURL != "" {
			return
		}
		logo := el.DOM.Find(`img[src*="logo"], .logo img, [class*="logo"] img`).First()
		if src, ok := logo.Attr("src"); ok {
			rec.LogoURL = el.Request.AbsoluteURL(src)
		}
	})

	c.OnHTML(`div[class*="about"], section[class*="about"]`, func(el *colly.HTMLElement) {
		if rec.About != "" {
			return
		}
		rec.About = strings.TrimSpace(el.Text)
	})

	c.OnResponse(func(resp *colly.Response) {
		if rec.Email != "" {
			return
		}
		if match := emailPattern.Find(resp.Body); match != nil {
			rec.Email = string(match)
		}
	})

	return c
}

func (e *WebsiteEnricher) visit(c *colly.Collector, pageURL string) {
	if err := c.Visit(pageURL); err != nil {
		e.logger.Debug("enrichment page visit failed",
			zap.String("url", pageURL),
			zap.Error(err),
		)
	}
}

// available issues a cheap probe so the crawler never waits out the full
// request timeout against a dead site.
func (e *WebsiteEnricher) available(ctx context.Context, pageURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return false
	}
	if e.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", e.cfg.UserAgent)
	}
	resp, err := e.probe.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode < http.StatusBadRequest
}

func (e *WebsiteEnricher) waitDomain(ctx context.Context, host string) error {
	if e.cfg.DomainQPS <= 0 {
		return nil
	}
	limiterAny, _ := e.limiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(e.cfg.DomainQPS), 1))
	limiter, ok := limiterAny.(*rate.Limiter)
	if !ok {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("domain rate limit: %w", err)
	}
	return nil
}
