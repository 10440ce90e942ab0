package target

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/debias/spider/internal/logger"
	"github.com/debias/spider/internal/urlutil"
)

// Parser applies one target's CSS selectors to fetched HTML.
type Parser struct {
	cfg    Config
	domain string
	log    logger.Interface
}

// NewParser builds a parser for a validated target config.
func NewParser(cfg Config, log logger.Interface) (*Parser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	domain := urlutil.Domain(cfg.RootURL)

	return &Parser{
		cfg:    cfg,
		domain: domain,
		log:    log.With("target_id", cfg.ID),
	}, nil
}

// Config returns the target configuration.
func (p *Parser) Config() Config { return p.cfg }

// Domain returns the registered domain of the target's root URL.
func (p *Parser) Domain() string { return p.domain }

// RenderMode returns the target's render policy.
func (p *Parser) RenderMode() RenderMode { return p.cfg.Render }

// ExtractText applies the text selector and joins the stripped text of
// matched elements with single spaces. An empty selector or no matches
// yields an empty string. This sample only feeds the auto-render decision.
func (p *Parser) ExtractText(html string) string {
	if p.cfg.TextSelector == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		p.log.Warn("failed to parse html for text sampling", "error", err)
		return ""
	}

	var parts []string
	doc.Find(p.cfg.TextSelector).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	return strings.Join(parts, " ")
}

// ExtractHrefs applies the href selector and returns the absolute form of
// every retained href. Missing or empty href attributes are counted and
// logged, never fatal. With DomainOnly set, links pointing off the root
// domain are dropped.
func (p *Parser) ExtractHrefs(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		p.log.Warn("failed to parse html for href extraction", "error", err)
		return nil
	}

	var hrefs []string
	skipped := 0

	doc.Find(p.cfg.HrefSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			skipped++
			return
		}

		if p.cfg.DomainOnly && urlutil.Domain(href) != p.domain {
			return
		}

		hrefs = append(hrefs, urlutil.Absolute(p.domain, href))
	})

	if skipped > 0 {
		p.log.Warn("skipped elements without href attribute", "count", skipped)
	}

	return hrefs
}

// Registry maps registered domains to their parsers. Read-only after startup.
type Registry struct {
	byDomain map[string]*Parser
}

// NewRegistry builds parsers for all configured targets.
func NewRegistry(configs []Config, log logger.Interface) (*Registry, error) {
	byDomain := make(map[string]*Parser, len(configs))

	for i := range configs {
		parser, err := NewParser(configs[i], log)
		if err != nil {
			return nil, fmt.Errorf("build parser: %w", err)
		}
		byDomain[parser.Domain()] = parser
	}

	return &Registry{byDomain: byDomain}, nil
}

// Lookup returns the parser registered for a domain, or nil. A nil result
// means the URL belongs to no configured target and must not be stored.
func (r *Registry) Lookup(domain string) *Parser {
	return r.byDomain[domain]
}

// Domains lists all registered domains.
func (r *Registry) Domains() []string {
	domains := make([]string, 0, len(r.byDomain))
	for d := range r.byDomain {
		domains = append(domains, d)
	}
	return domains
}

// Configs returns the configs of all registered targets.
func (r *Registry) Configs() []Config {
	configs := make([]Config, 0, len(r.byDomain))
	for _, p := range r.byDomain {
		configs = append(configs, p.cfg)
	}
	return configs
}
