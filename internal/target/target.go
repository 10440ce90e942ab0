// Package target holds per-site crawl configuration and the HTML parsers
// built from it.
package target

import (
	"errors"
	"fmt"

	"github.com/debias/spider/internal/urlutil"
)

// RenderMode decides whether a target's pages go through the headless
// renderer.
type RenderMode string

const (
	// RenderAuto renders only when the sampled body text is too short.
	RenderAuto RenderMode = "auto"
	// RenderAlways renders every page.
	RenderAlways RenderMode = "always"
	// RenderNever stores the plain HTTP response.
	RenderNever RenderMode = "never"
)

// DefaultHrefSelector matches every anchor carrying an href attribute.
const DefaultHrefSelector = "a[href]"

var (
	errMissingID   = errors.New("target missing id")
	errMissingName = errors.New("target missing name")
	errMissingRoot = errors.New("target missing root_url")
	errRootDomain  = errors.New("target root_url has no domain")
)

// Config is the immutable per-site configuration.
type Config struct {
	// ID is a short opaque tag used in object-store keys.
	ID string `mapstructure:"id"`
	// Name is the human-readable site name.
	Name string `mapstructure:"name"`
	// RootURL is the seed URL; its domain keys the parser registry.
	RootURL string `mapstructure:"root_url"`
	// DomainOnly restricts the link frontier to the root domain.
	DomainOnly bool `mapstructure:"domain_only"`
	// Render is one of auto, always, never.
	Render RenderMode `mapstructure:"render"`
	// TextSelector samples body text for the auto-render decision.
	// Empty means no sampling.
	TextSelector string `mapstructure:"text_selector"`
	// HrefSelector selects outgoing links. Defaults to "a[href]".
	HrefSelector string `mapstructure:"href_selector"`
	// Country and Alignment annotate the analytics targets table.
	Country   string `mapstructure:"country"`
	Alignment string `mapstructure:"alignment"`
}

// Validate checks required fields and rejects unknown render modes.
// It fills in the default href selector and render mode.
func (c *Config) Validate() error {
	if c.ID == "" {
		return errMissingID
	}
	if c.Name == "" {
		return errMissingName
	}
	if c.RootURL == "" {
		return errMissingRoot
	}
	if urlutil.Domain(c.RootURL) == "" {
		return fmt.Errorf("target %s: %w", c.ID, errRootDomain)
	}

	if c.Render == "" {
		c.Render = RenderAuto
	}
	switch c.Render {
	case RenderAuto, RenderAlways, RenderNever:
	default:
		return fmt.Errorf("target %s: unknown render mode %q", c.ID, c.Render)
	}

	if c.HrefSelector == "" {
		c.HrefSelector = DefaultHrefSelector
	}

	return nil
}
