package target_test

import (
	"testing"

	"github.com/debias/spider/internal/logger"
	"github.com/debias/spider/internal/target"
)

func validConfig() target.Config {
	return target.Config{
		ID:           "ex",
		Name:         "Example News",
		RootURL:      "https://example.com",
		TextSelector: "article p",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*target.Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*target.Config) {}},
		{name: "missing id", mutate: func(c *target.Config) { c.ID = "" }, wantErr: true},
		{name: "missing name", mutate: func(c *target.Config) { c.Name = "" }, wantErr: true},
		{name: "missing root url", mutate: func(c *target.Config) { c.RootURL = "" }, wantErr: true},
		{name: "root url without domain", mutate: func(c *target.Config) { c.RootURL = "/relative" }, wantErr: true},
		{name: "unknown render mode", mutate: func(c *target.Config) { c.Render = "sometimes" }, wantErr: true},
		{name: "explicit never", mutate: func(c *target.Config) { c.Render = target.RenderNever }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestConfigValidateDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if cfg.Render != target.RenderAuto {
		t.Errorf("default render = %q, want %q", cfg.Render, target.RenderAuto)
	}
	if cfg.HrefSelector != target.DefaultHrefSelector {
		t.Errorf("default href selector = %q, want %q", cfg.HrefSelector, target.DefaultHrefSelector)
	}
}

func TestExtractText(t *testing.T) {
	const html = `<html><body>
		<article><p>  First paragraph. </p><p>Second.</p></article>
		<footer><p>footer text outside the article</p></footer>
		<div>outside</div>
	</body></html>`

	parser := newParser(t, validConfig())

	got := parser.ExtractText(html)
	want := "First paragraph. Second."
	if got != want {
		t.Errorf("ExtractText = %q, want %q", got, want)
	}
}

func TestExtractTextEmptySelector(t *testing.T) {
	cfg := validConfig()
	cfg.TextSelector = ""
	parser := newParser(t, cfg)

	if got := parser.ExtractText("<p>anything</p>"); got != "" {
		t.Errorf("ExtractText with empty selector = %q, want empty", got)
	}
}

func TestExtractHrefs(t *testing.T) {
	const html = `<html><body>
		<a href="/news/one">one</a>
		<a href="https://example.com/news/two">two</a>
		<a href="https://other.com/elsewhere">offsite</a>
		<a>no href</a>
		<a href="">empty</a>
	</body></html>`

	t.Run("open frontier", func(t *testing.T) {
		parser := newParser(t, validConfig())

		got := parser.ExtractHrefs(html)
		want := []string{
			"https://example.com/news/one",
			"https://example.com/news/two",
			"https://other.com/elsewhere",
		}
		assertStrings(t, got, want)
	})

	t.Run("domain only", func(t *testing.T) {
		cfg := validConfig()
		cfg.DomainOnly = true
		parser := newParser(t, cfg)

		got := parser.ExtractHrefs(html)
		want := []string{"https://example.com/news/two"}
		assertStrings(t, got, want)
	})
}

func TestRegistryLookup(t *testing.T) {
	other := validConfig()
	other.ID = "ot"
	other.RootURL = "https://other.com"

	registry, err := target.NewRegistry([]target.Config{validConfig(), other}, logger.NewNoop())
	if err != nil {
		t.Fatalf("NewRegistry() = %v", err)
	}

	if p := registry.Lookup("example.com"); p == nil || p.Config().ID != "ex" {
		t.Errorf("Lookup(example.com) = %v, want parser ex", p)
	}
	if p := registry.Lookup("other.com"); p == nil || p.Config().ID != "ot" {
		t.Errorf("Lookup(other.com) = %v, want parser ot", p)
	}
	if p := registry.Lookup("unknown.com"); p != nil {
		t.Errorf("Lookup(unknown.com) = %v, want nil", p)
	}
	if got := len(registry.Domains()); got != 2 {
		t.Errorf("len(Domains()) = %d, want 2", got)
	}
}

func TestRegistryRejectsInvalidConfig(t *testing.T) {
	bad := validConfig()
	bad.Render = "bogus"

	if _, err := target.NewRegistry([]target.Config{bad}, logger.NewNoop()); err == nil {
		t.Error("NewRegistry with invalid config = nil, want error")
	}
}

func newParser(t *testing.T, cfg target.Config) *target.Parser {
	t.Helper()
	parser, err := target.NewParser(cfg, logger.NewNoop())
	if err != nil {
		t.Fatalf("NewParser() = %v", err)
	}
	return parser
}

func assertStrings(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
