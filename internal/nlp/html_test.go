package nlp_test

import (
	"context"
	"testing"
	"time"

	"github.com/debias/spider/internal/nlp"
	"github.com/debias/spider/internal/urlutil"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head>
	<title>Budget Vote Passes Narrowly</title>
	<meta name="description" content="Parliament approved the budget by three votes.">
	<meta name="keywords" content="budget, parliament, finance minister">
	<meta property="article:published_time" content="2026-02-10T09:30:00Z">
	<meta property="article:section" content="Politics">
	<meta property="article:tag" content="Budget 2026">
	<meta property="article:tag" content="Parliament">
</head>
<body>
	<article><p>The vote concluded after a long night of debate.</p></article>
</body>
</html>`

func TestProcessExtractsMetadata(t *testing.T) {
	p := nlp.NewHTMLProcessor()
	scraped := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)

	result, err := p.Process(context.Background(), articleHTML, "ex", "https://example.com/vote", scraped)
	if err != nil {
		t.Fatalf("Process() = %v", err)
	}

	if result.Title != "Budget Vote Passes Narrowly" {
		t.Errorf("title = %q", result.Title)
	}
	if result.Snippet != "Parliament approved the budget by three votes." {
		t.Errorf("snippet = %q", result.Snippet)
	}
	if !result.Usable() {
		t.Fatal("result not usable, want parsed article datetime")
	}
	want := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	if !result.ArticleDatetime.Equal(want) {
		t.Errorf("article datetime = %v, want %v", result.ArticleDatetime, want)
	}
	if result.URLHash != urlutil.Hash("https://example.com/vote") {
		t.Errorf("url hash = %q", result.URLHash)
	}

	if len(result.Keywords) != 3 {
		t.Fatalf("keywords = %v, want 3 entries", result.Keywords)
	}
	if result.Keywords[0].Text != "budget" || result.Keywords[0].Type != "keyword" {
		t.Errorf("first keyword = %+v", result.Keywords[0])
	}

	if len(result.Topics) != 3 {
		t.Fatalf("topics = %v, want 3 entries", result.Topics)
	}
	if result.Topics[0].Text != "Politics" || result.Topics[0].Type != "section" {
		t.Errorf("first topic = %+v", result.Topics[0])
	}
	if result.Topics[1].Type != "tag" || result.Topics[2].Type != "tag" {
		t.Errorf("tag topics = %+v", result.Topics[1:])
	}
}

func TestProcessFallbacks(t *testing.T) {
	const html = `<html>
	<head><meta property="og:title" content="Fallback Title"></head>
	<body>
		<p>First paragraph doubles as the snippet.</p>
		<time datetime="2026-01-05">Jan 5</time>
	</body>
	</html>`

	p := nlp.NewHTMLProcessor()
	result, err := p.Process(context.Background(), html, "ex", "https://example.com/x", time.Now())
	if err != nil {
		t.Fatalf("Process() = %v", err)
	}

	if result.Title != "Fallback Title" {
		t.Errorf("title = %q, want og:title fallback", result.Title)
	}
	if result.Snippet != "First paragraph doubles as the snippet." {
		t.Errorf("snippet = %q, want first paragraph", result.Snippet)
	}
	want := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if !result.ArticleDatetime.Equal(want) {
		t.Errorf("article datetime = %v, want %v", result.ArticleDatetime, want)
	}
}

func TestProcessDocumentWithoutDate(t *testing.T) {
	p := nlp.NewHTMLProcessor()
	result, err := p.Process(context.Background(), "<html><body><p>undated</p></body></html>", "ex", "https://example.com/x", time.Now())
	if err != nil {
		t.Fatalf("Process() = %v", err)
	}
	if result.Usable() {
		t.Error("result usable without article datetime")
	}
}

func TestResultUsable(t *testing.T) {
	var nilResult *nlp.Result
	if nilResult.Usable() {
		t.Error("nil result reported usable")
	}
	if (&nlp.Result{}).Usable() {
		t.Error("zero result reported usable")
	}
	r := &nlp.Result{ArticleDatetime: time.Now()}
	if !r.Usable() {
		t.Error("dated result reported unusable")
	}
}
