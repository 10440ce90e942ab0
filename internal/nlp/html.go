package nlp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/debias/spider/internal/urlutil"
)

const maxSnippetLen = 300

// datetimeLayouts are tried in order when parsing published-time metadata.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// HTMLProcessor extracts title, snippet, article datetime, keywords and
// topics from document metadata tags.
type HTMLProcessor struct{}

// NewHTMLProcessor creates the metadata-based processor.
func NewHTMLProcessor() *HTMLProcessor {
	return &HTMLProcessor{}
}

// Process parses the HTML and builds a result from its metadata. Documents
// without a parseable published time come back with a zero ArticleDatetime
// and are dropped by the caller.
func (p *HTMLProcessor) Process(ctx context.Context, html, targetID, url string, scraped time.Time) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	result := &Result{
		AbsoluteURL:     url,
		URLHash:         urlutil.Hash(url),
		TargetID:        targetID,
		ScrapeDatetime:  scraped,
		ArticleDatetime: extractPublishedTime(doc),
		Title:           extractTitle(doc),
		Snippet:         extractSnippet(doc),
		Keywords:        extractKeywords(doc),
		Topics:          extractTopics(doc),
	}

	return result, nil
}

// extractTitle prefers the <title> element, falling back to og:title.
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if ogTitle, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		return strings.TrimSpace(ogTitle)
	}
	return ""
}

// extractSnippet prefers meta descriptions, falling back to the first
// paragraph, truncated.
func extractSnippet(doc *goquery.Document) string {
	if desc, ok := doc.Find("meta[name='description']").Attr("content"); ok {
		if trimmed := strings.TrimSpace(desc); trimmed != "" {
			return truncate(trimmed)
		}
	}
	if desc, ok := doc.Find("meta[property='og:description']").Attr("content"); ok {
		if trimmed := strings.TrimSpace(desc); trimmed != "" {
			return truncate(trimmed)
		}
	}
	return truncate(strings.TrimSpace(doc.Find("p").First().Text()))
}

func extractPublishedTime(doc *goquery.Document) time.Time {
	candidates := []string{
		"meta[property='article:published_time']",
		"meta[name='article:published_time']",
		"meta[name='date']",
	}

	for _, selector := range candidates {
		raw, ok := doc.Find(selector).Attr("content")
		if !ok {
			continue
		}
		for _, layout := range datetimeLayouts {
			if parsed, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return parsed
			}
		}
	}

	if raw, ok := doc.Find("time[datetime]").Attr("datetime"); ok {
		for _, layout := range datetimeLayouts {
			if parsed, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return parsed
			}
		}
	}

	return time.Time{}
}

// extractKeywords splits the keywords meta tag.
func extractKeywords(doc *goquery.Document) []Keyword {
	raw, ok := doc.Find("meta[name='keywords']").Attr("content")
	if !ok {
		return nil
	}

	var keywords []Keyword
	for _, part := range strings.Split(raw, ",") {
		if text := strings.TrimSpace(part); text != "" {
			keywords = append(keywords, Keyword{Text: text, Type: "keyword"})
		}
	}
	return keywords
}

// extractTopics collects article section and tag metadata.
func extractTopics(doc *goquery.Document) []Topic {
	var topics []Topic

	doc.Find("meta[property='article:section']").Each(func(_ int, sel *goquery.Selection) {
		if content, ok := sel.Attr("content"); ok {
			if text := strings.TrimSpace(content); text != "" {
				topics = append(topics, Topic{Text: text, Type: "section"})
			}
		}
	})
	doc.Find("meta[property='article:tag']").Each(func(_ int, sel *goquery.Selection) {
		if content, ok := sel.Attr("content"); ok {
			if text := strings.TrimSpace(content); text != "" {
				topics = append(topics, Topic{Text: text, Type: "tag"})
			}
		}
	})

	return topics
}

func truncate(s string) string {
	if len(s) <= maxSnippetLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxSnippetLen {
		return s
	}
	return string(runes[:maxSnippetLen])
}
