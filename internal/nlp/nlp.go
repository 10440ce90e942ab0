// Package nlp defines the analysis collaborator contract for the process
// worker, plus a deterministic HTML-metadata implementation. The ML-backed
// extractor and classifier live in a separate service and plug in behind the
// same interface.
package nlp

import (
	"context"
	"time"
)

// Keyword is one named entity extracted from a document.
type Keyword struct {
	Text string
	Type string
}

// Topic is one topic label assigned to a document.
type Topic struct {
	Text string
	Type string
}

// Result is the analysis of one stored document. A zero ArticleDatetime
// means the document is unusable and must be dropped.
type Result struct {
	AbsoluteURL     string
	URLHash         string
	TargetID        string
	ScrapeDatetime  time.Time
	ArticleDatetime time.Time
	Title           string
	Snippet         string
	Keywords        []Keyword
	Topics          []Topic
}

// Usable reports whether the document carries an article datetime.
func (r *Result) Usable() bool {
	return r != nil && !r.ArticleDatetime.IsZero()
}

// Processor turns raw HTML into an analysis result. Determinism is not
// required.
type Processor interface {
	Process(ctx context.Context, html, targetID, url string, scraped time.Time) (*Result, error)
}
