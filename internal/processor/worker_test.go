package processor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/debias/spider/internal/logger"
	"github.com/debias/spider/internal/metastore"
	"github.com/debias/spider/internal/nlp"
	"github.com/debias/spider/internal/processor"
	"github.com/debias/spider/internal/queue"
)

type fakeMeta struct {
	metadata *metastore.Metadata
	err      error
}

func (m *fakeMeta) Read(_ context.Context, _ int64) (*metastore.Metadata, error) {
	return m.metadata, m.err
}

type fakeObjects struct {
	content []byte
	err     error
}

func (o *fakeObjects) Download(_ context.Context, _ string) ([]byte, error) {
	return o.content, o.err
}

type fakeNLP struct {
	result *nlp.Result
	err    error
}

func (n *fakeNLP) Process(_ context.Context, _, targetID, url string, scraped time.Time) (*nlp.Result, error) {
	if n.err != nil {
		return nil, n.err
	}
	if n.result != nil {
		return n.result, nil
	}
	return &nlp.Result{
		AbsoluteURL:     url,
		TargetID:        targetID,
		ScrapeDatetime:  scraped,
		ArticleDatetime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

type fakeSaver struct {
	saved []*nlp.Result
	err   error
}

func (s *fakeSaver) Save(_ context.Context, result *nlp.Result) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, result)
	return nil
}

func validRequest() []byte {
	return []byte(`{
		"url": "https://example.com/article",
		"target_id": "ex",
		"filepath": "ex/abc/def.html",
		"metadata": 42,
		"datetime": "2026-03-01T12:00:00Z"
	}`)
}

func TestHandleSavesResult(t *testing.T) {
	saver := &fakeSaver{}
	worker := processor.NewWorker(
		&fakeMeta{metadata: &metastore.Metadata{ID: 42}},
		&fakeObjects{content: []byte("<html></html>")},
		&fakeNLP{},
		saver,
		logger.NewNoop(),
	)

	if got := worker.Handle(context.Background(), validRequest()); got != queue.Ack {
		t.Fatalf("Handle() = %v, want Ack", got)
	}
	if len(saver.saved) != 1 {
		t.Fatalf("Save called %d times, want 1", len(saver.saved))
	}
	if saver.saved[0].TargetID != "ex" {
		t.Errorf("saved target id = %q, want %q", saver.saved[0].TargetID, "ex")
	}
}

func TestHandleRejectsBadRequests(t *testing.T) {
	worker := processor.NewWorker(
		&fakeMeta{metadata: &metastore.Metadata{ID: 42}},
		&fakeObjects{content: []byte("<html></html>")},
		&fakeNLP{},
		&fakeSaver{},
		logger.NewNoop(),
	)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "malformed json", data: []byte("{")},
		{name: "missing url", data: []byte(`{"target_id":"ex","filepath":"f","metadata":1}`)},
		{name: "missing metadata id", data: []byte(`{"url":"https://x.com","target_id":"ex","filepath":"f"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := worker.Handle(context.Background(), tt.data); got != queue.Reject {
				t.Errorf("Handle() = %v, want Reject", got)
			}
		})
	}
}

func TestHandleRejectsMissingMetadata(t *testing.T) {
	saver := &fakeSaver{}
	worker := processor.NewWorker(
		&fakeMeta{metadata: nil},
		&fakeObjects{content: []byte("<html></html>")},
		&fakeNLP{},
		saver,
		logger.NewNoop(),
	)

	if got := worker.Handle(context.Background(), validRequest()); got != queue.Reject {
		t.Errorf("Handle() = %v, want Reject", got)
	}
	if len(saver.saved) != 0 {
		t.Error("Save called for request without metadata row")
	}
}

func TestHandleRejectsUnusableDocument(t *testing.T) {
	saver := &fakeSaver{}
	worker := processor.NewWorker(
		&fakeMeta{metadata: &metastore.Metadata{ID: 42}},
		&fakeObjects{content: []byte("<html></html>")},
		&fakeNLP{result: &nlp.Result{TargetID: "ex"}},
		saver,
		logger.NewNoop(),
	)

	if got := worker.Handle(context.Background(), validRequest()); got != queue.Reject {
		t.Errorf("Handle() = %v, want Reject", got)
	}
	if len(saver.saved) != 0 {
		t.Error("Save called for document without article datetime")
	}
}

func TestHandleNacksTransientFailures(t *testing.T) {
	tests := []struct {
		name   string
		worker *processor.Worker
	}{
		{
			name: "metadata read fails",
			worker: processor.NewWorker(
				&fakeMeta{err: errors.New("connection refused")},
				&fakeObjects{}, &fakeNLP{}, &fakeSaver{}, logger.NewNoop(),
			),
		},
		{
			name: "download fails",
			worker: processor.NewWorker(
				&fakeMeta{metadata: &metastore.Metadata{ID: 42}},
				&fakeObjects{err: errors.New("bucket unavailable")},
				&fakeNLP{}, &fakeSaver{}, logger.NewNoop(),
			),
		},
		{
			name: "analysis fails",
			worker: processor.NewWorker(
				&fakeMeta{metadata: &metastore.Metadata{ID: 42}},
				&fakeObjects{content: []byte("x")},
				&fakeNLP{err: errors.New("model unavailable")},
				&fakeSaver{}, logger.NewNoop(),
			),
		},
		{
			name: "save fails",
			worker: processor.NewWorker(
				&fakeMeta{metadata: &metastore.Metadata{ID: 42}},
				&fakeObjects{content: []byte("x")},
				&fakeNLP{},
				&fakeSaver{err: errors.New("deadlock detected")},
				logger.NewNoop(),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.worker.Handle(context.Background(), validRequest()); got != queue.Nack {
				t.Errorf("Handle() = %v, want Nack", got)
			}
		})
	}
}
