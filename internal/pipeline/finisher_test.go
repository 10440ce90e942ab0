package pipeline_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/debias/spider/internal/domain"
	"github.com/debias/spider/internal/logger"
	"github.com/debias/spider/internal/metastore"
	"github.com/debias/spider/internal/pipeline"
	"github.com/debias/spider/internal/target"
)

type fakeMetaStore struct {
	saved   []*metastore.Metadata
	nextID  int64
	beginTx error
	saveErr error
}

func (m *fakeMetaStore) WithTransaction(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if m.beginTx != nil {
		return m.beginTx
	}
	return fn(nil)
}

func (m *fakeMetaStore) SaveTx(_ context.Context, _ *sqlx.Tx, meta *metastore.Metadata) (int64, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	m.saved = append(m.saved, meta)
	m.nextID++
	return m.nextID, nil
}

type fakeUploader struct {
	uploads map[string][]byte
	err     error
}

func (u *fakeUploader) Upload(_ context.Context, key string, content []byte) error {
	if u.err != nil {
		return u.err
	}
	if u.uploads == nil {
		u.uploads = map[string][]byte{}
	}
	u.uploads[key] = content
	return nil
}

type fakePublisher struct {
	mu          sync.Mutex
	fetchErr    error
	processErr  error
	fetchReqs   []domain.FetchRequest
	processReqs []domain.ProcessRequest
}

func (p *fakePublisher) PublishFetch(_ context.Context, req domain.FetchRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetchErr != nil {
		return p.fetchErr
	}
	p.fetchReqs = append(p.fetchReqs, req)
	return nil
}

func (p *fakePublisher) PublishRender(_ context.Context, _ domain.RenderRequest) error {
	return nil
}

func (p *fakePublisher) PublishProcess(_ context.Context, req domain.ProcessRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.processErr != nil {
		return p.processErr
	}
	p.processReqs = append(p.processReqs, req)
	return nil
}

func newParser(t *testing.T, domainOnly bool) *target.Parser {
	t.Helper()
	parser, err := target.NewParser(target.Config{
		ID:         "ex",
		Name:       "Example News",
		RootURL:    "https://example.com",
		DomainOnly: domainOnly,
	}, logger.NewNoop())
	if err != nil {
		t.Fatalf("NewParser() = %v", err)
	}
	return parser
}

func TestObjectKey(t *testing.T) {
	got := pipeline.ObjectKey("ex", "aaa", "bbb")
	if got != "ex/aaa/bbb.html" {
		t.Errorf("ObjectKey = %q, want %q", got, "ex/aaa/bbb.html")
	}
}

func TestFinish(t *testing.T) {
	meta := &fakeMetaStore{}
	objects := &fakeUploader{}
	pub := &fakePublisher{}
	finisher := pipeline.NewFinisher(meta, objects, pub, logger.NewNoop())

	const (
		url         = "https://example.com/article"
		urlHash     = "aaa"
		content     = "<html>body</html>"
		contentHash = "bbb"
		filepath    = "ex/aaa/bbb.html"
	)

	err := finisher.Finish(context.Background(), newParser(t, false), url, urlHash, content, contentHash, filepath)
	if err != nil {
		t.Fatalf("Finish() = %v", err)
	}

	if string(objects.uploads[filepath]) != content {
		t.Errorf("uploaded content = %q, want page body", objects.uploads[filepath])
	}

	if len(meta.saved) != 1 {
		t.Fatalf("metadata rows saved = %d, want 1", len(meta.saved))
	}
	row := meta.saved[0]
	if row.TargetID != "ex" || row.AbsoluteURL != url || row.Filepath != filepath {
		t.Errorf("metadata row = %+v", row)
	}
	if row.URLHash != urlHash || row.ContentHash != contentHash {
		t.Errorf("metadata hashes = %q/%q", row.URLHash, row.ContentHash)
	}
	if row.ContentSize != int64(len(content)) {
		t.Errorf("content size = %d, want %d", row.ContentSize, len(content))
	}

	if len(pub.processReqs) != 1 {
		t.Fatalf("process requests published = %d, want 1", len(pub.processReqs))
	}
	req := pub.processReqs[0]
	if req.URL != url || req.TargetID != "ex" || req.Filepath != filepath {
		t.Errorf("process request = %+v", req)
	}
	if req.MetadataID != 1 {
		t.Errorf("process request metadata id = %d, want 1", req.MetadataID)
	}
	if !req.Datetime.Equal(row.LastScrape) {
		t.Errorf("process datetime %v != metadata last scrape %v", req.Datetime, row.LastScrape)
	}
}

func TestFinishUploadFailure(t *testing.T) {
	meta := &fakeMetaStore{}
	pub := &fakePublisher{}
	finisher := pipeline.NewFinisher(meta, &fakeUploader{err: errors.New("bucket unavailable")}, pub, logger.NewNoop())

	err := finisher.Finish(context.Background(), newParser(t, false), "https://example.com/a", "h", "c", "ch", "k")
	if err == nil {
		t.Fatal("Finish() = nil, want error")
	}
	if len(meta.saved) != 0 {
		t.Error("metadata saved despite upload failure")
	}
	if len(pub.processReqs) != 0 {
		t.Error("process request published despite upload failure")
	}
}

func TestFinishSaveFailure(t *testing.T) {
	pub := &fakePublisher{}
	finisher := pipeline.NewFinisher(&fakeMetaStore{saveErr: errors.New("deadlock detected")}, &fakeUploader{}, pub, logger.NewNoop())

	err := finisher.Finish(context.Background(), newParser(t, false), "https://example.com/a", "h", "c", "ch", "k")
	if err == nil {
		t.Fatal("Finish() = nil, want error")
	}
	if len(pub.processReqs) != 0 {
		t.Error("process request published despite save failure")
	}
}

func TestFinishPublishFailure(t *testing.T) {
	finisher := pipeline.NewFinisher(&fakeMetaStore{}, &fakeUploader{}, &fakePublisher{processErr: errors.New("broker down")}, logger.NewNoop())

	err := finisher.Finish(context.Background(), newParser(t, false), "https://example.com/a", "h", "c", "ch", "k")
	if err == nil {
		t.Fatal("Finish() = nil, want error")
	}
}

func TestExpand(t *testing.T) {
	const html = `<html><body>
		<a href="/news/One Story/">one</a>
		<a href="https://example.com/news/two?ref=home">two</a>
		<a href="https://other.com/three">three</a>
	</body></html>`

	pub := &fakePublisher{}
	finisher := pipeline.NewFinisher(&fakeMetaStore{}, &fakeUploader{}, pub, logger.NewNoop())

	err := finisher.Expand(context.Background(), newParser(t, false), "https://example.com/", html)
	if err != nil {
		t.Fatalf("Expand() = %v", err)
	}

	got := make([]string, 0, len(pub.fetchReqs))
	for _, req := range pub.fetchReqs {
		got = append(got, req.URL)
	}
	sort.Strings(got)

	want := []string{
		"https://example.com/news/One%20Story",
		"https://example.com/news/two",
		"https://other.com/three",
	}
	if len(got) != len(want) {
		t.Fatalf("published urls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("url %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpandNoLinks(t *testing.T) {
	pub := &fakePublisher{}
	finisher := pipeline.NewFinisher(&fakeMetaStore{}, &fakeUploader{}, pub, logger.NewNoop())

	if err := finisher.Expand(context.Background(), newParser(t, false), "https://example.com/", "<html><body>no links</body></html>"); err != nil {
		t.Fatalf("Expand() = %v", err)
	}
	if len(pub.fetchReqs) != 0 {
		t.Errorf("fetch requests published = %d, want 0", len(pub.fetchReqs))
	}
}

func TestExpandPublishFailure(t *testing.T) {
	pub := &fakePublisher{fetchErr: errors.New("broker down")}
	finisher := pipeline.NewFinisher(&fakeMetaStore{}, &fakeUploader{}, pub, logger.NewNoop())

	err := finisher.Expand(context.Background(), newParser(t, false), "https://example.com/", `<a href="/x">x</a>`)
	if err == nil {
		t.Fatal("Expand() = nil, want error")
	}
}
