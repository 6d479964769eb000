package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/specharvest/config"
	"github.com/mohammad-safakhou/specharvest/models"
	"github.com/mohammad-safakhou/specharvest/tools/web_fetch"
)

type fakeFetcher struct {
	delay   time.Duration
	fail    map[string]bool
	active  int32
	peak    int32
	mu      sync.Mutex
	visited []string
}

func (f *fakeFetcher) Exec(ctx context.Context, url string) (models.FetchResult, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	f.mu.Lock()
	f.visited = append(f.visited, url)
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return models.FetchResult{}, ctx.Err()
	case <-time.After(f.delay):
	}
	if f.fail[url] {
		return models.FetchResult{}, errors.New("unexpected status 404")
	}
	return models.FetchResult{URL: url, Status: http.StatusOK, Body: "# " + url}, nil
}

func records(n int) []models.LinkRecord {
	out := make([]models.LinkRecord, n)
	for i := range out {
		target := fmt.Sprintf("https://docs.example.com/api/doc-%d.md", i)
		out[i] = models.LinkRecord{Seq: i, Title: fmt.Sprintf("Doc %d", i), RelativeTarget: target, ResolvedTarget: target, Section: "API"}
	}
	return out
}

func TestFetchAllRespectsConcurrencyBound(t *testing.T) {
	f := &fakeFetcher{delay: 20 * time.Millisecond}
	o := &Orchestrator{Fetcher: f}

	outcomes := o.FetchAll(context.Background(), records(12), 3)
	if len(outcomes) != 12 {
		t.Fatalf("expected 12 outcomes, got %d", len(outcomes))
	}
	if peak := atomic.LoadInt32(&f.peak); peak > 3 {
		t.Fatalf("concurrency bound exceeded: peak %d", peak)
	}
	seen := make(map[int]bool)
	for _, out := range outcomes {
		if !out.Succeeded() {
			t.Fatalf("unexpected failure: %+v", out.Error)
		}
		if seen[out.Record.Seq] {
			t.Fatalf("record %d fetched twice", out.Record.Seq)
		}
		seen[out.Record.Seq] = true
		if !strings.HasSuffix(out.SafeName, ".md") {
			t.Fatalf("unexpected safe name %q", out.SafeName)
		}
	}
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	recs := records(4)
	f := &fakeFetcher{fail: map[string]bool{recs[2].ResolvedTarget: true}}
	o := &Orchestrator{Fetcher: f}

	outcomes := o.FetchAll(context.Background(), recs, 2)
	if len(outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(outcomes))
	}
	failed := 0
	for _, out := range outcomes {
		if out.Succeeded() {
			if out.Content == nil || out.ByteSize != len(*out.Content) {
				t.Fatalf("bad content for %s", out.Record.ResolvedTarget)
			}
			continue
		}
		failed++
		if out.Record.Seq != 2 || out.Error.Kind != models.ErrorKindFetchFailed {
			t.Fatalf("unexpected failure: %+v", out)
		}
		if out.Content != nil {
			t.Fatalf("failed outcome carries content")
		}
	}
	if failed != 1 {
		t.Fatalf("expected 1 failure, got %d", failed)
	}
}

func TestFetchAllReportsMonotonicProgress(t *testing.T) {
	f := &fakeFetcher{delay: time.Millisecond}
	var seen []Progress
	o := &Orchestrator{Fetcher: f, OnProgress: func(p Progress, _ models.RetrievalOutcome) {
		seen = append(seen, p)
	}}

	o.FetchAll(context.Background(), records(7), 4)
	if len(seen) != 7 {
		t.Fatalf("expected 7 progress events, got %d", len(seen))
	}
	for i, p := range seen {
		if p.Completed != i+1 || p.Total != 7 {
			t.Fatalf("event %d: unexpected progress %+v", i, p)
		}
	}
}

func TestFetchAllHostPolicy(t *testing.T) {
	f := &fakeFetcher{}
	o := &Orchestrator{Fetcher: f, Policy: config.HostPolicyConfig{Disallow: []string{"example.com"}}.Normalize()}

	outcomes := o.FetchAll(context.Background(), records(2), 2)
	for _, out := range outcomes {
		if out.Succeeded() {
			t.Fatalf("expected policy rejection for %s", out.Record.ResolvedTarget)
		}
	}
	if len(f.visited) != 0 {
		t.Fatalf("rejected targets were fetched: %v", f.visited)
	}
}

func TestFetchAllPerItemTimeout(t *testing.T) {
	f := &fakeFetcher{delay: time.Second}
	o := &Orchestrator{Fetcher: f, Timeout: 10 * time.Millisecond}

	outcomes := o.FetchAll(context.Background(), records(2), 2)
	for _, out := range outcomes {
		if out.Succeeded() {
			t.Fatalf("expected timeout failure")
		}
	}
}

func TestFetchAllEmpty(t *testing.T) {
	o := &Orchestrator{Fetcher: &fakeFetcher{}}
	if got := o.FetchAll(context.Background(), nil, 5); len(got) != 0 {
		t.Fatalf("expected no outcomes, got %d", len(got))
	}
}

func TestFetchAllOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.md" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/markdown")
		fmt.Fprintf(w, "# %s\n", r.URL.Path)
	}))
	defer srv.Close()

	fetcher, err := web_fetch.NewWebFetcher(web_fetch.HTTPFetcherType, web_fetch.Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewWebFetcher: %v", err)
	}
	o := NewOrchestrator(fetcher, config.FetchConfig{}, config.IndexConfig{}, nil)
	o.Pause = 0
	recs := []models.LinkRecord{
		{Seq: 0, Title: "Chat", ResolvedTarget: srv.URL + "/chat.md"},
		{Seq: 1, Title: "Missing", ResolvedTarget: srv.URL + "/missing.md"},
	}

	outcomes := o.FetchAll(context.Background(), recs, 2)
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, out := range outcomes {
		switch out.Record.Seq {
		case 0:
			if !out.Succeeded() || !strings.Contains(*out.Content, "/chat.md") {
				t.Fatalf("unexpected outcome: %+v", out)
			}
		case 1:
			if out.Succeeded() {
				t.Fatalf("expected 404 failure")
			}
		}
	}
}
