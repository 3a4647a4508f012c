package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"topicscanner/internal/scanner"
)

const atomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query Results</title>
  <entry>
    <id>http://arxiv.org/abs/2501.00001v1</id>
    <title>Attention Mechanisms Revisited</title>
    <summary>We revisit attention mechanisms in sequence models.</summary>
    <link href="http://arxiv.org/abs/2501.00001v1"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2501.00002v1</id>
    <title>Sparse Mixture Routing</title>
    <summary>A study of routing strategies for sparse mixtures.</summary>
    <link href="http://arxiv.org/abs/2501.00002v1"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2501.00002v1</id>
    <title>Duplicate Entry</title>
    <summary>Duplicate of the second entry.</summary>
    <link href="http://arxiv.org/abs/2501.00002v1"/>
  </entry>
</feed>`

func TestArxivScannerScan(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atomFeed))
	}))
	defer server.Close()

	sc := NewArxivScanner()
	docs, total, err := sc.Scan(context.Background(), scanner.Request{
		FeedURL: server.URL + "?search_query=cat%3Acs.LG",
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if gotQuery.Get("max_results") != "10" {
		t.Fatalf("expected max_results=10, got %s", gotQuery.Get("max_results"))
	}
	if gotQuery.Get("search_query") != "cat:cs.LG" {
		t.Fatalf("search_query not preserved: %s", gotQuery.Get("search_query"))
	}

	if total != 3 {
		t.Fatalf("expected 3 total entries, got %d", total)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 deduplicated documents, got %d", len(docs))
	}
	if docs[0].ExternalID != "http://arxiv.org/abs/2501.00001v1" {
		t.Fatalf("unexpected external id: %s", docs[0].ExternalID)
	}
	if docs[0].Title != "Attention Mechanisms Revisited" {
		t.Fatalf("unexpected title: %s", docs[0].Title)
	}
	if docs[0].Snippet == "" {
		t.Fatalf("expected snippet")
	}
}

func TestArxivScannerRespectsLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(atomFeed))
	}))
	defer server.Close()

	sc := NewArxivScanner()
	docs, _, err := sc.Scan(context.Background(), scanner.Request{FeedURL: server.URL, Limit: 1})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
}

func TestRSSScannerScan(t *testing.T) {
	t.Parallel()

	rss := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>r/MachineLearning</title>
  <item><guid>post-1</guid><title>Weights initialization tricks</title><link>https://example.org/1</link><description>Discussion thread.</description></item>
  <item><guid>post-2</guid><title>Paper club thread</title><link>https://example.org/2</link><description>Weekly reading.</description></item>
</channel></rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rss))
	}))
	defer server.Close()

	sc := NewRSSScanner()
	docs, total, err := sc.Scan(context.Background(), scanner.Request{FeedURL: server.URL, Limit: 5})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if total != 2 || len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d/%d", len(docs), total)
	}
	if docs[0].ExternalID != "post-1" {
		t.Fatalf("unexpected external id: %s", docs[0].ExternalID)
	}
}

func TestArxivHTMLScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`
		<dl>
		  <dt>
		    <span class="list-identifier"><a href="/abs/2501.00001">arXiv:2501.00001</a></span>
		  </dt>
		  <dd>
		    <div class="list-title mathjax">Title: Fresh Article</div>
		    <p class="mathjax">Abstract: brand new.</p>
		  </dd>
		  <dt>
		    <span class="list-identifier"><a href="/abs/2501.00002">arXiv:2501.00002</a></span>
		  </dt>
		  <dd>
		    <div class="list-title mathjax">Title: Second Article</div>
		    <p class="mathjax">Abstract: also new.</p>
		  </dd>
		</dl>`))
	}))
	defer server.Close()

	sc := NewArxivHTMLScanner(server.Client())
	sc.pageSize = 10

	docs, _, err := sc.Scan(context.Background(), scanner.Request{
		FeedURL: server.URL + "/list/cs.AI/recent",
		Limit:   5,
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ExternalID != "arXiv:2501.00001" {
		t.Fatalf("unexpected id: %s", docs[0].ExternalID)
	}
	if docs[0].Title != "Fresh Article" {
		t.Fatalf("unexpected title: %s", docs[0].Title)
	}
	if docs[1].Snippet != "also new." {
		t.Fatalf("unexpected snippet: %s", docs[1].Snippet)
	}
}

func TestParseEntryMissingID(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<dl><dt></dt><dd></dd></dl>`))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	if _, ok := parseEntry(doc.Find("dt").First(), doc.Find("dd").First()); ok {
		t.Fatalf("expected entry without id to be skipped")
	}
}

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	u, err := buildPageURL("https://arxiv.org/list/cs.AI/recent", 200, 100)
	if err != nil {
		t.Fatalf("buildPageURL error: %v", err)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if parsed.Query().Get("skip") != "200" {
		t.Fatalf("expected skip=200, got %s", parsed.Query().Get("skip"))
	}
	if parsed.Query().Get("show") != "100" {
		t.Fatalf("expected show=100, got %s", parsed.Query().Get("show"))
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 200)
	out := truncate(long, 50)
	if len(out) > 60 {
		t.Fatalf("truncate too long: %d", len(out))
	}
	if !strings.HasSuffix(out, "...") {
		t.Fatalf("expected ellipsis suffix: %q", out)
	}
	if got := truncate("short", 50); got != "short" {
		t.Fatalf("short text should pass through, got %q", got)
	}
}
