package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"topicscanner/internal/domain"
	"topicscanner/internal/scanner"
)

const arxivBaseURL = "https://arxiv.org"

// ArxivHTMLScanner crawls arXiv category listing pages. It is the fallback
// strategy for deployments where the Atom API is unreachable.
type ArxivHTMLScanner struct {
	client   *http.Client
	pageSize int
}

// NewArxivHTMLScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivHTMLScanner(client *http.Client) *ArxivHTMLScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ArxivHTMLScanner{client: client, pageSize: 200}
}

// Name identifies the strategy inside the registry.
func (a *ArxivHTMLScanner) Name() string {
	return "arxiv-html"
}

// Scan walks listing pages until req.Limit documents are collected or the
// listing runs out.
func (a *ArxivHTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Document, int, error) {
	if req.FeedURL == "" {
		return nil, 0, fmt.Errorf("no listing url provided")
	}

	docs := make([]domain.Document, 0, req.Limit)
	seen := map[string]struct{}{}

	skip := 0
	for len(docs) < req.Limit {
		pageURL, err := buildPageURL(req.FeedURL, skip, a.pageSize)
		if err != nil {
			return nil, 0, err
		}

		doc, err := a.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, 0, err
		}

		entries := extractEntries(doc)
		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			if len(docs) >= req.Limit {
				break
			}
			if _, ok := seen[entry.ExternalID]; ok {
				continue
			}
			seen[entry.ExternalID] = struct{}{}
			docs = append(docs, entry)
		}

		if len(entries) < a.pageSize {
			break
		}
		skip += a.pageSize
	}

	return docs, len(docs), nil
}

func (a *ArxivHTMLScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "TopicScanner/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractEntries(doc *goquery.Document) []domain.Document {
	var collected []domain.Document

	doc.Find("dl > dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.Next()
		if entry, ok := parseEntry(dt, dd); ok {
			collected = append(collected, entry)
		}
	})

	return collected
}

func parseEntry(dt, dd *goquery.Selection) (domain.Document, bool) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	id := strings.TrimSpace(link.Text())
	if id == "" {
		if raw, exists := link.Attr("href"); exists {
			id = strings.TrimPrefix(raw, "/abs/")
		}
	}
	if id == "" {
		return domain.Document{}, false
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	abstract := dd.Find(".mathjax").First().Text()
	abstract = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:"))

	return domain.Document{
		ExternalID: id,
		Title:      title,
		Text:       strings.TrimSpace(title + ". " + abstract),
		Link:       href,
		Snippet:    truncate(abstract, snippetLimit),
	}, true
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
