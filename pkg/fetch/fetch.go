package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/xhad/grounder/internal/models"
	"golang.org/x/time/rate"
)

// Config for the page fetcher.
type Config struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second
}

// Fetcher loads a single web page into a Document, with the page URL as its
// source locator so re-ingestion stays idempotent.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 2
	}
	return &Fetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

// Fetch retrieves rawURL and extracts a title and the main text content.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.Document, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() {
		return nil, fmt.Errorf("invalid document URL %q", rawURL)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, rawURL)
	}

	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}

	title := strings.TrimSpace(page.Find("title").Text())
	if title == "" {
		title = rawURL
	}
	content := extractMainContent(page)
	if content == "" {
		return nil, fmt.Errorf("no text content found at %s", rawURL)
	}

	now := time.Now()
	return &models.Document{
		ID:           uuid.New(),
		Title:        title,
		Content:      content,
		SourceURL:    rawURL,
		DocumentType: "web",
		Metadata: map[string]any{
			"contentType":  resp.Header.Get("Content-Type"),
			"lastModified": resp.Header.Get("Last-Modified"),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func extractMainContent(page *goquery.Document) string {
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := page.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}
	if content == "" {
		content = page.Find("body").Text()
	}

	// Collapse runs of whitespace.
	return strings.TrimSpace(strings.Join(strings.Fields(content), " "))
}
