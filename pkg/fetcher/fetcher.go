package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/xhad/docchat/internal/models"
)

type FetcherConfig struct {
	RateLimit float64 // requests per second
	Timeout   time.Duration
	// MaxBytes caps the size of a single downloaded document.
	MaxBytes int64
	// FollowPDFLinks also downloads PDFs linked from a fetched HTML page on
	// the same host.
	FollowPDFLinks bool
	IgnorePatterns []string
	OnProgress     func(url string)
}

// Fetcher downloads remote documents so they can be uploaded like local
// files.
type Fetcher struct {
	config  FetcherConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config FetcherConfig) *Fetcher {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.MaxBytes == 0 {
		config.MaxBytes = 32 << 20
	}

	return &Fetcher{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func New() *Fetcher {
	return NewWithConfig(FetcherConfig{})
}

// Fetch downloads rawURL and, for HTML pages when enabled, the PDFs it
// links to. Linked documents that fail to download are logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]models.Document, error) {
	base, err := url.Parse(rawURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid URL: %s", rawURL)
	}

	doc, contentType, err := f.download(ctx, base)
	if err != nil {
		return nil, err
	}
	docs := []models.Document{doc}

	if !f.config.FollowPDFLinks || !isHTML(contentType, doc.Content) {
		return docs, nil
	}

	visited := map[string]bool{base.String(): true}
	for _, link := range f.pdfLinks(base, doc.Content) {
		if visited[link.String()] {
			continue
		}
		visited[link.String()] = true

		linked, _, err := f.download(ctx, link)
		if err != nil {
			log.Printf("Error fetching %s: %v", link, err)
			continue
		}
		docs = append(docs, linked)
	}

	return docs, nil
}

func (f *Fetcher) download(ctx context.Context, u *url.URL) (models.Document, string, error) {
	if f.config.OnProgress != nil {
		f.config.OnProgress(u.String())
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return models.Document{}, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.Document{}, "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return models.Document{}, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Document{}, "", fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, u)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return models.Document{}, "", err
	}
	if int64(len(data)) > f.config.MaxBytes {
		return models.Document{}, "", fmt.Errorf("document at %s exceeds %d bytes", u, f.config.MaxBytes)
	}

	return models.Document{Name: documentName(u), Content: data}, resp.Header.Get("Content-Type"), nil
}

func (f *Fetcher) pdfLinks(base *url.URL, page []byte) []*url.URL {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	var links []*url.URL
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if f.shouldFollow(base, abs) {
			links = append(links, abs)
		}
	})
	return links
}

func (f *Fetcher) shouldFollow(base, u *url.URL) bool {
	if u.Host != base.Host {
		return false
	}
	if !strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return false
	}
	for _, pattern := range f.config.IgnorePatterns {
		if strings.Contains(u.String(), pattern) {
			return false
		}
	}
	return true
}

func documentName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return u.Host + ".html"
	}
	return name
}

func isHTML(contentType string, data []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	return strings.HasPrefix(http.DetectContentType(data), "text/html")
}
