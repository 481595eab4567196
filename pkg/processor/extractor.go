package processor

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/xhad/docchat/internal/models"
)

type documentKind int

const (
	kindUnknown documentKind = iota
	kindPDF
	kindHTML
	kindText
)

// Extractor pulls plain text out of uploaded documents. Scanned PDFs without
// a text layer produce no text; there is no OCR.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractAll concatenates the text of docs in upload order. Documents that
// cannot be read are logged and skipped.
func (e *Extractor) ExtractAll(ctx context.Context, docs []models.Document) string {
	var parts []string
	for _, doc := range docs {
		if ctx.Err() != nil {
			break
		}

		text, err := e.Extract(ctx, doc)
		if err != nil {
			log.Printf("Skipping document %s: %v", doc.Name, err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			log.Printf("Document %s has no extractable text", doc.Name)
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

// Extract returns the text of a single document.
func (e *Extractor) Extract(ctx context.Context, doc models.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch detectKind(doc) {
	case kindPDF:
		return extractPDF(doc.Content)
	case kindHTML:
		return extractHTML(doc.Content)
	case kindText:
		return sanitizeUTF8(string(doc.Content)), nil
	default:
		return "", fmt.Errorf("unsupported document type")
	}
}

func detectKind(doc models.Document) documentKind {
	if bytes.HasPrefix(doc.Content, []byte("%PDF-")) {
		return kindPDF
	}

	switch strings.ToLower(filepath.Ext(doc.Name)) {
	case ".pdf":
		return kindPDF
	case ".html", ".htm":
		return kindHTML
	}

	contentType := http.DetectContentType(doc.Content)
	switch {
	case strings.HasPrefix(contentType, "text/html"):
		return kindHTML
	case strings.HasPrefix(contentType, "text/"):
		return kindText
	}
	return kindUnknown
}

func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	fonts := make(map[string]*pdf.Font)
	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		pageText, err := readPage(reader.Page(i), fonts)
		if err != nil {
			log.Printf("Skipping unreadable pdf page %d: %v", i, err)
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			pages = append(pages, sanitizeUTF8(pageText))
		}
	}

	return strings.Join(pages, "\n"), nil
}

func readPage(page pdf.Page, fonts map[string]*pdf.Font) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%v", r)
		}
	}()

	if page.V.IsNull() {
		return "", nil
	}
	for _, name := range page.Fonts() {
		if _, ok := fonts[name]; !ok {
			font := page.Font(name)
			fonts[name] = &font
		}
	}
	return page.GetPlainText(fonts)
}

func extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	return extractMainContent(doc), nil
}

func extractMainContent(doc *goquery.Document) string {
	// Try to find main content area
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	doc.Find("script, style, noscript").Remove()

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if content == "" {
		content = doc.Find("body").Text()
	}

	return strings.TrimSpace(strings.Join(strings.Fields(content), " "))
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
