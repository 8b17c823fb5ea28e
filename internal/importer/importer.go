// Package importer turns web pages and PDF documents into note text.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrInvalidInput marks imports rejected because of what the caller sent:
// a bad URL, an unsupported content type, an oversized or empty document.
var ErrInvalidInput = errors.New("invalid import")

const (
	DefaultTimeout        = 20 * time.Second
	DefaultMaxBytes int64 = 5 << 20
	// MaxTextChars bounds the text kept from one document.
	MaxTextChars = 100_000
)

// Document is extracted text ready to become a note.
type Document struct {
	Title     string
	Text      string
	Source    string
	Truncated bool
}

type Importer struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// New creates an Importer. A nil client gets one with DefaultTimeout.
func New(client *http.Client) *Importer {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Importer{
		client:   client,
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default().With("component", "importer"),
	}
}

// FromURL downloads an http(s) URL and extracts its readable text. HTML is
// stripped of scripts and navigation, plain text passes through and PDFs
// are read page by page.
func (i *Importer) FromURL(ctx context.Context, rawURL string) (Document, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Document{}, fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidInput, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,application/pdf;q=0.8,*/*;q=0.5")
	req.Header.Set("User-Agent", "ai-assistant-importer/1.0")

	resp, err := i.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetching %s: %w", u.Host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Document{}, fmt.Errorf("fetching %s: status %d", u.Host, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, i.maxBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", u.Host, err)
	}
	if int64(len(body)) > i.maxBytes {
		return Document{}, fmt.Errorf("%w: document is larger than %d bytes", ErrInvalidInput, i.maxBytes)
	}

	ctype := resp.Header.Get("Content-Type")
	if ctype == "" {
		ctype = http.DetectContentType(body)
	}
	mediaType, _, _ := mime.ParseMediaType(ctype)

	var doc Document
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		doc.Title, doc.Text = extractHTML(string(body))
	case mediaType == "application/pdf":
		doc, err = i.FromPDF(bytes.NewReader(body), int64(len(body)))
		if err != nil {
			return Document{}, err
		}
	case strings.HasPrefix(mediaType, "text/"):
		if !utf8.Valid(body) {
			return Document{}, fmt.Errorf("%w: %s body is not UTF-8", ErrInvalidInput, mediaType)
		}
		doc.Text = cleanWhitespace(string(body))
	default:
		return Document{}, fmt.Errorf("%w: unsupported content type %q", ErrInvalidInput, mediaType)
	}

	doc.Source = u.String()
	if doc.Title == "" {
		doc.Title = fallbackTitle(u)
	}
	i.logger.Debug("imported url", "host", u.Host, "content_type", mediaType, "chars", len(doc.Text))
	return finish(doc)
}

// FromPDF extracts the text of every page of a PDF, in page order.
func (i *Importer) FromPDF(r io.ReaderAt, size int64) (Document, error) {
	if size > i.maxBytes*2 {
		return Document{}, fmt.Errorf("%w: PDF is larger than %d bytes", ErrInvalidInput, i.maxBytes*2)
	}
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return Document{}, fmt.Errorf("%w: reading PDF: %v", ErrInvalidInput, err)
	}

	var text strings.Builder
	for n := 1; n <= reader.NumPage(); n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			i.logger.Warn("skipping unreadable PDF page", "page", n, "error", err)
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(content)
		if text.Len() > MaxTextChars*4 {
			break
		}
	}

	doc := Document{
		Title:  strings.TrimSpace(reader.Trailer().Key("Info").Key("Title").Text()),
		Text:   cleanWhitespace(text.String()),
		Source: "pdf",
	}
	return finish(doc)
}

func finish(doc Document) (Document, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return Document{}, fmt.Errorf("%w: no readable text found", ErrInvalidInput)
	}
	if utf8.RuneCountInString(doc.Text) > MaxTextChars {
		doc.Text = string([]rune(doc.Text)[:MaxTextChars])
		doc.Truncated = true
	}
	doc.Title = strings.TrimSpace(doc.Title)
	return doc, nil
}

func fallbackTitle(u *url.URL) string {
	if base := path.Base(u.Path); base != "/" && base != "." && base != "" {
		return u.Host + ": " + base
	}
	return u.Host
}
