package aozora

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"bunseki/pkg/config"
	"bunseki/pkg/metrics"
)

// ErrFetch covers network failures, bad statuses and pages without text.
var ErrFetch = errors.New("fetch failed")

// Origin is the host every catalog URL lives under.
const Origin = "https://www.aozora.gr.jp"

type Fetcher struct {
	HTTP    *http.Client
	Limiter *RateLimiter

	// BaseURL replaces Origin when set, for mirrors.
	BaseURL string
}

func NewFetcher(cfg config.FetchConfig) *Fetcher {
	f := &Fetcher{
		HTTP:    &http.Client{Timeout: cfg.Timeout},
		BaseURL: cfg.BaseURL,
	}
	if cfg.RateLimit > 0 {
		f.Limiter = NewRateLimiter(cfg.RateLimit)
	}
	return f
}

// Fetch downloads a catalog work and returns its normalized body text.
func (f *Fetcher) Fetch(ctx context.Context, title string) (string, error) {
	w, err := Lookup(title)
	if err != nil {
		return "", err
	}
	log.Info("fetching work", "title", w.Title, "author", w.Author)

	url := w.URL
	if f.BaseURL != "" {
		url = strings.TrimSuffix(f.BaseURL, "/") + strings.TrimPrefix(w.URL, Origin)
	}

	raw, err := f.FetchURL(ctx, url)
	if err != nil {
		metrics.Fetches.WithLabelValues("error").Inc()
		return "", err
	}

	text := Normalize(raw)
	if text == "" {
		metrics.Fetches.WithLabelValues("empty").Inc()
		return "", fmt.Errorf("%w: %s has no body text", ErrFetch, w.Title)
	}
	metrics.Fetches.WithLabelValues("ok").Inc()
	log.Info("fetched work", "title", w.Title, "chars", len([]rune(text)))
	return text, nil
}

// FetchURL GETs an XHTML page and returns its raw text content.
func (f *Fetcher) FetchURL(ctx context.Context, url string) (string, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrFetch, err)
	}

	client := f.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned status %d", ErrFetch, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ErrFetch, err)
	}

	doc, err := goquery.NewDocumentFromReader(decode(body, resp.Header.Get("Content-Type")))
	if err != nil {
		return "", fmt.Errorf("%w: parsing HTML: %v", ErrFetch, err)
	}
	return ExtractText(doc), nil
}

// decode returns a UTF-8 reader over body. Aozora serves Shift_JIS unless
// the header or a meta tag says otherwise.
func decode(body []byte, contentType string) io.Reader {
	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	if strings.Contains(strings.ToLower(contentType), "utf-8") || bytes.Contains(bytes.ToLower(head), []byte("utf-8")) {
		return bytes.NewReader(body)
	}
	return transform.NewReader(bytes.NewReader(body), japanese.ShiftJIS.NewDecoder())
}

// ExtractText takes the text of div.main_text, or of the body, or of the
// whole document, with ruby readings removed.
func ExtractText(doc *goquery.Document) string {
	sel := doc.Find("div.main_text").First()
	if sel.Length() == 0 {
		sel = doc.Find("body").First()
	}
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	sel.Find("rt, rp").Remove()
	return sel.Text()
}
