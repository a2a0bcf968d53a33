package builtin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"nova/internal/capability"
)

const fetchPageMaxChars = 8000

// fetchPage retrieves a web page and extracts its readable text with goquery.
type fetchPage struct {
	client *http.Client
}

func NewFetchPage(client *http.Client) capability.Capability {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &fetchPage{client: client}
}

func (f *fetchPage) Metadata() capability.Metadata {
	return capability.Metadata{
		ID:          "fetch_page",
		Version:     "1.0.0",
		Description: "Fetch a web page and extract its readable text",
	}
}

func (f *fetchPage) Execute(ctx context.Context, params map[string]any) (map[string]any, error) {
	raw, _ := params["url"].(string)
	if raw == "" {
		return nil, fmt.Errorf("missing url parameter")
	}
	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("User-Agent", "nova/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target.Host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned %d", target.Host, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, nav, footer, noscript").Remove()
	text := normalizeWhitespace(doc.Find("body").Text())
	truncated := false
	if len(text) > fetchPageMaxChars {
		text = text[:fetchPageMaxChars]
		truncated = true
	}

	return map[string]any{
		"url":       target.String(),
		"title":     title,
		"text":      text,
		"truncated": truncated,
	}, nil
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
