// Package fetcher imports web pages as knowledge-base articles
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pbaille/helpdesk/internal/domain"
	"golang.org/x/net/html"
)

const (
	maxBody = 5 * 1024 * 1024
	maxText = 10 * 1024
)

// Page is the readable content of a fetched document
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Form turns the page into an article form. Pages without a <title>
// are named after their URL.
func (p Page) Form(category, tags string) domain.ArticleForm {
	title := p.Title
	if title == "" {
		title = p.URL
	}
	return domain.ArticleForm{
		Title:    title,
		Content:  p.Text + "\n\nSource: " + p.URL,
		Category: category,
		Tags:     tags,
	}
}

// Client fetches pages over HTTP
type Client struct {
	HTTP      *http.Client
	UserAgent string
}

// New creates a client with a 30 second timeout
func New() *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		UserAgent: "helpdesk/1.0 (knowledge-base import)",
	}
}

// Fetch retrieves rawURL and extracts its title and readable text.
// A malformed URL is a validation error; network and HTTP failures are
// transport errors.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Page{}, &domain.TransportError{Err: fmt.Errorf("fetch %s: %w", u, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, &domain.TransportError{Err: fmt.Errorf("fetch %s: HTTP %d", u, resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Page{}, &domain.TransportError{Err: fmt.Errorf("read body: %w", err)}
	}

	title, text := extract(string(body))
	if text == "" {
		return Page{}, invalidURL("no text content found")
	}
	return Page{URL: u.String(), Title: title, Text: text}, nil
}

func parseURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, invalidURL("is required")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, invalidURL("is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, invalidURL("has unsupported scheme " + u.Scheme)
	}
	if u.Host == "" {
		return nil, invalidURL("has no host")
	}
	return u, nil
}

func invalidURL(msg string) error {
	return &domain.ValidationError{Fields: []domain.FieldError{{Field: "url", Message: msg}}}
}

var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true,
	"header": true, "footer": true, "aside": true,
	"noscript": true, "iframe": true, "title": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "br": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// extract returns the document title and its readable text, one
// paragraph per block element
func extract(doc string) (title, text string) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", ""
	}

	var lines []string
	var line strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(line.String()), " "); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
			}
			if skipTags[n.Data] {
				return
			}
		}
		if n.Type == html.TextNode {
			line.WriteString(n.Data)
			line.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			flush()
		}
	}
	walk(root)
	flush()

	text = strings.Join(lines, "\n")
	if len(text) > maxText {
		cut := maxText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return title, text
}
