package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultNumResults is how many documents a search returns when the caller
// does not say.
const DefaultNumResults = 10

// Document is one search hit, optionally with its fetched page content.
type Document struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Content string `json:"content"`
	// Source names the site or publisher when the backend reports one.
	Source string `json:"source,omitempty"`
}

// Searcher runs a query against a search backend.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]Document, error)
}

// Fetcher downloads a URL and returns its content as text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// WebSearch combines a Searcher and a Fetcher into a search-and-contents call.
type WebSearch struct {
	Searcher Searcher
	Fetcher  Fetcher
	Logger   *slog.Logger
}

func NewWebSearch(searcher Searcher, fetcher Fetcher, logger *slog.Logger) *WebSearch {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSearch{Searcher: searcher, Fetcher: fetcher, Logger: logger}
}

// Search returns search hits without page content.
func (w *WebSearch) Search(ctx context.Context, query string, numResults int) ([]Document, error) {
	if numResults <= 0 {
		numResults = DefaultNumResults
	}
	docs, err := w.Searcher.Search(ctx, query, numResults)
	if err != nil {
		return nil, err
	}
	if len(docs) > numResults {
		docs = docs[:numResults]
	}
	return docs, nil
}

// SearchAndContents searches and then fetches every hit sequentially. A page
// that cannot be fetched keeps its snippet as content.
func (w *WebSearch) SearchAndContents(ctx context.Context, query string, numResults int) ([]Document, error) {
	docs, err := w.Search(ctx, query, numResults)
	if err != nil {
		return nil, err
	}
	w.Logger.Info("Search successful", "query", query, "count", len(docs))

	for i := range docs {
		docs[i].Content = docs[i].Snippet
		if w.Fetcher == nil || docs[i].URL == "" {
			continue
		}
		text, err := w.Fetcher.Fetch(ctx, docs[i].URL)
		if err != nil {
			w.Logger.Warn("Failed to fetch content, using snippet", "url", docs[i].URL, "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			docs[i].Content = text
		}
	}
	return docs, nil
}

// FormatSummaries renders hits as blank-line separated blocks of
// header, title, snippet and URL.
func FormatSummaries(docs []Document) string {
	blocks := make([]string, 0, len(docs))
	for _, d := range docs {
		var b strings.Builder
		if d.Source != "" {
			b.WriteString(d.Source + "\n")
		}
		fmt.Fprintf(&b, "%s\n%s\n%s", d.Title, d.Snippet, d.URL)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
