package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const arxivBaseURL = "https://export.arxiv.org/api/query"

// ArxivEntry struct to hold arXiv entry data
type ArxivEntry struct {
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []ArxivLink `xml:"link"`
}

// ArxivLink struct to hold arXiv link data
type ArxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// ArxivFeed struct to hold the entire arXiv feed
type ArxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []ArxivEntry `xml:"entry"`
}

// Arxiv searches the arXiv Atom API. Hits point at the paper PDF when one
// is listed.
type Arxiv struct {
	BaseURL string
	client  *http.Client
}

func NewArxiv(client *http.Client) *Arxiv {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Arxiv{BaseURL: arxivBaseURL, client: client}
}

func (a *Arxiv) Search(ctx context.Context, query string, count int) ([]Document, error) {
	if count <= 0 {
		count = DefaultNumResults
	}

	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(count))
	params.Add("start", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned non-200 status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var feed ArxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	docs := make([]Document, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		link := strings.TrimSpace(entry.ID)
		for _, l := range entry.Link {
			if l.Type == "application/pdf" {
				link = l.Href
				break
			}
		}
		docs = append(docs, Document{
			Title:   collapseSpace(entry.Title),
			URL:     link,
			Snippet: collapseSpace(entry.Summary),
			Source:  "arXiv - published " + entry.Published,
		})
	}
	return docs, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
