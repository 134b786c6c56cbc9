package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const braveBaseURL = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave Search web API.
type Brave struct {
	APIKey  string
	BaseURL string
	// Limiter paces requests when set. The free plan allows one per second.
	Limiter *rate.Limiter
	client  *http.Client
}

// NewBrave builds a Brave searcher. A nil client gets a 10 second timeout.
func NewBrave(apiKey string, client *http.Client) *Brave {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Brave{APIKey: apiKey, BaseURL: braveBaseURL, client: client}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Profile     *struct {
				Name     string `json:"name"`
				LongName string `json:"long_name"`
			} `json:"profile"`
		} `json:"results"`
	} `json:"web"`
}

func (b *Brave) Search(ctx context.Context, query string, count int) ([]Document, error) {
	if strings.TrimSpace(b.APIKey) == "" {
		return nil, errors.New("brave: API key is missing")
	}
	if count <= 0 {
		count = DefaultNumResults
	}
	if b.Limiter != nil {
		if err := b.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("brave: rate limit wait: %w", err)
		}
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("count", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("brave returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode brave response: %w", err)
	}

	docs := make([]Document, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		doc := Document{Title: r.Title, URL: r.URL, Snippet: r.Description}
		if r.Profile != nil {
			doc.Source = strings.TrimSpace(r.Profile.Name + " - " + r.Profile.LongName)
		}
		docs = append(docs, doc)
		if len(docs) >= count {
			break
		}
	}
	return docs, nil
}
