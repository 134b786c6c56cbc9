package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const mistralOCRURL = "https://api.mistral.ai/v1/ocr"

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

// MistralOCR extracts the contents of a PDF document as markdown using the
// Mistral OCR API.
type MistralOCR struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

func NewMistralOCR(apiKey string, client *http.Client) *MistralOCR {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &MistralOCR{APIKey: apiKey, BaseURL: mistralOCRURL, client: client}
}

// ScrapePDF returns the markdown of every page of the document at url.
func (m *MistralOCR) ScrapePDF(ctx context.Context, url string) (string, error) {
	if m.APIKey == "" {
		return "", fmt.Errorf("MISTRAL_API_KEY is not set")
	}
	url = strings.Replace(url, "http://", "https://", 1)

	jsonBody, err := json.Marshal(ocrRequest{
		Model:    "mistral-ocr-latest",
		Document: ocrDocument{Type: "document_url", DocumentURL: url},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}
	clientReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	clientReq.Header.Set("Content-Type", "application/json")
	clientReq.Header.Set("Authorization", "Bearer "+m.APIKey)

	resp, err := m.client.Do(clientReq)
	if err != nil {
		return "", fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status: %s, body: %s", resp.Status, string(body))
	}

	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal OCR response: %w", err)
	}

	var b strings.Builder
	for _, page := range parsed.Pages {
		fmt.Fprintf(&b, "- Page %d -\n", page.Index)
		b.WriteString(page.Markdown + "\n\n")
	}
	return b.String(), nil
}
