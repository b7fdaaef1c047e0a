package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
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

// Arxiv searches the arXiv Atom API. Each entry becomes one document whose
// content is the title and abstract.
type Arxiv struct {
	BaseURL string
	client  *http.Client
}

func NewArxiv() *Arxiv {
	return &Arxiv{BaseURL: arxivBaseURL, client: &http.Client{}}
}

func (a *Arxiv) Search(ctx context.Context, query string, opts Options) ([]Document, error) {
	maxResults := opts.Limit
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{}
	params.Add("search_query", query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0") // Start from the first result

	apiURL := a.BaseURL + "?" + params.Encode()

	ctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create API request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to make API request: %w", err))
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned non-200 status code: %d, body: %s", resp.StatusCode, errorSnippet(body))
	}

	var feed ArxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	docs := make([]Document, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		title := strings.TrimSpace(entry.Title)
		docs = append(docs, Document{
			URL:     entry.pdfLink(),
			Title:   title,
			Content: fmt.Sprintf("# %s\nPublished: %s\n\n%s", title, entry.Published, strings.TrimSpace(entry.Summary)),
		})
		if len(docs) >= maxResults {
			break
		}
	}
	return docs, nil
}

// pdfLink prefers the PDF link and falls back to the abstract page id.
func (e ArxivEntry) pdfLink() string {
	for _, link := range e.Link {
		if link.Type == "application/pdf" {
			return strings.TrimSpace(link.Href)
		}
	}
	return strings.TrimSpace(e.ID)
}
