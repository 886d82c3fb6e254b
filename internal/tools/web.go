package tools

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/synapse-agents/synapse/internal/gateway"
	"github.com/synapse-agents/synapse/internal/progress"
)

// SearchWebProvider returns deterministic simulated search results. A real
// search backend is a collaborator concern; this stand-in keeps the workflow
// runnable and testable without one.
func SearchWebProvider() gateway.Provider {
	return gateway.Provider{
		Name:        "search_web",
		Description: "Search the web for information related to the query.",
		ParamSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"minLength": 1,
					"description": "Search query"
				},
				"max_results": {
					"type": "integer",
					"minimum": 1,
					"maximum": 20
				}
			},
			"required": ["query"]
		}`),
		Handler: func(_ context.Context, params map[string]any, _ progress.Sink) (any, error) {
			query, _ := params["query"].(string)
			max := 5
			if n, ok := params["max_results"].(float64); ok {
				max = int(n)
			}

			slug := querySlug(query)
			results := make([]map[string]string, 0, max)
			for i := 0; i < max; i++ {
				results = append(results, map[string]string{
					"url":     fmt.Sprintf("https://example.org/%s/article-%d", slug, i+1),
					"title":   fmt.Sprintf("Result %d for %q", i+1, query),
					"snippet": fmt.Sprintf("Overview %d of findings related to %s.", i+1, query),
				})
			}
			return map[string]any{
				"results":         results,
				"query_processed": strings.ToLower(strings.TrimSpace(query)),
			}, nil
		},
	}
}

// BrowseExtractProvider simulates fetching a URL and extracting its main
// text, reporting progress at each phase the way a real extractor would.
func BrowseExtractProvider() gateway.Provider {
	return gateway.Provider{
		Name:        "browse_and_extract",
		Description: "Browse a URL and extract the main text content, streaming progress.",
		ParamSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {
					"type": "string",
					"minLength": 1,
					"description": "URL to browse"
				}
			},
			"required": ["url"]
		}`),
		Handler: func(ctx context.Context, params map[string]any, sink progress.Sink) (any, error) {
			url, _ := params["url"].(string)

			phases := []struct {
				message string
				percent float64
			}{
				{"Connecting to URL...", 10},
				{"Downloading content...", 30},
				{"Parsing HTML structure...", 60},
				{"Extracting main content...", 80},
			}
			for _, phase := range phases {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(10 * time.Millisecond):
				}
				sink.Report(phase.message, phase.percent)
			}

			content := simulatedArticle(url)
			return map[string]any{
				"url":        url,
				"title":      "Extracted: " + url,
				"content":    content,
				"word_count": len(strings.Fields(content)),
			}, nil
		},
	}
}

// querySlug derives a stable short token from the query so simulated URLs
// are deterministic per query.
func querySlug(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return fmt.Sprintf("%x", sum[:4])
}

func simulatedArticle(url string) string {
	return fmt.Sprintf(
		"Main content extracted from %s. The article discusses the topic in depth, "+
			"covering recent developments, key findings from multiple sources, and "+
			"open questions that remain under active investigation.", url)
}
