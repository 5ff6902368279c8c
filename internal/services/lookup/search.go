package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/anything-ai/anything-ai/internal/services/cache"
	"github.com/sirupsen/logrus"
)

const searchNamespace = "search"

var searchPattern = regexp.MustCompile(`(?i)\b(latest|news|today|current(?:ly)?|recent(?:ly)?|this (?:week|month|year)|right now|price of|stock|score|election|who won|search|look up|google|update[sd]?|20[2-3][0-9])\b`)

// SearchProvider grounds answers with Google Custom Search results
type SearchProvider struct {
	endpoint   string
	apiKey     string
	engineID   string
	maxResults int
	client     *http.Client
	cache      cache.Service
	logger     *logrus.Logger
	now        func() time.Time
}

// NewSearchProvider creates a search provider
func NewSearchProvider(cfg *config.LookupConfig, client *http.Client, c cache.Service, logger *logrus.Logger) *SearchProvider {
	maxResults := cfg.SearchMaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &SearchProvider{
		endpoint:   cfg.SearchURL,
		apiKey:     cfg.SearchAPIKey,
		engineID:   cfg.SearchEngineID,
		maxResults: maxResults,
		client:     client,
		cache:      c,
		logger:     logger,
		now:        time.Now,
	}
}

// Enabled reports whether search credentials are configured
func (p *SearchProvider) Enabled() bool {
	return p.apiKey != "" && p.engineID != ""
}

// Triggered reports whether the message asks for current information
func (p *SearchProvider) Triggered(message string) bool {
	return searchPattern.MatchString(message)
}

// ResolveWebContext searches for the message and returns ranked, deduplicated
// results. Search is best effort: any failure yields nil.
func (p *SearchProvider) ResolveWebContext(ctx context.Context, message string) *models.WebContext {
	if !p.Enabled() || !p.Triggered(message) {
		return nil
	}

	query := strings.TrimSpace(message)
	if cached, ok := p.cache.Get(ctx, searchNamespace, query); ok {
		if wc, ok := cached.(*models.WebContext); ok {
			return wc
		}
	}

	results, err := p.search(ctx, query)
	if err != nil {
		p.logger.WithError(err).Warn("Web search failed")
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	wc := &models.WebContext{
		Results:     results,
		LastUpdated: p.now().UTC(),
	}
	p.cache.Set(ctx, searchNamespace, query, wc)
	return wc
}

func (p *SearchProvider) search(ctx context.Context, query string) ([]models.WebResult, error) {
	params := url.Values{}
	params.Set("key", p.apiKey)
	params.Set("cx", p.engineID)
	params.Set("q", query)
	params.Set("num", fmt.Sprintf("%d", min(p.maxResults*2, 10)))

	var result struct {
		Items []models.WebResult `json:"items"`
	}
	if err := getJSON(ctx, p.client, p.endpoint+"?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	ranked := rankResults(query, dedupeResults(result.Items))
	if len(ranked) > p.maxResults {
		ranked = ranked[:p.maxResults]
	}
	return ranked, nil
}

func dedupeResults(results []models.WebResult) []models.WebResult {
	seen := make(map[string]bool, len(results))
	out := make([]models.WebResult, 0, len(results))
	for _, r := range results {
		key := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(r.Link)), "/")
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// rankResults orders results by how many query terms they mention.
// Ties keep the search engine's order.
func rankResults(query string, results []models.WebResult) []models.WebResult {
	var terms []string
	for _, term := range strings.Fields(strings.ToLower(query)) {
		term = strings.Trim(term, "?!.,;:\"'()")
		if len(term) > 2 {
			terms = append(terms, term)
		}
	}

	scores := make(map[int]int, len(results))
	for i, r := range results {
		text := strings.ToLower(r.Title + " " + r.Snippet)
		for _, term := range terms {
			if strings.Contains(text, term) {
				scores[i]++
			}
		}
	}

	idx := make([]int, len(results))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	ranked := make([]models.WebResult, len(results))
	for i, j := range idx {
		ranked[i] = results[j]
	}
	return ranked
}

// FormatWebContext renders search results as prompt context
func FormatWebContext(wc *models.WebContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Web search results (retrieved %s):\n", wc.LastUpdated.Format(time.RFC3339))
	for i, r := range wc.Results {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n", i+1, r.Title, r.Link, r.Snippet)
	}
	return strings.TrimSpace(b.String())
}
