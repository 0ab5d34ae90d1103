// Package catalog is the in-memory news store behind the development backend.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ChristosG/finsmart-client/api"
)

var (
	ErrSourceNotFound  = errors.New("source not found")
	ErrArticleNotFound = errors.New("article not found")
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type source struct {
	api.Source
	SiteURL string
	batches int
}

// Catalog holds sources and their articles. Article content is generated
// rather than scraped.
type Catalog struct {
	mu            sync.RWMutex
	sources       map[int64]*source
	articles      map[int64]*api.Article
	nextSourceID  int64
	nextArticleID int64
}

func New() *Catalog {
	return &Catalog{
		sources:  make(map[int64]*source),
		articles: make(map[int64]*api.Article),
	}
}

func (c *Catalog) Sources() []api.Source {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]api.Source, 0, len(c.sources))
	for _, s := range c.sources {
		out = append(out, s.Source)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Scrape finds or creates the source for siteURL and adds up to maxArticles
// articles to it.
func (c *Catalog) Scrape(siteURL, name string, maxArticles int) api.ScrapeResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == "" {
		name = hostOf(siteURL)
	}
	src := c.findByURL(siteURL)
	if src == nil {
		c.nextSourceID++
		src = &source{Source: api.Source{ID: c.nextSourceID, Name: name}, SiteURL: siteURL}
		c.sources[src.ID] = src
	}

	added := c.generate(src, maxArticles)
	return api.ScrapeResponse{
		Success:         true,
		Message:         fmt.Sprintf("Scraped %d articles from %s", added, src.Name),
		SourceID:        src.ID,
		ArticlesScraped: added,
	}
}

// RefreshSource adds a new batch of articles to an existing source.
func (c *Catalog) RefreshSource(id int64, maxArticles int) (api.RefreshSourceResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	src, ok := c.sources[id]
	if !ok {
		return api.RefreshSourceResponse{}, ErrSourceNotFound
	}
	added := c.generate(src, maxArticles)

	var resp api.RefreshSourceResponse
	resp.Success = true
	resp.Data.ArticlesScraped = added
	resp.Data.Message = fmt.Sprintf("Refreshed %s", src.Name)
	resp.Message = resp.Data.Message
	return resp, nil
}

// DeleteSource removes a source and every article that belongs to it.
func (c *Catalog) DeleteSource(id int64) (api.DeleteSourceResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	src, ok := c.sources[id]
	if !ok {
		return api.DeleteSourceResponse{}, ErrSourceNotFound
	}
	deleted := 0
	for aid, a := range c.articles {
		if a.SourceID == id {
			delete(c.articles, aid)
			deleted++
		}
	}
	delete(c.sources, id)

	return api.DeleteSourceResponse{
		Success:              true,
		Message:              fmt.Sprintf("Deleted %s", src.Name),
		DeletedSourceID:      id,
		DeletedArticlesCount: deleted,
	}, nil
}

// ListArticles returns one page of articles, newest first, without content.
func (c *Catalog) ListArticles(sourceID *int64, page, limit int) api.ArticlesPage {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	c.mu.RLock()
	matched := make([]api.Article, 0)
	for _, a := range c.articles {
		if sourceID == nil || a.SourceID == *sourceID {
			item := *a
			item.Content = ""
			matched = append(matched, item)
		}
	}
	c.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	pages := int(math.Ceil(float64(total) / float64(limit)))
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	return api.ArticlesPage{
		Articles: matched[start:end],
		Pagination: &api.Pagination{
			Page:       page,
			Limit:      limit,
			TotalCount: total,
			TotalPages: pages,
			HasNext:    page < pages,
			HasPrev:    page > 1,
		},
	}
}

func (c *Catalog) Article(id int64) (api.Article, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.articles[id]
	if !ok {
		return api.Article{}, ErrArticleNotFound
	}
	return *a, nil
}

// DeleteArticles removes the given ids, reporting which existed and which
// sources lost articles.
func (c *Catalog) DeleteArticles(ids []int64) api.DeleteArticlesResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp := api.DeleteArticlesResponse{
		DeletedArticleIDs: []int64{},
		AffectedSourceIDs: []int64{},
		NotFoundIDs:       []int64{},
	}
	affected := make(map[int64]struct{})
	for _, id := range ids {
		a, ok := c.articles[id]
		if !ok {
			resp.NotFoundIDs = append(resp.NotFoundIDs, id)
			continue
		}
		delete(c.articles, id)
		resp.DeletedArticleIDs = append(resp.DeletedArticleIDs, id)
		if _, seen := affected[a.SourceID]; !seen {
			affected[a.SourceID] = struct{}{}
			resp.AffectedSourceIDs = append(resp.AffectedSourceIDs, a.SourceID)
		}
	}

	resp.DeletedCount = len(resp.DeletedArticleIDs)
	resp.Success = resp.DeletedCount > 0
	resp.Message = fmt.Sprintf("Deleted %d articles", resp.DeletedCount)
	return resp
}

// Summary returns the article's summary, generating it on first request.
func (c *Catalog) Summary(id int64) (string, error) {
	return c.derive(id, func(a *api.Article) **string { return &a.Summary }, summarize)
}

// Analysis returns the article's analysis, generating it on first request.
func (c *Catalog) Analysis(id int64) (string, error) {
	return c.derive(id, func(a *api.Article) **string { return &a.Analysis }, analyze)
}

func (c *Catalog) derive(id int64, field func(*api.Article) **string, gen func(api.Article) string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.articles[id]
	if !ok {
		return "", ErrArticleNotFound
	}
	slot := field(a)
	if *slot == nil {
		text := gen(*a)
		*slot = &text
	}
	return **slot, nil
}

// generate must be called with the write lock held.
func (c *Catalog) generate(src *source, n int) int {
	src.batches++
	date := NowTimeFunc().UTC().Format("2006-01-02")
	for i := 1; i <= n; i++ {
		c.nextArticleID++
		authors := api.NoAuthors
		if i%2 == 0 {
			authors = src.Name + " Staff"
		}
		c.articles[c.nextArticleID] = &api.Article{
			ID:       c.nextArticleID,
			SourceID: src.ID,
			Title:    fmt.Sprintf("%s story %d.%d", src.Name, src.batches, i),
			Content: fmt.Sprintf("Markets moved on news from %s. Analysts expect volatility to continue. Story %d of batch %d.",
				src.Name, i, src.batches),
			Date:    &date,
			Authors: &authors,
			Link:    fmt.Sprintf("%s/articles/%d", strings.TrimRight(src.SiteURL, "/"), c.nextArticleID),
		}
	}
	return n
}

func (c *Catalog) findByURL(siteURL string) *source {
	for _, s := range c.sources {
		if s.SiteURL == siteURL {
			return s
		}
	}
	return nil
}

func summarize(a api.Article) string {
	if i := strings.Index(a.Content, ". "); i >= 0 {
		return a.Content[:i+1]
	}
	return a.Content
}

func analyze(a api.Article) string {
	words := len(strings.Fields(a.Content))
	sentiment := "neutral"
	if strings.Contains(strings.ToLower(a.Content), "volatility") {
		sentiment = "cautious"
	}
	return fmt.Sprintf("Sentiment: %s. Length: %d words.", sentiment, words)
}

func hostOf(siteURL string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(siteURL, "https://"), "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return host
}
