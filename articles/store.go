// Package articles caches article pages per source, the current selection
// and fetched article details.
package articles

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/ChristosG/finsmart-client/api"
	apperrors "github.com/ChristosG/finsmart-client/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPage     = 1
	DefaultLimit    = 20
	DefaultAllLimit = 50
)

type API interface {
	ListArticles(ctx context.Context, q api.ArticlesQuery) (*api.ArticlesPage, error)
	GetArticle(ctx context.Context, id int64) (*api.Article, error)
	DeleteArticles(ctx context.Context, ids []int64) (*api.DeleteArticlesResponse, error)
	Summary(ctx context.Context, id int64) (string, error)
	Analysis(ctx context.Context, id int64) (string, error)
}

// SourceArticles is the cached view of one source's article list.
type SourceArticles struct {
	Articles    []api.Article
	Loading     bool
	Error       string
	LastFetched time.Time // zero marks the list as stale
	Pagination  *api.Pagination
	Selected    []int64
}

func (sa SourceArticles) clone() SourceArticles {
	sa.Articles = slices.Clone(sa.Articles)
	sa.Selected = slices.Clone(sa.Selected)
	if sa.Pagination != nil {
		p := *sa.Pagination
		sa.Pagination = &p
	}
	return sa
}

type Store struct {
	api API
	now func() time.Time

	mu        sync.RWMutex
	bySource  map[int64]*SourceArticles
	all       SourceArticles
	details   map[int64]api.Article
	deleting  bool
	deleteErr string
}

type StoreOption func(*Store)

func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(client API, opts ...StoreOption) *Store {
	s := &Store{
		api:      client,
		now:      time.Now,
		bySource: make(map[int64]*SourceArticles),
		details:  make(map[int64]api.Article),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseSourceID validates a source id taken from a path or argument.
func ParseSourceID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid sourceId: %s", apperrors.ErrInvalidRequest, raw)
	}
	return id, nil
}

// FetchBySource loads one page of a source's articles. With appendMode the
// page is added to what is already cached instead of replacing it.
func (s *Store) FetchBySource(ctx context.Context, rawSourceID string, page, limit int, appendMode bool) (SourceArticles, error) {
	sourceID, err := ParseSourceID(rawSourceID)
	if err != nil {
		return SourceArticles{}, err
	}
	page, limit = withDefaults(page, limit, DefaultLimit)

	s.mu.Lock()
	sa := s.source(sourceID)
	sa.Loading = true
	sa.Error = ""
	s.mu.Unlock()

	resp, err := s.api.ListArticles(ctx, api.ArticlesQuery{SourceID: &sourceID, Page: page, Limit: limit})

	s.mu.Lock()
	defer s.mu.Unlock()
	sa = s.source(sourceID)
	sa.Loading = false
	if err != nil {
		log.Err(err).Int64("source_id", sourceID).Msg("Error fetching articles")
		sa.Error = err.Error()
		return sa.clone(), err
	}

	sa.LastFetched = s.now()
	sa.Pagination = resp.Pagination
	if appendMode && len(sa.Articles) > 0 {
		sa.Articles = append(sa.Articles, resp.Articles...)
	} else {
		sa.Articles = resp.Articles
	}
	return sa.clone(), nil
}

// FetchAll loads one page across every source.
func (s *Store) FetchAll(ctx context.Context, page, limit int, appendMode bool) (SourceArticles, error) {
	page, limit = withDefaults(page, limit, DefaultAllLimit)

	s.mu.Lock()
	s.all.Loading = true
	s.all.Error = ""
	s.mu.Unlock()

	resp, err := s.api.ListArticles(ctx, api.ArticlesQuery{Page: page, Limit: limit})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.all.Loading = false
	if err != nil {
		log.Err(err).Msg("Error fetching articles")
		s.all.Error = err.Error()
		return s.all.clone(), err
	}

	s.all.LastFetched = s.now()
	s.all.Pagination = resp.Pagination
	if appendMode && len(s.all.Articles) > 0 {
		s.all.Articles = append(s.all.Articles, resp.Articles...)
	} else {
		s.all.Articles = resp.Articles
	}
	return s.all.clone(), nil
}

// Get returns an article from the cache, fetching it when unknown.
func (s *Store) Get(ctx context.Context, id int64) (api.Article, error) {
	if a, ok := s.cached(id); ok {
		return a, nil
	}

	a, err := s.api.GetArticle(ctx, id)
	if err != nil {
		return api.Article{}, err
	}

	s.mu.Lock()
	s.details[id] = *a
	s.mu.Unlock()
	return *a, nil
}

// Summary fetches the generated summary and caches it on the article.
func (s *Store) Summary(ctx context.Context, id int64) (string, error) {
	summary, err := s.api.Summary(ctx, id)
	if err != nil {
		return "", err
	}
	s.patchDetail(id, func(a *api.Article) { a.Summary = &summary })
	return summary, nil
}

// Analysis fetches the generated analysis and caches it on the article.
func (s *Store) Analysis(ctx context.Context, id int64) (string, error) {
	analysis, err := s.api.Analysis(ctx, id)
	if err != nil {
		return "", err
	}
	s.patchDetail(id, func(a *api.Article) { a.Analysis = &analysis })
	return analysis, nil
}

// Delete removes articles on the backend and prunes them from every cached
// list, selection and pagination total.
func (s *Store) Delete(ctx context.Context, ids []int64) (*api.DeleteArticlesResponse, error) {
	s.mu.Lock()
	s.deleting = true
	s.deleteErr = ""
	s.mu.Unlock()

	resp, err := s.api.DeleteArticles(ctx, ids)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleting = false
	if err != nil {
		log.Err(err).Ints64("article_ids", ids).Msg("Error deleting articles")
		s.deleteErr = err.Error()
		return nil, err
	}

	deleted := make(map[int64]struct{}, len(resp.DeletedArticleIDs))
	for _, id := range resp.DeletedArticleIDs {
		deleted[id] = struct{}{}
		delete(s.details, id)
	}

	singleSource := len(resp.AffectedSourceIDs) == 1
	for _, sourceID := range resp.AffectedSourceIDs {
		sa, ok := s.bySource[sourceID]
		if !ok {
			continue
		}
		removed := prune(sa, deleted)
		if singleSource {
			// Every deleted article belongs to this source, loaded or not.
			removed = len(deleted)
		}
		adjustPagination(sa.Pagination, removed)
	}
	adjustPagination(s.all.Pagination, prune(&s.all, deleted))

	return resp, nil
}

// Selection

func (s *Store) ToggleSelection(sourceID, articleID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sa := s.source(sourceID)
	if i := slices.Index(sa.Selected, articleID); i >= 0 {
		sa.Selected = slices.Delete(sa.Selected, i, i+1)
		return
	}
	sa.Selected = append(sa.Selected, articleID)
}

// SelectAll selects every article loaded for the source.
func (s *Store) SelectAll(sourceID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sa := s.source(sourceID)
	sa.Selected = make([]int64, 0, len(sa.Articles))
	for _, a := range sa.Articles {
		sa.Selected = append(sa.Selected, a.ID)
	}
}

func (s *Store) ClearSelection(sourceID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source(sourceID).Selected = []int64{}
}

func (s *Store) Selected(sourceID int64) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sa, ok := s.bySource[sourceID]; ok {
		return slices.Clone(sa.Selected)
	}
	return []int64{}
}

func (s *Store) IsSelected(sourceID, articleID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sa, ok := s.bySource[sourceID]
	return ok && slices.Contains(sa.Selected, articleID)
}

// Cache maintenance

// MarkStale forces the next NeedsFetch for the source to report true.
func (s *Store) MarkStale(sourceID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sa, ok := s.bySource[sourceID]; ok {
		sa.LastFetched = time.Time{}
	}
}

// NeedsFetch reports whether the source list is missing, stale or older than maxAge.
func (s *Store) NeedsFetch(sourceID int64, maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sa, ok := s.bySource[sourceID]
	if !ok || sa.LastFetched.IsZero() {
		return true
	}
	return s.now().Sub(sa.LastFetched) > maxAge
}

func (s *Store) ClearForSource(sourceID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySource[sourceID]; ok {
		s.bySource[sourceID] = newSourceArticles()
	}
}

func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySource = make(map[int64]*SourceArticles)
	s.all = SourceArticles{}
	s.details = make(map[int64]api.Article)
	s.deleteErr = ""
}

// Read side

func (s *Store) BySource(sourceID int64) SourceArticles {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sa, ok := s.bySource[sourceID]; ok {
		return sa.clone()
	}
	return *newSourceArticles()
}

func (s *Store) All() SourceArticles {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.all.clone()
}

func (s *Store) IsDeleting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleting
}

func (s *Store) DeleteError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleteErr
}

func (s *Store) ClearDeleteError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr = ""
}

// source returns the entry for id, creating it. Callers hold the write lock.
func (s *Store) source(id int64) *SourceArticles {
	sa, ok := s.bySource[id]
	if !ok {
		sa = newSourceArticles()
		s.bySource[id] = sa
	}
	return sa
}

func (s *Store) cached(id int64) (api.Article, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.details[id]; ok {
		return a, true
	}
	for _, sa := range s.bySource {
		for _, a := range sa.Articles {
			if a.ID == id {
				return a, true
			}
		}
	}
	for _, a := range s.all.Articles {
		if a.ID == id {
			return a, true
		}
	}
	return api.Article{}, false
}

func (s *Store) patchDetail(id int64, fn func(a *api.Article)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.details[id]
	if !ok {
		return
	}
	fn(&a)
	s.details[id] = a
}

func newSourceArticles() *SourceArticles {
	return &SourceArticles{Articles: []api.Article{}, Selected: []int64{}}
}

func withDefaults(page, limit, defaultLimit int) (int, int) {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return page, limit
}

// prune drops deleted articles and selections, returning how many articles were removed.
func prune(sa *SourceArticles, deleted map[int64]struct{}) int {
	before := len(sa.Articles)
	sa.Articles = slices.DeleteFunc(sa.Articles, func(a api.Article) bool {
		_, gone := deleted[a.ID]
		return gone
	})
	sa.Selected = slices.DeleteFunc(sa.Selected, func(id int64) bool {
		_, gone := deleted[id]
		return gone
	})
	return before - len(sa.Articles)
}

func adjustPagination(p *api.Pagination, removed int) {
	if p == nil || removed == 0 {
		return
	}
	p.TotalCount = max(p.TotalCount-removed, 0)
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(p.TotalCount) / float64(p.Limit)))
	}
	p.HasNext = p.Page < p.TotalPages
}
