// Package sources caches the user's news sources and tracks per-source
// refresh and delete operations.
package sources

import (
	"context"
	"sync"

	"github.com/ChristosG/finsmart-client/api"
	"github.com/rs/zerolog/log"
)

const DefaultMaxArticles = 20

type API interface {
	ListSources(ctx context.Context) ([]api.Source, error)
	RefreshSource(ctx context.Context, id int64, maxArticles int) (*api.RefreshSourceResponse, error)
	DeleteSource(ctx context.Context, id int64) (*api.DeleteSourceResponse, error)
	Scrape(ctx context.Context, req api.ScrapeRequest) (*api.ScrapeResponse, error)
}

// Store is safe for concurrent use.
type Store struct {
	api API

	mu            sync.RWMutex
	sources       []api.Source
	loading       bool
	err           string
	refreshing    map[int64]bool
	refreshErrors map[int64]string
	deleting      map[int64]bool
	deleteErrors  map[int64]string

	onRefreshed []func(sourceID int64)
}

func NewStore(client API) *Store {
	return &Store{
		api:           client,
		refreshing:    make(map[int64]bool),
		refreshErrors: make(map[int64]string),
		deleting:      make(map[int64]bool),
		deleteErrors:  make(map[int64]string),
	}
}

// OnRefreshed registers fn to run after a source was refreshed successfully.
func (s *Store) OnRefreshed(fn func(sourceID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRefreshed = append(s.onRefreshed, fn)
}

func (s *Store) Fetch(ctx context.Context) ([]api.Source, error) {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()

	list, err := s.api.ListSources(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		log.Err(err).Msg("Error fetching sources")
		s.err = err.Error()
		return nil, err
	}
	s.sources = list
	return cloneSources(list), nil
}

// Refresh re-scrapes a source. maxArticles <= 0 uses DefaultMaxArticles.
func (s *Store) Refresh(ctx context.Context, id int64, maxArticles int) (*api.RefreshSourceResponse, error) {
	if maxArticles <= 0 {
		maxArticles = DefaultMaxArticles
	}

	s.mu.Lock()
	s.refreshing[id] = true
	delete(s.refreshErrors, id)
	s.mu.Unlock()

	resp, err := s.api.RefreshSource(ctx, id, maxArticles)

	s.mu.Lock()
	s.refreshing[id] = false
	if err != nil {
		log.Err(err).Int64("source_id", id).Msg("Error refreshing source")
		s.refreshErrors[id] = err.Error()
		s.mu.Unlock()
		return nil, err
	}
	hooks := append([]func(int64){}, s.onRefreshed...)
	s.mu.Unlock()

	log.Debug().Int64("source_id", id).Int("scraped", resp.Data.ArticlesScraped).Int("skipped", resp.Data.ArticlesSkipped).Msg("Source refreshed")
	for _, fn := range hooks {
		fn(id)
	}
	return resp, nil
}

func (s *Store) Delete(ctx context.Context, id int64) (*api.DeleteSourceResponse, error) {
	s.mu.Lock()
	s.deleting[id] = true
	delete(s.deleteErrors, id)
	s.mu.Unlock()

	resp, err := s.api.DeleteSource(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleting[id] = false
	if err != nil {
		log.Err(err).Int64("source_id", id).Msg("Error deleting source")
		s.deleteErrors[id] = err.Error()
		return nil, err
	}

	kept := s.sources[:0:0]
	for _, src := range s.sources {
		if src.ID != id {
			kept = append(kept, src)
		}
	}
	s.sources = kept
	return resp, nil
}

// Add scrapes a new site and reloads the source list.
func (s *Store) Add(ctx context.Context, req api.ScrapeRequest) (*api.ScrapeResponse, error) {
	resp, err := s.api.Scrape(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := s.Fetch(ctx); err != nil {
		log.Warn().Err(err).Msg("Source added but the list could not be reloaded")
	}
	return resp, nil
}

// Read side

func (s *Store) Sources() []api.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSources(s.sources)
}

func (s *Store) ByID(id int64) (api.Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, src := range s.sources {
		if src.ID == id {
			return src, true
		}
	}
	return api.Source{}, false
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) IsRefreshing(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshing[id]
}

func (s *Store) RefreshError(id int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshErrors[id]
}

func (s *Store) IsDeleting(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleting[id]
}

func (s *Store) DeleteError(id int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleteErrors[id]
}

func (s *Store) ClearRefreshError(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refreshErrors, id)
}

func (s *Store) ClearDeleteError(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deleteErrors, id)
}

// Reset drops everything cached, used on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = nil
	s.err = ""
	s.loading = false
	s.refreshing = make(map[int64]bool)
	s.refreshErrors = make(map[int64]string)
	s.deleting = make(map[int64]bool)
	s.deleteErrors = make(map[int64]string)
}

func cloneSources(in []api.Source) []api.Source {
	out := make([]api.Source, len(in))
	copy(out, in)
	return out
}
