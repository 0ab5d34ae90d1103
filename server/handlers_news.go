package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ChristosG/finsmart-client/api"
	"github.com/ChristosG/finsmart-client/server/catalog"
)

const (
	defaultMaxArticles = 20
	defaultPageLimit   = 20
)

func (s *Server) ListSourcesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.catalog.Sources())
	}
}

func (s *Server) RefreshSourceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		req := api.RefreshSourceRequest{MaxArticles: defaultMaxArticles}
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}
		if req.MaxArticles <= 0 {
			req.MaxArticles = defaultMaxArticles
		}

		resp, err := s.catalog.RefreshSource(id, req.MaxArticles)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) DeleteSourceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		resp, err := s.catalog.DeleteSource(id)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) ScrapeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.ScrapeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if !strings.HasPrefix(req.SiteURL, "http://") && !strings.HasPrefix(req.SiteURL, "https://") {
			writeValidationError(w, api.FieldError{Loc: []any{"body", "site_url"}, Msg: "URL scheme should be 'http' or 'https'"})
			return
		}
		if req.MaxArticles <= 0 {
			req.MaxArticles = defaultMaxArticles
		}
		writeJSON(w, http.StatusOK, s.catalog.Scrape(req.SiteURL, req.SourceName, req.MaxArticles))
	}
}

func (s *Server) ListArticlesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sourceID *int64
		if raw := r.URL.Query().Get("sourceId"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeValidationError(w, api.FieldError{Loc: []any{"query", "sourceId"}, Msg: "value is not a valid integer"})
				return
			}
			sourceID = &id
		}
		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", defaultPageLimit)
		writeJSON(w, http.StatusOK, s.catalog.ListArticles(sourceID, page, limit))
	}
}

func (s *Server) DeleteArticlesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.DeleteArticlesRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if len(req.ArticleIDs) == 0 {
			writeValidationError(w, api.FieldError{Loc: []any{"body", "article_ids"}, Msg: "ensure this value has at least 1 items"})
			return
		}
		writeJSON(w, http.StatusOK, s.catalog.DeleteArticles(req.ArticleIDs))
	}
}

func (s *Server) ArticleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		article, err := s.catalog.Article(id)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, article)
	}
}

func (s *Server) SummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		summary, err := s.catalog.Summary(id)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, api.SummaryResponse{Summary: summary})
	}
}

func (s *Server) AnalysisHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		analysis, err := s.catalog.Analysis(id)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, api.AnalysisResponse{Analysis: analysis})
	}
}

// AudioHandler returns a placeholder MPEG frame stream for the article.
func (s *Server) AudioHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		article, err := s.catalog.Article(id)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(append([]byte("ID3"), []byte(article.Title)...))
	}
}

func writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrSourceNotFound):
		writeError(w, http.StatusNotFound, "Source not found")
	case errors.Is(err, catalog.ErrArticleNotFound):
		writeError(w, http.StatusNotFound, "Article not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
