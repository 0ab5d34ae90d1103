package server

import (
	"net/http"

	"github.com/ChristosG/finsmart-client/internal/metrics"
)

func (s *Server) initRoutes() {
	// AUTH
	s.api("POST "+RouteSignup, s.SignupHandler())
	s.api("POST "+RouteLogin, s.LoginHandler())
	s.api("POST "+RouteRefresh, s.RefreshHandler())
	s.api("GET "+RouteMe, s.MeHandler(), s.RequireAuth())
	s.api("POST "+RouteLogout, s.LogoutHandler(), s.RequireAuth())
	s.api("POST "+RouteLogoutAll, s.LogoutAllHandler(), s.RequireAuth())

	// SOURCES
	s.api("GET "+RouteSources, s.ListSourcesHandler(), s.RequireAuth())
	s.api("POST "+RouteSourceRefresh, s.RefreshSourceHandler(), s.RequireAuth())
	s.api("DELETE "+RouteSource, s.DeleteSourceHandler(), s.RequireAuth())
	s.api("POST "+RouteScrape, s.ScrapeHandler(), s.RequireAuth())

	// ARTICLES
	s.api("GET "+RouteArticles, s.ListArticlesHandler(), s.RequireAuth())
	s.api("DELETE "+RouteArticles, s.DeleteArticlesHandler(), s.RequireAuth())
	s.api("GET "+RouteArticle, s.ArticleHandler(), s.RequireAuth())
	s.api("GET "+RouteArticleSummary, s.SummaryHandler(), s.RequireAuth())
	s.api("GET "+RouteArticleAnalysis, s.AnalysisHandler(), s.RequireAuth())
	s.api("GET "+RouteArticleAudio, s.AudioHandler(), s.RequireAuth())

	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
	s.RegisterRouteFunc("GET "+RouteHealth, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// api registers an instrumented JSON route behind the standard API middleware.
func (s *Server) api(pattern string, handler http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) {
	chain := append(s.APIMiddleware(), mw...)
	s.RegisterRouteFunc(pattern, metrics.Instrument(pattern, ChainMiddleware(handler, chain...)))
}
