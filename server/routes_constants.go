package server

import "github.com/ChristosG/finsmart-client/api"

// Route path constants
// The client and the backend share the paths declared in package api.
const (
	// Auth Routes
	RouteSignup    = api.PathSignup
	RouteLogin     = api.PathLogin
	RouteRefresh   = api.PathRefresh
	RouteMe        = api.PathMe
	RouteLogout    = api.PathLogout
	RouteLogoutAll = api.PathLogoutAll

	// Source Routes
	RouteSources       = api.PathSources
	RouteSource        = api.PathSources + "/{id}"
	RouteSourceRefresh = api.PathSources + "/{id}/refresh"
	RouteScrape        = api.PathScrape

	// Article Routes
	RouteArticles        = api.PathArticles
	RouteArticle         = api.PathArticles + "/{id}"
	RouteArticleSummary  = api.PathArticles + "/{id}/summary"
	RouteArticleAnalysis = api.PathArticles + "/{id}/analysis"
	RouteArticleAudio    = api.PathArticles + "/{id}/audio"

	// Operational Routes
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
