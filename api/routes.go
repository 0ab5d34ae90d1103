package api

import "strconv"

// Backend paths, relative to the base URL.
const (
	PathSignup    = "/api/auth/signup"
	PathLogin     = "/api/auth/login"
	PathRefresh   = "/api/auth/refresh"
	PathMe        = "/api/auth/me"
	PathLogout    = "/api/auth/logout"
	PathLogoutAll = "/api/auth/logout-all"

	PathArticles = "/api/articles"
	PathSources  = "/api/sources"
	PathScrape   = "/api/scrape"
)

func ArticlePath(id int64) string {
	return PathArticles + "/" + strconv.FormatInt(id, 10)
}

func ArticleSummaryPath(id int64) string {
	return ArticlePath(id) + "/summary"
}

func ArticleAnalysisPath(id int64) string {
	return ArticlePath(id) + "/analysis"
}

func ArticleAudioPath(id int64) string {
	return ArticlePath(id) + "/audio"
}

func SourcePath(id int64) string {
	return PathSources + "/" + strconv.FormatInt(id, 10)
}

func SourceRefreshPath(id int64) string {
	return SourcePath(id) + "/refresh"
}
