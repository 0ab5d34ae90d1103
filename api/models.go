package api

import (
	"time"

	"github.com/ChristosG/finsmart-client/users"
)

// NoAuthors is the placeholder the scraper stores when a page has no byline.
const NoAuthors = "No Authors Found"

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	EmailOrUsername string `json:"email_or_username"`
	Password        string `json:"password"`
	RememberMe      *bool  `json:"remember_me,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse is returned by signup, login and refresh.
type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         *users.User `json:"user"`
	ExpiresIn    int64       `json:"expires_in"` // seconds
}

func (r AuthResponse) ExpiresInDuration() time.Duration {
	return time.Duration(r.ExpiresIn) * time.Second
}

type Source struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type RefreshSourceRequest struct {
	MaxArticles int `json:"max_articles"`
}

type RefreshSourceResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ArticlesScraped int    `json:"articles_scraped"`
		ArticlesSkipped int    `json:"articles_skipped"`
		Message         string `json:"message"`
	} `json:"data"`
	Message string `json:"message"`
}

type DeleteSourceResponse struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	DeletedSourceID      int64  `json:"deleted_source_id"`
	DeletedArticlesCount int    `json:"deleted_articles_count"`
}

type ScrapeRequest struct {
	SiteURL     string `json:"site_url"`
	SourceName  string `json:"source_name"`
	MaxArticles int    `json:"max_articles"`
}

type ScrapeResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	SourceID        int64  `json:"source_id,omitempty"`
	ArticlesScraped int    `json:"articles_scraped,omitempty"`
}

type Article struct {
	ID        int64   `json:"id"`
	SourceID  int64   `json:"source_id"`
	Title     string  `json:"title"`
	Content   string  `json:"content,omitempty"`
	Date      *string `json:"date,omitempty"`
	Authors   *string `json:"authors,omitempty"`
	Link      string  `json:"link,omitempty"`
	Summary   *string `json:"summary,omitempty"`
	Analysis  *string `json:"analysis,omitempty"`
	UserNotes *string `json:"user_notes,omitempty"`
}

// AuthorList returns the byline as a list, empty when the scraper found none.
func (a Article) AuthorList() []string {
	if a.Authors == nil || *a.Authors == "" || *a.Authors == NoAuthors {
		return []string{}
	}
	return []string{*a.Authors}
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

type ArticlesPage struct {
	Articles   []Article   `json:"articles"`
	Pagination *Pagination `json:"pagination"`
}

// ArticlesQuery filters /api/articles. A nil SourceID lists every source.
type ArticlesQuery struct {
	SourceID *int64
	Page     int
	Limit    int
}

type DeleteArticlesRequest struct {
	ArticleIDs []int64 `json:"article_ids"`
}

type DeleteArticlesResponse struct {
	Success           bool    `json:"success"`
	Message           string  `json:"message"`
	DeletedCount      int     `json:"deleted_count"`
	DeletedArticleIDs []int64 `json:"deleted_article_ids"`
	AffectedSourceIDs []int64 `json:"affected_source_ids"`
	NotFoundIDs       []int64 `json:"not_found_ids"`
}

type SummaryResponse struct {
	Summary string `json:"summary"`
}

type AnalysisResponse struct {
	Analysis string `json:"analysis"`
}

// ErrorBody is the error payload shape the backend uses.
type ErrorBody struct {
	Detail  any    `json:"detail,omitempty"`
	Message string `json:"message,omitempty"`
}

// FieldError is one entry of a 422 validation detail list.
type FieldError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}
