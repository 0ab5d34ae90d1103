package server_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ChristosG/finsmart-client/api"
	"github.com/ChristosG/finsmart-client/internal/config"
	"github.com/ChristosG/finsmart-client/server"
	"github.com/stretchr/testify/require"
)

const strongPassword = "Secret123"

type bearer struct {
	token string
	base  http.RoundTripper
}

func (b *bearer) RoundTrip(r *http.Request) (*http.Response, error) {
	if b.token != "" {
		r = r.Clone(r.Context())
		r.Header.Set("Authorization", "Bearer "+b.token)
	}
	return b.base.RoundTrip(r)
}

type testFixture struct {
	server *server.Server
	url    string
	auth   *bearer
	client *api.Client
}

func setupTestFixture(t *testing.T, opts ...server.Option) *testFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("ACCESS_TOKEN_TTL", "1m")

	s, err := server.New(config.New(), append([]server.Option{server.WithoutSeedData()}, opts...)...)
	require.NoError(t, err)

	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	auth := &bearer{base: ts.Client().Transport}
	client := api.NewClient(ts.URL, api.WithHTTPClient(&http.Client{Transport: auth}))
	return &testFixture{server: s, url: ts.URL, auth: auth, client: client}
}

func (f *testFixture) signup(t *testing.T, username string) *api.AuthResponse {
	t.Helper()
	resp, err := f.client.Signup(context.Background(), api.SignupRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: strongPassword,
	})
	require.NoError(t, err)
	f.auth.token = resp.AccessToken
	return resp
}

func TestSignupLoginAndMe(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	signed := f.signup(t, "alice")
	require.Equal(t, "alice", signed.User.Username)
	require.Equal(t, int64(60), signed.ExpiresIn)

	f.auth.token = ""
	login, err := f.client.Login(ctx, api.LoginRequest{EmailOrUsername: "alice@example.com", Password: strongPassword})
	require.NoError(t, err)
	f.auth.token = login.AccessToken

	me, err := f.client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, signed.User.ID, me.ID)
	require.NotEmpty(t, me.CreatedAt)
}

func TestLoginWrongPassword(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t, "alice")

	_, err := f.client.Login(context.Background(), api.LoginRequest{EmailOrUsername: "alice", Password: "wrong"})
	require.True(t, api.IsUnauthorized(err))
	require.EqualError(t, err, "Incorrect email/username or password")
}

func TestSignupValidation(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.client.Signup(ctx, api.SignupRequest{Username: "bob", Email: "bob@example.com", Password: "short"})
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Equal(t, "body.password: password must be at least 8 characters long", apiErr.Message)

	f.signup(t, "bob")
	_, err = f.client.Signup(ctx, api.SignupRequest{Username: "bob", Email: "other@example.com", Password: strongPassword})
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestRefreshRotates(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	first := f.signup(t, "alice")

	second, err := f.client.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, int64(1), f.server.RefreshCount())

	_, err = f.client.Refresh(ctx, first.RefreshToken)
	require.True(t, api.IsUnauthorized(err))
	require.Equal(t, int64(1), f.server.RefreshCount())
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	signed := f.signup(t, "alice")

	require.NoError(t, f.client.Logout(ctx))

	_, err := f.client.Me(ctx)
	require.True(t, api.IsUnauthorized(err))
	_, err = f.client.Refresh(ctx, signed.RefreshToken)
	require.True(t, api.IsUnauthorized(err))
}

func TestLogoutAllRevokesOtherSessions(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t, "alice")

	f.auth.token = ""
	other, err := f.client.Login(ctx, api.LoginRequest{EmailOrUsername: "alice", Password: strongPassword})
	require.NoError(t, err)
	f.auth.token = other.AccessToken
	require.NoError(t, f.client.LogoutAll(ctx))

	_, err = f.client.Me(ctx)
	require.True(t, api.IsUnauthorized(err))
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	f := setupTestFixture(t)

	for _, path := range []string{api.PathMe, api.PathSources, api.PathArticles} {
		resp, err := http.Get(f.url + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	f.auth.token = "garbage"
	_, err := f.client.ListSources(context.Background())
	require.True(t, api.IsUnauthorized(err))
}

func TestNewsFlow(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t, "alice")

	scraped, err := f.client.Scrape(ctx, api.ScrapeRequest{SiteURL: "https://news.example.com", SourceName: "Example", MaxArticles: 3})
	require.NoError(t, err)
	require.True(t, scraped.Success)
	require.Equal(t, 3, scraped.ArticlesScraped)

	sources, err := f.client.ListSources(ctx)
	require.NoError(t, err)
	require.Equal(t, []api.Source{{ID: scraped.SourceID, Name: "Example"}}, sources)

	refreshed, err := f.client.RefreshSource(ctx, scraped.SourceID, 2)
	require.NoError(t, err)
	require.Equal(t, 2, refreshed.Data.ArticlesScraped)

	page, err := f.client.ListArticles(ctx, api.ArticlesQuery{SourceID: &scraped.SourceID, Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Articles, 2)
	require.Equal(t, 5, page.Pagination.TotalCount)
	require.True(t, page.Pagination.HasNext)

	id := page.Articles[0].ID
	article, err := f.client.GetArticle(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, article.Content)

	summary, err := f.client.Summary(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, summary)
	analysis, err := f.client.Analysis(ctx, id)
	require.NoError(t, err)
	require.Contains(t, analysis, "Sentiment")

	audio, contentType, err := f.client.Audio(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "audio/mpeg", contentType)
	require.Equal(t, "ID3", string(audio[:3]))

	deleted, err := f.client.DeleteArticles(ctx, []int64{id, 9999})
	require.NoError(t, err)
	require.Equal(t, []int64{id}, deleted.DeletedArticleIDs)
	require.Equal(t, []int64{scraped.SourceID}, deleted.AffectedSourceIDs)
	require.Equal(t, []int64{9999}, deleted.NotFoundIDs)

	_, err = f.client.GetArticle(ctx, id)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Equal(t, "Article not found", apiErr.Message)

	removed, err := f.client.DeleteSource(ctx, scraped.SourceID)
	require.NoError(t, err)
	require.Equal(t, 4, removed.DeletedArticlesCount)
}

func TestScrapeRejectsBadURL(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t, "alice")

	_, err := f.client.Scrape(context.Background(), api.ScrapeRequest{SiteURL: "ftp://x", MaxArticles: 1})
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Contains(t, apiErr.Message, "body.site_url")
}

func TestDemoSeed(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("DEMO_USER", "demo")
	t.Setenv("DEMO_PASSWORD", strongPassword)

	s, err := server.New(config.New())
	require.NoError(t, err)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	auth := &bearer{base: ts.Client().Transport}
	client := api.NewClient(ts.URL, api.WithHTTPClient(&http.Client{Transport: auth}))
	login, err := client.Login(context.Background(), api.LoginRequest{EmailOrUsername: "demo", Password: strongPassword})
	require.NoError(t, err)
	auth.token = login.AccessToken

	sources, err := client.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, "FinSmart Demo", sources[0].Name)
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t, "alice")

	resp, err := http.Get(f.url + server.RouteMetrics)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `http_requests_total{method="POST",path="POST /api/auth/signup",status="201"}`)
}

func TestRunJanitorStopsWithContext(t *testing.T) {
	f := setupTestFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.server.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}
