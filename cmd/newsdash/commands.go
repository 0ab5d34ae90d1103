package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/ChristosG/finsmart-client/api"
	"github.com/ChristosG/finsmart-client/articles"
	"github.com/ChristosG/finsmart-client/guard"
	apperrors "github.com/ChristosG/finsmart-client/internal/errors"
	"github.com/ChristosG/finsmart-client/internal/utils"
	"github.com/ChristosG/finsmart-client/users"
)

type command func(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error

var commands = map[string]command{
	"login":           loginCmd,
	"signup":          signupCmd,
	"logout":          logoutCmd,
	"whoami":          whoamiCmd,
	"sources":         sourcesCmd,
	"scrape":          scrapeCmd,
	"refresh-source":  refreshSourceCmd,
	"delete-source":   deleteSourceCmd,
	"articles":        articlesCmd,
	"article":         articleCmd,
	"delete-articles": deleteArticlesCmd,
}

var (
	errNotLoggedIn    = fmt.Errorf("%w, run: newsdash login", apperrors.ErrNotAuthenticated)
	errSessionLoading = errors.New("session is still being restored, try again")
)

// requireSession lets a command through only when the guard would show the
// protected view, loading the profile first if the session has none.
func requireSession(ctx context.Context, e *env) error {
	decision := e.app.Guard.Evaluate()
	switch decision.View {
	case guard.ViewLoading:
		return errSessionLoading
	case guard.ViewAuthForm:
		return errNotLoggedIn
	}
	if decision.FetchUser {
		if _, err := e.app.Auth.FetchCurrentUser(ctx); err != nil {
			return err
		}
	}
	return nil
}

func usernameOr(u *users.User, fallback string) string {
	if u == nil || u.Username == "" {
		return fallback
	}
	return u.Username
}

func loginCmd(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	user := fs.String("user", "", "email or username")
	password := fs.String("password", os.Getenv("NEWSDASH_PASSWORD"), "password (or NEWSDASH_PASSWORD)")
	remember := fs.Bool("remember", false, "ask the backend for a long-lived session")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := api.LoginRequest{EmailOrUsername: *user, Password: *password}
	if *remember {
		req.RememberMe = utils.Ptr(true)
	}
	if err := e.app.Auth.Login(ctx, req); err != nil {
		return errors.New(e.app.State.Error())
	}

	e.banner()
	e.printf("Logged in as %s\n", usernameOr(e.app.State.User(), *user))
	return nil
}

func signupCmd(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	user := fs.String("user", "", "username")
	email := fs.String("email", "", "email address")
	password := fs.String("password", os.Getenv("NEWSDASH_PASSWORD"), "password (or NEWSDASH_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := e.app.Auth.Signup(ctx, api.SignupRequest{Username: *user, Email: *email, Password: *password}); err != nil {
		return errors.New(e.app.State.Error())
	}
	e.banner()
	e.printf("Welcome, %s\n", usernameOr(e.app.State.User(), *user))
	return nil
}

func logoutCmd(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	all := fs.Bool("all", false, "end every session of this account")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *all {
		e.app.LogoutAll(ctx)
		e.printf("Logged out from all devices\n")
		return nil
	}
	e.app.Logout(ctx)
	e.printf("Logged out\n")
	return nil
}

func whoamiCmd(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	if err := requireSession(ctx, e); err != nil {
		return err
	}
	user, err := e.app.Auth.FetchCurrentUser(ctx)
	if err != nil {
		return err
	}
	e.printf("%d\t%s\t%s\tsince %s\n", user.ID, user.Username, user.Email, user.CreatedAt)
	return nil
}

func sourcesCmd(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	if err := requireSession(ctx, e); err != nil {
		return err
	}
	list, err := e.app.Sources.Fetch(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		e.printf("No sources yet, add one with: newsdash scrape -url URL\n")
		return nil
	}
	for _, s := range list {
		e.printf("%d\t%s\n", s.ID, s.Name)
	}
	return nil
}

func scrapeCmd(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	siteURL := fs.String("url", "", "site to scrape")
	name := fs.String("name", "", "source name")
	maxArticles := fs.Int("max", 20, "maximum articles")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireSession(ctx, e); err != nil {
		return err
	}

	resp, err := e.app.Sources.Add(ctx, api.ScrapeRequest{SiteURL: *siteURL, SourceName: *name, MaxArticles: *maxArticles})
	if err != nil {
		return err
	}
	e.printf("%s (source %d)\n", resp.Message, resp.SourceID)
	return nil
}

func refreshSourceCmd(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	id := fs.Int64("id", 0, "source id")
	maxArticles := fs.Int("max", 0, "maximum articles (default 20)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireSession(ctx, e); err != nil {
		return err
	}

	resp, err := e.app.Sources.Refresh(ctx, *id, *maxArticles)
	if err != nil {
		return err
	}
	e.printf("%s: %d new, %d skipped\n", resp.Data.Message, resp.Data.ArticlesScraped, resp.Data.ArticlesSkipped)
	return nil
}

func deleteSourceCmd(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	id := fs.Int64("id", 0, "source id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireSession(ctx, e); err != nil {
		return err
	}

	resp, err := e.app.Sources.Delete(ctx, *id)
	if err != nil {
		return err
	}
	e.printf("%s, %d articles removed\n", resp.Message, resp.DeletedArticlesCount)
	return nil
}

func articlesCmd(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	source := fs.String("source", "", "source id (all sources when empty)")
	page := fs.Int("page", 1, "page")
	limit := fs.Int("limit", 0, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireSession(ctx, e); err != nil {
		return err
	}

	var (
		list articles.SourceArticles
		err  error
	)
	if *source == "" {
		list, err = e.app.Articles.FetchAll(ctx, *page, *limit, false)
	} else {
		list, err = e.app.Articles.FetchBySource(ctx, *source, *page, *limit, false)
	}
	if err != nil {
		return err
	}

	for _, a := range list.Articles {
		date := utils.ValueOr(a.Date, "-")
		e.printf("%d\t%s\t%s\n", a.ID, date, a.Title)
	}
	if p := list.Pagination; p != nil {
		e.printf("page %d/%d, %d articles\n", p.Page, p.TotalPages, p.TotalCount)
	}
	return nil
}

func articleCmd(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	id := fs.Int64("id", 0, "article id")
	summary := fs.Bool("summary", false, "print the summary")
	analysis := fs.Bool("analysis", false, "print the analysis")
	audio := fs.String("audio", "", "write the narration to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireSession(ctx, e); err != nil {
		return err
	}

	a, err := e.app.Articles.Get(ctx, *id)
	if err != nil {
		return err
	}
	e.printf("%s\n%s\n", a.Title, a.Link)
	if authors := a.AuthorList(); len(authors) > 0 {
		e.printf("by %s\n", authors[0])
	}
	e.printf("\n%s\n", a.Content)

	if *summary {
		text, err := e.app.Articles.Summary(ctx, *id)
		if err != nil {
			return err
		}
		e.printf("\nSummary: %s\n", text)
	}
	if *analysis {
		text, err := e.app.Articles.Analysis(ctx, *id)
		if err != nil {
			return err
		}
		e.printf("\nAnalysis: %s\n", text)
	}
	if *audio != "" {
		data, contentType, err := e.app.API.Audio(ctx, *id)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*audio, data, 0o644); err != nil {
			return err
		}
		e.printf("\nWrote %d bytes of %s to %s\n", len(data), contentType, *audio)
	}
	return nil
}

func deleteArticlesCmd(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireSession(ctx, e); err != nil {
		return err
	}

	ids := make([]int64, 0, fs.NArg())
	for _, raw := range fs.Args() {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid article id %q", raw)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return errors.New("no article ids given")
	}

	resp, err := e.app.Articles.Delete(ctx, ids)
	if err != nil {
		return err
	}
	e.printf("%s\n", resp.Message)
	if len(resp.NotFoundIDs) > 0 {
		e.printf("not found: %v\n", resp.NotFoundIDs)
	}
	return nil
}
