package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ChristosG/finsmart-client/internal/config"
	"github.com/ChristosG/finsmart-client/internal/metrics"
	"github.com/ChristosG/finsmart-client/server/catalog"
	"github.com/ChristosG/finsmart-client/token"
	"github.com/ChristosG/finsmart-client/token/keys"
	"github.com/ChristosG/finsmart-client/users"
	fakeuserrepo "github.com/ChristosG/finsmart-client/users/repofake"
	"github.com/rs/zerolog/log"
)

// Server is the in-memory news backend used for local development and
// integration tests of the client.
type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	accounts users.AccountRepo
	tokens   *token.Manager
	catalog  *catalog.Catalog
	seed     bool

	refreshCount atomic.Int64
}

type Option func(*Server)

func WithAccounts(repo users.AccountRepo) Option {
	return func(s *Server) {
		s.accounts = repo
	}
}

func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Server) {
		s.catalog = c
	}
}

// WithoutSeedData skips creating the demo account and source.
func WithoutSeedData() Option {
	return func(s *Server) {
		s.seed = false
	}
}

func New(cfg config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		env:    cfg.GetEnv(),
		mux:    http.NewServeMux(),
		config: cfg,
		seed:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.accounts == nil {
		s.accounts = fakeuserrepo.NewFakeAccountRepo()
	}
	if s.catalog == nil {
		s.catalog = catalog.New()
	}

	signer, err := keys.NewHMACSigner(cfg.GetJWTSecret())
	if err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}
	if s.tokens, err = token.New(s.accounts, signer, cfg); err != nil {
		return nil, fmt.Errorf("[Server New] failed to create token manager: %w", err)
	}

	if s.seed {
		if err := s.InitialiseSystem(); err != nil {
			return nil, fmt.Errorf("[Server New] Failed to initialise the system: %w", err)
		}
	}

	metrics.Init()
	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// RefreshCount is the number of successful token refreshes served.
func (s *Server) RefreshCount() int64 {
	return s.refreshCount.Load()
}

// Catalog exposes the news store so tests and the dev server can seed it.
func (s *Server) Catalog() *catalog.Catalog {
	return s.catalog
}

// RunJanitor drops expired entries from the revoked token cache every
// interval until ctx is done.
func (s *Server) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tokens.CleanupRevokedTokens()
		}
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Debug().Msgf("[%-19s] %s", displayMethod, path)
}
