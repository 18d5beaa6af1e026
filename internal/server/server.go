// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects the store, services,
// handlers and middleware, decides which URL maps to which handler, and
// owns graceful shutdown.
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config, builds the logger and opens the store
// (OpenStore). New then wires:
//
//	store → CapacityLedger → EnrollmentService ┐
//	store → CheckInService, ToggleService,     ├→ handlers → chi routes
//	        RankingService, OfferingService,   │
//	        AchievementService, AuthService    ┘
//
// This is the "composition root": every dependency is built here, once,
// and passed down explicitly. Nothing below reaches for a global.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/juju/clock"

	"github.com/sakif/youthhub/internal/auth"
	"github.com/sakif/youthhub/internal/config"
	"github.com/sakif/youthhub/internal/handler"
	"github.com/sakif/youthhub/internal/middleware"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
	"github.com/sakif/youthhub/internal/repository/mongo"
	"github.com/sakif/youthhub/internal/repository/sqlite"
	"github.com/sakif/youthhub/internal/service"
)

const (
	shutdownTimeout = 30 * time.Second
	storeOpTimeout  = 10 * time.Second
)

// contentRoles may create offerings and change their lifecycle state.
var contentRoles = []model.Role{model.RoleAdmin, model.RoleEditor}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store. Start closes it after the HTTP server has
// drained, so in-flight requests never see a closed connection.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  repository.Store
}

// OpenStore opens the backend selected by cfg.Store.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreMongo:
		ctx, cancel := context.WithTimeout(ctx, storeOpTimeout)
		defer cancel()
		store, err := mongo.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database, mongo.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("opening mongo store: %w", err)
		}
		return store, nil
	case config.StoreSQLite:
		if cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// New wires services and routes around an open store. The server takes
// ownership of store. clk drives every business timestamp; production
// passes clock.WallClock.
func New(cfg config.Config, store repository.Store, clk clock.Clock, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}
	s.setupRoutes(tokens, clk)
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE (all under /api):
//
//	GET    /health                            store ping
//	POST   /auth/register | /auth/login | /auth/logout
//	GET    /auth/me                           (auth)
//	GET    /auth/google/login | /callback     (only when configured)
//	GET    /achievements
//	POST   /achievements                      (administrador)
//	POST   /achievements/{id}/unlock/{userId} (administrador)
//	GET    /dashboard/summary                 (administrador)
//	GET    /users/ranking/top3 | /ranking
//	GET    /users/ranking/me                                     (auth)
//	POST   /users/like/{tipo}/{id}                               (auth)
//	POST   /users/{kind}/{id}/lembrar                            (auth)
//	GET    /users/{kind}/lembrados                               (auth)
//	PUT    /users/{id}/active                                    (administrador)
//	GET    /{kind} | /{kind}/{id}
//	POST   /{kind}/{id}/enrollment | DELETE same                 (auth)
//	GET    /{kind}/meus-{kind}                                   (auth)
//	POST   /{kind}/{id}/checkin                                  (auth)
//	POST   /{kind} | PUT /{kind}/{id}/status                     (administrador, editor)
//
// {kind} is cursos, eventos or oportunidades (other spellings are
// accepted too; see model.ParseKind).
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: the logger reads it
// 2. RealIP: extracts the client IP from proxy headers
// 3. Logger: logs each request with timing and status
// 4. Recoverer: turns a panic into a 500 instead of a crash
func (s *Server) setupRoutes(tokens *auth.TokenService, clk clock.Clock) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Services ===
	ledger := service.NewCapacityLedger(s.store, s.logger)
	enrollments := service.NewEnrollmentService(s.store, s.store, ledger, s.logger)
	checkins := service.NewCheckInService(s.store, s.store, clk, s.logger)
	toggles := service.NewToggleService(s.store, s.store, clk, s.logger)
	ranking := service.NewRankingService(s.store)
	offerings := service.NewOfferingService(s.store, s.logger)
	achievements := service.NewAchievementService(s.store, s.store, s.logger)
	accounts := service.NewAuthService(s.store, tokens, auth.NewPasswordService(), clk, s.logger)
	dashboard := service.NewDashboardService(s.store)

	// === Handlers ===
	var google *auth.GoogleProvider
	if g := s.config.Auth.Google; g.Enabled() {
		google = auth.NewGoogleProvider(g.ClientID, g.ClientSecret, g.CallbackURL)
	}
	authHandler := handler.NewAuthHandler(accounts, google, tokens.TTL(), s.logger)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollments, checkins, s.logger)
	userHandler := handler.NewUserHandler(toggles, ranking, accounts, s.logger)
	offeringHandler := handler.NewOfferingHandler(offerings, s.logger)
	achievementHandler := handler.NewAchievementHandler(achievements, s.logger)
	dashboardHandler := handler.NewDashboardHandler(dashboard, s.logger)

	requireAuth := auth.RequireAuth(tokens)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.With(requireAuth).Get("/me", authHandler.HandleMe)
			if google != nil {
				r.Get("/google/login", authHandler.HandleGoogleLogin)
				r.Get("/google/callback", authHandler.HandleGoogleCallback)
			}
		})

		r.Route("/achievements", func(r chi.Router) {
			r.Get("/", achievementHandler.HandleList)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth, auth.RequireRole(model.RoleAdmin))
				r.Post("/", achievementHandler.HandleCreate)
				r.Post("/{id}/unlock/{userId}", achievementHandler.HandleUnlock)
			})
		})

		r.With(requireAuth, auth.RequireRole(model.RoleAdmin)).
			Get("/dashboard/summary", dashboardHandler.HandleSummary)

		r.Route("/users", func(r chi.Router) {
			// The leaderboard is public; only the caller's own position needs
			// a token.
			r.Get("/ranking/top3", userHandler.HandleTop3)
			r.Get("/ranking", userHandler.HandleRanking)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/ranking/me", userHandler.HandleMyPosition)
				r.Post("/like/{tipo}/{id}", userHandler.HandleToggleLike)
				r.Post("/{kind}/{id}/lembrar", userHandler.HandleToggleReminder)
				r.Get("/{kind}/lembrados", userHandler.HandleListReminders)
				r.With(auth.RequireRole(model.RoleAdmin)).Put("/{id}/active", userHandler.HandleSetActive)
			})
		})

		r.Route("/{kind}", func(r chi.Router) {
			r.Get("/", offeringHandler.HandleList)
			r.Get("/{id}", offeringHandler.HandleGet)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/meus-{mine}", enrollmentHandler.HandleListMine)
				r.Post("/{id}/enrollment", enrollmentHandler.HandleEnroll)
				r.Delete("/{id}/enrollment", enrollmentHandler.HandleCancel)
				r.Post("/{id}/checkin", enrollmentHandler.HandleCheckIn)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, auth.RequireRole(contentRoles...))
				r.Post("/", offeringHandler.HandleCreate)
				r.Put("/{id}/status", offeringHandler.HandleSetStatus)
			})
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"type":"server_error","status":"unavailable"}`))
		return
	}
	_, _ = w.Write([]byte(`{"type":"success","status":"ok"}`))
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the store (flushes the SQLite WAL, disconnects Mongo)
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("store", s.config.Store),
			slog.Bool("google_login", s.config.Auth.Google.Enabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
