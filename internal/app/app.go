package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"

	"github.com/mwhitby/lingoduel/internal/handlers"
	"github.com/mwhitby/lingoduel/internal/logger"
	"github.com/mwhitby/lingoduel/internal/repository"
	"github.com/mwhitby/lingoduel/internal/services"
	"github.com/mwhitby/lingoduel/internal/transport"
	"github.com/mwhitby/lingoduel/pkg/contentapi"
)

// Background job cadence
const (
	lobbySweepInterval   = 30 * time.Second
	turnSweepInterval    = time.Minute
	ratingRepairInterval = 5 * time.Minute
	shutdownTimeout      = 10 * time.Second
)

// App holds all application dependencies
type App struct {
	log      logger.Logger
	handlers *handlers.Handlers
	repo     *repository.Repository
	hub      *transport.Hub
	match    *services.MatchService
	sched    gocron.Scheduler
	server   *http.Server
}

// New creates and initializes a new application instance
func New(log logger.Logger, dbPath string, contentClient contentapi.Client) (*App, error) {
	repo, err := repository.New(dbPath)
	if err != nil {
		return nil, err
	}

	// Initialize services
	lobbyService := services.NewLobbyService(log)
	questionService := services.NewQuestionService(log, repo, contentClient)

	// The hub and match coordinator depend on each other: the hub routes
	// connect/disconnect events to the coordinator, the coordinator pushes
	// match events through the hub. SetListener closes the loop.
	hub := transport.New(log)
	matchService := services.NewMatchService(log, repo, lobbyService, questionService, hub)
	hub.SetListener(matchService)
	hub.Start()

	h := handlers.New(matchService, lobbyService, questionService, hub, log)

	sched, err := gocron.NewScheduler()
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	a := &App{
		log:      log,
		handlers: h,
		repo:     repo,
		hub:      hub,
		match:    matchService,
		sched:    sched,
	}
	if err := a.registerJobs(); err != nil {
		repo.Close()
		return nil, err
	}
	return a, nil
}

// registerJobs wires the recurring maintenance tasks
func (a *App) registerJobs() error {
	_, err := a.sched.NewJob(
		gocron.DurationJob(lobbySweepInterval),
		gocron.NewTask(a.match.SweepLobby),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule lobby sweep: %w", err)
	}

	_, err = a.sched.NewJob(
		gocron.DurationJob(turnSweepInterval),
		gocron.NewTask(func() {
			closed, err := a.match.SweepTurnDeadlines(context.Background())
			if err != nil {
				a.log.Error("turn deadline sweep failed", "error", err)
				return
			}
			if closed > 0 {
				a.log.Info("forfeited expired turns", "count", closed)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule turn sweep: %w", err)
	}

	_, err = a.sched.NewJob(
		gocron.DurationJob(ratingRepairInterval),
		gocron.NewTask(func() {
			repaired, err := a.match.ReconcileRatings(context.Background())
			if err != nil {
				a.log.Error("rating reconciliation failed", "error", err)
				return
			}
			if repaired > 0 {
				a.log.Info("repaired match ratings", "count", repaired)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule rating repair: %w", err)
	}
	return nil
}

// SeedQuestions loads the built-in sample question bank
func (a *App) SeedQuestions() (int, error) {
	return a.handlers.Question.SeedSampleQuestions(context.Background())
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Run starts the background jobs and the HTTP server. It blocks until the
// server stops.
func (a *App) Run(addr string) error {
	a.sched.Start()

	a.server = &http.Server{
		Addr:    addr,
		Handler: a.Router(),
	}
	a.log.Info("Server starting", "addr", addr)
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close performs graceful shutdown of app resources
func (a *App) Close() {
	if a.sched != nil {
		if err := a.sched.Shutdown(); err != nil {
			a.log.Warn("scheduler shutdown failed", "error", err)
		}
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Warn("server shutdown failed", "error", err)
		}
	}
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.log.Warn("database close failed", "error", err)
		}
	}
}
