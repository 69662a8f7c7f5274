package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Timeout(60 * time.Second))

	// WebSocket
	if h.Hub != nil {
		r.Get("/ws", h.Hub.ServeWs)
	}

	r.Get("/api/health", h.handleHealth)

	// Lobby
	r.Post("/api/lobby/join", h.handleJoinLobby)
	r.Post("/api/lobby/leave", h.handleLeaveLobby)
	r.Get("/api/lobby/status", h.handleLobbyStatus)
	r.Get("/api/lobby/invites/{code}/qr", h.handleInviteQR)

	// Matches
	r.Get("/api/matches/{id}", h.handleGetMatch)
	r.Post("/api/matches/{id}/answers", h.handleSubmitAnswers)
	r.Post("/api/matches/{id}/powerup", h.handleActivatePowerUp)
	r.Post("/api/matches/{id}/questions/{questionID}/close", h.handleCloseQuestion)
	r.Post("/api/matches/{id}/quit", h.handleQuitMatch)

	// Ratings
	r.Get("/api/ratings/{userID}/{language}", h.handleGetRating)
	r.Get("/api/divisions/{rating}", h.handleDivisionPreview)

	// Content administration
	r.Post("/api/admin/questions/sync", h.handleSyncQuestions)
	r.Post("/api/admin/questions/seed", h.handleSeedQuestions)
	r.Post("/api/admin/ratings/reconcile", h.handleReconcileRatings)

	return r
}
