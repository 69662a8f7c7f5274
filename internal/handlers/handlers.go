package handlers

import (
	"github.com/mwhitby/lingoduel/internal/logger"
	"github.com/mwhitby/lingoduel/internal/services"
	"github.com/mwhitby/lingoduel/internal/transport"
)

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Match    services.MatchServicer
	Lobby    services.LobbyServicer
	Question services.QuestionServicer
	Hub      *transport.Hub
	Log      logger.Logger
}

// New creates a new Handlers instance with all dependencies
func New(
	match services.MatchServicer,
	lobby services.LobbyServicer,
	question services.QuestionServicer,
	hub *transport.Hub,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Match:    match,
		Lobby:    lobby,
		Question: question,
		Hub:      hub,
		Log:      log,
	}
}
