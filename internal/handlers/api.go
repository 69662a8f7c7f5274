package handlers

import (
	"net/http"
	"strconv"

	"github.com/mwhitby/lingoduel/internal/rating"
	"github.com/mwhitby/lingoduel/internal/services"
)

// handleJoinLobby places a player in the matchmaking queue
func (h *Handlers) handleJoinLobby(w http.ResponseWriter, r *http.Request) {
	var req services.QueueRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.UserID == "" || req.Kind == "" || req.Language == "" {
		h.respondError(w, BadRequest("user_id, kind and language are required"))
		return
	}

	result, err := h.Match.QueueForMatch(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, result)
}

// handleLeaveLobby removes a player from the queue
func (h *Handlers) handleLeaveLobby(w http.ResponseWriter, r *http.Request) {
	var req LeaveLobbyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.UserID == "" {
		h.respondError(w, BadRequest("user_id is required"))
		return
	}

	if err := h.Match.LeaveQueue(r.Context(), req.UserID); err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, map[string]string{"status": "left"})
}

// handleLobbyStatus summarizes the waiting players
func (h *Handlers) handleLobbyStatus(w http.ResponseWriter, r *http.Request) {
	respondOK(w, h.Lobby.Status())
}

// handleInviteQR renders a custom-match invite code as a QR PNG
func (h *Handlers) handleInviteQR(w http.ResponseWriter, r *http.Request) {
	code, err := requireParam(r, "code")
	if err != nil {
		h.respondError(w, err)
		return
	}

	png, err := h.Match.InviteQRCode(code)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// handleGetMatch returns a match to one of its participants
func (h *Handlers) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := requireParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.respondError(w, BadRequest("user_id is required"))
		return
	}

	m, err := h.Match.GetMatch(r.Context(), matchID, userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, m)
}

// handleSubmitAnswers records a participant's answers
func (h *Handlers) handleSubmitAnswers(w http.ResponseWriter, r *http.Request) {
	matchID, err := requireParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req SubmitAnswersRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.UserID == "" || len(req.Answers) == 0 {
		h.respondError(w, BadRequest("user_id and answers are required"))
		return
	}

	result, err := h.Match.SubmitAnswers(r.Context(), matchID, req.UserID, req.Answers)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, result)
}

// handleActivatePowerUp triggers a power-up during a match
func (h *Handlers) handleActivatePowerUp(w http.ResponseWriter, r *http.Request) {
	matchID, err := requireParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req ActivatePowerUpRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.UserID == "" || req.QuestionID == "" {
		h.respondError(w, BadRequest("user_id and question_id are required"))
		return
	}

	result, err := h.Match.ActivatePowerUp(r.Context(), matchID, req.UserID, req.QuestionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, result)
}

// handleCloseQuestion clears power-up effects when a question window ends
func (h *Handlers) handleCloseQuestion(w http.ResponseWriter, r *http.Request) {
	matchID, err := requireParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	questionID, err := requireParam(r, "questionID")
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.Match.ClearQuestionEffects(r.Context(), matchID, questionID); err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, map[string]string{"status": "cleared"})
}

// handleQuitMatch abandons a match
func (h *Handlers) handleQuitMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := requireParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req QuitMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.UserID == "" {
		h.respondError(w, BadRequest("user_id is required"))
		return
	}

	if err := h.Match.QuitMatch(r.Context(), matchID, req.UserID); err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, map[string]string{"status": "quit"})
}

// handleGetRating returns a player's per-language rating record
func (h *Handlers) handleGetRating(w http.ResponseWriter, r *http.Request) {
	userID, err := requireParam(r, "userID")
	if err != nil {
		h.respondError(w, err)
		return
	}
	language, err := requireParam(r, "language")
	if err != nil {
		h.respondError(w, err)
		return
	}

	lr, err := h.Match.GetLanguageRating(r.Context(), userID, language)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, lr)
}

// handleDivisionPreview classifies an arbitrary rating into its division
func (h *Handlers) handleDivisionPreview(w http.ResponseWriter, r *http.Request) {
	raw, err := requireParam(r, "rating")
	if err != nil {
		h.respondError(w, err)
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		h.respondError(w, BadRequest("rating must be a non-negative integer"))
		return
	}

	respondOK(w, rating.Classify(value))
}

// handleSyncQuestions imports a language's question bank from the content API
func (h *Handlers) handleSyncQuestions(w http.ResponseWriter, r *http.Request) {
	var req SyncQuestionsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.Language == "" {
		h.respondError(w, BadRequest("language is required"))
		return
	}

	result, err := h.Question.SyncFromContentAPI(r.Context(), req.Language)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, result)
}

// handleSeedQuestions loads the built-in sample bank
func (h *Handlers) handleSeedQuestions(w http.ResponseWriter, r *http.Request) {
	created, err := h.Question.SeedSampleQuestions(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, map[string]int{"created": created})
}

// handleReconcileRatings repairs completed matches with missing deltas
func (h *Handlers) handleReconcileRatings(w http.ResponseWriter, r *http.Request) {
	repaired, err := h.Match.ReconcileRatings(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, map[string]int{"repaired": repaired})
}

// handleHealth is the liveness endpoint
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]string{"status": "ok"})
}
