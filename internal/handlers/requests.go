package handlers

import "github.com/mwhitby/lingoduel/internal/models"

// LeaveLobbyRequest identifies the player leaving the queue
type LeaveLobbyRequest struct {
	UserID string `json:"user_id"`
}

// SubmitAnswersRequest carries one participant's answers for a match
type SubmitAnswersRequest struct {
	UserID  string          `json:"user_id"`
	Answers []models.Answer `json:"answers"`
}

// ActivatePowerUpRequest triggers a power-up during a match
type ActivatePowerUpRequest struct {
	UserID     string `json:"user_id"`
	QuestionID string `json:"question_id"`
}

// QuitMatchRequest identifies the player abandoning a match
type QuitMatchRequest struct {
	UserID string `json:"user_id"`
}

// SyncQuestionsRequest names the language to import from the content API
type SyncQuestionsRequest struct {
	Language string `json:"language"`
}
