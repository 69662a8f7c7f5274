package services

import (
	"context"

	"github.com/mwhitby/lingoduel/internal/models"
)

// LobbyServicer defines the interface for lobby operations
type LobbyServicer interface {
	Join(entry models.LobbyEntry) error
	Leave(userID string) error
	Get(userID string) (models.LobbyEntry, bool)
	FindByInviteCode(code string) (models.LobbyEntry, bool)
	FindMatch(userID string) (models.LobbyEntry, bool)
	TakePair(userA, userB string) ([]models.LobbyEntry, error)
	SweepStale() []models.LobbyEntry
	Status() LobbyStatus
}

// QuestionServicer defines the interface for question selection and content management
type QuestionServicer interface {
	SelectQuestions(ctx context.Context, sel QuestionSelection) ([]models.Question, error)
	SeedSampleQuestions(ctx context.Context) (int, error)
	SyncFromContentAPI(ctx context.Context, language string) (*QuestionSyncResult, error)
}

// MatchServicer defines the interface for match lifecycle operations
type MatchServicer interface {
	QueueForMatch(ctx context.Context, req QueueRequest) (*QueueResult, error)
	LeaveQueue(ctx context.Context, userID string) error
	GetMatch(ctx context.Context, matchID, userID string) (*models.Match, error)
	SubmitAnswers(ctx context.Context, matchID, userID string, answers []models.Answer) (*models.MatchResult, error)
	ActivatePowerUp(ctx context.Context, matchID, userID, questionID string) (*PowerUpResult, error)
	ClearQuestionEffects(ctx context.Context, matchID, questionID string) error
	QuitMatch(ctx context.Context, matchID, userID string) error
	GetLanguageRating(ctx context.Context, userID, language string) (*models.LanguageRating, error)
	InviteQRCode(inviteCode string) ([]byte, error)
	ReconcileRatings(ctx context.Context) (int, error)
	SweepLobby()
	SweepTurnDeadlines(ctx context.Context) (int, error)
}

// Transport delivers realtime events to connected players. Implemented by
// the websocket hub; services never talk to sockets directly.
type Transport interface {
	SendToUser(userID string, msg models.WSMessage)
	SendToUsers(userIDs []string, msg models.WSMessage)
	BroadcastMessage(msgType string, payload interface{})
	IsUserOnline(userID string) bool
}

// Ensure services implement their interfaces
var (
	_ LobbyServicer    = (*LobbyService)(nil)
	_ QuestionServicer = (*QuestionService)(nil)
	_ MatchServicer    = (*MatchService)(nil)
)
