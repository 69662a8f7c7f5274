package repository

import (
	"context"
	"time"

	"github.com/mwhitby/lingoduel/internal/models"
)

// Outcome is a match outcome applied to a language rating record
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

// MatchUpdate is a partial update of a match row. Nil fields are left
// unchanged; ClearTurn resets the async turn columns.
type MatchUpdate struct {
	Status            *models.MatchStatus
	StartedAt         *time.Time
	EndedAt           *time.Time
	ConnectionState   map[string]models.ConnectionInfo
	PowerUpState      map[string]models.PowerUpState
	CurrentTurnUserID *string
	TurnDeadlineAt    *time.Time
	ClearTurn         bool
}

// RatingUpdate is one participant's share of a completed match's rating
// application: the ladder delta, the outcome counter and the resulting
// division.
type RatingUpdate struct {
	UserID   string
	Delta    int
	Outcome  Outcome
	Division string
}

// QuestionFilter narrows question lookups
type QuestionFilter struct {
	Language     string
	Difficulties []models.Difficulty
	ExcludeIDs   []string
	Limit        int // 0 means no limit
}

// MatchRepository defines match data operations
type MatchRepository interface {
	CreateMatch(ctx context.Context, m *models.Match) error
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	UpdateMatch(ctx context.Context, id string, u MatchUpdate) error
	ListMatchesNeedingRatings(ctx context.Context) ([]string, error)
	ListMatchesWithExpiredTurn(ctx context.Context, before time.Time) ([]string, error)
}

// ResultRepository defines match result data operations
type ResultRepository interface {
	CreateMatchResult(ctx context.Context, r *models.MatchResult) error
	GetMatchResult(ctx context.Context, matchID, userID string) (*models.MatchResult, error)
	ListMatchResults(ctx context.Context, matchID string) ([]models.MatchResult, error)
	SetResultRatingChange(ctx context.Context, matchID, userID string, delta int) error
}

// RatingRepository defines per-language rating data operations
type RatingRepository interface {
	GetOrCreateLanguageRating(ctx context.Context, userID, language string) (*models.LanguageRating, error)
	ApplyRatingResult(ctx context.Context, userID, language string, delta int, outcome Outcome, division string) error
	ApplyMatchRatings(ctx context.Context, matchID, language string, updates []RatingUpdate) error
}

// QuestionRepository defines question bank operations
type QuestionRepository interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	FindQuestions(ctx context.Context, f QuestionFilter) ([]models.Question, error)
	CountQuestions(ctx context.Context, f QuestionFilter) (int, error)
}

// FullRepository combines all repository interfaces.
// Use this when a service needs access to multiple domains.
type FullRepository interface {
	MatchRepository
	ResultRepository
	RatingRepository
	QuestionRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
