package mock

import (
	"context"
	"time"

	"github.com/mwhitby/lingoduel/internal/models"
	"github.com/mwhitby/lingoduel/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.GetMatchError = errors.New("database error")
//	svc := services.NewMatchService(log, mockRepo, ...)
//	err := svc.SubmitAnswers(ctx, matchID, userID, answers)
//	// err will now contain the injected error
type Repository struct {
	repository.FullRepository

	// ===== Match Errors =====
	CreateMatchError                error
	GetMatchError                   error
	UpdateMatchError                error
	ListMatchesNeedingRatingsError  error
	ListMatchesWithExpiredTurnError error

	// ===== Result Errors =====
	CreateMatchResultError     error
	GetMatchResultError        error
	ListMatchResultsError      error
	SetResultRatingChangeError error

	// ===== Rating Errors =====
	GetOrCreateLanguageRatingError error
	ApplyRatingResultError         error
	ApplyMatchRatingsError         error

	// ===== Question Errors =====
	CreateQuestionError error
	FindQuestionsError  error
	CountQuestionsError error
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// ===== Match Methods =====

func (m *Repository) CreateMatch(ctx context.Context, match *models.Match) error {
	if m.CreateMatchError != nil {
		return m.CreateMatchError
	}
	return m.FullRepository.CreateMatch(ctx, match)
}

func (m *Repository) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	if m.GetMatchError != nil {
		return nil, m.GetMatchError
	}
	return m.FullRepository.GetMatch(ctx, id)
}

func (m *Repository) UpdateMatch(ctx context.Context, id string, u repository.MatchUpdate) error {
	if m.UpdateMatchError != nil {
		return m.UpdateMatchError
	}
	return m.FullRepository.UpdateMatch(ctx, id, u)
}

func (m *Repository) ListMatchesNeedingRatings(ctx context.Context) ([]string, error) {
	if m.ListMatchesNeedingRatingsError != nil {
		return nil, m.ListMatchesNeedingRatingsError
	}
	return m.FullRepository.ListMatchesNeedingRatings(ctx)
}

func (m *Repository) ListMatchesWithExpiredTurn(ctx context.Context, before time.Time) ([]string, error) {
	if m.ListMatchesWithExpiredTurnError != nil {
		return nil, m.ListMatchesWithExpiredTurnError
	}
	return m.FullRepository.ListMatchesWithExpiredTurn(ctx, before)
}

// ===== Result Methods =====

func (m *Repository) CreateMatchResult(ctx context.Context, res *models.MatchResult) error {
	if m.CreateMatchResultError != nil {
		return m.CreateMatchResultError
	}
	return m.FullRepository.CreateMatchResult(ctx, res)
}

func (m *Repository) GetMatchResult(ctx context.Context, matchID, userID string) (*models.MatchResult, error) {
	if m.GetMatchResultError != nil {
		return nil, m.GetMatchResultError
	}
	return m.FullRepository.GetMatchResult(ctx, matchID, userID)
}

func (m *Repository) ListMatchResults(ctx context.Context, matchID string) ([]models.MatchResult, error) {
	if m.ListMatchResultsError != nil {
		return nil, m.ListMatchResultsError
	}
	return m.FullRepository.ListMatchResults(ctx, matchID)
}

func (m *Repository) SetResultRatingChange(ctx context.Context, matchID, userID string, delta int) error {
	if m.SetResultRatingChangeError != nil {
		return m.SetResultRatingChangeError
	}
	return m.FullRepository.SetResultRatingChange(ctx, matchID, userID, delta)
}

// ===== Rating Methods =====

func (m *Repository) GetOrCreateLanguageRating(ctx context.Context, userID, language string) (*models.LanguageRating, error) {
	if m.GetOrCreateLanguageRatingError != nil {
		return nil, m.GetOrCreateLanguageRatingError
	}
	return m.FullRepository.GetOrCreateLanguageRating(ctx, userID, language)
}

func (m *Repository) ApplyRatingResult(ctx context.Context, userID, language string, delta int, outcome repository.Outcome, division string) error {
	if m.ApplyRatingResultError != nil {
		return m.ApplyRatingResultError
	}
	return m.FullRepository.ApplyRatingResult(ctx, userID, language, delta, outcome, division)
}

func (m *Repository) ApplyMatchRatings(ctx context.Context, matchID, language string, updates []repository.RatingUpdate) error {
	if m.ApplyMatchRatingsError != nil {
		return m.ApplyMatchRatingsError
	}
	return m.FullRepository.ApplyMatchRatings(ctx, matchID, language, updates)
}

// ===== Question Methods =====

func (m *Repository) CreateQuestion(ctx context.Context, q *models.Question) error {
	if m.CreateQuestionError != nil {
		return m.CreateQuestionError
	}
	return m.FullRepository.CreateQuestion(ctx, q)
}

func (m *Repository) FindQuestions(ctx context.Context, f repository.QuestionFilter) ([]models.Question, error) {
	if m.FindQuestionsError != nil {
		return nil, m.FindQuestionsError
	}
	return m.FullRepository.FindQuestions(ctx, f)
}

func (m *Repository) CountQuestions(ctx context.Context, f repository.QuestionFilter) (int, error) {
	if m.CountQuestionsError != nil {
		return 0, m.CountQuestionsError
	}
	return m.FullRepository.CountQuestions(ctx, f)
}
