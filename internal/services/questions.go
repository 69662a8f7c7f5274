package services

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/mwhitby/lingoduel/internal/logger"
	"github.com/mwhitby/lingoduel/internal/models"
	"github.com/mwhitby/lingoduel/internal/repository"
	"github.com/mwhitby/lingoduel/pkg/contentapi"
)

const (
	// DefaultQuestionCount is used when a selection does not say otherwise
	DefaultQuestionCount = 10

	// BattleQuestionCount is fixed for battle-mode matches
	BattleQuestionCount = 5
)

// QuestionSelection describes one request for match content
type QuestionSelection struct {
	Language   string
	Rating     int
	Count      int
	BattleMode bool
	// Difficulty overrides the rating-derived band when set (custom matches)
	Difficulty models.Difficulty
	ExcludeIDs []string
}

// QuestionSyncResult summarizes a content API import
type QuestionSyncResult struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// QuestionService selects match content from the question bank
type QuestionService struct {
	log    logger.Logger
	repo   repository.QuestionRepository
	client contentapi.Client

	// shuffle is replaceable in tests for deterministic selection
	shuffle func(n int, swap func(i, j int))
}

// NewQuestionService creates a new QuestionService
func NewQuestionService(log logger.Logger, repo repository.QuestionRepository, client contentapi.Client) *QuestionService {
	return &QuestionService{
		log:     log,
		repo:    repo,
		client:  client,
		shuffle: rand.Shuffle,
	}
}

// DifficultiesForRating maps a rating to its difficulty band
func DifficultiesForRating(rating int) []models.Difficulty {
	switch {
	case rating < 1100:
		return []models.Difficulty{models.DifficultyEasy}
	case rating < 1700:
		return []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium}
	case rating < 2300:
		return []models.Difficulty{models.DifficultyMedium, models.DifficultyHard}
	default:
		return []models.Difficulty{models.DifficultyHard}
	}
}

// SelectQuestions draws a uniformly random sample without replacement from
// the eligible pool. Battle matches always get exactly 5 questions; other
// modes use the requested count. An empty pool fails; a short pool returns
// what exists.
func (s *QuestionService) SelectQuestions(ctx context.Context, sel QuestionSelection) ([]models.Question, error) {
	count := sel.Count
	if sel.BattleMode {
		count = BattleQuestionCount
	} else if count <= 0 {
		count = DefaultQuestionCount
	}

	var difficulties []models.Difficulty
	if sel.Difficulty != "" {
		difficulties = []models.Difficulty{sel.Difficulty}
	} else {
		difficulties = DifficultiesForRating(sel.Rating)
	}

	pool, err := s.repo.FindQuestions(ctx, repository.QuestionFilter{
		Language:     sel.Language,
		Difficulties: difficulties,
		ExcludeIDs:   sel.ExcludeIDs,
	})
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		s.log.Warn("question pool empty", "language", sel.Language, "difficulties", difficulties)
		return nil, ErrNoContentAvailable
	}

	s.shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if len(pool) > count {
		pool = pool[:count]
	}
	return pool, nil
}

// SyncFromContentAPI imports the question bank for a language from the
// content service. Questions already present are skipped.
func (s *QuestionService) SyncFromContentAPI(ctx context.Context, language string) (*QuestionSyncResult, error) {
	items, err := s.client.FetchQuestions(ctx, language)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch questions: %w", err)
	}

	result := &QuestionSyncResult{Fetched: len(items)}
	for _, item := range items {
		q := models.Question{
			ID:           item.ID,
			Language:     item.Language,
			Difficulty:   models.Difficulty(item.Difficulty),
			Prompt:       item.Prompt,
			Options:      item.Options,
			CorrectIndex: item.CorrectIndex,
		}
		if q.Language == "" {
			q.Language = language
		}
		err := s.repo.CreateQuestion(ctx, &q)
		if err == repository.ErrDuplicate {
			result.Skipped++
			continue
		}
		if err != nil {
			return nil, err
		}
		result.Created++
	}

	s.log.Info("question sync complete", "language", language,
		"fetched", result.Fetched, "created", result.Created, "skipped", result.Skipped)
	return result, nil
}

// SeedSampleQuestions loads a small built-in bank so a fresh install can
// run matches before any content sync has happened.
func (s *QuestionService) SeedSampleQuestions(ctx context.Context) (int, error) {
	created := 0
	for i := range sampleQuestions {
		err := s.repo.CreateQuestion(ctx, &sampleQuestions[i])
		if err == repository.ErrDuplicate {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	if created > 0 {
		s.log.Info("seeded sample questions", "count", created)
	}
	return created, nil
}

var sampleQuestions = []models.Question{
	{ID: "es-e-001", Language: "spanish", Difficulty: models.DifficultyEasy, Prompt: "el gato", Options: []string{"the cat", "the dog", "the house", "the book"}, CorrectIndex: 0},
	{ID: "es-e-002", Language: "spanish", Difficulty: models.DifficultyEasy, Prompt: "rojo", Options: []string{"blue", "red", "green", "yellow"}, CorrectIndex: 1},
	{ID: "es-e-003", Language: "spanish", Difficulty: models.DifficultyEasy, Prompt: "comer", Options: []string{"to sleep", "to drink", "to eat", "to walk"}, CorrectIndex: 2},
	{ID: "es-e-004", Language: "spanish", Difficulty: models.DifficultyEasy, Prompt: "la casa", Options: []string{"the car", "the tree", "the street", "the house"}, CorrectIndex: 3},
	{ID: "es-e-005", Language: "spanish", Difficulty: models.DifficultyEasy, Prompt: "agua", Options: []string{"water", "fire", "earth", "air"}, CorrectIndex: 0},
	{ID: "es-m-001", Language: "spanish", Difficulty: models.DifficultyMedium, Prompt: "aunque", Options: []string{"because", "although", "therefore", "meanwhile"}, CorrectIndex: 1},
	{ID: "es-m-002", Language: "spanish", Difficulty: models.DifficultyMedium, Prompt: "lograr", Options: []string{"to achieve", "to lose", "to forget", "to borrow"}, CorrectIndex: 0},
	{ID: "es-m-003", Language: "spanish", Difficulty: models.DifficultyMedium, Prompt: "la amistad", Options: []string{"the enemy", "the family", "the friendship", "the neighborhood"}, CorrectIndex: 2},
	{ID: "es-m-004", Language: "spanish", Difficulty: models.DifficultyMedium, Prompt: "desarrollar", Options: []string{"to destroy", "to describe", "to discover", "to develop"}, CorrectIndex: 3},
	{ID: "es-m-005", Language: "spanish", Difficulty: models.DifficultyMedium, Prompt: "sin embargo", Options: []string{"however", "moreover", "instead", "suddenly"}, CorrectIndex: 0},
	{ID: "es-h-001", Language: "spanish", Difficulty: models.DifficultyHard, Prompt: "el desempeño", Options: []string{"the unemployment", "the performance", "the disappointment", "the development"}, CorrectIndex: 1},
	{ID: "es-h-002", Language: "spanish", Difficulty: models.DifficultyHard, Prompt: "acontecimiento", Options: []string{"event", "agreement", "acknowledgment", "achievement"}, CorrectIndex: 0},
	{ID: "es-h-003", Language: "spanish", Difficulty: models.DifficultyHard, Prompt: "empeorar", Options: []string{"to improve", "to begin", "to worsen", "to empower"}, CorrectIndex: 2},
	{ID: "fr-e-001", Language: "french", Difficulty: models.DifficultyEasy, Prompt: "le chien", Options: []string{"the cat", "the dog", "the bird", "the fish"}, CorrectIndex: 1},
	{ID: "fr-e-002", Language: "french", Difficulty: models.DifficultyEasy, Prompt: "merci", Options: []string{"thank you", "please", "hello", "goodbye"}, CorrectIndex: 0},
	{ID: "fr-m-001", Language: "french", Difficulty: models.DifficultyMedium, Prompt: "néanmoins", Options: []string{"therefore", "besides", "nevertheless", "meanwhile"}, CorrectIndex: 2},
	{ID: "fr-h-001", Language: "french", Difficulty: models.DifficultyHard, Prompt: "l'épanouissement", Options: []string{"the exhaustion", "the fulfillment", "the astonishment", "the entertainment"}, CorrectIndex: 1},
}
