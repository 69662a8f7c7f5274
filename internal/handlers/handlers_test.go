package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mwhitby/lingoduel/internal/logger"
	"github.com/mwhitby/lingoduel/internal/models"
	"github.com/mwhitby/lingoduel/internal/services"
)

// stubMatchService implements services.MatchServicer with function fields
type stubMatchService struct {
	queueFn     func(ctx context.Context, req services.QueueRequest) (*services.QueueResult, error)
	leaveFn     func(ctx context.Context, userID string) error
	getFn       func(ctx context.Context, matchID, userID string) (*models.Match, error)
	submitFn    func(ctx context.Context, matchID, userID string, answers []models.Answer) (*models.MatchResult, error)
	powerUpFn   func(ctx context.Context, matchID, userID, questionID string) (*services.PowerUpResult, error)
	clearFn     func(ctx context.Context, matchID, questionID string) error
	quitFn      func(ctx context.Context, matchID, userID string) error
	ratingFn    func(ctx context.Context, userID, language string) (*models.LanguageRating, error)
	qrFn        func(inviteCode string) ([]byte, error)
	reconcileFn func(ctx context.Context) (int, error)
}

func (s *stubMatchService) QueueForMatch(ctx context.Context, req services.QueueRequest) (*services.QueueResult, error) {
	return s.queueFn(ctx, req)
}
func (s *stubMatchService) LeaveQueue(ctx context.Context, userID string) error {
	return s.leaveFn(ctx, userID)
}
func (s *stubMatchService) GetMatch(ctx context.Context, matchID, userID string) (*models.Match, error) {
	return s.getFn(ctx, matchID, userID)
}
func (s *stubMatchService) SubmitAnswers(ctx context.Context, matchID, userID string, answers []models.Answer) (*models.MatchResult, error) {
	return s.submitFn(ctx, matchID, userID, answers)
}
func (s *stubMatchService) ActivatePowerUp(ctx context.Context, matchID, userID, questionID string) (*services.PowerUpResult, error) {
	return s.powerUpFn(ctx, matchID, userID, questionID)
}
func (s *stubMatchService) ClearQuestionEffects(ctx context.Context, matchID, questionID string) error {
	return s.clearFn(ctx, matchID, questionID)
}
func (s *stubMatchService) QuitMatch(ctx context.Context, matchID, userID string) error {
	return s.quitFn(ctx, matchID, userID)
}
func (s *stubMatchService) GetLanguageRating(ctx context.Context, userID, language string) (*models.LanguageRating, error) {
	return s.ratingFn(ctx, userID, language)
}
func (s *stubMatchService) InviteQRCode(inviteCode string) ([]byte, error) {
	return s.qrFn(inviteCode)
}
func (s *stubMatchService) ReconcileRatings(ctx context.Context) (int, error) {
	return s.reconcileFn(ctx)
}
func (s *stubMatchService) SweepLobby() {}
func (s *stubMatchService) SweepTurnDeadlines(ctx context.Context) (int, error) {
	return 0, nil
}

// stubLobbyService implements services.LobbyServicer for status reads
type stubLobbyService struct {
	status services.LobbyStatus
}

func (s *stubLobbyService) Join(entry models.LobbyEntry) error  { return nil }
func (s *stubLobbyService) Leave(userID string) error           { return nil }
func (s *stubLobbyService) Get(userID string) (models.LobbyEntry, bool) {
	return models.LobbyEntry{}, false
}
func (s *stubLobbyService) FindByInviteCode(code string) (models.LobbyEntry, bool) {
	return models.LobbyEntry{}, false
}
func (s *stubLobbyService) FindMatch(userID string) (models.LobbyEntry, bool) {
	return models.LobbyEntry{}, false
}
func (s *stubLobbyService) TakePair(a, b string) ([]models.LobbyEntry, error) { return nil, nil }
func (s *stubLobbyService) SweepStale() []models.LobbyEntry                   { return nil }
func (s *stubLobbyService) Status() services.LobbyStatus                      { return s.status }

// stubQuestionService implements services.QuestionServicer
type stubQuestionService struct {
	syncFn func(ctx context.Context, language string) (*services.QuestionSyncResult, error)
	seedFn func(ctx context.Context) (int, error)
}

func (s *stubQuestionService) SelectQuestions(ctx context.Context, sel services.QuestionSelection) ([]models.Question, error) {
	return nil, nil
}
func (s *stubQuestionService) SeedSampleQuestions(ctx context.Context) (int, error) {
	return s.seedFn(ctx)
}
func (s *stubQuestionService) SyncFromContentAPI(ctx context.Context, language string) (*services.QuestionSyncResult, error) {
	return s.syncFn(ctx, language)
}

func newTestHandlers(match *stubMatchService) *Handlers {
	return New(match, &stubLobbyService{}, &stubQuestionService{}, nil, logger.New())
}

func doRequest(t *testing.T, h *Handlers, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestJoinLobby_OK(t *testing.T) {
	match := &stubMatchService{
		queueFn: func(ctx context.Context, req services.QueueRequest) (*services.QueueResult, error) {
			if req.UserID != "alice" || req.Kind != models.KindRanked {
				t.Errorf("unexpected request: %+v", req)
			}
			return &services.QueueResult{Status: "searching"}, nil
		},
	}
	h := newTestHandlers(match)

	rec := doRequest(t, h, http.MethodPost, "/api/lobby/join", services.QueueRequest{
		UserID: "alice", Kind: models.KindRanked, Language: "spanish",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result services.QueueResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if result.Status != "searching" {
		t.Errorf("expected searching, got %s", result.Status)
	}
}

func TestJoinLobby_MissingFields(t *testing.T) {
	h := newTestHandlers(&stubMatchService{})

	rec := doRequest(t, h, http.MethodPost, "/api/lobby/join", services.QueueRequest{UserID: "alice"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestJoinLobby_NoContent(t *testing.T) {
	match := &stubMatchService{
		queueFn: func(ctx context.Context, req services.QueueRequest) (*services.QueueResult, error) {
			return nil, services.ErrNoContentAvailable
		},
	}
	h := newTestHandlers(match)

	rec := doRequest(t, h, http.MethodPost, "/api/lobby/join", services.QueueRequest{
		UserID: "alice", Kind: models.KindRanked, Language: "klingon",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}

	var apiErr APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("failed to parse error: %v", err)
	}
	if apiErr.Code != ErrCodeNoContent {
		t.Errorf("expected %s, got %s", ErrCodeNoContent, apiErr.Code)
	}
}

func TestSubmitAnswers_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"duplicate", services.ErrDuplicateSubmission, http.StatusConflict, ErrCodeAlreadySubmitted},
		{"wrong state", services.ErrInvalidMatchState, http.StatusConflict, ErrCodeInvalidMatchState},
		{"not your turn", services.ErrNotYourTurn, http.StatusConflict, ErrCodeNotYourTurn},
		{"outsider", services.ErrNotParticipant, http.StatusForbidden, ErrCodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := &stubMatchService{
				submitFn: func(ctx context.Context, matchID, userID string, answers []models.Answer) (*models.MatchResult, error) {
					return nil, tt.err
				},
			}
			h := newTestHandlers(match)

			rec := doRequest(t, h, http.MethodPost, "/api/matches/m1/answers", SubmitAnswersRequest{
				UserID:  "alice",
				Answers: []models.Answer{{QuestionID: "q1", Answer: 0, TimeMs: 1000}},
			})
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			var apiErr APIError
			if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
				t.Fatalf("failed to parse error: %v", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, apiErr.Code)
			}
		})
	}
}

func TestActivatePowerUp_Cooldown(t *testing.T) {
	match := &stubMatchService{
		powerUpFn: func(ctx context.Context, matchID, userID, questionID string) (*services.PowerUpResult, error) {
			return nil, services.ErrPowerUpOnCooldown
		},
	}
	h := newTestHandlers(match)

	rec := doRequest(t, h, http.MethodPost, "/api/matches/m1/powerup", ActivatePowerUpRequest{
		UserID: "alice", QuestionID: "q1",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
}

func TestGetMatch_RequiresUser(t *testing.T) {
	h := newTestHandlers(&stubMatchService{})

	rec := doRequest(t, h, http.MethodGet, "/api/matches/m1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without user_id, got %d", rec.Code)
	}
}

func TestGetRating_OK(t *testing.T) {
	match := &stubMatchService{
		ratingFn: func(ctx context.Context, userID, language string) (*models.LanguageRating, error) {
			return &models.LanguageRating{UserID: userID, Language: language, Rating: 1234, Division: "Silver II"}, nil
		},
	}
	h := newTestHandlers(match)

	rec := doRequest(t, h, http.MethodGet, "/api/ratings/alice/spanish", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var lr models.LanguageRating
	if err := json.Unmarshal(rec.Body.Bytes(), &lr); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if lr.Rating != 1234 || lr.Division != "Silver II" {
		t.Errorf("unexpected rating: %+v", lr)
	}
}

func TestDivisionPreview(t *testing.T) {
	h := newTestHandlers(&stubMatchService{})

	rec := doRequest(t, h, http.MethodGet, "/api/divisions/1450", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["display_name"] == "" {
		t.Error("expected a display name")
	}

	rec = doRequest(t, h, http.MethodGet, "/api/divisions/notanumber", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad rating, got %d", rec.Code)
	}
}

func TestInviteQR_ReturnsPNG(t *testing.T) {
	match := &stubMatchService{
		qrFn: func(code string) ([]byte, error) {
			return []byte{0x89, 'P', 'N', 'G'}, nil
		},
	}
	h := newTestHandlers(match)

	rec := doRequest(t, h, http.MethodGet, "/api/lobby/invites/ABCD1234/qr", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
}

func TestSyncQuestions_OK(t *testing.T) {
	question := &stubQuestionService{
		syncFn: func(ctx context.Context, language string) (*services.QuestionSyncResult, error) {
			return &services.QuestionSyncResult{Fetched: 5, Created: 5}, nil
		},
	}
	h := New(&stubMatchService{}, &stubLobbyService{}, question, nil, logger.New())

	rec := doRequest(t, h, http.MethodPost, "/api/admin/questions/sync", SyncQuestionsRequest{Language: "italian"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandlers(&stubMatchService{})

	rec := doRequest(t, h, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
