package services

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/mwhitby/lingoduel/internal/errors"
	"github.com/mwhitby/lingoduel/internal/logger"
	"github.com/mwhitby/lingoduel/internal/models"
	"github.com/mwhitby/lingoduel/internal/powerup"
	"github.com/mwhitby/lingoduel/internal/rating"
	"github.com/mwhitby/lingoduel/internal/repository"
)

const (
	// ReadyCheckDelay is how long a synchronous match sits in READY_CHECK
	// before it starts or cancels.
	ReadyCheckDelay = 5 * time.Second

	// ReconnectGrace is how long a disconnected player has to come back
	// before forfeiting an in-progress match.
	ReconnectGrace = 30 * time.Second

	// AsyncTurnDeadline bounds each turn of an async match.
	AsyncTurnDeadline = 24 * time.Hour

	// PointsPerCorrect converts a correct count into a score.
	PointsPerCorrect = 10
)

// QueueRequest is a request to start searching for a match
type QueueRequest struct {
	UserID          string                 `json:"user_id"`
	Kind            models.MatchKind       `json:"kind"`
	Language        string                 `json:"language"`
	IsAsync         bool                   `json:"is_async"`
	EquippedPowerUp models.PowerUpKind     `json:"equipped_power_up"`
	CustomSettings  *models.CustomSettings `json:"custom_settings,omitempty"`
	// InviteCode joins a friend's custom lobby; CreateInvite mints a new one
	InviteCode   string `json:"invite_code,omitempty"`
	CreateInvite bool   `json:"create_invite,omitempty"`
}

// QueueResult reports what happened to a queue request
type QueueResult struct {
	Status     string `json:"status"` // "searching" or "matched"
	MatchID    string `json:"match_id,omitempty"`
	InviteCode string `json:"invite_code,omitempty"`
}

// PowerUpResult reports the outcome of a power-up activation
type PowerUpResult struct {
	Cancelled  bool                  `json:"cancelled"`
	Effect     *models.PowerUpEffect `json:"effect,omitempty"`
	Multiplier float64               `json:"multiplier"`
}

// MatchService coordinates the whole match lifecycle: pairing, the ready
// check, reconnect handling, answer submission and rating updates. It owns
// an in-memory index of active matches for fast presence routing; the
// index and the lobby are the only mutable shared state, and neither lock
// is held across a store call or a transport send.
type MatchService struct {
	log       logger.Logger
	repo      repository.FullRepository
	lobby     LobbyServicer
	questions QuestionServicer
	transport Transport

	mu          sync.Mutex
	userToMatch map[string]string
	matchUsers  map[string][]string

	// timing knobs, overridable in tests
	readyCheckDelay   time.Duration
	reconnectGrace    time.Duration
	asyncTurnDeadline time.Duration
	now               func() time.Time
	afterFunc         func(d time.Duration, fn func()) *time.Timer
}

// NewMatchService creates a new MatchService
func NewMatchService(log logger.Logger, repo repository.FullRepository, lobby LobbyServicer, questions QuestionServicer, transport Transport) *MatchService {
	return &MatchService{
		log:               log,
		repo:              repo,
		lobby:             lobby,
		questions:         questions,
		transport:         transport,
		userToMatch:       make(map[string]string),
		matchUsers:        make(map[string][]string),
		readyCheckDelay:   ReadyCheckDelay,
		reconnectGrace:    ReconnectGrace,
		asyncTurnDeadline: AsyncTurnDeadline,
		now:               time.Now,
		afterFunc:         time.AfterFunc,
	}
}

// ===== Active match index =====

func (s *MatchService) registerMatch(matchID string, users []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchUsers[matchID] = users
	for _, u := range users {
		s.userToMatch[u] = matchID
	}
}

func (s *MatchService) releaseMatch(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.matchUsers[matchID] {
		if s.userToMatch[u] == matchID {
			delete(s.userToMatch, u)
		}
	}
	delete(s.matchUsers, matchID)
}

// ActiveMatchFor returns the match a user is currently playing, if any
func (s *MatchService) ActiveMatchFor(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.userToMatch[userID]
	return id, ok
}

// ===== Queueing and pairing =====

// QueueForMatch places a player in the lobby and immediately attempts a
// pairing. The result says whether they are still searching or already in
// a match.
func (s *MatchService) QueueForMatch(ctx context.Context, req QueueRequest) (*QueueResult, error) {
	lr, err := s.repo.GetOrCreateLanguageRating(ctx, req.UserID, req.Language)
	if err != nil {
		return nil, err
	}

	entry := models.LobbyEntry{
		UserID:          req.UserID,
		Rating:          lr.Rating,
		Kind:            req.Kind,
		Language:        req.Language,
		IsBattleMode:    req.Kind == models.KindBattle,
		IsAsync:         req.IsAsync,
		EquippedPowerUp: req.EquippedPowerUp,
		InviteCode:      req.InviteCode,
	}
	if entry.EquippedPowerUp == "" {
		entry.EquippedPowerUp = models.PowerUpNone
	}
	if req.Kind == models.KindCustom {
		entry.CustomSettings = req.CustomSettings
		if req.CreateInvite && entry.InviteCode == "" {
			entry.InviteCode = newInviteCode()
		}
	}

	if err := s.lobby.Join(entry); err != nil {
		return nil, err
	}
	s.transport.SendToUser(req.UserID, models.WSMessage{Type: EventLobbyJoined, Payload: entry})
	s.broadcastLobbyUpdate()

	matchID, err := s.tryPair(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if matchID != "" {
		return &QueueResult{Status: "matched", MatchID: matchID, InviteCode: entry.InviteCode}, nil
	}
	return &QueueResult{Status: "searching", InviteCode: entry.InviteCode}, nil
}

// LeaveQueue removes a player from the lobby. Leaving twice is a no-op.
func (s *MatchService) LeaveQueue(ctx context.Context, userID string) error {
	if err := s.lobby.Leave(userID); err != nil {
		return err
	}
	s.transport.SendToUser(userID, models.WSMessage{Type: EventLobbyLeft, Payload: map[string]string{"user_id": userID}})
	s.broadcastLobbyUpdate()
	return nil
}

// broadcastLobbyUpdate fans the current lobby status out to every
// connected client so waiting players see the queue move.
func (s *MatchService) broadcastLobbyUpdate() {
	s.transport.BroadcastMessage(EventLobbyUpdated, s.lobby.Status())
}

// newInviteCode mints a short shareable code for custom matches
func newInviteCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

// InviteQRCode renders an invite code as a PNG QR image. The code must
// belong to a player currently waiting in the lobby.
func (s *MatchService) InviteQRCode(inviteCode string) ([]byte, error) {
	if inviteCode == "" {
		return nil, errors.Validation("invite code is required")
	}
	if _, ok := s.lobby.FindByInviteCode(inviteCode); !ok {
		return nil, ErrNotInLobby
	}
	png, err := qrcode.Encode(inviteCode, qrcode.Medium, 256)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return png, nil
}

// tryPair searches for an opponent and, on success, creates the match.
// A vanished candidate is not an error; the player simply keeps waiting.
func (s *MatchService) tryPair(ctx context.Context, userID string) (string, error) {
	candidate, ok := s.lobby.FindMatch(userID)
	if !ok {
		return "", nil
	}

	entries, err := s.lobby.TakePair(userID, candidate.UserID)
	if err != nil {
		if stderrors.Is(err, ErrPlayersNotFound) {
			return "", nil
		}
		return "", err
	}

	m, err := s.createMatch(ctx, entries[0], entries[1])
	if err != nil {
		// The pair is back in the lobby so neither player is lost
		for _, e := range entries {
			if joinErr := s.lobby.Join(e); joinErr != nil {
				s.log.Error("failed to restore lobby entry", "user", e.UserID, "error", joinErr)
			}
		}
		return "", err
	}
	s.broadcastLobbyUpdate()
	return m.ID, nil
}

// createMatch atomically turns two lobby entries into a match: question
// selection, the persisted row and the active-match index land together
// so there is never a window where a player is in neither the lobby nor
// a tracked match.
func (s *MatchService) createMatch(ctx context.Context, a, b models.LobbyEntry) (*models.Match, error) {
	now := s.now()
	avgRating := (a.Rating + b.Rating) / 2

	sel := QuestionSelection{
		Language:   a.Language,
		Rating:     avgRating,
		Count:      DefaultQuestionCount,
		BattleMode: a.IsBattleMode,
	}
	var duration *int
	powerUpsEnabled := true
	if a.Kind == models.KindCustom && a.CustomSettings != nil {
		sel.Difficulty = a.CustomSettings.Difficulty
		d := a.CustomSettings.QuestionDurationSeconds
		duration = &d
		powerUpsEnabled = a.CustomSettings.PowerUpsEnabled
	}

	questions, err := s.questions.SelectQuestions(ctx, sel)
	if err != nil {
		return nil, err
	}

	m := &models.Match{
		ID:                      uuid.NewString(),
		Kind:                    a.Kind,
		Status:                  models.StatusReadyCheck,
		Language:                a.Language,
		Participants:            []string{a.UserID, b.UserID},
		Questions:               questions,
		QuestionDurationSeconds: duration,
		IsAsync:                 a.IsAsync,
		InviteCode:              a.InviteCode,
		CreatedAt:               now,
		ConnectionState: map[string]models.ConnectionInfo{
			a.UserID: {Connected: true, LastSeen: now},
			b.UserID: {Connected: true, LastSeen: now},
		},
	}
	if powerUpsEnabled {
		m.PowerUpState = map[string]models.PowerUpState{
			a.UserID: {Equipped: a.EquippedPowerUp},
			b.UserID: {Equipped: b.EquippedPowerUp},
		}
	}
	if m.IsAsync {
		// Async matches skip the ready check entirely
		m.Status = models.StatusInProgress
		m.StartedAt = &now
		turnUser := a.UserID
		deadline := now.Add(s.asyncTurnDeadline)
		m.CurrentTurnUserID = &turnUser
		m.TurnDeadlineAt = &deadline
	}

	if err := s.repo.CreateMatch(ctx, m); err != nil {
		return nil, err
	}
	s.registerMatch(m.ID, m.Participants)

	s.transport.SendToUsers(m.Participants, models.WSMessage{Type: EventMatchFound, Payload: m})
	s.log.Info("match created", "match", m.ID, "kind", m.Kind,
		"participants", m.Participants, "async", m.IsAsync)

	if !m.IsAsync {
		matchID := m.ID
		s.afterFunc(s.readyCheckDelay, func() {
			s.resolveReadyCheck(context.Background(), matchID)
		})
	}
	return m, nil
}

// resolveReadyCheck fires when the ready-check window closes. The match is
// re-fetched and only acted on if it is still waiting; anything else means
// another path already moved it on.
func (s *MatchService) resolveReadyCheck(ctx context.Context, matchID string) {
	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		s.log.Error("ready check fetch failed", "match", matchID, "error", err)
		return
	}
	if m.Status != models.StatusReadyCheck {
		return
	}

	for _, p := range m.Participants {
		if !m.ConnectionState[p].Connected || !s.transport.IsUserOnline(p) {
			s.cancelMatch(ctx, m, "opponent not ready", true)
			return
		}
	}

	now := s.now()
	status := models.StatusInProgress
	err = s.repo.UpdateMatch(ctx, matchID, repository.MatchUpdate{Status: &status, StartedAt: &now})
	if err != nil {
		s.log.Error("failed to start match", "match", matchID, "error", err)
		return
	}
	s.transport.SendToUsers(m.Participants, models.WSMessage{
		Type:    EventMatchStarted,
		Payload: map[string]interface{}{"match_id": matchID, "started_at": now},
	})
	s.log.Info("match started", "match", matchID)
}

// cancelMatch moves a match to CANCELLED and releases its index entries
func (s *MatchService) cancelMatch(ctx context.Context, m *models.Match, reason string, canRequeue bool) {
	now := s.now()
	status := models.StatusCancelled
	err := s.repo.UpdateMatch(ctx, m.ID, repository.MatchUpdate{Status: &status, EndedAt: &now})
	if err != nil {
		s.log.Error("failed to cancel match", "match", m.ID, "error", err)
		return
	}
	s.releaseMatch(m.ID)
	s.transport.SendToUsers(m.Participants, models.WSMessage{
		Type: EventMatchCancelled,
		Payload: map[string]interface{}{
			"match_id": m.ID, "reason": reason, "can_requeue": canRequeue,
		},
	})
	s.log.Info("match cancelled", "match", m.ID, "reason", reason)
}

// ===== Presence =====

// HandleConnect is called by the transport when a player's socket opens
func (s *MatchService) HandleConnect(userID string) {
	matchID, ok := s.ActiveMatchFor(userID)
	if !ok {
		return
	}
	ctx := context.Background()
	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil || m.Status.Terminal() {
		return
	}

	now := s.now()
	connState := m.ConnectionState
	connState[userID] = models.ConnectionInfo{Connected: true, LastSeen: now}
	err = s.repo.UpdateMatch(ctx, matchID, repository.MatchUpdate{ConnectionState: connState})
	if err != nil {
		s.log.Error("failed to record reconnect", "match", matchID, "user", userID, "error", err)
		return
	}

	// Fresh copy so the rejoining client sees current state
	m.ConnectionState = connState
	s.transport.SendToUser(userID, models.WSMessage{Type: EventReconnected, Payload: m})
	s.transport.SendToUsers(m.Opponents(userID), models.WSMessage{
		Type:    EventOpponentReconnected,
		Payload: map[string]string{"match_id": matchID, "user_id": userID},
	})
	s.log.Info("player reconnected", "match", matchID, "user", userID)
}

// HandleDisconnect is called by the transport when a player's socket
// closes. A waiting player just drops out of the lobby; a playing one
// starts the reconnect clock, or cancels the match outright during the
// ready check.
func (s *MatchService) HandleDisconnect(userID string) {
	if _, inLobby := s.lobby.Get(userID); inLobby {
		if err := s.lobby.Leave(userID); err != nil {
			s.log.Error("failed to remove disconnected player from lobby", "user", userID, "error", err)
		}
	}

	matchID, ok := s.ActiveMatchFor(userID)
	if !ok {
		return
	}
	ctx := context.Background()
	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil || m.Status.Terminal() {
		return
	}

	if m.Status == models.StatusReadyCheck {
		// The ready check is meant to be fast; no grace period here
		s.cancelMatch(ctx, m, "player disconnected during ready check", true)
		return
	}

	now := s.now()
	connState := m.ConnectionState
	connState[userID] = models.ConnectionInfo{Connected: false, LastSeen: now, DisconnectedAt: &now}
	err = s.repo.UpdateMatch(ctx, matchID, repository.MatchUpdate{ConnectionState: connState})
	if err != nil {
		s.log.Error("failed to record disconnect", "match", matchID, "user", userID, "error", err)
		return
	}

	s.transport.SendToUsers(m.Opponents(userID), models.WSMessage{
		Type:    EventOpponentDisconnected,
		Payload: map[string]string{"match_id": matchID, "user_id": userID},
	})

	if !m.IsAsync {
		s.afterFunc(s.reconnectGrace, func() {
			s.resolveReconnectTimeout(context.Background(), matchID, userID)
		})
	}
	s.log.Info("player disconnected", "match", matchID, "user", userID, "async", m.IsAsync)
}

// resolveReconnectTimeout fires when a disconnected player's grace period
// ends. State is re-fetched; a player who reconnected in the meantime is
// left alone.
func (s *MatchService) resolveReconnectTimeout(ctx context.Context, matchID, userID string) {
	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil || m.Status != models.StatusInProgress {
		return
	}
	ci := m.ConnectionState[userID]
	if ci.Connected || ci.DisconnectedAt == nil {
		return
	}
	if s.now().Sub(*ci.DisconnectedAt) < s.reconnectGrace {
		// A newer disconnect rescheduled its own timer
		return
	}
	if err := s.forfeitMatch(ctx, m, userID, "reconnect window expired"); err != nil {
		s.log.Error("failed to forfeit match", "match", m.ID, "error", err)
	}
}

// forfeitMatch ends a match because one player abandoned it. Forfeits do
// not touch ratings; the match simply cancels with the quitter flagged.
// A failed status write means the forfeit did not happen.
func (s *MatchService) forfeitMatch(ctx context.Context, m *models.Match, userID, reason string) error {
	now := s.now()
	status := models.StatusCancelled
	err := s.repo.UpdateMatch(ctx, m.ID, repository.MatchUpdate{Status: &status, EndedAt: &now})
	if err != nil {
		return err
	}
	s.releaseMatch(m.ID)

	s.transport.SendToUser(userID, models.WSMessage{
		Type:    EventForfeited,
		Payload: map[string]string{"match_id": m.ID, "reason": reason},
	})
	s.transport.SendToUsers(m.Opponents(userID), models.WSMessage{
		Type:    EventOpponentForfeited,
		Payload: map[string]string{"match_id": m.ID, "user_id": userID, "reason": reason},
	})
	s.log.Info("match forfeited", "match", m.ID, "user", userID, "reason", reason)
	return nil
}

// QuitMatch lets a player abandon a match. Quitting an already finished
// match is a no-op.
func (s *MatchService) QuitMatch(ctx context.Context, matchID, userID string) error {
	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFoundf("match %s not found", matchID)
		}
		return err
	}
	if !m.HasParticipant(userID) {
		return ErrNotParticipant
	}
	if m.Status.Terminal() {
		return nil
	}
	return s.forfeitMatch(ctx, m, userID, "player quit")
}

// GetMatch fetches a match for one of its participants
func (s *MatchService) GetMatch(ctx context.Context, matchID, userID string) (*models.Match, error) {
	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFoundf("match %s not found", matchID)
		}
		return nil, err
	}
	if !m.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return m, nil
}

// GetLanguageRating fetches (or seeds) a player's rating for a language
func (s *MatchService) GetLanguageRating(ctx context.Context, userID, language string) (*models.LanguageRating, error) {
	return s.repo.GetOrCreateLanguageRating(ctx, userID, language)
}

// ===== Power-ups =====

// ActivatePowerUp resolves a power-up activation against the match's
// current effect set and persists the outcome.
func (s *MatchService) ActivatePowerUp(ctx context.Context, matchID, userID, questionID string) (*PowerUpResult, error) {
	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFoundf("match %s not found", matchID)
		}
		return nil, err
	}
	if !m.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	if m.Status != models.StatusInProgress {
		return nil, ErrInvalidMatchState
	}
	if m.PowerUpState == nil {
		return nil, ErrPowerUpsDisabled
	}

	opponents := m.Opponents(userID)
	if len(opponents) == 0 {
		return nil, ErrInvalidMatchState
	}
	target := powerup.Target(m.PowerUpState[userID].Equipped, userID, opponents[0])

	states, outcome, err := powerup.Activate(m.PowerUpState, userID, target, questionID, s.now())
	switch {
	case err == powerup.ErrOnCooldown:
		return nil, ErrPowerUpOnCooldown
	case err == powerup.ErrNotEquipped:
		return nil, ErrPowerUpNotEquipped
	case err == powerup.ErrNoState:
		return nil, ErrNotParticipant
	case err != nil:
		return nil, err
	}

	if err := s.repo.UpdateMatch(ctx, matchID, repository.MatchUpdate{PowerUpState: states}); err != nil {
		return nil, err
	}

	result := &PowerUpResult{
		Cancelled:  outcome.Cancelled,
		Multiplier: powerup.Multiplier(states, target, questionID),
	}
	if !outcome.Cancelled {
		effect := outcome.Effect
		result.Effect = &effect
	}
	eventType := EventPowerUpActivated
	if outcome.Cancelled {
		eventType = EventPowerUpCancelled
	}
	s.transport.SendToUsers(m.Participants, models.WSMessage{
		Type: eventType,
		Payload: map[string]interface{}{
			"match_id": matchID, "user_id": userID,
			"question_id": questionID, "result": result,
		},
	})
	return result, nil
}

// ClearQuestionEffects drops all power-up effects for a question when its
// answer window closes.
func (s *MatchService) ClearQuestionEffects(ctx context.Context, matchID, questionID string) error {
	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFoundf("match %s not found", matchID)
		}
		return err
	}
	if m.PowerUpState == nil {
		return nil
	}
	states := powerup.ClearQuestion(m.PowerUpState, questionID)
	return s.repo.UpdateMatch(ctx, matchID, repository.MatchUpdate{PowerUpState: states})
}

// ===== Answer submission and completion =====

// SubmitAnswers records one participant's answers. When the last
// participant submits, the match completes and ratings update; in an
// async match the turn flips instead.
func (s *MatchService) SubmitAnswers(ctx context.Context, matchID, userID string, answers []models.Answer) (*models.MatchResult, error) {
	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFoundf("match %s not found", matchID)
		}
		return nil, err
	}
	if !m.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	if m.Status != models.StatusInProgress {
		return nil, ErrInvalidMatchState
	}
	if m.IsAsync && m.CurrentTurnUserID != nil && *m.CurrentTurnUserID != userID {
		return nil, ErrNotYourTurn
	}

	if _, err := s.repo.GetMatchResult(ctx, matchID, userID); err == nil {
		return nil, ErrDuplicateSubmission
	} else if !stderrors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	result := s.scoreAnswers(m, userID, answers)
	if err := s.repo.CreateMatchResult(ctx, result); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateSubmission
		}
		return nil, err
	}

	results, err := s.repo.ListMatchResults(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if len(results) >= len(m.Participants) {
		// A completion failure means the match never left IN_PROGRESS;
		// the caller must not see the submission as having finished it
		if err := s.completeMatch(ctx, m, results); err != nil {
			return nil, err
		}
		return result, nil
	}

	if m.IsAsync {
		if err := s.advanceTurn(ctx, m, results); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// scoreAnswers grades a submission against the match's question snapshots.
// Every FREEZE use charges a fixed time penalty so stalling is never free.
func (s *MatchService) scoreAnswers(m *models.Match, userID string, answers []models.Answer) *models.MatchResult {
	byID := make(map[string]models.Question, len(m.Questions))
	for _, q := range m.Questions {
		byID[q.ID] = q
	}

	details := make(map[string]models.AnswerDetail, len(answers))
	correctCount := 0
	totalTime := 0
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			continue
		}
		correct := a.Answer == q.CorrectIndex
		if correct {
			correctCount++
		}
		totalTime += a.TimeMs
		details[a.QuestionID] = models.AnswerDetail{Answer: a.Answer, TimeMs: a.TimeMs, Correct: correct}
	}

	usages := 0
	if st, ok := m.PowerUpState[userID]; ok {
		totalTime += st.FreezeUses * powerup.FreezePenaltyMs
		usages = st.Usages
	}

	return &models.MatchResult{
		MatchID:       m.ID,
		UserID:        userID,
		Score:         correctCount * PointsPerCorrect,
		CorrectCount:  correctCount,
		TotalTimeMs:   totalTime,
		Answers:       details,
		PowerUpUsages: usages,
		CreatedAt:     s.now(),
	}
}

// advanceTurn flips an async match to the next participant who has not
// submitted yet and resets the 24-hour deadline.
func (s *MatchService) advanceTurn(ctx context.Context, m *models.Match, results []models.MatchResult) error {
	submitted := make(map[string]bool, len(results))
	for _, r := range results {
		submitted[r.UserID] = true
	}
	for _, p := range m.Participants {
		if submitted[p] {
			continue
		}
		deadline := s.now().Add(s.asyncTurnDeadline)
		next := p
		err := s.repo.UpdateMatch(ctx, m.ID, repository.MatchUpdate{
			CurrentTurnUserID: &next,
			TurnDeadlineAt:    &deadline,
		})
		if err != nil {
			return err
		}
		s.transport.SendToUsers(m.Participants, models.WSMessage{
			Type: EventTurnChanged,
			Payload: map[string]interface{}{
				"match_id": m.ID, "current_turn_user_id": next, "turn_deadline_at": deadline,
			},
		})
		return nil
	}
	return nil
}

// DetermineWinner orders results by correct count, then by total time.
// The leader wins unless the runner-up ties on both, which is a draw.
func DetermineWinner(results []models.MatchResult) (winnerID string, isDraw bool) {
	if len(results) == 0 {
		return "", true
	}
	ranked := make([]models.MatchResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CorrectCount != ranked[j].CorrectCount {
			return ranked[i].CorrectCount > ranked[j].CorrectCount
		}
		return ranked[i].TotalTimeMs < ranked[j].TotalTimeMs
	})
	if len(ranked) > 1 &&
		ranked[0].CorrectCount == ranked[1].CorrectCount &&
		ranked[0].TotalTimeMs == ranked[1].TotalTimeMs {
		return "", true
	}
	return ranked[0].UserID, false
}

// completeMatch closes out a match and, for rated kinds, applies the
// rating and division updates. An error means the COMPLETED write failed
// and the match is still IN_PROGRESS; a rating failure after the status
// is persisted is logged and left for the reconciliation pass, never
// surfaced.
func (s *MatchService) completeMatch(ctx context.Context, m *models.Match, results []models.MatchResult) error {
	now := s.now()
	status := models.StatusCompleted
	update := repository.MatchUpdate{Status: &status, EndedAt: &now}
	if m.IsAsync {
		update.ClearTurn = true
	}
	if err := s.repo.UpdateMatch(ctx, m.ID, update); err != nil {
		return err
	}
	s.releaseMatch(m.ID)

	winnerID, isDraw := DetermineWinner(results)

	var deltas map[string]int
	var divisions map[string]string
	if m.Kind == models.KindRanked || m.Kind == models.KindBattle {
		var err error
		deltas, divisions, err = s.applyRatings(ctx, m, results, winnerID, isDraw)
		if err != nil {
			s.log.Error("rating update failed after completion", "match", m.ID, "error", err)
			deltas, divisions = nil, nil
		}
	}

	s.notifyCompleted(m, results, winnerID, isDraw, deltas, divisions)
	s.log.Info("match completed", "match", m.ID, "winner", winnerID, "draw", isDraw)
	return nil
}

func (s *MatchService) notifyCompleted(m *models.Match, results []models.MatchResult, winnerID string, isDraw bool, deltas map[string]int, divisions map[string]string) {
	payload := map[string]interface{}{
		"match_id": m.ID,
		"is_draw":  isDraw,
		"results":  results,
	}
	if winnerID != "" {
		payload["winner_id"] = winnerID
	}
	if deltas != nil {
		payload["rating_deltas"] = deltas
	}
	if divisions != nil {
		payload["divisions"] = divisions
	}
	s.transport.SendToUsers(m.Participants, models.WSMessage{Type: EventMatchCompleted, Payload: payload})
}

// applyRatings computes zero-sum rating deltas from the match ordering and
// persists them together with the resulting divisions.
func (s *MatchService) applyRatings(ctx context.Context, m *models.Match, results []models.MatchResult, winnerID string, isDraw bool) (map[string]int, map[string]string, error) {
	players := make([]rating.PlayerScore, 0, len(results))
	records := make(map[string]*models.LanguageRating, len(results))
	for _, r := range results {
		lr, err := s.repo.GetOrCreateLanguageRating(ctx, r.UserID, m.Language)
		if err != nil {
			return nil, nil, err
		}
		records[r.UserID] = lr
		players = append(players, rating.PlayerScore{
			UserID: r.UserID,
			Rating: lr.Rating,
			Score:  outcomeScore(r.UserID, winnerID, isDraw),
		})
	}

	deltas := rating.AggregateDeltas(players, rating.DefaultK)

	divisions := make(map[string]string, len(results))
	updates := make([]repository.RatingUpdate, 0, len(results))
	for _, r := range results {
		delta := deltas[r.UserID]
		newRating := rating.ClampRating(records[r.UserID].Rating + delta)
		placement := rating.Classify(newRating)
		divisions[r.UserID] = placement.DisplayName

		outcome := repository.OutcomeDraw
		switch {
		case isDraw:
		case r.UserID == winnerID:
			outcome = repository.OutcomeWin
		default:
			outcome = repository.OutcomeLoss
		}
		updates = append(updates, repository.RatingUpdate{
			UserID:   r.UserID,
			Delta:    delta,
			Outcome:  outcome,
			Division: placement.DisplayName,
		})
	}

	// One transaction: the ladder and the stored deltas move together or
	// not at all, so a reconciliation retry can never apply a match twice
	if err := s.repo.ApplyMatchRatings(ctx, m.ID, m.Language, updates); err != nil {
		return nil, nil, err
	}
	return deltas, divisions, nil
}

// outcomeScore converts the winner ordering into a comparable score so
// that the rating engine agrees with winner determination even when raw
// correct counts tie and the time tie-break decided the match.
func outcomeScore(userID, winnerID string, isDraw bool) float64 {
	if isDraw {
		return 0.5
	}
	if userID == winnerID {
		return 1.0
	}
	return 0.0
}

// ===== Maintenance =====

// SweepLobby ages out stale lobby entries and tells the affected players
func (s *MatchService) SweepLobby() {
	removed := s.lobby.SweepStale()
	for _, e := range removed {
		s.transport.SendToUser(e.UserID, models.WSMessage{
			Type:    EventLobbyExpired,
			Payload: map[string]string{"user_id": e.UserID},
		})
	}
	if len(removed) > 0 {
		s.broadcastLobbyUpdate()
	}
}

// SweepTurnDeadlines forfeits async matches whose current player let the
// turn deadline lapse. Returns how many matches were closed.
func (s *MatchService) SweepTurnDeadlines(ctx context.Context) (int, error) {
	ids, err := s.repo.ListMatchesWithExpiredTurn(ctx, s.now())
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range ids {
		m, err := s.repo.GetMatch(ctx, id)
		if err != nil {
			s.log.Error("turn sweep fetch failed", "match", id, "error", err)
			continue
		}
		if m.Status != models.StatusInProgress || m.CurrentTurnUserID == nil || m.TurnDeadlineAt == nil {
			continue
		}
		if s.now().Before(*m.TurnDeadlineAt) {
			continue
		}
		if err := s.forfeitMatch(ctx, m, *m.CurrentTurnUserID, "turn deadline expired"); err != nil {
			s.log.Error("turn sweep forfeit failed", "match", id, "error", err)
			continue
		}
		closed++
	}
	return closed, nil
}

// ReconcileRatings recomputes ratings for completed rated matches whose
// results still carry a null rating change. Returns how many matches were
// repaired.
func (s *MatchService) ReconcileRatings(ctx context.Context) (int, error) {
	ids, err := s.repo.ListMatchesNeedingRatings(ctx)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, id := range ids {
		m, err := s.repo.GetMatch(ctx, id)
		if err != nil {
			s.log.Error("reconciliation fetch failed", "match", id, "error", err)
			continue
		}
		results, err := s.repo.ListMatchResults(ctx, id)
		if err != nil {
			s.log.Error("reconciliation results fetch failed", "match", id, "error", err)
			continue
		}
		if len(results) < len(m.Participants) {
			// Should not happen for a COMPLETED match; leave for inspection
			s.log.Warn("completed match missing results", "match", id)
			continue
		}
		winnerID, isDraw := DetermineWinner(results)
		if _, _, err := s.applyRatings(ctx, m, results, winnerID, isDraw); err != nil {
			s.log.Error("reconciliation rating update failed", "match", id, "error", err)
			continue
		}
		repaired++
	}
	if repaired > 0 {
		s.log.Info("reconciled ratings", "matches", repaired)
	}
	return repaired, nil
}
