package models

import "time"

// MatchKind identifies the queue a player searches in
type MatchKind string

const (
	KindRanked MatchKind = "RANKED"
	KindCasual MatchKind = "CASUAL"
	KindCustom MatchKind = "CUSTOM"
	KindBattle MatchKind = "BATTLE"
)

// MatchStatus is the lifecycle state of a match
type MatchStatus string

const (
	StatusReadyCheck MatchStatus = "READY_CHECK"
	StatusInProgress MatchStatus = "IN_PROGRESS"
	StatusCompleted  MatchStatus = "COMPLETED"
	StatusCancelled  MatchStatus = "CANCELLED"
)

// Terminal reports whether the status allows no further transitions
func (s MatchStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Difficulty of a question
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// PowerUpKind identifies an equippable power-up
type PowerUpKind string

const (
	PowerUpNone   PowerUpKind = "NONE"
	PowerUpFreeze PowerUpKind = "FREEZE"
	PowerUpBurn   PowerUpKind = "BURN"
)

// CustomSettings are the host-chosen parameters of a custom match.
// Durations are restricted to 30, 45 or 60 seconds.
type CustomSettings struct {
	QuestionDurationSeconds int        `json:"question_duration_seconds"`
	Difficulty              Difficulty `json:"difficulty"`
	PowerUpsEnabled         bool       `json:"power_ups_enabled"`
}

// LobbyEntry is a waiting player in the in-memory lobby
type LobbyEntry struct {
	UserID          string          `json:"user_id"`
	Rating          int             `json:"rating"`
	Kind            MatchKind       `json:"kind"`
	Language        string          `json:"language"`
	JoinedAt        time.Time       `json:"joined_at"`
	CustomSettings  *CustomSettings `json:"custom_settings,omitempty"`
	IsBattleMode    bool            `json:"is_battle_mode"`
	IsAsync         bool            `json:"is_async"`
	EquippedPowerUp PowerUpKind     `json:"equipped_power_up"`
	InviteCode      string          `json:"invite_code,omitempty"`
}

// Question is a snapshot of a question embedded in a match
type Question struct {
	ID           string     `json:"id"`
	Language     string     `json:"language"`
	Difficulty   Difficulty `json:"difficulty"`
	Prompt       string     `json:"prompt"`
	Options      []string   `json:"options"`
	CorrectIndex int        `json:"correct_index"`
}

// ConnectionInfo tracks a participant's realtime presence within a match
type ConnectionInfo struct {
	Connected      bool       `json:"connected"`
	LastSeen       time.Time  `json:"last_seen"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
}

// PowerUpEffect is one active effect on a (target, question) pair
type PowerUpEffect struct {
	Type         PowerUpKind `json:"type"`
	SourceUserID string      `json:"source_user_id"`
	TargetUserID string      `json:"target_user_id"`
	QuestionID   string      `json:"question_id"`
	AppliedAt    time.Time   `json:"applied_at"`
}

// PowerUpState is a player's power-up state within a single match
type PowerUpState struct {
	Equipped       PowerUpKind     `json:"equipped"`
	LastUsedAt     *time.Time      `json:"last_used_at,omitempty"`
	CooldownEndsAt *time.Time      `json:"cooldown_ends_at,omitempty"`
	ActiveEffects  []PowerUpEffect `json:"active_effects"`
	Usages         int             `json:"usages"`
	FreezeUses     int             `json:"freeze_uses"`
}

// Match is a two-player duel
type Match struct {
	ID                      string                     `json:"id"`
	Kind                    MatchKind                  `json:"kind"`
	Status                  MatchStatus                `json:"status"`
	Language                string                     `json:"language"`
	Participants            []string                   `json:"participants"`
	Questions               []Question                 `json:"questions"`
	QuestionDurationSeconds *int                       `json:"question_duration_seconds,omitempty"`
	IsAsync                 bool                       `json:"is_async"`
	CurrentTurnUserID       *string                    `json:"current_turn_user_id,omitempty"`
	TurnDeadlineAt          *time.Time                 `json:"turn_deadline_at,omitempty"`
	ConnectionState         map[string]ConnectionInfo  `json:"connection_state"`
	PowerUpState            map[string]PowerUpState    `json:"power_up_state,omitempty"`
	InviteCode              string                     `json:"invite_code,omitempty"`
	StartedAt               *time.Time                 `json:"started_at,omitempty"`
	EndedAt                 *time.Time                 `json:"ended_at,omitempty"`
	CreatedAt               time.Time                  `json:"created_at"`
}

// HasParticipant reports whether userID plays in this match
func (m *Match) HasParticipant(userID string) bool {
	for _, p := range m.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Opponents returns all participants except userID
func (m *Match) Opponents(userID string) []string {
	var others []string
	for _, p := range m.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

// AnswerDetail records how one question was answered
type AnswerDetail struct {
	Answer  int  `json:"answer"`
	TimeMs  int  `json:"time_ms"`
	Correct bool `json:"correct"`
}

// MatchResult is one participant's submitted outcome for a match
type MatchResult struct {
	MatchID      string                  `json:"match_id"`
	UserID       string                  `json:"user_id"`
	Score        int                     `json:"score"`
	CorrectCount int                     `json:"correct_count"`
	TotalTimeMs  int                     `json:"total_time_ms"`
	Answers      map[string]AnswerDetail `json:"answers"` // question_id -> detail
	RatingChange *int                    `json:"rating_change,omitempty"`
	PowerUpUsages int                    `json:"power_up_usages"`
	CreatedAt    time.Time               `json:"created_at"`
}

// Answer is a single submitted answer
type Answer struct {
	QuestionID string `json:"question_id"`
	Answer     int    `json:"answer"`
	TimeMs     int    `json:"time_ms"`
}

// LanguageRating is a player's per-language skill record
type LanguageRating struct {
	UserID   string `json:"user_id"`
	Language string `json:"language"`
	Rating   int    `json:"rating"`
	Division string `json:"division"`
	Matches  int    `json:"matches"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
