package services

import (
	"sync"
	"time"

	"github.com/mwhitby/lingoduel/internal/logger"
	"github.com/mwhitby/lingoduel/internal/models"
)

const (
	// StaleAfter is how long a lobby entry may wait before the sweeper
	// removes it.
	StaleAfter = 60 * time.Second

	// widenInterval is how often the search radius steps up while a
	// player waits.
	widenInterval = 20 * time.Second

	// maxSearchMultiplier caps radius widening.
	maxSearchMultiplier = 3

	// rankedScoreCeiling bounds the rating difference for RANKED and
	// BATTLE pairings, scaled by the search multiplier.
	rankedScoreCeiling = 200
)

// lobbyRecord pairs an entry with its insertion order for deterministic
// tie-breaking.
type lobbyRecord struct {
	entry models.LobbyEntry
	seq   uint64
}

// LobbyStatus is a point-in-time summary of waiting players
type LobbyStatus struct {
	Total  int                      `json:"total"`
	ByKind map[models.MatchKind]int `json:"by_kind"`
}

// LobbyService is the in-memory registry of players searching for a match.
// All state lives in process memory and is guarded by a single mutex; the
// lock is never held across store calls or transport sends.
type LobbyService struct {
	log logger.Logger

	mu      sync.Mutex
	entries map[string]lobbyRecord
	nextSeq uint64

	// now is replaceable in tests
	now func() time.Time
}

// NewLobbyService creates a new LobbyService
func NewLobbyService(log logger.Logger) *LobbyService {
	return &LobbyService{
		log:     log,
		entries: make(map[string]lobbyRecord),
		now:     time.Now,
	}
}

// Join registers a player in the lobby. A player has at most one
// outstanding search: joining again overwrites the previous entry.
func (s *LobbyService) Join(entry models.LobbyEntry) error {
	if entry.Kind == models.KindCustom && entry.CustomSettings != nil {
		switch entry.CustomSettings.QuestionDurationSeconds {
		case 30, 45, 60:
		default:
			return ErrInvalidCustomSetting
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.JoinedAt.IsZero() {
		entry.JoinedAt = s.now()
	}
	s.nextSeq++
	s.entries[entry.UserID] = lobbyRecord{entry: entry, seq: s.nextSeq}

	s.log.Debug("lobby join", "user", entry.UserID, "kind", entry.Kind, "language", entry.Language)
	return nil
}

// Leave removes a player from the lobby. Leaving twice is a no-op.
func (s *LobbyService) Leave(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[userID]; !ok {
		return nil
	}
	delete(s.entries, userID)
	s.log.Debug("lobby leave", "user", userID)
	return nil
}

// Get returns the entry for a waiting player
func (s *LobbyService) Get(userID string) (models.LobbyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entries[userID]
	return rec.entry, ok
}

// FindByInviteCode returns the waiting entry holding a custom-match
// invite code.
func (s *LobbyService) FindByInviteCode(code string) (models.LobbyEntry, bool) {
	if code == "" {
		return models.LobbyEntry{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.entries {
		if rec.entry.InviteCode == code {
			return rec.entry, true
		}
	}
	return models.LobbyEntry{}, false
}

// searchRadius computes the acceptable rating distance for an entry.
// The base radius scales with rating and widens every 20 seconds of
// waiting, capping at 3x.
func searchRadius(entry models.LobbyEntry, now time.Time) (radius, multiplier int) {
	base := entry.Rating / 10
	if base < 100 {
		base = 100
	}
	waited := now.Sub(entry.JoinedAt)
	multiplier = 1 + int(waited/widenInterval)
	if multiplier > maxSearchMultiplier {
		multiplier = maxSearchMultiplier
	}
	return base * multiplier, multiplier
}

// compatible reports whether two entries may be paired at all,
// independent of rating distance.
func compatible(a, b models.LobbyEntry) bool {
	if a.Kind != b.Kind || a.Language != b.Language {
		return false
	}
	if a.IsBattleMode != b.IsBattleMode || a.IsAsync != b.IsAsync {
		return false
	}
	if a.Kind == models.KindCustom {
		if a.InviteCode != "" || b.InviteCode != "" {
			return a.InviteCode == b.InviteCode
		}
		if a.CustomSettings == nil || b.CustomSettings == nil {
			return a.CustomSettings == b.CustomSettings
		}
		return *a.CustomSettings == *b.CustomSettings
	}
	return true
}

// FindMatch searches the lobby for the best opponent for userID. The best
// candidate is the one with the smallest rating difference inside the
// searcher's current radius; ties go to the earliest joiner. For RANKED
// and BATTLE the difference is additionally capped at 200 per multiplier
// step so a fresh queue never pairs wildly mismatched players.
func (s *LobbyService) FindMatch(userID string) (models.LobbyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entries[userID]
	if !ok {
		return models.LobbyEntry{}, false
	}
	me := rec.entry
	radius, multiplier := searchRadius(me, s.now())

	var (
		best      lobbyRecord
		bestScore int
		found     bool
	)
	for otherID, other := range s.entries {
		if otherID == userID {
			continue
		}
		if !compatible(me, other.entry) {
			continue
		}
		score := me.Rating - other.entry.Rating
		if score < 0 {
			score = -score
		}
		if score > radius {
			continue
		}
		if me.Kind == models.KindRanked || me.Kind == models.KindBattle {
			if score > rankedScoreCeiling*multiplier {
				continue
			}
		}
		if !found || score < bestScore || (score == bestScore && other.seq < best.seq) {
			best = other
			bestScore = score
			found = true
		}
	}
	return best.entry, found
}

// TakePair atomically removes both players from the lobby. If either has
// already left, neither is removed and ErrPlayersNotFound is returned so
// the caller can retry pairing.
func (s *LobbyService) TakePair(userA, userB string) ([]models.LobbyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, okA := s.entries[userA]
	b, okB := s.entries[userB]
	if !okA || !okB {
		return nil, ErrPlayersNotFound
	}
	delete(s.entries, userA)
	delete(s.entries, userB)
	return []models.LobbyEntry{a.entry, b.entry}, nil
}

// SweepStale removes entries older than StaleAfter and returns them so
// the caller can notify the affected players.
func (s *LobbyService) SweepStale() []models.LobbyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-StaleAfter)
	var removed []models.LobbyEntry
	for id, rec := range s.entries {
		if rec.entry.JoinedAt.Before(cutoff) {
			removed = append(removed, rec.entry)
			delete(s.entries, id)
		}
	}
	if len(removed) > 0 {
		s.log.Info("swept stale lobby entries", "count", len(removed))
	}
	return removed
}

// Status summarizes the lobby for monitoring and the lobby.updated event
func (s *LobbyService) Status() LobbyStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := LobbyStatus{ByKind: make(map[models.MatchKind]int)}
	for _, rec := range s.entries {
		st.Total++
		st.ByKind[rec.entry.Kind]++
	}
	return st
}
