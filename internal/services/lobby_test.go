package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/mwhitby/lingoduel/internal/logger"
	"github.com/mwhitby/lingoduel/internal/models"
)

var lobbyBase = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestLobby(t *testing.T) *LobbyService {
	t.Helper()
	s := NewLobbyService(logger.NewWithLevel(slog.LevelError))
	s.now = func() time.Time { return lobbyBase }
	return s
}

func rankedEntry(userID string, rating int) models.LobbyEntry {
	return models.LobbyEntry{
		UserID:   userID,
		Rating:   rating,
		Kind:     models.KindRanked,
		Language: "english",
		JoinedAt: lobbyBase,
	}
}

func TestJoin_OverwritesExisting(t *testing.T) {
	s := newTestLobby(t)

	if err := s.Join(rankedEntry("alice", 1000)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	e2 := rankedEntry("alice", 1200)
	e2.Language = "spanish"
	if err := s.Join(e2); err != nil {
		t.Fatalf("second Join failed: %v", err)
	}

	got, ok := s.Get("alice")
	if !ok {
		t.Fatal("alice should be in the lobby")
	}
	if got.Rating != 1200 || got.Language != "spanish" {
		t.Errorf("entry was not overwritten: %+v", got)
	}
	if s.Status().Total != 1 {
		t.Errorf("expected 1 entry, got %d", s.Status().Total)
	}
}

func TestJoin_InvalidCustomDuration(t *testing.T) {
	s := newTestLobby(t)

	entry := rankedEntry("alice", 1000)
	entry.Kind = models.KindCustom
	entry.CustomSettings = &models.CustomSettings{QuestionDurationSeconds: 99, Difficulty: models.DifficultyEasy}
	if err := s.Join(entry); err != ErrInvalidCustomSetting {
		t.Errorf("expected ErrInvalidCustomSetting, got %v", err)
	}
}

func TestLeave_Idempotent(t *testing.T) {
	s := newTestLobby(t)

	if err := s.Join(rankedEntry("alice", 1000)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := s.Leave("alice"); err != nil {
		t.Fatalf("first Leave failed: %v", err)
	}
	if err := s.Leave("alice"); err != nil {
		t.Errorf("second Leave should be a no-op, got %v", err)
	}
	if _, ok := s.Get("alice"); ok {
		t.Error("alice should be gone")
	}
}

// A fresh RANKED search must not cross the 200-point ceiling, but after
// 40 seconds of waiting the multiplier reaches 3 and a 500-point gap fits.
func TestFindMatch_RangeExpansion(t *testing.T) {
	s := newTestLobby(t)

	if err := s.Join(rankedEntry("alice", 1000)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := s.Join(rankedEntry("bob", 1500)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if _, found := s.FindMatch("alice"); found {
		t.Error("500-point gap should not match at multiplier 1")
	}

	// Simulate 40s of waiting
	s.now = func() time.Time { return lobbyBase.Add(40 * time.Second) }
	got, found := s.FindMatch("alice")
	if !found {
		t.Fatal("500-point gap should match at multiplier 3")
	}
	if got.UserID != "bob" {
		t.Errorf("expected bob, got %s", got.UserID)
	}
}

func TestFindMatch_PrefersClosestRating(t *testing.T) {
	s := newTestLobby(t)

	if err := s.Join(rankedEntry("alice", 1000)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := s.Join(rankedEntry("far", 1150)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := s.Join(rankedEntry("near", 1010)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	got, found := s.FindMatch("alice")
	if !found {
		t.Fatal("expected a match")
	}
	if got.UserID != "near" {
		t.Errorf("expected the closest rating to win, got %s", got.UserID)
	}
}

func TestFindMatch_FiltersIncompatible(t *testing.T) {
	s := newTestLobby(t)

	if err := s.Join(rankedEntry("alice", 1000)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	otherLang := rankedEntry("french", 1000)
	otherLang.Language = "french"
	otherKind := rankedEntry("casual", 1000)
	otherKind.Kind = models.KindCasual
	asyncEntry := rankedEntry("async", 1000)
	asyncEntry.IsAsync = true
	for _, e := range []models.LobbyEntry{otherLang, otherKind, asyncEntry} {
		if err := s.Join(e); err != nil {
			t.Fatalf("Join failed: %v", err)
		}
	}

	if got, found := s.FindMatch("alice"); found {
		t.Errorf("no candidate should qualify, got %s", got.UserID)
	}
}

func TestFindMatch_CustomSettingsMustMatch(t *testing.T) {
	s := newTestLobby(t)

	custom := func(userID string, duration int) models.LobbyEntry {
		e := rankedEntry(userID, 1000)
		e.Kind = models.KindCustom
		e.CustomSettings = &models.CustomSettings{
			QuestionDurationSeconds: duration,
			Difficulty:              models.DifficultyMedium,
			PowerUpsEnabled:         true,
		}
		return e
	}

	if err := s.Join(custom("alice", 30)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := s.Join(custom("bob", 60)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, found := s.FindMatch("alice"); found {
		t.Error("different durations should not match")
	}

	if err := s.Join(custom("carol", 30)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	got, found := s.FindMatch("alice")
	if !found || got.UserID != "carol" {
		t.Errorf("expected carol with identical settings, got %v %v", got.UserID, found)
	}
}

func TestFindMatch_InviteCodesPairFriends(t *testing.T) {
	s := newTestLobby(t)

	invite := func(userID, code string) models.LobbyEntry {
		e := rankedEntry(userID, 1000)
		e.Kind = models.KindCustom
		e.InviteCode = code
		e.CustomSettings = &models.CustomSettings{QuestionDurationSeconds: 45, Difficulty: models.DifficultyEasy}
		return e
	}

	if err := s.Join(invite("host", "ABCD1234")); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := s.Join(invite("stranger", "ZZZZ9999")); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, found := s.FindMatch("host"); found {
		t.Error("mismatched invite codes should not pair")
	}

	if err := s.Join(invite("friend", "ABCD1234")); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	got, found := s.FindMatch("host")
	if !found || got.UserID != "friend" {
		t.Errorf("expected invite holder to pair, got %v %v", got.UserID, found)
	}
}

func TestFindByInviteCode(t *testing.T) {
	s := newTestLobby(t)

	host := rankedEntry("host", 1000)
	host.Kind = models.KindCustom
	host.InviteCode = "ABCD1234"
	host.CustomSettings = &models.CustomSettings{QuestionDurationSeconds: 45, Difficulty: models.DifficultyEasy}
	if err := s.Join(host); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	got, ok := s.FindByInviteCode("ABCD1234")
	if !ok || got.UserID != "host" {
		t.Errorf("expected host's entry, got %v %v", got.UserID, ok)
	}
	if _, ok := s.FindByInviteCode("ZZZZ9999"); ok {
		t.Error("unknown code should not resolve")
	}
	if _, ok := s.FindByInviteCode(""); ok {
		t.Error("empty code should never resolve")
	}
}

func TestTakePair_Vanished(t *testing.T) {
	s := newTestLobby(t)

	if err := s.Join(rankedEntry("alice", 1000)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if _, err := s.TakePair("alice", "gone"); err != ErrPlayersNotFound {
		t.Errorf("expected ErrPlayersNotFound, got %v", err)
	}
	// Alice must still be searchable after the failed take
	if _, ok := s.Get("alice"); !ok {
		t.Error("alice should remain in the lobby")
	}
}

func TestTakePair_RemovesBoth(t *testing.T) {
	s := newTestLobby(t)

	if err := s.Join(rankedEntry("alice", 1000)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := s.Join(rankedEntry("bob", 1010)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	entries, err := s.TakePair("alice", "bob")
	if err != nil {
		t.Fatalf("TakePair failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if s.Status().Total != 0 {
		t.Error("both players should be out of the lobby")
	}
}

func TestSweepStale(t *testing.T) {
	s := newTestLobby(t)

	old := rankedEntry("old", 1000)
	old.JoinedAt = lobbyBase.Add(-90 * time.Second)
	fresh := rankedEntry("fresh", 1000)
	if err := s.Join(old); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := s.Join(fresh); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	removed := s.SweepStale()
	if len(removed) != 1 || removed[0].UserID != "old" {
		t.Errorf("expected only the old entry swept, got %v", removed)
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Error("fresh entry should survive the sweep")
	}
}

func TestStatus_ByKind(t *testing.T) {
	s := newTestLobby(t)

	battle := rankedEntry("b1", 1000)
	battle.Kind = models.KindBattle
	for _, e := range []models.LobbyEntry{rankedEntry("r1", 1000), rankedEntry("r2", 1100), battle} {
		if err := s.Join(e); err != nil {
			t.Fatalf("Join failed: %v", err)
		}
	}

	st := s.Status()
	if st.Total != 3 {
		t.Errorf("expected total 3, got %d", st.Total)
	}
	if st.ByKind[models.KindRanked] != 2 || st.ByKind[models.KindBattle] != 1 {
		t.Errorf("unexpected kind breakdown: %v", st.ByKind)
	}
}
