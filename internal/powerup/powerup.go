// Package powerup resolves transient power-up effects inside a match.
//
// The resolver is a pure state-transition function: it takes the current
// per-player state set as a value, and returns a new state set. Callers
// persist the returned value; nothing is mutated in place.
package powerup

import (
	"time"

	"github.com/mwhitby/lingoduel/internal/models"
)

const (
	// Cooldown between activations by the same player
	Cooldown = 60 * time.Second

	// FreezePenaltyMs is added to the freezing player's own recorded
	// total time, so stalling is never free.
	FreezePenaltyMs = 5000
)

// Resolution errors
var (
	ErrNotEquipped = &ResolveError{Message: "player has no power-up equipped"}
	ErrOnCooldown  = &ResolveError{Message: "power-up is on cooldown"}
	ErrNoState     = &ResolveError{Message: "no power-up state for player"}
)

// ResolveError is a resolver-level error
type ResolveError struct {
	Message string
}

func (e *ResolveError) Error() string {
	return e.Message
}

// Outcome describes what an activation did
type Outcome struct {
	Cancelled bool                 // true when an opposite effect was removed instead
	Effect    models.PowerUpEffect // the activation that was resolved
}

// Target returns who an activation by actor affects: FREEZE stalls the
// actor's own timer, BURN speeds up the opponent's.
func Target(kind models.PowerUpKind, actorID, opponentID string) string {
	if kind == models.PowerUpBurn {
		return opponentID
	}
	return actorID
}

// Activate resolves a power-up activation by actorID against targetID for
// questionID. It returns the updated state set.
//
// If an effect of the opposite kind already exists for the same (target,
// question) pair, the two cancel: the existing effect is removed and no
// new effect is added. The actor's cooldown starts either way.
func Activate(states map[string]models.PowerUpState, actorID, targetID, questionID string, now time.Time) (map[string]models.PowerUpState, Outcome, error) {
	actor, ok := states[actorID]
	if !ok {
		return states, Outcome{}, ErrNoState
	}
	if actor.Equipped == models.PowerUpNone || actor.Equipped == "" {
		return states, Outcome{}, ErrNotEquipped
	}
	if actor.CooldownEndsAt != nil && now.Before(*actor.CooldownEndsAt) {
		return states, Outcome{}, ErrOnCooldown
	}

	effect := models.PowerUpEffect{
		Type:         actor.Equipped,
		SourceUserID: actorID,
		TargetUserID: targetID,
		QuestionID:   questionID,
		AppliedAt:    now,
	}

	next := clone(states)

	cancelled := removeOpposite(next, effect)
	if !cancelled {
		st := next[actorID]
		st.ActiveEffects = append(st.ActiveEffects, effect)
		next[actorID] = st
	}

	st := next[actorID]
	usedAt := now
	ends := now.Add(Cooldown)
	st.LastUsedAt = &usedAt
	st.CooldownEndsAt = &ends
	st.Usages++
	if actor.Equipped == models.PowerUpFreeze {
		st.FreezeUses++
	}
	next[actorID] = st

	return next, Outcome{Cancelled: cancelled, Effect: effect}, nil
}

// Multiplier derives the timer multiplier for (userID, questionID) from
// the current effect set. FREEZE alone stops the timer, BURN alone runs
// it at double speed. Both together should not occur given cancellation,
// but are handled defensively as a plain 1.0.
func Multiplier(states map[string]models.PowerUpState, userID, questionID string) float64 {
	var frozen, burned bool
	for _, st := range states {
		for _, e := range st.ActiveEffects {
			if e.TargetUserID != userID || e.QuestionID != questionID {
				continue
			}
			switch e.Type {
			case models.PowerUpFreeze:
				frozen = true
			case models.PowerUpBurn:
				burned = true
			}
		}
	}
	switch {
	case frozen && burned:
		return 1.0
	case frozen:
		return 0
	case burned:
		return 2.0
	default:
		return 1.0
	}
}

// ClearQuestion removes every effect attached to questionID, returning
// the updated state set. Called when a question's answer window closes.
func ClearQuestion(states map[string]models.PowerUpState, questionID string) map[string]models.PowerUpState {
	next := clone(states)
	for id, st := range next {
		kept := st.ActiveEffects[:0:0]
		for _, e := range st.ActiveEffects {
			if e.QuestionID != questionID {
				kept = append(kept, e)
			}
		}
		st.ActiveEffects = kept
		next[id] = st
	}
	return next
}

// EffectsFor lists active effects targeting (userID, questionID)
func EffectsFor(states map[string]models.PowerUpState, userID, questionID string) []models.PowerUpEffect {
	var out []models.PowerUpEffect
	for _, st := range states {
		for _, e := range st.ActiveEffects {
			if e.TargetUserID == userID && e.QuestionID == questionID {
				out = append(out, e)
			}
		}
	}
	return out
}

// removeOpposite deletes an effect of the opposite kind on the same
// (target, question) pair if one exists, reporting whether it did.
func removeOpposite(states map[string]models.PowerUpState, effect models.PowerUpEffect) bool {
	opposite := models.PowerUpFreeze
	if effect.Type == models.PowerUpFreeze {
		opposite = models.PowerUpBurn
	}

	for id, st := range states {
		for i, e := range st.ActiveEffects {
			if e.Type == opposite && e.TargetUserID == effect.TargetUserID && e.QuestionID == effect.QuestionID {
				st.ActiveEffects = append(st.ActiveEffects[:i:i], st.ActiveEffects[i+1:]...)
				states[id] = st
				return true
			}
		}
	}
	return false
}

// clone copies the state set, including each player's effect slice
func clone(states map[string]models.PowerUpState) map[string]models.PowerUpState {
	next := make(map[string]models.PowerUpState, len(states))
	for id, st := range states {
		effects := make([]models.PowerUpEffect, len(st.ActiveEffects))
		copy(effects, st.ActiveEffects)
		st.ActiveEffects = effects
		next[id] = st
	}
	return next
}
