package rating

import "math"

// DefaultK is the K-factor applied to a full two-player pairing
const DefaultK = 32

// SeedRating is the starting rating for a new (user, language) record
const SeedRating = 1000

// PlayerScore is one participant's pre-match rating and final standing.
// Score is a comparable standing value: higher means a better final result.
// Equal scores mean the pairing is a draw.
type PlayerScore struct {
	UserID string
	Rating int
	Score  float64
}

// ExpectedScore returns the probability of player a beating player b
// under the Elo model.
func ExpectedScore(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// PairwiseDelta computes the rating change for a single pairing.
// actual must be 1 (win), 0.5 (draw) or 0 (loss).
func PairwiseDelta(rating, oppRating int, actual, k float64) int {
	return int(math.Round(k * (actual - ExpectedScore(rating, oppRating))))
}

// AggregateDeltas computes rating deltas for every player against every
// other player, using k/(N-1) as the per-pairing K-factor. Matches are
// currently always two-player but the aggregation is kept general.
//
// For two players the result is exactly zero-sum: math.Round is symmetric
// around zero, and the opposing pairing negates both the actual and the
// expected term.
func AggregateDeltas(players []PlayerScore, k float64) map[string]int {
	deltas := make(map[string]int, len(players))
	if len(players) < 2 {
		for _, p := range players {
			deltas[p.UserID] = 0
		}
		return deltas
	}

	pairK := k / float64(len(players)-1)
	for _, p := range players {
		total := 0
		for _, opp := range players {
			if opp.UserID == p.UserID {
				continue
			}
			actual := 0.5
			switch {
			case p.Score > opp.Score:
				actual = 1
			case p.Score < opp.Score:
				actual = 0
			}
			total += PairwiseDelta(p.Rating, opp.Rating, actual, pairK)
		}
		deltas[p.UserID] = total
	}
	return deltas
}

// ClampRating keeps a rating inside the representable band
func ClampRating(r int) int {
	if r < 0 {
		return 0
	}
	if r > 9999 {
		return 9999
	}
	return r
}
