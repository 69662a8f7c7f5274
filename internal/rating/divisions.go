package rating

import "fmt"

// Band is one division's rating range. Max is inclusive; the top band
// is open-ended (Max < 0).
type Band struct {
	Name string
	Min  int
	Max  int
}

// bands are ordered from floor to top. The floor and top bands carry no
// sub-tiers; every other band splits into four equal 100-point tiers.
var bands = []Band{
	{Name: "Bronze", Min: 0, Max: 999},
	{Name: "Silver", Min: 1000, Max: 1399},
	{Name: "Gold", Min: 1400, Max: 1799},
	{Name: "Platinum", Min: 1800, Max: 2199},
	{Name: "Diamond", Min: 2200, Max: 2599},
	{Name: "Master", Min: 2600, Max: -1},
}

var tierNumerals = [...]string{"I", "II", "III", "IV"}

// Placement is the human-facing rank derived from a rating
type Placement struct {
	Division    string `json:"division"`
	Tier        int    `json:"tier"` // 0 for floor and top divisions
	BandMin     int    `json:"band_min"`
	BandMax     int    `json:"band_max"` // -1 for the open-ended top band
	DisplayName string `json:"display_name"`
}

// Classify maps a rating to its division and tier. Tier 4 covers the
// lowest quarter of a band and tier 1 the highest, so the tier number
// counts down as rating rises.
func Classify(rating int) Placement {
	r := ClampRating(rating)
	for i, b := range bands {
		if b.Max >= 0 && r > b.Max {
			continue
		}

		p := Placement{Division: b.Name, BandMin: b.Min, BandMax: b.Max, DisplayName: b.Name}
		if i == 0 || i == len(bands)-1 {
			return p
		}

		width := (b.Max - b.Min + 1) / 4
		sub := (r - b.Min) / width
		if sub > 3 {
			sub = 3
		}
		p.Tier = 4 - sub
		p.DisplayName = fmt.Sprintf("%s %s", b.Name, tierNumerals[p.Tier-1])
		return p
	}
	// Unreachable: the top band is open-ended
	return Placement{Division: bands[len(bands)-1].Name}
}

// DivisionRank returns the ordinal of a rating's division, floor first.
// Useful for monotonicity checks and division-change detection.
func DivisionRank(rating int) int {
	r := ClampRating(rating)
	for i, b := range bands {
		if b.Max < 0 || r <= b.Max {
			return i
		}
	}
	return len(bands) - 1
}

// Bands returns a copy of the configured division bands
func Bands() []Band {
	out := make([]Band, len(bands))
	copy(out, bands)
	return out
}
