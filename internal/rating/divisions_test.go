package rating

import "testing"

func TestClassify_Divisions(t *testing.T) {
	tests := []struct {
		rating   int
		division string
		tier     int
		display  string
	}{
		{0, "Bronze", 0, "Bronze"},
		{500, "Bronze", 0, "Bronze"},
		{999, "Bronze", 0, "Bronze"},
		{1000, "Silver", 4, "Silver IV"},
		{1099, "Silver", 4, "Silver IV"},
		{1100, "Silver", 3, "Silver III"},
		{1250, "Silver", 2, "Silver II"},
		{1399, "Silver", 1, "Silver I"},
		{1400, "Gold", 4, "Gold IV"},
		{1799, "Gold", 1, "Gold I"},
		{1800, "Platinum", 4, "Platinum IV"},
		{2199, "Platinum", 1, "Platinum I"},
		{2200, "Diamond", 4, "Diamond IV"},
		{2599, "Diamond", 1, "Diamond I"},
		{2600, "Master", 0, "Master"},
		{9000, "Master", 0, "Master"},
	}

	for _, tt := range tests {
		p := Classify(tt.rating)
		if p.Division != tt.division {
			t.Errorf("Classify(%d).Division = %s, want %s", tt.rating, p.Division, tt.division)
		}
		if p.Tier != tt.tier {
			t.Errorf("Classify(%d).Tier = %d, want %d", tt.rating, p.Tier, tt.tier)
		}
		if p.DisplayName != tt.display {
			t.Errorf("Classify(%d).DisplayName = %s, want %s", tt.rating, p.DisplayName, tt.display)
		}
	}
}

func TestClassify_BandBounds(t *testing.T) {
	p := Classify(1000)
	if p.BandMin != 1000 || p.BandMax != 1399 {
		t.Errorf("expected Silver band [1000,1399], got [%d,%d]", p.BandMin, p.BandMax)
	}

	top := Classify(3000)
	if top.BandMax != -1 {
		t.Errorf("top band should be open-ended, got max %d", top.BandMax)
	}
}

// TestDivisionMonotonic verifies increasing rating never decreases division rank
func TestDivisionMonotonic(t *testing.T) {
	prev := DivisionRank(0)
	for r := 1; r <= 3200; r++ {
		rank := DivisionRank(r)
		if rank < prev {
			t.Fatalf("division rank decreased at rating %d: %d -> %d", r, prev, rank)
		}
		prev = rank
	}
}

// TestTierCountsDownWithinBand verifies tier never increases as rating rises inside a band
func TestTierCountsDownWithinBand(t *testing.T) {
	prevTier := 5
	for r := 1000; r <= 1399; r++ {
		p := Classify(r)
		if p.Tier > prevTier {
			t.Fatalf("tier rose at rating %d: %d -> %d", r, prevTier, p.Tier)
		}
		prevTier = p.Tier
	}
	if prevTier != 1 {
		t.Errorf("expected tier 1 at band top, got %d", prevTier)
	}
}

func TestClassify_NegativeRatingClampsToFloor(t *testing.T) {
	p := Classify(-100)
	if p.Division != "Bronze" {
		t.Errorf("expected Bronze for negative rating, got %s", p.Division)
	}
}

func TestBandsReturnsCopy(t *testing.T) {
	b := Bands()
	b[0].Name = "mutated"
	if Bands()[0].Name != "Bronze" {
		t.Error("Bands should return a defensive copy")
	}
}
