package forest

import (
	"errors"
	"fmt"
	"math"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
)

var ErrInvalidTiers = errors.New("invalid integrity tier table")

// Tier is one row of the integrity table. A region qualifies when every
// indicator clears its minimum.
type Tier struct {
	Name      string  `json:"name"`
	MinAGB    float64 `json:"min_agb"`
	MinLAI    float64 `json:"min_lai"`
	MinHeight float64 `json:"min_height"`
	Score     float64 `json:"score"`
}

// BonusRule adds Points when verified forest gain reaches MinGainHa, capping
// the final score at Cap.
type BonusRule struct {
	MinGainHa float64 `json:"min_gain_ha"`
	Points    float64 `json:"points"`
	Cap       float64 `json:"cap"`
}

// StatusLabel names the score range starting at Min.
type StatusLabel struct {
	Min   float64 `json:"min"`
	Label string  `json:"label"`
}

// IntegrityScorer resolves habitat integrity from structural indicators.
type IntegrityScorer struct {
	Tiers    []Tier        `json:"tiers"`
	Bonus    BonusRule     `json:"bonus"`
	Statuses []StatusLabel `json:"statuses"`
}

// DefaultIntegrityScorer returns the production tier table.
func DefaultIntegrityScorer() IntegrityScorer {
	return IntegrityScorer{
		Tiers: []Tier{
			{Name: "very high", MinAGB: 150, MinLAI: 4.5, MinHeight: 30, Score: 95},
			{Name: "high", MinAGB: 100, MinLAI: 3.0, MinHeight: 20, Score: 80},
			{Name: "moderate", MinAGB: 20, MinLAI: 1.8, MinHeight: 8, Score: 65},
			{Name: "low", MinAGB: 10, Score: 45},
			{Name: "very low", Score: 25},
		},
		Bonus: BonusRule{MinGainHa: 5, Points: 15, Cap: 99},
		Statuses: []StatusLabel{
			{Min: 80, Label: "High"},
			{Min: 50, Label: "Moderate"},
			{Min: 0, Label: "Low"},
		},
	}
}

// Validate checks that tiers and statuses are ordered from strictest to
// loosest and that the cap is reachable.
func (s IntegrityScorer) Validate() error {
	if len(s.Tiers) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidTiers)
	}
	for i := 1; i < len(s.Tiers); i++ {
		prev, cur := s.Tiers[i-1], s.Tiers[i]
		if cur.MinAGB > prev.MinAGB || cur.MinLAI > prev.MinLAI || cur.MinHeight > prev.MinHeight {
			return fmt.Errorf("%w: tier %q is stricter than %q", ErrInvalidTiers, cur.Name, prev.Name)
		}
		if cur.Score > prev.Score {
			return fmt.Errorf("%w: tier %q scores above %q", ErrInvalidTiers, cur.Name, prev.Name)
		}
	}
	if s.Bonus.Cap <= 0 {
		return fmt.Errorf("%w: cap %g must be positive", ErrInvalidTiers, s.Bonus.Cap)
	}
	for i := 1; i < len(s.Statuses); i++ {
		if s.Statuses[i].Min > s.Statuses[i-1].Min {
			return fmt.Errorf("%w: status %q out of order", ErrInvalidTiers, s.Statuses[i].Label)
		}
	}
	return nil
}

// Indicators are the structural inputs to integrity scoring.
type Indicators struct {
	AGB    band.Statistic `json:"agb"`
	LAI    band.Statistic `json:"lai"`
	Height band.Statistic `json:"height"`
}

// Integrity is a scored region.
type Integrity struct {
	Score        band.Statistic `json:"score"`
	Tier         string         `json:"tier,omitempty"`
	Status       string         `json:"status,omitempty"`
	BonusApplied bool           `json:"bonus_applied"`
}

// Score resolves the first tier whose minimums all indicators clear, then
// applies the gain bonus. A missing indicator makes the score no-data. A
// missing gain area only withholds the bonus.
func (s IntegrityScorer) Score(ind Indicators, gainHa band.Statistic) Integrity {
	agb, okA := ind.AGB.Float()
	lai, okL := ind.LAI.Float()
	height, okH := ind.Height.Float()
	if !okA || !okL || !okH {
		status, reason := band.Worst(ind.AGB, ind.LAI, ind.Height)
		return Integrity{Score: band.Statistic{Band: "habitat_integrity", Status: status, Reason: reason}}
	}

	var out Integrity
	matched := false
	score := 0.0
	for _, t := range s.Tiers {
		if agb >= t.MinAGB && lai >= t.MinLAI && height >= t.MinHeight {
			score, out.Tier, matched = t.Score, t.Name, true
			break
		}
	}
	if !matched {
		out.Score = band.Invalid("habitat_integrity", "indicators below every tier")
		return out
	}

	if gain, ok := gainHa.Float(); ok && gain >= s.Bonus.MinGainHa {
		score += s.Bonus.Points
		out.BonusApplied = true
	}
	score = math.Min(score, s.Bonus.Cap)

	out.Score = band.Of("habitat_integrity", band.ReducerMax, score, 3)
	out.Status = s.label(score)
	return out
}

func (s IntegrityScorer) label(score float64) string {
	for _, st := range s.Statuses {
		if score >= st.Min {
			return st.Label
		}
	}
	if n := len(s.Statuses); n > 0 {
		return s.Statuses[n-1].Label
	}
	return ""
}
