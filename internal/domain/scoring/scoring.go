// Package scoring turns four raw KPI values into a score and a rating.
//
// Every KPI is an integer in [0,100]. In sum mode the score is the plain sum
// (0..400); in weighted mode it is the percentage-weighted mean (0..100,
// rounded to two decimals). Ratings use inclusive lower bounds.
package scoring

import (
	"math"
	"strings"
)

type Mode string

const (
	ModeSum      Mode = "sum"
	ModeWeighted Mode = "weighted"
)

const (
	RatingExcellent        = "Excellent"
	RatingGood             = "Good"
	RatingAverage          = "Average"
	RatingNeedsImprovement = "Needs Improvement"
)

// Ratings lists the tiers from best to worst.
var Ratings = []string{RatingExcellent, RatingGood, RatingAverage, RatingNeedsImprovement}

const (
	KPICount    = 4
	MinKPI      = 0
	MaxKPI      = 100
	WeightTotal = 100
)

type Thresholds struct {
	Excellent float64 `json:"excellent"`
	Good      float64 `json:"good"`
	Average   float64 `json:"average"`
}

// Scale multiplies every bound, used when switching between score ranges.
func (t Thresholds) Scale(factor float64) Thresholds {
	return Thresholds{
		Excellent: Round2(t.Excellent * factor),
		Good:      Round2(t.Good * factor),
		Average:   Round2(t.Average * factor),
	}
}

type Policy struct {
	Mode       Mode
	Weights    [KPICount]int
	Thresholds Thresholds
}

type Result struct {
	Value  float64 `json:"score"`
	Rating string  `json:"rating"`
}

func (m Mode) Valid() bool {
	return m == ModeSum || m == ModeWeighted
}

// MaxScore is the upper end of the score range for the mode.
func MaxScore(mode Mode) float64 {
	if mode == ModeWeighted {
		return MaxKPI
	}
	return MaxKPI * KPICount
}

func DefaultWeights() [KPICount]int {
	return [KPICount]int{25, 25, 25, 25}
}

func DefaultThresholds(mode Mode) Thresholds {
	if mode == ModeWeighted {
		return Thresholds{Excellent: 80, Good: 60, Average: 40}
	}
	return Thresholds{Excellent: 320, Good: 240, Average: 160}
}

func DefaultPolicy() Policy {
	return Policy{Mode: ModeSum, Weights: DefaultWeights(), Thresholds: DefaultThresholds(ModeSum)}
}

// Score computes the value and rating for one KPI quadruple.
func Score(p Policy, k1, k2, k3, k4 int) Result {
	values := [KPICount]int{k1, k2, k3, k4}
	var value float64
	if p.Mode == ModeWeighted {
		weights := p.Weights
		if weights == [KPICount]int{} {
			weights = DefaultWeights()
		}
		total := 0
		for i, v := range values {
			total += v * weights[i]
		}
		value = Round2(float64(total) / WeightTotal)
	} else {
		for _, v := range values {
			value += float64(v)
		}
	}
	return Result{Value: value, Rating: Rate(value, p.Thresholds)}
}

func Rate(value float64, t Thresholds) string {
	switch {
	case value >= t.Excellent:
		return RatingExcellent
	case value >= t.Good:
		return RatingGood
	case value >= t.Average:
		return RatingAverage
	default:
		return RatingNeedsImprovement
	}
}

// NormalizeRating maps a free-form rating to its canonical tier name.
func NormalizeRating(raw string) (string, bool) {
	cleaned := strings.Join(strings.Fields(strings.ReplaceAll(raw, "_", " ")), " ")
	for _, rating := range Ratings {
		if strings.EqualFold(cleaned, rating) {
			return rating, true
		}
	}
	return "", false
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
