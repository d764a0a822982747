// Package risk scores reported symptoms and blood counts into a bounded
// 0..100 risk score and a three-tier level.
package risk

import "marrowai-server/internal/models"

// Level is a risk bucket derived from a score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// MaxScore is the upper clamp of every score.
const MaxScore = 100

const (
	highSymptomPoints   = 25
	mediumSymptomPoints = 15
	otherSymptomPoints  = 5

	lowWBCPoints        = 20
	lowRBCPoints        = 20
	lowHemoglobinPoints = 25
	lowPlateletPoints   = 30
)

// Lab thresholds below which a blood count adds points.
const (
	WBCThreshold        = 4.0
	RBCThreshold        = 4.2
	HemoglobinThreshold = 12.0
	PlateletThreshold   = 150.0
)

var highRiskSymptoms = map[string]struct{}{
	"severe_fatigue":       {},
	"unexplained_bruising": {},
	"frequent_infections":  {},
	"shortness_of_breath":  {},
}

var mediumRiskSymptoms = map[string]struct{}{
	"mild_fatigue": {},
	"nosebleeds":   {},
	"pale_skin":    {},
	"dizziness":    {},
}

// Scorer computes risk scores. The zero value is ready to use.
type Scorer struct {
	// OnUnknown, if set, is called for every tag that is neither a scored
	// symptom nor part of the catalogue. Such tags still score as OTHER.
	OnUnknown func(tag string)
}

// NewScorer returns a Scorer that reports unknown tags to onUnknown.
func NewScorer(onUnknown func(tag string)) *Scorer {
	return &Scorer{OnUnknown: onUnknown}
}

// Score sums symptom and lab points and clamps the total to MaxScore.
// Duplicate tags are counted as many times as they appear.
func (s *Scorer) Score(symptoms []string, bc *models.BloodCount) int {
	total := 0
	for _, tag := range symptoms {
		total += s.symptomPoints(tag)
	}
	if bc != nil {
		total += bloodCountPoints(bc)
	}
	if total > MaxScore {
		return MaxScore
	}
	return total
}

func (s *Scorer) symptomPoints(tag string) int {
	if _, ok := highRiskSymptoms[tag]; ok {
		return highSymptomPoints
	}
	if _, ok := mediumRiskSymptoms[tag]; ok {
		return mediumSymptomPoints
	}
	if s != nil && s.OnUnknown != nil && !IsKnownSymptom(tag) {
		s.OnUnknown(tag)
	}
	return otherSymptomPoints
}

// bloodCountPoints only penalises values that were measured.
func bloodCountPoints(bc *models.BloodCount) int {
	points := 0
	if below(bc.WBC, WBCThreshold) {
		points += lowWBCPoints
	}
	if below(bc.RBC, RBCThreshold) {
		points += lowRBCPoints
	}
	if below(bc.Hemoglobin, HemoglobinThreshold) {
		points += lowHemoglobinPoints
	}
	if below(bc.Platelets, PlateletThreshold) {
		points += lowPlateletPoints
	}
	return points
}

func below(v *float64, threshold float64) bool {
	return v != nil && *v < threshold
}

// Score scores with no unknown-tag hook.
func Score(symptoms []string, bc *models.BloodCount) int {
	var s Scorer
	return s.Score(symptoms, bc)
}

// LevelFor maps a score to its level: up to 30 is low, up to 60 medium, else high.
func LevelFor(score int) Level {
	switch {
	case score <= 30:
		return LevelLow
	case score <= 60:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// UnknownSymptoms returns the tags in symptoms that are not recognised, in input order.
func UnknownSymptoms(symptoms []string) []string {
	var unknown []string
	for _, tag := range symptoms {
		if !IsKnownSymptom(tag) {
			unknown = append(unknown, tag)
		}
	}
	return unknown
}
