package risk

import "marrowai-server/internal/models"

// Urgency tells the patient how soon to seek care.
type Urgency string

const (
	UrgencyRoutine Urgency = "routine"
	UrgencySoon    Urgency = "soon"
	UrgencyUrgent  Urgency = "urgent"
)

// Assessment is the derived result of a symptom check. It is recomputed on
// every request and never stored.
type Assessment struct {
	Score           int      `json:"riskScore"`
	Level           Level    `json:"riskLevel"`
	Urgency         Urgency  `json:"urgency"`
	Recommendations []string `json:"recommendations"`
}

var recommendations = map[Level][]string{
	LevelHigh: {
		"Seek immediate medical attention from a hematologist",
		"Complete blood count (CBC) with differential urgently needed",
		"Consider emergency department visit if experiencing fever or severe bleeding",
		"Avoid activities that could cause injury or bleeding",
		"Monitor for signs of infection and seek care immediately if fever develops",
	},
	LevelMedium: {
		"Schedule appointment with your primary care physician within 1-2 weeks",
		"Request complete blood count (CBC) to evaluate blood cell levels",
		"Keep a symptom diary to track changes",
		"Avoid taking aspirin or blood-thinning medications",
		"Practice good hygiene to prevent infections",
	},
	LevelLow: {
		"Continue monitoring symptoms and note any changes",
		"Maintain a healthy lifestyle with adequate rest",
		"Consider routine blood work at your next physical exam",
		"Contact healthcare provider if symptoms worsen",
		"Stay up to date with preventive care",
	},
}

var urgencies = map[Level]Urgency{
	LevelHigh:   UrgencyUrgent,
	LevelMedium: UrgencySoon,
	LevelLow:    UrgencyRoutine,
}

// Assess scores the input and attaches the level's urgency and recommendations.
func (s *Scorer) Assess(symptoms []string, bc *models.BloodCount) Assessment {
	score := s.Score(symptoms, bc)
	return AssessmentFor(score)
}

// AssessmentFor builds the assessment for an already computed score.
func AssessmentFor(score int) Assessment {
	level := LevelFor(score)
	recs := make([]string, len(recommendations[level]))
	copy(recs, recommendations[level])
	return Assessment{
		Score:           score,
		Level:           level,
		Urgency:         urgencies[level],
		Recommendations: recs,
	}
}

type labRange struct {
	min, max float64
}

var normalRanges = struct {
	wbc, rbc, hemoglobin, hematocrit, platelets labRange
}{
	wbc:        labRange{4, 11},
	rbc:        labRange{4.2, 5.4},
	hemoglobin: labRange{12, 16},
	hematocrit: labRange{36, 48},
	platelets:  labRange{150, 450},
}

// excludes reports whether a measured value falls outside the range.
func (r labRange) excludes(v *float64) bool {
	return v != nil && (*v < r.min || *v > r.max)
}

// IsBloodCountAbnormal reports whether any measured primary value lies
// outside its normal adult range. Missing values and a nil blood count are
// not abnormal.
func IsBloodCountAbnormal(bc *models.BloodCount) bool {
	if bc == nil {
		return false
	}
	return normalRanges.wbc.excludes(bc.WBC) ||
		normalRanges.rbc.excludes(bc.RBC) ||
		normalRanges.hemoglobin.excludes(bc.Hemoglobin) ||
		normalRanges.hematocrit.excludes(bc.Hematocrit) ||
		normalRanges.platelets.excludes(bc.Platelets)
}
