package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marrowai-server/internal/models"
	"marrowai-server/internal/risk"
	"marrowai-server/internal/utils"
)

// SymptomHandler serves the symptom checker.
type SymptomHandler struct {
	scorer *risk.Scorer
	logger *zap.Logger
	now    func() time.Time
}

// NewSymptomHandler returns a handler whose scorer logs unrecognised tags.
func NewSymptomHandler(logger *zap.Logger) *SymptomHandler {
	return &SymptomHandler{
		scorer: risk.NewScorer(unknownSymptomLogger(logger)),
		logger: logger,
		now:    time.Now,
	}
}

func unknownSymptomLogger(logger *zap.Logger) func(string) {
	return func(tag string) {
		logger.Warn("Unrecognised symptom tag scored as other", zap.String("symptom", tag))
	}
}

// CatalogueResponse lists what the symptom checker offers.
type CatalogueResponse struct {
	Symptoms       []risk.Symptom       `json:"symptoms"`
	SeverityLevels []risk.SeverityLevel `json:"severityLevels"`
	Durations      []string             `json:"durations"`
}

// Catalogue handles GET /api/symptoms.
func (h *SymptomHandler) Catalogue(c *gin.Context) {
	utils.Success(c, "", CatalogueResponse{
		Symptoms:       risk.Catalogue,
		SeverityLevels: risk.SeverityLevels,
		Durations:      risk.Durations,
	})
}

// AssessRequest is a symptom checker submission. Severities and durations
// are keyed by symptom id.
type AssessRequest struct {
	Symptoms   []string           `json:"symptoms" binding:"required,dive,required,max=100"`
	Severities map[string]int     `json:"severities" binding:"omitempty,dive,min=1,max=5"`
	Durations  map[string]string  `json:"durations"`
	BloodCount *models.BloodCount `json:"bloodCount"`
}

// AssessResponse is the symptom checker result.
type AssessResponse struct {
	risk.Assessment
	AssessmentID    string    `json:"assessmentId"`
	Timestamp       time.Time `json:"timestamp"`
	UnknownSymptoms []string  `json:"unknownSymptoms"`
}

// Assess handles POST /api/symptoms.
func (h *SymptomHandler) Assess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid symptoms data")
		return
	}
	for id, d := range req.Durations {
		if !risk.IsDuration(d) {
			utils.BadRequest(c, "Invalid duration for symptom "+id)
			return
		}
	}

	assessment := h.scorer.Assess(req.Symptoms, req.BloodCount)
	unknown := risk.UnknownSymptoms(req.Symptoms)
	if unknown == nil {
		unknown = []string{}
	}

	utils.Success(c, "", AssessResponse{
		Assessment:      assessment,
		AssessmentID:    uuid.NewString(),
		Timestamp:       h.now().UTC(),
		UnknownSymptoms: unknown,
	})
}
