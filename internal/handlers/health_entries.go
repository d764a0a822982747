package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"marrowai-server/internal/cache"
	"marrowai-server/internal/models"
	"marrowai-server/internal/risk"
	"marrowai-server/internal/utils"
)

// HealthEntryHandler manages the user's health log.
type HealthEntryHandler struct {
	entries   EntryStore
	scorer    *risk.Scorer
	dashboard cache.Dashboard
	logger    *zap.Logger
	now       func() time.Time
}

// NewHealthEntryHandler creates a new HealthEntryHandler.
func NewHealthEntryHandler(entries EntryStore, dashboard cache.Dashboard, logger *zap.Logger) *HealthEntryHandler {
	if dashboard == nil {
		dashboard = cache.Nop{}
	}
	return &HealthEntryHandler{
		entries:   entries,
		scorer:    risk.NewScorer(unknownSymptomLogger(logger)),
		dashboard: dashboard,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateEntryRequest is a new health log entry. Date defaults to now.
type CreateEntryRequest struct {
	Date       *time.Time         `json:"date"`
	Symptoms   []string           `json:"symptoms" binding:"required,dive,required,max=100"`
	BloodCount *models.BloodCount `json:"bloodCount"`
	ReportType string             `json:"reportType"`
	Notes      string             `json:"notes" binding:"max=2000"`
}

// CreateEntry handles POST /api/health-entries. The risk score is computed
// here and stored with the entry.
func (h *HealthEntryHandler) CreateEntry(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateEntryRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if req.ReportType != "" && !models.IsReportType(req.ReportType) {
		utils.BadRequest(c, "Unknown report type: "+req.ReportType)
		return
	}

	date := h.now()
	if req.Date != nil {
		date = *req.Date
	}
	entry := models.HealthEntry{
		UserID:     userID,
		Date:       date,
		RiskScore:  h.scorer.Score(req.Symptoms, req.BloodCount),
		Symptoms:   datatypes.JSONSlice[string](req.Symptoms),
		ReportType: req.ReportType,
		Notes:      req.Notes,
	}
	if req.BloodCount != nil {
		if req.BloodCount.Date.IsZero() {
			req.BloodCount.Date = date
		}
		entry.BloodCount = datatypes.NewJSONType(req.BloodCount)
	}

	ctx := c.Request.Context()
	if err := h.entries.CreateEntry(ctx, &entry); err != nil {
		h.logger.Error("Failed to create health entry", zap.String("user_id", userID), zap.Error(err))
		utils.InternalServerError(c, "Failed to save health entry")
		return
	}
	invalidateDashboard(ctx, h.dashboard, h.logger, userID)

	utils.Created(c, "Health entry saved", entry)
}

// ListEntries handles GET /api/health-entries, oldest first.
func (h *HealthEntryHandler) ListEntries(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	entries, err := h.entries.Entries(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list health entries", zap.String("user_id", userID), zap.Error(err))
		utils.InternalServerError(c, "Failed to retrieve health entries")
		return
	}
	utils.Success(c, "", entries)
}
