package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marrowai-server/internal/analytics"
	"marrowai-server/internal/cache"
	"marrowai-server/internal/export"
	"marrowai-server/internal/models"
	"marrowai-server/internal/utils"
)

// DashboardHandler serves statistics over the health log.
type DashboardHandler struct {
	entries   EntryStore
	dashboard cache.Dashboard
	logger    *zap.Logger
	now       func() time.Time
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(entries EntryStore, dashboard cache.Dashboard, logger *zap.Logger) *DashboardHandler {
	if dashboard == nil {
		dashboard = cache.Nop{}
	}
	return &DashboardHandler{entries: entries, dashboard: dashboard, logger: logger, now: time.Now}
}

// DashboardResponse is the summary for one period.
type DashboardResponse struct {
	Period analytics.Period `json:"period"`
	analytics.Summary
}

// Stats handles GET /api/dashboard?period=.
func (h *DashboardHandler) Stats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	period, err := analytics.ParsePeriod(c.Query("period"))
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	summary, err := h.dashboard.Get(ctx, userID, period)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			h.logger.Warn("Dashboard cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
		entries, err := h.windowed(ctx, userID, period)
		if err != nil {
			h.logger.Error("Failed to load dashboard data", zap.String("user_id", userID), zap.Error(err))
			utils.InternalServerError(c, "Failed to fetch dashboard data")
			return
		}
		computed := analytics.Summarize(entries)
		summary = &computed
		if err := h.dashboard.Set(ctx, userID, period, summary); err != nil {
			h.logger.Warn("Dashboard cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	utils.Success(c, "", DashboardResponse{Period: period, Summary: *summary})
}

// Export handles GET /api/dashboard/export?period= with an xlsx attachment.
func (h *DashboardHandler) Export(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	period, err := analytics.ParsePeriod(c.Query("period"))
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	entries, err := h.windowed(c.Request.Context(), userID, period)
	if err != nil {
		h.logger.Error("Failed to load export data", zap.String("user_id", userID), zap.Error(err))
		utils.InternalServerError(c, "Failed to export health log")
		return
	}
	data, err := export.Workbook(entries, analytics.Summarize(entries), period)
	if err != nil {
		h.logger.Error("Failed to build workbook", zap.String("user_id", userID), zap.Error(err))
		utils.InternalServerError(c, "Failed to export health log")
		return
	}

	name := fmt.Sprintf("marrowai-health-log-%s-%s.xlsx", period, h.now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, export.ContentType, data)
}

func (h *DashboardHandler) windowed(ctx context.Context, userID string, period analytics.Period) ([]models.HealthEntry, error) {
	entries, err := h.entries.Entries(ctx, userID)
	if err != nil {
		return nil, err
	}
	return analytics.FilterByPeriod(entries, period, h.now())
}
