// Package handlers implements the HTTP endpoints. Handlers depend on narrow
// interfaces so they can be exercised without a database or model.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"marrowai-server/internal/ingest"
	"marrowai-server/internal/middleware"
	"marrowai-server/internal/models"
	"marrowai-server/internal/utils"
)

// UserStore persists accounts and refresh tokens.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
	SaveRefreshToken(ctx context.Context, t *models.RefreshToken) error
	UsableRefreshToken(ctx context.Context, token, userID string, now time.Time) (*models.RefreshToken, error)
	ClaimRefreshToken(ctx context.Context, token string) error
	RevokeRefreshToken(ctx context.Context, token string) error
}

// ReportStore reads and deletes stored reports.
type ReportStore interface {
	Report(ctx context.Context, userID, id string) (*models.MedicalReport, error)
	Reports(ctx context.Context, userID, search string) ([]models.MedicalReport, error)
	DeleteReport(ctx context.Context, userID, id string) error
}

// EntryStore persists the health log.
type EntryStore interface {
	CreateEntry(ctx context.Context, e *models.HealthEntry) error
	Entries(ctx context.Context, userID string) ([]models.HealthEntry, error)
}

// Ingestor runs report uploads and manual analysis.
type Ingestor interface {
	Run(ctx context.Context, up ingest.Upload) (*models.MedicalReport, error)
	Analyze(ctx context.Context, userID, reportID string) (*models.MedicalReport, error)
}

// InsightAnalyzer turns raw report text into insights.
type InsightAnalyzer interface {
	Analyze(ctx context.Context, text string) (*models.AIInsights, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// requireUser returns the authenticated user id or writes a 401.
func requireUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return "", false
	}
	return userID, true
}
