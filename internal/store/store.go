// Package store persists users, reports and health entries with gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"marrowai-server/internal/models"
)

var (
	// ErrNotFound is returned when no record matches, including records
	// owned by another user.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyAnalyzed is returned when analysis is completed twice.
	ErrAlreadyAnalyzed = errors.New("report already analyzed")
	// ErrEmailTaken is returned when registering an existing email.
	ErrEmailTaken = errors.New("user with this email already exists")
)

// Store is the gorm-backed document store.
type Store struct {
	db *gorm.DB
}

// New returns a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateUser inserts u unless its email is already registered. A concurrent
// registration that wins the race surfaces as a unique-key violation, which
// also maps to ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if _, err := s.UserByEmail(ctx, u.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UserByEmail looks a user up by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// UserByID looks a user up by id.
func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// SaveRefreshToken stores an issued refresh token.
func (s *Store) SaveRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	return s.db.WithContext(ctx).Create(t).Error
}

// UsableRefreshToken returns the matching token if it is neither revoked nor expired.
func (s *Store) UsableRefreshToken(ctx context.Context, token, userID string, now time.Time) (*models.RefreshToken, error) {
	var stored models.RefreshToken
	err := s.db.WithContext(ctx).
		Where("token = ? AND user_id = ? AND is_revoked = ? AND expires_at > ?", token, userID, false, now).
		First(&stored).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &stored, nil
}

// ClaimRefreshToken revokes token only if it is still unrevoked. ErrNotFound
// means another rotation or a logout got there first.
func (s *Store) ClaimRefreshToken(ctx context.Context, token string) error {
	res := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("token = ? AND is_revoked = ?", token, false).
		Update("is_revoked", true)
	if res.Error != nil {
		return fmt.Errorf("claim refresh token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeRefreshToken marks token revoked. Revoking an unknown token is not an error.
func (s *Store) RevokeRefreshToken(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("token = ?", token).
		Update("is_revoked", true).Error
}

// CreateReport inserts an unanalysed report.
func (s *Store) CreateReport(ctx context.Context, r *models.MedicalReport) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// CreateAnalyzedReport inserts an analysed report and the health entry derived
// from it in one transaction.
func (s *Store) CreateAnalyzedReport(ctx context.Context, r *models.MedicalReport, e *models.HealthEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		e.ReportID = r.ID
		if err := tx.Create(e).Error; err != nil {
			return fmt.Errorf("create health entry: %w", err)
		}
		return nil
	})
}

// CompleteAnalysis attaches insights to a stored report that has not been
// analysed yet and inserts the derived health entry, atomically.
func (s *Store) CompleteAnalysis(ctx context.Context, userID, reportID string, insights *models.AIInsights, analyzedAt time.Time, e *models.HealthEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.MedicalReport{}).
			Where("id = ? AND user_id = ? AND ai_analyzed = ?", reportID, userID, false).
			Updates(map[string]interface{}{
				"ai_analyzed": true,
				"ai_insights": datatypes.NewJSONType(insights),
				"analyzed_at": analyzedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("update report: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyAnalyzed
		}
		e.ReportID = reportID
		if err := tx.Create(e).Error; err != nil {
			return fmt.Errorf("create health entry: %w", err)
		}
		return nil
	})
}

// Report returns the user's report with id.
func (s *Store) Report(ctx context.Context, userID, id string) (*models.MedicalReport, error) {
	var report models.MedicalReport
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&report).Error; err != nil {
		return nil, notFound(err)
	}
	return &report, nil
}

// Reports lists the user's reports newest first. A non-empty search keeps
// reports whose file name, notes or text contain it, ignoring case.
func (s *Store) Reports(ctx context.Context, userID, search string) ([]models.MedicalReport, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if term := strings.TrimSpace(search); term != "" {
		like := "%" + escapeLike(strings.ToLower(term)) + "%"
		query = query.Where("LOWER(file_name) LIKE ? OR LOWER(notes) LIKE ? OR LOWER(extracted_text) LIKE ?", like, like, like)
	}

	reports := []models.MedicalReport{}
	if err := query.Order("upload_date DESC").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

// DeleteReport removes the user's report with id.
func (s *Store) DeleteReport(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.MedicalReport{})
	if res.Error != nil {
		return fmt.Errorf("delete report: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateEntry inserts a health entry.
func (s *Store) CreateEntry(ctx context.Context, e *models.HealthEntry) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("create health entry: %w", err)
	}
	return nil
}

// Entries lists the user's health entries oldest first.
func (s *Store) Entries(ctx context.Context, userID string) ([]models.HealthEntry, error) {
	entries := []models.HealthEntry{}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("date ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list health entries: %w", err)
	}
	return entries, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
