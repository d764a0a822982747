// Package ingest runs uploaded reports through text extraction, model
// analysis and persistence.
//
// A run moves through extracting, analyzing and storing before it is done.
// A failure stops the run at that stage and is reported as a *StageError;
// nothing is persisted unless every earlier stage succeeded, so a report is
// only ever stored as analysed together with its insights.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"marrowai-server/internal/blobstore"
	"marrowai-server/internal/models"
	"marrowai-server/internal/pdftext"
	"marrowai-server/internal/store"
)

// Stage is a step of an ingestion run.
type Stage string

const (
	StageExtracting Stage = "extracting"
	StageAnalyzing  Stage = "analyzing"
	StageStoring    Stage = "storing"
	StageDone       Stage = "done"
)

// StageError is the terminal failed state of a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ErrAlreadyAnalyzed is returned by Analyze for reports that already carry insights.
var ErrAlreadyAnalyzed = store.ErrAlreadyAnalyzed

// Extractor pulls text out of a document.
type Extractor interface {
	Extract(ctx context.Context, content []byte) (*pdftext.Document, error)
}

// Analyzer turns report text into insights.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*models.AIInsights, error)
}

// Repository persists reports and the entries derived from them.
type Repository interface {
	CreateReport(ctx context.Context, r *models.MedicalReport) error
	CreateAnalyzedReport(ctx context.Context, r *models.MedicalReport, e *models.HealthEntry) error
	CompleteAnalysis(ctx context.Context, userID, reportID string, insights *models.AIInsights, analyzedAt time.Time, e *models.HealthEntry) error
	Report(ctx context.Context, userID, id string) (*models.MedicalReport, error)
}

// Upload is one user-submitted report.
type Upload struct {
	UserID      string
	FileName    string
	ContentType string
	Content     []byte
	ReportType  string
	Notes       string
	// Analyze requests model analysis as part of the upload.
	Analyze bool
}

// Flow wires the collaborators of an ingestion run.
type Flow struct {
	extractor Extractor
	analyzer  Analyzer
	repo      Repository
	blobs     blobstore.Store
	logger    *zap.Logger

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewFlow returns a Flow. A nil blobs skips raw storage.
func NewFlow(extractor Extractor, analyzer Analyzer, repo Repository, blobs blobstore.Store, logger *zap.Logger) *Flow {
	if blobs == nil {
		blobs = blobstore.Nop{}
	}
	return &Flow{
		extractor: extractor,
		analyzer:  analyzer,
		repo:      repo,
		blobs:     blobs,
		logger:    logger,
		Now:       time.Now,
	}
}

func (f *Flow) fail(stage Stage, err error, fields ...zap.Field) error {
	f.logger.Error("Report ingestion failed", append(fields, zap.String("stage", string(stage)), zap.Error(err))...)
	return &StageError{Stage: stage, Err: err}
}

func (f *Flow) enter(stage Stage, fields ...zap.Field) {
	f.logger.Debug("Report ingestion stage", append(fields, zap.String("stage", string(stage)))...)
}

// Run ingests up. On success the stored report is returned.
func (f *Flow) Run(ctx context.Context, up Upload) (*models.MedicalReport, error) {
	logFields := []zap.Field{zap.String("user_id", up.UserID), zap.String("file_name", up.FileName)}

	f.enter(StageExtracting, logFields...)
	doc, err := f.extractor.Extract(ctx, up.Content)
	if err != nil {
		return nil, f.fail(StageExtracting, err, logFields...)
	}

	reportType := up.ReportType
	if reportType == "" {
		reportType = models.ReportTypeGeneral
	}
	report := &models.MedicalReport{
		UserID:        up.UserID,
		FileName:      up.FileName,
		FileSize:      int64(len(up.Content)),
		ContentType:   up.ContentType,
		PageCount:     doc.Pages,
		ExtractedText: doc.Text,
		TextLength:    len(doc.Text),
		ReportType:    reportType,
		Notes:         up.Notes,
		UploadDate:    f.Now(),
	}

	var result *models.AIInsights
	if up.Analyze {
		f.enter(StageAnalyzing, logFields...)
		result, err = f.analyzer.Analyze(ctx, doc.Text)
		if err != nil {
			return nil, f.fail(StageAnalyzing, err, logFields...)
		}
	}

	f.enter(StageStoring, logFields...)
	key, err := f.blobs.Put(ctx, up.UserID, up.FileName, up.Content, up.ContentType)
	if err != nil {
		return nil, f.fail(StageStoring, err, logFields...)
	}
	report.StorageKey = key

	if result != nil {
		analyzedAt := f.Now()
		report.AIAnalyzed = true
		report.AIInsights = datatypes.NewJSONType(result)
		report.AnalyzedAt = &analyzedAt
		err = f.repo.CreateAnalyzedReport(ctx, report, EntryFromInsights(report, result, analyzedAt))
	} else {
		err = f.repo.CreateReport(ctx, report)
	}
	if err != nil {
		f.discardBlob(ctx, key)
		return nil, f.fail(StageStoring, err, logFields...)
	}

	f.enter(StageDone, append(logFields, zap.String("report_id", report.ID), zap.Bool("ai_analyzed", report.AIAnalyzed))...)
	return report, nil
}

// Analyze analyses a stored report that was uploaded without analysis.
// Missing reports return store.ErrNotFound and analysed ones ErrAlreadyAnalyzed.
func (f *Flow) Analyze(ctx context.Context, userID, reportID string) (*models.MedicalReport, error) {
	logFields := []zap.Field{zap.String("user_id", userID), zap.String("report_id", reportID)}

	report, err := f.repo.Report(ctx, userID, reportID)
	if err != nil {
		return nil, err
	}
	if report.AIAnalyzed {
		return nil, ErrAlreadyAnalyzed
	}

	f.enter(StageAnalyzing, logFields...)
	result, err := f.analyzer.Analyze(ctx, report.ExtractedText)
	if err != nil {
		return nil, f.fail(StageAnalyzing, err, logFields...)
	}

	f.enter(StageStoring, logFields...)
	analyzedAt := f.Now()
	if err := f.repo.CompleteAnalysis(ctx, userID, reportID, result, analyzedAt, EntryFromInsights(report, result, analyzedAt)); err != nil {
		if errors.Is(err, store.ErrAlreadyAnalyzed) {
			return nil, ErrAlreadyAnalyzed
		}
		return nil, f.fail(StageStoring, err, logFields...)
	}

	report.AIAnalyzed = true
	report.AIInsights = datatypes.NewJSONType(result)
	report.AnalyzedAt = &analyzedAt
	f.enter(StageDone, logFields...)
	return report, nil
}

// EntryFromInsights derives the health log entry recorded for an analysed report.
func EntryFromInsights(report *models.MedicalReport, result *models.AIInsights, at time.Time) *models.HealthEntry {
	return &models.HealthEntry{
		UserID:     report.UserID,
		Date:       at,
		RiskScore:  result.RiskScore,
		Symptoms:   datatypes.JSONSlice[string]{},
		ReportType: report.ReportType,
		ReportID:   report.ID,
		BloodCount: datatypes.NewJSONType(&models.BloodCount{
			Date:       at,
			WBC:        lo.ToPtr(result.WBC),
			Hemoglobin: lo.ToPtr(result.Hemoglobin),
			Platelets:  lo.ToPtr(result.Platelets),
		}),
	}
}

func (f *Flow) discardBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := f.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		f.logger.Warn("Failed to remove orphaned report blob", zap.String("key", key), zap.Error(err))
	}
}
