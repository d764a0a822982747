package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marrowai-server/internal/blobstore"
	"marrowai-server/internal/cache"
	"marrowai-server/internal/ingest"
	"marrowai-server/internal/insights"
	"marrowai-server/internal/models"
	"marrowai-server/internal/store"
	"marrowai-server/internal/utils"
)

const (
	pdfContentType = "application/pdf"
	maxNotesLength = 2000
	// multipart framing and the text fields ride on top of the file itself
	multipartOverhead = 1 << 20
)

// ReportHandler handles medical report uploads and retrieval.
type ReportHandler struct {
	flow      Ingestor
	reports   ReportStore
	analyzer  InsightAnalyzer
	blobs     blobstore.Store
	dashboard cache.Dashboard
	maxBytes  int64
	logger    *zap.Logger
}

// NewReportHandler creates a new ReportHandler. maxBytes caps the PDF size.
func NewReportHandler(flow Ingestor, reports ReportStore, analyzer InsightAnalyzer, blobs blobstore.Store, dashboard cache.Dashboard, maxBytes int64, logger *zap.Logger) *ReportHandler {
	if blobs == nil {
		blobs = blobstore.Nop{}
	}
	if dashboard == nil {
		dashboard = cache.Nop{}
	}
	return &ReportHandler{
		flow:      flow,
		reports:   reports,
		analyzer:  analyzer,
		blobs:     blobs,
		dashboard: dashboard,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// UploadResponse is returned after a PDF has been ingested.
type UploadResponse struct {
	ReportID string                `json:"reportId"`
	Report   *models.MedicalReport `json:"report"`
}

// ParsePDF handles POST /api/parse-pdf: a multipart form with the file in
// "pdf" and optional "reportType", "notes" and "analyze" (default true).
func (h *ReportHandler) ParsePDF(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	header, err := c.FormFile("pdf")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.BadRequest(c, h.sizeLimitMessage())
			return
		}
		utils.BadRequest(c, "File is required.")
		return
	}
	if header.Size > h.maxBytes {
		utils.BadRequest(c, h.sizeLimitMessage())
		return
	}
	if !isPDF(header) {
		utils.BadRequest(c, "File must be a PDF.")
		return
	}

	reportType := strings.TrimSpace(c.PostForm("reportType"))
	if reportType != "" && !models.IsReportType(reportType) {
		utils.BadRequest(c, "Unknown report type: "+reportType)
		return
	}
	notes := strings.TrimSpace(c.PostForm("notes"))
	if len(notes) > maxNotesLength {
		utils.BadRequest(c, fmt.Sprintf("Notes must be at most %d characters", maxNotesLength))
		return
	}
	analyze := true
	if v := c.PostForm("analyze"); v != "" {
		if analyze, err = strconv.ParseBool(v); err != nil {
			utils.BadRequest(c, "analyze must be true or false")
			return
		}
	}

	content, err := readFormFile(header)
	if err != nil {
		h.logger.Error("Failed to read uploaded file", zap.String("user_id", userID), zap.Error(err))
		utils.InternalServerError(c, "Error reading file content")
		return
	}

	ctx := c.Request.Context()
	report, err := h.flow.Run(ctx, ingest.Upload{
		UserID:      userID,
		FileName:    header.Filename,
		ContentType: pdfContentType,
		Content:     content,
		ReportType:  reportType,
		Notes:       notes,
		Analyze:     analyze,
	})
	if err != nil {
		h.respondIngestError(c, err)
		return
	}
	if report.AIAnalyzed {
		invalidateDashboard(ctx, h.dashboard, h.logger, userID)
	}

	utils.Success(c, "PDF processed and saved successfully", UploadResponse{ReportID: report.ID, Report: report})
}

// AnalyzeTextRequest carries report text for a one-off analysis.
type AnalyzeTextRequest struct {
	Text string `json:"text" binding:"required"`
}

// AnalyzeText handles POST /api/analyze-pdf. Nothing is persisted.
func (h *ReportHandler) AnalyzeText(c *gin.Context) {
	var req AnalyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "No text provided")
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), req.Text)
	if err != nil {
		if errors.Is(err, insights.ErrNoText) {
			utils.BadRequest(c, "No text provided")
			return
		}
		h.logger.Error("Text analysis failed", zap.Error(err))
		utils.ErrorWithDetails(c, http.StatusInternalServerError, "Failed to analyze text", err)
		return
	}
	utils.Success(c, "", result)
}

// ListReports handles GET /api/reports?search=.
func (h *ReportHandler) ListReports(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	reports, err := h.reports.Reports(c.Request.Context(), userID, c.Query("search"))
	if err != nil {
		h.logger.Error("Failed to list reports", zap.String("user_id", userID), zap.Error(err))
		utils.InternalServerError(c, "Failed to retrieve reports")
		return
	}
	utils.Success(c, "", reports)
}

// GetReport handles GET /api/reports/:id.
func (h *ReportHandler) GetReport(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	report, err := h.reports.Report(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondLookupError(c, userID, err)
		return
	}
	utils.Success(c, "", report)
}

// DeleteReport handles DELETE /api/reports/:id. Health entries derived from
// the report are kept.
func (h *ReportHandler) DeleteReport(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	report, err := h.reports.Report(ctx, userID, id)
	if err != nil {
		h.respondLookupError(c, userID, err)
		return
	}
	if err := h.reports.DeleteReport(ctx, userID, id); err != nil {
		h.respondLookupError(c, userID, err)
		return
	}
	if report.StorageKey != "" {
		if err := h.blobs.Delete(ctx, report.StorageKey); err != nil {
			h.logger.Warn("Failed to delete report blob", zap.String("report_id", id), zap.String("key", report.StorageKey), zap.Error(err))
		}
	}
	utils.Success(c, "Report deleted successfully", nil)
}

// Reanalyze handles POST /api/reports/:id/analyze for reports stored
// without insights.
func (h *ReportHandler) Reanalyze(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	report, err := h.flow.Analyze(ctx, userID, c.Param("id"))
	if err != nil {
		h.respondIngestError(c, err)
		return
	}
	invalidateDashboard(ctx, h.dashboard, h.logger, userID)
	utils.Success(c, "Report analyzed successfully", report)
}

func (h *ReportHandler) respondLookupError(c *gin.Context, userID string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		utils.NotFound(c, "Report not found")
		return
	}
	h.logger.Error("Report lookup failed", zap.String("user_id", userID), zap.Error(err))
	utils.InternalServerError(c, "Failed to retrieve report")
}

func (h *ReportHandler) respondIngestError(c *gin.Context, err error) {
	var stageErr *ingest.StageError
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.NotFound(c, "Report not found")
	case errors.Is(err, ingest.ErrAlreadyAnalyzed):
		utils.Conflict(c, "Report has already been analyzed")
	case errors.Is(err, insights.ErrNoText):
		utils.BadRequest(c, "Report contains no extractable text")
	case errors.As(err, &stageErr) && stageErr.Stage == ingest.StageExtracting:
		utils.ErrorWithDetails(c, http.StatusBadRequest, "Failed to extract text from PDF", stageErr.Err)
	case errors.As(err, &stageErr) && stageErr.Stage == ingest.StageAnalyzing:
		utils.ErrorWithDetails(c, http.StatusInternalServerError, "Failed to analyze text", stageErr.Err)
	default:
		utils.ErrorWithDetails(c, http.StatusInternalServerError, "Failed to process request.", err)
	}
}

func (h *ReportHandler) sizeLimitMessage() string {
	return fmt.Sprintf("File exceeds the %d MB upload limit", h.maxBytes>>20)
}

func isPDF(header *multipart.FileHeader) bool {
	mediaType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	return err == nil && mediaType == pdfContentType
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func invalidateDashboard(ctx context.Context, dashboard cache.Dashboard, logger *zap.Logger, userID string) {
	if err := dashboard.Invalidate(ctx, userID); err != nil {
		logger.Warn("Failed to invalidate dashboard cache", zap.String("user_id", userID), zap.Error(err))
	}
}
