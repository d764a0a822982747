package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"marrowai-server/internal/analytics"
	"marrowai-server/internal/cache"
	"marrowai-server/internal/ingest"
	"marrowai-server/internal/insights"
	"marrowai-server/internal/models"
	"marrowai-server/internal/store"
)

const testMaxUpload = 1 << 20

type recordingDashboard struct {
	invalidated []string
}

func (d *recordingDashboard) Get(context.Context, string, analytics.Period) (*analytics.Summary, error) {
	return nil, cache.ErrMiss
}

func (d *recordingDashboard) Set(context.Context, string, analytics.Period, *analytics.Summary) error {
	return nil
}

func (d *recordingDashboard) Invalidate(_ context.Context, userID string) error {
	d.invalidated = append(d.invalidated, userID)
	return nil
}

type reportFixture struct {
	flow      *stubIngestor
	reports   *memoryReports
	analyzer  *stubAnalyzer
	blobs     *recordingBlobs
	dashboard *recordingDashboard
	handler   *ReportHandler
}

func newReportFixture() *reportFixture {
	f := &reportFixture{
		flow:      &stubIngestor{},
		reports:   &memoryReports{reports: map[string]*models.MedicalReport{}},
		analyzer:  &stubAnalyzer{},
		blobs:     &recordingBlobs{},
		dashboard: &recordingDashboard{},
	}
	f.handler = NewReportHandler(f.flow, f.reports, f.analyzer, f.blobs, f.dashboard, testMaxUpload, zap.NewNop())
	return f
}

func (f *reportFixture) router(userID string) *gin.Engine {
	r := newRouter(userID)
	r.POST("/parse-pdf", f.handler.ParsePDF)
	r.POST("/analyze-pdf", f.handler.AnalyzeText)
	r.GET("/reports", f.handler.ListReports)
	r.GET("/reports/:id", f.handler.GetReport)
	r.DELETE("/reports/:id", f.handler.DeleteReport)
	r.POST("/reports/:id/analyze", f.handler.Reanalyze)
	return r
}

type upload struct {
	fileName    string
	contentType string
	content     []byte
	fields      map[string]string
}

func (u upload) request(t *testing.T) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range u.fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if u.fileName != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="pdf"; filename=%q`, u.fileName))
		h.Set("Content-Type", u.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(u.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/parse-pdf", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pdfUpload(fields map[string]string) upload {
	return upload{fileName: "cbc.pdf", contentType: "application/pdf", content: []byte("%PDF-1.4 test"), fields: fields}
}

func analyzedReport() *models.MedicalReport {
	r := &models.MedicalReport{
		UserID:     testUser,
		FileName:   "cbc.pdf",
		ReportType: models.ReportTypeBloodTest,
		AIAnalyzed: true,
		AIInsights: datatypes.NewJSONType(&models.AIInsights{
			SchemaVersion:   models.InsightsSchemaVersion,
			RiskScore:       70,
			RiskLevel:       "high",
			Recommendations: []string{"See a hematologist"},
		}),
	}
	r.ID = "report-1"
	return r
}

func TestParsePDF(t *testing.T) {
	f := newReportFixture()
	f.flow.report = analyzedReport()

	w := serve(f.router(testUser), pdfUpload(map[string]string{
		"reportType": "blood-test",
		"notes":      " fasting draw ",
	}).request(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got UploadResponse
	resp := envelope(t, w, &got)
	assert.Equal(t, "PDF processed and saved successfully", resp.Message)
	assert.Equal(t, "report-1", got.ReportID)
	require.NotNil(t, got.Report.Insights())
	assert.Equal(t, 70, got.Report.Insights().RiskScore)

	require.Len(t, f.flow.uploads, 1)
	up := f.flow.uploads[0]
	assert.Equal(t, testUser, up.UserID)
	assert.Equal(t, "cbc.pdf", up.FileName)
	assert.Equal(t, "application/pdf", up.ContentType)
	assert.Equal(t, []byte("%PDF-1.4 test"), up.Content)
	assert.Equal(t, "blood-test", up.ReportType)
	assert.Equal(t, "fasting draw", up.Notes)
	assert.True(t, up.Analyze)
	assert.Equal(t, []string{testUser}, f.dashboard.invalidated)
}

func TestParsePDFWithoutAnalysis(t *testing.T) {
	f := newReportFixture()
	stored := analyzedReport()
	stored.AIAnalyzed = false
	stored.AIInsights = datatypes.JSONType[*models.AIInsights]{}
	f.flow.report = stored

	w := serve(f.router(testUser), pdfUpload(map[string]string{"analyze": "false"}).request(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, f.flow.uploads, 1)
	assert.False(t, f.flow.uploads[0].Analyze)
	assert.Empty(t, f.dashboard.invalidated)
}

func TestParsePDFRejectsBadUploads(t *testing.T) {
	tooBig := pdfUpload(nil)
	tooBig.content = bytes.Repeat([]byte("x"), testMaxUpload+10)

	tests := []struct {
		name   string
		upload upload
		want   string
	}{
		{"missing file", upload{fields: map[string]string{"notes": "x"}}, "File is required."},
		{"not a pdf", upload{fileName: "cbc.png", contentType: "image/png", content: []byte("png")}, "File must be a PDF."},
		{"too large", tooBig, "File exceeds the 1 MB upload limit"},
		{"unknown report type", pdfUpload(map[string]string{"reportType": "horoscope"}), "Unknown report type: horoscope"},
		{"long notes", pdfUpload(map[string]string{"notes": strings.Repeat("n", 2001)}), "Notes must be at most 2000 characters"},
		{"bad analyze flag", pdfUpload(map[string]string{"analyze": "maybe"}), "analyze must be true or false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReportFixture()
			w := serve(f.router(testUser), tt.upload.request(t))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, envelope(t, w, nil).Error)
			assert.Empty(t, f.flow.uploads)
		})
	}
}

func TestParsePDFRequiresUser(t *testing.T) {
	f := newReportFixture()
	w := serve(f.router(""), pdfUpload(nil).request(t))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.flow.uploads)
}

func TestParsePDFErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		details string
	}{
		{"extraction", &ingest.StageError{Stage: ingest.StageExtracting, Err: errors.New("bad xref table")}, http.StatusBadRequest, "Failed to extract text from PDF", "bad xref table"},
		{"no text", &ingest.StageError{Stage: ingest.StageAnalyzing, Err: insights.ErrNoText}, http.StatusBadRequest, "Report contains no extractable text", ""},
		{"analysis", &ingest.StageError{Stage: ingest.StageAnalyzing, Err: errors.New("model timeout")}, http.StatusInternalServerError, "Failed to analyze text", "model timeout"},
		{"storing", &ingest.StageError{Stage: ingest.StageStoring, Err: errors.New("db down")}, http.StatusInternalServerError, "Failed to process request.", "storing failed: db down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReportFixture()
			f.flow.err = tt.err
			w := serve(f.router(testUser), pdfUpload(nil).request(t))
			assert.Equal(t, tt.status, w.Code)
			resp := envelope(t, w, nil)
			assert.Equal(t, tt.message, resp.Error)
			assert.Equal(t, tt.details, resp.Details)
			assert.Empty(t, f.dashboard.invalidated)
		})
	}
}

func TestAnalyzeText(t *testing.T) {
	f := newReportFixture()
	f.analyzer.result, f.analyzer.err = &models.AIInsights{RiskScore: 40, RiskLevel: "medium", Recommendations: []string{"Repeat CBC"}}, nil
	r := f.router("")

	w := doJSON(t, r, http.MethodPost, "/analyze-pdf", gin.H{"text": "WBC 3.1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.AIInsights
	envelope(t, w, &got)
	assert.Equal(t, "medium", got.RiskLevel)

	w = doJSON(t, r, http.MethodPost, "/analyze-pdf", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No text provided", envelope(t, w, nil).Error)

	f.analyzer.result, f.analyzer.err = nil, insights.ErrNoText
	w = doJSON(t, r, http.MethodPost, "/analyze-pdf", gin.H{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.analyzer.result, f.analyzer.err = nil, errors.New("invalid model output")
	w = doJSON(t, r, http.MethodPost, "/analyze-pdf", gin.H{"text": "WBC 3.1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := envelope(t, w, nil)
	assert.Equal(t, "Failed to analyze text", resp.Error)
	assert.Equal(t, "invalid model output", resp.Details)
}

func TestReportLifecycle(t *testing.T) {
	f := newReportFixture()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	older := analyzedReport()
	older.UploadDate = now.Add(-48 * time.Hour)
	older.StorageKey = "reports/user-1/old.pdf"
	newer := analyzedReport()
	newer.ID = "report-2"
	newer.UploadDate = now
	other := analyzedReport()
	other.ID = "report-3"
	other.UserID = "user-2"
	f.reports.reports = map[string]*models.MedicalReport{older.ID: older, newer.ID: newer, other.ID: other}
	r := f.router(testUser)

	w := doJSON(t, r, http.MethodGet, "/reports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.MedicalReport
	envelope(t, w, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "report-2", list[0].ID)

	w = doJSON(t, r, http.MethodGet, "/reports/report-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/reports/report-3", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/reports/report-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"reports/user-1/old.pdf"}, f.blobs.deleted)
	assert.NotContains(t, f.reports.reports, "report-1")

	w = doJSON(t, r, http.MethodDelete, "/reports/report-2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.blobs.deleted, 1)

	w = doJSON(t, r, http.MethodDelete, "/reports/report-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.reports.err = errors.New("connection reset")
	w = doJSON(t, r, http.MethodGet, "/reports", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	w = doJSON(t, r, http.MethodGet, "/reports/report-2", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReanalyze(t *testing.T) {
	f := newReportFixture()
	f.flow.report = analyzedReport()
	r := f.router(testUser)

	w := doJSON(t, r, http.MethodPost, "/reports/report-1/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"report-1"}, f.flow.analyzed)
	assert.Equal(t, []string{testUser}, f.dashboard.invalidated)

	f.flow.err = ingest.ErrAlreadyAnalyzed
	w = doJSON(t, r, http.MethodPost, "/reports/report-1/analyze", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	f.flow.err = store.ErrNotFound
	w = doJSON(t, r, http.MethodPost, "/reports/missing/analyze", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Len(t, f.dashboard.invalidated, 1)
}
