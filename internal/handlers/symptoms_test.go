package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"marrowai-server/internal/risk"
)

func symptomRouter(h *SymptomHandler) *gin.Engine {
	r := newRouter("")
	r.GET("/symptoms", h.Catalogue)
	r.POST("/symptoms", h.Assess)
	return r
}

func TestSymptomCatalogue(t *testing.T) {
	r := symptomRouter(NewSymptomHandler(zap.NewNop()))

	w := doJSON(t, r, http.MethodGet, "/symptoms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got CatalogueResponse
	envelope(t, w, &got)
	assert.Len(t, got.Symptoms, 14)
	assert.Len(t, got.SeverityLevels, 5)
	assert.Len(t, got.Durations, 6)
	assert.Equal(t, "fatigue", got.Symptoms[0].ID)
}

func TestSymptomAssess(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := NewSymptomHandler(zap.New(core))
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }
	r := symptomRouter(h)

	w := doJSON(t, r, http.MethodPost, "/symptoms", gin.H{
		"symptoms":   []string{"severe_fatigue", "mystery"},
		"severities": gin.H{"severe_fatigue": 4},
		"durations":  gin.H{"severe_fatigue": "1-2 weeks"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got AssessResponse
	envelope(t, w, &got)
	assert.Equal(t, 30, got.Score)
	assert.Equal(t, risk.LevelLow, got.Level)
	assert.Equal(t, risk.UrgencyRoutine, got.Urgency)
	assert.Len(t, got.Recommendations, 5)
	assert.Equal(t, []string{"mystery"}, got.UnknownSymptoms)
	assert.NotEmpty(t, got.AssessmentID)
	assert.True(t, fixed.Equal(got.Timestamp))

	entries := logs.FilterMessage("Unrecognised symptom tag scored as other").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "mystery", entries[0].ContextMap()["symptom"])
}

func TestSymptomAssessWithBloodCount(t *testing.T) {
	r := symptomRouter(NewSymptomHandler(zap.NewNop()))

	tests := []struct {
		name       string
		bloodCount gin.H
		score      int
		level      risk.Level
		urgency    risk.Urgency
	}{
		{"rbc not measured", gin.H{"wbc": 3, "hemoglobin": 10, "platelets": 100}, 75, risk.LevelHigh, risk.UrgencyUrgent},
		{"rbc normal", gin.H{"wbc": 3, "rbc": 5, "hemoglobin": 10, "platelets": 100}, 75, risk.LevelHigh, risk.UrgencyUrgent},
		{"only platelets", gin.H{"platelets": 120}, 30, risk.LevelLow, risk.UrgencyRoutine},
		{"nothing measured", gin.H{}, 0, risk.LevelLow, risk.UrgencyRoutine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/symptoms", gin.H{
				"symptoms":   []string{},
				"bloodCount": tt.bloodCount,
			})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var got AssessResponse
			envelope(t, w, &got)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.level, got.Level)
			assert.Equal(t, tt.urgency, got.Urgency)
			assert.NotNil(t, got.UnknownSymptoms)
			assert.Empty(t, got.UnknownSymptoms)
		})
	}
}

func TestSymptomAssessRejectsBadInput(t *testing.T) {
	r := symptomRouter(NewSymptomHandler(zap.NewNop()))

	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{"missing symptoms", gin.H{}, "Invalid symptoms data"},
		{"malformed json", "{", "Invalid symptoms data"},
		{"empty tag", gin.H{"symptoms": []string{""}}, "Invalid symptoms data"},
		{"severity out of range", gin.H{"symptoms": []string{"fatigue"}, "severities": gin.H{"fatigue": 7}}, "Invalid symptoms data"},
		{"negative lab value", gin.H{"symptoms": []string{}, "bloodCount": gin.H{"wbc": -1}}, "Invalid symptoms data"},
		{"unknown duration", gin.H{"symptoms": []string{"fatigue"}, "durations": gin.H{"fatigue": "forever"}}, "Invalid duration for symptom fatigue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/symptoms", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, envelope(t, w, nil).Error)
		})
	}
}
