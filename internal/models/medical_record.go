package models

import (
	"time"

	"gorm.io/datatypes"
)

// Report types offered by the upload form.
const (
	ReportTypeBloodTest        = "blood-test"
	ReportTypeXRay             = "x-ray"
	ReportTypeMRI              = "mri"
	ReportTypeCTScan           = "ct-scan"
	ReportTypeUltrasound       = "ultrasound"
	ReportTypePrescription     = "prescription"
	ReportTypeDischargeSummary = "discharge-summary"
	ReportTypeLabReport        = "lab-report"
	ReportTypeConsultation     = "consultation"
	ReportTypeGeneral          = "general"
)

// ReportTypes lists every accepted report type.
var ReportTypes = []string{
	ReportTypeBloodTest, ReportTypeXRay, ReportTypeMRI, ReportTypeCTScan, ReportTypeUltrasound,
	ReportTypePrescription, ReportTypeDischargeSummary, ReportTypeLabReport, ReportTypeConsultation,
	ReportTypeGeneral,
}

// IsReportType reports whether t is one of ReportTypes.
func IsReportType(t string) bool {
	for _, rt := range ReportTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// InsightsSchemaVersion is stamped on every AIInsights produced by this server.
const InsightsSchemaVersion = 1

// AIInsights is the validated structured analysis of a report's text.
type AIInsights struct {
	SchemaVersion   int      `json:"schemaVersion"`
	RiskScore       int      `json:"riskScore" validate:"min=0,max=100"`
	RiskLevel       string   `json:"riskLevel" validate:"required,oneof=low medium high"`
	WBC             float64  `json:"wbc" validate:"min=0"`
	Hemoglobin      float64  `json:"hemoglobin" validate:"min=0"`
	Platelets       float64  `json:"platelets" validate:"min=0"`
	Recommendations []string `json:"recommendations" validate:"required,dive,required"`
}

// MedicalReport is an uploaded PDF report and its extracted text.
// AIAnalyzed only becomes true together with AIInsights.
type MedicalReport struct {
	BaseModel
	UserID        string                          `gorm:"size:36;index;not null" json:"userId"`
	FileName      string                          `gorm:"size:255;not null" json:"fileName"`
	FileSize      int64                           `json:"fileSize"`
	ContentType   string                          `gorm:"size:100" json:"contentType"`
	StorageKey    string                          `gorm:"size:512" json:"storageKey,omitempty"`
	PageCount     int                             `json:"pageCount"`
	ExtractedText string                          `gorm:"type:text" json:"extractedText"`
	TextLength    int                             `json:"textLength"`
	ReportType    string                          `gorm:"size:50;default:'general'" json:"reportType"`
	Notes         string                          `gorm:"type:text" json:"notes,omitempty"`
	UploadDate    time.Time                       `gorm:"index" json:"uploadDate"`
	AIAnalyzed    bool                            `gorm:"default:false" json:"aiAnalyzed"`
	AIInsights    datatypes.JSONType[*AIInsights] `json:"aiInsights"`
	AnalyzedAt    *time.Time                      `json:"analyzedAt,omitempty"`
}

// Insights returns the stored analysis, or nil when the report was not analysed.
func (r *MedicalReport) Insights() *AIInsights {
	return r.AIInsights.Data()
}
