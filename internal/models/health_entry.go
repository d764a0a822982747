package models

import (
	"time"

	"gorm.io/datatypes"
)

// BloodCount is one complete blood count draw. A nil value was not measured.
// Cell counts: WBC and platelets ×10³/μL, RBC ×10⁶/μL, hemoglobin g/dL;
// hematocrit and the differential are percentages.
type BloodCount struct {
	Date        time.Time `json:"date"`
	WBC         *float64  `json:"wbc,omitempty" binding:"omitempty,min=0"`
	RBC         *float64  `json:"rbc,omitempty" binding:"omitempty,min=0"`
	Hemoglobin  *float64  `json:"hemoglobin,omitempty" binding:"omitempty,min=0"`
	Hematocrit  *float64  `json:"hematocrit,omitempty" binding:"omitempty,min=0"`
	Platelets   *float64  `json:"platelets,omitempty" binding:"omitempty,min=0"`
	Neutrophils *float64  `json:"neutrophils,omitempty" binding:"omitempty,min=0"`
	Lymphocytes *float64  `json:"lymphocytes,omitempty" binding:"omitempty,min=0"`
	Monocytes   *float64  `json:"monocytes,omitempty" binding:"omitempty,min=0"`
	Eosinophils *float64  `json:"eosinophils,omitempty" binding:"omitempty,min=0"`
	Basophils   *float64  `json:"basophils,omitempty" binding:"omitempty,min=0"`
}

// HealthEntry is one dated observation in a user's health log. RiskScore is
// computed when the entry is written and never recomputed on read.
type HealthEntry struct {
	BaseModel
	UserID     string                          `gorm:"size:36;index;not null" json:"userId"`
	Date       time.Time                       `gorm:"index" json:"date"`
	RiskScore  int                             `json:"riskScore"`
	Symptoms   datatypes.JSONSlice[string]     `json:"symptoms"`
	ReportType string                          `gorm:"size:50" json:"reportType,omitempty"`
	ReportID   string                          `gorm:"size:36;index" json:"reportId,omitempty"`
	BloodCount datatypes.JSONType[*BloodCount] `json:"bloodCount"`
	Notes      string                          `gorm:"type:text" json:"notes,omitempty"`
}

// Labs returns the entry's blood count, or nil.
func (e *HealthEntry) Labs() *BloodCount {
	return e.BloodCount.Data()
}
