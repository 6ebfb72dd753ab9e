package models

import (
	"time"
)

// ReportType represents the kind of medical report uploaded
type ReportType string

const (
	ReportTypeBloodTest        ReportType = "blood_test"
	ReportTypeUrineTest        ReportType = "urine_test"
	ReportTypeXRay             ReportType = "xray"
	ReportTypeMRI              ReportType = "mri"
	ReportTypeCTScan           ReportType = "ct_scan"
	ReportTypeUltrasound       ReportType = "ultrasound"
	ReportTypeECG              ReportType = "ecg"
	ReportTypePrescription     ReportType = "prescription"
	ReportTypeDischargeSummary ReportType = "discharge_summary"
	ReportTypeOther            ReportType = "other"
)

// ValidReportType reports whether t is one of the known report types.
func ValidReportType(t ReportType) bool {
	switch t {
	case ReportTypeBloodTest, ReportTypeUrineTest, ReportTypeXRay, ReportTypeMRI,
		ReportTypeCTScan, ReportTypeUltrasound, ReportTypeECG, ReportTypePrescription,
		ReportTypeDischargeSummary, ReportTypeOther:
		return true
	}
	return false
}

// ReportStatus tracks the analysis lifecycle of a report
type ReportStatus string

const (
	ReportStatusUploaded  ReportStatus = "uploaded"
	ReportStatusAnalyzing ReportStatus = "analyzing"
	ReportStatusAnalyzed  ReportStatus = "analyzed"
	ReportStatusFailed    ReportStatus = "failed"
)

// MedicalReport represents one logical uploaded report, which may span
// several physically stored files.
type MedicalReport struct {
	BaseModel
	UserID        string       `gorm:"size:36;index;not null" json:"userId"`
	ReportType    ReportType   `gorm:"size:30;not null" json:"reportType"`
	ReportDate    time.Time    `json:"reportDate"`
	DoctorName    string       `gorm:"size:200" json:"doctorName,omitempty"`
	HospitalName  string       `gorm:"size:200" json:"hospitalName,omitempty"`
	Notes         string       `gorm:"type:text" json:"notes,omitempty"`
	Status        ReportStatus `gorm:"size:20;default:'uploaded';index" json:"status"`
	AnalysisCount int          `gorm:"default:0" json:"analysisCount"`

	// Relations
	User     User          `gorm:"foreignKey:UserID" json:"-"`
	Files    []StoredFile  `gorm:"foreignKey:ReportID" json:"files,omitempty"`
	Insights []Insight     `gorm:"foreignKey:ReportID" json:"-"`
}

// StoredFile describes one durably stored file backing a report.
type StoredFile struct {
	BaseModel
	ReportID     string `gorm:"size:36;index;not null" json:"reportId"`
	OriginalName string `gorm:"size:255;not null" json:"originalName"`
	StorageKey   string `gorm:"size:512;not null" json:"storageKey"`
	URL          string `gorm:"size:1024;not null" json:"url"`
	Format       string `gorm:"size:20" json:"format"`
	SizeBytes    int64  `json:"sizeBytes"`
	MimeType     string `gorm:"size:100" json:"mimeType"`
}
