package models

import (
	"time"
)

// InsightSource distinguishes a fully structured model response from the
// deterministic fallback built out of free text.
type InsightSource string

const (
	InsightSourceStructured InsightSource = "structured"
	InsightSourceFallback   InsightSource = "fallback"
)

// FindingStatus classifies a key finding against its normal range
type FindingStatus string

const (
	FindingNormal   FindingStatus = "normal"
	FindingHigh     FindingStatus = "high"
	FindingLow      FindingStatus = "low"
	FindingCritical FindingStatus = "critical"
)

// Severity grades an abnormal value
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// Bilingual holds parallel English and Roman-Urdu text.
type Bilingual struct {
	English string `json:"english"`
	Urdu    string `json:"urdu"`
}

// KeyFinding is one extracted parameter from a report.
type KeyFinding struct {
	Parameter   string        `json:"parameter"`
	Value       string        `json:"value"`
	Unit        string        `json:"unit"`
	NormalRange string        `json:"normalRange"`
	Status      FindingStatus `json:"status"`
	Explanation Bilingual     `json:"explanation"`
}

// AbnormalValue is one out-of-range parameter with advice.
type AbnormalValue struct {
	Parameter      string    `json:"parameter"`
	Value          string    `json:"value"`
	Severity       Severity  `json:"severity"`
	Explanation    Bilingual `json:"explanation"`
	Recommendation Bilingual `json:"recommendation"`
}

// DoctorQuestion is a suggested question to raise with a physician.
type DoctorQuestion struct {
	Question Bilingual `json:"question"`
	Category string    `json:"category"` // general|treatment|lifestyle|follow_up|medication
	Priority string    `json:"priority"` // low|medium|high
}

// LifestyleRecommendation is a non-medical suggestion.
type LifestyleRecommendation struct {
	Type       string    `json:"type"` // diet|exercise|sleep|hydration|stress|habit
	Suggestion Bilingual `json:"suggestion"`
	Priority   string    `json:"priority"`
}

// MedicalRecommendation is a clinical suggestion with urgency.
type MedicalRecommendation struct {
	Suggestion Bilingual `json:"suggestion"`
	Urgency    string    `json:"urgency"` // routine|soon|urgent
}

// Recommendations groups the two recommendation kinds.
type Recommendations struct {
	Lifestyle []LifestyleRecommendation `json:"lifestyle"`
	Medical   []MedicalRecommendation   `json:"medical"`
}

// Feedback holds optional user feedback on an insight.
type Feedback struct {
	Helpful *bool  `json:"helpful,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Disclaimers are the fixed bilingual disclaimer blocks attached to
// every insight.
type Disclaimers struct {
	English string `json:"english"`
	Urdu    string `json:"urdu"`
}

// DefaultDisclaimers returns the standard disclaimer blocks used when a
// model response omits them.
func DefaultDisclaimers() Disclaimers {
	return Disclaimers{
		English: "This AI-generated explanation is for informational purposes only and is not a medical diagnosis. Always consult a qualified doctor before making health decisions.",
		Urdu:    "Yeh AI ki banai hui wazahat sirf maloomat ke liye hai, yeh koi tibbi tashkhees nahi hai. Sehat ke faislon se pehle hamesha kisi mustanad doctor se mashwara karein.",
	}
}

// Insight is one persisted AI analysis result tied to a single report.
type Insight struct {
	BaseModel
	UserID   string `gorm:"size:36;index;not null" json:"userId"`
	ReportID string `gorm:"size:36;index;not null" json:"reportId"`

	Summary             Bilingual        `gorm:"serializer:json" json:"summary"`
	KeyFindings         []KeyFinding     `gorm:"serializer:json" json:"keyFindings"`
	AbnormalValues      []AbnormalValue  `gorm:"serializer:json" json:"abnormalValues"`
	DoctorQuestions     []DoctorQuestion `gorm:"serializer:json" json:"doctorQuestions"`
	Recommendations     Recommendations  `gorm:"serializer:json" json:"recommendations"`
	RiskFactors         []string         `gorm:"serializer:json" json:"riskFactors"`
	FollowUpSuggestions []string         `gorm:"serializer:json" json:"followUpSuggestions"`
	Disclaimers         Disclaimers      `gorm:"serializer:json" json:"disclaimers"`

	// HasCritical mirrors AbnormalValues so dashboards can count
	// critical insights without unpacking the JSON column.
	HasCritical bool `gorm:"default:false;index" json:"hasCritical"`

	Confidence   int           `gorm:"default:85" json:"confidence"`
	Model        string        `gorm:"size:100" json:"model"`
	ProcessingMS int64         `json:"processingMs"`
	Source       InsightSource `gorm:"size:20;default:'structured'" json:"source"`

	IsRead   bool       `gorm:"default:false;index" json:"isRead"`
	ReadAt   *time.Time `json:"readAt,omitempty"`
	Feedback Feedback   `gorm:"serializer:json" json:"feedback"`

	User   User          `gorm:"foreignKey:UserID" json:"-"`
	Report MedicalReport `gorm:"foreignKey:ReportID" json:"-"`
}

// ApplyDefaults fills collections and disclaimers so stored insights
// never carry nil slices or empty disclaimer blocks.
func (i *Insight) ApplyDefaults() {
	if i.KeyFindings == nil {
		i.KeyFindings = []KeyFinding{}
	}
	if i.AbnormalValues == nil {
		i.AbnormalValues = []AbnormalValue{}
	}
	if i.DoctorQuestions == nil {
		i.DoctorQuestions = []DoctorQuestion{}
	}
	if i.Recommendations.Lifestyle == nil {
		i.Recommendations.Lifestyle = []LifestyleRecommendation{}
	}
	if i.Recommendations.Medical == nil {
		i.Recommendations.Medical = []MedicalRecommendation{}
	}
	if i.RiskFactors == nil {
		i.RiskFactors = []string{}
	}
	if i.FollowUpSuggestions == nil {
		i.FollowUpSuggestions = []string{}
	}
	if i.Disclaimers.English == "" || i.Disclaimers.Urdu == "" {
		d := DefaultDisclaimers()
		if i.Disclaimers.English == "" {
			i.Disclaimers.English = d.English
		}
		if i.Disclaimers.Urdu == "" {
			i.Disclaimers.Urdu = d.Urdu
		}
	}
	if i.Confidence <= 0 || i.Confidence > 100 {
		i.Confidence = 85
	}
	i.HasCritical = i.HasCriticalAbnormal()
}

// HasCriticalAbnormal reports whether any abnormal value is critical.
func (i *Insight) HasCriticalAbnormal() bool {
	for _, av := range i.AbnormalValues {
		if av.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
