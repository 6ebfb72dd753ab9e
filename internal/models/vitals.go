package models

import (
	"fmt"
	"strings"
	"time"
)

// VitalType represents the kind of measurement recorded
type VitalType string

const (
	VitalBloodPressure    VitalType = "blood_pressure"
	VitalHeartRate        VitalType = "heart_rate"
	VitalTemperature      VitalType = "temperature"
	VitalWeight           VitalType = "weight"
	VitalHeight           VitalType = "height"
	VitalBloodSugar       VitalType = "blood_sugar"
	VitalOxygenSaturation VitalType = "oxygen_saturation"
	VitalRespiratoryRate  VitalType = "respiratory_rate"
	VitalPainLevel        VitalType = "pain_level"
	VitalMood             VitalType = "mood"
	VitalBMI              VitalType = "bmi"
)

// VitalSource tags where a reading came from
type VitalSource string

const (
	SourceManual     VitalSource = "manual"
	SourceDevice     VitalSource = "device"
	SourceImported   VitalSource = "imported"
	SourceCalculated VitalSource = "calculated"
)

// vitalUnits maps each type to its allowed units; the first entry is the
// default when a request omits the unit.
var vitalUnits = map[VitalType][]string{
	VitalBloodPressure:    {"mmHg"},
	VitalHeartRate:        {"bpm"},
	VitalTemperature:      {"C", "F"},
	VitalWeight:           {"kg", "lb"},
	VitalHeight:           {"cm", "m"},
	VitalBloodSugar:       {"mg/dL", "mmol/L"},
	VitalOxygenSaturation: {"%"},
	VitalRespiratoryRate:  {"breaths/min"},
	VitalPainLevel:        {"scale"},
	VitalMood:             {"scale"},
	VitalBMI:              {"kg/m2"},
}

// textVitalTypes carry a subjective text value instead of a number.
var textVitalTypes = map[VitalType]bool{
	VitalPainLevel: true,
	VitalMood:      true,
}

// VitalReading is a single timestamped health measurement.
type VitalReading struct {
	BaseModel
	UserID       string      `gorm:"size:36;index;not null" json:"userId"`
	Type         VitalType   `gorm:"size:30;index;not null" json:"type"`
	NumericValue *float64    `json:"numericValue,omitempty"`
	TextValue    string      `gorm:"size:255" json:"textValue,omitempty"`
	Systolic     *int        `json:"systolic,omitempty"`
	Diastolic    *int        `json:"diastolic,omitempty"`
	Unit         string      `gorm:"size:20" json:"unit"`
	RecordedAt   time.Time   `gorm:"index" json:"recordedAt"`
	Source       VitalSource `gorm:"size:20;default:'manual'" json:"source"`
	Active       bool        `gorm:"default:true;index" json:"active"`
	Fasting      bool        `gorm:"default:false" json:"fasting"`
	OnMedication bool        `gorm:"default:false" json:"onMedication"`
	PostExercise bool        `gorm:"default:false" json:"postExercise"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// DefaultUnit returns the canonical unit for a vital type.
func DefaultUnit(t VitalType) string {
	if units, ok := vitalUnits[t]; ok {
		return units[0]
	}
	return ""
}

// ValidVitalType reports whether t is a known vital type.
func ValidVitalType(t VitalType) bool {
	_, ok := vitalUnits[t]
	return ok
}

// Validate checks the value shape against the reading's declared type.
func (v *VitalReading) Validate() error {
	units, ok := vitalUnits[v.Type]
	if !ok {
		return fmt.Errorf("unknown vital type %q", v.Type)
	}
	if v.Unit == "" {
		v.Unit = units[0]
	} else {
		allowed := false
		for _, u := range units {
			if u == v.Unit {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("unit %q is not valid for type %q", v.Unit, v.Type)
		}
	}

	switch {
	case v.Type == VitalBloodPressure:
		if v.Systolic == nil || v.Diastolic == nil {
			return fmt.Errorf("blood pressure requires both systolic and diastolic values")
		}
		if *v.Systolic < 40 || *v.Systolic > 300 {
			return fmt.Errorf("systolic value %d out of range (40-300)", *v.Systolic)
		}
		if *v.Diastolic < 20 || *v.Diastolic > 200 {
			return fmt.Errorf("diastolic value %d out of range (20-200)", *v.Diastolic)
		}
	case textVitalTypes[v.Type]:
		if strings.TrimSpace(v.TextValue) == "" {
			return fmt.Errorf("%s requires a text value", v.Type)
		}
	default:
		if v.NumericValue == nil {
			return fmt.Errorf("%s requires a numeric value", v.Type)
		}
	}
	return nil
}

// FormattedValue renders the reading for display, e.g. "120/80 mmHg".
func (v *VitalReading) FormattedValue() string {
	switch {
	case v.Type == VitalBloodPressure && v.Systolic != nil && v.Diastolic != nil:
		return fmt.Sprintf("%d/%d %s", *v.Systolic, *v.Diastolic, v.Unit)
	case textVitalTypes[v.Type]:
		return v.TextValue
	case v.NumericValue != nil:
		return strings.TrimSpace(fmt.Sprintf("%s %s", trimFloat(*v.NumericValue), v.Unit))
	}
	return ""
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.1f", f)
	s = strings.TrimSuffix(s, ".0")
	return s
}
