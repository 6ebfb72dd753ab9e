package handlers

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"sehatlog-server/internal/middleware"
	"sehatlog-server/internal/models"
	"sehatlog-server/internal/pkg/logger"
	"sehatlog-server/internal/utils"
)

// bmiWindow is the deduplication window for derived BMI readings: a
// weight entry upserts into any calculated BMI reading within ±24h.
const bmiWindow = 24 * time.Hour

// VitalsHandler handles vital sign CRUD and aggregates.
type VitalsHandler struct {
	DB  *gorm.DB
	Log *logger.Logger
}

// NewVitalsHandler creates a new VitalsHandler.
func NewVitalsHandler(db *gorm.DB, log *logger.Logger) *VitalsHandler {
	return &VitalsHandler{DB: db, Log: log.With("handler", "vitals")}
}

// VitalRequest represents the request body for recording a reading.
type VitalRequest struct {
	Type         string   `json:"type" binding:"required"`
	NumericValue *float64 `json:"numericValue"`
	TextValue    string   `json:"textValue"`
	Systolic     *int     `json:"systolic"`
	Diastolic    *int     `json:"diastolic"`
	Unit         string   `json:"unit"`
	RecordedAt   string   `json:"recordedAt"` // RFC3339; defaults to now
	Source       string   `json:"source" binding:"omitempty,oneof=manual device imported"`
	Fasting      *bool    `json:"fasting"`
	OnMedication *bool    `json:"onMedication"`
	PostExercise *bool    `json:"postExercise"`
}

// vitalResponse renders a reading with its derived formatted value.
func vitalResponse(v models.VitalReading) gin.H {
	return gin.H{
		"id":             v.ID,
		"type":           v.Type,
		"numericValue":   v.NumericValue,
		"textValue":      v.TextValue,
		"systolic":       v.Systolic,
		"diastolic":      v.Diastolic,
		"unit":           v.Unit,
		"formattedValue": v.FormattedValue(),
		"recordedAt":     v.RecordedAt,
		"source":         v.Source,
		"active":         v.Active,
		"fasting":        v.Fasting,
		"onMedication":   v.OnMedication,
		"postExercise":   v.PostExercise,
		"createdAt":      v.CreatedAt,
		"updatedAt":      v.UpdatedAt,
	}
}

// CreateVital records a new reading. Weight readings additionally upsert
// a derived BMI reading when a height is on record.
func (h *VitalsHandler) CreateVital(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req VitalRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	recordedAt := time.Now()
	if req.RecordedAt != "" {
		t, err := time.Parse(time.RFC3339, req.RecordedAt)
		if err != nil {
			utils.BadRequest(c, "Invalid recordedAt, expected RFC3339 timestamp")
			return
		}
		recordedAt = t
	}

	source := models.SourceManual
	if req.Source != "" {
		source = models.VitalSource(req.Source)
	}

	reading := models.VitalReading{
		UserID:       userID,
		Type:         models.VitalType(req.Type),
		NumericValue: req.NumericValue,
		TextValue:    req.TextValue,
		Systolic:     req.Systolic,
		Diastolic:    req.Diastolic,
		Unit:         req.Unit,
		RecordedAt:   recordedAt,
		Source:       source,
		Active:       true,
		Fasting:      req.Fasting != nil && *req.Fasting,
		OnMedication: req.OnMedication != nil && *req.OnMedication,
		PostExercise: req.PostExercise != nil && *req.PostExercise,
	}
	if err := reading.Validate(); err != nil {
		utils.BadRequest(c, "Invalid vital reading", err.Error())
		return
	}

	if err := h.DB.Create(&reading).Error; err != nil {
		h.Log.Error("vital create failed", "error", err, "userId", userID)
		utils.InternalServerError(c, "Failed to record reading")
		return
	}

	if reading.Type == models.VitalWeight {
		if err := h.upsertBMI(userID, &reading); err != nil {
			h.Log.Warn("bmi derivation failed", "error", err, "userId", userID)
		}
	}

	utils.Created(c, "Reading recorded successfully", vitalResponse(reading))
}

// upsertBMI computes BMI from the new weight and the most recent height.
// The derived reading is updated in place when one already exists in the
// ±24h window, so repeated weight entries on the same day never create
// duplicate BMI rows.
func (h *VitalsHandler) upsertBMI(userID string, weight *models.VitalReading) error {
	var height models.VitalReading
	err := h.DB.Where("user_id = ? AND type = ? AND active = ?", userID, models.VitalHeight, true).
		Order("recorded_at desc").First(&height).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil // no height on record, nothing to derive
		}
		return err
	}
	if height.NumericValue == nil || weight.NumericValue == nil {
		return nil
	}

	meters := *height.NumericValue
	if height.Unit == "cm" {
		meters /= 100
	}
	if meters <= 0 {
		return nil
	}
	kg := *weight.NumericValue
	if weight.Unit == "lb" {
		kg *= 0.453592
	}
	bmi := math.Round(kg/(meters*meters)*10) / 10

	var existing models.VitalReading
	err = h.DB.Where(
		"user_id = ? AND type = ? AND source = ? AND recorded_at BETWEEN ? AND ?",
		userID, models.VitalBMI, models.SourceCalculated,
		weight.RecordedAt.Add(-bmiWindow), weight.RecordedAt.Add(bmiWindow),
	).First(&existing).Error
	switch err {
	case nil:
		existing.NumericValue = &bmi
		existing.RecordedAt = weight.RecordedAt
		return h.DB.Save(&existing).Error
	case gorm.ErrRecordNotFound:
		derived := models.VitalReading{
			UserID:       userID,
			Type:         models.VitalBMI,
			NumericValue: &bmi,
			Unit:         models.DefaultUnit(models.VitalBMI),
			RecordedAt:   weight.RecordedAt,
			Source:       models.SourceCalculated,
			Active:       true,
		}
		return h.DB.Create(&derived).Error
	default:
		return err
	}
}

// GetVitals lists readings with optional type and date filters.
func (h *VitalsHandler) GetVitals(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	page, limit := parsePagination(c)
	query := h.DB.Model(&models.VitalReading{}).Where("user_id = ? AND active = ?", userID, true)

	if t := c.Query("type"); t != "" {
		if !models.ValidVitalType(models.VitalType(t)) {
			utils.BadRequest(c, "Unknown vital type: "+t)
			return
		}
		query = query.Where("type = ?", t)
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			utils.BadRequest(c, "Invalid from date, expected YYYY-MM-DD")
			return
		}
		query = query.Where("recorded_at >= ?", t)
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			utils.BadRequest(c, "Invalid to date, expected YYYY-MM-DD")
			return
		}
		query = query.Where("recorded_at < ?", t.AddDate(0, 0, 1))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.Log.Error("vitals count failed", "error", err)
		utils.InternalServerError(c, "Failed to fetch readings")
		return
	}

	var readings []models.VitalReading
	if err := query.Order("recorded_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&readings).Error; err != nil {
		h.Log.Error("vitals fetch failed", "error", err)
		utils.InternalServerError(c, "Failed to fetch readings")
		return
	}

	data := make([]gin.H, 0, len(readings))
	for _, v := range readings {
		data = append(data, vitalResponse(v))
	}
	utils.SuccessList(c, "Readings fetched successfully", data, utils.NewPagination(page, limit, total))
}

// latestVitalsPerType returns the most recent active reading per type.
func latestVitalsPerType(db *gorm.DB, userID string) ([]models.VitalReading, error) {
	var readings []models.VitalReading
	if err := db.Where("user_id = ? AND active = ?", userID, true).
		Order("recorded_at desc").Find(&readings).Error; err != nil {
		return nil, err
	}
	seen := make(map[models.VitalType]bool)
	latest := make([]models.VitalReading, 0, len(seen))
	for _, v := range readings {
		if !seen[v.Type] {
			seen[v.Type] = true
			latest = append(latest, v)
		}
	}
	return latest, nil
}

// GetLatestVitals returns the latest reading of each type.
func (h *VitalsHandler) GetLatestVitals(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	latest, err := latestVitalsPerType(h.DB, userID)
	if err != nil {
		h.Log.Error("latest vitals failed", "error", err)
		utils.InternalServerError(c, "Failed to fetch readings")
		return
	}
	data := make([]gin.H, 0, len(latest))
	for _, v := range latest {
		data = append(data, vitalResponse(v))
	}
	utils.Success(c, "Latest readings fetched successfully", data)
}

// VitalStats summarizes one vital type over a trailing window.
type VitalStats struct {
	Type         models.VitalType `json:"type"`
	Days         int              `json:"days"`
	Count        int64            `json:"count"`
	Average      *float64         `json:"average,omitempty"`
	Min          *float64         `json:"min,omitempty"`
	Max          *float64         `json:"max,omitempty"`
	AvgSystolic  *float64         `json:"avgSystolic,omitempty"`
	AvgDiastolic *float64         `json:"avgDiastolic,omitempty"`
}

// GetVitalStats computes count/avg/min/max for a type over a trailing
// window (default 30 days).
func (h *VitalsHandler) GetVitalStats(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	vtype := models.VitalType(c.Query("type"))
	if !models.ValidVitalType(vtype) {
		utils.BadRequest(c, "Query parameter 'type' must be a known vital type")
		return
	}
	days := 30
	if d := c.Query("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n <= 0 || n > 365 {
			utils.BadRequest(c, "Query parameter 'days' must be between 1 and 365")
			return
		}
		days = n
	}

	since := time.Now().AddDate(0, 0, -days)
	base := h.DB.Model(&models.VitalReading{}).
		Where("user_id = ? AND type = ? AND active = ? AND recorded_at > ?", userID, vtype, true, since)

	stats := VitalStats{Type: vtype, Days: days}
	if err := base.Count(&stats.Count).Error; err != nil {
		h.Log.Error("vitals stats count failed", "error", err)
		utils.InternalServerError(c, "Failed to compute statistics")
		return
	}

	if stats.Count > 0 {
		if vtype == models.VitalBloodPressure {
			row := struct{ AvgSys, AvgDia float64 }{}
			if err := base.Select("AVG(systolic) as avg_sys, AVG(diastolic) as avg_dia").
				Scan(&row).Error; err != nil {
				h.Log.Error("vitals bp stats failed", "error", err)
				utils.InternalServerError(c, "Failed to compute statistics")
				return
			}
			stats.AvgSystolic = &row.AvgSys
			stats.AvgDiastolic = &row.AvgDia
		} else {
			row := struct{ Avg, Min, Max float64 }{}
			if err := base.Select("AVG(numeric_value) as avg, MIN(numeric_value) as min, MAX(numeric_value) as max").
				Scan(&row).Error; err != nil {
				h.Log.Error("vitals stats failed", "error", err)
				utils.InternalServerError(c, "Failed to compute statistics")
				return
			}
			stats.Average = &row.Avg
			stats.Min = &row.Min
			stats.Max = &row.Max
		}
	}

	utils.Success(c, "Statistics computed successfully", stats)
}

// UpdateVital updates an owned reading in place.
func (h *VitalsHandler) UpdateVital(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	reading, ok := h.ownedReading(c, userID)
	if !ok {
		return
	}

	var req VitalRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if req.Type != "" && models.VitalType(req.Type) != reading.Type {
		utils.BadRequest(c, "A reading's type cannot be changed")
		return
	}

	if req.NumericValue != nil {
		reading.NumericValue = req.NumericValue
	}
	if req.TextValue != "" {
		reading.TextValue = req.TextValue
	}
	if req.Systolic != nil {
		reading.Systolic = req.Systolic
	}
	if req.Diastolic != nil {
		reading.Diastolic = req.Diastolic
	}
	if req.Unit != "" {
		reading.Unit = req.Unit
	}
	if req.RecordedAt != "" {
		t, err := time.Parse(time.RFC3339, req.RecordedAt)
		if err != nil {
			utils.BadRequest(c, "Invalid recordedAt, expected RFC3339 timestamp")
			return
		}
		reading.RecordedAt = t
	}
	if req.Fasting != nil {
		reading.Fasting = *req.Fasting
	}
	if req.OnMedication != nil {
		reading.OnMedication = *req.OnMedication
	}
	if req.PostExercise != nil {
		reading.PostExercise = *req.PostExercise
	}

	if err := reading.Validate(); err != nil {
		utils.BadRequest(c, "Invalid vital reading", err.Error())
		return
	}
	if err := h.DB.Save(reading).Error; err != nil {
		h.Log.Error("vital update failed", "error", err, "userId", userID)
		utils.InternalServerError(c, "Failed to update reading")
		return
	}
	utils.Success(c, "Reading updated successfully", vitalResponse(*reading))
}

// DeactivateVital soft-deletes a reading.
func (h *VitalsHandler) DeactivateVital(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	reading, ok := h.ownedReading(c, userID)
	if !ok {
		return
	}
	reading.Active = false
	if err := h.DB.Save(reading).Error; err != nil {
		h.Log.Error("vital deactivate failed", "error", err, "userId", userID)
		utils.InternalServerError(c, "Failed to deactivate reading")
		return
	}
	utils.Success(c, "Reading deactivated", nil)
}

// DeleteVital removes a reading entirely.
func (h *VitalsHandler) DeleteVital(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	reading, ok := h.ownedReading(c, userID)
	if !ok {
		return
	}
	if err := h.DB.Delete(reading).Error; err != nil {
		h.Log.Error("vital delete failed", "error", err, "userId", userID)
		utils.InternalServerError(c, "Failed to delete reading")
		return
	}
	utils.Success(c, "Reading deleted", nil)
}

// ownedReading loads the reading in the URL if the caller owns it.
// Cross-user access reads as not-found.
func (h *VitalsHandler) ownedReading(c *gin.Context, userID string) (*models.VitalReading, bool) {
	idStr := c.Param("id")
	if _, err := uuid.Parse(idStr); err != nil {
		utils.BadRequest(c, "Invalid reading ID")
		return nil, false
	}
	var reading models.VitalReading
	if err := h.DB.First(&reading, "id = ? AND user_id = ?", idStr, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Reading not found")
		} else {
			h.Log.Error("reading lookup failed", "error", err)
			utils.InternalServerError(c, "Database error")
		}
		return nil, false
	}
	return &reading, true
}

// parsePagination reads page/limit query params with sane bounds.
func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
