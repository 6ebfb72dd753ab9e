package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"sehatlog-server/internal/middleware"
	"sehatlog-server/internal/models"
	"sehatlog-server/internal/pkg/logger"
	"sehatlog-server/internal/utils"
)

// UserHandler handles profile and dashboard requests.
type UserHandler struct {
	DB  *gorm.DB
	Log *logger.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *gorm.DB, log *logger.Logger) *UserHandler {
	return &UserHandler{DB: db, Log: log.With("handler", "user")}
}

func (h *UserHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return nil, false
	}
	var user models.User
	if err := h.DB.First(&user, "id = ? AND status = ?", userID, models.UserStatusActive).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "User profile not found")
		} else {
			h.Log.Error("user lookup failed", "error", err)
			utils.InternalServerError(c, "Database error")
		}
		return nil, false
	}
	return &user, true
}

// GetProfile handles fetching the currently authenticated user's profile.
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// UpdateProfileRequest represents the request body for updating a profile.
type UpdateProfileRequest struct {
	FullName      string  `json:"fullName"`
	PhoneNumber   string  `json:"phoneNumber"`
	DateOfBirth   *string `json:"dateOfBirth"` // YYYY-MM-DD
	Gender        string  `json:"gender" binding:"omitempty,oneof=male female other unspecified"`
	Language      string  `json:"language" binding:"omitempty,oneof=en ur"`
	Theme         string  `json:"theme" binding:"omitempty,oneof=light dark system"`
	Notifications *bool   `json:"notifications"`
}

// UpdateProfile handles updating the currently authenticated user's profile.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if req.PhoneNumber != "" {
		user.PhoneNumber = req.PhoneNumber
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			utils.BadRequest(c, "Invalid dateOfBirth, expected YYYY-MM-DD")
			return
		}
		user.DateOfBirth = &dob
	}
	if req.Gender != "" {
		user.Gender = models.Gender(req.Gender)
	}
	if req.Language != "" {
		user.Preferences.Language = models.Language(req.Language)
	}
	if req.Theme != "" {
		user.Preferences.Theme = req.Theme
	}
	if req.Notifications != nil {
		user.Preferences.Notifications = *req.Notifications
	}

	if err := h.DB.Save(user).Error; err != nil {
		h.Log.Error("profile update failed", "error", err, "userId", user.ID)
		utils.InternalServerError(c, "Failed to update profile")
		return
	}
	utils.Success(c, "Profile updated successfully", user.Sanitize())
}

// DeleteProfile soft-deletes the account: status flips to deleted, then
// identifying fields are anonymized. The row is never hard-deleted.
func (h *UserHandler) DeleteProfile(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	user.Status = models.UserStatusDeleted
	user.Anonymize(time.Now())
	if err := h.DB.Save(user).Error; err != nil {
		h.Log.Error("account delete failed", "error", err, "userId", user.ID)
		utils.InternalServerError(c, "Failed to delete account")
		return
	}

	// Outstanding refresh tokens die with the account.
	if err := h.DB.Model(&models.RefreshToken{}).
		Where("user_id = ?", user.ID).
		Update("is_revoked", true).Error; err != nil {
		h.Log.Warn("failed to revoke tokens on delete", "error", err, "userId", user.ID)
	}

	utils.Success(c, "Account deleted", nil)
}

// DashboardInsight is an insight annotated with its report's metadata.
type DashboardInsight struct {
	models.Insight
	ReportType models.ReportType `json:"reportType"`
	ReportDate time.Time         `json:"reportDate"`
}

// DashboardResponse is the aggregate overview for the home screen.
type DashboardResponse struct {
	ReportsLast30Days int64              `json:"reportsLast30Days"`
	VitalsLast7Days   int64              `json:"vitalsLast7Days"`
	TotalInsights     int64              `json:"totalInsights"`
	UnreadInsights    int64              `json:"unreadInsights"`
	CriticalInsights  int64              `json:"criticalInsights"`
	LatestVitals      []gin.H            `json:"latestVitals"`
	RecentInsights    []DashboardInsight `json:"recentInsights"`
}

// GetDashboard composes counts and recent records from the other
// stores. Recomputed on every call; nothing is cached.
func (h *UserHandler) GetDashboard(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	now := time.Now()
	var resp DashboardResponse

	if err := h.DB.Model(&models.MedicalReport{}).
		Where("user_id = ? AND created_at > ?", userID, now.AddDate(0, 0, -30)).
		Count(&resp.ReportsLast30Days).Error; err != nil {
		h.Log.Error("dashboard report count failed", "error", err)
		utils.InternalServerError(c, "Failed to build dashboard")
		return
	}
	if err := h.DB.Model(&models.VitalReading{}).
		Where("user_id = ? AND active = ? AND recorded_at > ?", userID, true, now.AddDate(0, 0, -7)).
		Count(&resp.VitalsLast7Days).Error; err != nil {
		h.Log.Error("dashboard vitals count failed", "error", err)
		utils.InternalServerError(c, "Failed to build dashboard")
		return
	}
	if err := h.DB.Model(&models.Insight{}).
		Where("user_id = ?", userID).Count(&resp.TotalInsights).Error; err != nil {
		h.Log.Error("dashboard insight count failed", "error", err)
		utils.InternalServerError(c, "Failed to build dashboard")
		return
	}
	if err := h.DB.Model(&models.Insight{}).
		Where("user_id = ? AND is_read = ?", userID, false).Count(&resp.UnreadInsights).Error; err != nil {
		h.Log.Error("dashboard unread count failed", "error", err)
		utils.InternalServerError(c, "Failed to build dashboard")
		return
	}
	if err := h.DB.Model(&models.Insight{}).
		Where("user_id = ? AND has_critical = ?", userID, true).Count(&resp.CriticalInsights).Error; err != nil {
		h.Log.Error("dashboard critical count failed", "error", err)
		utils.InternalServerError(c, "Failed to build dashboard")
		return
	}

	latest, err := latestVitalsPerType(h.DB, userID)
	if err != nil {
		h.Log.Error("dashboard latest vitals failed", "error", err)
		utils.InternalServerError(c, "Failed to build dashboard")
		return
	}
	resp.LatestVitals = make([]gin.H, 0, len(latest))
	for _, v := range latest {
		resp.LatestVitals = append(resp.LatestVitals, vitalResponse(v))
	}

	var recent []models.Insight
	if err := h.DB.Where("user_id = ?", userID).
		Order("created_at desc").Limit(5).Find(&recent).Error; err != nil {
		h.Log.Error("dashboard recent insights failed", "error", err)
		utils.InternalServerError(c, "Failed to build dashboard")
		return
	}
	resp.RecentInsights = make([]DashboardInsight, 0, len(recent))
	for _, ins := range recent {
		var report models.MedicalReport
		if err := h.DB.Select("report_type", "report_date").
			First(&report, "id = ?", ins.ReportID).Error; err != nil {
			h.Log.Warn("dashboard report lookup failed", "reportId", ins.ReportID, "error", err)
		}
		resp.RecentInsights = append(resp.RecentInsights, DashboardInsight{
			Insight:    ins,
			ReportType: report.ReportType,
			ReportDate: report.ReportDate,
		})
	}

	utils.Success(c, "Dashboard fetched successfully", resp)
}
