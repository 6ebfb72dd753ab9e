package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"sehatlog-server/internal/middleware"
	"sehatlog-server/internal/models"
	"sehatlog-server/internal/pkg/logger"
	"sehatlog-server/internal/utils"
)

// InsightsHandler handles AI insight reads and feedback.
type InsightsHandler struct {
	DB  *gorm.DB
	Log *logger.Logger
}

// NewInsightsHandler creates a new InsightsHandler.
func NewInsightsHandler(db *gorm.DB, log *logger.Logger) *InsightsHandler {
	return &InsightsHandler{DB: db, Log: log.With("handler", "insights")}
}

// ListInsights returns the caller's insights, newest first.
func (h *InsightsHandler) ListInsights(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	page, limit := parsePagination(c)
	query := h.DB.Model(&models.Insight{}).Where("user_id = ?", userID)
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}
	if reportID := c.Query("reportId"); reportID != "" {
		query = query.Where("report_id = ?", reportID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.Log.Error("insight count failed", "error", err)
		utils.InternalServerError(c, "Failed to fetch insights")
		return
	}

	var insights []models.Insight
	if err := query.Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&insights).Error; err != nil {
		h.Log.Error("insight fetch failed", "error", err)
		utils.InternalServerError(c, "Failed to fetch insights")
		return
	}
	utils.SuccessList(c, "Insights fetched successfully", insights, utils.NewPagination(page, limit, total))
}

// GetInsight returns one owned insight.
func (h *InsightsHandler) GetInsight(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	insight, ok := h.ownedInsight(c, userID)
	if !ok {
		return
	}
	utils.Success(c, "Insight fetched successfully", insight)
}

// MarkRead flags an insight as read.
func (h *InsightsHandler) MarkRead(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	insight, ok := h.ownedInsight(c, userID)
	if !ok {
		return
	}
	if !insight.IsRead {
		now := time.Now()
		insight.IsRead = true
		insight.ReadAt = &now
		if err := h.DB.Save(insight).Error; err != nil {
			h.Log.Error("mark read failed", "error", err, "insightId", insight.ID)
			utils.InternalServerError(c, "Failed to mark insight as read")
			return
		}
	}
	utils.Success(c, "Insight marked as read", insight)
}

// FeedbackRequest represents the request body for insight feedback.
type FeedbackRequest struct {
	Helpful *bool  `json:"helpful" binding:"required"`
	Comment string `json:"comment"`
}

// SubmitFeedback appends user feedback to an insight.
func (h *InsightsHandler) SubmitFeedback(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	insight, ok := h.ownedInsight(c, userID)
	if !ok {
		return
	}

	var req FeedbackRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	insight.Feedback = models.Feedback{Helpful: req.Helpful, Comment: req.Comment}
	if err := h.DB.Save(insight).Error; err != nil {
		h.Log.Error("feedback save failed", "error", err, "insightId", insight.ID)
		utils.InternalServerError(c, "Failed to save feedback")
		return
	}
	utils.Success(c, "Feedback saved", insight)
}

// ownedInsight loads the insight in the URL if the caller owns it.
// Cross-user access reads as not-found.
func (h *InsightsHandler) ownedInsight(c *gin.Context, userID string) (*models.Insight, bool) {
	idStr := c.Param("id")
	if _, err := uuid.Parse(idStr); err != nil {
		utils.BadRequest(c, "Invalid insight ID")
		return nil, false
	}
	var insight models.Insight
	if err := h.DB.First(&insight, "id = ? AND user_id = ?", idStr, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Insight not found")
		} else {
			h.Log.Error("insight lookup failed", "error", err)
			utils.InternalServerError(c, "Database error")
		}
		return nil, false
	}
	return &insight, true
}
