package handlers

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"sehatlog-server/internal/config"
	"sehatlog-server/internal/middleware"
	"sehatlog-server/internal/models"
	"sehatlog-server/internal/pkg/logger"
	"sehatlog-server/internal/services"
	"sehatlog-server/internal/storage"
	"sehatlog-server/internal/utils"
)

// reportsFolder is the object-store prefix for uploaded report files.
const reportsFolder = "reports"

// allowedUploadMimeTypes restricts what users may upload.
var allowedUploadMimeTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// FilesHandler handles report upload, listing, and deletion.
type FilesHandler struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Log      *logger.Logger
	Store    storage.ObjectStore
	Analyzer *services.AnalysisService
}

// NewFilesHandler creates a new FilesHandler.
func NewFilesHandler(db *gorm.DB, cfg *config.Config, store storage.ObjectStore, analyzer *services.AnalysisService, log *logger.Logger) *FilesHandler {
	return &FilesHandler{DB: db, Cfg: cfg, Store: store, Analyzer: analyzer, Log: log.With("handler", "files")}
}

// Upload accepts a multipart request with 1-5 files plus report
// metadata, stores the valid files durably, records the report, and
// schedules analysis after the response is written. Invalid files are
// skipped; siblings in the same request are unaffected.
func (h *FilesHandler) Upload(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequest(c, "Invalid multipart payload", err.Error())
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		utils.BadRequest(c, "At least one file is required")
		return
	}
	if len(fileHeaders) > h.Cfg.Upload.MaxFiles {
		utils.BadRequest(c, fmt.Sprintf("At most %d files may be uploaded at once", h.Cfg.Upload.MaxFiles))
		return
	}

	reportType := models.ReportType(c.PostForm("reportType"))
	if !models.ValidReportType(reportType) {
		utils.BadRequest(c, "Field 'reportType' is required and must be a known report type")
		return
	}
	reportDate, err := parseReportDate(c.PostForm("reportDate"))
	if err != nil {
		utils.BadRequest(c, "Field 'reportDate' is required, expected YYYY-MM-DD")
		return
	}

	log := h.Log.With("userId", userID)
	stored := make([]models.StoredFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		sf, err := h.storeOne(c, userID, fh)
		if err != nil {
			// Per-file failures are non-fatal for the batch.
			log.Warn("skipping file", "name", fh.Filename, "error", err)
			continue
		}
		stored = append(stored, *sf)
	}
	if len(stored) == 0 {
		utils.BadRequest(c, "No valid files in upload: files must be PDF, JPEG, or PNG and at most 10MB")
		return
	}

	report := models.MedicalReport{
		UserID:       userID,
		ReportType:   reportType,
		ReportDate:   reportDate,
		DoctorName:   c.PostForm("doctorName"),
		HospitalName: c.PostForm("hospitalName"),
		Notes:        c.PostForm("notes"),
		Status:       models.ReportStatusUploaded,
	}
	if err := h.DB.Create(&report).Error; err != nil {
		log.Error("report create failed", "error", err)
		utils.InternalServerError(c, "Failed to save report")
		return
	}
	for i := range stored {
		stored[i].ReportID = report.ID
	}
	if err := h.DB.Create(&stored).Error; err != nil {
		log.Error("stored file rows create failed", "error", err)
		utils.InternalServerError(c, "Failed to save report files")
		return
	}
	report.Files = stored

	// Respond before analysis starts; clients poll the report status.
	utils.Created(c, "Report uploaded successfully", gin.H{
		"report":      report,
		"storedFiles": len(stored),
	})

	h.Analyzer.Schedule(&report, stored)
}

// storeOne validates a single uploaded file, spools it to a transient
// location, and moves it to durable storage.
func (h *FilesHandler) storeOne(c *gin.Context, userID string, fh *multipart.FileHeader) (*models.StoredFile, error) {
	mimeType := fh.Header.Get("Content-Type")
	ext, allowed := allowedUploadMimeTypes[mimeType]
	if !allowed {
		return nil, fmt.Errorf("unsupported file type %q", mimeType)
	}
	if fh.Size > h.Cfg.Upload.MaxFileBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", h.Cfg.Upload.MaxFileBytes)
	}

	tmpPath := filepath.Join(os.TempDir(), uuid.New().String()+ext)
	if err := c.SaveUploadedFile(fh, tmpPath); err != nil {
		return nil, fmt.Errorf("failed to spool upload: %w", err)
	}
	defer os.Remove(tmpPath)

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read spooled upload: %w", err)
	}

	key := fmt.Sprintf("%s_%d_%s%s", userID, time.Now().UnixNano(), uuid.New().String()[:8], ext)
	obj, err := h.Store.Store(c.Request.Context(), data, reportsFolder, key)
	if err != nil {
		return nil, fmt.Errorf("storage upload failed: %w", err)
	}

	return &models.StoredFile{
		OriginalName: filepath.Base(fh.Filename),
		StorageKey:   obj.Key,
		URL:          obj.URL,
		Format:       obj.Format,
		SizeBytes:    obj.Size,
		MimeType:     mimeType,
	}, nil
}

// ListReports returns the caller's reports, newest first.
func (h *FilesHandler) ListReports(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	page, limit := parsePagination(c)
	query := h.DB.Model(&models.MedicalReport{}).Where("user_id = ?", userID)
	if s := c.Query("status"); s != "" {
		query = query.Where("status = ?", s)
	}
	if t := c.Query("reportType"); t != "" {
		query = query.Where("report_type = ?", t)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.Log.Error("report count failed", "error", err)
		utils.InternalServerError(c, "Failed to fetch reports")
		return
	}

	var reports []models.MedicalReport
	if err := query.Preload("Files").Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&reports).Error; err != nil {
		h.Log.Error("report fetch failed", "error", err)
		utils.InternalServerError(c, "Failed to fetch reports")
		return
	}
	utils.SuccessList(c, "Reports fetched successfully", reports, utils.NewPagination(page, limit, total))
}

// GetReport returns one owned report with its files.
func (h *FilesHandler) GetReport(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	report, ok := h.ownedReport(c, userID, true)
	if !ok {
		return
	}
	utils.Success(c, "Report fetched successfully", report)
}

// GetDownloadURL returns a short-lived signed URL for one stored file.
func (h *FilesHandler) GetDownloadURL(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	report, ok := h.ownedReport(c, userID, true)
	if !ok {
		return
	}

	fileID := c.Param("fileId")
	for _, f := range report.Files {
		if f.ID == fileID {
			url, err := h.Store.SignedURL(f.StorageKey, 15*time.Minute)
			if err != nil {
				h.Log.Error("signed url failed", "error", err, "key", f.StorageKey)
				utils.InternalServerError(c, "Failed to sign download URL")
				return
			}
			utils.Success(c, "Download URL generated", gin.H{"url": url, "expiresInSeconds": 900})
			return
		}
	}
	utils.NotFound(c, "File not found")
}

// DeleteReport removes a report, its stored objects (best-effort), and
// every linked insight.
func (h *FilesHandler) DeleteReport(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	report, ok := h.ownedReport(c, userID, true)
	if !ok {
		return
	}
	log := h.Log.With("reportId", report.ID, "userId", userID)

	// Best-effort object deletion: a failed delete never blocks the
	// database cascade.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	for _, f := range report.Files {
		if err := h.Store.Delete(ctx, f.StorageKey); err != nil {
			log.Warn("failed to delete stored object", "key", f.StorageKey, "error", err)
		}
	}

	if err := h.DB.Where("report_id = ?", report.ID).Delete(&models.Insight{}).Error; err != nil {
		log.Error("insight cascade failed", "error", err)
		utils.InternalServerError(c, "Failed to delete report")
		return
	}
	if err := h.DB.Where("report_id = ?", report.ID).Delete(&models.StoredFile{}).Error; err != nil {
		log.Error("stored file cascade failed", "error", err)
		utils.InternalServerError(c, "Failed to delete report")
		return
	}
	if err := h.DB.Delete(report).Error; err != nil {
		log.Error("report delete failed", "error", err)
		utils.InternalServerError(c, "Failed to delete report")
		return
	}
	utils.Success(c, "Report deleted", nil)
}

// ownedReport loads the report in the URL if the caller owns it.
func (h *FilesHandler) ownedReport(c *gin.Context, userID string, withFiles bool) (*models.MedicalReport, bool) {
	idStr := c.Param("id")
	if _, err := uuid.Parse(idStr); err != nil {
		utils.BadRequest(c, "Invalid report ID")
		return nil, false
	}
	query := h.DB.Model(&models.MedicalReport{})
	if withFiles {
		query = query.Preload("Files")
	}
	var report models.MedicalReport
	if err := query.First(&report, "id = ? AND user_id = ?", idStr, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Report not found")
		} else {
			h.Log.Error("report lookup failed", "error", err)
			utils.InternalServerError(c, "Database error")
		}
		return nil, false
	}
	return &report, true
}

// parseReportDate accepts YYYY-MM-DD or a full RFC3339 timestamp.
func parseReportDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty report date")
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
