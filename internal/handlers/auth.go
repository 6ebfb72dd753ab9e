package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"sehatlog-server/internal/config"
	"sehatlog-server/internal/middleware"
	"sehatlog-server/internal/models"
	"sehatlog-server/internal/pkg/logger"
	"sehatlog-server/internal/utils"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	DB  *gorm.DB
	Cfg *config.Config
	Log *logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, log *logger.Logger) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg, Log: log.With("handler", "auth")}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Language string `json:"language" binding:"omitempty,oneof=en ur"`
}

// AuthResponse carries the token pair plus the sanitized user.
type AuthResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Register handles user registration and returns a token pair.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	language := models.LanguageEnglish
	if req.Language == string(models.LanguageUrdu) {
		language = models.LanguageUrdu
	}

	user := models.User{
		FullName: req.FullName,
		Email:    req.Email,
		Status:   models.UserStatusActive,
		Preferences: models.Preferences{
			Language:      language,
			Notifications: true,
			Theme:         "system",
		},
	}
	if err := user.SetPassword(req.Password); err != nil {
		h.Log.Error("password hash failed", "error", err)
		utils.InternalServerError(c, "Failed to create user")
		return
	}
	// The unique index on email is the source of truth, so concurrent
	// registrations cannot race a separate existence check.
	if err := h.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.BadRequest(c, "A user with this email already exists")
			return
		}
		h.Log.Error("user create failed", "error", err)
		utils.InternalServerError(c, "Failed to create user")
		return
	}

	resp, err := h.issueTokens(&user)
	if err != nil {
		h.Log.Error("token issue failed", "error", err, "userId", user.ID)
		utils.InternalServerError(c, "Failed to generate tokens")
		return
	}
	utils.Created(c, "User registered successfully", resp)
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Unauthorized(c, "Invalid email or password")
		} else {
			h.Log.Error("login lookup failed", "error", err)
			utils.InternalServerError(c, "Database error")
		}
		return
	}

	if !user.IsActive() || !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	resp, err := h.issueTokens(&user)
	if err != nil {
		h.Log.Error("token issue failed", "error", err, "userId", user.ID)
		utils.InternalServerError(c, "Failed to generate tokens")
		return
	}
	utils.Success(c, "Login successful", resp)
}

func (h *AuthHandler) issueTokens(user *models.User) (*AuthResponse, error) {
	accessToken, refreshTokenString, err := utils.GenerateTokens(user, h.Cfg)
	if err != nil {
		return nil, err
	}
	refreshToken := models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshTokenString,
		ExpiresAt: time.Now().Add(time.Duration(h.Cfg.JWTRefreshExpirationHours) * time.Hour),
		IsRevoked: false,
	}
	if err := h.DB.Create(&refreshToken).Error; err != nil {
		return nil, err
	}
	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenString,
		User:         user.Sanitize(),
	}, nil
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken rotates the refresh token and issues a new pair.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	claims, err := utils.ValidateToken(req.RefreshToken, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token")
		return
	}

	var storedToken models.RefreshToken
	if err := h.DB.Where("token = ? AND user_id = ?",
		req.RefreshToken, claims.UserID).First(&storedToken).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Unauthorized(c, "Refresh token not found")
		} else {
			h.Log.Error("refresh token lookup failed", "error", err)
			utils.InternalServerError(c, "Database error")
		}
		return
	}
	if !storedToken.Usable(time.Now()) {
		utils.Unauthorized(c, "Refresh token expired or revoked")
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		utils.Unauthorized(c, "User not found for token")
		return
	}
	if !user.IsActive() {
		utils.Unauthorized(c, "Account is no longer active")
		return
	}

	// Rotation: revoke the presented token before issuing a new pair.
	storedToken.IsRevoked = true
	if err := h.DB.Save(&storedToken).Error; err != nil {
		h.Log.Error("refresh token revoke failed", "error", err)
		utils.InternalServerError(c, "Failed to rotate token")
		return
	}

	resp, err := h.issueTokens(&user)
	if err != nil {
		h.Log.Error("token issue failed", "error", err, "userId", user.ID)
		utils.InternalServerError(c, "Failed to generate tokens")
		return
	}
	utils.Success(c, "Access token refreshed successfully", resp)
}

// LogoutRequest represents the request body for user logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Logout revokes the presented refresh token.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)

	var storedToken models.RefreshToken
	err := h.DB.Where("token = ? AND user_id = ? AND is_revoked = ?", req.RefreshToken, userID, false).
		First(&storedToken).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// Already invalid; logout is idempotent.
			utils.Success(c, "Logout successful", nil)
		} else {
			h.Log.Error("logout lookup failed", "error", err)
			utils.InternalServerError(c, "Database error")
		}
		return
	}

	storedToken.IsRevoked = true
	storedToken.ExpiresAt = time.Now()
	if err := h.DB.Save(&storedToken).Error; err != nil {
		h.Log.Error("logout revoke failed", "error", err)
		utils.InternalServerError(c, "Failed to revoke refresh token")
		return
	}
	utils.Success(c, "Logout successful", nil)
}
