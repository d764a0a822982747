package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marrowai-server/internal/config"
	"marrowai-server/internal/models"
	"marrowai-server/internal/store"
	"marrowai-server/internal/utils"
)

const refreshCookie = "refresh_token"

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	users  UserStore
	cfg    *config.Config
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users UserStore, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, cfg: cfg, logger: logger}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName" binding:"max=200"`
}

// Register handles user registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user := models.User{
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		DisplayName: strings.TrimSpace(req.DisplayName),
	}
	if err := user.SetPassword(req.Password); err != nil {
		h.logger.Error("Failed to hash password", zap.Error(err))
		utils.InternalServerError(c, "Failed to create user")
		return
	}

	if err := h.users.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			utils.BadRequest(c, "User with this email already exists")
			return
		}
		h.logger.Error("Failed to create user", zap.Error(err))
		utils.InternalServerError(c, "Failed to create user")
		return
	}

	utils.Created(c, "User registered successfully", user.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.users.UserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Unauthorized(c, "Invalid email or password")
			return
		}
		h.logger.Error("Failed to load user", zap.Error(err))
		utils.InternalServerError(c, "Login failed")
		return
	}
	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	access, refresh, ok := h.issueTokens(c, user)
	if !ok {
		return
	}
	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user.Sanitize(),
	})
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshTokenResponse represents the response body for successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken exchanges a usable refresh token for a new token pair. The
// presented token is revoked; of two concurrent refreshes with the same
// token only one is issued a new pair.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, ok := h.presentedRefreshToken(c)
	if !ok {
		return
	}

	claims, err := utils.ValidateToken(token, h.cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.users.UsableRefreshToken(ctx, token, claims.UserID, time.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
			return
		}
		h.logger.Error("Failed to check refresh token", zap.Error(err))
		utils.InternalServerError(c, "Token refresh failed")
		return
	}

	user, err := h.users.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Unauthorized(c, "User no longer exists")
			return
		}
		h.logger.Error("Failed to load user for refresh", zap.Error(err))
		utils.InternalServerError(c, "Token refresh failed")
		return
	}

	if err := h.users.ClaimRefreshToken(ctx, token); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
			return
		}
		h.logger.Error("Failed to revoke rotated refresh token", zap.Error(err))
		utils.InternalServerError(c, "Token refresh failed")
		return
	}

	access, refresh, ok := h.issueTokens(c, user)
	if !ok {
		return
	}
	utils.Success(c, "Access token refreshed successfully", RefreshTokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

// Logout revokes the presented refresh token and clears the cookie. Unknown
// tokens are accepted.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := h.presentedRefreshToken(c)
	if !ok {
		return
	}
	if err := h.users.RevokeRefreshToken(c.Request.Context(), token); err != nil {
		h.logger.Error("Failed to revoke refresh token", zap.Error(err))
		utils.InternalServerError(c, "Logout failed")
		return
	}
	h.setRefreshCookie(c, "", -1)
	utils.Success(c, "Logout successful", nil)
}

// GetProfile handles fetching the currently authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	user, err := h.users.UserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.NotFound(c, "User profile not found")
			return
		}
		h.logger.Error("Failed to load profile", zap.String("user_id", userID), zap.Error(err))
		utils.InternalServerError(c, "Failed to load profile")
		return
	}

	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// presentedRefreshToken reads the cookie, falling back to the JSON body.
func (h *AuthHandler) presentedRefreshToken(c *gin.Context) (string, bool) {
	if token, err := c.Cookie(refreshCookie); err == nil && token != "" {
		return token, true
	}
	var req RefreshTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return "", false
	}
	return req.RefreshToken, true
}

func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User) (string, string, bool) {
	access, refresh, err := utils.GenerateTokens(user, h.cfg)
	if err != nil {
		h.logger.Error("Failed to generate tokens", zap.Error(err))
		utils.InternalServerError(c, "Failed to generate tokens")
		return "", "", false
	}

	ttl := time.Duration(h.cfg.JWTRefreshExpirationHours) * time.Hour
	record := models.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := h.users.SaveRefreshToken(c.Request.Context(), &record); err != nil {
		h.logger.Error("Failed to store refresh token", zap.Error(err))
		utils.InternalServerError(c, "Failed to generate tokens")
		return "", "", false
	}

	h.setRefreshCookie(c, refresh, int(ttl/time.Second))
	return access, refresh, true
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookie, value, maxAge, "/api/auth", "", !h.cfg.IsDev(), true)
}
