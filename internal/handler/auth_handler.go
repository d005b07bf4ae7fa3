package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yegara-dev/community-api/internal/middleware"
	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/service"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
	"github.com/yegara-dev/community-api/pkg/config"
	"github.com/yegara-dev/community-api/pkg/response"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth      *service.AuthService
	cookieTTL int
	secure    bool
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *service.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		cookieTTL: int(cfg.JWT.CookieTTL.Seconds()),
		secure:    cfg.Env == config.EnvProduction,
	}
}

// Register godoc
// @Summary Register a new account
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setTokenCookie(c, result.Token)
	response.Created(c, result)
}

// Login godoc
// @Summary Authenticate with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setTokenCookie(c, result.Token)
	response.JSON(c, http.StatusOK, result)
}

// Logout godoc
// @Summary Clear the session cookie
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/logout [get]
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(middleware.TokenCookieName, "", -1, "/", "", h.secure, true)
	response.Message(c, http.StatusOK, nil, "logged out")
}

// Me godoc
// @Summary Current authenticated user
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// Activate godoc
// @Summary Activate a provisioned account by setting a new password
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.ActivateRequest true "Activation payload"
// @Success 200 {object} response.Envelope
// @Router /auth/activate [put]
func (h *AuthHandler) Activate(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.auth.Activate(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setTokenCookie(c, result.Token)
	response.JSON(c, http.StatusOK, result)
}

// UpdateDetails godoc
// @Summary Update profile details
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.UpdateDetailsRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /auth/updatedetails [put]
func (h *AuthHandler) UpdateDetails(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.UpdateDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	user, err := h.auth.UpdateDetails(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// UpdatePassword godoc
// @Summary Change password while logged in
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.UpdatePasswordRequest true "Password payload"
// @Success 200 {object} response.Envelope
// @Router /auth/updatepassword [put]
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.auth.UpdatePassword(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setTokenCookie(c, result.Token)
	response.JSON(c, http.StatusOK, result)
}

// ForgotPassword godoc
// @Summary Request a password reset mail
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.ForgotPasswordRequest true "Email payload"
// @Success 200 {object} response.Envelope
// @Router /auth/forgotpassword [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.auth.ForgotPassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, nil, "reset email sent")
}

// ResetPassword godoc
// @Summary Complete a password reset with the mailed token
// @Tags Auth
// @Accept json
// @Produce json
// @Param resettoken path string true "Reset token"
// @Param payload body models.ResetPasswordRequest true "New password payload"
// @Success 200 {object} response.Envelope
// @Router /auth/resetpassword/{resettoken} [put]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.auth.ResetPassword(c.Request.Context(), c.Param("resettoken"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setTokenCookie(c, result.Token)
	response.JSON(c, http.StatusOK, result)
}

func (h *AuthHandler) setTokenCookie(c *gin.Context, token string) {
	if token == "" {
		return
	}
	c.SetCookie(middleware.TokenCookieName, token, h.cookieTTL, "/", "", h.secure, true)
}
