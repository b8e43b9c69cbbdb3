package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/response"
	"github.com/quizforge/quizforge-backend/internal/service"
	"github.com/quizforge/quizforge-backend/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register godoc
// POST /v1/auth/register
// Creates an account. No token is issued; the client logs in afterwards.
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, response.CodeValidationFailed, fields)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			response.Fail(c, response.CodeUserAlreadyExists)
			return
		}
		response.Fail(c, response.CodeDBRunFailed)
		return
	}

	response.OK(c, http.StatusCreated, &model.RegisterResponse{
		Username:  user.Username,
		CreatedAt: &user.CreatedAt,
	})
}

// Login godoc
// POST /v1/auth/login
// Verifies credentials and returns a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, response.CodeValidationFailed, fields)
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			response.Fail(c, response.CodeUserNotExists)
		case errors.Is(err, service.ErrInvalidPassword):
			response.Fail(c, response.CodeInvalidPassword)
		default:
			response.Fail(c, response.CodeDBRunFailed)
		}
		return
	}

	response.OK(c, http.StatusOK, &model.LoginResponse{
		Username:    user.Username,
		AccessToken: token,
	})
}
