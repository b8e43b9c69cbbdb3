package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quizforge/quizforge-backend/internal/middleware"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/response"
	"github.com/quizforge/quizforge-backend/internal/service"
	"github.com/quizforge/quizforge-backend/internal/validator"
)

// SessionHandler handles quiz-taking endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Start godoc
// POST /v1/quiz/:quiz_id/start
// Opens a session on a quiz, or resumes the caller's incomplete one.
func (h *SessionHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, response.CodeUnauthorized)
		return
	}

	quizID, err := strconv.ParseInt(c.Param("quiz_id"), 10, 64)
	if err != nil {
		response.FailWithFields(c, response.CodeValidationFailed, map[string]string{"quiz_id": "must be an integer"})
		return
	}

	resp, created, err := h.sessionService.Start(c.Request.Context(), claims.UserID, quizID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuizNotFound):
			response.Fail(c, response.CodeQuizNotFound)
		case errors.Is(err, service.ErrQuestionsNotFound):
			response.Fail(c, response.CodeQuestionsNotFound)
		default:
			response.Fail(c, response.CodeDBRunFailed)
		}
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.OK(c, status, resp)
}

// Get godoc
// GET /v1/quiz/session/:session_id
// Returns the caller's frozen session snapshot.
func (h *SessionHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, response.CodeUnauthorized)
		return
	}

	resp, err := h.sessionService.Get(c.Request.Context(), claims.UserID, c.Param("session_id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, response.CodeSessionNotFound)
			return
		}
		response.Fail(c, response.CodeDBRunFailed)
		return
	}

	response.OK(c, http.StatusOK, resp)
}

// SaveAnswer godoc
// POST /v1/quiz/session/answer
// Records one answer on the caller's open session.
func (h *SessionHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, response.CodeUnauthorized)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, response.CodeValidationFailed, fields)
		return
	}

	if err := h.sessionService.SaveAnswer(c.Request.Context(), claims.UserID, req); err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, response.CodeSessionNotFound)
		case errors.Is(err, service.ErrSessionCompleted):
			response.Fail(c, response.CodeSessionCompleted)
		case errors.Is(err, service.ErrInvalidAnswer):
			response.Fail(c, response.CodeInvalidReference)
		default:
			response.Fail(c, response.CodeDBRunFailed)
		}
		return
	}

	response.OK(c, http.StatusOK, &model.SaveAnswerResponse{
		SessionID:  req.SessionID,
		QuestionID: req.QuestionID,
		ChoiceID:   req.ChoiceID,
	})
}

// Submit godoc
// POST /v1/quiz/session/submit
// Grades and completes the caller's session.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, response.CodeUnauthorized)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, response.CodeValidationFailed, fields)
		return
	}

	resp, err := h.sessionService.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, response.CodeSessionNotFound)
		case errors.Is(err, service.ErrSessionCompleted):
			response.Fail(c, response.CodeSessionCompleted)
		default:
			response.Fail(c, response.CodeDBRunFailed)
		}
		return
	}

	response.OK(c, http.StatusOK, resp)
}
