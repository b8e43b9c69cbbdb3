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

// QuizHandler handles quiz authoring and browsing endpoints.
type QuizHandler struct {
	quizService *service.QuizService
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

// Create godoc
// POST /v1/quiz/create
// Creates a quiz with its full question/choice tree.
func (h *QuizHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, response.CodeUnauthorized)
		return
	}

	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, response.CodeValidationFailed, fields)
		return
	}

	quiz, err := h.quizService.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		var se *service.StructureError
		if errors.As(err, &se) {
			response.FailWithFields(c, response.CodeValidationFailed, se.Fields)
			return
		}
		response.Fail(c, response.CodeDBRunFailed)
		return
	}

	response.OK(c, http.StatusCreated, &model.CreateQuizResponse{
		QuizID:                quiz.ID,
		UserID:                quiz.UserID,
		Title:                 quiz.Title,
		Description:           quiz.Description,
		SelectedQuestions:     quiz.SelectedQuestions,
		IsRandomizedQuestions: quiz.IsRandomizedQuestions,
		IsRandomizedChoices:   quiz.IsRandomizedChoices,
		Questions:             quiz.Questions,
	})
}

// Update godoc
// POST /v1/quiz/update
// Reconciles a quiz's stored content against the submitted payload.
func (h *QuizHandler) Update(c *gin.Context) {
	var req model.UpdateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, response.CodeValidationFailed, fields)
		return
	}

	if err := h.quizService.Update(c.Request.Context(), req); err != nil {
		var se *service.StructureError
		switch {
		case errors.As(err, &se):
			response.FailWithFields(c, response.CodeValidationFailed, se.Fields)
		case errors.Is(err, service.ErrQuizNotFound):
			response.Fail(c, response.CodeQuizNotFound)
		case errors.Is(err, service.ErrInvalidReference):
			response.Fail(c, response.CodeInvalidReference)
		default:
			response.Fail(c, response.CodeDBRunFailed)
		}
		return
	}

	response.OK(c, http.StatusOK, &model.UpdateQuizResponse{})
}

// Delete godoc
// DELETE /v1/quiz/delete/:quiz_id
// Removes a quiz the caller owns. Blocked while incomplete sessions exist.
func (h *QuizHandler) Delete(c *gin.Context) {
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

	if err := h.quizService.Delete(c.Request.Context(), quizID, claims.UserID); err != nil {
		switch {
		case errors.Is(err, service.ErrQuizNotFound):
			response.Fail(c, response.CodeQuizNotFound)
		case errors.Is(err, service.ErrQuizHasActiveSessions):
			response.Fail(c, response.CodeQuizHasActiveSessions)
		default:
			response.Fail(c, response.CodeDBRunFailed)
		}
		return
	}

	response.OK(c, http.StatusOK, &model.DeleteQuizResponse{})
}

// List godoc
// GET /v1/quiz/list/:page/:page_size
// Returns one newest-first page of quizzes.
func (h *QuizHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, response.CodeUnauthorized)
		return
	}

	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		response.FailWithFields(c, response.CodeValidationFailed, map[string]string{"page": "must be an integer"})
		return
	}
	pageSize, err := strconv.Atoi(c.Param("page_size"))
	if err != nil {
		response.FailWithFields(c, response.CodeValidationFailed, map[string]string{"page_size": "must be an integer"})
		return
	}

	resp, err := h.quizService.List(c.Request.Context(), claims, page, pageSize)
	if err != nil {
		response.Fail(c, response.CodeDBRunFailed)
		return
	}

	response.OK(c, http.StatusOK, resp)
}

// Detail godoc
// GET /v1/quiz/:quiz_id?page=
// Paginates one quiz's questions. Correctness flags are admin-only.
func (h *QuizHandler) Detail(c *gin.Context) {
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
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		response.FailWithFields(c, response.CodeValidationFailed, map[string]string{"page": "must be an integer"})
		return
	}

	resp, err := h.quizService.Detail(c.Request.Context(), claims, quizID, page)
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

	response.OK(c, http.StatusOK, resp)
}
