package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quizforge/quizforge-backend/internal/config"
	"github.com/quizforge/quizforge-backend/internal/handler"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/router"
	"github.com/quizforge/quizforge-backend/internal/service"
	"github.com/quizforge/quizforge-backend/internal/storetest"
	"github.com/quizforge/quizforge-backend/internal/validator"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	validator.Setup()

	cfg := &config.Config{
		GinMode:    gin.TestMode,
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
	}

	users := storetest.NewUsers()
	quizzes := storetest.NewQuizzes()
	sessions := storetest.NewSessions(quizzes)

	authService := service.NewAuthService(cfg, users, zerolog.Nop())
	quizService := service.NewQuizService(quizzes, zerolog.Nop())
	sessionService := service.NewSessionService(quizzes, sessions, nil, zerolog.Nop())

	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Quiz:    handler.NewQuizHandler(quizService),
		Session: handler.NewSessionHandler(sessionService),
	}
	return router.SetupRouter(authService, nil, handlers, cfg)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func register(t *testing.T, r *gin.Engine, username string, admin bool) string {
	t.Helper()
	w, _ := doJSON(t, r, http.MethodPost, "/v1/auth/register", "", gin.H{
		"username": username, "password": "password", "is_admin": admin,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := doJSON(t, r, http.MethodPost, "/v1/auth/login", "", gin.H{
		"username": username, "password": "password",
	})
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestQuizTakingFlow(t *testing.T) {
	r := newTestRouter(t)

	adminToken := register(t, r, "admin", true)
	takerToken := register(t, r, "taker", false)

	// Admin authors a two-question quiz.
	w, body := doJSON(t, r, http.MethodPost, "/v1/quiz/create", adminToken, model.CreateQuizRequest{
		Title: "Capitals",
		Questions: []model.QuestionSpec{
			{Text: "Capital of France?", Choices: []model.ChoiceSpec{
				{Text: "Paris", IsCorrect: true}, {Text: "Lyon"},
			}},
			{Text: "Capital of Spain?", Choices: []model.ChoiceSpec{
				{Text: "Seville"}, {Text: "Madrid", IsCorrect: true},
			}},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, true, body["success"])
	quizID := int64(body["quiz_id"].(float64))

	// The taker browses the quiz without seeing correctness.
	w, body = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/quiz/%d?page=1", quizID), takerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	questions := body["questions"].([]any)
	require.Len(t, questions, 2)
	for _, q := range questions {
		for _, c := range q.(map[string]any)["choices"].([]any) {
			require.NotContains(t, c.(map[string]any), "is_correct")
		}
	}

	// Start a session and answer both questions correctly.
	w, body = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/quiz/%d/start", quizID), takerToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	sessionID := body["session_id"].(string)
	require.NotEmpty(t, sessionID)

	// Starting again resumes the open session with 200 instead of 201.
	w, body = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/quiz/%d/start", quizID), takerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, sessionID, body["session_id"])

	sessionQuestions := body["questions"].([]any)
	require.Len(t, sessionQuestions, 2)
	for _, q := range sessionQuestions {
		qm := q.(map[string]any)
		questionID := int64(qm["question_id"].(float64))
		var choiceID int64
		for _, c := range qm["choices"].([]any) {
			cm := c.(map[string]any)
			if cm["text"] == "Paris" || cm["text"] == "Madrid" {
				choiceID = int64(cm["choice_id"].(float64))
			}
		}
		require.NotZero(t, choiceID)

		w, _ = doJSON(t, r, http.MethodPost, "/v1/quiz/session/answer", takerToken, gin.H{
			"session_id": sessionID, "question_id": questionID, "choice_id": choiceID,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	// Submit and check the grade.
	w, body = doJSON(t, r, http.MethodPost, "/v1/quiz/session/submit", takerToken, gin.H{
		"session_id": sessionID, "answers": []any{},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(100), body["score"])
	require.Equal(t, float64(2), body["correct_answers"])

	// A second submit conflicts.
	w, body = doJSON(t, r, http.MethodPost, "/v1/quiz/session/submit", takerToken, gin.H{
		"session_id": sessionID, "answers": []any{},
	})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "SESSION_COMPLETED", body["desc"])
}

func TestAuthAndRoleGuards(t *testing.T) {
	r := newTestRouter(t)

	takerToken := register(t, r, "taker", false)

	// No token.
	w, body := doJSON(t, r, http.MethodGet, "/v1/quiz/1", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHORIZED", body["desc"])

	// Authenticated but not admin.
	w, body = doJSON(t, r, http.MethodPost, "/v1/quiz/create", takerToken, model.CreateQuizRequest{
		Title: "nope",
		Questions: []model.QuestionSpec{
			{Text: "q", Choices: []model.ChoiceSpec{{Text: "a", IsCorrect: true}, {Text: "b"}}},
		},
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "NOT_ADMIN", body["desc"])

	// Duplicate registration.
	w, body = doJSON(t, r, http.MethodPost, "/v1/auth/register", "", gin.H{
		"username": "taker", "password": "password",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "USER_ALREADY_EXISTS", body["desc"])

	// Malformed credentials fail binding.
	w, body = doJSON(t, r, http.MethodPost, "/v1/auth/login", "", gin.H{"username": "taker"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_FAILED", body["desc"])
	require.Contains(t, body, "fields")
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)

	w, body := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", body["status"])
	require.NotEmpty(t, body["started_at"])
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
