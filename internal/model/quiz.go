package model

import (
	"time"

	"github.com/quizforge/quizforge-backend/internal/response"
)

// Quiz is an admin-authored set of questions with sampling and
// randomization settings.
type Quiz struct {
	ID                    int64      `json:"quiz_id"`
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	UserID                int64      `json:"user_id"`
	SelectedQuestions     int        `json:"selected_questions"`
	IsRandomizedQuestions bool       `json:"is_randomized_questions"`
	IsRandomizedChoices   bool       `json:"is_randomized_choices"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty"`
	Questions             []Question `json:"questions,omitempty"`
}

// Question belongs to a quiz and owns its choices.
type Question struct {
	ID      int64    `json:"id"`
	QuizID  int64    `json:"-"`
	Text    string   `json:"question_text"`
	Choices []Choice `json:"choices"`
}

// Choice is one answer option of a question. IsCorrect is a pointer so the
// serialization layer can strip it for non-admin readers.
type Choice struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"-"`
	Text       string `json:"text"`
	IsCorrect  *bool  `json:"is_correct,omitempty"`
}

// Correct reports whether the choice is marked correct.
func (c Choice) Correct() bool {
	return c.IsCorrect != nil && *c.IsCorrect
}

// ─── Requests ──────────────────────────────────────────────────────────────

// ChoiceSpec is one choice in a create/update payload. ID is only
// meaningful on update (nil means insert as new).
type ChoiceSpec struct {
	ID        *int64 `json:"id"`
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionSpec is one question in a create/update payload. ID is only
// meaningful on update (nil means insert as new).
type QuestionSpec struct {
	ID      *int64       `json:"id"`
	Text    string       `json:"question_text" binding:"required"`
	Choices []ChoiceSpec `json:"choices" binding:"required,dive"`
}

// CreateQuizRequest is the payload for creating a quiz with its full
// question/choice tree.
type CreateQuizRequest struct {
	Title                 string         `json:"title" binding:"required,max=255"`
	Description           string         `json:"description"`
	SelectedQuestions     int            `json:"selected_questions" binding:"omitempty,min=1"`
	IsRandomizedQuestions bool           `json:"is_randomized_questions"`
	IsRandomizedChoices   bool           `json:"is_randomized_choices"`
	Questions             []QuestionSpec `json:"questions" binding:"required,dive"`
}

// UpdateQuizRequest reconciles a quiz's nested questions/choices: specs
// carrying an id update the existing row, specs without one insert, and
// existing rows not referenced are deleted.
type UpdateQuizRequest struct {
	ID                    int64          `json:"id" binding:"required"`
	Title                 string         `json:"title" binding:"required,max=255"`
	Description           string         `json:"description"`
	SelectedQuestions     int            `json:"selected_questions" binding:"omitempty,min=1"`
	IsRandomizedQuestions bool           `json:"is_randomized_questions"`
	IsRandomizedChoices   bool           `json:"is_randomized_choices"`
	Questions             []QuestionSpec `json:"questions" binding:"dive"`
}

// ─── Reconciliation plan ───────────────────────────────────────────────────

// ChoiceUpdate / ChoiceInsert / QuestionUpdate / QuestionInsert together
// form the three-way diff applied in one transaction by the quiz store.
type ChoiceUpdate struct {
	ID        int64
	Text      string
	IsCorrect bool
}

type ChoiceInsert struct {
	Text      string
	IsCorrect bool
}

type QuestionUpdate struct {
	ID              int64
	Text            string
	UpdateChoices   []ChoiceUpdate
	InsertChoices   []ChoiceInsert
	DeleteChoiceIDs []int64
}

type QuestionInsert struct {
	Text    string
	Choices []ChoiceInsert
}

// QuizUpdatePlan is the precomputed reconciliation applied atomically.
type QuizUpdatePlan struct {
	QuizID                int64
	Title                 string
	Description           string
	SelectedQuestions     int
	IsRandomizedQuestions bool
	IsRandomizedChoices   bool
	UpdateQuestions       []QuestionUpdate
	InsertQuestions       []QuestionInsert
	DeleteQuestionIDs     []int64
}

// ─── List / detail views ───────────────────────────────────────────────────

// AttemptState summarizes a user's sessions against one quiz.
type AttemptState struct {
	HasOpen      bool
	HasCompleted bool
}

// Status derives the per-user quiz status shown in the list view.
func (s AttemptState) Status() string {
	switch {
	case s.HasOpen:
		return "in_progress"
	case s.HasCompleted:
		return "completed"
	default:
		return "not_attempted"
	}
}

// QuizListRow is one row of the paginated quiz list as read from storage.
type QuizListRow struct {
	Quiz
	CreatedBy      string `json:"-"`
	TotalQuestions int    `json:"total_questions"`
}

// QuizListItem is the wire shape of one list entry. CreatedBy is
// admin-only; Status is non-admin-only.
type QuizListItem struct {
	QuizID                int64      `json:"quiz_id"`
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	TotalQuestions        int        `json:"total_questions"`
	SelectedQuestions     int        `json:"selected_questions"`
	IsRandomizedQuestions bool       `json:"is_randomized_questions"`
	IsRandomizedChoices   bool       `json:"is_randomized_choices"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty"`
	CreatedBy             string     `json:"created_by,omitempty"`
	Status                string     `json:"status,omitempty"`
}

// ─── Responses ─────────────────────────────────────────────────────────────

// CreateQuizResponse echoes the fully materialized quiz with assigned ids.
type CreateQuizResponse struct {
	response.Result
	QuizID                int64      `json:"quiz_id,omitempty"`
	UserID                int64      `json:"user_id,omitempty"`
	Title                 string     `json:"title,omitempty"`
	Description           string     `json:"description,omitempty"`
	SelectedQuestions     int        `json:"selected_questions,omitempty"`
	IsRandomizedQuestions bool       `json:"is_randomized_questions"`
	IsRandomizedChoices   bool       `json:"is_randomized_choices"`
	Questions             []Question `json:"questions,omitempty"`
}

// UpdateQuizResponse and DeleteQuizResponse carry only the envelope.
type UpdateQuizResponse struct {
	response.Result
}

type DeleteQuizResponse struct {
	response.Result
}

// QuizListResponse is the paginated list view.
type QuizListResponse struct {
	response.Result
	TotalQuizzes int64          `json:"total_quizzes"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	TotalPages   int            `json:"total_pages"`
	Quizzes      []QuizListItem `json:"quizzes"`
}

// QuizDetailResponse paginates one quiz's questions.
type QuizDetailResponse struct {
	response.Result
	QuizID                int64      `json:"quiz_id,omitempty"`
	Title                 string     `json:"title,omitempty"`
	Description           string     `json:"description,omitempty"`
	IsRandomizedQuestions bool       `json:"is_randomized_questions"`
	IsRandomizedChoices   bool       `json:"is_randomized_choices"`
	SelectedQuestions     int        `json:"selected_questions,omitempty"`
	TotalQuestions        int        `json:"total_questions"`
	CreatedAt             *time.Time `json:"created_at,omitempty"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty"`
	CreatedBy             string     `json:"created_by,omitempty"`
	CurrentPage           int        `json:"current_page"`
	TotalPages            int        `json:"total_pages"`
	QuestionsPerPage      int        `json:"questions_per_page"`
	Questions             []Question `json:"questions"`
}
