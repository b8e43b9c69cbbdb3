package model

import (
	"time"

	"github.com/quizforge/quizforge-backend/internal/response"
)

// QuizSession is one user's attempt at a quiz. Its question/choice subset
// and ordering are frozen at start time and never change afterwards,
// regardless of later quiz edits.
type QuizSession struct {
	ID          string     `json:"session_id"`
	QuizID      int64      `json:"quiz_id"`
	UserID      int64      `json:"user_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	IsCompleted bool       `json:"is_completed"`
	Score       *float64   `json:"score,omitempty"`
}

// QuestionSession is one frozen question slot of a session.
type QuestionSession struct {
	ID               int64  `json:"id"`
	SessionID        string `json:"session_id"`
	QuestionID       int64  `json:"question_id"`
	Order            int    `json:"question_order"`
	SelectedChoiceID *int64 `json:"selected_choice_id,omitempty"`
	IsCorrect        *bool  `json:"is_correct,omitempty"`
}

// ChoiceSession records the frozen per-attempt choice ordering.
type ChoiceSession struct {
	ID                int64 `json:"id"`
	QuestionSessionID int64 `json:"question_session_id"`
	ChoiceID          int64 `json:"choice_id"`
	Order             int   `json:"choice_order"`
}

// ─── Snapshot write model ──────────────────────────────────────────────────

// SnapshotQuestion is one question in its final frozen order, with its
// choice ids in their final frozen order.
type SnapshotQuestion struct {
	QuestionID int64
	ChoiceIDs  []int64
}

// QuizSnapshot is the complete session snapshot persisted in one
// transaction at start time.
type QuizSnapshot struct {
	Session   QuizSession
	Questions []SnapshotQuestion
}

// ─── Read model ────────────────────────────────────────────────────────────

// SessionChoice is a frozen choice joined with its current text and
// correctness. IsCorrect is for the grader only and never serialized here.
type SessionChoice struct {
	ChoiceID  int64
	Text      string
	IsCorrect bool
}

// SessionQuestion is a frozen question slot joined with the question text
// and the frozen, ordered choices.
type SessionQuestion struct {
	QuestionSessionID int64
	QuestionID        int64
	Text              string
	SelectedChoiceID  *int64
	Choices           []SessionChoice
}

// SessionDetail is the full frozen snapshot of a session plus quiz metadata.
type SessionDetail struct {
	Session         QuizSession
	QuizTitle       string
	QuizDescription string
	Questions       []SessionQuestion
}

// ─── Completion write model ────────────────────────────────────────────────

// QuestionResult is the graded outcome of one frozen question slot.
type QuestionResult struct {
	QuestionSessionID int64
	SelectedChoiceID  *int64
	IsCorrect         bool
}

// SessionResultUpdate carries everything the submit transaction persists.
type SessionResultUpdate struct {
	SessionID   string
	UserID      int64
	Score       float64
	CompletedAt time.Time
	Questions   []QuestionResult
}

// ─── Requests ──────────────────────────────────────────────────────────────

// SaveAnswerRequest records one answer on an open session.
type SaveAnswerRequest struct {
	SessionID  string `json:"session_id" binding:"required"`
	QuestionID int64  `json:"question_id" binding:"required"`
	ChoiceID   int64  `json:"choice_id" binding:"required"`
}

// SubmitAnswer is one last-moment answer in a submit payload.
type SubmitAnswer struct {
	QuestionID int64 `json:"question_id" binding:"required"`
	ChoiceID   int64 `json:"choice_id" binding:"required"`
}

// SubmitRequest submits a session for scoring, merging any unsaved answers.
type SubmitRequest struct {
	SessionID string         `json:"session_id" binding:"required"`
	Answers   []SubmitAnswer `json:"answers" binding:"dive"`
}

// ─── Responses ─────────────────────────────────────────────────────────────

// SessionChoiceView is the wire shape of a frozen choice (no correctness).
type SessionChoiceView struct {
	ChoiceID int64  `json:"choice_id"`
	Text     string `json:"text"`
}

// SessionQuestionView is the wire shape of a frozen question slot.
type SessionQuestionView struct {
	QuestionID       int64               `json:"question_id"`
	QuestionText     string              `json:"question_text"`
	Choices          []SessionChoiceView `json:"choices"`
	SelectedChoiceID *int64              `json:"selected_choice_id,omitempty"`
}

// SessionResponse is the snapshot returned by start and session-state.
type SessionResponse struct {
	response.Result
	QuizID      int64                 `json:"quiz_id,omitempty"`
	SessionID   string                `json:"session_id,omitempty"`
	Title       string                `json:"title,omitempty"`
	Description string                `json:"description,omitempty"`
	Questions   []SessionQuestionView `json:"questions"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	IsCompleted bool                  `json:"is_completed"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Score       *float64              `json:"score,omitempty"`
}

// SaveAnswerResponse echoes the recorded answer.
type SaveAnswerResponse struct {
	response.Result
	SessionID  string `json:"session_id,omitempty"`
	QuestionID int64  `json:"question_id,omitempty"`
	ChoiceID   int64  `json:"choice_id,omitempty"`
}

// ResultQuestionView is the per-question breakdown returned by submit.
type ResultQuestionView struct {
	QuestionID         int64  `json:"question_id"`
	QuestionText       string `json:"question_text"`
	SelectedChoiceID   *int64 `json:"selected_choice_id,omitempty"`
	SelectedChoiceText string `json:"selected_choice_text,omitempty"`
	CorrectChoiceID    int64  `json:"correct_choice_id"`
	CorrectChoiceText  string `json:"correct_choice_text"`
	IsCorrect          bool   `json:"is_correct"`
}

// SubmitResponse is the scored outcome of a submitted session.
type SubmitResponse struct {
	response.Result
	QuizID         int64                `json:"quiz_id,omitempty"`
	SessionID      string               `json:"session_id,omitempty"`
	Title          string               `json:"title,omitempty"`
	TotalQuestions int                  `json:"total_questions"`
	CorrectAnswers int                  `json:"correct_answers"`
	Score          float64              `json:"score"`
	StartedAt      *time.Time           `json:"started_at,omitempty"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
	Questions      []ResultQuestionView `json:"questions"`
}
