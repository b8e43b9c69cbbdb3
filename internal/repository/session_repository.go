package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizforge/quizforge-backend/internal/model"
)

// SessionRepository handles quiz session data access. Sessions carry a
// frozen snapshot of question and choice order taken at start time, so
// every read joins the snapshot tables back to the live quiz content.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// FindOpen retrieves the user's incomplete session for a quiz, if any.
func (r *SessionRepository) FindOpen(ctx context.Context, quizID, userID int64) (*model.QuizSession, error) {
	s := &model.QuizSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, quiz_id, user_id, started_at, completed_at, is_completed, score
		 FROM quiz_sessions
		 WHERE quiz_id = $1 AND user_id = $2 AND NOT is_completed`,
		quizID, userID,
	).Scan(&s.ID, &s.QuizID, &s.UserID, &s.StartedAt, &s.CompletedAt, &s.IsCompleted, &s.Score)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create persists a full session snapshot in one transaction. The partial
// unique index on open sessions turns a concurrent start of the same quiz
// by the same user into ErrDuplicate, which callers resolve by fetching
// the surviving session.
func (r *SessionRepository) Create(ctx context.Context, snapshot *model.QuizSnapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO quiz_sessions (id, quiz_id, user_id, started_at, is_completed)
		 VALUES ($1, $2, $3, $4, FALSE)`,
		snapshot.Session.ID, snapshot.Session.QuizID, snapshot.Session.UserID, snapshot.Session.StartedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert session: %w", err)
	}

	for order, q := range snapshot.Questions {
		var questionSessionID int64
		err = tx.QueryRow(ctx,
			`INSERT INTO question_sessions (session_id, question_id, question_order)
			 VALUES ($1, $2, $3) RETURNING id`,
			snapshot.Session.ID, q.QuestionID, order,
		).Scan(&questionSessionID)
		if err != nil {
			return fmt.Errorf("insert question slot: %w", err)
		}

		for choiceOrder, choiceID := range q.ChoiceIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO choice_sessions (question_session_id, choice_id, choice_order)
				 VALUES ($1, $2, $3)`,
				questionSessionID, choiceID, choiceOrder); err != nil {
				return fmt.Errorf("insert choice slot: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// GetDetail retrieves a session with quiz metadata and the full frozen
// snapshot, questions and choices in their frozen order.
func (r *SessionRepository) GetDetail(ctx context.Context, sessionID string) (*model.SessionDetail, error) {
	d := &model.SessionDetail{}
	err := r.pool.QueryRow(ctx,
		`SELECT s.id, s.quiz_id, s.user_id, s.started_at, s.completed_at, s.is_completed, s.score,
		        q.title, q.description
		 FROM quiz_sessions s
		 JOIN quizzes q ON s.quiz_id = q.id
		 WHERE s.id = $1`, sessionID,
	).Scan(&d.Session.ID, &d.Session.QuizID, &d.Session.UserID, &d.Session.StartedAt,
		&d.Session.CompletedAt, &d.Session.IsCompleted, &d.Session.Score,
		&d.QuizTitle, &d.QuizDescription)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT qs.id, qs.question_id, q.question_text, qs.selected_choice_id
		 FROM question_sessions qs
		 JOIN questions q ON qs.question_id = q.id
		 WHERE qs.session_id = $1
		 ORDER BY qs.question_order`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slotIDs []int64
	for rows.Next() {
		var q model.SessionQuestion
		if err := rows.Scan(&q.QuestionSessionID, &q.QuestionID, &q.Text, &q.SelectedChoiceID); err != nil {
			return nil, err
		}
		d.Questions = append(d.Questions, q)
		slotIDs = append(slotIDs, q.QuestionSessionID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(slotIDs) == 0 {
		return d, nil
	}

	choiceRows, err := r.pool.Query(ctx,
		`SELECT cs.question_session_id, cs.choice_id, c.content, c.is_correct
		 FROM choice_sessions cs
		 JOIN choices c ON cs.choice_id = c.id
		 WHERE cs.question_session_id = ANY($1)
		 ORDER BY cs.choice_order`, slotIDs)
	if err != nil {
		return nil, err
	}
	defer choiceRows.Close()

	bySlot := make(map[int64][]model.SessionChoice, len(slotIDs))
	for choiceRows.Next() {
		var slotID int64
		var c model.SessionChoice
		if err := choiceRows.Scan(&slotID, &c.ChoiceID, &c.Text, &c.IsCorrect); err != nil {
			return nil, err
		}
		bySlot[slotID] = append(bySlot[slotID], c)
	}
	if err := choiceRows.Err(); err != nil {
		return nil, err
	}
	for i := range d.Questions {
		d.Questions[i].Choices = bySlot[d.Questions[i].QuestionSessionID]
	}
	return d, nil
}

// SaveAnswer records one answer on the user's open session. The session
// row is locked for the duration so a concurrent submit cannot slip a
// completion in between the checks and the write. Both the question and
// the choice must belong to the session's frozen snapshot.
func (r *SessionRepository) SaveAnswer(ctx context.Context, userID int64, req model.SaveAnswerRequest) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var isCompleted bool
	err = tx.QueryRow(ctx,
		`SELECT is_completed FROM quiz_sessions WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		req.SessionID, userID).Scan(&isCompleted)
	if err != nil {
		return err
	}
	if isCompleted {
		return ErrSessionCompleted
	}

	var questionSessionID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM question_sessions WHERE session_id = $1 AND question_id = $2`,
		req.SessionID, req.QuestionID).Scan(&questionSessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuestionNotInSession
		}
		return err
	}

	var choiceInSlot bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM choice_sessions WHERE question_session_id = $1 AND choice_id = $2)`,
		questionSessionID, req.ChoiceID).Scan(&choiceInSlot)
	if err != nil {
		return err
	}
	if !choiceInSlot {
		return ErrChoiceMismatch
	}

	if _, err := tx.Exec(ctx,
		`UPDATE question_sessions SET selected_choice_id = $1 WHERE id = $2`,
		req.ChoiceID, questionSessionID); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}

	return tx.Commit(ctx)
}

// Complete persists a graded result in one transaction: the per-slot
// selections and correctness, then the session's score and completion
// mark. The session row is locked first and re-checked so a session can
// only ever be completed once.
func (r *SessionRepository) Complete(ctx context.Context, result *model.SessionResultUpdate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var isCompleted bool
	err = tx.QueryRow(ctx,
		`SELECT is_completed FROM quiz_sessions WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		result.SessionID, result.UserID).Scan(&isCompleted)
	if err != nil {
		return err
	}
	if isCompleted {
		return ErrSessionCompleted
	}

	for _, q := range result.Questions {
		if _, err := tx.Exec(ctx,
			`UPDATE question_sessions SET selected_choice_id = $1, is_correct = $2 WHERE id = $3`,
			q.SelectedChoiceID, q.IsCorrect, q.QuestionSessionID); err != nil {
			return fmt.Errorf("grade question slot: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE quiz_sessions SET is_completed = TRUE, completed_at = $1, score = $2 WHERE id = $3`,
		result.CompletedAt, result.Score, result.SessionID); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}

	return tx.Commit(ctx)
}
