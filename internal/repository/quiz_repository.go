package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizforge/quizforge-backend/internal/model"
)

// QuizRepository handles quiz, question and choice data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// Create inserts a quiz with its full question/choice tree in one
// transaction, assigning generated ids back onto the passed structs.
func (r *QuizRepository) Create(ctx context.Context, quiz *model.Quiz) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO quizzes (title, description, user_id, selected_questions, is_randomized_questions, is_randomized_choices)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		quiz.Title, quiz.Description, quiz.UserID, quiz.SelectedQuestions,
		quiz.IsRandomizedQuestions, quiz.IsRandomizedChoices,
	).Scan(&quiz.ID, &quiz.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}

	for qi := range quiz.Questions {
		q := &quiz.Questions[qi]
		q.QuizID = quiz.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO questions (quiz_id, question_text) VALUES ($1, $2) RETURNING id`,
			quiz.ID, q.Text,
		).Scan(&q.ID)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}

		for ci := range q.Choices {
			c := &q.Choices[ci]
			c.QuestionID = q.ID
			err = tx.QueryRow(ctx,
				`INSERT INTO choices (question_id, content, is_correct) VALUES ($1, $2, $3) RETURNING id`,
				q.ID, c.Text, c.Correct(),
			).Scan(&c.ID)
			if err != nil {
				return fmt.Errorf("insert choice: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a quiz row without its questions.
func (r *QuizRepository) GetByID(ctx context.Context, id int64) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, user_id, selected_questions,
		        is_randomized_questions, is_randomized_choices, created_at, updated_at
		 FROM quizzes WHERE id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.Description, &q.UserID, &q.SelectedQuestions,
		&q.IsRandomizedQuestions, &q.IsRandomizedChoices, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// GetWithAuthor retrieves a quiz row plus the owning user's username.
func (r *QuizRepository) GetWithAuthor(ctx context.Context, id int64) (*model.Quiz, string, error) {
	q := &model.Quiz{}
	var author string
	err := r.pool.QueryRow(ctx,
		`SELECT q.id, q.title, q.description, q.user_id, q.selected_questions,
		        q.is_randomized_questions, q.is_randomized_choices, q.created_at, q.updated_at,
		        u.username
		 FROM quizzes q
		 JOIN users u ON q.user_id = u.id
		 WHERE q.id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.Description, &q.UserID, &q.SelectedQuestions,
		&q.IsRandomizedQuestions, &q.IsRandomizedChoices, &q.CreatedAt, &q.UpdatedAt, &author)
	if err != nil {
		return nil, "", err
	}
	return q, author, nil
}

// Questions retrieves all questions of a quiz with their choices, ordered
// by ascending id. Used for update planning and session snapshots.
func (r *QuizRepository) Questions(ctx context.Context, quizID int64) ([]model.Question, error) {
	return r.questionsQuery(ctx,
		`SELECT id, quiz_id, question_text
		 FROM questions WHERE quiz_id = $1
		 ORDER BY id`, quizID)
}

// QuestionsPage retrieves one page of a quiz's questions with their
// choices. When randomize is set the page order is randomized per call.
func (r *QuizRepository) QuestionsPage(ctx context.Context, quizID int64, limit, offset int, randomize bool) ([]model.Question, error) {
	order := "id"
	if randomize {
		order = "random()"
	}
	query := fmt.Sprintf(
		`SELECT id, quiz_id, question_text
		 FROM questions WHERE quiz_id = $1
		 ORDER BY %s
		 LIMIT $2 OFFSET $3`, order)
	return r.questionsQuery(ctx, query, quizID, limit, offset)
}

func (r *QuizRepository) questionsQuery(ctx context.Context, query string, args ...any) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	var ids []int64
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text); err != nil {
			return nil, err
		}
		questions = append(questions, q)
		ids = append(ids, q.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return questions, nil
	}

	byQuestion, err := r.choicesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].Choices = byQuestion[questions[i].ID]
	}
	return questions, nil
}

func (r *QuizRepository) choicesFor(ctx context.Context, questionIDs []int64) (map[int64][]model.Choice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_id, content, is_correct
		 FROM choices WHERE question_id = ANY($1)
		 ORDER BY id`, questionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byQuestion := make(map[int64][]model.Choice)
	for rows.Next() {
		var c model.Choice
		var correct bool
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Text, &correct); err != nil {
			return nil, err
		}
		c.IsCorrect = &correct
		byQuestion[c.QuestionID] = append(byQuestion[c.QuestionID], c)
	}
	return byQuestion, rows.Err()
}

// CountQuestions returns the number of questions a quiz currently has.
func (r *QuizRepository) CountQuestions(ctx context.Context, quizID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE quiz_id = $1`, quizID).Scan(&n)
	return n, err
}

// ApplyUpdate executes a precomputed reconciliation plan in one
// transaction: scalar fields, question/choice updates and inserts, then
// deletions (choices cascade with their questions).
func (r *QuizRepository) ApplyUpdate(ctx context.Context, plan *model.QuizUpdatePlan) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE quizzes
		 SET title = $1, description = $2, selected_questions = $3,
		     is_randomized_questions = $4, is_randomized_choices = $5, updated_at = NOW()
		 WHERE id = $6`,
		plan.Title, plan.Description, plan.SelectedQuestions,
		plan.IsRandomizedQuestions, plan.IsRandomizedChoices, plan.QuizID)
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	for _, qu := range plan.UpdateQuestions {
		if _, err := tx.Exec(ctx,
			`UPDATE questions SET question_text = $1, updated_at = NOW() WHERE id = $2 AND quiz_id = $3`,
			qu.Text, qu.ID, plan.QuizID); err != nil {
			return fmt.Errorf("update question %d: %w", qu.ID, err)
		}
		for _, cu := range qu.UpdateChoices {
			if _, err := tx.Exec(ctx,
				`UPDATE choices SET content = $1, is_correct = $2, updated_at = NOW() WHERE id = $3 AND question_id = $4`,
				cu.Text, cu.IsCorrect, cu.ID, qu.ID); err != nil {
				return fmt.Errorf("update choice %d: %w", cu.ID, err)
			}
		}
		for _, ci := range qu.InsertChoices {
			if _, err := tx.Exec(ctx,
				`INSERT INTO choices (question_id, content, is_correct) VALUES ($1, $2, $3)`,
				qu.ID, ci.Text, ci.IsCorrect); err != nil {
				return fmt.Errorf("insert choice: %w", err)
			}
		}
		if len(qu.DeleteChoiceIDs) > 0 {
			if _, err := tx.Exec(ctx,
				`DELETE FROM choices WHERE question_id = $1 AND id = ANY($2)`,
				qu.ID, qu.DeleteChoiceIDs); err != nil {
				return fmt.Errorf("delete choices: %w", err)
			}
		}
	}

	for _, qi := range plan.InsertQuestions {
		var questionID int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (quiz_id, question_text) VALUES ($1, $2) RETURNING id`,
			plan.QuizID, qi.Text).Scan(&questionID); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		for _, ci := range qi.Choices {
			if _, err := tx.Exec(ctx,
				`INSERT INTO choices (question_id, content, is_correct) VALUES ($1, $2, $3)`,
				questionID, ci.Text, ci.IsCorrect); err != nil {
				return fmt.Errorf("insert choice: %w", err)
			}
		}
	}

	if len(plan.DeleteQuestionIDs) > 0 {
		if _, err := tx.Exec(ctx,
			`DELETE FROM questions WHERE quiz_id = $1 AND id = ANY($2)`,
			plan.QuizID, plan.DeleteQuestionIDs); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Delete removes a quiz owned by ownerID. Deletion is blocked while
// incomplete sessions reference the quiz; completed sessions cascade.
// Returns pgx.ErrNoRows if no quiz matches id+owner.
func (r *QuizRepository) Delete(ctx context.Context, quizID, ownerID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var hasOpen bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM quiz_sessions WHERE quiz_id = $1 AND NOT is_completed)`,
		quizID).Scan(&hasOpen)
	if err != nil {
		return fmt.Errorf("check open sessions: %w", err)
	}
	if hasOpen {
		return ErrQuizHasActiveSessions
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM quizzes WHERE id = $1 AND user_id = $2`, quizID, ownerID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return tx.Commit(ctx)
}

// ListPage retrieves one newest-first page of quizzes with author name and
// question count, plus the total quiz count.
func (r *QuizRepository) ListPage(ctx context.Context, limit, offset int) ([]model.QuizListRow, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quizzes`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.title, q.description, q.user_id, q.selected_questions,
		        q.is_randomized_questions, q.is_randomized_choices, q.created_at, q.updated_at,
		        u.username,
		        (SELECT COUNT(*) FROM questions WHERE quiz_id = q.id)
		 FROM quizzes q
		 JOIN users u ON q.user_id = u.id
		 ORDER BY q.created_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []model.QuizListRow
	for rows.Next() {
		var row model.QuizListRow
		if err := rows.Scan(&row.ID, &row.Title, &row.Description, &row.UserID, &row.SelectedQuestions,
			&row.IsRandomizedQuestions, &row.IsRandomizedChoices, &row.CreatedAt, &row.UpdatedAt,
			&row.CreatedBy, &row.TotalQuestions); err != nil {
			return nil, 0, err
		}
		list = append(list, row)
	}
	return list, total, rows.Err()
}

// AttemptStates aggregates a user's session completion state per quiz.
func (r *QuizRepository) AttemptStates(ctx context.Context, userID int64, quizIDs []int64) (map[int64]model.AttemptState, error) {
	states := make(map[int64]model.AttemptState, len(quizIDs))
	if len(quizIDs) == 0 {
		return states, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT quiz_id, bool_or(NOT is_completed), bool_or(is_completed)
		 FROM quiz_sessions
		 WHERE user_id = $1 AND quiz_id = ANY($2)
		 GROUP BY quiz_id`, userID, quizIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var quizID int64
		var state model.AttemptState
		if err := rows.Scan(&quizID, &state.HasOpen, &state.HasCompleted); err != nil {
			return nil, err
		}
		states[quizID] = state
	}
	return states, rows.Err()
}
