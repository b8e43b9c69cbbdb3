// Package storetest provides in-memory store fakes for service and
// handler tests. They mirror the persistence contracts, including the
// sentinel errors the SQL-backed repositories return.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/repository"
)

// Users is an in-memory UserStore.
type Users struct {
	mu     sync.Mutex
	byName map[string]*model.User
	nextID int64
}

// NewUsers creates an empty Users fake.
func NewUsers() *Users {
	return &Users{byName: make(map[string]*model.User)}
}

func (s *Users) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[u.Username]; ok {
		return repository.ErrDuplicate
	}
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now()
	stored := *u
	s.byName[u.Username] = &stored
	return nil
}

func (s *Users) GetByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byName[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

// Quizzes is an in-memory QuizStore. ApplyUpdate really applies the plan
// so reconciliation can be asserted end to end.
type Quizzes struct {
	mu      sync.Mutex
	quizzes map[int64]*model.Quiz
	authors map[int64]string
	states  map[int64]map[int64]model.AttemptState // userID → quizID → state
	open    map[int64]bool                         // quizID has an incomplete session

	order []int64 // insertion order, newest last

	nextQuizID     int64
	nextQuestionID int64
	nextChoiceID   int64
}

// NewQuizzes creates an empty Quizzes fake.
func NewQuizzes() *Quizzes {
	return &Quizzes{
		quizzes: make(map[int64]*model.Quiz),
		authors: make(map[int64]string),
		states:  make(map[int64]map[int64]model.AttemptState),
		open:    make(map[int64]bool),
	}
}

// SetAuthor records the author name shown to admin readers.
func (s *Quizzes) SetAuthor(quizID int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authors[quizID] = name
}

// SetAttemptState records a user's session state against a quiz.
func (s *Quizzes) SetAttemptState(userID, quizID int64, state model.AttemptState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[userID] == nil {
		s.states[userID] = make(map[int64]model.AttemptState)
	}
	s.states[userID][quizID] = state
}

// SetOpenSessions marks a quiz as having incomplete sessions, which
// blocks deletion.
func (s *Quizzes) SetOpenSessions(quizID int64, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[quizID] = open
}

func (s *Quizzes) Create(_ context.Context, quiz *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextQuizID++
	quiz.ID = s.nextQuizID
	quiz.CreatedAt = time.Now()
	for qi := range quiz.Questions {
		s.nextQuestionID++
		quiz.Questions[qi].ID = s.nextQuestionID
		quiz.Questions[qi].QuizID = quiz.ID
		for ci := range quiz.Questions[qi].Choices {
			s.nextChoiceID++
			quiz.Questions[qi].Choices[ci].ID = s.nextChoiceID
			quiz.Questions[qi].Choices[ci].QuestionID = quiz.Questions[qi].ID
		}
	}
	cp := copyQuiz(quiz)
	s.quizzes[quiz.ID] = cp
	s.order = append(s.order, quiz.ID)
	return nil
}

func (s *Quizzes) GetByID(_ context.Context, id int64) (*model.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyQuiz(quiz), nil
}

func (s *Quizzes) GetWithAuthor(ctx context.Context, id int64) (*model.Quiz, string, error) {
	quiz, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return quiz, s.authors[id], nil
}

func (s *Quizzes) Questions(_ context.Context, quizID int64) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyQuiz(quiz).Questions, nil
}

func (s *Quizzes) QuestionsPage(ctx context.Context, quizID int64, limit, offset int, _ bool) ([]model.Question, error) {
	questions, err := s.Questions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if offset >= len(questions) {
		return nil, nil
	}
	end := offset + limit
	if end > len(questions) {
		end = len(questions)
	}
	return questions[offset:end], nil
}

func (s *Quizzes) CountQuestions(_ context.Context, quizID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return len(quiz.Questions), nil
}

func (s *Quizzes) ApplyUpdate(_ context.Context, plan *model.QuizUpdatePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[plan.QuizID]
	if !ok {
		return pgx.ErrNoRows
	}

	quiz.Title = plan.Title
	quiz.Description = plan.Description
	quiz.SelectedQuestions = plan.SelectedQuestions
	quiz.IsRandomizedQuestions = plan.IsRandomizedQuestions
	quiz.IsRandomizedChoices = plan.IsRandomizedChoices
	now := time.Now()
	quiz.UpdatedAt = &now

	deleted := make(map[int64]bool, len(plan.DeleteQuestionIDs))
	for _, id := range plan.DeleteQuestionIDs {
		deleted[id] = true
	}
	kept := quiz.Questions[:0]
	for _, q := range quiz.Questions {
		if !deleted[q.ID] {
			kept = append(kept, q)
		}
	}
	quiz.Questions = kept

	for _, qu := range plan.UpdateQuestions {
		for qi := range quiz.Questions {
			q := &quiz.Questions[qi]
			if q.ID != qu.ID {
				continue
			}
			q.Text = qu.Text

			droppedChoices := make(map[int64]bool, len(qu.DeleteChoiceIDs))
			for _, id := range qu.DeleteChoiceIDs {
				droppedChoices[id] = true
			}
			keptChoices := q.Choices[:0]
			for _, c := range q.Choices {
				if !droppedChoices[c.ID] {
					keptChoices = append(keptChoices, c)
				}
			}
			q.Choices = keptChoices

			for _, cu := range qu.UpdateChoices {
				for ci := range q.Choices {
					if q.Choices[ci].ID == cu.ID {
						correct := cu.IsCorrect
						q.Choices[ci].Text = cu.Text
						q.Choices[ci].IsCorrect = &correct
					}
				}
			}
			for _, ci := range qu.InsertChoices {
				s.nextChoiceID++
				correct := ci.IsCorrect
				q.Choices = append(q.Choices, model.Choice{
					ID: s.nextChoiceID, QuestionID: q.ID, Text: ci.Text, IsCorrect: &correct,
				})
			}
		}
	}

	for _, qi := range plan.InsertQuestions {
		s.nextQuestionID++
		q := model.Question{ID: s.nextQuestionID, QuizID: quiz.ID, Text: qi.Text}
		for _, ci := range qi.Choices {
			s.nextChoiceID++
			correct := ci.IsCorrect
			q.Choices = append(q.Choices, model.Choice{
				ID: s.nextChoiceID, QuestionID: q.ID, Text: ci.Text, IsCorrect: &correct,
			})
		}
		quiz.Questions = append(quiz.Questions, q)
	}

	return nil
}

func (s *Quizzes) Delete(_ context.Context, quizID, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok || quiz.UserID != ownerID {
		return pgx.ErrNoRows
	}
	if s.open[quizID] {
		return repository.ErrQuizHasActiveSessions
	}
	delete(s.quizzes, quizID)
	for i, id := range s.order {
		if id == quizID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Quizzes) ListPage(_ context.Context, limit, offset int) ([]model.QuizListRow, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []model.QuizListRow
	for i := len(s.order) - 1; i >= 0; i-- {
		quiz := s.quizzes[s.order[i]]
		rows = append(rows, model.QuizListRow{
			Quiz:           *copyQuiz(quiz),
			CreatedBy:      s.authors[quiz.ID],
			TotalQuestions: len(quiz.Questions),
		})
	}
	total := int64(len(rows))

	if offset >= len(rows) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], total, nil
}

func (s *Quizzes) AttemptStates(_ context.Context, userID int64, quizIDs []int64) (map[int64]model.AttemptState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make(map[int64]model.AttemptState, len(quizIDs))
	for _, id := range quizIDs {
		if st, ok := s.states[userID][id]; ok {
			states[id] = st
		}
	}
	return states, nil
}

func copyQuiz(quiz *model.Quiz) *model.Quiz {
	cp := *quiz
	cp.Questions = make([]model.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		qc := q
		qc.Choices = make([]model.Choice, len(q.Choices))
		for j, c := range q.Choices {
			cc := c
			if c.IsCorrect != nil {
				v := *c.IsCorrect
				cc.IsCorrect = &v
			}
			qc.Choices[j] = cc
		}
		cp.Questions[i] = qc
	}
	return &cp
}
