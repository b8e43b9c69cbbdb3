package storetest

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/repository"
)

type openKey struct {
	quizID int64
	userID int64
}

// Sessions is an in-memory SessionStore. It resolves question and choice
// content from a Quizzes fake at snapshot time, like the SQL joins do on
// read.
type Sessions struct {
	mu      sync.Mutex
	quizzes *Quizzes
	byID    map[string]*model.SessionDetail
	open    map[openKey]string
	nextID  int64
}

// NewSessions creates an empty Sessions fake backed by quizzes.
func NewSessions(quizzes *Quizzes) *Sessions {
	return &Sessions{
		quizzes: quizzes,
		byID:    make(map[string]*model.SessionDetail),
		open:    make(map[openKey]string),
	}
}

func (s *Sessions) FindOpen(_ context.Context, quizID, userID int64) (*model.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.open[openKey{quizID, userID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := s.byID[id].Session
	return &cp, nil
}

func (s *Sessions) Create(ctx context.Context, snapshot *model.QuizSnapshot) error {
	quiz, err := s.quizzes.GetByID(ctx, snapshot.Session.QuizID)
	if err != nil {
		return err
	}
	choicesByQuestion := make(map[int64]map[int64]model.Choice)
	textByQuestion := make(map[int64]string)
	for _, q := range quiz.Questions {
		textByQuestion[q.ID] = q.Text
		byID := make(map[int64]model.Choice, len(q.Choices))
		for _, c := range q.Choices {
			byID[c.ID] = c
		}
		choicesByQuestion[q.ID] = byID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := openKey{snapshot.Session.QuizID, snapshot.Session.UserID}
	if _, ok := s.open[key]; ok {
		return repository.ErrDuplicate
	}

	detail := &model.SessionDetail{
		Session:         snapshot.Session,
		QuizTitle:       quiz.Title,
		QuizDescription: quiz.Description,
	}
	for _, q := range snapshot.Questions {
		s.nextID++
		sq := model.SessionQuestion{
			QuestionSessionID: s.nextID,
			QuestionID:        q.QuestionID,
			Text:              textByQuestion[q.QuestionID],
		}
		for _, choiceID := range q.ChoiceIDs {
			c := choicesByQuestion[q.QuestionID][choiceID]
			sq.Choices = append(sq.Choices, model.SessionChoice{
				ChoiceID:  choiceID,
				Text:      c.Text,
				IsCorrect: c.Correct(),
			})
		}
		detail.Questions = append(detail.Questions, sq)
	}

	s.byID[snapshot.Session.ID] = detail
	s.open[key] = snapshot.Session.ID
	return nil
}

func (s *Sessions) GetDetail(_ context.Context, sessionID string) (*model.SessionDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[sessionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyDetail(d), nil
}

func (s *Sessions) SaveAnswer(_ context.Context, userID int64, req model.SaveAnswerRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[req.SessionID]
	if !ok || d.Session.UserID != userID {
		return pgx.ErrNoRows
	}
	if d.Session.IsCompleted {
		return repository.ErrSessionCompleted
	}

	for i := range d.Questions {
		q := &d.Questions[i]
		if q.QuestionID != req.QuestionID {
			continue
		}
		for _, c := range q.Choices {
			if c.ChoiceID == req.ChoiceID {
				id := req.ChoiceID
				q.SelectedChoiceID = &id
				return nil
			}
		}
		return repository.ErrChoiceMismatch
	}
	return repository.ErrQuestionNotInSession
}

func (s *Sessions) Complete(_ context.Context, result *model.SessionResultUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[result.SessionID]
	if !ok || d.Session.UserID != result.UserID {
		return pgx.ErrNoRows
	}
	if d.Session.IsCompleted {
		return repository.ErrSessionCompleted
	}

	for _, qr := range result.Questions {
		for i := range d.Questions {
			if d.Questions[i].QuestionSessionID == qr.QuestionSessionID {
				d.Questions[i].SelectedChoiceID = qr.SelectedChoiceID
			}
		}
	}
	completedAt := result.CompletedAt
	score := result.Score
	d.Session.IsCompleted = true
	d.Session.CompletedAt = &completedAt
	d.Session.Score = &score
	delete(s.open, openKey{d.Session.QuizID, d.Session.UserID})
	return nil
}

func copyDetail(d *model.SessionDetail) *model.SessionDetail {
	cp := *d
	if d.Session.CompletedAt != nil {
		v := *d.Session.CompletedAt
		cp.Session.CompletedAt = &v
	}
	if d.Session.Score != nil {
		v := *d.Session.Score
		cp.Session.Score = &v
	}
	cp.Questions = make([]model.SessionQuestion, len(d.Questions))
	for i, q := range d.Questions {
		qc := q
		if q.SelectedChoiceID != nil {
			v := *q.SelectedChoiceID
			qc.SelectedChoiceID = &v
		}
		qc.Choices = append([]model.SessionChoice(nil), q.Choices...)
		cp.Questions[i] = qc
	}
	return &cp
}
