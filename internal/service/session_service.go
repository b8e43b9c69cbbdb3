package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/repository"
	"github.com/rs/zerolog"
)

// Common session errors.
var (
	ErrSessionNotFound  = errors.New("session does not exist")
	ErrSessionCompleted = errors.New("session is already completed")
	ErrInvalidAnswer    = errors.New("question or choice is not part of the session")
)

// SessionStore is the persistence surface SessionService depends on.
type SessionStore interface {
	FindOpen(ctx context.Context, quizID, userID int64) (*model.QuizSession, error)
	Create(ctx context.Context, snapshot *model.QuizSnapshot) error
	GetDetail(ctx context.Context, sessionID string) (*model.SessionDetail, error)
	SaveAnswer(ctx context.Context, userID int64, req model.SaveAnswerRequest) error
	Complete(ctx context.Context, result *model.SessionResultUpdate) error
}

// SessionService implements the quiz-taking flow: starting a session
// against a frozen snapshot, recording answers and grading on submit.
type SessionService struct {
	quizzes  QuizStore
	sessions SessionStore
	log      zerolog.Logger

	// rng drives question and choice shuffling. Guarded because
	// math/rand sources are not safe for concurrent use.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSessionService creates a new SessionService. A nil rng gets a
// time-seeded source; tests inject a fixed seed.
func NewSessionService(quizzes QuizStore, sessions SessionStore, rng *rand.Rand, log zerolog.Logger) *SessionService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SessionService{
		quizzes:  quizzes,
		sessions: sessions,
		rng:      rng,
		log:      log.With().Str("component", "session").Logger(),
	}
}

// Start opens a session for the user on a quiz. If an incomplete session
// already exists it is returned instead of creating a second one; the
// partial unique index makes this hold under concurrent starts too. The
// bool reports whether a new session was created, so callers can tell a
// fresh start from a resume.
func (s *SessionService) Start(ctx context.Context, userID, quizID int64) (*model.SessionResponse, bool, error) {
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrQuizNotFound
		}
		s.log.Error().Err(err).Int64("quiz_id", quizID).Msg("fetch quiz failed")
		return nil, false, fmt.Errorf("fetch quiz: %w", err)
	}

	if open, err := s.sessions.FindOpen(ctx, quizID, userID); err == nil {
		resp, err := s.Get(ctx, userID, open.ID)
		return resp, false, err
	} else if !errors.Is(err, pgx.ErrNoRows) {
		s.log.Error().Err(err).Int64("quiz_id", quizID).Int64("user_id", userID).Msg("find open session failed")
		return nil, false, fmt.Errorf("find open session: %w", err)
	}

	questions, err := s.quizzes.Questions(ctx, quizID)
	if err != nil {
		s.log.Error().Err(err).Int64("quiz_id", quizID).Msg("fetch questions failed")
		return nil, false, fmt.Errorf("fetch questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, false, ErrQuestionsNotFound
	}

	snapshot := s.buildSnapshot(quiz, questions, userID)
	if err := s.sessions.Create(ctx, snapshot); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost the race against a concurrent start; the surviving
			// session is the one to hand back.
			open, ferr := s.sessions.FindOpen(ctx, quizID, userID)
			if ferr != nil {
				s.log.Error().Err(ferr).Int64("quiz_id", quizID).Int64("user_id", userID).Msg("fetch surviving session failed")
				return nil, false, fmt.Errorf("fetch surviving session: %w", ferr)
			}
			resp, err := s.Get(ctx, userID, open.ID)
			return resp, false, err
		}
		s.log.Error().Err(err).Int64("quiz_id", quizID).Int64("user_id", userID).Msg("create session failed")
		return nil, false, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().Str("session_id", snapshot.Session.ID).
		Int64("quiz_id", quizID).Int64("user_id", userID).
		Int("questions", len(snapshot.Questions)).Msg("session started")
	resp, err := s.Get(ctx, userID, snapshot.Session.ID)
	return resp, true, err
}

// buildSnapshot freezes question and choice order for a new session.
// Question order is shuffled before sampling when the quiz randomizes
// questions, so the selected subset varies too.
func (s *SessionService) buildSnapshot(quiz *model.Quiz, questions []model.Question, userID int64) *model.QuizSnapshot {
	ordered := make([]model.Question, len(questions))
	copy(ordered, questions)

	s.rngMu.Lock()
	if quiz.IsRandomizedQuestions {
		s.rng.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}

	count := quiz.SelectedQuestions
	if count <= 0 || count > len(ordered) {
		count = len(ordered)
	}
	ordered = ordered[:count]

	frozen := make([]model.SnapshotQuestion, 0, count)
	for _, q := range ordered {
		choiceIDs := make([]int64, len(q.Choices))
		for i, c := range q.Choices {
			choiceIDs[i] = c.ID
		}
		if quiz.IsRandomizedChoices {
			s.rng.Shuffle(len(choiceIDs), func(i, j int) {
				choiceIDs[i], choiceIDs[j] = choiceIDs[j], choiceIDs[i]
			})
		}
		frozen = append(frozen, model.SnapshotQuestion{QuestionID: q.ID, ChoiceIDs: choiceIDs})
	}
	s.rngMu.Unlock()

	return &model.QuizSnapshot{
		Session: model.QuizSession{
			ID:        uuid.New().String(),
			QuizID:    quiz.ID,
			UserID:    userID,
			StartedAt: time.Now(),
		},
		Questions: frozen,
	}
}

// Get returns the frozen view of the caller's session. Correctness never
// leaves this view.
func (s *SessionService) Get(ctx context.Context, userID int64, sessionID string) (*model.SessionResponse, error) {
	d, err := s.ownedDetail(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	resp := &model.SessionResponse{
		QuizID:      d.Session.QuizID,
		SessionID:   d.Session.ID,
		Title:       d.QuizTitle,
		Description: d.QuizDescription,
		StartedAt:   &d.Session.StartedAt,
		IsCompleted: d.Session.IsCompleted,
		CompletedAt: d.Session.CompletedAt,
		Score:       d.Session.Score,
		Questions:   make([]model.SessionQuestionView, 0, len(d.Questions)),
	}
	for _, q := range d.Questions {
		view := model.SessionQuestionView{
			QuestionID:       q.QuestionID,
			QuestionText:     q.Text,
			SelectedChoiceID: q.SelectedChoiceID,
			Choices:          make([]model.SessionChoiceView, 0, len(q.Choices)),
		}
		for _, c := range q.Choices {
			view.Choices = append(view.Choices, model.SessionChoiceView{ChoiceID: c.ChoiceID, Text: c.Text})
		}
		resp.Questions = append(resp.Questions, view)
	}
	return resp, nil
}

// SaveAnswer records one answer on the caller's open session.
func (s *SessionService) SaveAnswer(ctx context.Context, userID int64, req model.SaveAnswerRequest) error {
	err := s.sessions.SaveAnswer(ctx, userID, req)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrSessionNotFound
	case errors.Is(err, repository.ErrSessionCompleted):
		return ErrSessionCompleted
	case errors.Is(err, repository.ErrQuestionNotInSession), errors.Is(err, repository.ErrChoiceMismatch):
		return ErrInvalidAnswer
	default:
		s.log.Error().Err(err).Str("session_id", req.SessionID).Msg("save answer failed")
		return fmt.Errorf("save answer: %w", err)
	}
}

// Submit merges the payload's answers over the session's saved ones,
// grades every frozen question and completes the session. Payload entries
// referencing questions or choices outside the frozen snapshot are
// ignored rather than failing the submit.
func (s *SessionService) Submit(ctx context.Context, userID int64, req model.SubmitRequest) (*model.SubmitResponse, error) {
	d, err := s.ownedDetail(ctx, userID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if d.Session.IsCompleted {
		return nil, ErrSessionCompleted
	}

	selected := make(map[int64]int64, len(d.Questions))
	for _, q := range d.Questions {
		if q.SelectedChoiceID != nil {
			selected[q.QuestionID] = *q.SelectedChoiceID
		}
	}
	frozen := make(map[int64]map[int64]bool, len(d.Questions))
	for _, q := range d.Questions {
		choices := make(map[int64]bool, len(q.Choices))
		for _, c := range q.Choices {
			choices[c.ChoiceID] = true
		}
		frozen[q.QuestionID] = choices
	}
	for _, a := range req.Answers {
		if frozen[a.QuestionID][a.ChoiceID] {
			selected[a.QuestionID] = a.ChoiceID
		}
	}

	now := time.Now()
	result := &model.SessionResultUpdate{
		SessionID:   d.Session.ID,
		UserID:      userID,
		CompletedAt: now,
		Questions:   make([]model.QuestionResult, 0, len(d.Questions)),
	}
	resp := &model.SubmitResponse{
		QuizID:         d.Session.QuizID,
		SessionID:      d.Session.ID,
		Title:          d.QuizTitle,
		TotalQuestions: len(d.Questions),
		StartedAt:      &d.Session.StartedAt,
		CompletedAt:    &now,
		Questions:      make([]model.ResultQuestionView, 0, len(d.Questions)),
	}

	correct := 0
	for _, q := range d.Questions {
		var correctChoice model.SessionChoice
		for _, c := range q.Choices {
			if c.IsCorrect {
				correctChoice = c
				break
			}
		}

		view := model.ResultQuestionView{
			QuestionID:        q.QuestionID,
			QuestionText:      q.Text,
			CorrectChoiceID:   correctChoice.ChoiceID,
			CorrectChoiceText: correctChoice.Text,
		}
		qr := model.QuestionResult{QuestionSessionID: q.QuestionSessionID}

		if choiceID, ok := selected[q.QuestionID]; ok {
			id := choiceID
			qr.SelectedChoiceID = &id
			qr.IsCorrect = choiceID == correctChoice.ChoiceID
			view.SelectedChoiceID = &id
			for _, c := range q.Choices {
				if c.ChoiceID == choiceID {
					view.SelectedChoiceText = c.Text
					break
				}
			}
		}
		view.IsCorrect = qr.IsCorrect
		if qr.IsCorrect {
			correct++
		}

		result.Questions = append(result.Questions, qr)
		resp.Questions = append(resp.Questions, view)
	}

	score := 0.0
	if len(d.Questions) > 0 {
		score = 100 * float64(correct) / float64(len(d.Questions))
	}
	result.Score = score
	resp.CorrectAnswers = correct
	resp.Score = score

	if err := s.sessions.Complete(ctx, result); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrSessionNotFound
		case errors.Is(err, repository.ErrSessionCompleted):
			return nil, ErrSessionCompleted
		default:
			s.log.Error().Err(err).Str("session_id", d.Session.ID).Msg("complete session failed")
			return nil, fmt.Errorf("complete session: %w", err)
		}
	}

	s.log.Info().Str("session_id", d.Session.ID).Int64("user_id", userID).
		Float64("score", score).Msg("session submitted")
	return resp, nil
}

func (s *SessionService) ownedDetail(ctx context.Context, userID int64, sessionID string) (*model.SessionDetail, error) {
	d, err := s.sessions.GetDetail(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("fetch session failed")
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	// Sessions are private; hide other users' sessions entirely.
	if d.Session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return d, nil
}
