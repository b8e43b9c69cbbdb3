package service_test

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/service"
	"github.com/quizforge/quizforge-backend/internal/storetest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const takerID int64 = 7

func newSessionService(t *testing.T) (*storetest.Quizzes, *service.SessionService) {
	t.Helper()
	quizzes := storetest.NewQuizzes()
	sessions := storetest.NewSessions(quizzes)
	rng := rand.New(rand.NewSource(42))
	return quizzes, service.NewSessionService(quizzes, sessions, rng, zerolog.Nop())
}

// mcq builds a question whose choice at correctIdx is the right answer.
func mcq(text string, correctIdx int, choiceTexts ...string) model.Question {
	q := model.Question{Text: text}
	for i, ct := range choiceTexts {
		correct := i == correctIdx
		q.Choices = append(q.Choices, model.Choice{Text: ct, IsCorrect: &correct})
	}
	return q
}

func seedQuiz(t *testing.T, quizzes *storetest.Quizzes, selected int, randQ, randC bool, questions ...model.Question) *model.Quiz {
	t.Helper()
	quiz := &model.Quiz{
		Title:                 "Networking basics",
		Description:           "OSI and friends",
		UserID:                1,
		SelectedQuestions:     selected,
		IsRandomizedQuestions: randQ,
		IsRandomizedChoices:   randC,
		Questions:             questions,
	}
	require.NoError(t, quizzes.Create(context.Background(), quiz))
	return quiz
}

// correctChoice returns the id of the question's correct choice.
func correctChoice(t *testing.T, quiz *model.Quiz, questionID int64) int64 {
	t.Helper()
	for _, q := range quiz.Questions {
		if q.ID != questionID {
			continue
		}
		for _, c := range q.Choices {
			if c.Correct() {
				return c.ID
			}
		}
	}
	t.Fatalf("no correct choice for question %d", questionID)
	return 0
}

// wrongChoice returns the id of some incorrect choice of the question.
func wrongChoice(t *testing.T, quiz *model.Quiz, questionID int64) int64 {
	t.Helper()
	for _, q := range quiz.Questions {
		if q.ID != questionID {
			continue
		}
		for _, c := range q.Choices {
			if !c.Correct() {
				return c.ID
			}
		}
	}
	t.Fatalf("no wrong choice for question %d", questionID)
	return 0
}

func TestStartFreezesOrder(t *testing.T) {
	quizzes, svc := newSessionService(t)
	quiz := seedQuiz(t, quizzes, 5, true, true,
		mcq("q1", 0, "a", "b", "c", "d"),
		mcq("q2", 1, "a", "b", "c", "d"),
		mcq("q3", 2, "a", "b", "c", "d"),
		mcq("q4", 3, "a", "b", "c", "d"),
		mcq("q5", 0, "a", "b", "c", "d"),
	)

	ctx := context.Background()
	started, _, err := svc.Start(ctx, takerID, quiz.ID)
	require.NoError(t, err)
	require.Len(t, started.Questions, 5)

	// Repeated reads return the exact frozen order, questions and
	// choices alike, even though the quiz randomizes both.
	for i := 0; i < 3; i++ {
		got, err := svc.Get(ctx, takerID, started.SessionID)
		require.NoError(t, err)
		require.Equal(t, started.Questions, got.Questions)
	}

	// The frozen questions are a permutation of the quiz's.
	wantIDs := make(map[int64]bool)
	for _, q := range quiz.Questions {
		wantIDs[q.ID] = true
	}
	for _, q := range started.Questions {
		require.True(t, wantIDs[q.QuestionID])
		require.Len(t, q.Choices, 4)
	}

	// No correctness data in the session view.
	for _, q := range started.Questions {
		for _, c := range q.Choices {
			require.NotEmpty(t, c.Text)
		}
	}
}

func TestStartKeepsQuestionOrderWithoutRandomization(t *testing.T) {
	quizzes, svc := newSessionService(t)
	quiz := seedQuiz(t, quizzes, 4, false, false,
		mcq("q1", 0, "a", "b"),
		mcq("q2", 0, "a", "b"),
		mcq("q3", 0, "a", "b"),
		mcq("q4", 0, "a", "b"),
	)

	want := make([]int64, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		want = append(want, q.ID)
	}

	// Fresh sessions for different users all freeze the same ascending
	// id order when the quiz does not randomize questions.
	ctx := context.Background()
	for _, userID := range []int64{takerID, takerID + 1} {
		started, _, err := svc.Start(ctx, userID, quiz.ID)
		require.NoError(t, err)
		require.Len(t, started.Questions, 4)

		ids := make([]int64, 0, len(started.Questions))
		for _, q := range started.Questions {
			ids = append(ids, q.QuestionID)
		}
		require.True(t, sort.SliceIsSorted(ids, func(i, j int) bool { return ids[i] < ids[j] }),
			"question ids not ascending: %v", ids)
		require.Equal(t, want, ids)
	}
}

func TestStartSamplesSelectedQuestions(t *testing.T) {
	quizzes, svc := newSessionService(t)
	quiz := seedQuiz(t, quizzes, 3, true, false,
		mcq("q1", 0, "a", "b"),
		mcq("q2", 0, "a", "b"),
		mcq("q3", 0, "a", "b"),
		mcq("q4", 0, "a", "b"),
		mcq("q5", 0, "a", "b"),
	)

	started, _, err := svc.Start(context.Background(), takerID, quiz.ID)
	require.NoError(t, err)
	require.Len(t, started.Questions, 3)

	seen := make(map[int64]bool)
	for _, q := range started.Questions {
		require.False(t, seen[q.QuestionID], "question sampled twice")
		seen[q.QuestionID] = true
	}
}

func TestStartSelectedExceedsAvailable(t *testing.T) {
	quizzes, svc := newSessionService(t)
	quiz := seedQuiz(t, quizzes, 10, false, false,
		mcq("q1", 0, "a", "b"),
		mcq("q2", 0, "a", "b"),
	)

	started, _, err := svc.Start(context.Background(), takerID, quiz.ID)
	require.NoError(t, err)
	require.Len(t, started.Questions, 2)
}

func TestStartIsIdempotent(t *testing.T) {
	quizzes, svc := newSessionService(t)
	quiz := seedQuiz(t, quizzes, 2, false, false,
		mcq("q1", 0, "a", "b"),
		mcq("q2", 0, "a", "b"),
	)

	ctx := context.Background()
	first, created, err := svc.Start(ctx, takerID, quiz.ID)
	require.NoError(t, err)
	require.True(t, created)
	second, created, err := svc.Start(ctx, takerID, quiz.ID)
	require.NoError(t, err)
	require.False(t, created, "second start must resume, not create")
	require.Equal(t, first.SessionID, second.SessionID)
	require.Equal(t, first.Questions, second.Questions)
}

func TestStartErrors(t *testing.T) {
	quizzes, svc := newSessionService(t)
	empty := seedQuiz(t, quizzes, 5, false, false)

	ctx := context.Background()
	_, _, err := svc.Start(ctx, takerID, 999)
	require.ErrorIs(t, err, service.ErrQuizNotFound)

	_, _, err = svc.Start(ctx, takerID, empty.ID)
	require.ErrorIs(t, err, service.ErrQuestionsNotFound)
}

func TestGetHidesOtherUsersSessions(t *testing.T) {
	quizzes, svc := newSessionService(t)
	quiz := seedQuiz(t, quizzes, 1, false, false, mcq("q1", 0, "a", "b"))

	ctx := context.Background()
	started, _, err := svc.Start(ctx, takerID, quiz.ID)
	require.NoError(t, err)

	_, err = svc.Get(ctx, takerID+1, started.SessionID)
	require.ErrorIs(t, err, service.ErrSessionNotFound)

	_, err = svc.Get(ctx, takerID, "bogus")
	require.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestSaveAnswer(t *testing.T) {
	quizzes, svc := newSessionService(t)
	quiz := seedQuiz(t, quizzes, 2, false, false,
		mcq("q1", 0, "a", "b"),
		mcq("q2", 1, "a", "b"),
	)

	ctx := context.Background()
	started, _, err := svc.Start(ctx, takerID, quiz.ID)
	require.NoError(t, err)

	q1 := quiz.Questions[0].ID
	choice := correctChoice(t, quiz, q1)
	require.NoError(t, svc.SaveAnswer(ctx, takerID, model.SaveAnswerRequest{
		SessionID: started.SessionID, QuestionID: q1, ChoiceID: choice,
	}))

	got, err := svc.Get(ctx, takerID, started.SessionID)
	require.NoError(t, err)
	for _, q := range got.Questions {
		if q.QuestionID == q1 {
			require.NotNil(t, q.SelectedChoiceID)
			require.Equal(t, choice, *q.SelectedChoiceID)
		} else {
			require.Nil(t, q.SelectedChoiceID)
		}
	}
}

func TestSaveAnswerRejectsForeignReferences(t *testing.T) {
	quizzes, svc := newSessionService(t)
	quiz := seedQuiz(t, quizzes, 2, false, false,
		mcq("q1", 0, "a", "b"),
		mcq("q2", 1, "a", "b"),
	)

	ctx := context.Background()
	started, _, err := svc.Start(ctx, takerID, quiz.ID)
	require.NoError(t, err)

	// A choice that belongs to another question.
	err = svc.SaveAnswer(ctx, takerID, model.SaveAnswerRequest{
		SessionID:  started.SessionID,
		QuestionID: quiz.Questions[0].ID,
		ChoiceID:   quiz.Questions[1].Choices[0].ID,
	})
	require.ErrorIs(t, err, service.ErrInvalidAnswer)

	// A question outside the session.
	err = svc.SaveAnswer(ctx, takerID, model.SaveAnswerRequest{
		SessionID:  started.SessionID,
		QuestionID: 999,
		ChoiceID:   quiz.Questions[0].Choices[0].ID,
	})
	require.ErrorIs(t, err, service.ErrInvalidAnswer)

	// Unknown session.
	err = svc.SaveAnswer(ctx, takerID, model.SaveAnswerRequest{
		SessionID:  "bogus",
		QuestionID: quiz.Questions[0].ID,
		ChoiceID:   quiz.Questions[0].Choices[0].ID,
	})
	require.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestSubmitScoresSavedAnswers(t *testing.T) {
	quizzes, svc := newSessionService(t)
	quiz := seedQuiz(t, quizzes, 2, false, false,
		mcq("q1", 0, "a", "b", "c", "d"),
		mcq("q2", 2, "a", "b", "c", "d"),
	)

	ctx := context.Background()
	started, _, err := svc.Start(ctx, takerID, quiz.ID)
	require.NoError(t, err)

	q1, q2 := quiz.Questions[0].ID, quiz.Questions[1].ID
	require.NoError(t, svc.SaveAnswer(ctx, takerID, model.SaveAnswerRequest{
		SessionID: started.SessionID, QuestionID: q1, ChoiceID: correctChoice(t, quiz, q1),
	}))
	require.NoError(t, svc.SaveAnswer(ctx, takerID, model.SaveAnswerRequest{
		SessionID: started.SessionID, QuestionID: q2, ChoiceID: wrongChoice(t, quiz, q2),
	}))

	result, err := svc.Submit(ctx, takerID, model.SubmitRequest{SessionID: started.SessionID})
	require.NoError(t, err)
	require.Equal(t, 2, result.TotalQuestions)
	require.Equal(t, 1, result.CorrectAnswers)
	require.Equal(t, 50.0, result.Score)
	require.Len(t, result.Questions, 2)

	for _, q := range result.Questions {
		require.Equal(t, correctChoice(t, quiz, q.QuestionID), q.CorrectChoiceID)
		require.NotNil(t, q.SelectedChoiceID)
		if q.QuestionID == q1 {
			require.True(t, q.IsCorrect)
		} else {
			require.False(t, q.IsCorrect)
		}
	}
}

func TestSubmitScoreBounds(t *testing.T) {
	quizzes, svc := newSessionService(t)
	quiz := seedQuiz(t, quizzes, 2, false, false,
		mcq("q1", 0, "a", "b"),
		mcq("q2", 1, "a", "b"),
	)

	ctx := context.Background()

	// All correct.
	started, _, err := svc.Start(ctx, takerID, quiz.ID)
	require.NoError(t, err)
	answers := []model.SubmitAnswer{
		{QuestionID: quiz.Questions[0].ID, ChoiceID: correctChoice(t, quiz, quiz.Questions[0].ID)},
		{QuestionID: quiz.Questions[1].ID, ChoiceID: correctChoice(t, quiz, quiz.Questions[1].ID)},
	}
	result, err := svc.Submit(ctx, takerID, model.SubmitRequest{SessionID: started.SessionID, Answers: answers})
	require.NoError(t, err)
	require.Equal(t, 100.0, result.Score)

	// Nothing answered.
	started, _, err = svc.Start(ctx, takerID+1, quiz.ID)
	require.NoError(t, err)
	result, err = svc.Submit(ctx, takerID+1, model.SubmitRequest{SessionID: started.SessionID})
	require.NoError(t, err)
	require.Equal(t, 0.0, result.Score)
	require.Equal(t, 0, result.CorrectAnswers)
	for _, q := range result.Questions {
		require.False(t, q.IsCorrect)
		require.Nil(t, q.SelectedChoiceID)
	}
}

func TestSubmitMergesPayloadOverSaved(t *testing.T) {
	quizzes, svc := newSessionService(t)
	quiz := seedQuiz(t, quizzes, 1, false, false, mcq("q1", 0, "a", "b"))

	ctx := context.Background()
	started, _, err := svc.Start(ctx, takerID, quiz.ID)
	require.NoError(t, err)

	q1 := quiz.Questions[0].ID
	require.NoError(t, svc.SaveAnswer(ctx, takerID, model.SaveAnswerRequest{
		SessionID: started.SessionID, QuestionID: q1, ChoiceID: wrongChoice(t, quiz, q1),
	}))

	// The payload's answer wins over the saved one.
	result, err := svc.Submit(ctx, takerID, model.SubmitRequest{
		SessionID: started.SessionID,
		Answers:   []model.SubmitAnswer{{QuestionID: q1, ChoiceID: correctChoice(t, quiz, q1)}},
	})
	require.NoError(t, err)
	require.Equal(t, 100.0, result.Score)
}

func TestSubmitIgnoresInvalidEntries(t *testing.T) {
	quizzes, svc := newSessionService(t)
	quiz := seedQuiz(t, quizzes, 1, false, false, mcq("q1", 0, "a", "b"))

	ctx := context.Background()
	started, _, err := svc.Start(ctx, takerID, quiz.ID)
	require.NoError(t, err)

	q1 := quiz.Questions[0].ID
	result, err := svc.Submit(ctx, takerID, model.SubmitRequest{
		SessionID: started.SessionID,
		Answers: []model.SubmitAnswer{
			{QuestionID: 999, ChoiceID: 1},
			{QuestionID: q1, ChoiceID: 999},
			{QuestionID: q1, ChoiceID: correctChoice(t, quiz, q1)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 100.0, result.Score)
}

func TestCompletedSessionIsFinal(t *testing.T) {
	quizzes, svc := newSessionService(t)
	quiz := seedQuiz(t, quizzes, 1, false, false, mcq("q1", 0, "a", "b"))

	ctx := context.Background()
	started, _, err := svc.Start(ctx, takerID, quiz.ID)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, takerID, model.SubmitRequest{SessionID: started.SessionID})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, takerID, model.SubmitRequest{SessionID: started.SessionID})
	require.ErrorIs(t, err, service.ErrSessionCompleted)

	err = svc.SaveAnswer(ctx, takerID, model.SaveAnswerRequest{
		SessionID: started.SessionID, QuestionID: quiz.Questions[0].ID, ChoiceID: quiz.Questions[0].Choices[0].ID,
	})
	require.ErrorIs(t, err, service.ErrSessionCompleted)

	got, err := svc.Get(ctx, takerID, started.SessionID)
	require.NoError(t, err)
	require.True(t, got.IsCompleted)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Score)

	// A fresh start after completion opens a brand new session.
	fresh, _, err := svc.Start(ctx, takerID, quiz.ID)
	require.NoError(t, err)
	require.NotEqual(t, started.SessionID, fresh.SessionID)
}

type failingSessions struct {
	*storetest.Sessions
}

func (failingSessions) Create(context.Context, *model.QuizSnapshot) error {
	return errors.New("connection reset")
}

func TestStartLogsStorageFailure(t *testing.T) {
	quizzes := storetest.NewQuizzes()
	var buf bytes.Buffer
	svc := service.NewSessionService(quizzes,
		failingSessions{storetest.NewSessions(quizzes)},
		rand.New(rand.NewSource(42)), zerolog.New(&buf))

	quiz := seedQuiz(t, quizzes, 1, false, false, mcq("q1", 0, "a", "b"))
	_, _, err := svc.Start(context.Background(), takerID, quiz.ID)
	require.Error(t, err)
	require.Contains(t, buf.String(), `"level":"error"`)
	require.Contains(t, buf.String(), "create session failed")
	require.Contains(t, buf.String(), `"component":"session"`)
}
