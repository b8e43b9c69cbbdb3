package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/repository"
	"github.com/rs/zerolog"
)

// Common quiz errors.
var (
	ErrQuizNotFound          = errors.New("quiz does not exist")
	ErrQuestionsNotFound     = errors.New("no questions on the requested page")
	ErrInvalidReference      = errors.New("referenced question or choice does not belong to the quiz")
	ErrQuizHasActiveSessions = errors.New("quiz has incomplete sessions")
)

// StructureError reports per-field problems with a submitted
// question/choice tree.
type StructureError struct {
	Fields map[string]string
}

func (e *StructureError) Error() string { return "invalid quiz structure" }

// QuizStore is the persistence surface QuizService depends on.
type QuizStore interface {
	Create(ctx context.Context, quiz *model.Quiz) error
	GetByID(ctx context.Context, id int64) (*model.Quiz, error)
	GetWithAuthor(ctx context.Context, id int64) (*model.Quiz, string, error)
	Questions(ctx context.Context, quizID int64) ([]model.Question, error)
	QuestionsPage(ctx context.Context, quizID int64, limit, offset int, randomize bool) ([]model.Question, error)
	CountQuestions(ctx context.Context, quizID int64) (int, error)
	ApplyUpdate(ctx context.Context, plan *model.QuizUpdatePlan) error
	Delete(ctx context.Context, quizID, ownerID int64) error
	ListPage(ctx context.Context, limit, offset int) ([]model.QuizListRow, int64, error)
	AttemptStates(ctx context.Context, userID int64, quizIDs []int64) (map[int64]model.AttemptState, error)
}

// Quiz list and detail pagination bounds.
const (
	defaultPageSize     = 10
	maxPageSize         = 100
	maxQuestionsPerPage = 10
)

// QuizService implements quiz authoring and browsing.
type QuizService struct {
	quizzes QuizStore
	log     zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(quizzes QuizStore, log zerolog.Logger) *QuizService {
	return &QuizService{
		quizzes: quizzes,
		log:     log.With().Str("component", "quiz").Logger(),
	}
}

// Create validates and persists a quiz with its full question/choice tree.
// When selected_questions is omitted it defaults to the question count.
func (s *QuizService) Create(ctx context.Context, userID int64, req model.CreateQuizRequest) (*model.Quiz, error) {
	if fields := validateStructure(req.Questions); len(fields) > 0 {
		return nil, &StructureError{Fields: fields}
	}

	selected := req.SelectedQuestions
	if selected == 0 {
		selected = len(req.Questions)
	}

	quiz := &model.Quiz{
		Title:                 req.Title,
		Description:           req.Description,
		UserID:                userID,
		SelectedQuestions:     selected,
		IsRandomizedQuestions: req.IsRandomizedQuestions,
		IsRandomizedChoices:   req.IsRandomizedChoices,
		Questions:             make([]model.Question, 0, len(req.Questions)),
	}
	for _, qs := range req.Questions {
		q := model.Question{Text: qs.Text, Choices: make([]model.Choice, 0, len(qs.Choices))}
		for _, cs := range qs.Choices {
			correct := cs.IsCorrect
			q.Choices = append(q.Choices, model.Choice{Text: cs.Text, IsCorrect: &correct})
		}
		quiz.Questions = append(quiz.Questions, q)
	}

	if err := s.quizzes.Create(ctx, quiz); err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("create quiz failed")
		return nil, fmt.Errorf("create quiz: %w", err)
	}

	s.log.Info().Int64("quiz_id", quiz.ID).Int64("user_id", userID).Msg("quiz created")
	return quiz, nil
}

// Update reconciles a quiz's stored question/choice tree against the
// submitted one and applies the resulting plan atomically.
func (s *QuizService) Update(ctx context.Context, req model.UpdateQuizRequest) error {
	if fields := validateStructure(req.Questions); len(fields) > 0 {
		return &StructureError{Fields: fields}
	}

	if _, err := s.quizzes.GetByID(ctx, req.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuizNotFound
		}
		s.log.Error().Err(err).Int64("quiz_id", req.ID).Msg("fetch quiz failed")
		return fmt.Errorf("fetch quiz: %w", err)
	}

	existing, err := s.quizzes.Questions(ctx, req.ID)
	if err != nil {
		s.log.Error().Err(err).Int64("quiz_id", req.ID).Msg("fetch questions failed")
		return fmt.Errorf("fetch questions: %w", err)
	}

	plan, err := BuildUpdatePlan(existing, req)
	if err != nil {
		return err
	}

	if err := s.quizzes.ApplyUpdate(ctx, plan); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuizNotFound
		}
		s.log.Error().Err(err).Int64("quiz_id", req.ID).Msg("apply quiz update failed")
		return fmt.Errorf("apply update: %w", err)
	}

	s.log.Info().Int64("quiz_id", req.ID).
		Int("updated", len(plan.UpdateQuestions)).
		Int("inserted", len(plan.InsertQuestions)).
		Int("deleted", len(plan.DeleteQuestionIDs)).
		Msg("quiz updated")
	return nil
}

// BuildUpdatePlan diffs the stored question/choice tree against the
// submitted one. Specs carrying an id update that row, specs without one
// insert, and stored rows the payload no longer references are deleted.
// An id that does not belong to the quiz (or, for a choice, to its
// question) fails the whole update with ErrInvalidReference.
func BuildUpdatePlan(existing []model.Question, req model.UpdateQuizRequest) (*model.QuizUpdatePlan, error) {
	byQuestion := make(map[int64]model.Question, len(existing))
	for _, q := range existing {
		byQuestion[q.ID] = q
	}

	plan := &model.QuizUpdatePlan{
		QuizID:                req.ID,
		Title:                 req.Title,
		Description:           req.Description,
		SelectedQuestions:     req.SelectedQuestions,
		IsRandomizedQuestions: req.IsRandomizedQuestions,
		IsRandomizedChoices:   req.IsRandomizedChoices,
	}
	if plan.SelectedQuestions == 0 {
		plan.SelectedQuestions = len(req.Questions)
	}

	keptQuestions := make(map[int64]bool, len(req.Questions))
	for _, qs := range req.Questions {
		if qs.ID == nil {
			insert := model.QuestionInsert{Text: qs.Text}
			for _, cs := range qs.Choices {
				insert.Choices = append(insert.Choices, model.ChoiceInsert{Text: cs.Text, IsCorrect: cs.IsCorrect})
			}
			plan.InsertQuestions = append(plan.InsertQuestions, insert)
			continue
		}

		stored, ok := byQuestion[*qs.ID]
		if !ok {
			return nil, fmt.Errorf("question %d: %w", *qs.ID, ErrInvalidReference)
		}
		keptQuestions[*qs.ID] = true

		storedChoices := make(map[int64]bool, len(stored.Choices))
		for _, c := range stored.Choices {
			storedChoices[c.ID] = true
		}

		update := model.QuestionUpdate{ID: *qs.ID, Text: qs.Text}
		keptChoices := make(map[int64]bool, len(qs.Choices))
		for _, cs := range qs.Choices {
			if cs.ID == nil {
				update.InsertChoices = append(update.InsertChoices, model.ChoiceInsert{Text: cs.Text, IsCorrect: cs.IsCorrect})
				continue
			}
			if !storedChoices[*cs.ID] {
				return nil, fmt.Errorf("choice %d: %w", *cs.ID, ErrInvalidReference)
			}
			keptChoices[*cs.ID] = true
			update.UpdateChoices = append(update.UpdateChoices, model.ChoiceUpdate{ID: *cs.ID, Text: cs.Text, IsCorrect: cs.IsCorrect})
		}
		for _, c := range stored.Choices {
			if !keptChoices[c.ID] {
				update.DeleteChoiceIDs = append(update.DeleteChoiceIDs, c.ID)
			}
		}
		plan.UpdateQuestions = append(plan.UpdateQuestions, update)
	}

	for _, q := range existing {
		if !keptQuestions[q.ID] {
			plan.DeleteQuestionIDs = append(plan.DeleteQuestionIDs, q.ID)
		}
	}

	return plan, nil
}

// Delete removes a quiz owned by the caller. Quizzes with incomplete
// sessions cannot be deleted.
func (s *QuizService) Delete(ctx context.Context, quizID, ownerID int64) error {
	if err := s.quizzes.Delete(ctx, quizID, ownerID); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return ErrQuizNotFound
		case errors.Is(err, repository.ErrQuizHasActiveSessions):
			return ErrQuizHasActiveSessions
		default:
			s.log.Error().Err(err).Int64("quiz_id", quizID).Msg("delete quiz failed")
			return fmt.Errorf("delete quiz: %w", err)
		}
	}
	s.log.Info().Int64("quiz_id", quizID).Int64("user_id", ownerID).Msg("quiz deleted")
	return nil
}

// List returns one newest-first page of quizzes. Admins see the author
// name, everyone else sees their own attempt status per quiz.
func (s *QuizService) List(ctx context.Context, claims *Claims, page, pageSize int) (*model.QuizListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	rows, total, err := s.quizzes.ListPage(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		s.log.Error().Err(err).Int("page", page).Msg("list quizzes failed")
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	var states map[int64]model.AttemptState
	if !claims.IsAdmin {
		quizIDs := make([]int64, 0, len(rows))
		for _, row := range rows {
			quizIDs = append(quizIDs, row.ID)
		}
		states, err = s.quizzes.AttemptStates(ctx, claims.UserID, quizIDs)
		if err != nil {
			s.log.Error().Err(err).Int64("user_id", claims.UserID).Msg("fetch attempt states failed")
			return nil, fmt.Errorf("attempt states: %w", err)
		}
	}

	items := make([]model.QuizListItem, 0, len(rows))
	for _, row := range rows {
		item := model.QuizListItem{
			QuizID:                row.ID,
			Title:                 row.Title,
			Description:           row.Description,
			TotalQuestions:        row.TotalQuestions,
			SelectedQuestions:     row.SelectedQuestions,
			IsRandomizedQuestions: row.IsRandomizedQuestions,
			IsRandomizedChoices:   row.IsRandomizedChoices,
			CreatedAt:             row.CreatedAt,
			UpdatedAt:             row.UpdatedAt,
		}
		if claims.IsAdmin {
			item.CreatedBy = row.CreatedBy
		} else {
			item.Status = states[row.ID].Status()
		}
		items = append(items, item)
	}

	return &model.QuizListResponse{
		TotalQuizzes: total,
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   pageCount(int(total), pageSize),
		Quizzes:      items,
	}, nil
}

// Detail returns one page of a quiz's questions. The page size is the
// quiz's selected_questions capped at ten. Non-admin readers never see
// correctness flags, and randomized quizzes reshuffle on every call.
func (s *QuizService) Detail(ctx context.Context, claims *Claims, quizID int64, page int) (*model.QuizDetailResponse, error) {
	quiz, author, err := s.quizzes.GetWithAuthor(ctx, quizID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		s.log.Error().Err(err).Int64("quiz_id", quizID).Msg("fetch quiz failed")
		return nil, fmt.Errorf("fetch quiz: %w", err)
	}

	total, err := s.quizzes.CountQuestions(ctx, quizID)
	if err != nil {
		s.log.Error().Err(err).Int64("quiz_id", quizID).Msg("count questions failed")
		return nil, fmt.Errorf("count questions: %w", err)
	}

	perPage := quiz.SelectedQuestions
	if perPage > maxQuestionsPerPage {
		perPage = maxQuestionsPerPage
	}
	if perPage < 1 {
		perPage = 1
	}
	totalPages := pageCount(total, perPage)

	if page < 1 {
		page = 1
	}
	if total == 0 || page > totalPages {
		return nil, ErrQuestionsNotFound
	}

	questions, err := s.quizzes.QuestionsPage(ctx, quizID, perPage, (page-1)*perPage, quiz.IsRandomizedQuestions)
	if err != nil {
		s.log.Error().Err(err).Int64("quiz_id", quizID).Msg("fetch questions failed")
		return nil, fmt.Errorf("fetch questions: %w", err)
	}

	if !claims.IsAdmin {
		for qi := range questions {
			for ci := range questions[qi].Choices {
				questions[qi].Choices[ci].IsCorrect = nil
			}
		}
	}

	resp := &model.QuizDetailResponse{
		QuizID:                quiz.ID,
		Title:                 quiz.Title,
		Description:           quiz.Description,
		IsRandomizedQuestions: quiz.IsRandomizedQuestions,
		IsRandomizedChoices:   quiz.IsRandomizedChoices,
		SelectedQuestions:     quiz.SelectedQuestions,
		TotalQuestions:        total,
		CreatedAt:             &quiz.CreatedAt,
		UpdatedAt:             quiz.UpdatedAt,
		CurrentPage:           page,
		TotalPages:            totalPages,
		QuestionsPerPage:      perPage,
		Questions:             questions,
	}
	if claims.IsAdmin {
		resp.CreatedBy = author
	}
	return resp, nil
}

// validateStructure checks every question has at least two choices with
// exactly one marked correct.
func validateStructure(questions []model.QuestionSpec) map[string]string {
	fields := make(map[string]string)
	if len(questions) == 0 {
		fields["questions"] = "at least one question is required"
		return fields
	}
	for i, q := range questions {
		key := fmt.Sprintf("questions[%d]", i)
		if len(q.Choices) < 2 {
			fields[key] = "a question needs at least two choices"
			continue
		}
		correct := 0
		for _, c := range q.Choices {
			if c.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			fields[key] = "a question needs exactly one correct choice"
		}
	}
	return fields
}

func pageCount(total, perPage int) int {
	if total == 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
