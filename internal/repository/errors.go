package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Storage-level sentinel errors. Services translate these into their own
// domain errors; repositories additionally bubble pgx.ErrNoRows for plain
// single-row lookups.
var (
	// ErrDuplicate is returned when an insert hits a unique constraint
	// (taken username, concurrent open-session creation).
	ErrDuplicate = errors.New("repository: duplicate row")

	// ErrSessionCompleted is returned by mutating session operations when
	// the locked session row is already completed.
	ErrSessionCompleted = errors.New("repository: session already completed")

	// ErrQuestionNotInSession is returned when an answer references a
	// question outside the session's frozen set.
	ErrQuestionNotInSession = errors.New("repository: question not in session")

	// ErrChoiceMismatch is returned when an answer's choice is not among
	// the frozen choices of the referenced question.
	ErrChoiceMismatch = errors.New("repository: choice does not belong to question")

	// ErrQuizHasActiveSessions blocks quiz deletion while incomplete
	// sessions still reference the quiz.
	ErrQuizHasActiveSessions = errors.New("repository: quiz has active sessions")
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
