package response

import "net/http"

// Code is a stable integer error code carried in every response envelope.
// Values are part of the wire contract and must never be renumbered.
type Code int

const (
	CodeSuccess               Code = 0
	CodeFail                  Code = 1
	CodeUserNotExists         Code = 2
	CodeUserAlreadyExists     Code = 3
	CodeInvalidPassword       Code = 4
	CodeNotAdmin              Code = 5
	CodeQuizNotFound          Code = 6
	CodeSessionNotFound       Code = 7
	CodeQuestionsNotFound     Code = 8
	CodeSessionCompleted      Code = 9
	CodeDBRunFailed           Code = 10
	CodeInvalidReference      Code = 11
	CodeValidationFailed      Code = 12
	CodeUnauthorized          Code = 13
	CodeQuizHasActiveSessions Code = 14
	CodeRateLimited           Code = 15
)

// Desc returns the stable symbolic name for a code. Clients switch on
// either the integer or this string; both are frozen.
func (c Code) Desc() string {
	switch c {
	case CodeSuccess:
		return "SUCCESS"
	case CodeFail:
		return "FAIL"
	case CodeUserNotExists:
		return "USER_NOT_EXISTS"
	case CodeUserAlreadyExists:
		return "USER_ALREADY_EXISTS"
	case CodeInvalidPassword:
		return "INVALID_PASSWORD"
	case CodeNotAdmin:
		return "NOT_ADMIN"
	case CodeQuizNotFound:
		return "QUIZ_NOT_FOUND"
	case CodeSessionNotFound:
		return "SESSION_NOT_FOUND"
	case CodeQuestionsNotFound:
		return "QUESTIONS_NOT_FOUND"
	case CodeSessionCompleted:
		return "SESSION_COMPLETED"
	case CodeDBRunFailed:
		return "DB_RUN_FAILED"
	case CodeInvalidReference:
		return "INVALID_REFERENCE"
	case CodeValidationFailed:
		return "VALIDATION_FAILED"
	case CodeUnauthorized:
		return "UNAUTHORIZED"
	case CodeQuizHasActiveSessions:
		return "QUIZ_HAS_ACTIVE_SESSIONS"
	case CodeRateLimited:
		return "RATE_LIMITED"
	default:
		return "UNKNOWN"
	}
}

// HTTPStatus maps a code to its HTTP status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSuccess:
		return http.StatusOK
	case CodeUserNotExists, CodeQuizNotFound, CodeSessionNotFound, CodeQuestionsNotFound:
		return http.StatusNotFound
	case CodeUserAlreadyExists, CodeSessionCompleted, CodeQuizHasActiveSessions:
		return http.StatusConflict
	case CodeInvalidPassword, CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotAdmin:
		return http.StatusForbidden
	case CodeInvalidReference, CodeValidationFailed:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
