package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a user-facing failure with a stable machine code and a French message.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches on Code so that errors.Is(err, ErrAlreadyVoted) holds for customised copies.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) WithInternal(err error) *Error {
	return &Error{HTTPStatus: e.HTTPStatus, Code: e.Code, Message: e.Message, Internal: err}
}

func (e *Error) WithMessage(message string) *Error {
	return &Error{HTTPStatus: e.HTTPStatus, Code: e.Code, Message: message, Internal: e.Internal}
}

func New(status int, code, message string) *Error {
	return &Error{HTTPStatus: status, Code: code, Message: message}
}

var (
	ErrValidation   = New(http.StatusBadRequest, "validation_error", "Requête invalide")
	ErrUnauthorized = New(http.StatusUnauthorized, "unauthorized", "Accès non autorisé")
	ErrNotFound     = New(http.StatusNotFound, "not_found", "Ressource introuvable")
	ErrBillNotFound = New(http.StatusNotFound, "not_found", "Projet de loi introuvable")
	ErrVoteClosed   = New(http.StatusBadRequest, "vote_closed", "Le vote pour ce projet de loi est terminé")
	ErrRateLimited  = New(http.StatusTooManyRequests, "rate_limited", "Limite de votes atteinte. Veuillez réessayer plus tard.")
	ErrAlreadyVoted = New(http.StatusConflict, "already_voted", "Vous avez déjà voté sur ce projet de loi")
	ErrConflict     = New(http.StatusConflict, "conflict", "La ressource existe déjà")
	ErrInternal     = New(http.StatusInternalServerError, "internal_error", "Une erreur interne est survenue")
)

// ToHTTP maps any error onto a status code and the JSON error body.
// Errors that are not *Error become internal errors without leaking details.
func ToHTTP(err error) (int, map[string]any) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal
	}
	return appErr.HTTPStatus, map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	}
}
