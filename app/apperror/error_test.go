package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without internal error",
			err:      ErrBillNotFound,
			expected: "not_found: Projet de loi introuvable",
		},
		{
			name:     "with internal error",
			err:      ErrInternal.WithInternal(errors.New("database connection failed")),
			expected: "internal_error: Une erreur interne est survenue (database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorIsMatchesCode(t *testing.T) {
	custom := ErrAlreadyVoted.WithMessage(`Vous avez déjà voté "For" pour ce projet de loi`)
	wrapped := fmt.Errorf("cast vote: %w", custom)

	if !errors.Is(wrapped, ErrAlreadyVoted) {
		t.Error("Expected customised error to match ErrAlreadyVoted")
	}
	if errors.Is(wrapped, ErrRateLimited) {
		t.Error("Did not expect match with ErrRateLimited")
	}
}

func TestToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"app error", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"wrapped app error", fmt.Errorf("x: %w", ErrVoteClosed), http.StatusBadRequest, "vote_closed"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ToHTTP(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			errBody := body["error"].(map[string]any)
			if errBody["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", errBody["code"], tt.wantCode)
			}
			if body["success"] != false {
				t.Error("Expected success=false")
			}
		})
	}
}
