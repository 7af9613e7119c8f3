package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		code string
		want int
	}{
		{"validation maps to 400", ErrCodeValidation, http.StatusBadRequest},
		{"bad request maps to 400", ErrCodeBadRequest, http.StatusBadRequest},
		{"not found maps to 404", ErrCodeNotFound, http.StatusNotFound},
		{"already exists maps to 409", ErrCodeAlreadyExists, http.StatusConflict},
		{"stale state maps to 409", ErrCodeStaleState, http.StatusConflict},
		{"allocation conflict maps to 409", ErrCodeAllocationConflict, http.StatusConflict},
		{"illegal transition maps to 422", ErrCodeIllegalTransition, http.StatusUnprocessableEntity},
		{"insufficient balance maps to 422", ErrCodeInsufficientBalance, http.StatusUnprocessableEntity},
		{"unbalanced netting maps to 422", ErrCodeUnbalancedNetting, http.StatusUnprocessableEntity},
		{"insufficient targets maps to 422", ErrCodeInsufficientTargets, http.StatusUnprocessableEntity},
		{"moderation locked maps to 422", ErrCodeModerationLocked, http.StatusUnprocessableEntity},
		{"internal maps to 500", ErrCodeInternal, http.StatusInternalServerError},
		{"unrecognized code defaults to 500", "ERR_SOMETHING_NEW", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}
