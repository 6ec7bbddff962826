package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindInvalid:      http.StatusBadRequest,
		KindRejected:     http.StatusBadRequest,
		KindDuplicate:    http.StatusBadRequest,
		KindUnauthorized: http.StatusUnauthorized,
		KindForbidden:    http.StatusForbidden,
		KindNotFound:     http.StatusNotFound,
		KindConflict:     http.StatusConflict,
		KindInternal:     http.StatusInternalServerError,
	}
	for k, want := range cases {
		assert.Equal(t, want, k.Status())
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("loading order: %w", NotFound("order %d not found", 7))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindConflict))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause, "could not load order")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "could not load order", err.Message)
}
