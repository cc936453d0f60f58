package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("year", "bad year")))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("create: %w", Conflict("dup"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestIs(t *testing.T) {
	assert.True(t, Is(NotFound("title not found"), KindNotFound))
	assert.False(t, Is(NotFound("title not found"), KindConflict))
	assert.False(t, Is(nil, KindInternal))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("load title", cause)
	assert.Equal(t, "load title: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestValidationCarriesField(t *testing.T) {
	err := Validation("score", "score must be between 1 and 10")
	assert.Equal(t, map[string]string{"score": "score must be between 1 and 10"}, err.Fields)
}
