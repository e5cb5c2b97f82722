package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinels_AreDistinct(t *testing.T) {
	all := []error{ErrInvalidInput, ErrFetchFailure, ErrParseFailure, ErrRenderFailure}
	for i, a := range all {
		assert.NotEmpty(t, a.Error())
		for j, b := range all {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
	}
}

func TestServiceError_MatchesStageAndCause(t *testing.T) {
	err := NewServiceError(StageFetch, context.DeadlineExceeded)

	assert.ErrorIs(t, err, ErrFetchFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrParseFailure)
	assert.Equal(t, "fetch failed: context deadline exceeded", err.Error())

	stage, ok := StageOf(errors.Join(errors.New("outer"), err))
	assert.True(t, ok)
	assert.Equal(t, StageFetch, stage)
}

func TestServiceError_Messages(t *testing.T) {
	cause := errors.New("boom")
	assert.Equal(t, "invalid input: boom", NewServiceError(StageInput, cause).Error())
	assert.Equal(t, "parse failed: boom", NewServiceError(StageParse, cause).Error())
	assert.Equal(t, "render failed: boom", NewServiceError(StageRender, cause).Error())

	unknown := NewServiceError(Stage("other"), cause)
	assert.ErrorIs(t, unknown, cause)
	_, ok := StageOf(cause)
	assert.False(t, ok)
}
