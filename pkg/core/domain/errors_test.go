package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
)

func TestErrors_AreDistinct(t *testing.T) {
	all := []error{
		domain.ErrMissingField,
		domain.ErrInvalidDate,
		domain.ErrNotFoundOrInactive,
		domain.ErrExpired,
		domain.ErrNotFound,
		domain.ErrForbidden,
		domain.ErrCodeSpaceExhausted,
		domain.ErrDuplicateCode,
		domain.ErrStorageUnavailable,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}

func TestStorageError_MatchesUnavailableAndCause(t *testing.T) {
	err := domain.NewStorageError("find link", context.DeadlineExceeded)

	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "find link")
}

func TestNewStorageError_Nil(t *testing.T) {
	assert.NoError(t, domain.NewStorageError("noop", nil))
}
