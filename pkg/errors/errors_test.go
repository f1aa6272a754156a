package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	wrapped := fmt.Errorf("resolve: %w", Clone(ErrAmbiguousReference, "hop 1 (User): 2 users records with email=a@b.c"))

	appErr := FromError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, "AMBIGUOUS_REFERENCE", appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
}

func TestFromErrorFallsBackToInternal(t *testing.T) {
	appErr := FromError(stdErrors.New("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Contains(t, appErr.Error(), "boom")
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrStoreUnavailable, "mongo timed out")
	assert.Equal(t, "mongo timed out", clone.Message)
	assert.Equal(t, "identity store unavailable", ErrStoreUnavailable.Message)
	assert.Nil(t, FromError(nil))
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("get job: %w", Clone(ErrCacheMiss, "audit job expired"))
	assert.True(t, stdErrors.Is(err, ErrCacheMiss))
	assert.False(t, stdErrors.Is(err, ErrNotFound))
	assert.False(t, stdErrors.Is(stdErrors.New("cache miss"), ErrCacheMiss))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusOf(nil))
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(fmt.Errorf("scan: %w", ErrStoreUnavailable)))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(stdErrors.New("boom")))
}

func TestPredefinedCodesAreDistinct(t *testing.T) {
	all := []*Error{
		ErrValidation, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrInternal,
		ErrReferenceNotFound, ErrAmbiguousReference, ErrStoreUnavailable, ErrCacheMiss,
	}
	seen := make(map[string]bool, len(all))
	for _, e := range all {
		assert.False(t, seen[e.Code], e.Code)
		seen[e.Code] = true
	}
	assert.Equal(t, "validation failed: boom", Wrap(stdErrors.New("boom"), ErrValidation.Code, ErrValidation.Status, ErrValidation.Message).Error())
}
