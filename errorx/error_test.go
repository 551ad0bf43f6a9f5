package errorx

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Run("should return clinia error from stack", func(t *testing.T) {
		err := AlreadyExistsErrorf("test")
		serr := errors.WithStack(err)

		cerr, ok := IsCliniaError(serr)
		require.True(t, ok)
		assert.Equal(t, ErrorTypeAlreadyExists, cerr.Type)
	})

	t.Run("should return a clinia error from a value", func(t *testing.T) {
		err := CliniaError{Type: ErrorTypeInternal, Message: "boom"}

		_, ok := IsCliniaError(err)
		assert.True(t, ok)
	})

	t.Run("should not return a clinia error for an unspecified type", func(t *testing.T) {
		_, ok := IsCliniaError(&CliniaError{Message: "test"})
		assert.False(t, ok)
	})

	t.Run("should return is not found from wrapped error", func(t *testing.T) {
		err := fmt.Errorf("wrapped: %w", NotFoundErrorf("test"))
		assert.True(t, IsNotFoundError(err))
		assert.False(t, IsAbortedError(err))
	})

	t.Run("should format the error with its type", func(t *testing.T) {
		assert.Equal(t, "[ABORTED] version conflict", AbortedErrorf("version %s", "conflict").Error())
	})

	t.Run("should record a stack trace", func(t *testing.T) {
		err := InternalErrorf("test")
		frames := err.StackTrace().Frames()
		require.NotEmpty(t, frames)
		assert.Contains(t, frames[0].Function, "TestError")
	})

	t.Run("should unwrap the original error", func(t *testing.T) {
		cause := errors.New("cause")
		err := UnavailableErrorf("unavailable").WithOriginalError(cause)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("should append details to existing error", func(t *testing.T) {
		cerr := FailedPreconditionErrorf("test")
		cerr = cerr.WithDetails(NotFoundErrorf("testnotfound"))
		assert.Equal(t, []CliniaError{
			{Type: ErrorTypeNotFound, Message: "testnotfound"},
		}, cerr.Details)

		cerr2 := cerr.WithDetails(InvalidArgumentErrorf("testinvalid"))
		assert.Equal(t, []CliniaError{
			{Type: ErrorTypeNotFound, Message: "testnotfound"},
			{Type: ErrorTypeInvalidArgument, Message: "testinvalid"},
		}, cerr2.Details)
		assert.Len(t, cerr.Details, 1)
	})

	t.Run("should parse an error message", func(t *testing.T) {
		cerr, err := NewCliniaErrorFromMessage("[NOT_FOUND] index [foo] is missing")
		require.NoError(t, err)
		assert.Equal(t, ErrorTypeNotFound, cerr.Type)
		assert.Equal(t, "index [foo] is missing", cerr.Message)

		_, err = NewCliniaErrorFromMessage("[WHATEVER] nope")
		assert.Error(t, err)

		_, err = NewCliniaErrorFromMessage("nope")
		assert.Error(t, err)
	})
}

func TestErrorTypeHTTPStatus(t *testing.T) {
	for _, tc := range []struct {
		t        ErrorType
		expected int
	}{
		{ErrorTypeAborted, http.StatusConflict},
		{ErrorTypeAlreadyExists, http.StatusConflict},
		{ErrorTypeInvalidArgument, http.StatusBadRequest},
		{ErrorTypeNotFound, http.StatusNotFound},
		{ErrorTypeUnavailable, http.StatusServiceUnavailable},
		{ErrorTypePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{ErrorTypeInternal, http.StatusInternalServerError},
		{ErrorTypeUnspecified, http.StatusInternalServerError},
	} {
		t.Run(tc.t.String(), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.t.HTTPStatus())
		})
	}
}

func TestRetryableError(t *testing.T) {
	t.Run("should find a retryable error in the chain", func(t *testing.T) {
		err := fmt.Errorf("wrapped: %w", NewRetryableError(InternalErrorf("boom")))
		re, ok := IsRetryableError(err)
		require.True(t, ok)
		assert.True(t, IsInternalError(re))
		assert.Equal(t, "Retryable - [INTERNAL] boom", re.Error())
	})

	t.Run("should not find a retryable error", func(t *testing.T) {
		_, ok := IsRetryableError(InternalErrorf("boom"))
		assert.False(t, ok)
	})
}
