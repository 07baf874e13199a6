package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheError(t *testing.T) {
	t.Run("message includes the type", func(t *testing.T) {
		err := ConnectionError("dial failed", nil)
		assert.Contains(t, err.Error(), "connection")
		assert.Contains(t, err.Error(), "dial failed")
	})

	t.Run("wraps the cause", func(t *testing.T) {
		cause := errors.New("socket closed")
		err := ConnectionError("dial failed", cause)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "socket closed")
	})

	t.Run("context is carried", func(t *testing.T) {
		err := TimeoutError("get").WithContext("key", "user:42")
		assert.Equal(t, "user:42", err.Context["key"])
		assert.Contains(t, err.Error(), "user:42")
	})

	t.Run("value too large records size and limit", func(t *testing.T) {
		err := ValueTooLargeError("big", 2048, 1024)
		assert.Equal(t, 2048, err.Context["size"])
		assert.Equal(t, 1024, err.Context["limit"])
	})
}

func TestIsType(t *testing.T) {
	err := CircuitOpenError("remote")

	assert.True(t, IsType(err, ErrTypeCircuitOpen))
	assert.False(t, IsType(err, ErrTypeTimeout))
	assert.False(t, IsType(errors.New("plain"), ErrTypeCircuitOpen))
	assert.False(t, IsType(nil, ErrTypeCircuitOpen))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeValidation, GetType(ValidationError("bad input")))
	assert.Equal(t, ErrTypeUnavailable, GetType(UnavailableError("redis")))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}
