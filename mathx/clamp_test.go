package mathx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	t.Run("should keep values inside the range", func(t *testing.T) {
		assert.Equal(t, 5, Clamp(5, 1, 10))
		assert.Equal(t, 1.5, Clamp(1.5, 1, 2))
	})

	t.Run("should clamp values outside the range", func(t *testing.T) {
		assert.Equal(t, 1, Clamp(0, 1, 10))
		assert.Equal(t, 10, Clamp(50, 1, 10))
		assert.Equal(t, int32(1), Clamp(int32(-3), 1, 100))
	})

	t.Run("should work on durations through their underlying type", func(t *testing.T) {
		d := Clamp(int64(5*time.Minute), int64(time.Millisecond), int64(time.Minute))
		assert.Equal(t, time.Minute, time.Duration(d))
	})
}
