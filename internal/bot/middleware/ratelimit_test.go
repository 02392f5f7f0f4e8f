package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(100), "запрос %d", i+1)
	}
	assert.False(t, rl.Allow(100))

	// лимит на пользователя, а не глобальный
	assert.True(t, rl.Allow(200))
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)
	defer rl.Close()

	assert.True(t, rl.Allow(100))
	assert.False(t, rl.Allow(100))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow(100))
}
