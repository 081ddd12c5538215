package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetentionScore_FreshAccessIsHigh(t *testing.T) {
	now := time.Now()
	score := RetentionScore(now, 100, now, DefaultDecayLambda)
	assert.InDelta(t, 1.0, score, 1e-9, "no decay yet plus a frequency boost should clamp at 1")
}

func TestRetentionScore_DecaysOverTime(t *testing.T) {
	now := time.Now()
	recent := RetentionScore(now.Add(-24*time.Hour), 0, now, DefaultDecayLambda)
	stale := RetentionScore(now.Add(-240*time.Hour), 0, now, DefaultDecayLambda)
	assert.Greater(t, recent, stale)
}

func TestRetentionScore_NeverAccessedYetClampsToZeroLowerBound(t *testing.T) {
	now := time.Now()
	score := RetentionScore(now.Add(-24*365*10*time.Hour), 0, now, DefaultDecayLambda)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestRetentionScore_FutureAccessTreatedAsZeroDays(t *testing.T) {
	now := time.Now()
	future := RetentionScore(now.Add(time.Hour), 0, now, DefaultDecayLambda)
	zero := RetentionScore(now, 0, now, DefaultDecayLambda)
	assert.Equal(t, zero, future, "a last_accessed_at after now must not produce negative days_since_access")
}

func TestRetentionScore_HigherAccessCountBoostsScore(t *testing.T) {
	now := time.Now()
	past := now.Add(-72 * time.Hour)
	low := RetentionScore(past, 1, now, DefaultDecayLambda)
	high := RetentionScore(past, 50, now, DefaultDecayLambda)
	assert.Greater(t, high, low)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-1))
	assert.Equal(t, 1.0, clamp01(2))
	assert.Equal(t, 0.5, clamp01(0.5))
}
