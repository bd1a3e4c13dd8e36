package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixed(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewFixed(base)

	assert.Equal(t, base, c.Now())

	c.Advance(90 * time.Minute)
	assert.Equal(t, base.Add(90*time.Minute), c.Now())

	c.Set(base)
	assert.Equal(t, base, c.Now())
}

func TestSystem(t *testing.T) {
	before := time.Now()
	got := NewSystem().Now()
	assert.False(t, got.Before(before))
}
