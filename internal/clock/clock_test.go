package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeFiresInOrder(t *testing.T) {
	c := NewFake()
	var got []string
	c.AfterFunc(200*time.Millisecond, func() { got = append(got, "late") })
	c.AfterFunc(100*time.Millisecond, func() { got = append(got, "early") })

	c.Advance(50 * time.Millisecond)
	assert.Empty(t, got)
	assert.Equal(t, 2, c.Pending())

	c.Advance(200 * time.Millisecond)
	assert.Equal(t, []string{"early", "late"}, got)
	assert.Zero(t, c.Pending())
}

func TestFakeStop(t *testing.T) {
	c := NewFake()
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	c.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestFakeStopAfterFire(t *testing.T) {
	c := NewFake()
	tm := c.AfterFunc(time.Millisecond, func() {})
	c.Advance(time.Millisecond)
	assert.False(t, tm.Stop())
}
