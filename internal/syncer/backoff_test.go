package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_DoublesToCapAndResets(t *testing.T) {
	b := NewBackoff(30*time.Second, 120*time.Second)

	assert.Equal(t, 30*time.Second, b.Current())
	assert.Equal(t, 60*time.Second, b.Fail())
	assert.Equal(t, 120*time.Second, b.Fail())
	assert.Equal(t, 120*time.Second, b.Fail())

	b.Reset()
	assert.Equal(t, 30*time.Second, b.Current())
}

func TestBackoff_DefaultsAndCapFloor(t *testing.T) {
	b := NewBackoff(0, 0)
	assert.Equal(t, 30*time.Second, b.Current())
	assert.Equal(t, 30*time.Second, b.Fail())

	b = NewBackoff(10*time.Second, 5*time.Second)
	assert.Equal(t, 10*time.Second, b.Current())
	assert.Equal(t, 10*time.Second, b.Fail())
}
