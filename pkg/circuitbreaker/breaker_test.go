package circuitbreaker

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_PassesThroughSuccess(t *testing.T) {
	b := New("test")

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestDo_PassesThroughFailure(t *testing.T) {
	b := New("test")

	boom := errors.New("boom")
	err := b.Do(func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestDo_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New("test")

	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		_ = b.Do(func() error { return boom })
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	// Open breaker short-circuits without running fn
	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called)
}
