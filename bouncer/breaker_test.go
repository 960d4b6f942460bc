package bouncer

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewDialBreaker("libera", 3, time.Minute, nil)
	require.Equal(t, gobreaker.StateClosed, cb.State())

	dialErr := errors.New("connection refused")
	for range 3 {
		_, err := cb.Execute(func() (net.Conn, error) { return nil, dialErr })
		require.ErrorIs(t, err, dialErr)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())

	called := false
	_, err := cb.Execute(func() (net.Conn, error) {
		called = true
		return nil, nil
	})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called, "open breaker must not dial")
}

func TestDialBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewDialBreaker("libera", 2, time.Minute, nil)
	dialErr := errors.New("timeout")

	_, _ = cb.Execute(func() (net.Conn, error) { return nil, dialErr })
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn, err := cb.Execute(func() (net.Conn, error) { return client, nil })
	require.NoError(t, err)
	require.Same(t, client, conn)

	_, _ = cb.Execute(func() (net.Conn, error) { return nil, dialErr })
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestDialBreaker_HalfOpenProbe(t *testing.T) {
	cb := NewDialBreaker("libera", 1, 10*time.Millisecond, nil)

	_, _ = cb.Execute(func() (net.Conn, error) { return nil, errors.New("refused") })
	require.Equal(t, gobreaker.StateOpen, cb.State())

	require.Eventually(t, func() bool {
		return cb.State() == gobreaker.StateHalfOpen
	}, time.Second, 5*time.Millisecond)
}
