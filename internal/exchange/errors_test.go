package exchange

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(KindConnectivity, "get_ticker", cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "get_ticker")
	require.Contains(t, err.Error(), "connectivity")

	wrapped := fmt.Errorf("fetch loop: %w", err)
	require.True(t, IsKind(wrapped, KindConnectivity))
	require.False(t, IsKind(wrapped, KindAuth))
	require.Equal(t, KindConnectivity, KindOf(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	require.Equal(t, KindConnectivity, KindOf(errors.New("boom")))
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusFilled, StatusCancelled, StatusFailed}
	for _, s := range terminal {
		require.True(t, s.Terminal(), "%s should be terminal", s)
	}

	open := []Status{StatusPending, StatusSubmitted, StatusOpen, StatusPartiallyFilled}
	for _, s := range open {
		require.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}
