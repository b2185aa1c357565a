// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package nntperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_UnwrapsUnderlyingCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := New(KindNetwork, "nntp.Connect", cause)
	require.ErrorIs(t, err, cause)
}

func TestIs_MatchesWrappedKind(t *testing.T) {
	err := fmt.Errorf("dialing upstream: %w", New(KindNetwork, "nntp.Connect", errors.New("refused")))
	require.True(t, Is(err, KindNetwork))
	require.False(t, Is(err, KindAuth))
}

func TestIs_FalseForPlainError(t *testing.T) {
	require.False(t, Is(errors.New("plain"), KindNetwork))
}

func TestRetryable_NetworkAndTimeoutAreRetryable(t *testing.T) {
	require.True(t, Retryable(New(KindNetwork, "op", nil)))
	require.True(t, Retryable(New(KindTimeout, "op", nil)))
}

func TestRetryable_ProtocolAndAuthAreNotRetryable(t *testing.T) {
	require.False(t, Retryable(New(KindProtocol, "op", nil)))
	require.False(t, Retryable(New(KindAuth, "op", nil)))
	require.False(t, Retryable(errors.New("plain")))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "network", KindNetwork.String())
	require.Equal(t, "not_found", KindNotFound.String())
	require.Equal(t, "unknown", KindUnknown.String())
}
