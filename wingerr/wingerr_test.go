package wingerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_WrapsCauseAndReportsKind(t *testing.T) {
	cause := errors.New("eof")
	err := New(Io, cause)

	require.True(t, Is(err, Io))
	require.False(t, Is(err, InvalidData))
	require.Contains(t, err.Error(), "eof")
}

func TestNew_NilCause(t *testing.T) {
	err := New(DiscoveryError, nil)
	require.Equal(t, "discovery error", err.Error())
	require.True(t, Is(err, DiscoveryError))
}

func TestIs_FalseForPlainError(t *testing.T) {
	require.False(t, Is(errors.New("plain"), Io))
}

func TestCause_UnwrapsToOriginal(t *testing.T) {
	cause := errors.New("root cause")
	err := New(ConnectionError, cause)
	require.Equal(t, "root cause", Cause(err).Error())
}
