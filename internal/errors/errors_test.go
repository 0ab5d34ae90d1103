package errors_test

import (
	"io"
	"testing"

	apperrors "github.com/ChristosG/finsmart-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	require.NoError(t, apperrors.Wrapf(nil, "ignored"))

	err := apperrors.Wrapf(apperrors.ErrRefreshFailed, "refresh for %s", "alice")
	require.EqualError(t, err, "refresh for alice: token refresh failed")
	require.True(t, apperrors.Is(err, apperrors.ErrRefreshFailed))
	require.False(t, apperrors.Is(err, io.EOF))
}
