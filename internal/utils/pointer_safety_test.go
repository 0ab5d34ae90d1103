package utils_test

import (
	"testing"

	"github.com/ChristosG/finsmart-client/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	require.Equal(t, "", utils.Value[string](nil))
	require.Equal(t, 3, utils.Value(utils.Ptr(3)))
}

func TestValueOr(t *testing.T) {
	require.Equal(t, "n/a", utils.ValueOr(nil, "n/a"))
	require.Equal(t, "n/a", utils.ValueOr(utils.Ptr(""), "n/a"))
	require.Equal(t, "2024-01-02", utils.ValueOr(utils.Ptr("2024-01-02"), "n/a"))
}
