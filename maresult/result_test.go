package maresult

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := Wrap("ringbuf", CodeBusy, "no space", errors.New("boom"))

	require.True(t, errors.Is(err, ErrBusy))
	require.False(t, errors.Is(err, ErrTimeout))

	code, ok := CodeOf(err)
	require.True(t, ok)
	require.Equal(t, CodeBusy, code)
}

func TestCodeOfNilIsSuccess(t *testing.T) {
	code, ok := CodeOf(nil)
	require.True(t, ok)
	require.Equal(t, CodeSuccess, code)
}

func TestCodeOfForeignError(t *testing.T) {
	_, ok := CodeOf(errors.New("not ours"))
	require.False(t, ok)
}

func TestErrorMessageIncludesComponentAndCode(t *testing.T) {
	err := New("device", CodeTimeout, "waiting for backend")
	require.Contains(t, err.Error(), "device")
	require.Contains(t, err.Error(), "timeout")
	require.Contains(t, err.Error(), "waiting for backend")
}
