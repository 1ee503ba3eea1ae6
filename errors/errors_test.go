package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewf(t *testing.T) {
	err := Newf("error: %s %d", "test", 42)
	require.NotNil(t, err)
	assert.Equal(t, "error: test 42", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestMark_PreservesMessageAndClassifies(t *testing.T) {
	cause := fmt.Errorf("open environments.json: no such file")
	err := Mark(Wrap(cause, "read environments"), ErrResourceLoad)

	assert.Equal(t, "read environments: open environments.json: no such file", err.Error())
	assert.True(t, Is(err, ErrResourceLoad))
	assert.False(t, Is(err, ErrResourceParse))
}

func TestIsResourceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"load", Mark(New("boom"), ErrResourceLoad), true},
		{"parse", Mark(New("bad json"), ErrResourceParse), true},
		{"wrapped parse", Wrap(Mark(New("bad json"), ErrResourceParse), "commands"), true},
		{"unrelated", New("other"), false},
		{"unknown context", ErrUnknownContextType, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsResourceError(tt.err))
		})
	}
}

func TestNewInvalidRequestError(t *testing.T) {
	err := NewInvalidRequestError("surround needs 2 arguments, got %d", 1)
	assert.Equal(t, "surround needs 2 arguments, got 1", err.Error())
	assert.True(t, Is(err, ErrInvalidRequest))
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("document %s not open", "file:///a.tex")
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrInvalidRequest))
}

func TestWithHint(t *testing.T) {
	err := WithHint(New("data directory missing"), "set data.dir in am.toml")
	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "set data.dir in am.toml", hints[0])
}
