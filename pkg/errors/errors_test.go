package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := &Error{Type: ErrorTypeDownload, Op: "fetch", Message: "unexpected status", Code: 500}
	assert.Equal(t, "download error (fetch) [code 500]: unexpected status", err.Error())

	wrapped := Wrap(ErrorTypeAuth, "obtain", io.EOF)
	assert.Equal(t, "auth error (obtain): EOF", wrapped.Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(ErrorTypeStorage, "persist", nil))
}

func TestTypeOfThroughWrapping(t *testing.T) {
	base := New(ErrorTypeEnumeration, "search", "bad page")
	err := fmt.Errorf("run failed: %w", base)

	assert.Equal(t, ErrorTypeEnumeration, TypeOf(err))
	assert.True(t, IsType(err, ErrorTypeEnumeration))
	assert.False(t, IsType(err, ErrorTypeAuth))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(io.EOF))
}

func TestUnwrap(t *testing.T) {
	err := Wrap(ErrorTypeRelocation, "move", io.ErrUnexpectedEOF)
	assert.True(t, Is(err, io.ErrUnexpectedEOF))
}

func TestIsAuthStatusCode(t *testing.T) {
	assert.True(t, IsAuthStatusCode(401))
	assert.True(t, IsAuthStatusCode(403))
	assert.False(t, IsAuthStatusCode(404))
	assert.False(t, IsAuthStatusCode(500))
}
