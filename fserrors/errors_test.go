package fserrors_test

import (
	"errors"
	"testing"

	"github.com/mbarlow/monofs/fserrors"
	"github.com/stretchr/testify/assert"
)

func TestKindWithMessage(t *testing.T) {
	newErr := fserrors.NotFound.WithMessage("foo.txt")
	assert.Equal(t, "no such file or directory: foo.txt", newErr.Error())
	assert.ErrorIs(t, newErr, fserrors.NotFound)
}

func TestKindWrapError(t *testing.T) {
	originalErr := errors.New("open: too many open files")
	newErr := fserrors.IOError.WrapError(originalErr)

	assert.Equal(t, "input/output error: open: too many open files", newErr.Error())
	assert.ErrorIs(t, newErr, originalErr)
	assert.ErrorIs(t, newErr, fserrors.IOError)
}
