package errutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestConflictWrapsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Conflict("email already linked", cause)

	require.True(t, HasStatus(err, StatusConflict))
	require.ErrorIs(t, err, cause)
	require.Equal(t, "[CONFLICT] email already linked: duplicate key", err.Error())
}

func TestHasStatusThroughWrapping(t *testing.T) {
	err := fmt.Errorf("link: %w", NotFound("member", nil))

	require.True(t, HasStatus(err, StatusNotFound))
	require.False(t, HasStatus(err, StatusConflict))
	require.False(t, HasStatus(errors.New("plain"), StatusNotFound))
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusConflict, StatusConflict.HTTPStatus())
	require.Equal(t, http.StatusBadRequest, StatusValidationFailed.HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, StatusUnknown.HTTPStatus())
}

func TestInvalidListsFieldErrors(t *testing.T) {
	type send struct {
		Content string `validate:"required"`
		Sender  string `validate:"max=3"`
	}
	err := validator.New().Struct(send{Sender: "toolong"})
	require.Error(t, err)

	got := Invalid("invalid message", err)
	require.True(t, HasStatus(got, StatusValidationFailed))

	var be BaseError
	require.True(t, errors.As(got, &be))
	require.Equal(t, []Detail{
		{Field: "content", Message: "is required"},
		{Field: "sender", Message: "must be at most 3 characters"},
	}, be.Details)
	require.Equal(t, StatusValidationFailed, be.JSON().Error.Code)

	require.True(t, HasStatus(Invalid("bad json", errors.New("unexpected EOF")), StatusBadRequest))
}
