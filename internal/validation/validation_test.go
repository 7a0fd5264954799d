package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Topic  string `json:"topic" validate:"required"`
	Method string `json:"method" validate:"required,oneof=online offline"`
	Rating int    `json:"rating" validate:"min=1,max=5"`
}

func TestStructReportsJSONFieldName(t *testing.T) {
	v := New()

	err := v.Struct(samplePayload{Method: "online", Rating: 3})

	var verr Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "topic", verr.Field)
	require.Equal(t, "this field is required", verr.Message)
}

func TestStructOneOf(t *testing.T) {
	v := New()

	err := v.Struct(samplePayload{Topic: "Career", Method: "carrier pigeon", Rating: 3})

	var verr Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "method", verr.Field)
	require.Contains(t, verr.Message, "online offline")
}

func TestStructRange(t *testing.T) {
	v := New()

	for _, rating := range []int{0, 6, -1} {
		err := v.Struct(samplePayload{Topic: "Career", Method: "online", Rating: rating})

		var verr Error
		require.True(t, errors.As(err, &verr), "rating %d", rating)
		require.Equal(t, "rating", verr.Field)
	}

	require.NoError(t, v.Struct(samplePayload{Topic: "Career", Method: "offline", Rating: 5}))
}

func TestVarUsesGivenField(t *testing.T) {
	v := New()

	err := v.Var("status", "archived", "oneof=pending accepted")

	var verr Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "status", verr.Field)
	require.NoError(t, v.Var("status", "pending", "oneof=pending accepted"))
}

func TestErrorMessage(t *testing.T) {
	require.Equal(t, "invalid date: this field is required", Error{Field: "date", Message: requiredText}.Error())
	require.Equal(t, "bad", Error{Message: "bad"}.Error())
}
