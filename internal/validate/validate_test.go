package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Method   string `json:"paymentMethod" validate:"required,oneof=mpesa cod"`
}

func TestStructFieldsReportsJSONNames(t *testing.T) {
	err := StructFields(signup{Email: "nope", Password: "123", Method: "card"})
	require.Error(t, err)

	var errs Errors
	require.ErrorAs(t, err, &errs)
	require.Len(t, errs, 3)
	assert.Equal(t, "email", errs[0].Field)
	assert.Equal(t, "email must be a valid email address", err.Error())
	assert.Equal(t, "password must be at least 6 characters", errs[1].Message)
	assert.Equal(t, "paymentMethod must be one of: mpesa cod", errs[2].Message)
}

func TestStructFieldsPasses(t *testing.T) {
	assert.NoError(t, StructFields(signup{Email: "a@b.co", Password: "secret", Method: "cod"}))
}
