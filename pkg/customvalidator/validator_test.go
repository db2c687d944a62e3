package customvalidator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validated struct {
	Phone       string `validate:"omitempty,e164_NP"`
	Fulfillment string `validate:"omitempty,fulfillment_type"`
}

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	require.NoError(t, RegisterCustomValidations(v))
	return v
}

func TestNepaliPhoneNumber(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.Struct(&validated{Phone: "+9779801234567"}))
	assert.Error(t, v.Struct(&validated{Phone: "9779801234567"}), "без префикса +977")
	assert.Error(t, v.Struct(&validated{Phone: "+977980123456"}), "мало цифр")
	assert.Error(t, v.Struct(&validated{Phone: "+97798012345678"}), "много цифр")
}

func TestFulfillmentType(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.Struct(&validated{Fulfillment: "inside_valley"}))
	assert.NoError(t, v.Struct(&validated{Fulfillment: "outside_valley"}))
	assert.Error(t, v.Struct(&validated{Fulfillment: "по воздуху"}))
}
