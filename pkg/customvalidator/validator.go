// Файл: pkg/customvalidator/validator.go

package customvalidator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidations "собирает" все наши кастомные правила валидации
// и регистрирует их в переданном экземпляре валидатора.
func RegisterCustomValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("e164_NP", isNepaliPhoneNumber); err != nil {
		return err
	}
	if err := v.RegisterValidation("fulfillment_type", isFulfillmentType); err != nil {
		return err
	}
	return nil
}

func isNepaliPhoneNumber(fl validator.FieldLevel) bool {
	re := regexp.MustCompile(`^\+977\d{10}$`)
	return re.MatchString(fl.Field().String())
}

// isFulfillmentType допускает только два способа доставки бэкофиса.
func isFulfillmentType(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "inside_valley" || s == "outside_valley"
}
