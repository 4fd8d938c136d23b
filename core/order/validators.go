package order

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chakula/core"
)

var (
	orderStatusTag  = "orderstatus"
	orderStatusText = "invalid order status"
)

// InitValidators registers the order domain validators and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(orderStatusTag, orderStatusValidation)
	core.RegisterCustomTranslation(validate, translator, orderStatusTag, orderStatusText)
}

// orderStatusValidation checks that the value is a known Status.
func orderStatusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).Valid()
}
