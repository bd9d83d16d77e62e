package params

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// Validate checks a config struct against its validate tags.
// Nested structs are checked too.
func Validate(config any) error {
	return validate.Struct(config)
}
