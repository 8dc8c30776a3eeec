package validator

import (
	"path"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// objectPathValidator accepts bucket-relative keys such as "uploads/U1/kick.wav".
// Absolute paths and parent references are refused.
func objectPathValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	if val == "" || strings.HasPrefix(val, "/") || strings.Contains(val, `\`) {
		return false
	}
	for _, r := range val {
		if unicode.IsControl(r) {
			return false
		}
	}
	for _, segment := range strings.Split(val, "/") {
		if segment == ".." {
			return false
		}
	}
	return path.Base(val) != "."
}
