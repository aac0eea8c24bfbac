package validation

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// MaxCityLength is the longest accepted city name, in runes.
const MaxCityLength = 100

var (
	// ErrCityEmpty is returned when city is missing or whitespace-only.
	ErrCityEmpty = errors.New("city is required")

	// ErrCityTooLong is returned when city exceeds MaxCityLength runes.
	ErrCityTooLong = errors.New("city must be at most 100 characters")

	// ErrCityInvalidChars is returned when city contains control characters.
	ErrCityInvalidChars = errors.New("city contains invalid characters")
)

type cityQuery struct {
	City string `validate:"required,max=100,cityname"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("cityname", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), unicode.IsControl)
	})
	return v
}

// ValidateCity trims input and checks it is a usable city name. Punctuation and
// non-Latin scripts are accepted; the geocoder decides whether the name exists.
// Returns the trimmed city or an error suitable for a 422 response.
func ValidateCity(input string) (string, error) {
	q := cityQuery{City: strings.TrimSpace(input)}
	err := validate.Struct(q)
	if err == nil {
		return q.City, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "", err
	}
	switch verrs[0].Tag() {
	case "required":
		return "", ErrCityEmpty
	case "max":
		return "", ErrCityTooLong
	default:
		return "", ErrCityInvalidChars
	}
}
