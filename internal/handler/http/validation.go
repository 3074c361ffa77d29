package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"url-registry/internal/domain"
	urlvalidator "url-registry/pkg/validator"
)

// validate checks request DTOs before they reach the registry.
// The registry validates again and has the final say.
var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("weburl", func(fl validator.FieldLevel) bool {
		return urlvalidator.MatchesURLPattern(fl.Field().String())
	})
	_ = v.RegisterValidation("safeurl", func(fl validator.FieldLevel) bool {
		return !urlvalidator.HasUnsafeProtocol(fl.Field().String())
	})
	_ = v.RegisterValidation("validity", func(fl validator.FieldLevel) bool {
		_, _, err := urlvalidator.ParseValidityPeriod(fl.Field().String())
		return err == nil
	})

	return v
}

// fieldMessages maps field and failed tag to the form message
var fieldMessages = map[string]map[string]error{
	domain.FieldURL: {
		"required": urlvalidator.ErrEmptyURL,
		"max":      urlvalidator.ErrURLTooLong,
		"weburl":   urlvalidator.ErrInvalidURL,
		"safeurl":  urlvalidator.ErrUnsafeProtocol,
	},
	domain.FieldCustomShortCode: {
		"min":      urlvalidator.ErrInvalidShortCodeLength,
		"max":      urlvalidator.ErrInvalidShortCodeLength,
		"alphanum": urlvalidator.ErrInvalidShortCodeFormat,
	},
	domain.FieldValidityPeriod: {
		"validity": urlvalidator.ErrInvalidValidityPeriod,
	},
}

// validateCreateRequest returns field messages for every rejected field
func validateCreateRequest(req *CreateURLRequest) map[string]string {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"request": err.Error()}
	}

	details := make(map[string]string, len(validationErrors))
	for _, fieldError := range validationErrors {
		field := fieldError.Field()
		if _, seen := details[field]; seen {
			continue
		}
		if msg, ok := fieldMessages[field][fieldError.Tag()]; ok {
			details[field] = msg.Error()
		} else {
			details[field] = "invalid value"
		}
	}
	return details
}
