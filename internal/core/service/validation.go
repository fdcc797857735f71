package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/rl1809/stockledger/internal/core/domain"
)

const (
	maxAttributes       = 32
	maxAttributeValue   = 255
	maxNoteLength       = 1000
	defaultPage         = 1
	defaultListLimit    = 50
	defaultHistoryLimit = 20
	maxListLimit        = 500
)

var attributeKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and reports the first failure as a
// domain validation error.
func validateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate: %w", err)
	}

	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "max":
		msg = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		msg = fmt.Sprintf("must be at least %s characters", fe.Param())
	case "gte":
		msg = fmt.Sprintf("must be at least %s", fe.Param())
	case "printascii":
		msg = "must contain printable ASCII only"
	default:
		msg = fmt.Sprintf("failed %q check", fe.Tag())
	}
	return &domain.ValidationError{Field: fe.Field(), Message: msg}
}

// validateAttributes checks the open key/value set. Empty values are only
// accepted in patches, where they remove the key.
func validateAttributes(attrs map[string]string, allowEmpty bool) error {
	if len(attrs) > maxAttributes {
		return &domain.ValidationError{Field: "attributes", Message: fmt.Sprintf("at most %d attributes are allowed", maxAttributes)}
	}
	for k, v := range attrs {
		if !attributeKeyPattern.MatchString(k) {
			return &domain.ValidationError{Field: "attributes", Message: fmt.Sprintf("invalid attribute key %q", k)}
		}
		if v == "" && !allowEmpty {
			return &domain.ValidationError{Field: "attributes." + k, Message: "must not be empty"}
		}
		if utf8.RuneCountInString(v) > maxAttributeValue {
			return &domain.ValidationError{Field: "attributes." + k, Message: fmt.Sprintf("must be at most %d characters", maxAttributeValue)}
		}
		if k == "indoor_outdoor" && v != "" && v != "indoor" && v != "outdoor" {
			return &domain.ValidationError{Field: "attributes.indoor_outdoor", Message: `must be "indoor" or "outdoor"`}
		}
	}
	return nil
}

// pageBounds applies defaults and caps to a requested page window.
func pageBounds(page, limit, defaultLimit int) (int, int, error) {
	if page < 0 {
		return 0, 0, &domain.ValidationError{Field: "page", Message: "must not be negative"}
	}
	if limit < 0 {
		return 0, 0, &domain.ValidationError{Field: "limit", Message: "must not be negative"}
	}
	if page == 0 {
		page = defaultPage
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return page, limit, nil
}
