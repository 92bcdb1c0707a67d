package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	TimeOfDayLayout = "15:04"
	DateLayout      = "2006-01-02"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Validator wraps validator/v10 with the project's custom tags. Field names
// in errors are the JSON names.
type Validator struct {
	validate *validator.Validate
}

func New(log *logger.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{}, decimal.NullDecimal{})

	custom := map[string]validator.Func{
		"hhmm":      validateTimeOfDay,
		"date":      validateDate,
		"https_url": validateHTTPSURL,
		"notblank":  validateNotBlank,
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatal("Failed to register validator", "tag", tag, "error", err)
		}
	}

	return &Validator{validate: v}
}

// Struct validates s and returns ValidationErrors on failure.
func (v *Validator) Struct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return Translate(validationErrs)
		}
		return err
	}
	return nil
}

// Var validates a single value against tag, reporting it under field.
func (v *Validator) Var(field string, value any, tag string) error {
	if err := v.validate.Var(value, tag); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			out := Translate(validationErrs)
			for i := range out {
				out[i].Field = field
				out[i].Message = strings.Replace(out[i].Message, "value", field, 1)
			}
			return out
		}
		return err
	}
	return nil
}

func decimalValue(field reflect.Value) any {
	switch d := field.Interface().(type) {
	case decimal.Decimal:
		f, _ := d.Float64()
		return f
	case decimal.NullDecimal:
		if !d.Valid {
			return nil
		}
		f, _ := d.Decimal.Float64()
		return f
	}
	return nil
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse(TimeOfDayLayout, s)
	return err == nil
}

func validateDate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func validateHTTPSURL(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme == "https" && u.Host != ""
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Translate turns validator errors into readable messages.
func Translate(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		field := err.Field()
		if field == "" {
			field = "value"
		}
		message := err.Error()

		isString := err.Kind() == reflect.String
		isCollection := err.Kind() == reflect.Slice || err.Kind() == reflect.Map

		switch err.Tag() {
		case "required", "required_with", "required_without", "notblank":
			message = fmt.Sprintf("%s is required", field)
		case "min":
			switch {
			case isString:
				message = fmt.Sprintf("%s must be at least %s characters", field, err.Param())
			case isCollection:
				message = fmt.Sprintf("%s must contain at least %s item(s)", field, err.Param())
			default:
				message = fmt.Sprintf("%s must be at least %s", field, err.Param())
			}
		case "max":
			switch {
			case isString:
				message = fmt.Sprintf("%s must be at most %s characters", field, err.Param())
			case isCollection:
				message = fmt.Sprintf("%s must contain at most %s item(s)", field, err.Param())
			default:
				message = fmt.Sprintf("%s must be at most %s", field, err.Param())
			}
		case "len":
			message = fmt.Sprintf("%s must have length %s", field, err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be greater than or equal to %s", field, err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", field, err.Param())
		case "lte":
			message = fmt.Sprintf("%s must be less than or equal to %s", field, err.Param())
		case "lt":
			message = fmt.Sprintf("%s must be less than %s", field, err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(err.Param(), " ", ", "))
		case "email":
			message = fmt.Sprintf("%s must be a valid e-mail address", field)
		case "e164":
			message = fmt.Sprintf("%s must be a valid phone number in E.164 format", field)
		case "url", "http_url":
			message = fmt.Sprintf("%s must be a valid URL", field)
		case "https_url":
			message = fmt.Sprintf("%s must be a valid https URL", field)
		case "uuid", "uuid4":
			message = fmt.Sprintf("%s must be a valid UUID", field)
		case "hhmm":
			message = fmt.Sprintf("%s must be in HH:MM 24-hour format", field)
		case "date":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", field, err.Param())
		case "latitude":
			message = fmt.Sprintf("%s must be a valid latitude", field)
		case "longitude":
			message = fmt.Sprintf("%s must be a valid longitude", field)
		case "iso3166_1_alpha2":
			message = fmt.Sprintf("%s must be a two-letter country code", field)
		case "iso4217":
			message = fmt.Sprintf("%s must be a three-letter currency code", field)
		case "unique":
			message = fmt.Sprintf("%s must not contain duplicates", field)
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   field,
			Message: message,
		})
	}

	return validationErrors
}

// ToAppError converts a validation failure into a 422 AppError carrying the
// per-field messages. Other errors become internal errors.
func ToAppError(resource string, err error) *apperrors.AppError {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(resource+" validation failed", map[string]any{
			"errors": []ValidationError(verrs),
		})
	}
	var verr ValidationError
	if errors.As(err, &verr) {
		return apperrors.Validation(resource+" validation failed", map[string]any{
			"errors": []ValidationError{verr},
		})
	}
	return apperrors.Internal(resource+" validation could not be performed", err)
}

// Fail builds a single-field validation error.
func Fail(field, message string) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message}}
}
