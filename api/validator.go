package api

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"

	"clubledger/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxJSONBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// money accepts a decimal string with at most two decimal places
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		amount, err := decimal.NewFromString(fl.Field().String())
		return err == nil && models.IsCents(amount)
	})

	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).IsValid()
	})

	_ = v.RegisterValidation("decision", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "approve", "reject":
			return true
		}
		return false
	})

	return v
}

// validateStruct returns field errors keyed by JSON name, nil when s is valid
func validateStruct(s any) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	details := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			details[field] = "This field is required"
		case "email":
			details[field] = "Invalid email format"
		case "min":
			details[field] = "Value is too short (min: " + fe.Param() + ")"
		case "max":
			details[field] = "Value is too long (max: " + fe.Param() + ")"
		case "money":
			details[field] = "Must be a decimal amount with at most two decimal places"
		case "role":
			details[field] = "Invalid role. Must be: athlete, admin, or super_admin"
		case "decision":
			details[field] = "Must be approve or reject"
		case "datetime":
			details[field] = "Must be a date formatted as " + fe.Param()
		default:
			details[field] = "Invalid value"
		}
	}
	return details
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes
// the error response itself and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	if details := validateStruct(dst); details != nil {
		writeValidationError(w, details)
		return false
	}
	return true
}

// parseMoney parses a field already checked by the money validation; empty is zero
func parseMoney(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(s)
}
