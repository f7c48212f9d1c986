package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError is one rejected request field
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func respondValidation(w http.ResponseWriter, errs []ValidationError) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":  "Invalid request",
		"errors": errs,
	})
}

// decodeRequest reads a JSON body into req, applies `default` tags and runs
// the validator. A nil result means req is ready to use.
func decodeRequest(r *http.Request, req interface{}) []ValidationError {
	if errs := decodeJSON(r, req); errs != nil {
		return errs
	}
	return validateRequest(r, req)
}

func decodeJSON(r *http.Request, req interface{}) []ValidationError {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return []ValidationError{{Code: "ERR_BODY", Message: "Invalid request body"}}
	}
	return nil
}

func validateRequest(r *http.Request, req interface{}) []ValidationError {
	if err := defaults.Set(req); err != nil {
		return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
	}
	if err := validate.StructCtx(r.Context(), req); err != nil {
		return validationErrors(err)
	}
	return nil
}

func validationErrors(err error) []ValidationError {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
	}

	errs := make([]ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		errs = append(errs, ValidationError{
			Code:    "ERR_" + strings.ToUpper(fe.Tag()),
			Field:   strings.ToLower(fe.Field()),
			Message: fieldMessage(fe),
		})
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		if fe.Type().Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
