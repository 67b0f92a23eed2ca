// Package httpx holds the JSON request/response plumbing shared by handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ayush/estate-market/internal/apierr"
)

// maxBodyBytes bounds JSON request bodies; uploads go through multipart instead.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names in messages.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes {"success":true,"message":msg,...payload}.
func WriteSuccess(w http.ResponseWriter, status int, msg string, payload map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	if msg != "" {
		body["message"] = msg
	}
	for k, v := range payload {
		body[k] = v
	}
	WriteJSON(w, status, body)
}

// WriteError renders err as {"success":false,"statusCode":n,"message":...}.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierr.Status(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	WriteJSON(w, status, map[string]interface{}{
		"success":    false,
		"statusCode": status,
		"message":    apierr.Message(err),
	})
}

// DecodeJSON decodes the request body into v, rejecting unknown fields and
// trailing data, then runs struct validation.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apierr.Validation("invalid request body: %v", err)
	}
	if dec.More() {
		return apierr.Validation("invalid request body: trailing data")
	}
	return Validate(v)
}

// Validate runs the validator tags on v and converts failures into a
// single ValidationError naming the offending fields.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierr.Validation("invalid request: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apierr.Validation("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "max", "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
