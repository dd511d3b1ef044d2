// Package httpx holds the JSON and error conventions shared by every handler.
package httpx

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FieldErrors maps a request field to its problems, mirroring the
// {"field": ["message"]} body API clients expect.
type FieldErrors map[string][]string

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for field, msgs := range f {
		parts = append(parts, field+": "+strings.Join(msgs, "; "))
	}
	return strings.Join(parts, ", ")
}

// Add records a message for field.
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"detail": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"detail": msg})
}

// Decode reads a JSON body into v.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// NewValidator returns a validator that reports fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FromValidation converts validator errors into FieldErrors. Any other error
// is reported under "non_field_errors".
func FromValidation(err error) FieldErrors {
	out := FieldErrors{}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Add("non_field_errors", err.Error())
		return out
	}

	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out.Add(fe.Field(), "This field is required.")
		case "oneof":
			out.Add(fe.Field(), "Must be one of: "+fe.Param()+".")
		case "max":
			out.Add(fe.Field(), "Ensure this field has no more than "+fe.Param()+" characters.")
		case "gte", "gt":
			out.Add(fe.Field(), "Ensure this value is "+fe.Tag()+" "+fe.Param()+".")
		default:
			out.Add(fe.Field(), "Invalid value.")
		}
	}
	return out
}
