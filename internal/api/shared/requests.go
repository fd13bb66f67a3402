package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxRequestBodyBytes caps a JSON request body. A full batch of prompts
// with a reference URL fits well inside it.
const MaxRequestBodyBytes = 1 << 20

var (
	// ErrBodyTooLarge is returned by DecodeJSON when the body exceeds
	// MaxRequestBodyBytes.
	ErrBodyTooLarge = errors.New("request body too large")

	// ErrTrailingData is returned when the body holds more than one JSON value.
	ErrTrailingData = errors.New("request body must contain a single JSON object")
)

var validate = newValidator()

// newValidator reports field errors by their JSON names so messages match
// what the client sent.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// DecodeJSON decodes exactly one JSON value from the request body into v.
func DecodeJSON(r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, MaxRequestBodyBytes)
	dec := json.NewDecoder(body)

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrBodyTooLarge
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrBodyTooLarge
		}
		return ErrTrailingData
	}
	return nil
}

// ValidateRequest runs v's own Validate method when it has one, otherwise
// its validate struct tags.
func ValidateRequest(v interface{}) error {
	if self, ok := v.(interface{ Validate() error }); ok {
		return self.Validate()
	}
	return validate.Struct(v)
}
