package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/datacleaner/internal/core"
)

// Request bodies for the operation routes. Field names follow the JSON the
// browser client sends.

type dropColumnRequest struct {
	ColumnName string `json:"column_name" validate:"required"`
}

type dropMissingRequest struct {
	How string `json:"how"`
}

type fillRequest struct {
	FillStrategy  string   `json:"fill_strategy" validate:"required"`
	ColumnsToFill []string `json:"columns_to_fill" validate:"required,min=1,dive,required"`
	FillValue     *literal `json:"fill_value"`
}

type filterRequest struct {
	ColumnName string  `json:"column_name" validate:"required"`
	Operator   string  `json:"operator" validate:"required"`
	Value      literal `json:"value"`
}

type encodeRequest struct {
	EncodingStrategy string   `json:"encoding_strategy" validate:"required"`
	ColumnsToEncode  []string `json:"columns_to_encode" validate:"required,min=1,dive,required"`
}

// literal is a user-entered value. Clients send it as a JSON string, number,
// or boolean; it is kept as text and coerced against the column later.
// Where absence matters the field is a *literal, which JSON null and a
// missing key both leave nil.
type literal string

func (l *literal) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*l = ""
	case string:
		*l = literal(x)
	case float64:
		*l = literal(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		*l = literal(strconv.FormatBool(x))
	default:
		return fmt.Errorf("value must be a string, number, or boolean")
	}
	return nil
}

// text returns the literal's value, or nil when it was not sent.
func (l *literal) text() *string {
	if l == nil {
		return nil
	}
	s := string(*l)
	return &s
}

// fieldErrors maps a JSON field to the sentinel reported when it fails
// validation. Unlisted fields report core.ErrInvalidRequest.
var fieldErrors = map[string]error{
	"fill_strategy":     core.ErrInvalidStrategy,
	"encoding_strategy": core.ErrInvalidStrategy,
	"columns_to_fill":   core.ErrInvalidColumns,
	"columns_to_encode": core.ErrInvalidColumns,
	"operator":          core.ErrInvalidOperator,
}

// validationError carries per-field messages next to the sentinel it wraps.
type validationError struct {
	sentinel error
	fields   map[string]string
}

func (e *validationError) Error() string {
	names := make([]string, 0, len(e.fields))
	for name := range e.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + " " + e.fields[name]
	}
	return e.sentinel.Error() + ": " + strings.Join(parts, "; ")
}

func (e *validationError) Unwrap() error { return e.sentinel }

// requestValidator validates request bodies, reporting fields by JSON name.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

// decode reads a JSON body into dst and validates it. An empty body decodes
// to the zero value, which validation then judges.
func (rv *requestValidator) decode(r *http.Request, dst any) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil && !errors.Is(err, io.EOF) {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: malformed JSON body: %v", core.ErrInvalidRequest, err)
	}
	return rv.check(dst)
}

func (rv *requestValidator) check(dst any) error {
	err := rv.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}

	verr := &validationError{sentinel: core.ErrInvalidRequest, fields: make(map[string]string)}
	for _, fe := range fieldErrs {
		// dive errors are reported as columns_to_fill[0]
		name := fe.Field()
		if i := strings.IndexByte(name, '['); i > 0 {
			name = name[:i]
		}
		verr.fields[name] = describe(fe)
		if s, ok := fieldErrors[name]; ok && verr.sentinel == core.ErrInvalidRequest {
			verr.sentinel = s
		}
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must have at least " + fe.Param() + " item(s)"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
