package common

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidationError is one failed rule on one request field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s (got %q)", e.Field, e.Message, fmt.Sprint(e.Value))
}

// ValidationRule checks a single field value; nil means it passed.
type ValidationRule func(field string, value any) *ValidationError

// Validator collects failures across fields so a request reports all of
// them at once.
type Validator struct {
	failures []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field applies rules to value in order, recording every failure.
func (v *Validator) Field(field string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if f := rule(field, value); f != nil {
			v.failures = append(v.failures, *f)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool { return len(v.failures) > 0 }

// ErrorMessage joins the failures with "; ".
func (v *Validator) ErrorMessage() string {
	msgs := make([]string, 0, len(v.failures))
	for _, f := range v.failures {
		msgs = append(msgs, f.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateAndReturnError returns a codes.InvalidArgument status listing
// every failure, or nil.
func ValidateAndReturnError(v *Validator) error {
	if v.HasErrors() {
		return InvalidArgumentError(v.ErrorMessage())
	}
	return nil
}

// Required rejects nil and blank strings.
func Required(field string, value any) *ValidationError {
	blank := value == nil
	switch s := value.(type) {
	case string:
		blank = strings.TrimSpace(s) == ""
	case *string:
		blank = s == nil || strings.TrimSpace(*s) == ""
	}
	if blank {
		return &ValidationError{Field: field, Value: value, Message: "is required"}
	}
	return nil
}

// MaxLength rejects strings longer than max runes.
func MaxLength(max int) ValidationRule {
	return func(field string, value any) *ValidationError {
		s, ok := value.(string)
		if !ok || utf8.RuneCountInString(s) <= max {
			return nil
		}
		return &ValidationError{
			Field:   field,
			Value:   clip(s, 40),
			Message: fmt.Sprintf("must be at most %d characters", max),
		}
	}
}

// UUID rejects values that are not canonical UUID strings. Job ids are
// minted with uuid.NewString, so anything else can never match a row.
func UUID(field string, value any) *ValidationError {
	s, _ := value.(string)
	if _, err := uuid.Parse(s); err != nil {
		return &ValidationError{Field: field, Value: clip(s, 40), Message: "must be a valid UUID"}
	}
	return nil
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
