package common

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidator(t *testing.T) {
	blank := "  "
	tests := []struct {
		name    string
		build   func() *Validator
		wantErr bool
		substr  string
	}{
		{"all valid", func() *Validator {
			return NewValidator().
				Field("user_id", "u1", Required, MaxLength(8)).
				Field("job_id", uuid.NewString(), UUID)
		}, false, ""},
		{"blank string", func() *Validator { return NewValidator().Field("user_id", " ", Required) }, true, "user_id is required"},
		{"blank pointer", func() *Validator { return NewValidator().Field("name", &blank, Required) }, true, "name is required"},
		{"nil", func() *Validator { return NewValidator().Field("profile", nil, Required) }, true, "profile is required"},
		{"too long counts runes", func() *Validator { return NewValidator().Field("s", "ééé", MaxLength(2)) }, true, "at most 2 characters"},
		{"runes within limit", func() *Validator { return NewValidator().Field("s", "éé", MaxLength(2)) }, false, ""},
		{"bad uuid", func() *Validator { return NewValidator().Field("job_id", "job-1", UUID) }, true, "must be a valid UUID"},
		{"collects every failure", func() *Validator {
			return NewValidator().Field("a", "", Required).Field("b", "x", UUID)
		}, true, `a is required (got ""); b must be a valid UUID (got "x")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAndReturnError(tt.build())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}
