package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserValidate(t *testing.T) {
	tests := []struct {
		name  string
		user  User
		field string // empty means valid
	}{
		{"minimal valid", User{Email: "bob@example.com", Password: "x"}, ""},
		{"proxy pair complete", User{Email: "bob@example.com", ProxyUsername: "bob", ProxyPassword: "s3cret"}, ""},
		{"proxy password alone", User{Email: "bob@example.com", ProxyPassword: "s3cret"}, ""},
		{"empty email", User{}, "email"},
		{"malformed email", User{Email: "not-an-email"}, "email"},
		{"proxy username without password", User{Email: "bob@example.com", ProxyUsername: "bob"}, "proxy_password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(Invalid("name", "must not be empty")))
	assert.False(t, IsValidation(ErrNotFound))
	assert.False(t, IsValidation(nil))
}
