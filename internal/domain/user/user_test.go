package user

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCustomer(t *testing.T) {
	r := NewCustomer(" New@Example.com ", " Jane ", "<b>Doe</b>", "secret")

	assert.Equal(t, "new@example.com", r.Login)
	assert.Equal(t, "new@example.com", r.Email)
	assert.Equal(t, "Jane", r.FirstName)
	assert.Equal(t, "Doe", r.LastName)
	assert.Equal(t, RoleCustomer, r.Role)
	assert.Equal(t, "secret", r.Password)
	require.NoError(t, r.Validate())
}

func TestRegistrationValidate(t *testing.T) {
	require.ErrorIs(t, NewCustomer("", "", "", "pw").Validate(), ErrInvalidEmail)
	require.ErrorIs(t, NewCustomer("not-an-email", "", "", "pw").Validate(), ErrInvalidEmail)
	require.ErrorIs(t, NewCustomer("a@example.com", "", "", "").Validate(), ErrEmptyPassword)
}

func TestValidateEmail(t *testing.T) {
	for _, ok := range []string{"a@example.com", "o'brien+tag@example.co.uk"} {
		assert.NoError(t, ValidateEmail(ok), ok)
	}
	for _, bad := range []string{"", "a", "a@", "@example.com", "Jane <a@example.com>", strings.Repeat("a", 250) + "@x.io"} {
		assert.ErrorIs(t, ValidateEmail(bad), ErrInvalidEmail, bad)
	}
}

func TestGeneratePassword(t *testing.T) {
	seen := make(map[string]struct{})
	for range 50 {
		pw, err := GeneratePassword(DefaultPasswordLength)
		require.NoError(t, err)
		require.Len(t, pw, DefaultPasswordLength)
		for _, r := range pw {
			assert.True(t, strings.ContainsRune(passwordAlphabet, r), "unexpected rune %q", r)
		}
		seen[pw] = struct{}{}
	}
	assert.Len(t, seen, 50)

	_, err := GeneratePassword(0)
	require.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)

	u := &User{PasswordHash: hash}
	assert.True(t, u.CheckPassword("s3cret!"))
	assert.False(t, u.CheckPassword("wrong"))
}
