// Package user models customer accounts in the commerce store's user
// directory.
package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storesync/internal/sanitize"
)

// RoleCustomer is the role given to accounts created by a sync.
const RoleCustomer = "customer"

// Meta keys persisted from the billing address of a new account.
const (
	MetaBillingAddress1 = "billing_address_1"
	MetaBillingCity     = "billing_city"
	MetaBillingCountry  = "billing_country"
)

const bcryptCost = 12

var (
	// ErrNotFound is returned when no account matches a lookup.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidEmail is returned by the directory for empty or malformed
	// addresses.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrLoginTaken is returned when another account already uses the login.
	ErrLoginTaken = errors.New("sorry, that username already exists")
	// ErrEmailTaken is returned when another account already uses the email.
	ErrEmailTaken = errors.New("sorry, that email address is already used")
	// ErrEmptyPassword is returned when an account is created without a
	// password.
	ErrEmptyPassword = errors.New("password must not be empty")
)

// User is an account in the user directory.
type User struct {
	ID           int64
	Login        string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
	CreatedAt    time.Time
}

// Registration holds the fields of an account to be created. Password is the
// plaintext password; the directory stores only its hash.
type Registration struct {
	Login     string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// NewCustomer builds the registration of a customer whose login is their
// normalized email address.
func NewCustomer(email, firstName, lastName, password string) Registration {
	email = sanitize.Email(email)
	return Registration{
		Login:     email,
		Email:     email,
		Password:  password,
		FirstName: sanitize.Text(firstName),
		LastName:  sanitize.Text(lastName),
		Role:      RoleCustomer,
	}
}

// Validate reports whether the directory would accept r.
func (r Registration) Validate() error {
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return ErrEmptyPassword
	}
	return nil
}

// ValidateEmail checks that email is a bare, well-formed address.
func ValidateEmail(email string) error {
	if email == "" || len(email) > 254 {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return ErrInvalidEmail
	}
	return nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Repository defines the User Directory operations the sync needs.
type Repository interface {
	// FindByEmail returns the account whose email matches case-insensitively,
	// or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByID returns the account with the given ID, or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*User, error)
	// Create stores a new account and returns its ID.
	Create(ctx context.Context, r Registration) (int64, error)
	// SetMeta stores a metadata value for the account, replacing any
	// previous value under the same key.
	SetMeta(ctx context.Context, id int64, key, value string) error
}
