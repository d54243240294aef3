package syncer

import "fmt"

// MissingDataMessage is reported when a request lacks products or order data.
const MissingDataMessage = "Missing products or order data."

// ErrMissingData is returned before any side effect when the request has no
// products or no order.
var ErrMissingData = &ValidationError{Message: MissingDataMessage}

// ValidationError reports a malformed or incomplete sync request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ProductUpsertError reports a Product Store failure for one product. Its
// message is the store's message.
type ProductUpsertError struct {
	SKU string
	Err error
}

func (e *ProductUpsertError) Error() string {
	return e.Err.Error()
}

func (e *ProductUpsertError) Unwrap() error {
	return e.Err
}

// UserCreationError reports a User Directory failure while resolving or
// creating the customer account.
type UserCreationError struct {
	Email string
	Err   error
}

func (e *UserCreationError) Error() string {
	return e.Err.Error()
}

func (e *UserCreationError) Unwrap() error {
	return e.Err
}

// OrderCreationError reports an Order Store failure.
type OrderCreationError struct {
	Err error
}

func (e *OrderCreationError) Error() string {
	return e.Err.Error()
}

func (e *OrderCreationError) Unwrap() error {
	return e.Err
}

// InternalInvariantError is returned when an account cannot be read back
// right after the directory reported creating it.
type InternalInvariantError struct {
	UserID int64
	Err    error
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("user %d vanished after creation: %v", e.UserID, e.Err)
}

func (e *InternalInvariantError) Unwrap() error {
	return e.Err
}
