// Package api contains the wire types and HTTP server of the sync endpoint.
//
// Types are decoded and encoded with go-faster/jx, in the shape ogen generates
// for an operation: the Server decodes the request, calls Handler and encodes
// whichever response the Handler returned.
package api

import (
	"github.com/shopspring/decimal"
)

// SyncRequest is the body of POST /sync.
type SyncRequest struct {
	Products []ProductInput
	Order    OptOrder
}

// ProductInput is one product of a sync batch.
type ProductInput struct {
	SKU           string
	Title         string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	Weight        decimal.Decimal
}

// Order is the order part of a sync request.
type Order struct {
	User     User
	Shipping Address
}

// User identifies the customer of an order.
type User struct {
	Email     string
	FirstName string
	LastName  string
	Billing   OptAddress
}

// Address is a billing or shipping address. Unknown keys are ignored when
// decoding.
type Address struct {
	FirstName string
	LastName  string
	Company   string
	Address1  string
	Address2  string
	City      string
	State     string
	Postcode  string
	Country   string
	Email     string
	Phone     string
}

// OptOrder is an optional Order. An order object without keys is not set.
type OptOrder struct {
	Value Order
	Set   bool
}

// Get returns the value and whether it is set.
func (o OptOrder) Get() (Order, bool) {
	return o.Value, o.Set
}

// NewOptOrder returns a set OptOrder.
func NewOptOrder(v Order) OptOrder {
	return OptOrder{Value: v, Set: true}
}

// OptAddress is an optional Address. An address object without keys is not
// set.
type OptAddress struct {
	Value Address
	Set   bool
}

// Get returns the value and whether it is set.
func (o OptAddress) Get() (Address, bool) {
	return o.Value, o.Set
}

// NewOptAddress returns a set OptAddress.
func NewOptAddress(v Address) OptAddress {
	return OptAddress{Value: v, Set: true}
}

// Status values of a sync response.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SyncRes is implemented by every response of the sync operation.
type SyncRes interface {
	syncRes()
}

// SyncOK is the response of a successful sync. UserID is zero when the
// customer already existed.
type SyncOK struct {
	OrderID int64
	UserID  int64
}

func (*SyncOK) syncRes() {}

// Error is the uniform error envelope.
type Error struct {
	Message string
}

// ErrorStatusCode is an Error with the HTTP status to send it with.
type ErrorStatusCode struct {
	StatusCode int
	Response   Error
}

func (*ErrorStatusCode) syncRes() {}

func (e *ErrorStatusCode) Error() string {
	return e.Response.Message
}
