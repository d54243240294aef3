// Package handler implements the sync API on top of the sync service.
package handler

import (
	"context"
	"html"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storesync/internal/api"
	"github.com/xenking/storesync/internal/domain/product"
	"github.com/xenking/storesync/internal/domain/syncer"
	"github.com/xenking/storesync/internal/sanitize"
)

// Compile-time check ensuring Handler satisfies the api Handler interface.
var _ api.Handler = (*Handler)(nil)

// UnavailableMessage is returned on /sync when the commerce store failed the
// startup check.
const UnavailableMessage = "commerce store unavailable"

const internalErrorMessage = "Internal server error."

// Syncer runs a batch sync.
type Syncer interface {
	Sync(ctx context.Context, req syncer.Request) (*syncer.Result, error)
}

// Handler converts between the wire types and the sync service.
type Handler struct {
	syncer Syncer
}

// NewHandler constructs a Handler backed by s.
func NewHandler(s Syncer) *Handler {
	return &Handler{syncer: s}
}

// Sync converts the request, runs the sync and maps the result.
func (h *Handler) Sync(ctx context.Context, req *api.SyncRequest) (api.SyncRes, error) {
	result, err := h.syncer.Sync(ctx, ConvertRequest(req))
	if err != nil {
		return nil, err
	}
	return &api.SyncOK{
		OrderID: result.Order.ID,
		UserID:  result.CreatedUserID,
	}, nil
}

// NewError maps sync errors to the error envelope. Store messages are passed
// through HTML-escaped.
func (h *Handler) NewError(ctx context.Context, err error) *api.ErrorStatusCode {
	lg := zctx.From(ctx)

	var (
		decodeErr    *api.DecodeRequestError
		invariantErr *syncer.InternalInvariantError
		validation   *syncer.ValidationError
		productErr   *syncer.ProductUpsertError
		userErr      *syncer.UserCreationError
		orderErr     *syncer.OrderCreationError
	)
	switch {
	case errors.As(err, &decodeErr):
		lg.Debug("Malformed sync request", zap.Error(err))
		return badRequest(syncer.MissingDataMessage)
	case errors.As(err, &invariantErr):
		lg.Error("Sync invariant violated", zap.Error(err))
		return &api.ErrorStatusCode{
			StatusCode: http.StatusInternalServerError,
			Response:   api.Error{Message: internalErrorMessage},
		}
	case errors.As(err, &validation):
		return badRequest(err.Error())
	case errors.As(err, &productErr):
		lg.Warn("Product upsert failed", zap.String("sku", productErr.SKU), zap.Error(err))
		return badRequest(err.Error())
	case errors.As(err, &userErr):
		lg.Warn("User creation failed", zap.Error(err))
		return badRequest(err.Error())
	case errors.As(err, &orderErr):
		lg.Warn("Order creation failed", zap.Error(err))
		return badRequest(err.Error())
	default:
		lg.Error("Sync failed", zap.Error(err))
		return &api.ErrorStatusCode{
			StatusCode: http.StatusInternalServerError,
			Response:   api.Error{Message: internalErrorMessage},
		}
	}
}

// Unavailable returns the handler served on /sync when the commerce store is
// not usable.
func Unavailable() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		api.WriteError(w, http.StatusServiceUnavailable, UnavailableMessage)
	})
}

func badRequest(message string) *api.ErrorStatusCode {
	return &api.ErrorStatusCode{
		StatusCode: http.StatusBadRequest,
		Response:   api.Error{Message: html.EscapeString(message)},
	}
}

// ConvertRequest maps a decoded wire request to a sync request. An order
// missing from the wire leaves Order nil.
func ConvertRequest(req *api.SyncRequest) syncer.Request {
	out := syncer.Request{
		Products: ProductInputs(req.Products),
	}

	o, ok := req.Order.Get()
	if !ok {
		return out
	}

	in := &syncer.OrderInput{
		User: syncer.UserInput{
			Email:     o.User.Email,
			FirstName: o.User.FirstName,
			LastName:  o.User.LastName,
		},
		Shipping: toAddress(o.Shipping),
	}
	if billing, ok := o.User.Billing.Get(); ok {
		addr := toAddress(billing)
		in.User.Billing = &addr
	}
	out.Order = in
	return out
}

// ProductInputs maps wire products to catalog inputs.
func ProductInputs(products []api.ProductInput) []product.Input {
	out := make([]product.Input, len(products))
	for i, p := range products {
		out[i] = product.Input{
			SKU:           p.SKU,
			Title:         p.Title,
			Description:   p.Description,
			Price:         p.Price,
			StockQuantity: p.StockQuantity,
			Weight:        p.Weight,
		}
	}
	return out
}

func toAddress(a api.Address) sanitize.Address {
	return sanitize.Address{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Company:   a.Company,
		Address1:  a.Address1,
		Address2:  a.Address2,
		City:      a.City,
		State:     a.State,
		Postcode:  a.Postcode,
		Country:   a.Country,
		Email:     a.Email,
		Phone:     a.Phone,
	}
}
