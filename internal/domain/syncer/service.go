// Package syncer implements the batch sync procedure: upsert the products of a
// request, resolve or create the customer, and create the order with flat-rate
// shipping.
package syncer

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storesync/internal/domain/order"
	"github.com/xenking/storesync/internal/domain/pricing"
	"github.com/xenking/storesync/internal/domain/product"
	"github.com/xenking/storesync/internal/domain/user"
	"github.com/xenking/storesync/internal/sanitize"
)

// Notifier receives the credentials of newly created accounts. Implementations
// must return without waiting for delivery and must not retain the password
// after sending it.
type Notifier interface {
	NotifyCredentials(ctx context.Context, userID int64, password string)
}

// Request is a batch of products plus one order.
type Request struct {
	Products []product.Input
	// Order is nil when the request carried no order data.
	Order *OrderInput
}

// OrderInput describes the order to create for the batch.
type OrderInput struct {
	User     UserInput
	Shipping sanitize.Address
}

// UserInput identifies the customer who owns the order.
type UserInput struct {
	Email     string
	FirstName string
	LastName  string
	// Billing is nil when the request carried no billing address.
	Billing *sanitize.Address
}

// Result holds the output of a successful sync.
type Result struct {
	Order *order.Order
	// CreatedUserID is the ID of the account created by this sync, or zero
	// when the customer already existed.
	CreatedUserID int64
}

// Service runs batch syncs against the commerce store.
type Service struct {
	products product.Repository
	users    user.Repository
	orders   order.Repository
	notifier Notifier

	passwords func() (string, error)
	tracer    trace.Tracer
	requests  metric.Int64Counter
	upserted  metric.Int64Counter
	created   metric.Int64Counter
}

// NewService creates a sync Service with the store collaborators and the
// credentials notifier.
func NewService(
	products product.Repository,
	users user.Repository,
	orders order.Repository,
	notifier Notifier,
	opts ...Option,
) (*Service, error) {
	cfg := newConfig(opts)
	meter := cfg.meterProvider.Meter(instrumentationName)

	s := &Service{
		products:  products,
		users:     users,
		orders:    orders,
		notifier:  notifier,
		passwords: cfg.passwords,
		tracer:    cfg.tracerProvider.Tracer(instrumentationName),
	}

	var err error
	if s.requests, err = meter.Int64Counter("storesync.sync.requests",
		metric.WithDescription("Sync requests by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "requests counter")
	}
	if s.upserted, err = meter.Int64Counter("storesync.products.upserted",
		metric.WithDescription("Products created or updated by syncs"),
	); err != nil {
		return nil, errors.Wrap(err, "upserted counter")
	}
	if s.created, err = meter.Int64Counter("storesync.users.created",
		metric.WithDescription("Customer accounts created by syncs"),
	); err != nil {
		return nil, errors.Wrap(err, "created counter")
	}

	return s, nil
}

// Sync runs the three steps of a batch sync in order and stops at the first
// failure. Side effects of completed steps are kept when a later step fails.
func (s *Service) Sync(ctx context.Context, req Request) (_ *Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "Sync", trace.WithAttributes(
		attribute.Int("sync.products", len(req.Products)),
	))
	defer func() {
		outcome := outcomeOf(rerr)
		s.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	if len(req.Products) == 0 || req.Order == nil {
		return nil, ErrMissingData
	}

	productIDs, totalWeight, err := s.upsertProducts(ctx, req.Products)
	if err != nil {
		return nil, err
	}

	customerID, createdID, err := s.resolveUser(ctx, req.Order.User)
	if err != nil {
		return nil, err
	}

	o, err := s.createOrder(ctx, customerID, productIDs, req.Order, totalWeight)
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Sync completed",
		zap.Int64("order_id", o.ID),
		zap.Int64("customer_id", customerID),
		zap.Int64("created_user_id", createdID),
		zap.Int("items", o.ItemCount()),
		zap.Stringer("total", o.Total),
	)

	return &Result{
		Order:         o,
		CreatedUserID: createdID,
	}, nil
}

// upsertProducts saves every product of the batch and returns their IDs in
// request order along with the summed weight.
func (s *Service) upsertProducts(ctx context.Context, inputs []product.Input) ([]int64, decimal.Decimal, error) {
	ctx, span := s.tracer.Start(ctx, "UpsertProducts")
	defer span.End()

	ids := make([]int64, 0, len(inputs))
	totalWeight := decimal.Zero
	for _, in := range inputs {
		id, err := s.upsertProduct(ctx, in)
		if err != nil {
			return nil, decimal.Zero, &ProductUpsertError{SKU: in.SKU, Err: err}
		}
		ids = append(ids, id)
		totalWeight = totalWeight.Add(in.Weight)
	}

	s.upserted.Add(ctx, int64(len(ids)))
	return ids, totalWeight, nil
}

func (s *Service) upsertProduct(ctx context.Context, in product.Input) (int64, error) {
	in.SKU = sanitize.Text(in.SKU)

	var p *product.Product
	id, err := s.products.FindIDBySKU(ctx, in.SKU)
	switch {
	case err == nil:
		if p, err = s.products.GetByID(ctx, id); err != nil {
			return 0, err
		}
	case errors.Is(err, product.ErrNotFound):
		p = product.New(in.SKU)
	default:
		return 0, err
	}

	created := p.ID == 0
	p.Apply(in)
	id, err = s.products.Save(ctx, p)
	if err != nil {
		return 0, err
	}

	zctx.From(ctx).Debug("Product upserted",
		zap.Int64("product_id", id),
		zap.String("sku", p.SKU),
		zap.Bool("created", created),
	)
	return id, nil
}

// resolveUser returns the customer ID for the order and, when the account was
// created by this call, its ID again as createdID.
func (s *Service) resolveUser(ctx context.Context, in UserInput) (customerID, createdID int64, _ error) {
	ctx, span := s.tracer.Start(ctx, "ResolveUser")
	defer span.End()

	email := sanitize.Email(in.Email)
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return existing.ID, 0, nil
	case !errors.Is(err, user.ErrNotFound):
		return 0, 0, &UserCreationError{Email: email, Err: err}
	}

	password, err := s.passwords()
	if err != nil {
		return 0, 0, &UserCreationError{Email: email, Err: err}
	}

	id, err := s.users.Create(ctx, user.NewCustomer(email, in.FirstName, in.LastName, password))
	if err != nil {
		return 0, 0, &UserCreationError{Email: email, Err: err}
	}

	if in.Billing != nil {
		meta := [...][2]string{
			{user.MetaBillingAddress1, sanitize.Text(in.Billing.Address1)},
			{user.MetaBillingCity, sanitize.Text(in.Billing.City)},
			{user.MetaBillingCountry, sanitize.Text(in.Billing.Country)},
		}
		for _, kv := range meta {
			if err := s.users.SetMeta(ctx, id, kv[0], kv[1]); err != nil {
				return 0, 0, &UserCreationError{Email: email, Err: err}
			}
		}
	}

	s.created.Add(ctx, 1)
	zctx.From(ctx).Info("Customer account created", zap.Int64("user_id", id))
	s.notifier.NotifyCredentials(ctx, id, password)

	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return 0, 0, &InternalInvariantError{UserID: id, Err: err}
	}
	return u.ID, u.ID, nil
}

func (s *Service) createOrder(
	ctx context.Context,
	customerID int64,
	productIDs []int64,
	in *OrderInput,
	totalWeight decimal.Decimal,
) (*order.Order, error) {
	ctx, span := s.tracer.Start(ctx, "CreateOrder")
	defer span.End()

	o := order.New(customerID)
	for _, id := range productIDs {
		p, err := s.products.GetByID(ctx, id)
		if err != nil {
			return nil, &OrderCreationError{Err: err}
		}
		if err := o.AddProduct(p, 1); err != nil {
			return nil, &OrderCreationError{Err: err}
		}
	}

	var billing sanitize.Address
	if in.User.Billing != nil {
		billing = *in.User.Billing
	}
	o.SetAddress(order.AddressShipping, in.Shipping)
	o.SetAddress(order.AddressBilling, billing)

	shipping := pricing.ShippingCost(totalWeight)
	o.AddShipping(pricing.ShippingMethodTitle, shipping)
	o.CalculateTotals()
	span.SetAttributes(
		attribute.String("order.total_weight", totalWeight.String()),
		attribute.String("order.shipping", shipping.String()),
	)

	id, err := s.orders.Create(ctx, o)
	if err != nil {
		return nil, &OrderCreationError{Err: err}
	}
	o.ID = id
	return o, nil
}

func outcomeOf(err error) string {
	var (
		validationErr *ValidationError
		productErr    *ProductUpsertError
		userErr       *UserCreationError
		orderErr      *OrderCreationError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &validationErr):
		return "validation_error"
	case errors.As(err, &productErr):
		return "product_error"
	case errors.As(err, &userErr):
		return "user_error"
	case errors.As(err, &orderErr):
		return "order_error"
	default:
		return "internal_error"
	}
}
