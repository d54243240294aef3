package syncer

import (
	"context"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storesync/internal/domain/order"
	"github.com/xenking/storesync/internal/domain/pricing"
	"github.com/xenking/storesync/internal/domain/product"
	"github.com/xenking/storesync/internal/domain/user"
	"github.com/xenking/storesync/internal/sanitize"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID    map[int64]*product.Product
	nextID  int64
	saves   int
	saveErr map[string]error // keyed by SKU
}

func newProductRepo(products ...*product.Product) *mockProductRepo {
	m := &mockProductRepo{byID: make(map[int64]*product.Product), nextID: 100}
	for _, p := range products {
		m.byID[p.ID] = p
	}
	return m
}

func (m *mockProductRepo) FindIDBySKU(_ context.Context, sku string) (int64, error) {
	for id, p := range m.byID {
		if p.SKU == sku {
			return id, nil
		}
	}
	return 0, product.ErrNotFound
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) Save(_ context.Context, p *product.Product) (int64, error) {
	if err := m.saveErr[p.SKU]; err != nil {
		return 0, err
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}
	m.saves++
	cp := *p
	if cp.ID == 0 {
		m.nextID++
		cp.ID = m.nextID
	}
	m.byID[cp.ID] = &cp
	return cp.ID, nil
}

type mockUserRepo struct {
	byID      map[int64]*user.User
	meta      map[int64]map[string]string
	nextID    int64
	created   []user.Registration
	findErr   error
	createErr error
	lostAfter bool // FindByID fails for created users
}

func newUserRepo(users ...*user.User) *mockUserRepo {
	m := &mockUserRepo{
		byID:   make(map[int64]*user.User),
		meta:   make(map[int64]map[string]string),
		nextID: 500,
	}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*user.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *mockUserRepo) FindByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := m.byID[id]
	if !ok || m.lostAfter {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) Create(_ context.Context, r user.Registration) (int64, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	if err := r.Validate(); err != nil {
		return 0, err
	}
	m.nextID++
	m.created = append(m.created, r)
	m.byID[m.nextID] = &user.User{
		ID:        m.nextID,
		Login:     r.Login,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Role:      r.Role,
	}
	return m.nextID, nil
}

func (m *mockUserRepo) SetMeta(_ context.Context, id int64, key, value string) error {
	if m.meta[id] == nil {
		m.meta[id] = make(map[string]string)
	}
	m.meta[id][key] = value
	return nil
}

type mockOrderRepo struct {
	lastOrder *order.Order
	created   int
	err       error
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if err := o.Validate(); err != nil {
		return 0, err
	}
	m.created++
	m.lastOrder = o
	return 9000 + int64(m.created), nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id int64) (*order.Order, error) {
	if m.lastOrder != nil && m.lastOrder.ID == id {
		return m.lastOrder, nil
	}
	return nil, order.ErrNotFound
}

type credentials struct {
	userID   int64
	password string
}

type mockNotifier struct {
	sent []credentials
}

func (m *mockNotifier) NotifyCredentials(_ context.Context, userID int64, password string) {
	m.sent = append(m.sent, credentials{userID: userID, password: password})
}

// --- Helpers ---

type fixture struct {
	products *mockProductRepo
	users    *mockUserRepo
	orders   *mockOrderRepo
	notifier *mockNotifier
	svc      *Service
}

func newFixture(t *testing.T, products *mockProductRepo, users *mockUserRepo) *fixture {
	t.Helper()

	f := &fixture{
		products: products,
		users:    users,
		orders:   &mockOrderRepo{},
		notifier: &mockNotifier{},
	}
	svc, err := NewService(f.products, f.users, f.orders, f.notifier,
		WithPasswordGenerator(func() (string, error) { return "Gen3rated!pw", nil }),
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func productInput(sku, price, weight string) product.Input {
	in := product.Input{
		SKU:           sku,
		Title:         "Product " + sku,
		Description:   "About " + sku,
		Price:         decimal.RequireFromString(price),
		StockQuantity: 3,
	}
	if weight != "" {
		in.Weight = decimal.RequireFromString(weight)
	}
	return in
}

func newRequest(email string, products ...product.Input) Request {
	return Request{
		Products: products,
		Order: &OrderInput{
			User: UserInput{
				Email:     email,
				FirstName: "Jane",
				LastName:  "Doe",
				Billing: &sanitize.Address{
					FirstName: "Jane",
					Address1:  "1 Main St",
					City:      "Springfield",
					Postcode:  "12345",
					Country:   "US",
				},
			},
			Shipping: sanitize.Address{
				FirstName: "Jane",
				Address1:  "2 Side St",
				City:      "Shelbyville",
				Country:   "US",
			},
		},
	}
}

// --- Tests ---

func TestSync_MissingData(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "no products", req: Request{Order: &OrderInput{}}},
		{name: "no order", req: Request{Products: []product.Input{productInput("ABC", "1", "")}}},
		{name: "empty request", req: Request{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, newProductRepo(), newUserRepo())

			_, err := f.svc.Sync(context.Background(), tt.req)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, MissingDataMessage, err.Error())
			assert.Zero(t, f.products.saves)
			assert.Empty(t, f.users.created)
			assert.Zero(t, f.orders.created)
		})
	}
}

func TestSync_NewCustomerLightShipping(t *testing.T) {
	f := newFixture(t, newProductRepo(), newUserRepo())

	result, err := f.svc.Sync(context.Background(), newRequest("new@example.com", productInput("ABC", "100", "5")))
	require.NoError(t, err)

	// Product upserted with the promotional price.
	id, err := f.products.FindIDBySKU(context.Background(), "ABC")
	require.NoError(t, err)
	p := f.products.byID[id]
	assert.True(t, decimal.RequireFromString("90.00").Equal(p.SalePrice))
	assert.True(t, decimal.NewFromInt(100).Equal(p.RegularPrice))
	assert.True(t, p.ManageStock)

	// New customer created and notified once.
	require.Len(t, f.users.created, 1)
	assert.Equal(t, user.RoleCustomer, f.users.created[0].Role)
	assert.Equal(t, "new@example.com", f.users.created[0].Login)
	assert.Positive(t, result.CreatedUserID)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, credentials{userID: result.CreatedUserID, password: "Gen3rated!pw"}, f.notifier.sent[0])

	// Order: one product line, one shipping line at the light tier.
	o := result.Order
	assert.Positive(t, o.ID)
	assert.Equal(t, result.CreatedUserID, o.CustomerID)
	require.Len(t, o.Items, 1)
	assert.Equal(t, id, o.Items[0].ProductID)
	assert.Equal(t, 1, o.Items[0].Quantity)
	require.Len(t, o.ShippingLines, 1)
	assert.Equal(t, pricing.ShippingMethodTitle, o.ShippingLines[0].MethodTitle)
	assert.True(t, decimal.NewFromInt(10).Equal(o.ShippingLines[0].Total))
	assert.Equal(t, 2, o.ItemCount())
	assert.True(t, decimal.NewFromInt(100).Equal(o.Total)) // 90 + 10

	// Addresses copied from the request.
	assert.Equal(t, "2 Side St", o.Shipping.Address1)
	assert.Equal(t, "1 Main St", o.Billing.Address1)
	assert.Equal(t, "12345", o.Billing.Postcode)
}

func TestSync_HeavyShipping(t *testing.T) {
	f := newFixture(t, newProductRepo(), newUserRepo())

	result, err := f.svc.Sync(context.Background(), newRequest("new@example.com", productInput("ABC", "100", "15")))
	require.NoError(t, err)

	require.Len(t, result.Order.ShippingLines, 1)
	assert.True(t, decimal.NewFromInt(20).Equal(result.Order.ShippingLines[0].Total))
}

func TestSync_ShippingUsesSummedWeight(t *testing.T) {
	tests := []struct {
		name    string
		weights []string
		want    int64
	}{
		{name: "exactly ten", weights: []string{"4", "6"}, want: 10},
		{name: "just over ten", weights: []string{"4", "6.0001"}, want: 20},
		{name: "missing weights count as zero", weights: []string{"", ""}, want: 10},
		{name: "many light products", weights: []string{"3", "3", "3", "3"}, want: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, newProductRepo(), newUserRepo())

			inputs := make([]product.Input, len(tt.weights))
			for i, w := range tt.weights {
				inputs[i] = productInput(string(rune('A'+i)), "10", w)
			}

			result, err := f.svc.Sync(context.Background(), newRequest("new@example.com", inputs...))
			require.NoError(t, err)

			assert.Len(t, result.Order.Items, len(tt.weights))
			assert.Equal(t, len(tt.weights)+1, result.Order.ItemCount())
			assert.True(t, decimal.NewFromInt(tt.want).Equal(result.Order.ShippingTotal))
		})
	}
}

func TestSync_ExistingCustomer(t *testing.T) {
	existing := &user.User{ID: 42, Email: "known@example.com", Login: "known@example.com", Role: user.RoleCustomer}
	f := newFixture(t, newProductRepo(), newUserRepo(existing))

	result, err := f.svc.Sync(context.Background(), newRequest("  Known@Example.COM ", productInput("ABC", "10", "1")))
	require.NoError(t, err)

	assert.Zero(t, result.CreatedUserID)
	assert.Empty(t, f.users.created)
	assert.Empty(t, f.notifier.sent)
	assert.Equal(t, int64(42), result.Order.CustomerID)
}

func TestSync_UpdatesExistingProduct(t *testing.T) {
	old := &product.Product{
		ID:           7,
		SKU:          "ABC",
		Type:         product.TypeSimple,
		Name:         "Old name",
		RegularPrice: decimal.NewFromInt(1),
	}
	f := newFixture(t, newProductRepo(old), newUserRepo())

	result, err := f.svc.Sync(context.Background(), newRequest("new@example.com", productInput("ABC", "50", "2")))
	require.NoError(t, err)

	require.Len(t, f.products.byID, 1)
	p := f.products.byID[7]
	assert.Equal(t, "Product ABC", p.Name)
	assert.True(t, decimal.RequireFromString("45").Equal(p.SalePrice))
	assert.Equal(t, int64(7), result.Order.Items[0].ProductID)
}

func TestSync_DuplicateSKUInBatch(t *testing.T) {
	f := newFixture(t, newProductRepo(), newUserRepo())

	result, err := f.svc.Sync(context.Background(), newRequest("new@example.com",
		productInput("ABC", "10", "6"),
		productInput("ABC", "20", "6"),
	))
	require.NoError(t, err)

	// One stored product, two lines, weight of both inputs counted.
	assert.Len(t, f.products.byID, 1)
	require.Len(t, result.Order.Items, 2)
	assert.Equal(t, result.Order.Items[0].ProductID, result.Order.Items[1].ProductID)
	assert.True(t, decimal.NewFromInt(20).Equal(result.Order.ShippingTotal))
}

func TestSync_BillingMeta(t *testing.T) {
	f := newFixture(t, newProductRepo(), newUserRepo())

	result, err := f.svc.Sync(context.Background(), newRequest("new@example.com", productInput("ABC", "10", "1")))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		user.MetaBillingAddress1: "1 Main St",
		user.MetaBillingCity:     "Springfield",
		user.MetaBillingCountry:  "US",
	}, f.users.meta[result.CreatedUserID])
}

func TestSync_NoBillingMeta(t *testing.T) {
	f := newFixture(t, newProductRepo(), newUserRepo())

	req := newRequest("new@example.com", productInput("ABC", "10", "1"))
	req.Order.User.Billing = nil

	result, err := f.svc.Sync(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, f.users.meta[result.CreatedUserID])
	assert.True(t, result.Order.Billing.IsZero())
}

func TestSync_EmptyBillingWritesEmptyMeta(t *testing.T) {
	f := newFixture(t, newProductRepo(), newUserRepo())

	req := newRequest("new@example.com", productInput("ABC", "10", "1"))
	req.Order.User.Billing = &sanitize.Address{}

	result, err := f.svc.Sync(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		user.MetaBillingAddress1: "",
		user.MetaBillingCity:     "",
		user.MetaBillingCountry:  "",
	}, f.users.meta[result.CreatedUserID])
}

func TestSync_ProductFailureAborts(t *testing.T) {
	products := newProductRepo()
	products.saveErr = map[string]error{"BAD": errors.New("invalid or duplicated SKU")}
	f := newFixture(t, products, newUserRepo())

	_, err := f.svc.Sync(context.Background(), newRequest("new@example.com",
		productInput("OK1", "10", "1"),
		productInput("BAD", "10", "1"),
		productInput("OK2", "10", "1"),
	))

	var pErr *ProductUpsertError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "BAD", pErr.SKU)
	assert.Equal(t, "invalid or duplicated SKU", err.Error())

	// The first product stays saved, the third is never attempted.
	assert.Equal(t, 1, products.saves)
	assert.Empty(t, f.users.created)
	assert.Zero(t, f.orders.created)
}

func TestSync_EmptySKURejectedByStore(t *testing.T) {
	f := newFixture(t, newProductRepo(), newUserRepo())

	_, err := f.svc.Sync(context.Background(), newRequest("new@example.com", productInput("  ", "10", "1")))

	var pErr *ProductUpsertError
	require.ErrorAs(t, err, &pErr)
	require.ErrorIs(t, err, product.ErrInvalidSKU)
}

func TestSync_UserCreationFailure(t *testing.T) {
	users := newUserRepo()
	users.createErr = errors.New("sorry, that username already exists")
	f := newFixture(t, newProductRepo(), users)

	_, err := f.svc.Sync(context.Background(), newRequest("new@example.com", productInput("ABC", "10", "1")))

	var uErr *UserCreationError
	require.ErrorAs(t, err, &uErr)
	assert.Equal(t, "sorry, that username already exists", err.Error())
	assert.Empty(t, f.notifier.sent)
	assert.Zero(t, f.orders.created)
}

func TestSync_InvalidEmail(t *testing.T) {
	f := newFixture(t, newProductRepo(), newUserRepo())

	_, err := f.svc.Sync(context.Background(), newRequest("", productInput("ABC", "10", "1")))

	var uErr *UserCreationError
	require.ErrorAs(t, err, &uErr)
	require.ErrorIs(t, err, user.ErrInvalidEmail)
}

func TestSync_UserLookupFailure(t *testing.T) {
	users := newUserRepo()
	users.findErr = errors.New("connection refused")
	f := newFixture(t, newProductRepo(), users)

	_, err := f.svc.Sync(context.Background(), newRequest("new@example.com", productInput("ABC", "10", "1")))

	var uErr *UserCreationError
	require.ErrorAs(t, err, &uErr)
	assert.Empty(t, users.created)
}

func TestSync_UserVanishesAfterCreation(t *testing.T) {
	users := newUserRepo()
	users.lostAfter = true
	f := newFixture(t, newProductRepo(), users)

	_, err := f.svc.Sync(context.Background(), newRequest("new@example.com", productInput("ABC", "10", "1")))

	var iErr *InternalInvariantError
	require.ErrorAs(t, err, &iErr)
	assert.Positive(t, iErr.UserID)
	assert.Zero(t, f.orders.created)
}

func TestSync_OrderFailureKeepsEarlierSideEffects(t *testing.T) {
	f := newFixture(t, newProductRepo(), newUserRepo())
	f.orders.err = errors.New("order store unavailable")

	_, err := f.svc.Sync(context.Background(), newRequest("new@example.com", productInput("ABC", "10", "1")))

	var oErr *OrderCreationError
	require.ErrorAs(t, err, &oErr)
	assert.Equal(t, "order store unavailable", err.Error())

	assert.Equal(t, 1, f.products.saves)
	assert.Len(t, f.users.created, 1)
	assert.Len(t, f.notifier.sent, 1)
}

func TestSync_PasswordGeneratorFailure(t *testing.T) {
	f := newFixture(t, newProductRepo(), newUserRepo())
	f.svc.passwords = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := f.svc.Sync(context.Background(), newRequest("new@example.com", productInput("ABC", "10", "1")))

	var uErr *UserCreationError
	require.ErrorAs(t, err, &uErr)
	assert.Empty(t, f.users.created)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, "success", outcomeOf(nil))
	assert.Equal(t, "validation_error", outcomeOf(ErrMissingData))
	assert.Equal(t, "product_error", outcomeOf(&ProductUpsertError{Err: errors.New("x")}))
	assert.Equal(t, "user_error", outcomeOf(&UserCreationError{Err: errors.New("x")}))
	assert.Equal(t, "order_error", outcomeOf(&OrderCreationError{Err: errors.New("x")}))
	assert.Equal(t, "internal_error", outcomeOf(&InternalInvariantError{Err: errors.New("x")}))
}
