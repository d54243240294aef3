package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storesync/internal/domain/product"
	"github.com/xenking/storesync/internal/sanitize"
)

func newTestProduct(id int64, sku string, regular string) *product.Product {
	p := product.New(sku)
	p.ID = id
	p.Apply(product.Input{SKU: sku, Title: sku, Price: decimal.RequireFromString(regular)})
	return p
}

func TestNew(t *testing.T) {
	o := New(7)

	assert.Equal(t, int64(7), o.CustomerID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, DefaultCurrency, o.Currency)
	assert.Regexp(t, `^wc_order_[0-9a-f]{13}$`, o.Key)
	assert.NotEqual(t, o.Key, New(7).Key)
}

func TestAddProduct(t *testing.T) {
	o := New(1)
	require.NoError(t, o.AddProduct(newTestProduct(10, "ABC", "100"), 1))
	require.NoError(t, o.AddProduct(newTestProduct(11, "DEF", "19.99"), 2))

	require.Len(t, o.Items, 2)
	assert.Equal(t, int64(10), o.Items[0].ProductID)
	assert.Equal(t, "ABC", o.Items[0].SKU)
	assert.True(t, decimal.RequireFromString("90").Equal(o.Items[0].Total))
	assert.True(t, decimal.RequireFromString("35.98").Equal(o.Items[1].Total))

	require.ErrorIs(t, o.AddProduct(newTestProduct(12, "X", "1"), 0), ErrInvalidQuantity)
}

func TestSetAddress(t *testing.T) {
	o := New(1)
	o.SetAddress(AddressShipping, sanitize.Address{City: " Paris\n", Country: "FR"})
	o.SetAddress(AddressBilling, sanitize.Address{Address1: "<b>1</b> Rue"})

	assert.Equal(t, "Paris", o.Shipping.City)
	assert.Equal(t, "FR", o.Shipping.Country)
	assert.Equal(t, "1 Rue", o.Billing.Address1)
}

func TestCalculateTotals(t *testing.T) {
	o := New(1)
	require.NoError(t, o.AddProduct(newTestProduct(10, "ABC", "100"), 1))
	require.NoError(t, o.AddProduct(newTestProduct(11, "DEF", "10"), 1))
	o.AddShipping("Flat Rate Shipping", decimal.NewFromInt(20))
	o.CalculateTotals()

	assert.True(t, decimal.RequireFromString("99").Equal(o.Subtotal))
	assert.True(t, decimal.RequireFromString("20").Equal(o.ShippingTotal))
	assert.True(t, decimal.RequireFromString("119").Equal(o.Total))
	assert.Equal(t, 3, o.ItemCount())
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, New(0).Validate(), ErrNoCustomer)
	require.ErrorIs(t, New(1).Validate(), ErrNoItems)

	o := New(1)
	require.NoError(t, o.AddProduct(newTestProduct(10, "ABC", "1"), 1))
	require.NoError(t, o.Validate())
}
