package service

import (
	"testing"

	"course-commerce/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateTotal(t *testing.T) {
	os := &OrderService{}

	items := []models.CartItem{
		{CourseID: 1, Quantity: 2},
		{CourseID: 2, Quantity: 1},
	}

	courses := map[int64]*models.Course{
		1: {ID: 1, Price: decimal.NewFromFloat(199.50), Currency: "SAR"},
		2: {ID: 2, Price: decimal.NewFromInt(500), Currency: "SAR"},
	}

	total, currency := os.calculateTotal(items, courses)

	assert.True(t, decimal.NewFromFloat(899.00).Equal(total), "got %s", total)
	assert.Equal(t, "SAR", currency)
}

func TestCalculateTotalEmptyCart(t *testing.T) {
	os := &OrderService{}

	total, currency := os.calculateTotal(nil, nil)

	assert.True(t, decimal.Zero.Equal(total))
	assert.Equal(t, "SAR", currency)
}

func TestCalculateTotalCurrencyFromFirstItem(t *testing.T) {
	os := &OrderService{}

	items := []models.CartItem{{CourseID: 7, Quantity: 1}}
	courses := map[int64]*models.Course{
		7: {ID: 7, Price: decimal.NewFromInt(40), Currency: "USD"},
	}

	_, currency := os.calculateTotal(items, courses)
	assert.Equal(t, "USD", currency)
}

func TestCreateOrderIdempotency(t *testing.T) {
	// Requires Postgres and Redis; covered by store integration tests
	t.Skip("Requires mocked store")
}

func TestCreateOrderConcurrentIdempotencyKey(t *testing.T) {
	// Two requests racing on the same key: the loser re-fetches the
	// winner's order. The unique-key conflict and re-fetch primitives
	// are covered by TestOrderIdempotencyKey in the store package.
	t.Skip("Requires mocked store")
}

func TestCreateOrderItemFailureCompensates(t *testing.T) {
	// An item insert failure releases every reserved seat and fails the
	// partially written order. The seat release and Pending -> Failed
	// CAS are covered by the store integration tests.
	t.Skip("Requires mocked store")
}
