package service

import (
	"database/sql"
	"testing"

	"course-commerce/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSessionQuantities(t *testing.T) {
	items := []models.OrderItem{
		{CourseID: 1, SessionID: sql.NullInt64{Int64: 10, Valid: true}, Quantity: 2},
		{CourseID: 2, SessionID: sql.NullInt64{Int64: 10, Valid: true}, Quantity: 1},
		{CourseID: 3, SessionID: sql.NullInt64{Int64: 11, Valid: true}, Quantity: 3},
		{CourseID: 4, Quantity: 5},
	}

	q := sessionQuantities(items)

	assert.Equal(t, map[int64]int{10: 3, 11: 3}, q)
}

func TestSessionQuantitiesNoSessions(t *testing.T) {
	items := []models.OrderItem{{CourseID: 1, Quantity: 2}}
	assert.Empty(t, sessionQuantities(items))
}
