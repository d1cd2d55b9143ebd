package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionOrder(t *testing.T) {
	tests := []struct {
		from    string
		to      string
		allowed bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusPaid, OrderStatusRefunded, true},
		{OrderStatusPending, OrderStatusRefunded, false},
		{OrderStatusPaid, OrderStatusPending, false},
		{OrderStatusPaid, OrderStatusFailed, false},
		{OrderStatusFailed, OrderStatusPaid, false},
		{OrderStatusRefunded, OrderStatusPaid, false},
		{"", OrderStatusPaid, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, CanTransitionOrder(tt.from, tt.to),
			"transition %s -> %s", tt.from, tt.to)
	}
}
