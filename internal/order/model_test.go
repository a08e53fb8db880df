package order_test

import (
	"encoding/json"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/money"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/order"
)

func TestReceipt_JSONRendersFixedPointTotal(t *testing.T) {
	receipt := order.Receipt{
		OrderID:     uuid.Must(uuid.NewV4()),
		OrderNumber: "ECO-1718000000123-AB12C",
		TotalAmount: money.Round(money.LineTotal(money.RequireAmount("20.00"), 2)),
		ItemCount:   2,
	}

	raw, err := json.Marshal(receipt)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "40.00", got["total_amount"])
}

func TestOrderDetail_JSONRendersLineMoney(t *testing.T) {
	detail := order.OrderDetail{
		Order: order.Order{TotalAmount: money.RequireAmount("40")},
		Lines: []order.DetailLine{{
			Quantity:  2,
			UnitPrice: money.RequireAmount("20"),
			Subtotal:  money.LineTotal(money.RequireAmount("20"), 2),
		}},
	}

	raw, err := json.Marshal(detail)
	require.NoError(t, err)

	var got struct {
		TotalAmount string `json:"total_amount"`
		Lines       []struct {
			UnitPrice string `json:"unit_price"`
			Subtotal  string `json:"subtotal"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "40.00", got.TotalAmount)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "20.00", got.Lines[0].UnitPrice)
	assert.Equal(t, "40.00", got.Lines[0].Subtotal)
}
