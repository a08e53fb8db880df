package order_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/order"
)

func TestNewOrderNumber_Format(t *testing.T) {
	now := time.UnixMilli(1718000000123)

	number, err := order.NewOrderNumber(now)
	require.NoError(t, err)
	assert.Regexp(t, `^ECO-1718000000123-[A-Z0-9]{5}$`, number)
}

func TestNewOrderNumber_SuffixVaries(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		number, err := order.NewOrderNumber(now)
		require.NoError(t, err)
		seen[number] = struct{}{}
	}
	assert.Greater(t, len(seen), 45, "only %d distinct numbers", len(seen))
}
