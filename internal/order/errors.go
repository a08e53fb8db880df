package order

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrEmptyCart                = errors.New("cart has no available items")
	ErrProductNoLongerAvailable = errors.New("a product in the cart is no longer available")
	ErrOrderNotFound            = errors.New("order not found")
	ErrPersistence              = errors.New("failed to persist order")
	ErrDuplicateOrderNumber     = errors.New("order number already exists")
)

// ValidationError maps request field names to the rule they failed.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid checkout details: " + strings.Join(names, ", ")
}
