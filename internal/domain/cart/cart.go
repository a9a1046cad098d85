package cart

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrEmpty is returned when a cart carries no line items.
var ErrEmpty = errors.New("cart items cannot be empty")

// ErrInvalidItem is the sentinel matched by every InvalidItemError.
var ErrInvalidItem = errors.New("invalid cart item")

// InvalidItemError describes a single malformed line item.
type InvalidItemError struct {
	Index     int
	ProductID int64
	Problem   string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("item %d (product %d): %s", e.Index, e.ProductID, e.Problem)
}

// Is reports whether target is ErrInvalidItem.
func (e *InvalidItemError) Is(target error) bool {
	return target == ErrInvalidItem
}

// LineItem is one row of a cart. The discount engine treats it as read-only.
type LineItem struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal returns UnitPrice * Quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is an ordered list of line items. Order is preserved through every
// discount computation.
type Cart struct {
	Items []LineItem
}

// New returns a cart over the given items.
func New(items ...LineItem) Cart {
	return Cart{Items: items}
}

// TotalPrice returns the sum of line totals.
func (c Cart) TotalPrice() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// TotalItemCount returns the sum of quantities.
func (c Cart) TotalItemCount() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// QuantityOf returns the quantity of productID in the cart, or 0.
func (c Cart) QuantityOf(productID int64) int {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

// Find returns the first line item for productID.
func (c Cart) Find(productID int64) (LineItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return LineItem{}, false
}

// Validate checks the invariants callers must establish before handing a
// cart to the discount engine: at least one item, positive quantities,
// non-negative prices and unique product ids.
func (c Cart) Validate() error {
	if len(c.Items) == 0 {
		return ErrEmpty
	}
	seen := make(map[int64]struct{}, len(c.Items))
	for i, item := range c.Items {
		if item.Quantity <= 0 {
			return &InvalidItemError{Index: i, ProductID: item.ProductID, Problem: "quantity must be greater than 0"}
		}
		if item.UnitPrice.IsNegative() {
			return &InvalidItemError{Index: i, ProductID: item.ProductID, Problem: "price must not be negative"}
		}
		if _, dup := seen[item.ProductID]; dup {
			return &InvalidItemError{Index: i, ProductID: item.ProductID, Problem: "duplicate product id"}
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}
