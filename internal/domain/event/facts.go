package event

// BasketLine is one position of a checked-out basket.
type BasketLine struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// BasketCheckedOut is published by the basket service when a basket is
// checked out. Immutable once written to the outbox.
type BasketCheckedOut struct {
	BasketID string       `json:"basketId"`
	UserID   string       `json:"userId"`
	Items    []BasketLine `json:"items"`
}

// OrderLine is one position of an order, without price information.
type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderCreated is published by the order service after the order rows
// are committed. BasketID links back to the originating checkout.
type OrderCreated struct {
	OrderID  string      `json:"orderId"`
	BasketID string      `json:"basketId"`
	Items    []OrderLine `json:"items"`
}

// OrderDeleted is published when an order is deleted. Items carry the
// quantities to restore; the product service verifies them against the
// decrement it actually applied.
type OrderDeleted struct {
	OrderID string      `json:"orderId"`
	Items   []OrderLine `json:"items"`
}
