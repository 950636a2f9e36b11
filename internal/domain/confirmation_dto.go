package domain

import (
	"regexp"
	"strconv"
)

var orderReferencePattern = regexp.MustCompile(`order_(\d+)_`)

// ConfirmRequest is the client-asserted payment handed back by the checkout widget.
// Amount is forwarded to the processor and used for display only.
type ConfirmRequest struct {
	PaymentReference string
	OrderReference   string
	Amount           int64
	ItemID           *int64
}

// ResolveItemID prefers the explicit item id and falls back to parsing the
// order_{itemId}_{timestamp} reference.
func (r ConfirmRequest) ResolveItemID() *int64 {
	if r.ItemID != nil {
		id := *r.ItemID
		return &id
	}
	if id, ok := ExtractItemID(r.OrderReference); ok {
		return &id
	}
	return nil
}

// ExtractItemID pulls the catalog id out of an order reference.
// A reference that does not match is not an error.
func ExtractItemID(orderReference string) (int64, bool) {
	m := orderReferencePattern.FindStringSubmatch(orderReference)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
