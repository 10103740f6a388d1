package models

import "time"

// Transaction purposes
const (
	PurposePackage = "package"
	PurposeUnlock  = "unlock"
)

// Transaction states. State only ever moves forward:
// pending -> completed -> fulfilled, or pending -> failed. An unlock
// fulfillment passes through submitting while its supplier order is in
// flight, so only one worker ever places the order.
const (
	TxPending    = "pending"
	TxCompleted  = "completed"
	TxSubmitting = "submitting"
	TxFailed     = "failed"
	TxFulfilled  = "fulfilled"
)

// Transaction correlates a purchase intent with its payment and fulfillment.
// Reference is the caller-generated idempotency reference; a given reference
// reaches fulfilled at most once.
type Transaction struct {
	ID           string    `json:"id"`
	Reference    string    `json:"reference"`
	UserID       string    `json:"user_id"`
	Purpose      string    `json:"purpose"`
	Package      *string   `json:"package,omitempty"`      // package purchases only
	DeviceModel  *string   `json:"device_model,omitempty"` // unlock purchases only
	IMEI         *string   `json:"imei,omitempty"`         // unlock purchases only
	Amount       float64   `json:"amount"`                 // sell price, USD
	SupplierCost *float64  `json:"-"`                      // unlock purchases: what the gateway charges us
	PaymentRef   *string   `json:"payment_ref,omitempty"`  // provider checkout session id
	OrderRef     *string   `json:"order_ref,omitempty"`    // gateway order reference after fulfillment
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsTerminal reports whether no further state transitions are possible.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TxFailed || t.Status == TxFulfilled
}

// Profit is the margin on an unlock purchase, zero when no supplier cost
// is recorded.
func (t *Transaction) Profit() float64 {
	if t.SupplierCost == nil {
		return 0
	}
	return t.Amount - *t.SupplierCost
}
