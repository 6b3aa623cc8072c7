package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderState is the lifecycle position derived from an order's timestamps.
type OrderState string

const (
	OrderAssigned  OrderState = "assigned"
	OrderPickedUp  OrderState = "picked_up"
	OrderDelivered OrderState = "delivered"
	OrderCanceled  OrderState = "canceled"
)

// Order represents one parcel movement from pickup to delivery.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              int64      `bun:",pk,autoincrement" json:"id"`
	RecipientID     int64      `bun:"recipient_id,notnull" json:"recipient_id"`
	CourierID       int64      `bun:"courier_id,notnull" json:"courier_id"`
	Product         string     `bun:"product,notnull" json:"product"`
	PickedUpAt      *time.Time `bun:"picked_up_at" json:"picked_up_at,omitempty"`
	DeliveredAt     *time.Time `bun:"delivered_at" json:"delivered_at,omitempty"`
	CanceledAt      *time.Time `bun:"canceled_at" json:"canceled_at,omitempty"`
	SignatureFileID *int64     `bun:"signature_file_id" json:"signature_file_id,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero" json:"updated_at"`

	Courier   *Courier   `bun:"rel:belongs-to,join:courier_id=id" json:"courier,omitempty"`
	Recipient *Recipient `bun:"rel:belongs-to,join:recipient_id=id" json:"recipient,omitempty"`
}

// State derives the lifecycle state. Terminal timestamps win over pickup.
func (o *Order) State() OrderState {
	switch {
	case o.CanceledAt != nil:
		return OrderCanceled
	case o.DeliveredAt != nil:
		return OrderDelivered
	case o.PickedUpAt != nil:
		return OrderPickedUp
	default:
		return OrderAssigned
	}
}

// IsTerminal reports whether no further transition is possible.
func (o *Order) IsTerminal() bool {
	return o.CanceledAt != nil || o.DeliveredAt != nil
}

// AssignedTo reports whether courierID owns the order.
func (o *Order) AssignedTo(courierID int64) bool {
	return o.CourierID == courierID
}
