package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Incident is a delivery problem reported against an order.
type Incident struct {
	bun.BaseModel `bun:"table:delivery_incidents,alias:i"`

	ID          int64     `bun:",pk,autoincrement" json:"id"`
	OrderID     int64     `bun:"order_id,notnull" json:"order_id"`
	Description string    `bun:"description,notnull" json:"description"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`

	Order *Order `bun:"rel:belongs-to,join:order_id=id" json:"order,omitempty"`
}
