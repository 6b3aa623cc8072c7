package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Recipient is the addressee of an order.
type Recipient struct {
	bun.BaseModel `bun:"table:recipients,alias:r"`

	ID         int64     `bun:",pk,autoincrement" json:"id"`
	Name       string    `bun:"name,notnull" json:"name"`
	Street     string    `bun:"street,notnull" json:"street"`
	Number     string    `bun:"number,notnull" json:"number"`
	Complement string    `bun:"complement" json:"complement,omitempty"`
	City       string    `bun:"city,notnull" json:"city"`
	State      string    `bun:"state,notnull" json:"state"`
	Zip        string    `bun:"zip,notnull" json:"zip"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}
