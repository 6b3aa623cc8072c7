package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Courier delivers orders assigned to them.
type Courier struct {
	bun.BaseModel `bun:"table:couriers,alias:c"`

	ID           int64     `bun:",pk,autoincrement" json:"id"`
	Name         string    `bun:"name,notnull" json:"name"`
	Email        string    `bun:"email,notnull,unique" json:"email"`
	AvatarFileID *int64    `bun:"avatar_file_id" json:"avatar_file_id,omitempty"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero" json:"updated_at"`

	Avatar *StoredFile `bun:"rel:belongs-to,join:avatar_file_id=id" json:"avatar,omitempty"`
}
