package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// StoredFile references an uploaded asset such as a signature or avatar.
type StoredFile struct {
	bun.BaseModel `bun:"table:files,alias:f"`

	ID        int64     `bun:",pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Path      string    `bun:"path,notnull,unique" json:"path"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}
