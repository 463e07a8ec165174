package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Bid struct {
	bun.BaseModel `bun:"table:bids"`

	ID        string    `bun:"id,pk" json:"id"`
	ProductID string    `bun:"product_id,notnull" json:"product_id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	Amount    float64   `bun:"amount,notnull" json:"amount"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
