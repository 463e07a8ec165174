package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ProductType string

const (
	TypeFixedPrice ProductType = "fixed_price"
	TypeAuction    ProductType = "auction"
)

type ProductStatus string

const (
	ProductActive    ProductStatus = "active"
	ProductInactive  ProductStatus = "inactive"
	ProductSold      ProductStatus = "sold"
	ProductExpired   ProductStatus = "expired"
	ProductConcluded ProductStatus = "concluded"
)

type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID          string        `bun:"id,pk" json:"id"`
	Name        string        `bun:"name,notnull" json:"name"`
	Description string        `bun:"description,nullzero" json:"description,omitempty"`
	Type        ProductType   `bun:"type,notnull" json:"type"`
	Status      ProductStatus `bun:"status,notnull" json:"status"`

	// Fixed-price fields.
	Price         float64 `bun:"price,nullzero" json:"price,omitempty"`
	StockQuantity int     `bun:"stock_quantity,nullzero" json:"stock_quantity,omitempty"`

	// Auction fields. CurrentHighestBid starts at StartingPrice and only
	// ever increases; AuctionEndTime is immutable once set.
	StartingPrice     float64   `bun:"starting_price,nullzero" json:"starting_price,omitempty"`
	CurrentHighestBid float64   `bun:"current_highest_bid,nullzero" json:"current_highest_bid,omitempty"`
	AuctionEndTime    time.Time `bun:"auction_end_time,nullzero" json:"auction_end_time,omitempty"`

	Category  string    `bun:"category,nullzero" json:"category,omitempty"`
	ViewCount int       `bun:"view_count,default:0" json:"view_count"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// BidThreshold is the amount a new bid must exceed.
func (p *Product) BidThreshold() float64 {
	if p.CurrentHighestBid > p.StartingPrice {
		return p.CurrentHighestBid
	}
	return p.StartingPrice
}
