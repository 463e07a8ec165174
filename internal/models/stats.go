package models

// AuctionStats are the counters exposed by the auction stats endpoint.
type AuctionStats struct {
	ActiveAuctions    int `json:"active_auctions"`
	ConcludedAuctions int `json:"concluded_auctions"`
	TotalBids         int `json:"total_bids"`
}
