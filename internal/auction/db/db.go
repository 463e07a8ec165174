package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"auctionhouse/internal/apperr"
	"auctionhouse/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- LOOKUPS ----------------

// GetProductByID returns nil without error when the product does not exist.
func (d *DB) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := d.Bun.NewSelect().
		Model(&product).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) GetBidByID(ctx context.Context, id string) (*models.Bid, error) {
	var bid models.Bid
	err := d.Bun.NewSelect().
		Model(&bid).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// ---------------- BID ACCEPTANCE ----------------

// AcceptBid persists a bid and raises the product's highest-bid marker in
// one transaction. The update only matches while the auction is still active
// and the amount beats both the stored highest bid and the starting price,
// so two racing bids can never both pass validation against a stale value:
// the loser's conditional update matches zero rows and the bid is rejected.
// Returns the user id of the displaced leader, or "" when there was none.
func (d *DB) AcceptBid(ctx context.Context, bid *models.Bid) (string, error) {
	var prevLeaderID string

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var product models.Product
		err := tx.NewSelect().
			Model(&product).
			Where("id = ?", bid.ProductID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("product %s not found", bid.ProductID)
		}
		if err != nil {
			return err
		}

		// Identify the current leader before the marker moves. Only a real
		// bid displaces someone; the starting price has no owner.
		if product.CurrentHighestBid > product.StartingPrice {
			var prev models.Bid
			err := tx.NewSelect().
				Model(&prev).
				Where("product_id = ?", bid.ProductID).
				Where("amount = ?", product.CurrentHighestBid).
				Order("created_at DESC").
				Limit(1).
				Scan(ctx)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if err == nil {
				prevLeaderID = prev.UserID
			}
		}

		res, err := tx.NewUpdate().
			Model((*models.Product)(nil)).
			Set("current_highest_bid = ?", bid.Amount).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", bid.ProductID).
			Where("status = ?", models.ProductActive).
			// Both columns are nullable; an untouched marker stores as NULL
			// and NULL < x would never match.
			Where("COALESCE(current_highest_bid, 0) < ?", bid.Amount).
			Where("COALESCE(starting_price, 0) < ?", bid.Amount).
			Exec(ctx)
		if err != nil {
			return err
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			// Lost the race or the auction closed under us. Re-read for an
			// accurate rejection message.
			var current models.Product
			if err := tx.NewSelect().Model(&current).Where("id = ?", bid.ProductID).Limit(1).Scan(ctx); err != nil {
				return err
			}
			if current.Status != models.ProductActive {
				return apperr.Conflict("auction is not active")
			}
			return apperr.Conflict("bid must be higher than current highest bid (%.2f)", current.BidThreshold())
		}

		_, err = tx.NewInsert().Model(bid).Exec(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	return prevLeaderID, nil
}

func (d *DB) DeleteBid(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Bid)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ---------------- RESOLUTION ----------------

// FindEndedAuctions returns active auctions whose end time has passed.
func (d *DB) FindEndedAuctions(ctx context.Context, now time.Time) ([]models.Product, error) {
	var products []models.Product
	err := d.Bun.NewSelect().
		Model(&products).
		Where("type = ?", models.TypeAuction).
		Where("status = ?", models.ProductActive).
		Where("auction_end_time <= ?", now).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// FindWinningBid picks the highest bid; on equal amounts the earliest wins.
func (d *DB) FindWinningBid(ctx context.Context, productID string) (*models.Bid, error) {
	var bid models.Bid
	err := d.Bun.NewSelect().
		Model(&bid).
		Where("product_id = ?", productID).
		Order("amount DESC", "created_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// ExpireAuction flips an active auction to expired. Reports false when the
// product was no longer active, i.e. someone else already resolved it.
func (d *DB) ExpireAuction(ctx context.Context, productID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Product)(nil)).
		Set("status = ?", models.ProductExpired).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", productID).
		Where("status = ?", models.ProductActive).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ConcludeAuction transitions the product to concluded and creates the
// winner's order with its item, all in one transaction. The status guard is
// what makes re-resolution a no-op: if the product already left active, no
// row matches, nothing is inserted and false comes back.
func (d *DB) ConcludeAuction(ctx context.Context, productID string, order *models.Order, item *models.OrderItem) (bool, error) {
	concluded := false

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Product)(nil)).
			Set("status = ?", models.ProductConcluded).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", productID).
			Where("status = ?", models.ProductActive).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}

		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(item).Exec(ctx); err != nil {
			return err
		}

		concluded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return concluded, nil
}

// SetOrderPayment attaches gateway session details to an order after the
// resolution transaction has committed.
func (d *DB) SetOrderPayment(ctx context.Context, orderID, paymentID, paymentURL string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_id = ?", paymentID).
		Set("payment_url = ?", paymentURL).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", orderID).
		Exec(ctx)
	return err
}

// ---------------- STATS ----------------

func (d *DB) CountAuctionsByStatus(ctx context.Context, status models.ProductStatus) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Product)(nil)).
		Where("type = ?", models.TypeAuction).
		Where("status = ?", status).
		Count(ctx)
}

func (d *DB) CountBids(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Bid)(nil)).
		Count(ctx)
}
