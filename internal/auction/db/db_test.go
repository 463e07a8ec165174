package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"auctionhouse/internal/apperr"
	"auctionhouse/internal/auction/db"
	"auctionhouse/internal/models"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	tables := []interface{}{
		(*models.User)(nil), (*models.Product)(nil), (*models.Bid)(nil),
		(*models.Order)(nil), (*models.OrderItem)(nil),
	}
	for _, m := range tables {
		if _, err := bunDB.NewCreateTable().Model(m).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func insertAuction(t *testing.T, bunDB *bun.DB, startingPrice, currentHighest float64, status models.ProductStatus, endsAt time.Time) string {
	productID := uuid.New().String()
	product := models.Product{
		ID:                productID,
		Name:              "Vintage Camera",
		Type:              models.TypeAuction,
		Status:            status,
		StartingPrice:     startingPrice,
		CurrentHighestBid: currentHighest,
		AuctionEndTime:    endsAt,
		CreatedAt:         time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&product).Exec(context.Background())
	assert.NoError(t, err)
	return productID
}

func insertBid(t *testing.T, bunDB *bun.DB, productID, userID string, amount float64, createdAt time.Time) string {
	bid := models.Bid{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    userID,
		Amount:    amount,
		CreatedAt: createdAt,
	}
	_, err := bunDB.NewInsert().Model(&bid).Exec(context.Background())
	assert.NoError(t, err)
	return bid.ID
}

func TestAcceptBidRaisesMarkerAndStoresBid(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	productID := insertAuction(t, bunDB, 50, 0, models.ProductActive, time.Now().Add(time.Hour))

	bid := &models.Bid{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    "user1",
		Amount:    60,
		CreatedAt: time.Now(),
	}

	prevLeader, err := auctionDB.AcceptBid(context.Background(), bid)
	assert.NoError(t, err)
	assert.Empty(t, prevLeader)

	var product models.Product
	err = bunDB.NewSelect().Model(&product).Where("id = ?", productID).Scan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 60.0, product.CurrentHighestBid)

	count, err := bunDB.NewSelect().Model((*models.Bid)(nil)).Where("product_id = ?", productID).Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAcceptBidFirstBidOnFreshAuction(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	// An untouched marker persists as NULL through the nullzero tag; the
	// first real bid must still clear the starting price and get accepted.
	productID := insertAuction(t, bunDB, 50, 0, models.ProductActive, time.Now().Add(time.Hour))

	bid := &models.Bid{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    "user1",
		Amount:    51,
		CreatedAt: time.Now(),
	}

	prevLeader, err := auctionDB.AcceptBid(context.Background(), bid)
	assert.NoError(t, err)
	assert.Empty(t, prevLeader)

	var product models.Product
	err = bunDB.NewSelect().Model(&product).Where("id = ?", productID).Scan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 51.0, product.CurrentHighestBid)

	count, err := bunDB.NewSelect().Model((*models.Bid)(nil)).Where("product_id = ?", productID).Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAcceptBidConcurrentBidders(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	// One shared in-memory database; each goroutine still races through the
	// full read-compare-update path.
	bunDB.SetMaxOpenConns(1)

	productID := insertAuction(t, bunDB, 50, 0, models.ProductActive, time.Now().Add(time.Hour))

	amounts := make([]float64, 20)
	for i := range amounts {
		amounts[i] = 51 + float64(i)
	}

	var mu sync.Mutex
	var accepted []float64

	var wg sync.WaitGroup
	for i, amount := range amounts {
		wg.Add(1)
		go func(userID string, amount float64) {
			defer wg.Done()

			bid := &models.Bid{
				ID:        uuid.New().String(),
				ProductID: productID,
				UserID:    userID,
				Amount:    amount,
				CreatedAt: time.Now(),
			}

			_, err := auctionDB.AcceptBid(context.Background(), bid)
			if err != nil {
				// The only legal rejection under contention is losing the
				// threshold race.
				assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
				return
			}

			mu.Lock()
			accepted = append(accepted, amount)
			mu.Unlock()
		}(fmt.Sprintf("user%02d", i), amount)
	}
	wg.Wait()

	assert.NotEmpty(t, accepted)

	maxAccepted := accepted[0]
	for _, amount := range accepted {
		if amount > maxAccepted {
			maxAccepted = amount
		}
	}

	// The marker ends at the highest accepted amount, and exactly the
	// accepted bids were persisted, all above the starting price and none
	// above the final marker.
	var product models.Product
	err := bunDB.NewSelect().Model(&product).Where("id = ?", productID).Scan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, maxAccepted, product.CurrentHighestBid)

	var bids []models.Bid
	err = bunDB.NewSelect().Model(&bids).Where("product_id = ?", productID).Scan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, len(accepted), len(bids))
	for _, b := range bids {
		assert.Greater(t, b.Amount, 50.0)
		assert.LessOrEqual(t, b.Amount, maxAccepted)
	}
}

func TestAcceptBidReturnsDisplacedLeader(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	productID := insertAuction(t, bunDB, 50, 60, models.ProductActive, time.Now().Add(time.Hour))
	insertBid(t, bunDB, productID, "leader", 60, time.Now().Add(-time.Minute))

	bid := &models.Bid{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    "challenger",
		Amount:    70,
		CreatedAt: time.Now(),
	}

	prevLeader, err := auctionDB.AcceptBid(context.Background(), bid)
	assert.NoError(t, err)
	assert.Equal(t, "leader", prevLeader)
}

func TestAcceptBidRejectsStaleAmount(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	productID := insertAuction(t, bunDB, 50, 80, models.ProductActive, time.Now().Add(time.Hour))

	bid := &models.Bid{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    "user1",
		Amount:    70,
		CreatedAt: time.Now(),
	}

	_, err := auctionDB.AcceptBid(context.Background(), bid)
	assert.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// Nothing persisted, nothing moved.
	var product models.Product
	err = bunDB.NewSelect().Model(&product).Where("id = ?", productID).Scan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 80.0, product.CurrentHighestBid)

	count, err := bunDB.NewSelect().Model((*models.Bid)(nil)).Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAcceptBidRejectsAmountAtStartingPrice(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	productID := insertAuction(t, bunDB, 50, 0, models.ProductActive, time.Now().Add(time.Hour))

	bid := &models.Bid{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    "user1",
		Amount:    50,
		CreatedAt: time.Now(),
	}

	_, err := auctionDB.AcceptBid(context.Background(), bid)
	assert.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestAcceptBidRejectsClosedAuction(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	productID := insertAuction(t, bunDB, 50, 60, models.ProductConcluded, time.Now().Add(-time.Hour))

	bid := &models.Bid{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    "user1",
		Amount:    100,
		CreatedAt: time.Now(),
	}

	_, err := auctionDB.AcceptBid(context.Background(), bid)
	assert.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "not active")
}

func TestAcceptBidUnknownProduct(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	bid := &models.Bid{
		ID:        uuid.New().String(),
		ProductID: "missing",
		UserID:    "user1",
		Amount:    100,
		CreatedAt: time.Now(),
	}

	_, err := auctionDB.AcceptBid(context.Background(), bid)
	assert.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestFindWinningBidHighestWins(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	productID := insertAuction(t, bunDB, 50, 90, models.ProductActive, time.Now().Add(-time.Minute))
	insertBid(t, bunDB, productID, "userA", 60, time.Now().Add(-3*time.Minute))
	insertBid(t, bunDB, productID, "userB", 90, time.Now().Add(-2*time.Minute))
	insertBid(t, bunDB, productID, "userC", 75, time.Now().Add(-time.Minute))

	winner, err := auctionDB.FindWinningBid(context.Background(), productID)
	assert.NoError(t, err)
	assert.NotNil(t, winner)
	assert.Equal(t, "userB", winner.UserID)
	assert.Equal(t, 90.0, winner.Amount)
}

func TestFindWinningBidTieGoesToEarliest(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	productID := insertAuction(t, bunDB, 50, 90, models.ProductActive, time.Now().Add(-time.Minute))
	insertBid(t, bunDB, productID, "early", 90, time.Now().Add(-10*time.Minute))
	insertBid(t, bunDB, productID, "late", 90, time.Now().Add(-5*time.Minute))

	winner, err := auctionDB.FindWinningBid(context.Background(), productID)
	assert.NoError(t, err)
	assert.NotNil(t, winner)
	assert.Equal(t, "early", winner.UserID)
}

func TestFindWinningBidNoBids(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	productID := insertAuction(t, bunDB, 50, 0, models.ProductActive, time.Now().Add(-time.Minute))

	winner, err := auctionDB.FindWinningBid(context.Background(), productID)
	assert.NoError(t, err)
	assert.Nil(t, winner)
}

func TestFindEndedAuctions(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ended := insertAuction(t, bunDB, 50, 0, models.ProductActive, time.Now().Add(-time.Minute))
	insertAuction(t, bunDB, 50, 0, models.ProductActive, time.Now().Add(time.Hour))
	insertAuction(t, bunDB, 50, 0, models.ProductExpired, time.Now().Add(-time.Hour))

	// Fixed-price products never show up in the sweep.
	fixed := models.Product{
		ID:        uuid.New().String(),
		Name:      "Keyboard",
		Type:      models.TypeFixedPrice,
		Status:    models.ProductActive,
		Price:     99,
		CreatedAt: time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&fixed).Exec(context.Background())
	assert.NoError(t, err)

	candidates, err := auctionDB.FindEndedAuctions(context.Background(), time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 1, len(candidates))
	assert.Equal(t, ended, candidates[0].ID)
}

func TestExpireAuctionOnlyOnce(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	productID := insertAuction(t, bunDB, 50, 0, models.ProductActive, time.Now().Add(-time.Minute))

	expired, err := auctionDB.ExpireAuction(context.Background(), productID)
	assert.NoError(t, err)
	assert.True(t, expired)

	expired, err = auctionDB.ExpireAuction(context.Background(), productID)
	assert.NoError(t, err)
	assert.False(t, expired)

	var product models.Product
	err = bunDB.NewSelect().Model(&product).Where("id = ?", productID).Scan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, models.ProductExpired, product.Status)
}

func TestConcludeAuctionCreatesOrderOnce(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	productID := insertAuction(t, bunDB, 50, 90, models.ProductActive, time.Now().Add(-time.Minute))

	makeOrder := func() (*models.Order, *models.OrderItem) {
		order := &models.Order{
			ID:          uuid.New().String(),
			UserID:      "winner",
			TotalAmount: 90,
			Status:      models.OrderPendingPayment,
			CreatedAt:   time.Now(),
		}
		item := &models.OrderItem{
			ID:         uuid.New().String(),
			OrderID:    order.ID,
			ProductID:  productID,
			Quantity:   1,
			UnitPrice:  90,
			TotalPrice: 90,
		}
		return order, item
	}

	order, item := makeOrder()
	concluded, err := auctionDB.ConcludeAuction(context.Background(), productID, order, item)
	assert.NoError(t, err)
	assert.True(t, concluded)

	// A second resolution attempt must not create a duplicate order.
	order2, item2 := makeOrder()
	concluded, err = auctionDB.ConcludeAuction(context.Background(), productID, order2, item2)
	assert.NoError(t, err)
	assert.False(t, concluded)

	orderCount, err := bunDB.NewSelect().Model((*models.Order)(nil)).Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, orderCount)

	itemCount, err := bunDB.NewSelect().Model((*models.OrderItem)(nil)).Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, itemCount)

	var product models.Product
	err = bunDB.NewSelect().Model(&product).Where("id = ?", productID).Scan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, models.ProductConcluded, product.Status)
}

func TestDeleteBid(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	productID := insertAuction(t, bunDB, 50, 60, models.ProductActive, time.Now().Add(time.Hour))
	bidID := insertBid(t, bunDB, productID, "user1", 60, time.Now())

	err := auctionDB.DeleteBid(context.Background(), bidID)
	assert.NoError(t, err)

	count, err := bunDB.NewSelect().Model((*models.Bid)(nil)).Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCounts(t *testing.T) {
	auctionDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	active := insertAuction(t, bunDB, 50, 0, models.ProductActive, time.Now().Add(time.Hour))
	insertAuction(t, bunDB, 50, 0, models.ProductActive, time.Now().Add(time.Hour))
	insertAuction(t, bunDB, 50, 0, models.ProductConcluded, time.Now().Add(-time.Hour))
	insertBid(t, bunDB, active, "user1", 55, time.Now())
	insertBid(t, bunDB, active, "user2", 60, time.Now())

	activeCount, err := auctionDB.CountAuctionsByStatus(context.Background(), models.ProductActive)
	assert.NoError(t, err)
	assert.Equal(t, 2, activeCount)

	concludedCount, err := auctionDB.CountAuctionsByStatus(context.Background(), models.ProductConcluded)
	assert.NoError(t, err)
	assert.Equal(t, 1, concludedCount)

	bidCount, err := auctionDB.CountBids(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, bidCount)
}
