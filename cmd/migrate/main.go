package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"auctionhouse/internal/config"
	"auctionhouse/internal/models"
)

// Dev tool: wipes the schema, recreates it from the bun models and loads
// sample data. Use the migrations runner in the service for real deployments.
func main() {
	ctx := context.Background()

	cfg := config.Load()
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN()))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	log.Println("Dropping tables...")
	_ = dropTables(ctx, db)

	log.Println("Creating tables...")
	_ = createTables(ctx, db)

	log.Println("Seeding sample data...")
	_ = seedData(ctx, db)

	log.Println("Done.")
}

func dropTables(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.OrderItem)(nil), (*models.Order)(nil), (*models.Bid)(nil),
		(*models.Product)(nil), (*models.User)(nil),
	}
	for _, m := range tables {
		_, _ = db.NewDropTable().Model(m).IfExists().Cascade().Exec(ctx)
	}
	return nil
}

func createTables(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.User)(nil), (*models.Product)(nil), (*models.Bid)(nil),
		(*models.Order)(nil), (*models.OrderItem)(nil),
	}
	for _, m := range tables {
		_, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx)
		if err != nil {
			log.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}
	return nil
}

func seedData(ctx context.Context, db *bun.DB) error {
	users := []models.User{
		{ID: "user001", Email: "alice@example.com", FirstName: "Alice", LastName: "Wonderland", IsActive: true, CreatedAt: time.Now()},
		{ID: "user002", Email: "bob@example.com", FirstName: "Bob", LastName: "Builder", IsActive: true, CreatedAt: time.Now()},
	}
	_, _ = db.NewInsert().Model(&users).Exec(ctx)

	products := []models.Product{
		{
			ID:            "prod001",
			Name:          "Mechanical Keyboard",
			Description:   "87-key hot-swappable board.",
			Type:          models.TypeFixedPrice,
			Status:        models.ProductActive,
			Price:         129.99,
			StockQuantity: 25,
			Category:      "electronics",
			CreatedAt:     time.Now(),
		},
		{
			ID:             "prod002",
			Name:           "Vintage Film Camera",
			Description:    "1970s rangefinder, serviced last year.",
			Type:           models.TypeAuction,
			Status:         models.ProductActive,
			StartingPrice:  50.00,
			AuctionEndTime: time.Now().Add(48 * time.Hour),
			Category:       "collectibles",
			CreatedAt:      time.Now(),
		},
	}
	_, _ = db.NewInsert().Model(&products).Exec(ctx)

	bid := models.Bid{
		ID:        "bid001",
		ProductID: "prod002",
		UserID:    "user002",
		Amount:    55.00,
		CreatedAt: time.Now(),
	}
	_, _ = db.NewInsert().Model(&bid).Exec(ctx)

	_, _ = db.NewUpdate().Model((*models.Product)(nil)).
		Set("current_highest_bid = ?", bid.Amount).
		Where("id = ?", bid.ProductID).
		Exec(ctx)

	return nil
}
