package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"auctionhouse/internal/config"
	"auctionhouse/internal/logger"
	"auctionhouse/internal/models"
)

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB wraps an existing connection, used when the
// service shares one pool across stores.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	store := &PostgreSQLStore{db: db, log: log}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize payment tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize payment tables: %w", err)
	}

	return store, nil
}

func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "payments", fmt.Sprintf("Connecting to PostgreSQL at %s:%s", cfg.Host, cfg.Port))

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{db: db, log: log}

	if err := store.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "payments", "Payment store ready")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	paymentsQuery := `
    CREATE TABLE IF NOT EXISTS payments (
        payment_id VARCHAR(36) PRIMARY KEY,
        order_id VARCHAR(36) NOT NULL,
        invoice_id BIGINT,
        status VARCHAR(50) NOT NULL,
        amount DECIMAL(10,2) NOT NULL,
        url VARCHAR(500),
        created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        updated_date TIMESTAMP
    );
    `

	if _, err := s.db.Exec(paymentsQuery); err != nil {
		return fmt.Errorf("failed to create payments table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments(order_id);",
		"CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);",
	}

	for _, indexQuery := range indexes {
		if _, err := s.db.Exec(indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func (s *PostgreSQLStore) SavePayment(payment *models.Payment) error {
	s.log.LogDatabase("INSERT", "payments", fmt.Sprintf("Saving payment %s for order %s", payment.PaymentID, payment.OrderID))

	query := `
    INSERT INTO payments (payment_id, order_id, invoice_id, status, amount, url, created_date)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    `

	_, err := s.db.Exec(query,
		payment.PaymentID, payment.OrderID, payment.InvoiceID,
		string(payment.Status), payment.Amount, payment.URL, payment.CreatedDate)
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) GetPaymentByOrderID(orderID string) (*models.Payment, error) {
	query := `
    SELECT payment_id, order_id, invoice_id, status, amount, url, created_date, COALESCE(updated_date, created_date)
    FROM payments WHERE order_id = $1
    ORDER BY created_date DESC LIMIT 1
    `

	var p models.Payment
	var status string
	err := s.db.QueryRow(query, orderID).Scan(
		&p.PaymentID, &p.OrderID, &p.InvoiceID, &status, &p.Amount, &p.URL, &p.CreatedDate, &p.UpdatedDate)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no payment found for order %s", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}
	p.Status = models.OrderStatus(status)
	return &p, nil
}

func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}

func (s *PostgreSQLStore) UpdatePaymentStatus(orderID string, status models.OrderStatus) error {
	query := `UPDATE payments SET status = $1, updated_date = $2 WHERE order_id = $3`

	_, err := s.db.Exec(query, string(status), time.Now(), orderID)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}
