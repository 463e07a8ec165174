package storage

import (
	"fmt"
	"sync"
	"time"

	"auctionhouse/internal/models"
)

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	byOrder map[string]*models.Payment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byOrder: make(map[string]*models.Payment)}
}

func (s *MemoryStore) SavePayment(payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *payment
	s.byOrder[payment.OrderID] = &cp
	return nil
}

func (s *MemoryStore) GetPaymentByOrderID(orderID string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byOrder[orderID]
	if !ok {
		return nil, fmt.Errorf("no payment found for order %s", orderID)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpdatePaymentStatus(orderID string, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byOrder[orderID]
	if !ok {
		return fmt.Errorf("no payment found for order %s", orderID)
	}
	p.Status = status
	p.UpdatedDate = time.Now()
	return nil
}
