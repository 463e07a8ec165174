package auction

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"auctionhouse/internal/apperr"
	"auctionhouse/internal/logger"
	"auctionhouse/internal/models"
	"auctionhouse/internal/notify"
	"auctionhouse/internal/payment"
)

type DBLayer interface {
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetBidByID(ctx context.Context, id string) (*models.Bid, error)
	AcceptBid(ctx context.Context, bid *models.Bid) (string, error)
	DeleteBid(ctx context.Context, id string) error
	FindEndedAuctions(ctx context.Context, now time.Time) ([]models.Product, error)
	FindWinningBid(ctx context.Context, productID string) (*models.Bid, error)
	ExpireAuction(ctx context.Context, productID string) (bool, error)
	ConcludeAuction(ctx context.Context, productID string, order *models.Order, item *models.OrderItem) (bool, error)
	SetOrderPayment(ctx context.Context, orderID, paymentID, paymentURL string) error
	CountAuctionsByStatus(ctx context.Context, status models.ProductStatus) (int, error)
	CountBids(ctx context.Context) (int, error)
}

type PaymentGateway interface {
	IsConfigured() bool
	CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.SessionResponse, error)
}

type PaymentLog interface {
	SavePayment(payment *models.Payment) error
}

type StatsCache interface {
	Get(ctx context.Context) (*models.AuctionStats, bool)
	Set(ctx context.Context, stats *models.AuctionStats)
}

// AuctionService runs the bidding protocol and end-of-auction resolution.
type AuctionService struct {
	DB       DBLayer
	Gateway  PaymentGateway
	Payments PaymentLog
	Notifier notify.Notifier
	Cache    StatsCache
	logger   *logger.Logger
}

func NewAuctionService(db DBLayer, gateway PaymentGateway, payments PaymentLog, notifier notify.Notifier, cache StatsCache, log *logger.Logger) *AuctionService {
	return &AuctionService{
		DB:       db,
		Gateway:  gateway,
		Payments: payments,
		Notifier: notifier,
		Cache:    cache,
		logger:   log,
	}
}

// ---------------- BIDDING ----------------

// PlaceBid validates and accepts a bid. The precondition checks run in a
// fixed order so each failure mode surfaces as its own error; the final
// threshold check is re-run atomically inside AcceptBid, which is the
// authoritative gate under concurrency.
func (s *AuctionService) PlaceBid(ctx context.Context, productID, userID string, amount float64) (*models.Bid, error) {
	if amount <= 0 {
		return nil, apperr.BadInput("bid amount must be positive")
	}

	product, err := s.DB.GetProductByID(ctx, productID)
	if err != nil {
		return nil, apperr.Internal("failed to load product", err)
	}
	if product == nil {
		return nil, apperr.NotFound("product %s not found", productID)
	}

	if product.Type != models.TypeAuction {
		return nil, apperr.InvalidOperation("bids can only be placed on auction products")
	}

	if product.Status != models.ProductActive {
		return nil, apperr.Conflict("auction is not active")
	}

	if !product.AuctionEndTime.IsZero() && !time.Now().Before(product.AuctionEndTime) {
		return nil, apperr.Conflict("auction has ended")
	}

	user, err := s.DB.GetUserByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user %s not found", userID)
	}

	if amount <= product.BidThreshold() {
		return nil, apperr.Conflict("bid must be higher than current highest bid (%.2f)", product.BidThreshold())
	}

	bid := &models.Bid{
		ID:        uuid.NewString(),
		ProductID: productID,
		UserID:    userID,
		Amount:    amount,
		CreatedAt: time.Now(),
	}

	prevLeaderID, err := s.DB.AcceptBid(ctx, bid)
	if err != nil {
		return nil, err
	}

	s.logger.LogBid("ACCEPT", productID, fmt.Sprintf("User %s now leads at %.2f", userID, amount))

	// Outbid alert for the displaced leader. Fire-and-forget: a failed push
	// must never fail or roll back the accepted bid.
	if prevLeaderID != "" && prevLeaderID != userID {
		go func(leaderID string, p models.Product) {
			if !s.Notifier.Notify(context.Background(), leaderID, notify.Outbid(p.ID, p.Name, amount)) {
				s.logger.Warn("NOTIFY", fmt.Sprintf("Outbid notification for user %s was not delivered", leaderID))
			}
		}(prevLeaderID, *product)
	}

	return bid, nil
}

// CancelBid removes a bid before the auction ends. Only the bid's owner may
// cancel, and never once the auction left its active window.
func (s *AuctionService) CancelBid(ctx context.Context, bidID, userID string) error {
	bid, err := s.DB.GetBidByID(ctx, bidID)
	if err != nil {
		return apperr.Internal("failed to load bid", err)
	}
	if bid == nil {
		return apperr.NotFound("bid %s not found", bidID)
	}

	if bid.UserID != userID {
		return apperr.Forbidden("you can only cancel your own bids")
	}

	product, err := s.DB.GetProductByID(ctx, bid.ProductID)
	if err != nil {
		return apperr.Internal("failed to load product", err)
	}
	if product != nil {
		if product.Status != models.ProductActive {
			return apperr.Conflict("cannot cancel a bid after the auction has ended")
		}
		if !product.AuctionEndTime.IsZero() && !time.Now().Before(product.AuctionEndTime) {
			return apperr.Conflict("cannot cancel a bid after the auction has ended")
		}
	}

	if err := s.DB.DeleteBid(ctx, bidID); err != nil {
		return apperr.Internal("failed to delete bid", err)
	}

	s.logger.LogBid("CANCEL", bid.ProductID, fmt.Sprintf("User %s cancelled bid %s", userID, bidID))
	return nil
}

// ---------------- RESOLUTION ----------------

// ProcessEndedAuctions sweeps auctions whose end time has passed and
// resolves each one. A failing product is logged and skipped so one bad row
// cannot starve the rest of the batch.
func (s *AuctionService) ProcessEndedAuctions(ctx context.Context) error {
	candidates, err := s.DB.FindEndedAuctions(ctx, time.Now())
	if err != nil {
		return apperr.Internal("failed to query ended auctions", err)
	}

	if len(candidates) == 0 {
		s.logger.Debug("AUCTION", "No ended auctions to process")
		return nil
	}

	s.logger.Info("AUCTION", fmt.Sprintf("Processing %d ended auction(s)", len(candidates)))

	for _, product := range candidates {
		if err := s.resolveAuction(ctx, product); err != nil {
			s.logger.Error("AUCTION", fmt.Sprintf("Failed to resolve auction %s: %v", product.ID, err))
		}
	}

	return nil
}

func (s *AuctionService) resolveAuction(ctx context.Context, product models.Product) error {
	winner, err := s.DB.FindWinningBid(ctx, product.ID)
	if err != nil {
		return err
	}

	if winner == nil {
		expired, err := s.DB.ExpireAuction(ctx, product.ID)
		if err != nil {
			return err
		}
		if expired {
			s.logger.LogAuction("EXPIRE", product.ID, "Auction ended with no bids")
		}
		return nil
	}

	order := &models.Order{
		ID:          uuid.NewString(),
		UserID:      winner.UserID,
		TotalAmount: winner.Amount,
		Status:      models.OrderPendingPayment,
		Notes:       fmt.Sprintf("Auction winner - Product: %s", product.Name),
		CreatedAt:   time.Now(),
	}
	item := &models.OrderItem{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		ProductID:  product.ID,
		Quantity:   1,
		UnitPrice:  winner.Amount,
		TotalPrice: winner.Amount,
	}

	concluded, err := s.DB.ConcludeAuction(ctx, product.ID, order, item)
	if err != nil {
		return err
	}
	if !concluded {
		// Another sweep got here first; its transaction created the order.
		s.logger.LogAuction("SKIP", product.ID, "Auction already resolved")
		return nil
	}

	s.logger.LogAuction("CONCLUDE", product.ID,
		fmt.Sprintf("Winner %s at %.2f, order %s", winner.UserID, winner.Amount, order.ID))

	// The transaction is committed; everything below is best-effort and must
	// not undo it. The winner can still pay later if the session fails.
	s.createPaymentForWinner(ctx, winner, order)
	s.notifyWinner(ctx, winner, order, product)

	return nil
}

func (s *AuctionService) createPaymentForWinner(ctx context.Context, winner *models.Bid, order *models.Order) {
	if !s.Gateway.IsConfigured() {
		s.logger.Info("PAYMENT", "Gateway not configured, skipping payment session for auction winner")
		return
	}

	user, err := s.DB.GetUserByID(ctx, winner.UserID)
	if err != nil || user == nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Could not load winner %s for payment session: %v", winner.UserID, err))
		return
	}

	address := order.ShippingAddress
	if address == "" {
		address = "Auction winner - address to be provided"
	}

	session, err := s.Gateway.CreateSession(ctx, payment.SessionRequest{
		OrderID:         order.ID,
		Amount:          order.TotalAmount,
		CustomerName:    user.FullName(),
		CustomerEmail:   user.Email,
		CustomerAddress: address,
	})
	if err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Payment session for order %s failed: %v", order.ID, err))
		return
	}

	paymentID := strconv.FormatInt(session.PaymentID, 10)
	if err := s.DB.SetOrderPayment(ctx, order.ID, paymentID, session.PaymentURL); err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Failed to attach payment info to order %s: %v", order.ID, err))
	}

	if err := s.Payments.SavePayment(&models.Payment{
		PaymentID:   paymentID,
		OrderID:     order.ID,
		InvoiceID:   session.InvoiceID,
		Status:      models.OrderPendingPayment,
		Amount:      order.TotalAmount,
		URL:         session.PaymentURL,
		CreatedDate: time.Now(),
	}); err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Failed to record payment session for order %s: %v", order.ID, err))
	}

	s.logger.LogPayment("SESSION", order.ID, "Payment session created for auction winner")
}

func (s *AuctionService) notifyWinner(ctx context.Context, winner *models.Bid, order *models.Order, product models.Product) {
	if !s.Notifier.Notify(ctx, winner.UserID, notify.AuctionWon(product.ID, product.Name, order.ID, winner.Amount)) {
		s.logger.Warn("NOTIFY", fmt.Sprintf("Winner notification for user %s was not delivered", winner.UserID))
	}
}

// ---------------- STATS ----------------

// Stats returns auction counters, served from the cache when fresh.
func (s *AuctionService) Stats(ctx context.Context) (*models.AuctionStats, error) {
	if s.Cache != nil {
		if stats, ok := s.Cache.Get(ctx); ok {
			return stats, nil
		}
	}

	active, err := s.DB.CountAuctionsByStatus(ctx, models.ProductActive)
	if err != nil {
		return nil, apperr.Internal("failed to count active auctions", err)
	}
	concluded, err := s.DB.CountAuctionsByStatus(ctx, models.ProductConcluded)
	if err != nil {
		return nil, apperr.Internal("failed to count concluded auctions", err)
	}
	totalBids, err := s.DB.CountBids(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to count bids", err)
	}

	stats := &models.AuctionStats{
		ActiveAuctions:    active,
		ConcludedAuctions: concluded,
		TotalBids:         totalBids,
	}

	if s.Cache != nil {
		s.Cache.Set(ctx, stats)
	}

	return stats, nil
}
