package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vaais251/Smobile-market-place/internal/domain"
)

// OrderService is the slice of the order workflow the messaging core needs:
// placing an order (which provisions its support rooms in the same
// transaction) and the status transitions, of which CANCELLED triggers the
// cancellation hook.
type OrderService struct {
	db          *gorm.DB
	provisioner *ProvisioningService
}

func NewOrderService(db *gorm.DB, provisioner *ProvisioningService) *OrderService {
	return &OrderService{db: db, provisioner: provisioner}
}

// PlaceOrder creates a PENDING order on an active listing and provisions
// its support rooms. Order row, both rooms, their participants, the system
// messages and the room back-references commit as one transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, buyerID, listingID uint) (*domain.Order, error) {
	var order domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listing domain.Listing
		if err := tx.First(&listing, listingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: listing %d", ErrNotFound, listingID)
			}
			return fmt.Errorf("lookup listing %d: %w", listingID, err)
		}
		if !listing.IsActive {
			return fmt.Errorf("%w: listing %d is no longer active", ErrNotFound, listingID)
		}
		if listing.SellerID == buyerID {
			return fmt.Errorf("%w: cannot place an order on your own listing", ErrInvalidOperation)
		}

		var buyer domain.User
		if err := tx.First(&buyer, buyerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d", ErrNotFound, buyerID)
			}
			return fmt.Errorf("lookup buyer %d: %w", buyerID, err)
		}
		var seller domain.User
		if err := tx.First(&seller, listing.SellerID).Error; err != nil {
			return fmt.Errorf("lookup seller %d: %w", listing.SellerID, err)
		}

		var pending int64
		err := tx.Model(&domain.Order{}).
			Where("buyer_id = ? AND listing_id = ? AND status = ?", buyerID, listingID, domain.OrderStatusPending).
			Count(&pending).Error
		if err != nil {
			return fmt.Errorf("pending order check: %w", err)
		}
		if pending > 0 {
			return fmt.Errorf("%w: you already have a pending order for this listing", ErrInvalidOperation)
		}

		order = domain.Order{
			BuyerID:   buyerID,
			SellerID:  listing.SellerID,
			ListingID: listingID,
			Status:    domain.OrderStatusPending,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		if err := tx.Model(&listing).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivate listing %d: %w", listingID, err)
		}

		return s.provisioner.OnOrderCreated(ctx, tx, &order, &listing, &buyer, &seller)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"buyer_id":   buyerID,
		"listing_id": listingID,
	}).Info("Order placed")
	return &order, nil
}

// UpdateStatus transitions the order to next. Only the order's seller or an
// admin may do this. Moving to CANCELLED re-activates the listing and fires
// the cancellation hook; the rooms themselves stay untouched.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, actorID uint, next domain.OrderStatus) (*domain.Order, error) {
	if !next.IsValid() {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrInvalidOperation, next)
	}

	var order domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return fmt.Errorf("lookup order %d: %w", orderID, err)
		}

		var actor domain.User
		if err := tx.First(&actor, actorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d", ErrNotFound, actorID)
			}
			return fmt.Errorf("lookup user %d: %w", actorID, err)
		}
		if order.SellerID != actorID && actor.Role != domain.RoleAdmin {
			return fmt.Errorf("%w: only the seller or an admin can update order status", ErrForbidden)
		}

		if !order.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidOperation, order.Status, next)
		}

		if err := tx.Model(&order).Update("status", next).Error; err != nil {
			return fmt.Errorf("update order %d status: %w", orderID, err)
		}
		order.Status = next

		if next == domain.OrderStatusCancelled {
			err := tx.Model(&domain.Listing{}).
				Where("id = ?", order.ListingID).
				Update("is_active", true).Error
			if err != nil {
				return fmt.Errorf("reactivate listing %d: %w", order.ListingID, err)
			}
			return s.provisioner.OnOrderCancelled(ctx, &order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}
