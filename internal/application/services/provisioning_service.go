package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vaais251/Smobile-market-place/internal/domain"
	"github.com/vaais251/Smobile-market-place/internal/metrics"
)

// ProvisioningService creates the paired support rooms when an order comes
// into existence. The order workflow calls its hooks synchronously inside
// the order transaction; any failure rolls the whole order back.
type ProvisioningService struct {
	rooms *RoomService
}

func NewProvisioningService(rooms *RoomService) *ProvisioningService {
	return &ProvisioningService{rooms: rooms}
}

// OnOrderCreated provisions the Buyer-Support and Seller-Coordination rooms
// for a freshly created order and writes the room ids back onto the order
// row, all on the caller's transaction. The support participant is the
// platform operator; when no operator exists the buyer stands in for both
// rooms, a degraded mode rather than an error.
func (p *ProvisioningService) OnOrderCreated(ctx context.Context, tx *gorm.DB, order *domain.Order, listing *domain.Listing, buyer, seller *domain.User) error {
	support, err := p.resolveSupportUser(ctx, tx, buyer)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}

	buyerRoom, err := p.rooms.CreateSupportRoom(ctx, tx,
		order.ID,
		fmt.Sprintf("Order #%d Buyer Support", order.ID),
		[]uint{buyer.ID, support.ID},
		support.ID,
		fmt.Sprintf("Order #%d has been placed. Our team is here if you need any help.", order.ID),
	)
	if err != nil {
		return fmt.Errorf("%w: buyer support room: %v", ErrProvisioningFailed, err)
	}

	sellerRoom, err := p.rooms.CreateSupportRoom(ctx, tx,
		order.ID,
		fmt.Sprintf("Order #%d Seller Coordination", order.ID),
		[]uint{seller.ID, support.ID},
		support.ID,
		fmt.Sprintf("You have a new order for %q. Please coordinate the handover here.", listing.Title),
	)
	if err != nil {
		return fmt.Errorf("%w: seller coordination room: %v", ErrProvisioningFailed, err)
	}

	order.BuyerChatRoomID = &buyerRoom.ID
	order.SellerChatRoomID = &sellerRoom.ID
	err = tx.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"buyer_chat_room_id":  buyerRoom.ID,
			"seller_chat_room_id": sellerRoom.ID,
		}).Error
	if err != nil {
		return fmt.Errorf("%w: attach rooms to order: %v", ErrProvisioningFailed, err)
	}

	metrics.RoomsProvisioned.Add(2)
	logrus.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"buyer_room_id":  buyerRoom.ID,
		"seller_room_id": sellerRoom.ID,
	}).Info("Support rooms provisioned for order")
	return nil
}

// OnOrderCancelled is invoked when an order moves to CANCELLED. Rooms are
// not mutated; they persist as an audit trail.
func (p *ProvisioningService) OnOrderCancelled(ctx context.Context, order *domain.Order) error {
	logrus.WithField("order_id", order.ID).Info("Order cancelled, support rooms retained")
	return nil
}

// resolveSupportUser picks the platform operator: the lowest-id ADMIN user.
// Falls back to the buyer when no operator account exists.
func (p *ProvisioningService) resolveSupportUser(ctx context.Context, tx *gorm.DB, buyer *domain.User) (*domain.User, error) {
	var admin domain.User
	err := tx.WithContext(ctx).
		Where("role = ?", domain.RoleAdmin).
		Order("id ASC").
		First(&admin).Error
	if err == nil {
		return &admin, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.Warn("No admin user found, falling back to buyer for support rooms")
		return buyer, nil
	}
	return nil, fmt.Errorf("resolve support user: %w", err)
}
