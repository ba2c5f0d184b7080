package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vaais251/Smobile-market-place/internal/domain"
)

func newOrderFixture(t *testing.T) (*gorm.DB, *OrderService, *RoomService) {
	t.Helper()
	db := newTestDB(t)
	rooms := NewRoomService(db)
	orders := NewOrderService(db, NewProvisioningService(rooms))
	return db, orders, rooms
}

func seedListing(t *testing.T, db *gorm.DB, sellerID uint, title string) *domain.Listing {
	t.Helper()
	listing := &domain.Listing{SellerID: sellerID, Title: title, Price: 250, IsActive: true}
	require.NoError(t, db.Create(listing).Error)
	return listing
}

func roomParticipantSet(t *testing.T, db *gorm.DB, roomID uint) map[uint]bool {
	t.Helper()
	var ids []uint
	require.NoError(t, db.Model(&domain.ChatParticipant{}).Where("room_id = ?", roomID).Pluck("user_id", &ids).Error)
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func TestPlaceOrder_ProvisionsSupportRooms(t *testing.T) {
	db, orders, _ := newOrderFixture(t)
	ctx := context.Background()

	buyer := seedUser(t, db, "Bilal", domain.RoleBuyer)
	seller := seedUser(t, db, "Sana", domain.RoleSeller)
	admin := seedUser(t, db, "Admin", domain.RoleAdmin)
	listing := seedListing(t, db, seller.ID, "Pixel 7 Pro")

	order, err := orders.PlaceOrder(ctx, buyer.ID, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)

	// Both back references are set and distinct.
	require.NotNil(t, order.BuyerChatRoomID)
	require.NotNil(t, order.SellerChatRoomID)
	assert.NotEqual(t, *order.BuyerChatRoomID, *order.SellerChatRoomID)

	// Exactly two rooms, four participant rows, two system messages.
	var rooms, participants, messages int64
	require.NoError(t, db.Model(&domain.ChatRoom{}).Count(&rooms).Error)
	require.NoError(t, db.Model(&domain.ChatParticipant{}).Count(&participants).Error)
	require.NoError(t, db.Model(&domain.Message{}).Count(&messages).Error)
	assert.EqualValues(t, 2, rooms)
	assert.EqualValues(t, 4, participants)
	assert.EqualValues(t, 2, messages)

	// Buyer room holds {buyer, admin}; seller room holds {seller, admin}.
	buyerSet := roomParticipantSet(t, db, *order.BuyerChatRoomID)
	assert.Equal(t, map[uint]bool{buyer.ID: true, admin.ID: true}, buyerSet)
	sellerSet := roomParticipantSet(t, db, *order.SellerChatRoomID)
	assert.Equal(t, map[uint]bool{seller.ID: true, admin.ID: true}, sellerSet)

	// Both rooms link back to the order.
	var buyerRoom domain.ChatRoom
	require.NoError(t, db.First(&buyerRoom, *order.BuyerChatRoomID).Error)
	require.NotNil(t, buyerRoom.OrderID)
	assert.Equal(t, order.ID, *buyerRoom.OrderID)

	// The seller room's system message names the listing.
	var systemMsg domain.Message
	require.NoError(t, db.Where("room_id = ?", *order.SellerChatRoomID).First(&systemMsg).Error)
	assert.Equal(t, admin.ID, systemMsg.SenderID)
	assert.Contains(t, systemMsg.Content, "Pixel 7 Pro")

	// The listing is held while the order is pending.
	var held domain.Listing
	require.NoError(t, db.First(&held, listing.ID).Error)
	assert.False(t, held.IsActive)
}

func TestPlaceOrder_AdminFallback(t *testing.T) {
	db, orders, _ := newOrderFixture(t)
	ctx := context.Background()

	buyer := seedUser(t, db, "Bilal", domain.RoleBuyer)
	seller := seedUser(t, db, "Sana", domain.RoleSeller)
	listing := seedListing(t, db, seller.ID, "iPhone 12")

	order, err := orders.PlaceOrder(ctx, buyer.ID, listing.ID)
	require.NoError(t, err)

	// No admin exists: the buyer stands in as the secondary participant
	// for both rooms.
	buyerSet := roomParticipantSet(t, db, *order.BuyerChatRoomID)
	assert.Equal(t, map[uint]bool{buyer.ID: true}, buyerSet)
	sellerSet := roomParticipantSet(t, db, *order.SellerChatRoomID)
	assert.Equal(t, map[uint]bool{seller.ID: true, buyer.ID: true}, sellerSet)
}

func TestPlaceOrder_Validation(t *testing.T) {
	db, orders, _ := newOrderFixture(t)
	ctx := context.Background()

	buyer := seedUser(t, db, "Bilal", domain.RoleBuyer)
	seller := seedUser(t, db, "Sana", domain.RoleSeller)
	listing := seedListing(t, db, seller.ID, "Galaxy S23")

	_, err := orders.PlaceOrder(ctx, buyer.ID, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = orders.PlaceOrder(ctx, seller.ID, listing.ID)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = orders.PlaceOrder(ctx, buyer.ID, listing.ID)
	require.NoError(t, err)

	// The listing is now inactive, so a second order cannot be placed.
	_, err = orders.PlaceOrder(ctx, buyer.ID, listing.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlaceOrder_RollsBackOnProvisioningFailure(t *testing.T) {
	db, orders, _ := newOrderFixture(t)
	ctx := context.Background()

	buyer := seedUser(t, db, "Bilal", domain.RoleBuyer)
	seller := seedUser(t, db, "Sana", domain.RoleSeller)
	seedUser(t, db, "Admin", domain.RoleAdmin)
	listing := seedListing(t, db, seller.ID, "OnePlus 11")

	// Fail the second system-message insert, mid provisioning.
	var messageInserts int
	err := db.Callback().Create().Before("gorm:create").Register("fail_second_message", func(tx *gorm.DB) {
		if tx.Statement.Table == "messages" {
			messageInserts++
			if messageInserts == 2 {
				tx.AddError(errors.New("simulated write failure"))
			}
		}
	})
	require.NoError(t, err)
	defer db.Callback().Create().Remove("fail_second_message")

	_, err = orders.PlaceOrder(ctx, buyer.ID, listing.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvisioningFailed)

	// The whole transaction rolled back: no order, no rooms, and the
	// listing is untouched.
	var orderCount, rooms, participants, messages int64
	require.NoError(t, db.Model(&domain.Order{}).Count(&orderCount).Error)
	require.NoError(t, db.Model(&domain.ChatRoom{}).Count(&rooms).Error)
	require.NoError(t, db.Model(&domain.ChatParticipant{}).Count(&participants).Error)
	require.NoError(t, db.Model(&domain.Message{}).Count(&messages).Error)
	assert.Zero(t, orderCount)
	assert.Zero(t, rooms)
	assert.Zero(t, participants)
	assert.Zero(t, messages)

	var intact domain.Listing
	require.NoError(t, db.First(&intact, listing.ID).Error)
	assert.True(t, intact.IsActive)
}

func TestUpdateStatus(t *testing.T) {
	db, orders, _ := newOrderFixture(t)
	ctx := context.Background()

	buyer := seedUser(t, db, "Bilal", domain.RoleBuyer)
	seller := seedUser(t, db, "Sana", domain.RoleSeller)
	seedUser(t, db, "Admin", domain.RoleAdmin)
	listing := seedListing(t, db, seller.ID, "Nothing Phone 2")

	order, err := orders.PlaceOrder(ctx, buyer.ID, listing.ID)
	require.NoError(t, err)

	// The buyer may not drive the status.
	_, err = orders.UpdateStatus(ctx, order.ID, buyer.ID, domain.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := orders.UpdateStatus(ctx, order.ID, seller.ID, domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, updated.Status)

	// SHIPPED cannot be cancelled.
	_, err = orders.UpdateStatus(ctx, order.ID, seller.ID, domain.OrderStatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	updated, err = orders.UpdateStatus(ctx, order.ID, seller.ID, domain.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, updated.Status)

	// Terminal.
	_, err = orders.UpdateStatus(ctx, order.ID, seller.ID, domain.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestUpdateStatus_CancelKeepsRoomsAndReactivatesListing(t *testing.T) {
	db, orders, _ := newOrderFixture(t)
	ctx := context.Background()

	buyer := seedUser(t, db, "Bilal", domain.RoleBuyer)
	seller := seedUser(t, db, "Sana", domain.RoleSeller)
	seedUser(t, db, "Admin", domain.RoleAdmin)
	listing := seedListing(t, db, seller.ID, "Xperia 5")

	order, err := orders.PlaceOrder(ctx, buyer.ID, listing.ID)
	require.NoError(t, err)

	cancelled, err := orders.UpdateStatus(ctx, order.ID, seller.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	// Rooms persist as an audit trail.
	var rooms int64
	require.NoError(t, db.Model(&domain.ChatRoom{}).Count(&rooms).Error)
	assert.EqualValues(t, 2, rooms)

	var reactivated domain.Listing
	require.NoError(t, db.First(&reactivated, listing.ID).Error)
	assert.True(t, reactivated.IsActive)
}
