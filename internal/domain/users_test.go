package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorCan(t *testing.T) {
	admin := Actor{Kind: KindAdmin}
	assert.True(t, admin.Can(PermManageUsers))
	assert.True(t, admin.Can(PermPlaceOrders))

	customer := Actor{Kind: KindCustomer, Permissions: PermissionsFor(KindAdmin)}
	assert.True(t, customer.Can(PermPlaceOrders))
	assert.False(t, customer.Can(PermMakeSales))

	cashier := Actor{Kind: KindCashier, Permissions: PermissionsFor(KindCashier)}
	assert.True(t, cashier.Can(PermMakeSales))
	assert.False(t, cashier.Can(PermChangeStock))
}

func TestPermissionsForReturnsCopy(t *testing.T) {
	perms := PermissionsFor(KindHR)
	perms[0] = PermManageUsers

	assert.Equal(t, []Permission{PermViewStock, PermViewReports}, PermissionsFor(KindHR))
	assert.False(t, UserKind("baker").Valid())
}

func TestMovementSignedQuantity(t *testing.T) {
	assert.Equal(t, 3, Movement{Kind: MovementInbound, Quantity: 3}.SignedQuantity())
	assert.Equal(t, 3, Movement{Kind: MovementInitialInbound, Quantity: 3}.SignedQuantity())
	assert.Equal(t, -3, Movement{Kind: MovementOutbound, Quantity: 3}.SignedQuantity())
	assert.Equal(t, -3, Movement{Kind: MovementDeletion, Quantity: 3}.SignedQuantity())
}
